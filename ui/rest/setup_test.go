package rest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/venadolabs/chanbind/core/config"
	"github.com/venadolabs/chanbind/pkg/utils"
)

func TestGetSettingsReturnsLoadedConfig(t *testing.T) {
	prev := config.Global
	config.Global = &config.Config{
		App:      config.AppConfig{Version: "v1.3.0", Debug: true},
		Gateway:  config.GatewayConfig{BaseURL: "http://gateway:8080"},
		Database: config.DatabaseConfig{Driver: "sqlite"},
		Setup: config.SetupConfig{
			SessionSyncInterval: 15 * time.Second,
			CapabilityCacheTTL:  5 * time.Minute,
			PeerCandidateLimit:  50,
		},
	}
	defer func() { config.Global = prev }()

	app := fiber.New()
	InitRestSetup(app, nil)

	req := httptest.NewRequest(http.MethodGet, "/setup/settings", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body utils.ResponseData
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	settings, ok := body.Results.(map[string]any)
	if !ok {
		t.Fatalf("results = %T, want settings map", body.Results)
	}
	if settings["app_version"] != "v1.3.0" {
		t.Errorf("app_version = %v", settings["app_version"])
	}
	if settings["gateway_base_url"] != "http://gateway:8080" {
		t.Errorf("gateway_base_url = %v", settings["gateway_base_url"])
	}
	if settings["session_sync_interval"] != "15s" {
		t.Errorf("session_sync_interval = %v", settings["session_sync_interval"])
	}
}
