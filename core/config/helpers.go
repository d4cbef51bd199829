package config

import (
	"os"
	"strconv"
	"strings"
)

// GetAllSettings returns a map of the dynamic settings currently loaded in
// memory, for the settings endpoint.
func GetAllSettings() map[string]any {
	if Global == nil {
		return map[string]any{}
	}
	return map[string]any{
		"app_version":             Global.App.Version,
		"app_debug":               Global.App.Debug,
		"gateway_base_url":        Global.Gateway.BaseURL,
		"session_sync_interval":   Global.Setup.SessionSyncInterval.String(),
		"capability_cache_ttl":    Global.Setup.CapabilityCacheTTL.String(),
		"peer_candidate_limit":    Global.Setup.PeerCandidateLimit,
		"valkey_enabled":          Global.Database.ValkeyEnabled,
		"database_driver":         Global.Database.Driver,
	}
}

// Helpers
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return fallback
}
