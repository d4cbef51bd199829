package rest

import (
	"github.com/gofiber/fiber/v2"

	domainGateway "github.com/venadolabs/chanbind/domains/gateway"
	"github.com/venadolabs/chanbind/infrastructure/valkey"
	"github.com/venadolabs/chanbind/pkg/utils"
	"github.com/venadolabs/chanbind/usecase"
)

type Health struct {
	Sessions domainGateway.ISessionUsecase
	Bindings *usecase.BindingService
	Valkey   *valkey.Client
}

func InitRestHealth(app fiber.Router, sessions domainGateway.ISessionUsecase, bindings *usecase.BindingService, vk *valkey.Client) Health {
	handler := Health{Sessions: sessions, Bindings: bindings, Valkey: vk}
	app.Get("/setup/health", handler.GetStatus)
	return handler
}

func (h *Health) GetStatus(c *fiber.Ctx) error {
	gatewayStatus := h.Sessions.GatewayStatus()

	_, _, _, caps, capsLoaded := h.Bindings.CachedState()

	valkeyConnected := false
	if h.Valkey != nil {
		valkeyConnected = h.Valkey.IsConnected()
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Health status retrieved",
		Results: fiber.Map{
			"gateway_status":           gatewayStatus,
			"gateway_reachable":        gatewayStatus == domainGateway.ConnectivityReady,
			"binding_crud_enabled":     capsLoaded && caps.BindingCrudEnabled,
			"binding_capability_known": capsLoaded,
			"valkey_connected":         valkeyConnected,
		},
	})
}
