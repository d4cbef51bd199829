package rest

import (
	"github.com/gofiber/fiber/v2"

	"github.com/venadolabs/chanbind/core/config"
	domainProvider "github.com/venadolabs/chanbind/domains/provider"
	domainSetup "github.com/venadolabs/chanbind/domains/setup"
	"github.com/venadolabs/chanbind/pkg/utils"
	"github.com/venadolabs/chanbind/usecase"
	"github.com/venadolabs/chanbind/validations"
)

type Setup struct {
	Service *usecase.SetupService
}

func InitRestSetup(app fiber.Router, service *usecase.SetupService) Setup {
	rest := Setup{Service: service}
	app.Get("/setup/providers", rest.ListProviders)
	app.Put("/setup/provider", rest.SelectProvider)
	app.Get("/setup/steps", rest.GetSteps)
	app.Put("/setup/steps/selection", rest.SelectStep)
	app.Delete("/setup/steps/selection", rest.ReturnToGuided)
	app.Post("/setup/capabilities/refresh", rest.RefreshCapabilities)
	app.Post("/setup/session/start", rest.StartSession)
	app.Post("/setup/session/stop", rest.StopSession)
	app.Post("/setup/verification", rest.RunVerification)
	app.Get("/setup/verification", rest.GetVerification)
	app.Get("/setup/settings", rest.GetSettings)
	return rest
}

// GetSettings exposes the effective runtime configuration for debugging a
// deployment. Values come from the loaded config, not the environment.
func (h *Setup) GetSettings(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Settings fetched",
		Results: config.GetAllSettings(),
	})
}

func (h *Setup) ListProviders(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Providers fetched",
		Results: fiber.Map{
			"options":  h.Service.ProviderOptions(),
			"selected": h.Service.SelectedProvider(),
		},
	})
}

func (h *Setup) SelectProvider(c *fiber.Ctx) error {
	var request domainSetup.SelectProviderRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateSelectProvider(c.UserContext(), request))

	p, err := domainProvider.Parse(request.Provider)
	utils.PanicIfNeeded(err)
	utils.PanicIfNeeded(h.Service.SelectProvider(c.UserContext(), p))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Provider selected",
		Results: h.Service.State(c.UserContext()),
	})
}

func (h *Setup) GetSteps(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Step states fetched",
		Results: h.Service.State(c.UserContext()),
	})
}

func (h *Setup) SelectStep(c *fiber.Ctx) error {
	var request domainSetup.SelectStepRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateSelectStep(c.UserContext(), request))

	if !h.Service.SelectStep(domainSetup.StepKey(request.Step)) {
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: "Step is not part of the current provider's flow",
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Step selected",
		Results: h.Service.State(c.UserContext()),
	})
}

func (h *Setup) ReturnToGuided(c *fiber.Ctx) error {
	h.Service.ReturnToGuided()
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Returned to guided mode",
		Results: h.Service.State(c.UserContext()),
	})
}

func (h *Setup) RefreshCapabilities(c *fiber.Ctx) error {
	snapshot, err := h.Service.RefreshCapabilities(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Capabilities refreshed",
		Results: snapshot,
	})
}

func (h *Setup) StartSession(c *fiber.Ctx) error {
	session, err := h.Service.StartSession(c.UserContext())
	if err != nil {
		// The readiness snapshot already carries the blocked reason; the
		// caller still gets the error inline.
		return c.Status(400).JSON(utils.ResponseData{
			Status:  400,
			Code:    "BAD_REQUEST",
			Message: err.Error(),
			Results: h.Service.State(c.UserContext()),
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session started",
		Results: session,
	})
}

func (h *Setup) StopSession(c *fiber.Ctx) error {
	utils.PanicIfNeeded(h.Service.StopSession(c.UserContext()))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Session stopped",
	})
}

func (h *Setup) RunVerification(c *fiber.Ctx) error {
	result := h.Service.RunVerification(c.UserContext())
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Verification completed",
		Results: result,
	})
}

func (h *Setup) GetVerification(c *fiber.Ctx) error {
	result, err := h.Service.LatestVerification(c.UserContext())
	utils.PanicIfNeeded(err)

	if result == nil {
		return c.JSON(utils.ResponseData{
			Status:  200,
			Code:    "SUCCESS",
			Message: "Verification has not run yet",
		})
	}
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Verification result fetched",
		Results: result,
	})
}
