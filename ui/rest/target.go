package rest

import (
	"github.com/gofiber/fiber/v2"

	domainBinding "github.com/venadolabs/chanbind/domains/binding"
	"github.com/venadolabs/chanbind/pkg/utils"
	"github.com/venadolabs/chanbind/usecase"
)

type Target struct {
	Service *usecase.TargetService
}

func InitRestTarget(app fiber.Router, service *usecase.TargetService) Target {
	rest := Target{Service: service}
	app.Get("/setup/targets", rest.ListTargets)
	app.Post("/setup/targets", rest.UpsertTarget)
	return rest
}

func (h *Target) ListTargets(c *fiber.Ctx) error {
	opts, err := h.Service.LoadTargetOptions(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Target options fetched",
		Results: opts,
	})
}

func (h *Target) UpsertTarget(c *fiber.Ctx) error {
	var request domainBinding.TargetOption
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(h.Service.UpsertTargetOption(c.UserContext(), request))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Target option saved",
		Results: request,
	})
}
