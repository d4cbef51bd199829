package rest

import (
	"github.com/gofiber/fiber/v2"

	domainBinding "github.com/venadolabs/chanbind/domains/binding"
	"github.com/venadolabs/chanbind/pkg/utils"
	"github.com/venadolabs/chanbind/usecase"
	"github.com/venadolabs/chanbind/validations"
)

type Binding struct {
	Service *usecase.SetupService
}

func InitRestBinding(app fiber.Router, service *usecase.SetupService) Binding {
	rest := Binding{Service: service}
	app.Get("/setup/bindings", rest.ListBindings)
	app.Post("/setup/bindings", rest.CreateBinding)
	app.Delete("/setup/bindings/:id", rest.DeleteBinding)

	app.Post("/setup/draft", rest.OpenDraft)
	app.Get("/setup/draft", rest.GetDraft)
	app.Put("/setup/draft", rest.UpdateDraft)
	app.Delete("/setup/draft", rest.DiscardDraft)
	app.Post("/setup/draft/save", rest.SaveDraft)
	app.Post("/setup/draft/peers/reload", rest.ReloadPeers)
	app.Post("/setup/draft/targets/reload", rest.ReloadTargets)
	return rest
}

func (h *Binding) ListBindings(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Bindings fetched",
		Results: h.Service.ListBindings(c.UserContext()),
	})
}

func (h *Binding) CreateBinding(c *fiber.Ctx) error {
	var request domainBinding.ChannelBinding
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	saved, err := h.Service.SaveBinding(c.UserContext(), request)
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Binding saved",
		Results: saved,
	})
}

func (h *Binding) DeleteBinding(c *fiber.Ctx) error {
	id := c.Params("id")
	utils.PanicIfNeeded(validations.ValidateDeleteBinding(c.UserContext(), id))
	utils.PanicIfNeeded(h.Service.DeleteBinding(c.UserContext(), id))

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Binding deleted",
	})
}

func (h *Binding) OpenDraft(c *fiber.Ctx) error {
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Draft opened",
		Results: h.Service.StartBindingDraft(),
	})
}

func (h *Binding) GetDraft(c *fiber.Ctx) error {
	draft, active := h.Service.Draft().Current()
	if !active {
		return c.Status(404).JSON(utils.ResponseData{
			Status:  404,
			Code:    "NOT_FOUND_ERROR",
			Message: "No binding draft in progress",
		})
	}

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Draft fetched",
		Results: fiber.Map{
			"draft":                draft,
			"peer_input_mode":      h.Service.Draft().PeerInputMode(),
			"can_discover_peers":   h.Service.Draft().CanDiscoverPeers(),
			"peer_candidates":      h.Service.Draft().PeerCandidates(),
			"target_options":       h.Service.Draft().FilteredTargetOptions(),
			"stale_selection_error": h.Service.Draft().StaleSelectionError(),
		},
	})
}

func (h *Binding) UpdateDraft(c *fiber.Ctx) error {
	var request domainBinding.DraftUpdateRequest
	err := c.BodyParser(&request)
	utils.PanicIfNeeded(err)

	utils.PanicIfNeeded(validations.ValidateDraftUpdate(c.UserContext(), request))

	draft := h.Service.Draft()
	if request.PeerInputMode != nil {
		utils.PanicIfNeeded(draft.SetPeerInputMode(usecase.PeerInputMode(*request.PeerInputMode)))
	}
	if request.AccountID != nil {
		utils.PanicIfNeeded(draft.SetAccountID(*request.AccountID))
	}
	if request.PeerID != nil {
		if draft.PeerInputMode() == usecase.PeerInputDiscovery {
			utils.PanicIfNeeded(draft.SelectPeer(*request.PeerID))
		} else {
			threadID := ""
			if request.ThreadID != nil {
				threadID = *request.ThreadID
			}
			utils.PanicIfNeeded(draft.SetManualPeer(*request.PeerID, threadID))
		}
	}
	if request.TargetType != nil {
		_, err := draft.SetTargetType(domainBinding.TargetType(*request.TargetType))
		utils.PanicIfNeeded(err)
	}
	if request.TargetID != nil {
		utils.PanicIfNeeded(draft.SelectTarget(*request.TargetID))
	}
	if request.AllowTransportFallback != nil {
		utils.PanicIfNeeded(draft.SetAllowTransportFallback(*request.AllowTransportFallback))
	}

	current, _ := draft.Current()
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Draft updated",
		Results: current,
	})
}

func (h *Binding) DiscardDraft(c *fiber.Ctx) error {
	h.Service.Draft().Discard()
	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Draft discarded",
	})
}

func (h *Binding) SaveDraft(c *fiber.Ctx) error {
	saved, err := h.Service.SaveBindingDraft(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Binding saved",
		Results: saved,
	})
}

func (h *Binding) ReloadPeers(c *fiber.Ctx) error {
	items, err := h.Service.Draft().ReloadPeerCandidates(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Peer candidates reloaded",
		Results: items,
	})
}

func (h *Binding) ReloadTargets(c *fiber.Ctx) error {
	opts, err := h.Service.Draft().ReloadTargetOptions(c.UserContext())
	utils.PanicIfNeeded(err)

	return c.JSON(utils.ResponseData{
		Status:  200,
		Code:    "SUCCESS",
		Message: "Target options reloaded",
		Results: opts,
	})
}
