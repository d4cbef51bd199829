package usecase

import (
	"testing"

	"github.com/venadolabs/chanbind/domains/provider"
	"github.com/venadolabs/chanbind/domains/setup"
)

func allPendingStates(p provider.Provider) []setup.StepState {
	order := ProviderStepOrder(p)
	states := make([]setup.StepState, 0, len(order))
	for _, k := range order {
		states = append(states, setup.StepState{Key: k, Status: setup.StepPending})
	}
	return states
}

func TestGuidedStepKeyFirstActionable(t *testing.T) {
	states := []setup.StepState{
		{Key: setup.StepGateway, Status: setup.StepReady},
		{Key: setup.StepPersonalSession, Status: setup.StepBlocked},
		{Key: setup.StepBinding, Status: setup.StepPending},
		{Key: setup.StepVerification, Status: setup.StepPending},
	}
	if got := GuidedStepKey(states); got != setup.StepPersonalSession {
		t.Errorf("guided = %s, want personal_session", got)
	}
}

func TestGuidedStepKeyRestsOnLastWhenAllDone(t *testing.T) {
	states := []setup.StepState{
		{Key: setup.StepGateway, Status: setup.StepReady},
		{Key: setup.StepBinding, Status: setup.StepReady},
		{Key: setup.StepVerification, Status: setup.StepDone},
	}
	if got := GuidedStepKey(states); got != setup.StepVerification {
		t.Errorf("guided = %s, want verification", got)
	}
}

func TestRequestStepSelectionRejectsStepsOutsideOrder(t *testing.T) {
	c := NewStepSelectionController()

	// Telegram has no personal_session step.
	if c.RequestStepSelection(provider.ProviderTelegram, setup.StepPersonalSession) {
		t.Fatal("selection of personal_session accepted for TELEGRAM")
	}
	if c.HasManualSelection(provider.ProviderTelegram) {
		t.Fatal("rejected selection left state behind")
	}

	if !c.RequestStepSelection(provider.ProviderTelegram, setup.StepBinding) {
		t.Fatal("valid selection rejected")
	}
}

func TestManualSelectionMatchingGuidedStepStillCounts(t *testing.T) {
	c := NewStepSelectionController()
	states := allPendingStates(provider.ProviderWhatsApp)
	guided := GuidedStepKey(states)

	if c.HasManualSelection(provider.ProviderWhatsApp) {
		t.Fatal("fresh controller reports a manual selection")
	}
	if got := c.ActiveStepKey(provider.ProviderWhatsApp, states); got != guided {
		t.Errorf("active = %s, want guided %s", got, guided)
	}

	if !c.RequestStepSelection(provider.ProviderWhatsApp, guided) {
		t.Fatal("selection of guided step rejected")
	}
	if !c.HasManualSelection(provider.ProviderWhatsApp) {
		t.Error("explicitly choosing the guided step must count as manual")
	}
}

func TestManualSelectionSurvivesUnrelatedStateChanges(t *testing.T) {
	c := NewStepSelectionController()
	c.RequestStepSelection(provider.ProviderWhatsApp, setup.StepBinding)

	// Gateway flipping READY -> UNKNOWN -> READY changes statuses, not keys.
	states := allPendingStates(provider.ProviderWhatsApp)
	if got := c.ActiveStepKey(provider.ProviderWhatsApp, states); got != setup.StepBinding {
		t.Errorf("active = %s, want binding", got)
	}

	states[0].Status = setup.StepReady
	if got := c.ActiveStepKey(provider.ProviderWhatsApp, states); got != setup.StepBinding {
		t.Errorf("active after status change = %s, want binding", got)
	}
	if !c.HasManualSelection(provider.ProviderWhatsApp) {
		t.Error("manual selection lost on unrelated state change")
	}
}

func TestManualSelectionClearedWhenStepLeavesOrder(t *testing.T) {
	c := NewStepSelectionController()
	c.RequestStepSelection(provider.ProviderWhatsApp, setup.StepPersonalSession)

	// The step list no longer includes personal_session, e.g. after a
	// topology change. The stale selection must clear itself.
	states := allPendingStates(provider.ProviderTelegram)
	got := c.ActiveStepKey(provider.ProviderWhatsApp, states)
	if got == setup.StepPersonalSession {
		t.Fatal("stale manual selection still active")
	}
	if c.HasManualSelection(provider.ProviderWhatsApp) {
		t.Error("stale manual selection not cleared")
	}
}

func TestSelectionsAreScopedPerProvider(t *testing.T) {
	c := NewStepSelectionController()
	c.RequestStepSelection(provider.ProviderWhatsApp, setup.StepBinding)

	if c.HasManualSelection(provider.ProviderDiscord) {
		t.Error("WhatsApp selection leaked onto Discord")
	}

	states := allPendingStates(provider.ProviderDiscord)
	if got := c.ActiveStepKey(provider.ProviderDiscord, states); got != GuidedStepKey(states) {
		t.Errorf("Discord active = %s, want guided", got)
	}
}

func TestRevalidateDropsSelectionOutsideNewOrder(t *testing.T) {
	c := NewStepSelectionController()
	c.RequestStepSelection(provider.ProviderWhatsApp, setup.StepPersonalSession)

	c.Revalidate(provider.ProviderWhatsApp)
	if !c.HasManualSelection(provider.ProviderWhatsApp) {
		t.Fatal("valid selection dropped by revalidation")
	}
}
