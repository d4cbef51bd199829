package usecase

import (
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/venadolabs/chanbind/domains/provider"
	"github.com/venadolabs/chanbind/domains/setup"
)

// StepSelectionController arbitrates between guided progression and manual
// step selection. Manual selections are remembered per provider, so moving
// between providers does not bleed a selection across.
type StepSelectionController struct {
	mu     sync.Mutex
	manual map[provider.Provider]setup.StepKey
}

func NewStepSelectionController() *StepSelectionController {
	return &StepSelectionController{
		manual: make(map[provider.Provider]setup.StepKey),
	}
}

// GuidedStepKey returns the first step that is neither READY nor DONE. When
// every step is satisfied the last step stays active, so a completed setup
// rests on verification.
func GuidedStepKey(states []setup.StepState) setup.StepKey {
	for _, s := range states {
		if s.Status != setup.StepReady && s.Status != setup.StepDone {
			return s.Key
		}
	}
	if len(states) == 0 {
		return setup.StepGateway
	}
	return states[len(states)-1].Key
}

// RequestStepSelection records a manual selection for the provider. It
// reports false, without mutating state, when the step does not belong to the
// provider's order.
func (c *StepSelectionController) RequestStepSelection(p provider.Provider, key setup.StepKey) bool {
	if !stepInOrder(p, key) {
		logrus.Warnf("[StepSelection] Rejected selection of %s for %s, step not in provider order", key, p)
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.manual[p] = key
	return true
}

// ReturnToGuidedStep clears the manual selection for the provider, handing
// control back to guided progression.
func (c *StepSelectionController) ReturnToGuidedStep(p provider.Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.manual, p)
}

func (c *StepSelectionController) HasManualSelection(p provider.Provider) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.manual[p]
	return ok
}

// ActiveStepKey resolves the step the surface should show for the given
// fresh step states. A manual selection that no longer names a step in the
// provider's order is dropped on the spot and guided mode resumes.
func (c *StepSelectionController) ActiveStepKey(p provider.Provider, states []setup.StepState) setup.StepKey {
	c.mu.Lock()
	defer c.mu.Unlock()

	if key, ok := c.manual[p]; ok {
		for _, s := range states {
			if s.Key == key {
				return key
			}
		}
		logrus.Infof("[StepSelection] Manual selection %s for %s became invalid, returning to guided mode", key, p)
		delete(c.manual, p)
	}
	return GuidedStepKey(states)
}

// Revalidate drops any manual selection that no longer fits the provider's
// current step order. Called after provider or capability changes.
func (c *StepSelectionController) Revalidate(p provider.Provider) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.manual[p]
	if !ok {
		return
	}
	if !stepInOrder(p, key) {
		logrus.Infof("[StepSelection] Manual selection %s for %s invalidated by step order change", key, p)
		delete(c.manual, p)
	}
}

func stepInOrder(p provider.Provider, key setup.StepKey) bool {
	if !provider.IsValid(p) {
		return false
	}
	for _, k := range ProviderStepOrder(p) {
		if k == key {
			return true
		}
	}
	return false
}
