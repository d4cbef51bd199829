package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/venadolabs/chanbind/domains/binding"
	"github.com/venadolabs/chanbind/domains/capability"
	"github.com/venadolabs/chanbind/domains/gateway"
	"github.com/venadolabs/chanbind/domains/provider"
	"github.com/venadolabs/chanbind/domains/setup"
)

// newDiscordSetupFixture wires a full facade around a ready gateway and a
// discord scope that already has one binding, so the verification step is
// reachable in every test.
func newDiscordSetupFixture(t *testing.T, client *fakeGatewayClient, history *memoryHistoryRepo) *SetupService {
	t.Helper()

	scope := NewProviderScopeService()
	scope.Initialize(capability.Snapshot{DiscordEnabled: true})
	if err := scope.SetSelectedProvider(provider.ProviderDiscord); err != nil {
		t.Fatalf("select discord: %v", err)
	}

	sessions := NewGatewaySessionService(client, 0)
	if err := sessions.InitializeFromConfig(context.Background()); err != nil {
		t.Fatalf("session init: %v", err)
	}

	bindings := NewBindingService(newMemoryBindingRepo(), nil)
	readiness := NewBindingReadinessService(staticBindingCache{
		items: []binding.ChannelBinding{{
			ID:         "b-dc",
			Provider:   provider.ProviderDiscord,
			Transport:  provider.TransportBusinessAPI,
			PeerID:     "guild-1",
			TargetType: binding.TargetAgent,
			TargetID:   "agent-1",
		}},
		loaded:     true,
		caps:       binding.Capabilities{BindingCrudEnabled: true},
		capsLoaded: true,
	})
	targets := NewTargetService(&memoryTargetRepo{})
	draft := NewDraftService(client, bindings, sessions, targets, 10)
	verify := NewVerificationService(history)

	return NewSetupService(scope, sessions, bindings, readiness,
		NewStepSelectionController(), draft, verify, client, nil, 0)
}

func findStep(t *testing.T, states []setup.StepState, key setup.StepKey) setup.StepState {
	t.Helper()
	for _, s := range states {
		if s.Key == key {
			return s
		}
	}
	t.Fatalf("step %s not in %+v", key, states)
	return setup.StepState{}
}

func TestHistoryReadFailureBlocksVerificationStep(t *testing.T) {
	client := &fakeGatewayClient{connectivity: gateway.ConnectivityReady}
	history := newMemoryHistoryRepo()
	history.latestErr = errors.New("verification store unavailable")
	svc := newDiscordSetupFixture(t, client, history)

	state := svc.State(context.Background())

	if got := findStep(t, state.StepStates, setup.StepBinding); got.Status != setup.StepReady {
		t.Fatalf("binding step = %+v, want READY", got)
	}
	verification := findStep(t, state.StepStates, setup.StepVerification)
	if verification.Status != setup.StepBlocked {
		t.Errorf("verification step = %s, want BLOCKED", verification.Status)
	}
	if verification.Detail != "verification store unavailable" {
		t.Errorf("verification detail = %q", verification.Detail)
	}
}

func TestSuccessfulRunClearsHistoryReadFailure(t *testing.T) {
	client := &fakeGatewayClient{connectivity: gateway.ConnectivityReady}
	history := newMemoryHistoryRepo()
	history.latestErr = errors.New("verification store unavailable")
	svc := newDiscordSetupFixture(t, client, history)

	svc.State(context.Background())
	history.latestErr = nil

	result := svc.RunVerification(context.Background())
	if !result.Ready {
		t.Fatalf("verification result = %+v, want ready", result)
	}

	verification := findStep(t, svc.State(context.Background()).StepStates, setup.StepVerification)
	if verification.Status != setup.StepDone {
		t.Errorf("verification step = %s after successful run, want DONE", verification.Status)
	}
}
