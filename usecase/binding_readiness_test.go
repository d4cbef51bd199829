package usecase

import (
	"testing"

	"github.com/venadolabs/chanbind/domains/binding"
	"github.com/venadolabs/chanbind/domains/provider"
	"github.com/venadolabs/chanbind/domains/setup"
)

func whatsappBinding(account string) binding.ChannelBinding {
	return binding.ChannelBinding{
		ID:        "b-wa",
		Provider:  provider.ProviderWhatsApp,
		Transport: provider.TransportPersonalSession,
		AccountID: account,
		PeerID:    "peer-1",
		TargetType: binding.TargetAgent,
		TargetID:  "agent-1",
	}
}

func TestCrossScopeBindingsNeverLeak(t *testing.T) {
	cache := staticBindingCache{
		items:      []binding.ChannelBinding{whatsappBinding("home-whatsapp")},
		loaded:     true,
		caps:       binding.Capabilities{BindingCrudEnabled: true},
		capsLoaded: true,
	}
	s := NewBindingReadinessService(cache)

	snap := s.SnapshotForScope(binding.Scope{
		Provider:  provider.ProviderDiscord,
		Transport: provider.TransportBusinessAPI,
		AccountID: "discord-1",
	})

	if snap.HasBindings {
		t.Fatal("WhatsApp binding leaked into Discord scope")
	}
	if !snap.Loaded || !snap.CapabilityEnabled {
		t.Errorf("snapshot = %+v, want loaded and enabled", snap)
	}
}

func TestAccountScopeIsExactWhenKnown(t *testing.T) {
	cache := staticBindingCache{
		items:      []binding.ChannelBinding{whatsappBinding("home-whatsapp")},
		loaded:     true,
		caps:       binding.Capabilities{BindingCrudEnabled: true},
		capsLoaded: true,
	}
	s := NewBindingReadinessService(cache)

	matching := s.SnapshotForScope(binding.Scope{
		Provider:  provider.ProviderWhatsApp,
		Transport: provider.TransportPersonalSession,
		AccountID: "home-whatsapp",
	})
	if !matching.HasBindings {
		t.Error("exact account scope missed its own binding")
	}

	other := s.SnapshotForScope(binding.Scope{
		Provider:  provider.ProviderWhatsApp,
		Transport: provider.TransportPersonalSession,
		AccountID: "work-whatsapp",
	})
	if other.HasBindings {
		t.Error("binding matched a different account scope")
	}

	// Empty account id means no filter, only meaningful pre-session.
	any := s.SnapshotForScope(binding.Scope{
		Provider:  provider.ProviderWhatsApp,
		Transport: provider.TransportPersonalSession,
	})
	if !any.HasBindings {
		t.Error("unfiltered scope should see the provider's bindings")
	}
}

func TestCapabilityDisabledGatesEverything(t *testing.T) {
	cache := staticBindingCache{
		items:      []binding.ChannelBinding{whatsappBinding("home-whatsapp")},
		loaded:     true,
		caps:       binding.Capabilities{BindingCrudEnabled: false, Reason: "binding API disabled"},
		capsLoaded: true,
	}
	s := NewBindingReadinessService(cache)

	snap := s.SnapshotForScope(binding.Scope{
		Provider:  provider.ProviderWhatsApp,
		Transport: provider.TransportPersonalSession,
	})

	if snap.CapabilityEnabled || snap.HasBindings {
		t.Errorf("snapshot = %+v, want disabled with no bindings", snap)
	}
	if snap.CapabilityBlockedReason != "binding API disabled" {
		t.Errorf("reason = %q", snap.CapabilityBlockedReason)
	}
}

func TestNotYetLoadedIsDistinctFromEmpty(t *testing.T) {
	s := NewBindingReadinessService(staticBindingCache{})

	snap := s.SnapshotForScope(binding.Scope{
		Provider:  provider.ProviderWhatsApp,
		Transport: provider.TransportPersonalSession,
	})
	if snap.Loaded {
		t.Error("nothing fetched yet must report Loaded=false")
	}
}

func TestCapabilityLoadedListNotFetchedStillChecking(t *testing.T) {
	cache := staticBindingCache{
		caps:       binding.Capabilities{BindingCrudEnabled: true},
		capsLoaded: true,
	}
	s := NewBindingReadinessService(cache)

	snap := s.SnapshotForScope(binding.Scope{
		Provider:  provider.ProviderWhatsApp,
		Transport: provider.TransportPersonalSession,
	})
	if !snap.Loaded || !snap.CapabilityEnabled {
		t.Fatalf("snapshot = %+v, want capability loaded and enabled", snap)
	}
	if snap.BindingsLoaded {
		t.Error("unfetched binding list reported as loaded")
	}

	// The step renders "checking", not "create a binding".
	step := stepByKey(t, StepStates(setup.Context{
		Provider: provider.ProviderWhatsApp,
		Gateway:  readySession(),
		Binding:  snap,
	}), setup.StepBinding)
	if step.Status != setup.StepPending || step.Detail != "checking binding availability" {
		t.Errorf("binding step = %s (%q), want PENDING checking", step.Status, step.Detail)
	}
}

func TestLoadedEmptyListAsksForBinding(t *testing.T) {
	cache := staticBindingCache{
		loaded:     true,
		caps:       binding.Capabilities{BindingCrudEnabled: true},
		capsLoaded: true,
	}
	s := NewBindingReadinessService(cache)

	snap := s.SnapshotForScope(binding.Scope{
		Provider:  provider.ProviderWhatsApp,
		Transport: provider.TransportPersonalSession,
	})
	if !snap.BindingsLoaded || snap.HasBindings {
		t.Fatalf("snapshot = %+v, want loaded empty", snap)
	}

	step := stepByKey(t, StepStates(setup.Context{
		Provider: provider.ProviderWhatsApp,
		Gateway:  readySession(),
		Binding:  snap,
	}), setup.StepBinding)
	if step.Status != setup.StepPending || step.Detail != "create a channel binding" {
		t.Errorf("binding step = %s (%q), want PENDING create", step.Status, step.Detail)
	}
}

func TestLoadErrorSurfacesAsBindingError(t *testing.T) {
	cache := staticBindingCache{
		loaded:     true,
		loadErr:    "binding query failed",
		caps:       binding.Capabilities{BindingCrudEnabled: true},
		capsLoaded: true,
	}
	s := NewBindingReadinessService(cache)

	snap := s.SnapshotForScope(binding.Scope{
		Provider:  provider.ProviderWhatsApp,
		Transport: provider.TransportPersonalSession,
	})
	if snap.BindingError != "binding query failed" {
		t.Errorf("binding error = %q", snap.BindingError)
	}
	if snap.HasBindings {
		t.Error("errored load must not report bindings")
	}
}
