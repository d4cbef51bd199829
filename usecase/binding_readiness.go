package usecase

import (
	"github.com/venadolabs/chanbind/domains/binding"
)

// bindingCache is what the readiness resolver needs from the CRUD service.
type bindingCache interface {
	CachedState() (items []binding.ChannelBinding, loaded bool, loadErr string, caps binding.Capabilities, capsLoaded bool)
}

// BindingReadinessService derives binding readiness for one exact
// (provider, transport, account) scope. It is a pure read over the CRUD
// service's cache; it never fetches.
type BindingReadinessService struct {
	cache bindingCache
}

func NewBindingReadinessService(cache bindingCache) *BindingReadinessService {
	return &BindingReadinessService{cache: cache}
}

// SnapshotForScope computes the readiness snapshot. Capability gates
// everything: with CRUD disabled the scope is blocked regardless of cached
// bindings. Bindings from another provider or account scope never count.
func (s *BindingReadinessService) SnapshotForScope(scope binding.Scope) binding.ReadinessSnapshot {
	items, loaded, loadErr, caps, capsLoaded := s.cache.CachedState()

	snap := binding.ReadinessSnapshot{}
	if !capsLoaded {
		// Nothing fetched yet: distinct from both "empty" and "failed".
		return snap
	}
	snap.Loaded = true
	snap.CapabilityEnabled = caps.BindingCrudEnabled
	if !caps.BindingCrudEnabled {
		reason := caps.Reason
		if reason == "" {
			reason = "channel binding API is unavailable on the server"
		}
		snap.CapabilityBlockedReason = reason
		return snap
	}

	if loadErr != "" {
		snap.BindingsLoaded = true
		snap.BindingError = loadErr
		return snap
	}
	if !loaded {
		return snap
	}
	snap.BindingsLoaded = true

	for _, b := range items {
		if scope.Matches(b) {
			snap.HasBindings = true
			break
		}
	}
	return snap
}
