package usecase

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/venadolabs/chanbind/domains/binding"
)

// BindingService is the binding CRUD collaborator. It owns the local binding
// cache; the cache is only refreshed by explicit load calls, never
// implicitly.
type BindingService struct {
	repo binding.IBindingRepository

	// Server-side capability probe. Injected so deployments where binding
	// CRUD is centrally disabled can report a structured reason.
	capabilityProbe func(ctx context.Context) (binding.Capabilities, error)

	mu         sync.RWMutex
	caps       binding.Capabilities
	capsLoaded bool
	bindings   []binding.ChannelBinding
	loaded     bool
	loadErr    string
}

func NewBindingService(repo binding.IBindingRepository, capabilityProbe func(ctx context.Context) (binding.Capabilities, error)) *BindingService {
	if capabilityProbe == nil {
		capabilityProbe = func(ctx context.Context) (binding.Capabilities, error) {
			return binding.Capabilities{BindingCrudEnabled: true}, nil
		}
	}
	return &BindingService{repo: repo, capabilityProbe: capabilityProbe}
}

func (s *BindingService) LoadCapabilities(ctx context.Context) (binding.Capabilities, error) {
	caps, err := s.capabilityProbe(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.caps = binding.Capabilities{BindingCrudEnabled: false, Reason: err.Error()}
		s.capsLoaded = true
		return s.caps, nil
	}
	s.caps = caps
	s.capsLoaded = true
	return caps, nil
}

// LoadBindingsIfEnabled refreshes the local binding cache when CRUD is
// enabled. With CRUD disabled it returns an empty list without touching
// storage.
func (s *BindingService) LoadBindingsIfEnabled(ctx context.Context) ([]binding.ChannelBinding, error) {
	s.mu.RLock()
	enabled := !s.capsLoaded || s.caps.BindingCrudEnabled
	s.mu.RUnlock()

	if !enabled {
		return nil, nil
	}

	items, err := s.repo.List(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		logrus.WithError(err).Error("[Binding] Failed to load bindings")
		s.loadErr = err.Error()
		s.loaded = true
		return nil, err
	}
	s.bindings = items
	s.loaded = true
	s.loadErr = ""
	return items, nil
}

func (s *BindingService) Save(ctx context.Context, b binding.ChannelBinding) (binding.ChannelBinding, error) {
	if err := s.repo.Save(ctx, &b); err != nil {
		return binding.ChannelBinding{}, err
	}

	// Keep the cache coherent without a full reload.
	s.mu.Lock()
	replaced := false
	for i := range s.bindings {
		if s.bindings[i].ID == b.ID {
			s.bindings[i] = b
			replaced = true
			break
		}
	}
	if !replaced {
		s.bindings = append(s.bindings, b)
	}
	s.mu.Unlock()
	return b, nil
}

func (s *BindingService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	for i := range s.bindings {
		if s.bindings[i].ID == id {
			s.bindings = append(s.bindings[:i], s.bindings[i+1:]...)
			break
		}
	}
	s.mu.Unlock()
	return nil
}

// CachedState exposes the cache to the readiness resolver: bindings, whether
// a load has completed, the last load error, and the capability state.
func (s *BindingService) CachedState() ([]binding.ChannelBinding, bool, string, binding.Capabilities, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	items := make([]binding.ChannelBinding, len(s.bindings))
	copy(items, s.bindings)
	return items, s.loaded, s.loadErr, s.caps, s.capsLoaded
}
