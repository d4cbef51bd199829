package usecase

import (
	"sync"

	"github.com/sirupsen/logrus"
	pkgError "github.com/venadolabs/chanbind/pkg/error"
	"github.com/venadolabs/chanbind/domains/capability"
	"github.com/venadolabs/chanbind/domains/provider"
)

// ProviderOption is one selectable provider with its derived defaults.
type ProviderOption struct {
	Provider                provider.Provider  `json:"provider"`
	Transport               provider.Transport `json:"transport"`
	RequiresPersonalSession bool               `json:"requires_personal_session"`
	AccountID               string             `json:"account_id,omitempty"`
}

// ProviderScopeService resolves the selectable providers and the
// transport/account defaults from the capability snapshot. It owns the
// selected-provider state; everything else reads it.
type ProviderScopeService struct {
	mu        sync.RWMutex
	loaded    bool
	snapshot  capability.Snapshot
	available []provider.Provider
	selected  provider.Provider
}

func NewProviderScopeService() *ProviderScopeService {
	return &ProviderScopeService{
		available: []provider.Provider{provider.ProviderWhatsApp},
		selected:  provider.ProviderWhatsApp,
	}
}

// Initialize applies a freshly fetched capability snapshot. If the
// previously selected provider is no longer available, selection falls back
// to the first available provider instead of dangling on an invalid one.
func (s *ProviderScopeService) Initialize(snapshot capability.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot = snapshot
	s.available = snapshot.AvailableProviders()
	s.loaded = true

	if !s.containsLocked(s.selected) {
		old := s.selected
		s.selected = s.available[0]
		logrus.Infof("[ProviderScope] Selected provider %s no longer available, falling back to %s", old, s.selected)
	}
}

func (s *ProviderScopeService) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded
}

func (s *ProviderScopeService) containsLocked(p provider.Provider) bool {
	for _, a := range s.available {
		if a == p {
			return true
		}
	}
	return false
}

// SetSelectedProvider switches the active provider scope. Unknown or
// unavailable providers are rejected.
func (s *ProviderScopeService) SetSelectedProvider(p provider.Provider) error {
	if !provider.IsValid(p) {
		return pkgError.BadRequestError("unknown provider: " + string(p))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.containsLocked(p) {
		return pkgError.BadRequestError("provider not available: " + string(p))
	}
	s.selected = p
	return nil
}

func (s *ProviderScopeService) SelectedProvider() provider.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

func (s *ProviderScopeService) AvailableProviders() []provider.Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]provider.Provider, len(s.available))
	copy(out, s.available)
	return out
}

func (s *ProviderScopeService) optionLocked(p provider.Provider) ProviderOption {
	return ProviderOption{
		Provider:                p,
		Transport:               provider.TransportFor(p),
		RequiresPersonalSession: provider.RequiresPersonalSession(p),
		AccountID:               s.accountIDLocked(p),
	}
}

func (s *ProviderScopeService) accountIDLocked(p provider.Provider) string {
	switch p {
	case provider.ProviderDiscord:
		return s.snapshot.DiscordAccountID
	case provider.ProviderTelegram:
		return s.snapshot.TelegramAccountID
	}
	return ""
}

func (s *ProviderScopeService) Options() []ProviderOption {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProviderOption, 0, len(s.available))
	for _, p := range s.available {
		out = append(out, s.optionLocked(p))
	}
	return out
}

func (s *ProviderScopeService) SelectedOption() ProviderOption {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.optionLocked(s.selected)
}

func (s *ProviderScopeService) RequiresPersonalSession() bool {
	return provider.RequiresPersonalSession(s.SelectedProvider())
}

func (s *ProviderScopeService) ResolvedTransport() provider.Transport {
	return provider.TransportFor(s.SelectedProvider())
}

// AccountIDFor returns the capability-sourced account id for bot-account
// providers (Discord/Telegram), empty otherwise.
func (s *ProviderScopeService) AccountIDFor(p provider.Provider) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountIDLocked(p)
}

func (s *ProviderScopeService) Snapshot() capability.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}
