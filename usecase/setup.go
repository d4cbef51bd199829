package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/venadolabs/chanbind/domains/binding"
	"github.com/venadolabs/chanbind/domains/capability"
	"github.com/venadolabs/chanbind/domains/gateway"
	"github.com/venadolabs/chanbind/domains/provider"
	"github.com/venadolabs/chanbind/domains/setup"
)

// SetupState is the read model pushed to the surface after every mutation:
// the full step list plus the step the surface should show.
type SetupState struct {
	Provider           provider.Provider `json:"provider"`
	StepStates         []setup.StepState `json:"step_states"`
	ActiveStepKey      setup.StepKey     `json:"active_step_key"`
	GuidedStepKey      setup.StepKey     `json:"guided_step_key"`
	HasManualSelection bool              `json:"has_manual_selection"`
}

// SetupService is the orchestration facade. It wires the scope, session,
// binding, draft, selection and verification collaborators together and is
// the only component the transport layer talks to.
type SetupService struct {
	scope     *ProviderScopeService
	sessions  gateway.ISessionUsecase
	bindings  *BindingService
	readiness *BindingReadinessService
	selection *StepSelectionController
	draft     *DraftService
	verify    *VerificationService

	client   gateway.IClient
	capCache capability.Cache
	capTTL   time.Duration

	mu            sync.Mutex
	wecomAccounts []capability.WeComAccount
	lastVerifyErr string
	initialized   bool

	onChange func(SetupState)
}

func NewSetupService(
	scope *ProviderScopeService,
	sessions gateway.ISessionUsecase,
	bindings *BindingService,
	readiness *BindingReadinessService,
	selection *StepSelectionController,
	draft *DraftService,
	verify *VerificationService,
	client gateway.IClient,
	capCache capability.Cache,
	capTTL time.Duration,
) *SetupService {
	return &SetupService{
		scope:     scope,
		sessions:  sessions,
		bindings:  bindings,
		readiness: readiness,
		selection: selection,
		draft:     draft,
		verify:    verify,
		client:    client,
		capCache:  capCache,
		capTTL:    capTTL,
	}
}

// OnChange registers the callback invoked with a fresh read model after
// every state-changing operation. Used by the websocket hub.
func (s *SetupService) OnChange(fn func(SetupState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Initialize performs the setup surface mount sequence: capability snapshot
// (cache first), provider scope, session status, binding capability and
// binding list. Individual load failures degrade the step states, they do
// not fail the mount.
func (s *SetupService) Initialize(ctx context.Context) error {
	snapshot, err := s.loadCapabilities(ctx, false)
	if err != nil {
		logrus.WithError(err).Warn("[Setup] Capability fetch failed, continuing with defaults")
		snapshot = capability.Snapshot{FetchedAt: time.Now().UTC()}
	}
	s.scope.Initialize(snapshot)

	if snapshot.WeComAppEnabled {
		accounts, err := s.client.GetWeComAccounts(ctx)
		if err != nil {
			logrus.WithError(err).Warn("[Setup] WeCom account fetch failed")
		} else {
			s.mu.Lock()
			s.wecomAccounts = accounts
			s.mu.Unlock()
		}
	}

	if err := s.sessions.InitializeFromConfig(ctx); err != nil {
		logrus.WithError(err).Warn("[Setup] Session status fetch failed")
	}
	if _, err := s.bindings.LoadCapabilities(ctx); err != nil {
		logrus.WithError(err).Warn("[Setup] Binding capability probe failed")
	}
	if _, err := s.bindings.LoadBindingsIfEnabled(ctx); err != nil {
		logrus.WithError(err).Warn("[Setup] Binding load failed")
	}

	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	s.notifyChange()
	return nil
}

func (s *SetupService) loadCapabilities(ctx context.Context, force bool) (capability.Snapshot, error) {
	if !force && s.capCache != nil {
		cached, err := s.capCache.Get(ctx)
		if err != nil {
			logrus.WithError(err).Warn("[Setup] Capability cache read failed")
		} else if cached != nil {
			return *cached, nil
		}
	}

	snapshot, err := s.client.GetCapabilities(ctx)
	if err != nil {
		return capability.Snapshot{}, err
	}
	snapshot.FetchedAt = time.Now().UTC()

	if s.capCache != nil {
		if err := s.capCache.Set(ctx, &snapshot, s.capTTL); err != nil {
			logrus.WithError(err).Warn("[Setup] Capability cache write failed")
		}
	}
	return snapshot, nil
}

// RefreshCapabilities bypasses the cache, re-resolves the provider list and
// revalidates the manual step selection against the possibly new topology.
func (s *SetupService) RefreshCapabilities(ctx context.Context) (capability.Snapshot, error) {
	if s.capCache != nil {
		if err := s.capCache.Invalidate(ctx); err != nil {
			logrus.WithError(err).Warn("[Setup] Capability cache invalidation failed")
		}
	}
	snapshot, err := s.loadCapabilities(ctx, true)
	if err != nil {
		return capability.Snapshot{}, err
	}
	s.scope.Initialize(snapshot)
	s.selection.Revalidate(s.scope.SelectedProvider())
	s.notifyChange()
	return snapshot, nil
}

// SelectProvider switches the whole setup flow to another provider: scope,
// gateway session, manual step selection and binding draft all follow.
func (s *SetupService) SelectProvider(ctx context.Context, p provider.Provider) error {
	if err := s.scope.SetSelectedProvider(p); err != nil {
		return err
	}
	if err := s.sessions.SetSessionProvider(ctx, p); err != nil {
		logrus.WithError(err).Warn("[Setup] Session provider switch failed")
	}
	s.selection.Revalidate(p)
	s.draft.SwitchProvider(p, s.capabilityContext())
	s.notifyChange()
	return nil
}

func (s *SetupService) SelectedProvider() provider.Provider {
	return s.scope.SelectedProvider()
}

func (s *SetupService) ProviderOptions() []ProviderOption {
	return s.scope.Options()
}

func (s *SetupService) capabilityContext() CapabilityContext {
	s.mu.Lock()
	accounts := s.wecomAccounts
	s.mu.Unlock()
	return CapabilityContext{Snapshot: s.scope.Snapshot(), WeComAccounts: accounts}
}

// currentScope is the exact binding namespace of the selected provider. The
// account id comes from the explicit precedence function; when it resolves
// empty the scope carries no account filter.
func (s *SetupService) currentScope() binding.Scope {
	p := s.scope.SelectedProvider()
	draft, _ := s.draft.Current()
	return binding.Scope{
		Provider:  p,
		Transport: provider.TransportFor(p),
		AccountID: ResolveAccountID(p, s.sessions.Session(), s.capabilityContext(), draft),
	}
}

// assembleContext gathers the three resolver snapshots plus the last
// verification outcome into the pure policy input.
func (s *SetupService) assembleContext(ctx context.Context) setup.Context {
	p := s.scope.SelectedProvider()

	var result *setup.VerificationResult
	var historyErr string
	if latest, err := s.verify.Latest(ctx, p); err != nil {
		logrus.WithError(err).Warn("[Setup] Failed to read verification history")
		historyErr = err.Error()
	} else {
		result = latest
	}

	s.mu.Lock()
	if historyErr != "" {
		s.lastVerifyErr = historyErr
	}
	verifyErr := s.lastVerifyErr
	s.mu.Unlock()

	return setup.Context{
		Provider:                p,
		RequiresPersonalSession: provider.RequiresPersonalSession(p),
		Gateway:                 s.sessions.ReadinessSnapshot(p),
		Binding:                 s.readiness.SnapshotForScope(s.currentScope()),
		Verification:            result,
		VerificationError:       verifyErr,
	}
}

// State computes the full read model for the surface.
func (s *SetupService) State(ctx context.Context) SetupState {
	p := s.scope.SelectedProvider()
	states := StepStates(s.assembleContext(ctx))
	return SetupState{
		Provider:           p,
		StepStates:         states,
		ActiveStepKey:      s.selection.ActiveStepKey(p, states),
		GuidedStepKey:      GuidedStepKey(states),
		HasManualSelection: s.selection.HasManualSelection(p),
	}
}

// SelectStep records a manual step selection; false means the step does not
// belong to the current provider's order.
func (s *SetupService) SelectStep(key setup.StepKey) bool {
	accepted := s.selection.RequestStepSelection(s.scope.SelectedProvider(), key)
	if accepted {
		s.notifyChange()
	}
	return accepted
}

func (s *SetupService) ReturnToGuided() {
	s.selection.ReturnToGuidedStep(s.scope.SelectedProvider())
	s.notifyChange()
}

// StartSession starts the personal session for the selected provider and
// pushes the updated step states.
func (s *SetupService) StartSession(ctx context.Context) (*gateway.Session, error) {
	session, err := s.sessions.StartSession(ctx)
	s.notifyChange()
	return session, err
}

func (s *SetupService) StopSession(ctx context.Context) error {
	err := s.sessions.StopSession(ctx)
	s.notifyChange()
	return err
}

// ReloadBindings refreshes the binding capability and list together.
func (s *SetupService) ReloadBindings(ctx context.Context) ([]binding.ChannelBinding, error) {
	if _, err := s.bindings.LoadCapabilities(ctx); err != nil {
		return nil, err
	}
	items, err := s.bindings.LoadBindingsIfEnabled(ctx)
	s.notifyChange()
	return items, err
}

// RunVerification executes the verification runner over freshly assembled
// snapshots. The runner never panics outward; an unexpected evaluation error
// is recorded and blocks the verification step.
func (s *SetupService) RunVerification(ctx context.Context) setup.VerificationResult {
	p := s.scope.SelectedProvider()
	sctx := s.assembleContext(ctx)

	result := s.verify.Run(ctx, p, sctx.RequiresPersonalSession, sctx.Gateway, sctx.Binding)

	s.mu.Lock()
	s.lastVerifyErr = ""
	s.mu.Unlock()

	s.notifyChange()
	return result
}

// ListBindings returns the cached bindings matching the current scope.
func (s *SetupService) ListBindings(ctx context.Context) []binding.ChannelBinding {
	scope := s.currentScope()
	items, _, _, _, _ := s.bindings.CachedState()

	out := make([]binding.ChannelBinding, 0, len(items))
	for _, b := range items {
		if scope.Matches(b) {
			out = append(out, b)
		}
	}
	return out
}

// SaveBinding persists a fully specified binding directly, bypassing the
// draft buffer. Used by callers that already hold a complete record.
func (s *SetupService) SaveBinding(ctx context.Context, b binding.ChannelBinding) (binding.ChannelBinding, error) {
	saved, err := s.bindings.Save(ctx, b)
	if err != nil {
		return binding.ChannelBinding{}, err
	}
	s.notifyChange()
	return saved, nil
}

// LatestVerification returns the last persisted verification result for the
// selected provider, nil when none exists.
func (s *SetupService) LatestVerification(ctx context.Context) (*setup.VerificationResult, error) {
	return s.verify.Latest(ctx, s.scope.SelectedProvider())
}

// Draft exposes the binding draft orchestrator to the transport layer.
func (s *SetupService) Draft() *DraftService {
	return s.draft
}

// StartBindingDraft opens a draft for the selected provider.
func (s *SetupService) StartBindingDraft() Draft {
	d := s.draft.StartDraft(s.scope.SelectedProvider(), s.capabilityContext())
	s.notifyChange()
	return d
}

// SaveBindingDraft saves the draft and refreshes the read model. A stale
// discovery selection surfaces as a conflict error, never a silent save.
func (s *SetupService) SaveBindingDraft(ctx context.Context) (binding.ChannelBinding, error) {
	saved, err := s.draft.Save(ctx)
	if err != nil {
		return binding.ChannelBinding{}, err
	}
	s.notifyChange()
	return saved, nil
}

func (s *SetupService) DeleteBinding(ctx context.Context, id string) error {
	if err := s.draft.Delete(ctx, id); err != nil {
		return err
	}
	s.notifyChange()
	return nil
}

// Shutdown stops background work owned by the setup flow.
func (s *SetupService) Shutdown(reason string) {
	s.sessions.StopSessionStatusAutoSync(reason)
}

func (s *SetupService) notifyChange() {
	s.mu.Lock()
	fn := s.onChange
	initialized := s.initialized
	s.mu.Unlock()

	if fn == nil || !initialized {
		return
	}
	fn(s.State(context.Background()))
}
