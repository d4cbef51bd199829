package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/venadolabs/chanbind/domains/binding"
	"github.com/venadolabs/chanbind/domains/capability"
	"github.com/venadolabs/chanbind/domains/gateway"
	"github.com/venadolabs/chanbind/domains/provider"
	pkgError "github.com/venadolabs/chanbind/pkg/error"
)

type PeerInputMode string

const (
	PeerInputManual    PeerInputMode = "manual"
	PeerInputDiscovery PeerInputMode = "discovery"
)

// Draft is the transient editing buffer for one channel binding. It is
// created when entering the binding step and discarded on leaving it or on a
// successful save.
type Draft struct {
	ID                     string             `json:"id,omitempty"`
	Provider               provider.Provider  `json:"provider"`
	Transport              provider.Transport `json:"transport"`
	AccountID              string             `json:"account_id"`
	PeerID                 string             `json:"peer_id"`
	ThreadID               string             `json:"thread_id,omitempty"`
	TargetType             binding.TargetType `json:"target_type"`
	TargetID               string             `json:"target_id"`
	AllowTransportFallback bool               `json:"allow_transport_fallback"`
}

// CapabilityContext bundles the inputs ResolveAccountID needs beyond the
// session: the capability snapshot and the WeCom account list.
type CapabilityContext struct {
	Snapshot      capability.Snapshot
	WeComAccounts []capability.WeComAccount
}

// ResolveAccountID is the single explicit account-id priority function. A
// manual override in the draft always wins; after that each provider has
// exactly one source of truth:
//
//	WHATSAPP / WECHAT  label of the active session bound to that provider
//	DISCORD / TELEGRAM id from the capability snapshot
//	WECOM              the sole configured account, when exactly one exists
//
// Anything unresolved stays empty.
func ResolveAccountID(p provider.Provider, session *gateway.Session, caps CapabilityContext, draft Draft) string {
	if draft.AccountID != "" {
		return draft.AccountID
	}
	switch p {
	case provider.ProviderWhatsApp, provider.ProviderWeChat:
		if session != nil && session.Provider == p {
			return session.AccountLabel
		}
	case provider.ProviderDiscord:
		return caps.Snapshot.DiscordAccountID
	case provider.ProviderTelegram:
		return caps.Snapshot.TelegramAccountID
	case provider.ProviderWeCom:
		if len(caps.WeComAccounts) == 1 {
			a := caps.WeComAccounts[0]
			return fmt.Sprintf("%s:%s", a.CorpID, a.AgentID)
		}
	}
	return ""
}

// DraftService orchestrates one in-progress binding edit. It owns the draft,
// the peer input mode, and the discovery candidate caches; all persistence
// goes through the binding CRUD collaborator.
type DraftService struct {
	mu sync.Mutex

	client   gateway.IClient
	bindings binding.IBindingUsecase
	session  gateway.ISessionUsecase
	targets  binding.ITargetUsecase

	peerLimit int

	active bool
	draft  Draft
	mode   PeerInputMode

	peerCandidates   []gateway.PeerCandidate
	candidatesLoaded bool
	// loadGen invalidates in-flight candidate fetches when the scope changes
	// before they resolve.
	loadGen uint64

	targetOptions []binding.TargetOption
	targetsLoaded bool

	staleSelectionErr string
}

func NewDraftService(client gateway.IClient, bindings binding.IBindingUsecase, session gateway.ISessionUsecase, targets binding.ITargetUsecase, peerLimit int) *DraftService {
	if peerLimit <= 0 {
		peerLimit = 50
	}
	return &DraftService{
		client:    client,
		bindings:  bindings,
		session:   session,
		targets:   targets,
		peerLimit: peerLimit,
		mode:      PeerInputManual,
	}
}

// StartDraft opens a fresh editing buffer for the provider, deriving the
// transport, default account id and default peer input mode.
func (s *DraftService) StartDraft(p provider.Provider, caps CapabilityContext) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	s.resetForProviderLocked(p, caps)
	return s.draft
}

// StartDraftFrom opens an editing buffer over an existing binding.
func (s *DraftService) StartDraftFrom(b binding.ChannelBinding, caps CapabilityContext) Draft {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = true
	s.resetForProviderLocked(b.Provider, caps)
	s.draft = Draft{
		ID:                     b.ID,
		Provider:               b.Provider,
		Transport:              b.Transport,
		AccountID:              b.AccountID,
		PeerID:                 b.PeerID,
		ThreadID:               b.ThreadID,
		TargetType:             b.TargetType,
		TargetID:               b.TargetID,
		AllowTransportFallback: b.AllowTransportFallback,
	}
	return s.draft
}

// Discard drops the draft and everything derived from it.
func (s *DraftService) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discardLocked()
}

func (s *DraftService) discardLocked() {
	s.active = false
	s.draft = Draft{}
	s.mode = PeerInputManual
	s.clearPeerStateLocked()
	s.staleSelectionErr = ""
}

// SwitchProvider resets peer selection state unconditionally and re-derives
// the default mode and account id for the new provider.
func (s *DraftService) SwitchProvider(p provider.Provider, caps CapabilityContext) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return
	}
	s.resetForProviderLocked(p, caps)
}

func (s *DraftService) resetForProviderLocked(p provider.Provider, caps CapabilityContext) {
	transport := provider.TransportFor(p)
	targetType := binding.TargetAgent

	s.draft = Draft{
		Provider:   p,
		Transport:  transport,
		TargetType: targetType,
	}
	s.draft.AccountID = ResolveAccountID(p, s.currentSession(), caps, s.draft)

	s.clearPeerStateLocked()
	s.staleSelectionErr = ""

	if s.discoverySupportedLocked(p, transport) {
		s.mode = PeerInputDiscovery
	} else {
		s.mode = PeerInputManual
	}
}

func (s *DraftService) clearPeerStateLocked() {
	s.draft.PeerID = ""
	s.draft.ThreadID = ""
	s.peerCandidates = nil
	s.candidatesLoaded = false
	s.loadGen++
}

func (s *DraftService) currentSession() *gateway.Session {
	if s.session == nil {
		return nil
	}
	return s.session.Session()
}

// discoverySupportedLocked is the topology check plus, for session-based
// providers, the live session requirement.
func (s *DraftService) discoverySupportedLocked(p provider.Provider, t provider.Transport) bool {
	if !provider.SupportsPeerDiscovery(p, t) {
		return false
	}
	if !provider.RequiresPersonalSession(p) {
		return true
	}
	sess := s.currentSession()
	return sess != nil && sess.Provider == p && sess.Status == gateway.SessionActive
}

// CanDiscoverPeers reports whether discovery is actually runnable right now:
// gateway ready, and for session providers a matching active session.
func (s *DraftService) CanDiscoverPeers() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return false
	}
	if s.session == nil || s.session.GatewayStatus() != gateway.ConnectivityReady {
		return false
	}
	return s.discoverySupportedLocked(s.draft.Provider, s.draft.Transport)
}

func (s *DraftService) PeerInputMode() PeerInputMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mode
}

// SetPeerInputMode toggles manual vs discovery input. Discovery is rejected
// when the current provider/transport does not support it.
func (s *DraftService) SetPeerInputMode(mode PeerInputMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch mode {
	case PeerInputManual:
		s.mode = PeerInputManual
		return nil
	case PeerInputDiscovery:
		if !s.discoverySupportedLocked(s.draft.Provider, s.draft.Transport) {
			return pkgError.BadRequestError(fmt.Sprintf("peer discovery is not supported for %s over %s", s.draft.Provider, s.draft.Transport))
		}
		s.mode = PeerInputDiscovery
		return nil
	default:
		return pkgError.ValidationError(fmt.Sprintf("unknown peer input mode: %s", mode))
	}
}

// ReloadPeerCandidates fetches the peer candidate list for the current
// scope. A result that arrives after the scope changed is discarded so a
// stale fetch can never repopulate the new scope's list.
func (s *DraftService) ReloadPeerCandidates(ctx context.Context) ([]gateway.PeerCandidate, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil, pkgError.BadRequestError("no binding draft in progress")
	}
	if !s.discoverySupportedLocked(s.draft.Provider, s.draft.Transport) {
		s.mu.Unlock()
		return nil, pkgError.BadRequestError(fmt.Sprintf("peer discovery is not supported for %s over %s", s.draft.Provider, s.draft.Transport))
	}
	p := s.draft.Provider
	gen := s.loadGen
	sessionID := ""
	if sess := s.currentSession(); sess != nil {
		sessionID = sess.SessionID
	}
	limit := s.peerLimit
	s.mu.Unlock()

	result, err := s.client.GetPeerCandidates(ctx, p, sessionID, gateway.PeerQuery{IncludeGroups: true, Limit: limit})
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.loadGen {
		logrus.Debugf("[Draft] Discarding peer candidates for %s, scope changed during fetch", p)
		return nil, nil
	}
	s.peerCandidates = result.Items
	s.candidatesLoaded = true
	s.invalidateMissingPeerSelectionLocked()
	return result.Items, nil
}

// invalidateMissingPeerSelectionLocked clears a selected peer whose key no
// longer appears among the freshly loaded candidates and records the stale
// selection error for the surface.
func (s *DraftService) invalidateMissingPeerSelectionLocked() {
	if s.mode != PeerInputDiscovery || s.draft.PeerID == "" {
		return
	}
	if s.findCandidateLocked(s.draft.PeerID) == nil {
		logrus.Infof("[Draft] Selected peer %s disappeared from reloaded candidates", s.draft.PeerID)
		s.staleSelectionErr = "selection is outdated, refresh and reselect"
	}
}

func (s *DraftService) findCandidateLocked(peerID string) *gateway.PeerCandidate {
	for i := range s.peerCandidates {
		if s.peerCandidates[i].PeerID == peerID {
			return &s.peerCandidates[i]
		}
	}
	return nil
}

func (s *DraftService) PeerCandidates() []gateway.PeerCandidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]gateway.PeerCandidate, len(s.peerCandidates))
	copy(out, s.peerCandidates)
	return out
}

// SelectPeer writes a discovered peer into the draft after validating it
// against the currently loaded candidate list.
func (s *DraftService) SelectPeer(peerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.mode != PeerInputDiscovery {
		return pkgError.BadRequestError("peer selection requires discovery mode")
	}
	candidate := s.findCandidateLocked(peerID)
	if candidate == nil {
		return pkgError.BadRequestError(fmt.Sprintf("peer %s is not among the loaded candidates", peerID))
	}
	s.draft.PeerID = candidate.PeerID
	s.draft.ThreadID = candidate.ThreadID
	s.staleSelectionErr = ""
	return nil
}

// SetManualPeer writes a hand-entered peer id into the draft.
func (s *DraftService) SetManualPeer(peerID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return pkgError.BadRequestError("no binding draft in progress")
	}
	if s.mode != PeerInputManual {
		return pkgError.BadRequestError("manual peer entry requires manual mode")
	}
	s.draft.PeerID = peerID
	s.draft.ThreadID = threadID
	s.staleSelectionErr = ""
	return nil
}

func (s *DraftService) SetAccountID(accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return pkgError.BadRequestError("no binding draft in progress")
	}
	s.draft.AccountID = accountID
	return nil
}

func (s *DraftService) SetAllowTransportFallback(allow bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return pkgError.BadRequestError("no binding draft in progress")
	}
	s.draft.AllowTransportFallback = allow
	return nil
}

// SetTargetType switches between agent and team targets. For providers that
// only support agent targets the value is forced back to AGENT no matter how
// the caller reached this path.
func (s *DraftService) SetTargetType(t binding.TargetType) (binding.TargetType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return "", pkgError.BadRequestError("no binding draft in progress")
	}
	if t != binding.TargetAgent && t != binding.TargetTeam {
		t = binding.TargetAgent
	}
	if provider.AgentTargetsOnly(s.draft.Provider) && t != binding.TargetAgent {
		logrus.Infof("[Draft] %s only supports agent targets, resetting target type", s.draft.Provider)
		t = binding.TargetAgent
	}
	if t != s.draft.TargetType {
		s.draft.TargetType = t
		s.clearDanglingTargetLocked()
	}
	return s.draft.TargetType, nil
}

// ReloadTargetOptions refreshes the agent/team option list and clears a
// selected target that fell out of scope.
func (s *DraftService) ReloadTargetOptions(ctx context.Context) ([]binding.TargetOption, error) {
	opts, err := s.targets.LoadTargetOptions(ctx)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targetOptions = opts
	s.targetsLoaded = true
	s.clearDanglingTargetLocked()
	return s.filteredTargetOptionsLocked(), nil
}

// FilteredTargetOptions returns the loaded options matching the draft's
// current target type.
func (s *DraftService) FilteredTargetOptions() []binding.TargetOption {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.filteredTargetOptionsLocked()
}

func (s *DraftService) filteredTargetOptionsLocked() []binding.TargetOption {
	out := make([]binding.TargetOption, 0, len(s.targetOptions))
	for _, opt := range s.targetOptions {
		if opt.TargetType == s.draft.TargetType {
			out = append(out, opt)
		}
	}
	return out
}

func (s *DraftService) clearDanglingTargetLocked() {
	if s.draft.TargetID == "" || !s.targetsLoaded {
		return
	}
	for _, opt := range s.filteredTargetOptionsLocked() {
		if opt.TargetID == s.draft.TargetID {
			return
		}
	}
	logrus.Debugf("[Draft] Clearing target %s, no longer among filtered options", s.draft.TargetID)
	s.draft.TargetID = ""
}

// SelectTarget writes a target selection after validating it against the
// filtered option list.
func (s *DraftService) SelectTarget(targetID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.targetsLoaded {
		return pkgError.BadRequestError("target options have not been loaded")
	}
	for _, opt := range s.filteredTargetOptionsLocked() {
		if opt.TargetID == targetID {
			s.draft.TargetID = targetID
			return nil
		}
	}
	return pkgError.BadRequestError(fmt.Sprintf("target %s is not among the available %s options", targetID, s.draft.TargetType))
}

// Current returns a copy of the draft buffer.
func (s *DraftService) Current() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft, s.active
}

// StaleSelectionError returns the recorded stale-selection message, empty
// when selections are believed fresh.
func (s *DraftService) StaleSelectionError() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.staleSelectionErr
}

// AssertSelectionsFresh verifies that discovery-based selections still
// resolve against the loaded candidate list. It fails when the selected key
// disappeared or when the draft's peer/thread pair no longer matches the
// resolved candidate.
func (s *DraftService) AssertSelectionsFresh() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.assertSelectionsFreshLocked()
}

func (s *DraftService) assertSelectionsFreshLocked() error {
	if s.mode != PeerInputDiscovery {
		return nil
	}
	if !s.candidatesLoaded {
		s.staleSelectionErr = "selection is outdated, refresh and reselect"
		return pkgError.StaleSelectionError(s.staleSelectionErr)
	}
	candidate := s.findCandidateLocked(s.draft.PeerID)
	if candidate == nil || candidate.ThreadID != s.draft.ThreadID {
		s.staleSelectionErr = "selection is outdated, refresh and reselect"
		return pkgError.StaleSelectionError(s.staleSelectionErr)
	}
	return nil
}

// Save validates the draft, enforces discovery freshness, dispatches through
// the binding CRUD collaborator and discards the buffer on success.
func (s *DraftService) Save(ctx context.Context) (binding.ChannelBinding, error) {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return binding.ChannelBinding{}, pkgError.BadRequestError("no binding draft in progress")
	}
	if err := validateDraftLocked(s.draft); err != nil {
		s.mu.Unlock()
		return binding.ChannelBinding{}, err
	}
	if err := s.assertSelectionsFreshLocked(); err != nil {
		s.mu.Unlock()
		return binding.ChannelBinding{}, err
	}
	d := s.draft
	s.mu.Unlock()

	saved, err := s.bindings.Save(ctx, binding.ChannelBinding{
		ID:                     d.ID,
		Provider:               d.Provider,
		Transport:              d.Transport,
		AccountID:              d.AccountID,
		PeerID:                 d.PeerID,
		ThreadID:               d.ThreadID,
		TargetType:             d.TargetType,
		TargetID:               d.TargetID,
		AllowTransportFallback: d.AllowTransportFallback,
	})
	if err != nil {
		return binding.ChannelBinding{}, err
	}

	s.mu.Lock()
	s.discardLocked()
	s.mu.Unlock()
	logrus.Infof("[Draft] Saved binding %s for %s peer %s", saved.ID, saved.Provider, saved.PeerID)
	return saved, nil
}

// Delete removes a persisted binding through the CRUD collaborator. The
// draft buffer is untouched unless it was editing the deleted binding.
func (s *DraftService) Delete(ctx context.Context, id string) error {
	if err := s.bindings.Delete(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	if s.active && s.draft.ID == id {
		s.discardLocked()
	}
	s.mu.Unlock()
	return nil
}

func validateDraftLocked(d Draft) error {
	if !provider.IsValid(d.Provider) {
		return pkgError.ValidationError(fmt.Sprintf("invalid provider: %s", d.Provider))
	}
	if d.PeerID == "" {
		return pkgError.ValidationError("peer id is required")
	}
	if d.TargetID == "" {
		return pkgError.ValidationError("target is required")
	}
	if provider.AgentTargetsOnly(d.Provider) && d.TargetType != binding.TargetAgent {
		return pkgError.ValidationError(fmt.Sprintf("%s bindings only support agent targets", d.Provider))
	}
	return nil
}
