package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/venadolabs/chanbind/domains/gateway"
	"github.com/venadolabs/chanbind/domains/provider"
	infraGateway "github.com/venadolabs/chanbind/infrastructure/gateway"
)

// GatewaySessionService owns the gateway session sub-resource: connectivity
// status, the current personal session, and the periodic status auto-sync.
// Readiness is derived on every read and never stored.
type GatewaySessionService struct {
	client       gateway.IClient
	syncInterval time.Duration

	mu              sync.RWMutex
	gatewayStatus   gateway.ConnectivityStatus
	gatewayDetail   string
	session         *gateway.Session
	sessionProvider provider.Provider
	blockedCode     gateway.BlockedReasonCode
	blockedReason   string

	syncMu     sync.Mutex
	syncCancel context.CancelFunc
}

func NewGatewaySessionService(client gateway.IClient, syncInterval time.Duration) *GatewaySessionService {
	if syncInterval <= 0 {
		syncInterval = 5 * time.Second
	}
	return &GatewaySessionService{
		client:        client,
		syncInterval:  syncInterval,
		gatewayStatus: gateway.ConnectivityUnknown,
	}
}

// InitializeFromConfig performs the first status fetch. Connectivity errors
// degrade to an ERROR status instead of failing initialization; the setup
// flow must stay renderable with an unreachable gateway.
func (s *GatewaySessionService) InitializeFromConfig(ctx context.Context) error {
	s.refreshStatus(ctx)
	return nil
}

func (s *GatewaySessionService) refreshStatus(ctx context.Context) {
	session, status, err := s.client.GetSessionStatus(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.gatewayStatus = gateway.ConnectivityError
		s.gatewayDetail = err.Error()
		if clientErr, ok := err.(*infraGateway.ClientError); ok {
			s.gatewayDetail = clientErr.Message
		}
		return
	}

	s.gatewayStatus = status
	s.gatewayDetail = ""
	s.session = session
	if session != nil {
		s.sessionProvider = session.Provider
	}
}

// SetSessionProvider records which provider the session flow is targeting.
// A session bound to a different provider is stopped; the gateway keeps at
// most one personal session alive. A start failure recorded for the previous
// provider does not carry over: the new provider begins with a clean slate,
// except PERSONAL_MODE_DISABLED which describes the server, not the provider.
func (s *GatewaySessionService) SetSessionProvider(ctx context.Context, p provider.Provider) error {
	if !provider.IsValid(p) {
		return fmt.Errorf("unknown provider: %s", p)
	}

	s.mu.Lock()
	current := s.session
	if s.sessionProvider != p && s.blockedCode != gateway.ReasonPersonalModeDisabled {
		s.blockedCode = gateway.ReasonNone
		s.blockedReason = ""
	}
	s.sessionProvider = p
	s.mu.Unlock()

	if current != nil && current.Provider != p {
		logrus.Infof("[GatewaySession] Provider switched to %s, stopping session %s (%s)", p, current.SessionID, current.Provider)
		if err := s.client.StopSession(ctx, current.SessionID); err != nil {
			logrus.WithError(err).Warn("[GatewaySession] Failed to stop previous session")
		}
		s.mu.Lock()
		s.session = nil
		s.mu.Unlock()
	}
	return nil
}

func (s *GatewaySessionService) StartSession(ctx context.Context) (*gateway.Session, error) {
	s.mu.RLock()
	p := s.sessionProvider
	s.mu.RUnlock()

	if p == "" {
		return nil, fmt.Errorf("no session provider selected")
	}

	session, err := s.client.StartSession(ctx, p)
	if err != nil {
		s.applyStartError(err)
		return nil, err
	}

	s.mu.Lock()
	s.session = session
	s.blockedCode = gateway.ReasonNone
	s.blockedReason = ""
	s.mu.Unlock()
	return session, nil
}

func (s *GatewaySessionService) applyStartError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if clientErr, ok := err.(*infraGateway.ClientError); ok {
		s.blockedReason = clientErr.Message
		if clientErr.Code != "" {
			s.blockedCode = gateway.BlockedReasonCode(clientErr.Code)
		} else {
			s.blockedCode = infraGateway.MapBlockedReason(clientErr.Message)
		}
		return
	}
	s.blockedReason = err.Error()
	s.blockedCode = gateway.ReasonGatewayError
}

func (s *GatewaySessionService) StopSession(ctx context.Context) error {
	s.mu.Lock()
	current := s.session
	s.session = nil
	s.mu.Unlock()

	if current == nil {
		return nil
	}
	return s.client.StopSession(ctx, current.SessionID)
}

func (s *GatewaySessionService) GatewayStatus() gateway.ConnectivityStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gatewayStatus
}

func (s *GatewaySessionService) Session() *gateway.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session == nil {
		return nil
	}
	copied := *s.session
	return &copied
}

func (s *GatewaySessionService) PersonalModeBlocked() (gateway.BlockedReasonCode, string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.blockedCode, s.blockedReason
}

// ReadinessSnapshot derives the gateway and personal-session readiness for
// the given provider. A session that was never started yields a snapshot
// with no blocked reason: "not started yet" is not an error.
func (s *GatewaySessionService) ReadinessSnapshot(current provider.Provider) gateway.ReadinessSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := gateway.ReadinessSnapshot{
		GatewayChecked: s.gatewayStatus != gateway.ConnectivityUnknown,
		GatewayReady:   s.gatewayStatus == gateway.ConnectivityReady,
	}
	if !snap.GatewayReady && snap.GatewayChecked {
		detail := s.gatewayDetail
		if detail == "" {
			detail = "gateway status: " + string(s.gatewayStatus)
		}
		snap.GatewayBlockedReason = detail
	}

	if s.blockedCode != gateway.ReasonNone {
		snap.PersonalSessionBlockedCode = s.blockedCode
		snap.PersonalSessionBlockedReason = s.blockedReason
	}

	if s.session == nil {
		return snap
	}

	snap.SessionExists = true
	if current != "" && s.session.Provider != current {
		snap.SessionProviderMismatch = true
		snap.PersonalSessionBlockedCode = gateway.ReasonSessionNotReady
		snap.PersonalSessionBlockedReason = fmt.Sprintf("a session must be started for %s", current)
		return snap
	}

	if snap.GatewayReady && s.session.Status == gateway.SessionActive {
		snap.PersonalSessionReady = true
		snap.PersonalSessionBlockedCode = gateway.ReasonNone
		snap.PersonalSessionBlockedReason = ""
	}
	return snap
}

// StartSessionStatusAutoSync begins periodic polling of the gateway session
// status. Calling it while a sync is already running restarts the loop.
func (s *GatewaySessionService) StartSessionStatusAutoSync(ctx context.Context) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if s.syncCancel != nil {
		s.syncCancel()
	}

	syncCtx, cancel := context.WithCancel(ctx)
	s.syncCancel = cancel

	logrus.Debugf("[GatewaySession] Starting status auto-sync every %v", s.syncInterval)
	go func() {
		ticker := time.NewTicker(s.syncInterval)
		defer ticker.Stop()
		for {
			select {
			case <-syncCtx.Done():
				return
			case <-ticker.C:
				s.refreshStatus(syncCtx)
			}
		}
	}()
}

// StopSessionStatusAutoSync stops the polling loop. Every teardown path
// (navigation away, shutdown) must call it; the reason is logged for leak
// hunting. Safe to call repeatedly.
func (s *GatewaySessionService) StopSessionStatusAutoSync(reason string) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	if s.syncCancel == nil {
		return
	}
	logrus.Debugf("[GatewaySession] Stopping status auto-sync: %s", reason)
	s.syncCancel()
	s.syncCancel = nil
}
