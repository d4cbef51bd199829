package gateway

import (
	"context"

	"github.com/venadolabs/chanbind/domains/capability"
	"github.com/venadolabs/chanbind/domains/provider"
)

// ConnectivityStatus is the gateway-level connection state, independent of
// any provider session.
type ConnectivityStatus string

const (
	ConnectivityUnknown    ConnectivityStatus = "UNKNOWN"
	ConnectivityConnecting ConnectivityStatus = "CONNECTING"
	ConnectivityReady      ConnectivityStatus = "READY"
	ConnectivityError      ConnectivityStatus = "ERROR"
)

type SessionStatus string

const (
	SessionPendingQR SessionStatus = "PENDING_QR"
	SessionActive    SessionStatus = "ACTIVE"
	SessionDegraded  SessionStatus = "DEGRADED"
	SessionStopped   SessionStatus = "STOPPED"
)

// BlockedReasonCode is the structured counterpart of the gateway's
// free-text blocked reason, so callers never have to substring-match.
type BlockedReasonCode string

const (
	ReasonNone                 BlockedReasonCode = ""
	ReasonPersonalModeDisabled BlockedReasonCode = "PERSONAL_MODE_DISABLED"
	ReasonSessionNotReady      BlockedReasonCode = "SESSION_NOT_READY"
	ReasonGatewayError         BlockedReasonCode = "GATEWAY_ERROR"
)

// Session is one personal gateway session, bound to exactly one provider.
type Session struct {
	SessionID    string            `json:"session_id"`
	AccountLabel string            `json:"account_label"`
	Status       SessionStatus     `json:"status"`
	Provider     provider.Provider `json:"provider"`
}

// ReadinessSnapshot is derived on every read, never stored.
type ReadinessSnapshot struct {
	GatewayChecked       bool   `json:"gateway_checked"`
	GatewayReady         bool   `json:"gateway_ready"`
	GatewayBlockedReason string `json:"gateway_blocked_reason,omitempty"`

	SessionExists                bool              `json:"session_exists"`
	PersonalSessionReady         bool              `json:"personal_session_ready"`
	PersonalSessionBlockedReason string            `json:"personal_session_blocked_reason,omitempty"`
	PersonalSessionBlockedCode   BlockedReasonCode `json:"personal_session_blocked_code,omitempty"`
	// SessionProviderMismatch is set when a session exists but belongs to a
	// different provider than the one being checked.
	SessionProviderMismatch bool `json:"session_provider_mismatch"`
}

type PeerCandidate struct {
	PeerID      string `json:"peer_id"`
	PeerType    string `json:"peer_type"`
	ThreadID    string `json:"thread_id,omitempty"`
	DisplayName string `json:"display_name"`
}

type PeerQuery struct {
	IncludeGroups bool
	Limit         int
}

type PeerCandidateResult struct {
	SessionID string          `json:"session_id"`
	Items     []PeerCandidate `json:"items"`
}

// IClient is the HTTP gateway collaborator. Implemented in
// infrastructure/gateway; errors carry message, status code and code.
type IClient interface {
	GetCapabilities(ctx context.Context) (capability.Snapshot, error)
	GetWeComAccounts(ctx context.Context) ([]capability.WeComAccount, error)
	GetSessionStatus(ctx context.Context) (*Session, ConnectivityStatus, error)
	StartSession(ctx context.Context, p provider.Provider) (*Session, error)
	StopSession(ctx context.Context, sessionID string) error
	GetPeerCandidates(ctx context.Context, p provider.Provider, sessionID string, q PeerQuery) (PeerCandidateResult, error)
}

// ISessionUsecase owns the gateway session sub-resource. All other setup
// components read it through ReadinessSnapshot and never mutate it.
type ISessionUsecase interface {
	InitializeFromConfig(ctx context.Context) error
	SetSessionProvider(ctx context.Context, p provider.Provider) error
	StartSession(ctx context.Context) (*Session, error)
	StopSession(ctx context.Context) error

	GatewayStatus() ConnectivityStatus
	Session() *Session
	PersonalModeBlocked() (BlockedReasonCode, string)

	ReadinessSnapshot(current provider.Provider) ReadinessSnapshot

	StartSessionStatusAutoSync(ctx context.Context)
	StopSessionStatusAutoSync(reason string)
}
