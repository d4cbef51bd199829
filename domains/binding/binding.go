package binding

import (
	"context"
	"time"

	"github.com/venadolabs/chanbind/domains/provider"
)

type TargetType string

const (
	TargetAgent TargetType = "AGENT"
	TargetTeam  TargetType = "TEAM"
)

// ChannelBinding maps an external peer/thread to an internal agent or team
// target. The local copy is a cache refreshed by explicit reload.
type ChannelBinding struct {
	ID                     string             `json:"id"`
	Provider               provider.Provider  `json:"provider"`
	Transport              provider.Transport `json:"transport"`
	AccountID              string             `json:"account_id"`
	PeerID                 string             `json:"peer_id"`
	ThreadID               string             `json:"thread_id,omitempty"`
	TargetType             TargetType         `json:"target_type"`
	TargetID               string             `json:"target_id"`
	AllowTransportFallback bool               `json:"allow_transport_fallback"`
	CreatedAt              time.Time          `json:"created_at"`
	UpdatedAt              time.Time          `json:"updated_at"`
}

// Scope identifies one (provider, transport, account) binding namespace.
// An empty AccountID means "no account filter" and is only meaningful while
// the account id for the scope is not yet known (e.g. before a personal
// session starts); it must never widen a scope whose account id is known.
type Scope struct {
	Provider  provider.Provider  `json:"provider"`
	Transport provider.Transport `json:"transport"`
	AccountID string             `json:"account_id,omitempty"`
}

// Matches reports whether a binding belongs to this scope. Provider and
// transport are always exact; the account id is exact unless the scope has
// no account filter.
func (s Scope) Matches(b ChannelBinding) bool {
	if b.Provider != s.Provider || b.Transport != s.Transport {
		return false
	}
	if s.AccountID == "" {
		return true
	}
	return b.AccountID == s.AccountID
}

// ReadinessSnapshot is the derived binding-step state for one scope.
type ReadinessSnapshot struct {
	// Loaded is false until the binding capability has been fetched at least
	// once; "not yet loaded" is distinct from "loaded and empty".
	Loaded                  bool   `json:"loaded"`
	CapabilityEnabled       bool   `json:"capability_enabled"`
	CapabilityBlockedReason string `json:"capability_blocked_reason,omitempty"`
	// BindingsLoaded is false until the binding list itself has been fetched;
	// a loaded capability with an unfetched list is still "checking".
	BindingsLoaded bool   `json:"bindings_loaded"`
	HasBindings    bool   `json:"has_bindings"`
	BindingError   string `json:"binding_error,omitempty"`
}

// Capabilities reports whether binding CRUD is available server-side.
type Capabilities struct {
	BindingCrudEnabled bool   `json:"binding_crud_enabled"`
	Reason             string `json:"reason,omitempty"`
}

// TargetOption is a read-only discovery result: an agent or team eligible as
// a binding target, with its runtime status.
type TargetOption struct {
	TargetType  TargetType `json:"target_type"`
	TargetID    string     `json:"target_id"`
	DisplayName string     `json:"display_name"`
	Status      string     `json:"status"`
}

// DraftUpdateRequest is the transport-level patch for the active draft.
// Pointer fields distinguish "leave unchanged" from "set to zero value".
type DraftUpdateRequest struct {
	AccountID              *string `json:"account_id,omitempty"`
	PeerID                 *string `json:"peer_id,omitempty"`
	ThreadID               *string `json:"thread_id,omitempty"`
	TargetType             *string `json:"target_type,omitempty"`
	TargetID               *string `json:"target_id,omitempty"`
	AllowTransportFallback *bool   `json:"allow_transport_fallback,omitempty"`
	PeerInputMode          *string `json:"peer_input_mode,omitempty"`
}

// IBindingUsecase is the binding CRUD collaborator.
type IBindingUsecase interface {
	LoadCapabilities(ctx context.Context) (Capabilities, error)
	LoadBindingsIfEnabled(ctx context.Context) ([]ChannelBinding, error)
	Save(ctx context.Context, b ChannelBinding) (ChannelBinding, error)
	Delete(ctx context.Context, id string) error
}

type ITargetUsecase interface {
	LoadTargetOptions(ctx context.Context) ([]TargetOption, error)
}

// IBindingRepository is the persistence boundary for bindings.
type IBindingRepository interface {
	InitSchema(ctx context.Context) error
	List(ctx context.Context) ([]ChannelBinding, error)
	ListByScope(ctx context.Context, scope Scope) ([]ChannelBinding, error)
	GetByID(ctx context.Context, id string) (ChannelBinding, error)
	Save(ctx context.Context, b *ChannelBinding) error
	Delete(ctx context.Context, id string) error
}

type ITargetRepository interface {
	InitSchema(ctx context.Context) error
	List(ctx context.Context) ([]TargetOption, error)
	Upsert(ctx context.Context, opt TargetOption) error
}
