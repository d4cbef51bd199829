package setup

import (
	"context"
	"time"

	"github.com/venadolabs/chanbind/domains/binding"
	"github.com/venadolabs/chanbind/domains/gateway"
	"github.com/venadolabs/chanbind/domains/provider"
)

type StepKey string

const (
	StepGateway         StepKey = "gateway"
	StepPersonalSession StepKey = "personal_session"
	StepBinding         StepKey = "binding"
	StepVerification    StepKey = "verification"
)

type StepStatus string

const (
	StepPending StepStatus = "PENDING"
	StepReady   StepStatus = "READY"
	StepBlocked StepStatus = "BLOCKED"
	StepDone    StepStatus = "DONE"
)

type StepState struct {
	Key    StepKey    `json:"key"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

type BlockerCode string

const (
	BlockerGatewayUnreachable          BlockerCode = "GATEWAY_UNREACHABLE"
	BlockerPersonalModeDisabled        BlockerCode = "PERSONAL_MODE_DISABLED"
	BlockerSessionNotReady             BlockerCode = "SESSION_NOT_READY"
	BlockerServerBindingAPIUnavailable BlockerCode = "SERVER_BINDING_API_UNAVAILABLE"
	BlockerBindingNotReady             BlockerCode = "BINDING_NOT_READY"
	BlockerVerificationError           BlockerCode = "VERIFICATION_ERROR"
)

type BlockerAction string

const (
	ActionOpenRuntime       BlockerAction = "open_runtime"
	ActionRerunVerification BlockerAction = "rerun_verification"
	ActionOpenGateway       BlockerAction = "open_gateway_settings"
)

type Blocker struct {
	Code    BlockerCode     `json:"code"`
	Step    StepKey         `json:"step"`
	Message string          `json:"message"`
	Actions []BlockerAction `json:"actions,omitempty"`
}

type VerificationResult struct {
	ID        string    `json:"id"`
	Ready     bool      `json:"ready"`
	Blockers  []Blocker `json:"blockers"`
	CheckedAt time.Time `json:"checked_at"`
}

// Context is one explicit aggregation of the three resolver snapshots. It is
// assembled per evaluation and passed into the step policy engine, so the
// engine stays a pure function over literal fixtures.
type Context struct {
	Provider                provider.Provider
	RequiresPersonalSession bool
	Gateway                 gateway.ReadinessSnapshot
	Binding                 binding.ReadinessSnapshot
	Verification            *VerificationResult
	VerificationError       string
}

type SelectProviderRequest struct {
	Provider string `json:"provider"`
}

type SelectStepRequest struct {
	Step string `json:"step"`
}

// IVerificationHistoryRepository persists verification outcomes so the last
// result survives a reload of the setup surface.
type IVerificationHistoryRepository interface {
	InitSchema(ctx context.Context) error
	Append(ctx context.Context, p provider.Provider, result VerificationResult) error
	Latest(ctx context.Context, p provider.Provider) (*VerificationResult, error)
}
