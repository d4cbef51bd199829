package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/venadolabs/chanbind/domains/binding"
	"github.com/venadolabs/chanbind/domains/gateway"
	"github.com/venadolabs/chanbind/domains/provider"
	"github.com/venadolabs/chanbind/domains/setup"
)

// VerificationService runs the end-of-setup readiness check. Checks run in a
// fixed order matching the step order, each failing check contributes exactly
// one blocker, and a crash inside any check degrades to a single
// VERIFICATION_ERROR blocker instead of taking the caller down.
type VerificationService struct {
	history setup.IVerificationHistoryRepository
}

func NewVerificationService(history setup.IVerificationHistoryRepository) *VerificationService {
	return &VerificationService{history: history}
}

// Run evaluates the aggregated readiness snapshots and persists the outcome.
// Persistence is best effort: a storage failure is logged, never surfaced as
// a verification failure.
func (s *VerificationService) Run(ctx context.Context, p provider.Provider, requiresPersonalSession bool, gw gateway.ReadinessSnapshot, b binding.ReadinessSnapshot) (result setup.VerificationResult) {
	result = setup.VerificationResult{
		ID:        uuid.NewString(),
		CheckedAt: time.Now().UTC(),
		Blockers:  []setup.Blocker{},
	}

	defer func() {
		if r := recover(); r != nil {
			logrus.Errorf("[Verification] Check panicked: %v", r)
			result.Ready = false
			result.Blockers = []setup.Blocker{{
				Code:    setup.BlockerVerificationError,
				Step:    setup.StepVerification,
				Message: fmt.Sprintf("verification failed unexpectedly: %v", r),
				Actions: []setup.BlockerAction{setup.ActionRerunVerification},
			}}
		}
		s.persist(ctx, p, result)
	}()

	if blocker := checkGateway(gw); blocker != nil {
		result.Blockers = append(result.Blockers, *blocker)
	}
	if requiresPersonalSession {
		if blocker := checkPersonalSession(p, gw); blocker != nil {
			result.Blockers = append(result.Blockers, *blocker)
		}
	}
	if blocker := checkBindings(b); blocker != nil {
		result.Blockers = append(result.Blockers, *blocker)
	}

	result.Ready = len(result.Blockers) == 0
	return result
}

// Latest returns the most recent persisted result for the provider, or nil
// when verification has never run.
func (s *VerificationService) Latest(ctx context.Context, p provider.Provider) (*setup.VerificationResult, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Latest(ctx, p)
}

func (s *VerificationService) persist(ctx context.Context, p provider.Provider, result setup.VerificationResult) {
	if s.history == nil {
		return
	}
	if err := s.history.Append(ctx, p, result); err != nil {
		logrus.WithError(err).Warn("[Verification] Failed to persist verification result")
	}
}

func checkGateway(gw gateway.ReadinessSnapshot) *setup.Blocker {
	if gw.GatewayReady {
		return nil
	}
	message := gw.GatewayBlockedReason
	if message == "" {
		message = "gateway connectivity has not been established"
	}
	return &setup.Blocker{
		Code:    setup.BlockerGatewayUnreachable,
		Step:    setup.StepGateway,
		Message: message,
		Actions: []setup.BlockerAction{setup.ActionOpenGateway},
	}
}

func checkPersonalSession(p provider.Provider, gw gateway.ReadinessSnapshot) *setup.Blocker {
	if gw.PersonalSessionReady && !gw.SessionProviderMismatch {
		return nil
	}
	code := setup.BlockerSessionNotReady
	if gw.PersonalSessionBlockedCode == gateway.ReasonPersonalModeDisabled {
		code = setup.BlockerPersonalModeDisabled
	}
	message := gw.PersonalSessionBlockedReason
	if message == "" {
		message = fmt.Sprintf("no active personal session for %s", p)
	}
	return &setup.Blocker{
		Code:    code,
		Step:    setup.StepPersonalSession,
		Message: message,
		Actions: []setup.BlockerAction{setup.ActionOpenRuntime},
	}
}

func checkBindings(b binding.ReadinessSnapshot) *setup.Blocker {
	if !b.Loaded || !b.CapabilityEnabled {
		message := b.CapabilityBlockedReason
		if message == "" {
			message = "channel binding management is unavailable on the server"
		}
		return &setup.Blocker{
			Code:    setup.BlockerServerBindingAPIUnavailable,
			Step:    setup.StepBinding,
			Message: message,
			Actions: []setup.BlockerAction{setup.ActionOpenGateway},
		}
	}
	if b.BindingError != "" {
		return &setup.Blocker{
			Code:    setup.BlockerBindingNotReady,
			Step:    setup.StepBinding,
			Message: b.BindingError,
			Actions: []setup.BlockerAction{setup.ActionRerunVerification},
		}
	}
	if !b.BindingsLoaded {
		return &setup.Blocker{
			Code:    setup.BlockerBindingNotReady,
			Step:    setup.StepBinding,
			Message: "channel bindings have not been loaded yet",
			Actions: []setup.BlockerAction{setup.ActionRerunVerification},
		}
	}
	if !b.HasBindings {
		return &setup.Blocker{
			Code:    setup.BlockerBindingNotReady,
			Step:    setup.StepBinding,
			Message: "no channel binding exists for the selected provider scope",
			Actions: []setup.BlockerAction{setup.ActionRerunVerification},
		}
	}
	return nil
}
