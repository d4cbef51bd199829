package usecase

import (
	"github.com/venadolabs/chanbind/domains/provider"
	"github.com/venadolabs/chanbind/domains/setup"
)

const (
	detailCompletePrevious  = "complete the previous step first"
	detailCompletePrevSteps = "complete the previous steps first"
	detailReadyToRun        = "ready to run"
	detailCreateBinding     = "create a channel binding"
	detailCheckingBindings  = "checking binding availability"
)

// ProviderStepOrder returns the ordered setup steps for a provider. The
// personal_session step exists only for providers whose transport is a
// personal session.
func ProviderStepOrder(p provider.Provider) []setup.StepKey {
	if provider.RequiresPersonalSession(p) {
		return []setup.StepKey{setup.StepGateway, setup.StepPersonalSession, setup.StepBinding, setup.StepVerification}
	}
	return []setup.StepKey{setup.StepGateway, setup.StepBinding, setup.StepVerification}
}

// StepStates evaluates every step of the provider's order against one
// aggregated context snapshot. Pure function: same context, same result.
//
// Steps are evaluated in strict dependency order. A step whose
// prerequisites are unsatisfied is PENDING with a "complete previous"
// detail, never BLOCKED: an unreachable prerequisite is not a blocker on
// the step itself.
func StepStates(ctx setup.Context) []setup.StepState {
	order := ProviderStepOrder(ctx.Provider)
	states := make([]setup.StepState, 0, len(order))

	gatewayState := gatewayStepState(ctx)
	states = append(states, gatewayState)

	sessionSatisfied := true
	if ctx.RequiresPersonalSession {
		sessionState := personalSessionStepState(ctx, gatewayState)
		states = append(states, sessionState)
		sessionSatisfied = sessionState.Status == setup.StepReady
	}

	prereqsReady := gatewayState.Status == setup.StepReady && sessionSatisfied
	bindingState := bindingStepState(ctx, prereqsReady)
	states = append(states, bindingState)

	states = append(states, verificationStepState(ctx, bindingState))
	return states
}

func gatewayStepState(ctx setup.Context) setup.StepState {
	state := setup.StepState{Key: setup.StepGateway}
	switch {
	case ctx.Gateway.GatewayReady:
		state.Status = setup.StepReady
	case !ctx.Gateway.GatewayChecked:
		state.Status = setup.StepPending
	default:
		state.Status = setup.StepBlocked
		state.Detail = ctx.Gateway.GatewayBlockedReason
	}
	return state
}

// personalSessionStepState reproduces the five-way branch: the different
// PENDING details carry meaningfully different user guidance and must not be
// collapsed.
func personalSessionStepState(ctx setup.Context, gatewayState setup.StepState) setup.StepState {
	state := setup.StepState{Key: setup.StepPersonalSession}
	g := ctx.Gateway

	switch {
	case gatewayState.Status != setup.StepReady:
		state.Status = setup.StepPending
		state.Detail = detailCompletePrevious
	case g.SessionProviderMismatch:
		state.Status = setup.StepPending
		state.Detail = g.PersonalSessionBlockedReason
	case g.PersonalSessionReady:
		state.Status = setup.StepReady
	case g.PersonalSessionBlockedReason != "":
		state.Status = setup.StepBlocked
		state.Detail = g.PersonalSessionBlockedReason
	default:
		// Session not started yet, or pending QR scan: plain PENDING.
		state.Status = setup.StepPending
	}
	return state
}

func bindingStepState(ctx setup.Context, prereqsReady bool) setup.StepState {
	state := setup.StepState{Key: setup.StepBinding}
	b := ctx.Binding

	switch {
	case !prereqsReady:
		state.Status = setup.StepPending
		state.Detail = detailCompletePrevious
	case !b.Loaded:
		state.Status = setup.StepPending
		state.Detail = detailCheckingBindings
	case !b.CapabilityEnabled:
		state.Status = setup.StepBlocked
		state.Detail = b.CapabilityBlockedReason
	case b.BindingError != "":
		state.Status = setup.StepBlocked
		state.Detail = b.BindingError
	case !b.BindingsLoaded:
		state.Status = setup.StepPending
		state.Detail = detailCheckingBindings
	case b.HasBindings:
		state.Status = setup.StepReady
	default:
		state.Status = setup.StepPending
		state.Detail = detailCreateBinding
	}
	return state
}

func verificationStepState(ctx setup.Context, bindingState setup.StepState) setup.StepState {
	state := setup.StepState{Key: setup.StepVerification}

	if bindingState.Status != setup.StepReady {
		state.Status = setup.StepPending
		state.Detail = detailCompletePrevSteps
		return state
	}

	if ctx.VerificationError != "" {
		state.Status = setup.StepBlocked
		state.Detail = ctx.VerificationError
		return state
	}

	if ctx.Verification != nil {
		if ctx.Verification.Ready {
			state.Status = setup.StepDone
		} else {
			state.Status = setup.StepBlocked
			state.Detail = "verification reported blockers"
		}
		return state
	}

	state.Status = setup.StepPending
	state.Detail = detailReadyToRun
	return state
}
