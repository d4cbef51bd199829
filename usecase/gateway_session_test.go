package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/venadolabs/chanbind/domains/gateway"
	"github.com/venadolabs/chanbind/domains/provider"
	"github.com/venadolabs/chanbind/domains/setup"
	infraGateway "github.com/venadolabs/chanbind/infrastructure/gateway"
)

func TestInitializeDegradesOnUnreachableGateway(t *testing.T) {
	client := &fakeGatewayClient{statusError: errors.New("dial tcp: connection refused")}
	svc := NewGatewaySessionService(client, 0)

	if err := svc.InitializeFromConfig(context.Background()); err != nil {
		t.Fatalf("initialization must not fail on connectivity errors, got %v", err)
	}
	if svc.GatewayStatus() != gateway.ConnectivityError {
		t.Errorf("status = %s, want ERROR", svc.GatewayStatus())
	}

	snap := svc.ReadinessSnapshot(provider.ProviderWhatsApp)
	if !snap.GatewayChecked || snap.GatewayReady {
		t.Errorf("snapshot = %+v, want checked but not ready", snap)
	}
	if snap.GatewayBlockedReason == "" {
		t.Error("blocked reason missing for unreachable gateway")
	}
}

func TestNeverStartedSessionHasNoBlockedReason(t *testing.T) {
	client := &fakeGatewayClient{connectivity: gateway.ConnectivityReady}
	svc := NewGatewaySessionService(client, 0)
	_ = svc.InitializeFromConfig(context.Background())

	snap := svc.ReadinessSnapshot(provider.ProviderWhatsApp)
	if snap.SessionExists {
		t.Error("session reported before any start")
	}
	if snap.PersonalSessionBlockedReason != "" || snap.PersonalSessionBlockedCode != gateway.ReasonNone {
		t.Errorf("never-started session carries a blocked reason: %+v", snap)
	}
}

func TestStartSessionRequiresProvider(t *testing.T) {
	svc := NewGatewaySessionService(&fakeGatewayClient{}, 0)
	if _, err := svc.StartSession(context.Background()); err == nil {
		t.Error("start succeeded without a selected provider")
	}
}

func TestReadinessAfterStart(t *testing.T) {
	client := &fakeGatewayClient{connectivity: gateway.ConnectivityReady}
	svc := NewGatewaySessionService(client, 0)
	_ = svc.InitializeFromConfig(context.Background())

	if err := svc.SetSessionProvider(context.Background(), provider.ProviderWhatsApp); err != nil {
		t.Fatalf("set provider: %v", err)
	}
	session, err := svc.StartSession(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if session.Status != gateway.SessionActive {
		t.Fatalf("session status = %s", session.Status)
	}

	snap := svc.ReadinessSnapshot(provider.ProviderWhatsApp)
	if !snap.PersonalSessionReady {
		t.Errorf("snapshot = %+v, want personal session ready", snap)
	}
}

func TestReadinessProviderMismatch(t *testing.T) {
	client := &fakeGatewayClient{connectivity: gateway.ConnectivityReady}
	svc := NewGatewaySessionService(client, 0)
	_ = svc.InitializeFromConfig(context.Background())

	_ = svc.SetSessionProvider(context.Background(), provider.ProviderWhatsApp)
	if _, err := svc.StartSession(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	snap := svc.ReadinessSnapshot(provider.ProviderWeChat)
	if !snap.SessionProviderMismatch {
		t.Fatalf("snapshot = %+v, want provider mismatch", snap)
	}
	if snap.PersonalSessionReady {
		t.Error("mismatched session reported ready")
	}
	if snap.PersonalSessionBlockedReason != "a session must be started for WECHAT" {
		t.Errorf("reason = %q", snap.PersonalSessionBlockedReason)
	}
}

func TestSetSessionProviderStopsForeignSession(t *testing.T) {
	client := &fakeGatewayClient{connectivity: gateway.ConnectivityReady}
	svc := NewGatewaySessionService(client, 0)

	_ = svc.SetSessionProvider(context.Background(), provider.ProviderWhatsApp)
	started, err := svc.StartSession(context.Background())
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if err := svc.SetSessionProvider(context.Background(), provider.ProviderWeChat); err != nil {
		t.Fatalf("switch provider: %v", err)
	}

	client.mu.Lock()
	stopped := append([]string(nil), client.stoppedIDs...)
	client.mu.Unlock()
	if len(stopped) != 1 || stopped[0] != started.SessionID {
		t.Errorf("stopped sessions = %v, want [%s]", stopped, started.SessionID)
	}
	if svc.Session() != nil {
		t.Error("foreign session still held after provider switch")
	}
}

func TestSetSessionProviderKeepsMatchingSession(t *testing.T) {
	client := &fakeGatewayClient{connectivity: gateway.ConnectivityReady}
	svc := NewGatewaySessionService(client, 0)

	_ = svc.SetSessionProvider(context.Background(), provider.ProviderWhatsApp)
	if _, err := svc.StartSession(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	_ = svc.SetSessionProvider(context.Background(), provider.ProviderWhatsApp)

	client.mu.Lock()
	stopped := len(client.stoppedIDs)
	client.mu.Unlock()
	if stopped != 0 {
		t.Errorf("matching session was stopped %d times", stopped)
	}
	if svc.Session() == nil {
		t.Error("matching session dropped")
	}
}

func TestStartErrorRecordsBlockedReason(t *testing.T) {
	client := &fakeGatewayClient{
		startError: &infraGateway.ClientError{
			Code:    string(gateway.ReasonPersonalModeDisabled),
			Message: "personal mode is disabled on the server",
		},
	}
	svc := NewGatewaySessionService(client, 0)
	_ = svc.SetSessionProvider(context.Background(), provider.ProviderWhatsApp)

	if _, err := svc.StartSession(context.Background()); err == nil {
		t.Fatal("start succeeded despite client error")
	}

	code, reason := svc.PersonalModeBlocked()
	if code != gateway.ReasonPersonalModeDisabled {
		t.Errorf("blocked code = %s", code)
	}
	if reason != "personal mode is disabled on the server" {
		t.Errorf("blocked reason = %q", reason)
	}

	snap := svc.ReadinessSnapshot(provider.ProviderWhatsApp)
	if snap.PersonalSessionBlockedCode != gateway.ReasonPersonalModeDisabled {
		t.Errorf("snapshot code = %s", snap.PersonalSessionBlockedCode)
	}
}

func TestProviderSwitchClearsStartFailure(t *testing.T) {
	client := &fakeGatewayClient{
		connectivity: gateway.ConnectivityReady,
		startError:   errors.New("session backend busy"),
	}
	svc := NewGatewaySessionService(client, 0)
	_ = svc.InitializeFromConfig(context.Background())

	_ = svc.SetSessionProvider(context.Background(), provider.ProviderWhatsApp)
	if _, err := svc.StartSession(context.Background()); err == nil {
		t.Fatal("start should fail")
	}

	_ = svc.SetSessionProvider(context.Background(), provider.ProviderWeChat)

	snap := svc.ReadinessSnapshot(provider.ProviderWeChat)
	if snap.PersonalSessionBlockedReason != "" || snap.PersonalSessionBlockedCode != gateway.ReasonNone {
		t.Errorf("previous provider's start failure leaked: %+v", snap)
	}

	// The new provider's session step renders as not-started, not blocked.
	states := StepStates(setup.Context{
		Provider:                provider.ProviderWeChat,
		RequiresPersonalSession: true,
		Gateway:                 snap,
		Binding:                 readyBinding(),
	})
	step := stepByKey(t, states, setup.StepPersonalSession)
	if step.Status != setup.StepPending {
		t.Errorf("personal_session = %s (%q), want PENDING for a never-started provider", step.Status, step.Detail)
	}
}

func TestPersonalModeDisabledSurvivesProviderSwitch(t *testing.T) {
	client := &fakeGatewayClient{
		startError: &infraGateway.ClientError{
			Code:    string(gateway.ReasonPersonalModeDisabled),
			Message: "personal mode is disabled on the server",
		},
	}
	svc := NewGatewaySessionService(client, 0)

	_ = svc.SetSessionProvider(context.Background(), provider.ProviderWhatsApp)
	if _, err := svc.StartSession(context.Background()); err == nil {
		t.Fatal("start should fail")
	}
	_ = svc.SetSessionProvider(context.Background(), provider.ProviderWeChat)

	code, _ := svc.PersonalModeBlocked()
	if code != gateway.ReasonPersonalModeDisabled {
		t.Errorf("server-wide personal-mode block dropped on provider switch: %s", code)
	}
}

func TestSuccessfulStartClearsBlockedReason(t *testing.T) {
	client := &fakeGatewayClient{
		connectivity: gateway.ConnectivityReady,
		startError:   errors.New("session backend busy"),
	}
	svc := NewGatewaySessionService(client, 0)
	_ = svc.SetSessionProvider(context.Background(), provider.ProviderWhatsApp)

	if _, err := svc.StartSession(context.Background()); err == nil {
		t.Fatal("first start should fail")
	}
	if _, reason := svc.PersonalModeBlocked(); reason == "" {
		t.Fatal("blocked reason not recorded")
	}

	client.mu.Lock()
	client.startError = nil
	client.mu.Unlock()
	if _, err := svc.StartSession(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if code, reason := svc.PersonalModeBlocked(); code != gateway.ReasonNone || reason != "" {
		t.Errorf("blocked state survived successful start: %s %q", code, reason)
	}
}

func TestStopSessionIsIdempotent(t *testing.T) {
	client := &fakeGatewayClient{connectivity: gateway.ConnectivityReady}
	svc := NewGatewaySessionService(client, 0)

	_ = svc.SetSessionProvider(context.Background(), provider.ProviderWhatsApp)
	if _, err := svc.StartSession(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := svc.StopSession(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	// Second stop has nothing to do and must not error.
	if err := svc.StopSession(context.Background()); err != nil {
		t.Fatalf("second stop: %v", err)
	}

	client.mu.Lock()
	stopped := len(client.stoppedIDs)
	client.mu.Unlock()
	if stopped != 1 {
		t.Errorf("gateway stop called %d times, want 1", stopped)
	}
}

func TestAutoSyncPollsAndStops(t *testing.T) {
	client := &fakeGatewayClient{connectivity: gateway.ConnectivityReady}
	svc := NewGatewaySessionService(client, 10*time.Millisecond)

	svc.StartSessionStatusAutoSync(context.Background())
	deadline := time.After(2 * time.Second)
	for client.StatusCalls() < 2 {
		select {
		case <-deadline:
			t.Fatal("auto-sync never polled the gateway")
		case <-time.After(5 * time.Millisecond):
		}
	}

	svc.StopSessionStatusAutoSync("test teardown")
	// Stopping again is a no-op.
	svc.StopSessionStatusAutoSync("test teardown")

	calls := client.StatusCalls()
	time.Sleep(50 * time.Millisecond)
	if after := client.StatusCalls(); after != calls {
		t.Errorf("auto-sync still polling after stop: %d -> %d", calls, after)
	}
}
