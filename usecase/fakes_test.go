package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/venadolabs/chanbind/domains/binding"
	"github.com/venadolabs/chanbind/domains/capability"
	"github.com/venadolabs/chanbind/domains/gateway"
	"github.com/venadolabs/chanbind/domains/provider"
	"github.com/venadolabs/chanbind/domains/setup"
)

// fakeGatewayClient is a scriptable gateway.IClient for usecase tests.
type fakeGatewayClient struct {
	mu sync.Mutex

	capabilities capability.Snapshot
	capError     error

	wecomAccounts []capability.WeComAccount

	session       *gateway.Session
	connectivity  gateway.ConnectivityStatus
	statusError   error
	startError    error
	startedFor    []provider.Provider
	stoppedIDs    []string
	peerResult    gateway.PeerCandidateResult
	peerError     error
	peerCallCount int
	statusCalls   int
}

func (f *fakeGatewayClient) GetCapabilities(ctx context.Context) (capability.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.capabilities, f.capError
}

func (f *fakeGatewayClient) GetWeComAccounts(ctx context.Context) ([]capability.WeComAccount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.wecomAccounts, nil
}

func (f *fakeGatewayClient) GetSessionStatus(ctx context.Context) (*gateway.Session, gateway.ConnectivityStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if f.statusError != nil {
		return nil, gateway.ConnectivityError, f.statusError
	}
	return f.session, f.connectivity, nil
}

func (f *fakeGatewayClient) StatusCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

func (f *fakeGatewayClient) StartSession(ctx context.Context, p provider.Provider) (*gateway.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startedFor = append(f.startedFor, p)
	if f.startError != nil {
		return nil, f.startError
	}
	f.session = &gateway.Session{
		SessionID:    fmt.Sprintf("sess-%d", len(f.startedFor)),
		AccountLabel: "account-" + string(p),
		Status:       gateway.SessionActive,
		Provider:     p,
	}
	return f.session, nil
}

func (f *fakeGatewayClient) StopSession(ctx context.Context, sessionID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stoppedIDs = append(f.stoppedIDs, sessionID)
	f.session = nil
	return nil
}

func (f *fakeGatewayClient) GetPeerCandidates(ctx context.Context, p provider.Provider, sessionID string, q gateway.PeerQuery) (gateway.PeerCandidateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peerCallCount++
	if f.peerError != nil {
		return gateway.PeerCandidateResult{}, f.peerError
	}
	return f.peerResult, nil
}

// memoryBindingRepo is an in-memory binding.IBindingRepository.
type memoryBindingRepo struct {
	mu    sync.Mutex
	items map[string]binding.ChannelBinding
	next  int
}

func newMemoryBindingRepo() *memoryBindingRepo {
	return &memoryBindingRepo{items: make(map[string]binding.ChannelBinding)}
}

func (r *memoryBindingRepo) InitSchema(ctx context.Context) error { return nil }

func (r *memoryBindingRepo) List(ctx context.Context) ([]binding.ChannelBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]binding.ChannelBinding, 0, len(r.items))
	for _, b := range r.items {
		out = append(out, b)
	}
	return out, nil
}

func (r *memoryBindingRepo) ListByScope(ctx context.Context, scope binding.Scope) ([]binding.ChannelBinding, error) {
	all, _ := r.List(ctx)
	out := make([]binding.ChannelBinding, 0, len(all))
	for _, b := range all {
		if scope.Matches(b) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (r *memoryBindingRepo) GetByID(ctx context.Context, id string) (binding.ChannelBinding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.items[id]
	if !ok {
		return binding.ChannelBinding{}, fmt.Errorf("binding %s not found", id)
	}
	return b, nil
}

func (r *memoryBindingRepo) Save(ctx context.Context, b *binding.ChannelBinding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		r.next++
		b.ID = fmt.Sprintf("b-%d", r.next)
	}
	r.items[b.ID] = *b
	return nil
}

func (r *memoryBindingRepo) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.items, id)
	return nil
}

// memoryTargetRepo is an in-memory binding.ITargetRepository.
type memoryTargetRepo struct {
	mu   sync.Mutex
	opts []binding.TargetOption
}

func (r *memoryTargetRepo) InitSchema(ctx context.Context) error { return nil }

func (r *memoryTargetRepo) List(ctx context.Context) ([]binding.TargetOption, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]binding.TargetOption, len(r.opts))
	copy(out, r.opts)
	return out, nil
}

func (r *memoryTargetRepo) Upsert(ctx context.Context, opt binding.TargetOption) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.opts {
		if r.opts[i].TargetType == opt.TargetType && r.opts[i].TargetID == opt.TargetID {
			r.opts[i] = opt
			return nil
		}
	}
	r.opts = append(r.opts, opt)
	return nil
}

// memoryHistoryRepo records verification results in memory.
type memoryHistoryRepo struct {
	mu        sync.Mutex
	results   map[provider.Provider][]setup.VerificationResult
	failing   bool
	latestErr error
}

func newMemoryHistoryRepo() *memoryHistoryRepo {
	return &memoryHistoryRepo{results: make(map[provider.Provider][]setup.VerificationResult)}
}

func (r *memoryHistoryRepo) InitSchema(ctx context.Context) error { return nil }

func (r *memoryHistoryRepo) Append(ctx context.Context, p provider.Provider, result setup.VerificationResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failing {
		return fmt.Errorf("storage unavailable")
	}
	r.results[p] = append(r.results[p], result)
	return nil
}

func (r *memoryHistoryRepo) Latest(ctx context.Context, p provider.Provider) (*setup.VerificationResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latestErr != nil {
		return nil, r.latestErr
	}
	list := r.results[p]
	if len(list) == 0 {
		return nil, nil
	}
	last := list[len(list)-1]
	return &last, nil
}

// staticBindingCache serves a fixed cache state to the readiness resolver.
type staticBindingCache struct {
	items      []binding.ChannelBinding
	loaded     bool
	loadErr    string
	caps       binding.Capabilities
	capsLoaded bool
}

func (c staticBindingCache) CachedState() ([]binding.ChannelBinding, bool, string, binding.Capabilities, bool) {
	return c.items, c.loaded, c.loadErr, c.caps, c.capsLoaded
}
