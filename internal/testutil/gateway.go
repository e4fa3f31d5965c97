package testutil

import (
	"context"
	"sort"
	"sync"

	"github.com/roach88/nbhd/internal/community"
)

// Gateway operation names recorded in FakeGateway.Calls.
const (
	OpHasPrivilegedAccess    = "HasPrivilegedAccess"
	OpFetchPrivilegedCatalog = "FetchAllCommunitiesForPrivilegedActor"
	OpFetchCreatedBy         = "FetchCommunitiesCreatedBy"
	OpFetchAllCommunities    = "FetchAllCommunities"
	OpIsActiveMember         = "IsActiveMember"
	OpActiveMemberships      = "ActiveMemberships"
)

// Call records one gateway invocation.
type Call struct {
	Op          string
	Actor       community.ActorID
	CommunityID string
}

// Hook runs after a call has computed its result and before it returns.
// n is the 1-based index of the call across all operations. A non-nil
// error replaces the result. Hooks may block to simulate slow gateways.
type Hook func(ctx context.Context, op string, n int) error

// FakeGateway is an in-memory gateway.Gateway for tests.
//
// Results are computed from the seeded communities, memberships and
// privileges. Errors can be injected per operation (FailNext) or for every
// call (FailAlways); Hook adds latency or blocking.
//
// Thread-safety: all methods are safe for concurrent use. The hook runs
// without the lock held.
type FakeGateway struct {
	mu          sync.Mutex
	communities []community.Community
	memberships []community.Membership
	privileged  map[community.ActorID]bool
	calls       []Call
	failNext    map[string][]error
	failAll     error
	hook        Hook
}

// NewFakeGateway creates an empty fake gateway.
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		privileged: make(map[community.ActorID]bool),
		failNext:   make(map[string][]error),
	}
}

// AddCommunity appends c to the catalog. Catalog order is insertion order.
func (g *FakeGateway) AddCommunity(c community.Community) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.communities = append(g.communities, c)
	return g
}

// RemoveCommunity deletes the community and its memberships.
func (g *FakeGateway) RemoveCommunity(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i := community.IndexOf(g.communities, id); i >= 0 {
		g.communities = append(g.communities[:i], g.communities[i+1:]...)
	}
	kept := g.memberships[:0]
	for _, m := range g.memberships {
		if m.CommunityID != id {
			kept = append(kept, m)
		}
	}
	g.memberships = kept
}

// AddMembership records a membership row.
func (g *FakeGateway) AddMembership(m community.Membership) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.memberships = append(g.memberships, m)
	return g
}

// GrantPrivilege marks actor as all-access.
func (g *FakeGateway) GrantPrivilege(actor community.ActorID) *FakeGateway {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.privileged[actor] = true
	return g
}

// RevokePrivilege removes the all-access mark.
func (g *FakeGateway) RevokePrivilege(actor community.ActorID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.privileged, actor)
}

// FailNext queues err for the next call to op. Multiple queued errors are
// consumed in order.
func (g *FakeGateway) FailNext(op string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failNext[op] = append(g.failNext[op], err)
}

// FailAlways makes every call fail with err until Heal.
func (g *FakeGateway) FailAlways(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failAll = err
}

// Heal clears FailAlways and any queued FailNext errors.
func (g *FakeGateway) Heal() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failAll = nil
	g.failNext = make(map[string][]error)
}

// SetHook installs h; nil removes it.
func (g *FakeGateway) SetHook(h Hook) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.hook = h
}

// Calls returns a copy of every recorded call in order.
func (g *FakeGateway) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Call, len(g.calls))
	copy(out, g.calls)
	return out
}

// CallCount returns the number of recorded calls.
func (g *FakeGateway) CallCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

// CallsTo counts the recorded calls to op.
func (g *FakeGateway) CallsTo(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// ResetCalls clears the call record.
func (g *FakeGateway) ResetCalls() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = nil
}

// HasPrivilegedAccess implements gateway.Gateway.
func (g *FakeGateway) HasPrivilegedAccess(ctx context.Context, actor community.ActorID) (bool, error) {
	n, err := g.record(Call{Op: OpHasPrivilegedAccess, Actor: actor})
	g.mu.Lock()
	ok := g.privileged[actor]
	g.mu.Unlock()
	if err := g.finish(ctx, OpHasPrivilegedAccess, n, err); err != nil {
		return false, err
	}
	return ok, nil
}

// FetchAllCommunitiesForPrivilegedActor implements gateway.Gateway.
func (g *FakeGateway) FetchAllCommunitiesForPrivilegedActor(ctx context.Context, actor community.ActorID) ([]community.Community, error) {
	n, err := g.record(Call{Op: OpFetchPrivilegedCatalog, Actor: actor})
	all := g.catalog()
	if err := g.finish(ctx, OpFetchPrivilegedCatalog, n, err); err != nil {
		return nil, err
	}
	return all, nil
}

// FetchCommunitiesCreatedBy implements gateway.Gateway. Newest first.
func (g *FakeGateway) FetchCommunitiesCreatedBy(ctx context.Context, actor community.ActorID) ([]community.Community, error) {
	n, err := g.record(Call{Op: OpFetchCreatedBy, Actor: actor})
	var created []community.Community
	for _, c := range g.catalog() {
		if c.CreatedBy == actor {
			created = append(created, c)
		}
	}
	sort.SliceStable(created, func(i, j int) bool {
		return created[i].CreatedAt.After(created[j].CreatedAt)
	})
	if err := g.finish(ctx, OpFetchCreatedBy, n, err); err != nil {
		return nil, err
	}
	return created, nil
}

// FetchAllCommunities implements gateway.Gateway.
func (g *FakeGateway) FetchAllCommunities(ctx context.Context) ([]community.Community, error) {
	n, err := g.record(Call{Op: OpFetchAllCommunities})
	all := g.catalog()
	if err := g.finish(ctx, OpFetchAllCommunities, n, err); err != nil {
		return nil, err
	}
	return all, nil
}

// IsActiveMember implements gateway.Gateway.
func (g *FakeGateway) IsActiveMember(ctx context.Context, actor community.ActorID, communityID string) (bool, error) {
	n, err := g.record(Call{Op: OpIsActiveMember, Actor: actor, CommunityID: communityID})
	member := false
	for _, m := range g.activeMemberships(actor) {
		if m.CommunityID == communityID {
			member = true
			break
		}
	}
	if err := g.finish(ctx, OpIsActiveMember, n, err); err != nil {
		return false, err
	}
	return member, nil
}

func (g *FakeGateway) catalog() []community.Community {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]community.Community, len(g.communities))
	copy(out, g.communities)
	return out
}

func (g *FakeGateway) activeMemberships(actor community.ActorID) []community.Membership {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []community.Membership
	for _, m := range g.memberships {
		if m.ActorID == actor && m.IsActive() {
			out = append(out, m)
		}
	}
	return out
}

// record appends the call and returns its index plus any injected error.
func (g *FakeGateway) record(c Call) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, c)
	n := len(g.calls)

	if g.failAll != nil {
		return n, g.failAll
	}
	if queued := g.failNext[c.Op]; len(queued) > 0 {
		g.failNext[c.Op] = queued[1:]
		return n, queued[0]
	}
	return n, nil
}

// finish runs the hook, then returns the injected error if the hook passed.
func (g *FakeGateway) finish(ctx context.Context, op string, n int, injected error) error {
	g.mu.Lock()
	h := g.hook
	g.mu.Unlock()
	if h != nil {
		if err := h(ctx, op, n); err != nil {
			return err
		}
	}
	return injected
}

// BatchingFakeGateway adds gateway.MembershipLister to FakeGateway.
type BatchingFakeGateway struct {
	*FakeGateway
}

// NewBatchingFakeGateway wraps a fresh FakeGateway.
func NewBatchingFakeGateway() *BatchingFakeGateway {
	return &BatchingFakeGateway{FakeGateway: NewFakeGateway()}
}

// ActiveMemberships implements gateway.MembershipLister.
func (g *BatchingFakeGateway) ActiveMemberships(ctx context.Context, actor community.ActorID) ([]community.Membership, error) {
	n, err := g.record(Call{Op: OpActiveMemberships, Actor: actor})
	ms := g.activeMemberships(actor)
	if err := g.finish(ctx, OpActiveMemberships, n, err); err != nil {
		return nil, err
	}
	return ms, nil
}

// BlockUntil returns a hook that blocks calls to op until release is closed
// or ctx is done. Calls to other operations pass through.
func BlockUntil(op string, release <-chan struct{}) Hook {
	return func(ctx context.Context, called string, n int) error {
		if called != op {
			return nil
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
