package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/nbhd/internal/community"
	"github.com/roach88/nbhd/internal/engine"
	"github.com/roach88/nbhd/internal/gateway"
	"github.com/roach88/nbhd/internal/store"
)

// errInjected is the failure returned for fail steps with error: query.
var errInjected = errors.New("injected failure")

// faultGateway wraps the store, recording calls and injecting failures.
// It keeps the store's MembershipLister so batched resolution is traced.
//
// Not safe for concurrent use; the harness dispatches cycles inline.
type faultGateway struct {
	inner *store.Store
	calls []string

	failOp    string
	failErr   error
	remaining int
}

func newFaultGateway(st *store.Store) *faultGateway {
	return &faultGateway{inner: st}
}

func (g *faultGateway) fail(op string, err error, times int) {
	g.failOp = op
	g.failErr = err
	g.remaining = times
}

func (g *faultGateway) heal() {
	g.failOp = ""
	g.failErr = nil
	g.remaining = 0
}

// takeCalls returns the calls recorded since the last take.
func (g *faultGateway) takeCalls() []string {
	out := g.calls
	g.calls = nil
	if out == nil {
		out = []string{}
	}
	return out
}

func (g *faultGateway) before(op, detail string) error {
	name := op
	if detail != "" {
		name = fmt.Sprintf("%s(%s)", op, detail)
	}
	g.calls = append(g.calls, name)

	if g.failErr == nil || (g.failOp != FailAll && g.failOp != op) {
		return nil
	}
	err := g.failErr
	if g.remaining > 0 {
		g.remaining--
		if g.remaining == 0 {
			g.heal()
		}
	}
	return err
}

func (g *faultGateway) HasPrivilegedAccess(ctx context.Context, actor community.ActorID) (bool, error) {
	if err := g.before(engine.OpHasPrivilegedAccess, ""); err != nil {
		return false, err
	}
	return g.inner.HasPrivilegedAccess(ctx, actor)
}

func (g *faultGateway) FetchAllCommunitiesForPrivilegedActor(ctx context.Context, actor community.ActorID) ([]community.Community, error) {
	if err := g.before(engine.OpFetchPrivilegedCatalog, ""); err != nil {
		return nil, err
	}
	return g.inner.FetchAllCommunitiesForPrivilegedActor(ctx, actor)
}

func (g *faultGateway) FetchCommunitiesCreatedBy(ctx context.Context, actor community.ActorID) ([]community.Community, error) {
	if err := g.before(engine.OpFetchCreatedBy, ""); err != nil {
		return nil, err
	}
	return g.inner.FetchCommunitiesCreatedBy(ctx, actor)
}

func (g *faultGateway) FetchAllCommunities(ctx context.Context) ([]community.Community, error) {
	if err := g.before(engine.OpFetchAllCommunities, ""); err != nil {
		return nil, err
	}
	return g.inner.FetchAllCommunities(ctx)
}

func (g *faultGateway) IsActiveMember(ctx context.Context, actor community.ActorID, communityID string) (bool, error) {
	if err := g.before(engine.OpIsActiveMember, communityID); err != nil {
		return false, err
	}
	return g.inner.IsActiveMember(ctx, actor, communityID)
}

func (g *faultGateway) ActiveMemberships(ctx context.Context, actor community.ActorID) ([]community.Membership, error) {
	if err := g.before(engine.OpActiveMemberships, ""); err != nil {
		return nil, err
	}
	return g.inner.ActiveMemberships(ctx, actor)
}

var (
	_ gateway.Gateway          = (*faultGateway)(nil)
	_ gateway.MembershipLister = (*faultGateway)(nil)
)
