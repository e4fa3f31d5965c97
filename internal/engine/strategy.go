package engine

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/roach88/nbhd/internal/community"
	"github.com/roach88/nbhd/internal/gateway"
)

// Strategy names, in evaluation order.
const (
	StrategyPrivileged = "privileged"
	StrategyCreator    = "creator"
	StrategyMembership = "membership"
	StrategyNone       = "none"
)

// Gateway operation names used in ResolutionError.Op.
const (
	OpHasPrivilegedAccess    = "HasPrivilegedAccess"
	OpFetchPrivilegedCatalog = "FetchAllCommunitiesForPrivilegedActor"
	OpFetchCreatedBy         = "FetchCommunitiesCreatedBy"
	OpFetchAllCommunities    = "FetchAllCommunities"
	OpIsActiveMember         = "IsActiveMember"
	OpActiveMemberships      = "ActiveMemberships"
)

// Resolution is the outcome of one successful resolver run.
type Resolution struct {
	Active     *community.Community
	Candidates []community.Community
	Privileged bool
	Strategy   string
}

// resolveRequest is the per-run input threaded through the strategies.
type resolveRequest struct {
	actor      community.ActorID
	previousID string
	privileged bool
}

// strategy is one step of the priority list. apply returns ok=false when the
// strategy has no confident answer and the next one should run.
type strategy struct {
	name  string
	apply func(ctx context.Context, r *Resolver, req *resolveRequest) (Resolution, bool, error)
}

// Resolver runs the fetch strategies against a gateway.
//
// INVARIANTS:
//   - strategies are evaluated in declaration order and the order never
//     changes after construction
//   - the first strategy with a confident, non-empty result wins
//   - any gateway error aborts the run; no partial result is returned
//   - a returned non-nil Active is always an element of Candidates
type Resolver struct {
	gw         gateway.Gateway
	tracer     trace.Tracer
	strategies []strategy
}

// NewResolver creates a resolver over gw. A nil gw is allowed; every run
// then fails with GATEWAY_UNAVAILABLE.
func NewResolver(gw gateway.Gateway, tracer trace.Tracer) *Resolver {
	return &Resolver{
		gw:     gw,
		tracer: tracer,
		strategies: []strategy{
			{name: StrategyPrivileged, apply: resolvePrivileged},
			{name: StrategyCreator, apply: resolveCreator},
			{name: StrategyMembership, apply: resolveMembership},
		},
	}
}

// Resolve determines the candidate list and active community for actor.
// previousID is the active community before this run; strategies that
// return several candidates keep it when it is still among them.
//
// Finding nothing is not an error: the result has no active community, no
// candidates, and Strategy == StrategyNone.
func (r *Resolver) Resolve(ctx context.Context, actor community.ActorID, previousID string) (Resolution, error) {
	if r.gw == nil {
		return Resolution{}, NewUnavailableError(actor, "", gateway.ErrUnavailable)
	}

	req := &resolveRequest{actor: actor, previousID: previousID}
	for _, s := range r.strategies {
		res, ok, err := r.run(ctx, s, req)
		if err != nil {
			return Resolution{}, err
		}
		if ok {
			res.Privileged = req.privileged
			res.Strategy = s.name
			return res, nil
		}
	}

	return Resolution{Privileged: req.privileged, Strategy: StrategyNone}, nil
}

func (r *Resolver) run(ctx context.Context, s strategy, req *resolveRequest) (Resolution, bool, error) {
	ctx, span := r.tracer.Start(ctx, "resolve."+s.name,
		trace.WithAttributes(attribute.String("nbhd.actor", string(req.actor))),
	)
	defer span.End()

	res, ok, err := s.apply(ctx, r, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return res, false, err
	}
	span.SetAttributes(
		attribute.Bool("nbhd.matched", ok),
		attribute.Int("nbhd.candidates", len(res.Candidates)),
	)
	return res, ok, nil
}

// wrap converts a gateway error into a ResolutionError.
func (r *Resolver) wrap(actor community.ActorID, op string, err error) error {
	if errors.Is(err, gateway.ErrUnavailable) {
		return NewUnavailableError(actor, op, err)
	}
	return NewQueryError(actor, op, err)
}

// resolvePrivileged: all-access actors see the whole catalog.
func resolvePrivileged(ctx context.Context, r *Resolver, req *resolveRequest) (Resolution, bool, error) {
	ok, err := r.gw.HasPrivilegedAccess(ctx, req.actor)
	if err != nil {
		return Resolution{}, false, r.wrap(req.actor, OpHasPrivilegedAccess, err)
	}
	if !ok {
		return Resolution{}, false, nil
	}
	req.privileged = true

	all, err := r.gw.FetchAllCommunitiesForPrivilegedActor(ctx, req.actor)
	if err != nil {
		return Resolution{}, false, r.wrap(req.actor, OpFetchPrivilegedCatalog, err)
	}
	candidates := community.Dedupe(all)
	if len(candidates) == 0 {
		return Resolution{}, false, nil
	}

	if i := community.IndexOf(candidates, req.previousID); req.previousID != "" && i >= 0 {
		return pick(candidates, i), true, nil
	}

	// Ownership outranks catalog order when nothing was selected before.
	created, err := r.gw.FetchCommunitiesCreatedBy(ctx, req.actor)
	if err != nil {
		return Resolution{}, false, r.wrap(req.actor, OpFetchCreatedBy, err)
	}
	if len(created) > 0 {
		if i := community.IndexOf(candidates, created[0].ID); i >= 0 {
			return pick(candidates, i), true, nil
		}
	}
	return pick(candidates, 0), true, nil
}

// resolveCreator: the actor's newest created community is the sole candidate.
func resolveCreator(ctx context.Context, r *Resolver, req *resolveRequest) (Resolution, bool, error) {
	created, err := r.gw.FetchCommunitiesCreatedBy(ctx, req.actor)
	if err != nil {
		return Resolution{}, false, r.wrap(req.actor, OpFetchCreatedBy, err)
	}
	if len(created) == 0 {
		return Resolution{}, false, nil
	}
	return pick([]community.Community{created[0]}, 0), true, nil
}

// resolveMembership: catalog entries with an active membership, in catalog
// order. Gateways that implement MembershipLister answer in one round trip;
// others are asked once per catalog entry.
func resolveMembership(ctx context.Context, r *Resolver, req *resolveRequest) (Resolution, bool, error) {
	all, err := r.gw.FetchAllCommunities(ctx)
	if err != nil {
		return Resolution{}, false, r.wrap(req.actor, OpFetchAllCommunities, err)
	}
	catalog := community.Dedupe(all)
	if len(catalog) == 0 {
		return Resolution{}, false, nil
	}

	var candidates []community.Community
	if lister, ok := r.gw.(gateway.MembershipLister); ok {
		memberships, err := lister.ActiveMemberships(ctx, req.actor)
		if err != nil {
			return Resolution{}, false, r.wrap(req.actor, OpActiveMemberships, err)
		}
		active := make(map[string]struct{}, len(memberships))
		for _, m := range memberships {
			if m.IsActive() {
				active[m.CommunityID] = struct{}{}
			}
		}
		for _, c := range catalog {
			if _, ok := active[c.ID]; ok {
				candidates = append(candidates, c)
			}
		}
	} else {
		for _, c := range catalog {
			if err := ctx.Err(); err != nil {
				return Resolution{}, false, r.wrap(req.actor, OpIsActiveMember, err)
			}
			member, err := r.gw.IsActiveMember(ctx, req.actor, c.ID)
			if err != nil {
				return Resolution{}, false, r.wrap(req.actor, OpIsActiveMember, err)
			}
			if member {
				candidates = append(candidates, c)
			}
		}
	}

	if len(candidates) == 0 {
		return Resolution{}, false, nil
	}
	if i := community.IndexOf(candidates, req.previousID); req.previousID != "" && i >= 0 {
		return pick(candidates, i), true, nil
	}
	return pick(candidates, 0), true, nil
}

// pick builds a Resolution whose Active is a copy of candidates[i].
func pick(candidates []community.Community, i int) Resolution {
	active := candidates[i]
	return Resolution{Active: &active, Candidates: candidates}
}
