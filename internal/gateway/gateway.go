// Package gateway defines the persistence contract consumed by the
// resolution engine.
//
// A Gateway is a black box that may succeed, return an empty result, or
// fail. "Not found" is always an empty result with a nil error; errors are
// reserved for transport and query failures.
package gateway

import (
	"context"
	"errors"

	"github.com/roach88/nbhd/internal/community"
)

// ErrUnavailable reports that the gateway's transport or client is not
// initialized (closed database, missing client). Implementations wrap it so
// callers can match with errors.Is.
var ErrUnavailable = errors.New("gateway unavailable")

// Gateway performs the remote queries the resolver needs.
type Gateway interface {
	// HasPrivilegedAccess reports whether actor may view every community.
	HasPrivilegedAccess(ctx context.Context, actor community.ActorID) (bool, error)

	// FetchAllCommunitiesForPrivilegedActor returns the full catalog as seen
	// through the privileged retrieval path.
	FetchAllCommunitiesForPrivilegedActor(ctx context.Context, actor community.ActorID) ([]community.Community, error)

	// FetchCommunitiesCreatedBy returns communities created by actor,
	// newest first.
	FetchCommunitiesCreatedBy(ctx context.Context, actor community.ActorID) ([]community.Community, error)

	// FetchAllCommunities returns the ordinary community catalog.
	FetchAllCommunities(ctx context.Context) ([]community.Community, error)

	// IsActiveMember reports whether actor holds an active membership in
	// the community.
	IsActiveMember(ctx context.Context, actor community.ActorID, communityID string) (bool, error)
}

// MembershipLister is implemented by gateways that can return all of an
// actor's active memberships in one round trip. The resolver prefers it over
// per-community IsActiveMember calls.
type MembershipLister interface {
	ActiveMemberships(ctx context.Context, actor community.ActorID) ([]community.Membership, error)
}
