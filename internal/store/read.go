package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/nbhd/internal/community"
)

const communityColumns = `id, name, city, region, postal_code, created_by, created_at`

// HasPrivilegedAccess implements gateway.Gateway.
func (s *Store) HasPrivilegedAccess(ctx context.Context, actor community.ActorID) (bool, error) {
	if err := s.usable("has privileged access"); err != nil {
		return false, err
	}
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM privileged_actors WHERE actor_id = ?)
	`, string(actor)).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("query privileged actor: %w", err)
	}
	return ok, nil
}

// FetchAllCommunitiesForPrivilegedActor implements gateway.Gateway.
// The catalog is the same for every privileged actor.
func (s *Store) FetchAllCommunitiesForPrivilegedActor(ctx context.Context, actor community.ActorID) ([]community.Community, error) {
	if err := s.usable("fetch privileged catalog"); err != nil {
		return nil, err
	}
	return s.queryCommunities(ctx, "fetch privileged catalog", `
		SELECT `+communityColumns+`
		FROM communities
		ORDER BY seq ASC
	`)
}

// FetchCommunitiesCreatedBy implements gateway.Gateway. Newest first.
func (s *Store) FetchCommunitiesCreatedBy(ctx context.Context, actor community.ActorID) ([]community.Community, error) {
	if err := s.usable("fetch created by"); err != nil {
		return nil, err
	}
	return s.queryCommunities(ctx, "fetch created by", `
		SELECT `+communityColumns+`
		FROM communities
		WHERE created_by = ?
		ORDER BY created_at DESC, seq DESC
	`, string(actor))
}

// FetchAllCommunities implements gateway.Gateway. Insertion order.
func (s *Store) FetchAllCommunities(ctx context.Context) ([]community.Community, error) {
	if err := s.usable("fetch all communities"); err != nil {
		return nil, err
	}
	return s.queryCommunities(ctx, "fetch all communities", `
		SELECT `+communityColumns+`
		FROM communities
		ORDER BY seq ASC
	`)
}

// IsActiveMember implements gateway.Gateway.
func (s *Store) IsActiveMember(ctx context.Context, actor community.ActorID, communityID string) (bool, error) {
	if err := s.usable("is active member"); err != nil {
		return false, err
	}
	var ok bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM memberships
			WHERE actor_id = ? AND community_id = ? AND status = 'active'
		)
	`, string(actor), communityID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("query membership: %w", err)
	}
	return ok, nil
}

// ActiveMemberships implements gateway.MembershipLister in one JOIN.
// Rows follow catalog order.
func (s *Store) ActiveMemberships(ctx context.Context, actor community.ActorID) ([]community.Membership, error) {
	if err := s.usable("active memberships"); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.actor_id, m.community_id, m.status, m.joined_at
		FROM memberships m
		JOIN communities c ON c.id = m.community_id
		WHERE m.actor_id = ? AND m.status = 'active'
		ORDER BY c.seq ASC
	`, string(actor))
	if err != nil {
		return nil, fmt.Errorf("query memberships: %w", err)
	}
	defer rows.Close()

	memberships := []community.Membership{}
	for rows.Next() {
		var (
			m        community.Membership
			actorID  string
			status   string
			joinedAt string
		)
		if err := rows.Scan(&actorID, &m.CommunityID, &status, &joinedAt); err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		m.ActorID = community.ActorID(actorID)
		m.Status = community.MembershipStatus(status)
		if m.JoinedAt, err = parseTime(joinedAt); err != nil {
			return nil, err
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memberships: %w", err)
	}
	return memberships, nil
}

// GetCommunity returns one community by ID, or ErrNotFound.
func (s *Store) GetCommunity(ctx context.Context, id string) (community.Community, error) {
	if err := s.usable("get community"); err != nil {
		return community.Community{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		SELECT `+communityColumns+`
		FROM communities
		WHERE id = ?
	`, id)
	c, err := scanCommunity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return community.Community{}, fmt.Errorf("community %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return community.Community{}, err
	}
	return c, nil
}

func (s *Store) queryCommunities(ctx context.Context, op, query string, args ...any) ([]community.Community, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	// Return empty slice instead of nil
	communities := []community.Community{}
	for rows.Next() {
		c, err := scanCommunity(rows)
		if err != nil {
			return nil, err
		}
		communities = append(communities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate: %w", op, err)
	}
	return communities, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCommunity(row scanner) (community.Community, error) {
	var (
		c         community.Community
		createdBy string
		createdAt string
	)
	err := row.Scan(&c.ID, &c.Name, &c.City, &c.Region, &c.PostalCode, &createdBy, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return community.Community{}, err
	}
	if err != nil {
		return community.Community{}, fmt.Errorf("scan community: %w", err)
	}
	c.CreatedBy = community.ActorID(createdBy)
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return community.Community{}, err
	}
	return c, nil
}
