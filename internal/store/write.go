package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/roach88/nbhd/internal/community"
)

// CreateCommunity inserts c and returns the stored row.
//
// Text fields are NFC-normalized. An empty ID gets a time-ordered UUIDv7,
// and a zero CreatedAt gets the current time. Uses ON CONFLICT(id) DO
// NOTHING for idempotency - re-seeding an existing ID keeps the original row.
func (s *Store) CreateCommunity(ctx context.Context, c community.Community) (community.Community, error) {
	if err := s.usable("create community"); err != nil {
		return community.Community{}, err
	}

	c = community.Normalize(c)
	if c.Name == "" {
		return community.Community{}, errors.New("create community: name is required")
	}
	if c.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return community.Community{}, fmt.Errorf("create community: generate id: %w", err)
		}
		c.ID = id.String()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}
	c.CreatedAt = c.CreatedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO communities
		(id, name, city, region, postal_code, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		c.ID,
		c.Name,
		c.City,
		c.Region,
		c.PostalCode,
		string(c.CreatedBy),
		formatTime(c.CreatedAt),
	)
	if err != nil {
		return community.Community{}, fmt.Errorf("create community: %w", err)
	}

	return s.GetCommunity(ctx, c.ID)
}

// AddMembership records or updates a membership. The community must exist.
// An empty status means active; a zero JoinedAt means now.
func (s *Store) AddMembership(ctx context.Context, m community.Membership) error {
	if err := s.usable("add membership"); err != nil {
		return err
	}

	m.ActorID = community.NormalizeActor(m.ActorID)
	if m.ActorID.SignedOut() {
		return errors.New("add membership: actor is required")
	}
	if m.Status == "" {
		m.Status = community.StatusActive
	}
	if m.JoinedAt.IsZero() {
		m.JoinedAt = s.now()
	}
	if _, err := s.GetCommunity(ctx, m.CommunityID); err != nil {
		return fmt.Errorf("add membership: %w", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO memberships (actor_id, community_id, status, joined_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(actor_id, community_id) DO UPDATE SET status = excluded.status
	`,
		string(m.ActorID),
		m.CommunityID,
		string(m.Status),
		formatTime(m.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("add membership: %w", err)
	}
	return nil
}

// GrantPrivilege marks actor as all-access. Idempotent.
func (s *Store) GrantPrivilege(ctx context.Context, actor community.ActorID) error {
	if err := s.usable("grant privilege"); err != nil {
		return err
	}
	actor = community.NormalizeActor(actor)
	if actor.SignedOut() {
		return errors.New("grant privilege: actor is required")
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO privileged_actors (actor_id, granted_at)
		VALUES (?, ?)
		ON CONFLICT(actor_id) DO NOTHING
	`, string(actor), formatTime(s.now()))
	if err != nil {
		return fmt.Errorf("grant privilege: %w", err)
	}
	return nil
}

// RevokePrivilege removes the all-access mark. Revoking an actor without
// one is not an error.
func (s *Store) RevokePrivilege(ctx context.Context, actor community.ActorID) error {
	if err := s.usable("revoke privilege"); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM privileged_actors WHERE actor_id = ?
	`, string(community.NormalizeActor(actor)))
	if err != nil {
		return fmt.Errorf("revoke privilege: %w", err)
	}
	return nil
}
