package store

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nbhd/internal/community"
)

func TestCreateCommunity_GeneratesV7ID(t *testing.T) {
	s := createTestStore(t)

	c, err := s.CreateCommunity(context.Background(), community.Community{Name: "Elm St"})
	require.NoError(t, err)

	id, err := uuid.Parse(c.ID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), id.Version())
	assert.False(t, c.CreatedAt.IsZero(), "created_at defaults to now")
}

func TestCreateCommunity_Normalizes(t *testing.T) {
	s := createTestStore(t)

	c, err := s.CreateCommunity(context.Background(), community.Community{
		ID:        " c1 ",
		Name:      "Café Row  ",
		CreatedBy: " u1",
		CreatedAt: testEpoch,
	})
	require.NoError(t, err)

	assert.Equal(t, "c1", c.ID)
	assert.Equal(t, "Café Row", c.Name)
	assert.Equal(t, community.ActorID("u1"), c.CreatedBy)
}

func TestCreateCommunity_RequiresName(t *testing.T) {
	s := createTestStore(t)

	_, err := s.CreateCommunity(context.Background(), community.Community{ID: "c1", Name: "   "})
	assert.Error(t, err)
}

func TestCreateCommunity_ExistingIDKeepsOriginal(t *testing.T) {
	s := createTestStore(t)
	mustCreate(t, s, "c1", "Elm St", "u1", testEpoch)

	c, err := s.CreateCommunity(context.Background(), community.Community{
		ID:        "c1",
		Name:      "Renamed",
		CreatedAt: testEpoch.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, "Elm St", c.Name)

	all, err := s.FetchAllCommunities(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAddMembership_UnknownCommunity(t *testing.T) {
	s := createTestStore(t)

	err := s.AddMembership(context.Background(), community.Membership{ActorID: "u1", CommunityID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAddMembership_RequiresActor(t *testing.T) {
	s := createTestStore(t)
	mustCreate(t, s, "c1", "Elm St", "u9", testEpoch)

	err := s.AddMembership(context.Background(), community.Membership{CommunityID: "c1"})
	assert.Error(t, err)
}

func TestAddMembership_UpdatesStatus(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "c1", "Elm St", "u9", testEpoch)

	require.NoError(t, s.AddMembership(ctx, community.Membership{ActorID: "u1", CommunityID: "c1", Status: community.StatusPending}))
	require.NoError(t, s.AddMembership(ctx, community.Membership{ActorID: "u1", CommunityID: "c1", Status: community.StatusActive}))

	ok, err := s.IsActiveMember(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestAddMembership_InvalidStatusRejected(t *testing.T) {
	s := createTestStore(t)
	mustCreate(t, s, "c1", "Elm St", "u9", testEpoch)

	err := s.AddMembership(context.Background(), community.Membership{ActorID: "u1", CommunityID: "c1", Status: "banned"})
	assert.Error(t, err, "CHECK constraint rejects unknown statuses")
}

func TestGrantPrivilege_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.GrantPrivilege(ctx, "admin"))
	require.NoError(t, s.GrantPrivilege(ctx, "admin"))
	assert.Error(t, s.GrantPrivilege(ctx, ""))
}
