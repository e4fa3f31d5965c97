package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nbhd/internal/community"
)

func TestFetchAllCommunities_InsertionOrder(t *testing.T) {
	s := createTestStore(t)
	mustCreate(t, s, "z", "Zeta", "u1", testEpoch.Add(time.Hour))
	mustCreate(t, s, "a", "Alpha", "u1", testEpoch)

	all, err := s.FetchAllCommunities(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"z", "a"}, communityIDs(all))
}

func TestFetchAllCommunities_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	all, err := s.FetchAllCommunities(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, all)
	assert.Empty(t, all)
}

func TestFetchCommunitiesCreatedBy_NewestFirst(t *testing.T) {
	s := createTestStore(t)
	mustCreate(t, s, "old", "Old", "u1", testEpoch)
	mustCreate(t, s, "theirs", "Theirs", "u2", testEpoch.Add(48*time.Hour))
	mustCreate(t, s, "new", "New", "u1", testEpoch.Add(24*time.Hour))

	created, err := s.FetchCommunitiesCreatedBy(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"new", "old"}, communityIDs(created))
}

func TestFetchCommunitiesCreatedBy_SubsecondOrdering(t *testing.T) {
	s := createTestStore(t)
	mustCreate(t, s, "first", "First", "u1", testEpoch.Add(100*time.Millisecond))
	mustCreate(t, s, "second", "Second", "u1", testEpoch.Add(900*time.Millisecond))
	mustCreate(t, s, "third", "Third", "u1", testEpoch.Add(2*time.Second))

	created, err := s.FetchCommunitiesCreatedBy(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second", "first"}, communityIDs(created))
}

func TestCommunityRoundTripFields(t *testing.T) {
	s := createTestStore(t)
	in := community.Community{
		ID:         "c1",
		Name:       "Elm St",
		City:       "Springfield",
		Region:     "IL",
		PostalCode: "62701",
		CreatedBy:  "u9",
		CreatedAt:  testEpoch.Add(1500 * time.Millisecond),
	}
	_, err := s.CreateCommunity(context.Background(), in)
	require.NoError(t, err)

	got, err := s.GetCommunity(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, in, got)
}

func TestGetCommunity_NotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.GetCommunity(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHasPrivilegedAccess(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.GrantPrivilege(ctx, "admin"))

	ok, err := s.HasPrivilegedAccess(ctx, "admin")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.HasPrivilegedAccess(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.RevokePrivilege(ctx, "admin"))
	ok, err = s.HasPrivilegedAccess(ctx, "admin")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsActiveMember(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "c1", "Elm St", "u9", testEpoch)
	require.NoError(t, s.AddMembership(ctx, community.Membership{ActorID: "u1", CommunityID: "c1"}))
	require.NoError(t, s.AddMembership(ctx, community.Membership{ActorID: "u2", CommunityID: "c1", Status: community.StatusPending}))

	ok, err := s.IsActiveMember(ctx, "u1", "c1")
	require.NoError(t, err)
	assert.True(t, ok, "empty status defaults to active")

	ok, err = s.IsActiveMember(ctx, "u2", "c1")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.IsActiveMember(ctx, "u1", "missing")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestActiveMemberships_CatalogOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	mustCreate(t, s, "c1", "Elm St", "u9", testEpoch)
	mustCreate(t, s, "c2", "Oak Ave", "u9", testEpoch)
	mustCreate(t, s, "c3", "Pine Rd", "u9", testEpoch)
	require.NoError(t, s.AddMembership(ctx, community.Membership{ActorID: "u1", CommunityID: "c3"}))
	require.NoError(t, s.AddMembership(ctx, community.Membership{ActorID: "u1", CommunityID: "c2", Status: community.StatusLeft}))
	require.NoError(t, s.AddMembership(ctx, community.Membership{ActorID: "u1", CommunityID: "c1"}))

	ms, err := s.ActiveMemberships(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "c1", ms[0].CommunityID)
	assert.Equal(t, "c3", ms[1].CommunityID)
	for _, m := range ms {
		assert.True(t, m.IsActive())
		assert.Equal(t, community.ActorID("u1"), m.ActorID)
	}
}

func TestActiveMemberships_ContextCancelled(t *testing.T) {
	s := createTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.ActiveMemberships(ctx, "u1")
	assert.Error(t, err)
}
