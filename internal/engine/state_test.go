package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/nbhd/internal/community"
)

func TestStateStore_InitialLoading(t *testing.T) {
	s := NewStateStore()
	snap := s.Snapshot()

	assert.True(t, snap.Loading, "store starts in loading state")
	assert.Nil(t, snap.Active)
	assert.Empty(t, snap.Candidates)
	assert.Equal(t, int64(0), snap.Attempt)
}

func TestStateStore_SnapshotIsDeepCopy(t *testing.T) {
	s := NewStateStore()
	s.update(func(st *State) {
		st.Candidates = []community.Community{{ID: "c1", Name: "Elm St"}}
		st.Active = &community.Community{ID: "c1", Name: "Elm St"}
	})

	snap := s.Snapshot()
	snap.Candidates[0].Name = "mutated"
	snap.Active.Name = "mutated"

	again := s.Snapshot()
	assert.Equal(t, "Elm St", again.Candidates[0].Name)
	assert.Equal(t, "Elm St", again.Active.Name)
}

func TestStateStore_SelectActive(t *testing.T) {
	s := NewStateStore()
	s.update(func(st *State) {
		st.Candidates = []community.Community{{ID: "c1"}, {ID: "c2"}}
		st.Active = &community.Community{ID: "c1"}
	})

	assert.True(t, s.selectActive("c2"))
	assert.Equal(t, "c2", s.Snapshot().ActiveID())

	assert.False(t, s.selectActive("missing"))
	assert.Equal(t, "c2", s.Snapshot().ActiveID(), "unknown id leaves selection unchanged")
}

func TestStateStore_SubscribeReceivesUpdates(t *testing.T) {
	s := NewStateStore()
	ch, unsubscribe := s.Subscribe(4)
	defer unsubscribe()

	s.update(func(st *State) { st.Attempt = 1 })
	s.update(func(st *State) { st.Attempt = 2 })

	first := <-ch
	second := <-ch
	assert.Equal(t, int64(1), first.Attempt)
	assert.Equal(t, int64(2), second.Attempt)
}

func TestStateStore_SubscribeLatestWins(t *testing.T) {
	s := NewStateStore()
	ch, unsubscribe := s.Subscribe(1)
	defer unsubscribe()

	for i := int64(1); i <= 5; i++ {
		n := i
		s.update(func(st *State) { st.Attempt = n })
	}

	require.Len(t, ch, 1)
	snap := <-ch
	assert.Equal(t, int64(5), snap.Attempt, "a full subscriber keeps the newest snapshot")
}

func TestStateStore_UnsubscribeClosesAndIsIdempotent(t *testing.T) {
	s := NewStateStore()
	ch, unsubscribe := s.Subscribe(1)

	unsubscribe()
	unsubscribe()

	_, ok := <-ch
	assert.False(t, ok, "channel closed after unsubscribe")

	// Updates after unsubscribe must not panic on the closed channel.
	s.update(func(st *State) { st.Attempt = 9 })
}

func TestState_ActiveID(t *testing.T) {
	assert.Equal(t, "", State{}.ActiveID())
	assert.Equal(t, "c1", State{Active: &community.Community{ID: "c1"}}.ActiveID())
}
