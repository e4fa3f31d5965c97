package engine

import (
	"sync"

	"github.com/roach88/nbhd/internal/community"
)

// State is the resolution state presentation code observes.
type State struct {
	// Active is the current community context, nil when the actor has none.
	Active *community.Community `json:"active"`

	// Candidates lists every community visible to the actor, deduplicated.
	Candidates []community.Community `json:"candidates"`

	// Privileged reports whether the actor resolved through the all-access path.
	Privileged bool `json:"privileged"`

	// Loading is true while a cycle is in flight.
	Loading bool `json:"loading"`

	// LastError is the failure of the most recent cycle, if any.
	LastError error `json:"-"`

	// Attempt identifies the current fetch cycle.
	Attempt int64 `json:"attempt"`
}

// ActiveID returns the active community's ID, or "".
func (s State) ActiveID() string {
	if s.Active == nil {
		return ""
	}
	return s.Active.ID
}

// clone returns a copy that shares no memory with s.
func (s State) clone() State {
	out := s
	if s.Active != nil {
		a := *s.Active
		out.Active = &a
	}
	if s.Candidates != nil {
		out.Candidates = make([]community.Community, len(s.Candidates))
		copy(out.Candidates, s.Candidates)
	}
	return out
}

// StateStore is the shared cell holding the resolution state.
//
// The composition root creates one StateStore and hands it to the Engine
// (WithStateStore) and to presentation code (via Accessor). Only the
// engine's loop goroutine mutates it; the one exception is selectActive,
// which is a pure local choice among existing candidates.
//
// Every mutation publishes a snapshot to subscribers. Delivery is
// latest-wins: a subscriber whose buffer is full loses its oldest pending
// snapshot, never the newest.
//
// Thread-safety: all methods are safe for concurrent use.
type StateStore struct {
	mu    sync.RWMutex
	state State
	subs  map[int]chan State
	next  int
}

// NewStateStore creates a store in the initial loading state.
func NewStateStore() *StateStore {
	return &StateStore{
		state: State{Loading: true},
		subs:  make(map[int]chan State),
	}
}

// Snapshot returns a deep copy of the current state.
func (s *StateStore) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.clone()
}

// Attempt returns the current cycle number.
func (s *StateStore) Attempt() int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.Attempt
}

// Subscribe registers a channel that receives a snapshot after every
// mutation. The returned func unsubscribes and closes the channel; it is
// safe to call more than once.
func (s *StateStore) Subscribe(buffer int) (<-chan State, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan State, buffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = ch
	s.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subs, id)
			close(ch)
		})
	}
}

// update applies fn under the write lock and publishes the result.
func (s *StateStore) update(fn func(*State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.publishLocked()
}

// selectActive makes the candidate with the given ID active.
// Returns false, leaving the state untouched, if no candidate matches.
func (s *StateStore) selectActive(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := community.IndexOf(s.state.Candidates, id)
	if i < 0 {
		return false
	}
	c := s.state.Candidates[i]
	s.state.Active = &c
	s.publishLocked()
	return true
}

func (s *StateStore) publishLocked() {
	for _, ch := range s.subs {
		snap := s.state.clone()
		select {
		case ch <- snap:
			continue
		default:
		}
		// Full: drop the oldest pending snapshot so the newest gets through.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
