package engine

import "github.com/roach88/nbhd/internal/community"

// Accessor is the narrow interface presentation code uses. Reads come from
// store snapshots; the only writes are SetActiveCommunity and Refresh.
//
// Thread-safety: all methods are safe for concurrent use.
type Accessor struct {
	store  *StateStore
	engine *Engine
}

// ActiveCommunity returns a copy of the active community, or nil.
func (a *Accessor) ActiveCommunity() *community.Community {
	return a.store.Snapshot().Active
}

// Candidates returns a copy of the visible communities.
func (a *Accessor) Candidates() []community.Community {
	return a.store.Snapshot().Candidates
}

// IsLoading reports whether a cycle is in flight.
func (a *Accessor) IsLoading() bool {
	return a.store.Snapshot().Loading
}

// LastError returns the most recent cycle failure, or nil.
func (a *Accessor) LastError() error {
	return a.store.Snapshot().LastError
}

// IsPrivileged reports whether the actor resolved as all-access.
func (a *Accessor) IsPrivileged() bool {
	return a.store.Snapshot().Privileged
}

// Snapshot returns the full state in one consistent read.
func (a *Accessor) Snapshot() State {
	return a.store.Snapshot()
}

// Subscribe delivers a snapshot after every state change.
// See StateStore.Subscribe.
func (a *Accessor) Subscribe(buffer int) (<-chan State, func()) {
	return a.store.Subscribe(buffer)
}

// SetActiveCommunity selects one of the already-fetched candidates. It does
// not fetch. Returns false, changing nothing, if id is not a candidate.
func (a *Accessor) SetActiveCommunity(id string) bool {
	return a.store.selectActive(id)
}

// Refresh requests a new fetch cycle with a fresh retry budget.
// Returns false if the engine has been stopped.
func (a *Accessor) Refresh() bool {
	return a.engine.queue.Enqueue(Event{Type: EventRefresh})
}

// Notices delivers the terminal "retries exhausted" notice, at most once
// per refresh.
func (a *Accessor) Notices() <-chan Notice {
	return a.engine.notices
}
