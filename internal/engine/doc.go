// Package engine implements the neighborhood membership resolution engine.
//
// The engine decides which single community is the signed-in actor's active
// context, given communities the actor created, communities the actor is a
// member of, and an all-access privilege, against a gateway that may be
// slow, fail, or hang.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// Every state mutation happens on one goroutine (Engine.Run). Identity
// changes, refresh requests, resolver results, and timer callbacks all
// arrive as events on a FIFO queue. This ensures:
//   - No locks around resolution state beyond reader snapshots
//   - Cycles are totally ordered by their attempt number
//   - Each result is applied at most once
//
// Cycle Flow:
//  1. SetActor or Accessor.Refresh enqueues an event
//  2. StatusController.RequestRefresh issues a new attempt from Clock
//  3. Engine.startCycle marks it loading and runs the Resolver off-loop
//  4. The result returns as an EventCycleResult
//  5. handleResult commits it only if its attempt is still current and in
//     flight, then completes or fails the cycle
//  6. Failures arm a backoff timer (1s, 2s, 4s, capped at 10s) for at most
//     three retries, then raise one Notice
//
// Safety Timeout:
// Every transition to loading arms a 10s timer. If it fires first, the
// cycle fails with TIMEOUT and its late result is dropped.
//
// Strategy Order:
// privileged, creator, membership, none. Evaluated in declaration order,
// first confident result wins.
package engine
