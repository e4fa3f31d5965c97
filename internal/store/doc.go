// Package store provides the SQLite-backed persistence gateway for
// communities, memberships, and privileged actors.
//
// Store implements gateway.Gateway and gateway.MembershipLister, so the
// resolver answers membership in a single JOIN instead of one round trip
// per catalog entry.
//
// # Ordering
//
//   - Catalog order is insertion order: ORDER BY seq ASC
//   - Created-by lookups are newest first: ORDER BY created_at DESC, seq DESC
//
// Timestamps are stored as RFC 3339 text in UTC with nanosecond precision,
// which sorts correctly as text.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Memberships cascade with their community
//
// After Close every gateway method fails with gateway.ErrUnavailable.
package store
