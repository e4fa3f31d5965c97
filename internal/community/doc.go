// Package community provides the domain types shared by the resolution
// engine and its persistence gateways.
//
// This package contains type definitions and small pure helpers only. All
// other internal packages import community; community imports nothing
// internal.
//
// Key design constraints:
//   - Community values are read-only copies; the gateway owns the records
//   - An empty ActorID means "signed out"
//   - All JSON tags use snake_case
package community
