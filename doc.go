// Package routegate tracks the authenticated session of a process and
// authorizes route navigations against role requirements, backed by an
// external auth provider (session issuance, auth-state events, role
// membership) with an optional Redis cache on the resolution path.
//
// The package is designed for concurrent server workloads: Engine methods
// are safe to call from multiple goroutines after [Engine.Start].
//
// # Architecture boundaries
//
// routegate is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Snapshot, Decision, MetricsSnapshot). Session state
// transitions live in session/, role resolution in role/, authorization
// decisions in gate/, and provider transport in provider/. Audit dispatch
// lives under internal/ and is reachable only through root aliases.
//
// # What this package must NOT do
//
//   - Expose Redis clients or provider transport details in its public API.
//   - Perform I/O outside of Engine methods (construction via Builder is
//     allocation-only until Build constructs the HTTP provider, and nothing
//     touches the network until Start).
//   - Import any sub-package that re-imports routegate (no import cycles).
//
// # Performance contract
//
// Authorize is the hot path. When the cached role satisfies the requirement
// it must not block on any network call; only the insufficient-role
// fallback tier is allowed provider round-trips.
package routegate
