// Package provider implements the identity-provider boundary: the session
// snapshot fetch, the auth-state-change stream, the role-membership oracle,
// and remote sign-out, all against a hosted backend over HTTP/JSON.
//
// # Architecture boundaries
//
// This package owns transport: request shaping, JWT claim extraction,
// auth-event fan-out, and the optional Redis-backed membership cache. It
// makes no authorization decisions; it only reports what the backend says.
//
// # What this package must NOT do
//
//   - Derive privileges from token claims. RawRoleClaims are carried opaque;
//     authorization always goes through CheckRoleMembership.
//   - Retry sign-out. A failed remote sign-out is surfaced to the caller.
//   - Serve the gate's fallback checks from cache. CachedChecker is for the
//     resolver path only; step-6 fallback wiring bypasses it.
package provider
