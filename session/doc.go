// Package session owns the single authoritative in-memory Session for the
// life of the application and bridges asynchronous identity-provider events
// into it.
//
// # Invariants
//
// The Store enforces, in order:
//
//   - An absent identity never carries a concrete role.
//   - A change of identity id invalidates any cached role; stale roles never
//     leak across distinct identities.
//   - A token refresh for the same identity id never resets an already
//     resolved role (no flicker/downgrade on transient re-auth).
//   - loading stays true until the first resolution attempt for the current
//     identity settles, bounded by the hard-stop timer.
//   - Resolution failure falls back to the previously cached role, else to
//     the least-privileged concrete role. Never to an elevated role.
//
// # Architecture boundaries
//
// The Store is the only writer of Session state. The gate and all UI
// surfaces read snapshots; audit and metrics hang off the Observer hooks so
// the store itself performs no I/O beyond the injected Source.
//
// # What this package must NOT do
//
//   - Make authorization decisions (gate's job).
//   - Retry sign-out or suppress its error; local reset is unconditional.
//   - Cancel an in-flight resolution on hard stop: a late result still
//     commits when its identity epoch is current.
package session
