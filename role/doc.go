// Package role defines the closed, totally ordered role set used by the
// authorization core and the Resolver that maps an identity to exactly one
// concrete role via ordered authority checks.
//
// # Architecture boundaries
//
// This package owns the Role type and the resolution protocol (descending
// tier checks, timeout race, failure taxonomy). Fallback policy on resolution
// failure belongs to the session store, not here: Resolve either returns a
// role the caller is entitled to or an error, never a silent downgrade.
//
// # What this package must NOT do
//
//   - Cache results. Caching is a provider-side concern.
//   - Import session, gate, or the root package.
//   - Treat Unknown as a privilege level.
package role
