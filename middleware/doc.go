// Package middleware exposes HTTP adapters that enforce routegate decisions
// on inbound requests.
//
// # Guards
//
//   - [Guard] — resolves the requirement from the engine's route table.
//   - [RequireRoles] — enforces an explicit role set, bypassing the table.
//
// Each guard calls Engine.Authorize for the request path and translates the
// decision: render passes through with the session snapshot in the request
// context, loading answers 503 with Retry-After, and redirects answer 303.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. It does NOT
// implement authorization logic itself — all decisions are delegated to
// Engine.Authorize.
//
// # What this package must NOT do
//
//   - Inspect tokens or cookies (the provider owns the session).
//   - Call the provider or Redis directly.
//   - Make authorization decisions beyond relaying the Engine's Decision.
package middleware
