// Package gate decides, per navigation, whether a target surface is
// reachable by the current session: render, show a loading interstitial,
// redirect to login, or redirect to the forbidden page.
//
// The check is two-tier. Steps over the cached session are a pure function
// (Evaluate) with no network and no clock, unit-testable in isolation. Only
// when the cached role is known but insufficient does the Gate issue live
// fallback checks against the role oracle, because the cache may trail a
// very recent grant (bootstrap of the first admin, a promotion). Fallback
// errors and timeouts always resolve to the forbidden redirect, never to a
// render.
//
// # What this package must NOT do
//
//   - Write Session state. The gate reads snapshots only.
//   - Serve fallback checks from any cache; they are live by contract.
package gate
