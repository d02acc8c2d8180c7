// Package internal groups helpers that are intentionally private to
// routegate.
//
// # Sub-packages
//
//   - audit — async event dispatch (Dispatcher + Sink implementations)
//
// # What this package must NOT do
//
//   - Export types that appear in the public routegate API.
//   - Be imported by any package outside the routegate module.
package internal
