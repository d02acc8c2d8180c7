package routegate

import (
	"io"

	internalaudit "github.com/vendalink/routegate/internal/audit"

	"github.com/vendalink/routegate/gate"
	"github.com/vendalink/routegate/provider"
	"github.com/vendalink/routegate/role"
	"github.com/vendalink/routegate/session"
)

// Re-exported subpackage types, so callers that only need the engine surface
// can work against the root package alone.

// Role is the resolved access tier of an identity.
type Role = role.Role

const (
	RoleUnknown = role.Unknown
	RoleUser    = role.User
	RoleManager = role.Manager
	RoleAdmin   = role.Admin
)

// Identity describes one authenticated principal.
type Identity = provider.Identity

// Snapshot is the observable session state at one instant.
type Snapshot = session.Snapshot

// Decision is the outcome of one route authorization.
type Decision = gate.Decision

// Rule binds a path prefix to a role requirement.
type Rule = gate.Rule

const (
	DecisionRender              = gate.KindRender
	DecisionShowLoading         = gate.KindShowLoading
	DecisionRedirectToLogin     = gate.KindRedirectToLogin
	DecisionRedirectToForbidden = gate.KindRedirectToForbidden
)

// AuditEvent is the record handed to audit sinks.
type AuditEvent = internalaudit.Event

// AuditSink receives emitted audit events. Emit must not block longer than
// the passed context allows.
type AuditSink = internalaudit.Sink

// NoOpSink drops audit events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink buffers audit events for consumption by the caller.
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink writes one JSON audit event per line.
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a ChannelSink with the given buffer depth.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink wraps w as an audit sink.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// AuthProvider is the upstream auth backend contract the engine consumes.
type AuthProvider = provider.Interface
