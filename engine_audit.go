package routegate

import (
	"context"
	"errors"
	"time"

	"github.com/vendalink/routegate/provider"
	"github.com/vendalink/routegate/role"
)

const (
	auditEventSignedIn             = "signed_in"
	auditEventIdentityChanged      = "identity_changed"
	auditEventTokenRefreshed       = "token_refreshed"
	auditEventSignedOut            = "signed_out"
	auditEventSignOutFailed        = "sign_out_failed"
	auditEventRoleResolved         = "role_resolved"
	auditEventRoleResolutionFailed = "role_resolution_failed"
	auditEventRoleFallbackApplied  = "role_fallback_applied"
	auditEventResolutionDiscarded  = "role_resolution_discarded"
	auditEventHardStopFired        = "hard_stop_fired"
	auditEventFallbackCheck        = "fallback_check"
	auditEventRouteRendered        = "route_rendered"
	auditEventRouteDenied          = "route_denied"
	auditEventBootstrapAdmin       = "bootstrap_admin"
)

// AuditErrorCode is the stable error label stamped onto audit events.
type AuditErrorCode string

const (
	auditErrResolutionTimeout  AuditErrorCode = "resolution_timeout"
	auditErrResolutionFailed   AuditErrorCode = "resolution_failed"
	auditErrUnavailable        AuditErrorCode = "backend_unavailable"
	auditErrNotAuthenticated   AuditErrorCode = "not_authenticated"
	auditErrInvalidToken       AuditErrorCode = "invalid_token"
	auditErrBootstrapDisabled  AuditErrorCode = "bootstrap_disabled"
	auditErrBootstrapForbidden AuditErrorCode = "bootstrap_forbidden"
	auditErrRedisUnavailable   AuditErrorCode = "cache_unavailable"
	auditErrInternal           AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	identityID string,
	r role.Role,
	path string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		Timestamp:  time.Now().UTC(),
		EventType:  eventType,
		IdentityID: identityID,
		Path:       path,
		IP:         clientIPFromContext(ctx),
		Success:    success,
		Metadata:   metadata,
	}
	if r != role.Unknown {
		event.Role = r.String()
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, role.ErrResolutionTimeout):
		return auditErrResolutionTimeout
	case errors.Is(err, role.ErrResolutionFailed):
		return auditErrResolutionFailed
	case errors.Is(err, provider.ErrUnavailable):
		return auditErrUnavailable
	case errors.Is(err, provider.ErrNotAuthenticated):
		return auditErrNotAuthenticated
	case errors.Is(err, provider.ErrInvalidToken):
		return auditErrInvalidToken
	case errors.Is(err, provider.ErrBootstrapDisabled):
		return auditErrBootstrapDisabled
	case errors.Is(err, provider.ErrBootstrapForbidden):
		return auditErrBootstrapForbidden
	case errors.Is(err, provider.ErrRedisUnavailable):
		return auditErrRedisUnavailable
	}
	return auditErrInternal
}
