package routegate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/vendalink/routegate/gate"
	internalaudit "github.com/vendalink/routegate/internal/audit"
	"github.com/vendalink/routegate/provider"
	"github.com/vendalink/routegate/role"
	"github.com/vendalink/routegate/session"
)

// Engine is the process-wide session and route-authorization core. Build it
// through [Builder], call Start once, and it keeps the session snapshot
// current from provider auth events until Close.
//
// All methods are safe for concurrent use after Start.
type Engine struct {
	config       Config
	authProvider provider.Interface
	cache        *provider.CachedChecker
	resolver     *role.Resolver
	routes       *gate.RouteTable
	gate         *gate.Gate
	store        *session.Store
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
}

// sourceAdapter narrows provider.Interface to the session store's contract.
// The provider's subscribe cannot fail, so the adapter supplies the nil
// error the store's contract carries for sources that can.
type sourceAdapter struct {
	p provider.Interface
}

func (a sourceAdapter) GetCurrentSession(ctx context.Context) (*provider.AuthSession, error) {
	return a.p.GetCurrentSession(ctx)
}

func (a sourceAdapter) SubscribeAuthStateChanges(handler func(provider.AuthEvent)) (func(), error) {
	return a.p.SubscribeAuthStateChanges(handler), nil
}

func (a sourceAdapter) SignOut(ctx context.Context) error {
	return a.p.SignOut(ctx)
}

// Start bootstraps session tracking: it arms the hard-stop timer,
// subscribes to the provider's auth-state stream, and loads the current
// session. Idempotent.
func (e *Engine) Start(ctx context.Context) error {
	if e == nil {
		return ErrEngineNotReady
	}
	if e.store == nil {
		e.store = session.NewStore(session.Config{
			HardStopTimeout: e.config.Session.HardStopTimeout,
			WatchBuffer:     e.config.Session.WatchBuffer,
		}, sourceAdapter{p: e.authProvider}, e.resolver, e)
	}
	return e.store.Initialize(ctx)
}

// Close tears down session tracking, flushes the audit dispatcher, and
// closes the provider when the engine constructed it. Idempotent.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.store != nil {
		e.store.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if closer, ok := e.authProvider.(interface{ Close() }); ok {
		closer.Close()
	}
}

// Snapshot returns the current session state. Before Start it reports the
// loading/anonymous state, so gates render the interstitial rather than
// guessing.
func (e *Engine) Snapshot() Snapshot {
	if e == nil || e.store == nil {
		return Snapshot{Loading: true, Role: role.Unknown}
	}
	return e.store.Snapshot()
}

// Watch returns a channel of session snapshots and a cancel function. The
// channel closes when the engine closes or cancel is called.
func (e *Engine) Watch() (<-chan Snapshot, func(), error) {
	if e == nil || e.store == nil {
		return nil, nil, ErrEngineNotReady
	}
	ch, cancel := e.store.Watch()
	return ch, cancel, nil
}

// SignOut revokes the session upstream and unconditionally clears local
// state. A remote failure is reported wrapped in [ErrSignOutFailed], but
// the local session is gone either way.
func (e *Engine) SignOut(ctx context.Context) error {
	if e == nil || e.store == nil {
		return ErrEngineNotReady
	}

	identityID := ""
	if snap := e.store.Snapshot(); snap.Identity != nil {
		identityID = snap.Identity.ID
	}

	if err := e.store.SignOut(ctx); err != nil {
		e.metricInc(MetricSignOutFailed)
		e.emitAudit(ctx, auditEventSignOutFailed, false, identityID, role.Unknown, "", err, nil)
		return fmt.Errorf("%w: %v", ErrSignOutFailed, err)
	}
	return nil
}

// Authorize decides one navigation to path using the configured route
// table. Public routes render without touching session state.
func (e *Engine) Authorize(ctx context.Context, path string) (Decision, error) {
	if e == nil || e.gate == nil {
		return Decision{}, ErrEngineNotReady
	}
	if e.routes == nil {
		return Decision{}, ErrRouteNotConfigured
	}

	required, public := e.routes.Requirement(path)
	if public {
		return Decision{Kind: gate.KindRender}, nil
	}

	return e.AuthorizeRoles(ctx, required, path)
}

// AuthorizeRoles decides one navigation against an explicit requirement,
// bypassing the route table. A nil required set admits any authenticated
// identity.
func (e *Engine) AuthorizeRoles(ctx context.Context, required []Role, path string) (Decision, error) {
	if e == nil || e.gate == nil {
		return Decision{}, ErrEngineNotReady
	}

	returnPath := returnPathFromContext(ctx)
	if returnPath == "" {
		returnPath = path
	}

	start := time.Now()
	snap := e.Snapshot()
	decision := e.gate.Authorize(ctx, snap, required, returnPath)
	e.observeAuthorize(time.Since(start))

	e.recordDecision(ctx, snap, required, path, decision)
	return decision, nil
}

func (e *Engine) recordDecision(ctx context.Context, snap Snapshot, required []Role, path string, decision Decision) {
	identityID := ""
	if snap.Identity != nil {
		identityID = snap.Identity.ID
	}

	switch decision.Kind {
	case gate.KindRender:
		e.metricInc(MetricDecisionRender)
		e.emitAudit(ctx, auditEventRouteRendered, true, identityID, snap.Role, path, nil, nil)
	case gate.KindShowLoading:
		e.metricInc(MetricDecisionLoading)
	case gate.KindRedirectToLogin:
		e.metricInc(MetricDecisionLoginRedirect)
		e.emitAudit(ctx, auditEventRouteDenied, false, identityID, snap.Role, path, nil, func() map[string]string {
			return map[string]string{"redirect": decision.RedirectTo}
		})
	case gate.KindRedirectToForbidden:
		e.metricInc(MetricDecisionForbidden)
		e.emitAudit(ctx, auditEventRouteDenied, false, identityID, snap.Role, path, nil, func() map[string]string {
			return map[string]string{
				"redirect": decision.RedirectTo,
				"required": rolesLabel(required),
			}
		})
	}
}

// BootstrapAdmin promotes the bearer of token to the administrator role
// when no administrator exists yet. Only providers that support the
// operation accept it.
func (e *Engine) BootstrapAdmin(ctx context.Context, token string) (*provider.BootstrapResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	bootstrapper, ok := e.authProvider.(interface {
		BootstrapAdmin(ctx context.Context, token string) (*provider.BootstrapResult, error)
	})
	if !ok {
		return nil, provider.ErrBootstrapForbidden
	}

	result, err := bootstrapper.BootstrapAdmin(ctx, token)
	if err != nil {
		e.emitAudit(ctx, auditEventBootstrapAdmin, false, "", role.Unknown, "", err, nil)
		return nil, err
	}

	e.emitAudit(ctx, auditEventBootstrapAdmin, true, result.IdentityID, role.Admin, "", nil, nil)
	return result, nil
}

// MetricsSnapshot copies the current counters and histograms.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports audit events lost to dispatcher backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeAuthorize(d time.Duration) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(MetricAuthorizeLatency, d)
}

/*
====================================
SESSION OBSERVER
====================================
*/

func (e *Engine) SignedIn(identity provider.Identity) {
	e.metricInc(MetricSignIn)
	e.emitAudit(context.Background(), auditEventSignedIn, true, identity.ID, role.Unknown, "", nil, nil)
}

func (e *Engine) IdentityChanged(prev, next provider.Identity) {
	e.metricInc(MetricIdentityChanged)
	e.invalidateCache(prev.ID)
	e.invalidateCache(next.ID)
	e.emitAudit(context.Background(), auditEventIdentityChanged, true, next.ID, role.Unknown, "", nil, func() map[string]string {
		return map[string]string{"previous_identity": prev.ID}
	})
}

func (e *Engine) SignedOut(identityID string) {
	e.metricInc(MetricSignOut)
	// Cached memberships must not survive the identity that earned them: a
	// sign-in within the positive TTL would otherwise re-attach a role the
	// provider may have revoked meanwhile.
	e.invalidateCache(identityID)
	e.emitAudit(context.Background(), auditEventSignedOut, true, identityID, role.Unknown, "", nil, nil)
}

func (e *Engine) TokenRefreshed(identityID string) {
	e.metricInc(MetricTokenRefreshed)
	e.emitAudit(context.Background(), auditEventTokenRefreshed, true, identityID, role.Unknown, "", nil, nil)
}

func (e *Engine) RoleResolved(identityID string, r role.Role) {
	e.metricInc(MetricResolutionSuccess)
	e.emitAudit(context.Background(), auditEventRoleResolved, true, identityID, r, "", nil, nil)
}

func (e *Engine) RoleFallbackApplied(identityID string, fallback role.Role, cause error) {
	if errors.Is(cause, role.ErrResolutionTimeout) {
		e.metricInc(MetricResolutionTimeout)
	} else {
		e.metricInc(MetricResolutionFailure)
	}
	e.metricInc(MetricRoleFallbackApplied)
	e.emitAudit(context.Background(), auditEventRoleResolutionFailed, false, identityID, role.Unknown, "", cause, nil)
	e.emitAudit(context.Background(), auditEventRoleFallbackApplied, true, identityID, fallback, "", nil, nil)
}

func (e *Engine) ResolutionDiscarded(identityID string) {
	e.metricInc(MetricResolutionDiscarded)
	e.emitAudit(context.Background(), auditEventResolutionDiscarded, true, identityID, role.Unknown, "", nil, nil)
}

func (e *Engine) HardStopFired(defaulted bool) {
	e.metricInc(MetricHardStopFired)
	log.Print("routegate: hard stop fired, session forced out of loading")
	e.emitAudit(context.Background(), auditEventHardStopFired, true, "", role.Unknown, "", nil, func() map[string]string {
		return map[string]string{"role_defaulted": strconv.FormatBool(defaulted)}
	})
}

/*
====================================
GATE OBSERVER
====================================
*/

func (e *Engine) FallbackCheck(identityID string, required []role.Role, allowed, failed bool) {
	switch {
	case allowed:
		e.metricInc(MetricFallbackAllowed)
	case failed:
		e.metricInc(MetricFallbackFailed)
	default:
		e.metricInc(MetricFallbackDenied)
	}
	e.emitAudit(context.Background(), auditEventFallbackCheck, allowed, identityID, role.Unknown, "", nil, func() map[string]string {
		return map[string]string{
			"required": rolesLabel(required),
			"failed":   strconv.FormatBool(failed),
		}
	})
}

func (e *Engine) invalidateCache(identityID string) {
	if e.cache == nil || identityID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.cache.Invalidate(ctx, identityID); err != nil {
		log.Print("routegate: membership cache invalidation failed: ", err)
	}
}

func rolesLabel(required []role.Role) string {
	if len(required) == 0 {
		return "authenticated"
	}
	names := make([]string, 0, len(required))
	for _, r := range required {
		names = append(names, r.String())
	}
	return strings.Join(names, ",")
}
