package gate

import (
	"context"
	"time"

	"github.com/vendalink/routegate/role"
	"github.com/vendalink/routegate/session"
)

const defaultFallbackTimeout = 4 * time.Second

// Config controls Gate redirects and the fallback check deadline.
type Config struct {
	// Paths for the login and forbidden redirects. Zero values mean
	// "/login" and "/403".
	Paths Paths
	// FallbackTimeout bounds the live fallback checks. Zero means 4s.
	FallbackTimeout time.Duration
}

// Observer is notified when a live fallback check runs. Engine wiring
// bridges it into audit and metrics; the zero implementation is a no-op.
type Observer interface {
	FallbackCheck(identityID string, required []role.Role, allowed bool, failed bool)
}

// NopObserver ignores fallback notifications.
type NopObserver struct{}

func (NopObserver) FallbackCheck(string, []role.Role, bool, bool) {}

// Gate is the route-authorization decision point. The checker must be the
// live oracle, not a cached wrapper: the whole point of the fallback tier is
// seeing grants the cache has not.
type Gate struct {
	checker  role.MembershipChecker
	observer Observer
	paths    Paths
	timeout  time.Duration
}

// New creates a Gate over the live membership checker.
func New(checker role.MembershipChecker, observer Observer, cfg Config) *Gate {
	if cfg.Paths.Login == "" {
		cfg.Paths.Login = "/login"
	}
	if cfg.Paths.Forbidden == "" {
		cfg.Paths.Forbidden = "/403"
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = defaultFallbackTimeout
	}
	if observer == nil {
		observer = NopObserver{}
	}

	return &Gate{
		checker:  checker,
		observer: observer,
		paths:    cfg.Paths,
		timeout:  cfg.FallbackTimeout,
	}
}

// Paths returns the configured redirect targets.
func (g *Gate) Paths() Paths {
	return g.paths
}

// Authorize decides one navigation. The cache tier runs first; when it
// reports a known-but-insufficient role, the live fallback checks decide.
// Errors and timeouts in the fallback tier resolve to the forbidden
// redirect — fail closed, never open.
func (g *Gate) Authorize(ctx context.Context, snap session.Snapshot, required []role.Role, returnPath string) Decision {
	decision, needFallback := Evaluate(snap, required, returnPath, g.paths)
	if !needFallback {
		return decision
	}

	allowed, failed := g.fallbackAllowed(ctx, snap.Identity.ID, required)
	g.observer.FallbackCheck(snap.Identity.ID, required, allowed, failed)
	if allowed {
		return Decision{Kind: KindRender}
	}
	return Decision{Kind: KindRedirectToForbidden, RedirectTo: g.paths.Forbidden}
}

// fallbackAllowed runs one live membership check per required role in
// parallel; any single success renders (logical OR, independent of
// completion order). failed reports that the verdict came from an error or
// timeout rather than a clean round of denials.
func (g *Gate) fallbackAllowed(ctx context.Context, identityID string, required []role.Role) (allowed, failed bool) {
	checkCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	type verdict struct {
		ok  bool
		err error
	}
	results := make(chan verdict, len(required))

	for _, r := range required {
		go func(r role.Role) {
			ok, err := g.checker.CheckRoleMembership(checkCtx, identityID, r)
			results <- verdict{ok: ok, err: err}
		}(r)
	}

	for range required {
		select {
		case v := <-results:
			if v.err != nil {
				failed = true
				continue
			}
			if v.ok {
				// First success wins; cancel stops the stragglers.
				return true, false
			}
		case <-checkCtx.Done():
			return false, true
		}
	}
	return false, failed
}
