package role

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrResolutionTimeout is returned when the resolution deadline elapses
// before every authority check has settled.
var ErrResolutionTimeout = errors.New("role resolution timed out")

// ErrResolutionFailed is returned when an authority check fails outright.
// It wraps the underlying cause.
var ErrResolutionFailed = errors.New("role resolution failed")

// MembershipChecker is the single remote call the resolver depends on: the
// identity provider's role-membership oracle. Calls may fail or hang; the
// resolver guards both.
type MembershipChecker interface {
	CheckRoleMembership(ctx context.Context, identityID string, r Role) (bool, error)
}

// Resolver maps an identity id to exactly one concrete role by checking
// membership in strict descending authority order. The first tier that
// answers true wins; an identity that matches no elevated tier is User.
//
// Resolver instances are immutable after construction and safe for
// concurrent use.
type Resolver struct {
	checker MembershipChecker
	timeout time.Duration
}

// NewResolver creates a Resolver over the given oracle. timeout bounds the
// whole Resolve operation; zero disables the resolver-level deadline (the
// caller's ctx still applies).
func NewResolver(checker MembershipChecker, timeout time.Duration) *Resolver {
	return &Resolver{
		checker: checker,
		timeout: timeout,
	}
}

type resolution struct {
	role Role
	err  error
}

// Resolve determines the single highest-authority role for identityID.
//
// The tier checks run as one cancellable task racing the deadline; whichever
// settles first fills the result slot and the loser's effect is discarded.
// On timeout the error is ErrResolutionTimeout; on any check failure it is
// ErrResolutionFailed wrapping the cause. Resolve never partially resolves:
// absence of evidence for a higher tier fails closed to the next tier, but
// an errored check aborts the whole operation so the caller's fallback
// policy decides.
func (r *Resolver) Resolve(ctx context.Context, identityID string) (Role, error) {
	if r == nil || r.checker == nil {
		return Unknown, fmt.Errorf("%w: no membership checker", ErrResolutionFailed)
	}
	if identityID == "" {
		return Unknown, fmt.Errorf("%w: empty identity id", ErrResolutionFailed)
	}

	checkCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		checkCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	slot := make(chan resolution, 1)
	go func() {
		resolved, err := r.resolveTiers(checkCtx, identityID)
		slot <- resolution{role: resolved, err: err}
	}()

	select {
	case out := <-slot:
		if out.err != nil {
			return Unknown, out.err
		}
		return out.role, nil
	case <-checkCtx.Done():
		if errors.Is(checkCtx.Err(), context.DeadlineExceeded) {
			return Unknown, ErrResolutionTimeout
		}
		return Unknown, fmt.Errorf("%w: %v", ErrResolutionFailed, checkCtx.Err())
	}
}

func (r *Resolver) resolveTiers(ctx context.Context, identityID string) (Role, error) {
	for _, tier := range Descending {
		ok, err := r.checker.CheckRoleMembership(ctx, identityID, tier)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return Unknown, ErrResolutionTimeout
			}
			return Unknown, fmt.Errorf("%w: %s check: %v", ErrResolutionFailed, tier, err)
		}
		if ok {
			return tier, nil
		}
	}
	return User, nil
}
