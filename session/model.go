package session

import (
	"context"

	"github.com/vendalink/routegate/provider"
	"github.com/vendalink/routegate/role"
)

// Snapshot is a read-only view of the Session. Identity is nil when
// anonymous; Role is role.Unknown until resolution settles for the current
// identity.
type Snapshot struct {
	Loading  bool
	Identity *provider.Identity
	Role     role.Role
}

// Authenticated reports whether the snapshot carries an identity.
func (s Snapshot) Authenticated() bool {
	return s.Identity != nil
}

// Source is the slice of the identity-provider contract the Store consumes.
// Subscription setup may fail; that failure is fatal to bootstrap, though
// the hard-stop timer still bounds the loading state.
type Source interface {
	GetCurrentSession(ctx context.Context) (*provider.AuthSession, error)
	SubscribeAuthStateChanges(handler func(provider.AuthEvent)) (unsubscribe func(), err error)
	SignOut(ctx context.Context) error
}

// RoleResolver settles a concrete role for an identity id. Satisfied by
// role.Resolver.
type RoleResolver interface {
	Resolve(ctx context.Context, identityID string) (role.Role, error)
}

// Observer receives store lifecycle notifications. All hooks are invoked
// with the store lock released and must not call back into the Store except
// for Snapshot. Use NopObserver as an embedding base.
type Observer interface {
	// SignedIn fires when an identity appears where none was.
	SignedIn(identity provider.Identity)
	// IdentityChanged fires when the identity id switches without an
	// intervening sign-out.
	IdentityChanged(prev, next provider.Identity)
	// SignedOut fires when the identity goes absent; identityID names the
	// identity that left. Membership caches keyed by identity are dropped
	// on this hook so a later sign-in re-resolves from the live oracle.
	SignedOut(identityID string)
	// TokenRefreshed fires on a same-identity session refresh. The
	// resolved role is untouched.
	TokenRefreshed(identityID string)
	// RoleResolved fires when a resolution attempt commits a role.
	RoleResolved(identityID string, r role.Role)
	// RoleFallbackApplied fires when resolution failed and the fallback
	// policy committed instead. cause is the resolution error.
	RoleFallbackApplied(identityID string, fallback role.Role, cause error)
	// ResolutionDiscarded fires when a settled resolution is thrown away
	// because the identity changed or the store closed meanwhile.
	ResolutionDiscarded(identityID string)
	// HardStopFired fires when the safety timer forces the session out of
	// the loading state. defaulted is true when it also forced the
	// least-privileged role.
	HardStopFired(defaulted bool)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) SignedIn(provider.Identity)                           {}
func (NopObserver) IdentityChanged(provider.Identity, provider.Identity) {}
func (NopObserver) SignedOut(string)                                     {}
func (NopObserver) TokenRefreshed(string)                                {}
func (NopObserver) RoleResolved(string, role.Role)                       {}
func (NopObserver) RoleFallbackApplied(string, role.Role, error)         {}
func (NopObserver) ResolutionDiscarded(string)                           {}
func (NopObserver) HardStopFired(bool)                                   {}
