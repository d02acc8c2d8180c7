package provider

import (
	"context"
	"errors"
	"time"

	"github.com/vendalink/routegate/role"
)

var (
	// ErrUnavailable is returned when the backend cannot be reached or
	// answers outside its documented contract. It wraps the cause.
	ErrUnavailable = errors.New("identity provider unavailable")
	// ErrNotAuthenticated is returned by operations that require an
	// installed session when none exists.
	ErrNotAuthenticated = errors.New("no authenticated session")
	// ErrInvalidToken is returned when a session payload carries a token
	// whose claims cannot be read.
	ErrInvalidToken = errors.New("invalid session token")
	// ErrBootstrapDisabled is returned by BootstrapAdmin once an admin
	// already exists (backend answers 409).
	ErrBootstrapDisabled = errors.New("admin bootstrap disabled")
	// ErrBootstrapForbidden is returned by BootstrapAdmin on a bad or
	// missing bootstrap token (backend answers 401/403).
	ErrBootstrapForbidden = errors.New("admin bootstrap forbidden")
	// ErrClientClosed is returned by operations on a closed client.
	ErrClientClosed = errors.New("provider client closed")
)

// Identity is the authenticated principal for a session. Immutable once
// issued; replaced wholesale on sign-in, sign-out, and token refresh.
type Identity struct {
	ID    string
	Email string
}

// AuthSession is the provider's view of the current session. RawRoleClaims
// mirror whatever the token carried; they are informational only and never
// consulted for authorization.
type AuthSession struct {
	Identity      *Identity
	AccessToken   string
	ExpiresAt     time.Time
	RawRoleClaims []string
}

// EventType classifies auth-state-change events.
type EventType uint8

const (
	// EventInitialSession is delivered once to new subscribers when a
	// session already exists at subscribe time.
	EventInitialSession EventType = iota
	// EventSignedIn is delivered when a session is installed.
	EventSignedIn
	// EventTokenRefreshed is delivered when the current session's token is
	// renewed for the same identity.
	EventTokenRefreshed
	// EventSignedOut is delivered when the session ends; Session is nil.
	EventSignedOut
)

func (t EventType) String() string {
	switch t {
	case EventInitialSession:
		return "initial_session"
	case EventSignedIn:
		return "signed_in"
	case EventTokenRefreshed:
		return "token_refreshed"
	case EventSignedOut:
		return "signed_out"
	default:
		return "unknown"
	}
}

// AuthEvent is a single auth-state-change notification. Session is nil on
// sign-out.
type AuthEvent struct {
	Type    EventType
	Session *AuthSession
}

// Interface is the full identity-provider contract consumed by the
// authorization core. Client implements it; tests substitute fakes.
type Interface interface {
	// GetCurrentSession fetches the session snapshot. A nil session with a
	// nil error means no session exists (anonymous).
	GetCurrentSession(ctx context.Context) (*AuthSession, error)
	// SubscribeAuthStateChanges registers handler for subsequent auth
	// events and returns an explicit unsubscribe handle. Handlers for one
	// subscription are invoked sequentially in event order.
	SubscribeAuthStateChanges(handler func(AuthEvent)) (unsubscribe func())
	// CheckRoleMembership asks the role oracle whether the identity holds
	// the given concrete role. Remote and fallible.
	CheckRoleMembership(ctx context.Context, identityID string, r role.Role) (bool, error)
	// SignOut terminates the remote session. Remote and fallible; callers
	// must treat their local state as ended regardless.
	SignOut(ctx context.Context) error
}

// BootstrapResult is the successful response of the bootstrap-admin RPC.
type BootstrapResult struct {
	IdentityID string
	Role       role.Role
}
