package routegate

import "errors"

var (
	// ErrEngineNotReady reports an Engine used before Start or after Close.
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrProviderRequired reports a Build without an auth provider.
	ErrProviderRequired = errors.New("auth provider required")
	// ErrBuilderUsed reports a Builder whose Build already succeeded.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrSignOutFailed reports a sign-out whose remote revocation failed.
	// Local session state is still cleared when this is returned.
	ErrSignOutFailed = errors.New("sign out failed")
	// ErrRouteNotConfigured reports an Authorize call with no route table.
	ErrRouteNotConfigured = errors.New("route table not configured")
)
