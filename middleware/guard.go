package middleware

import (
	"context"
	"net"
	"net/http"

	routegate "github.com/vendalink/routegate"
)

type snapshotContextKey struct{}

// SnapshotFromContext returns the session snapshot a guard stored for the
// request, if any.
func SnapshotFromContext(ctx context.Context) (routegate.Snapshot, bool) {
	snap, ok := ctx.Value(snapshotContextKey{}).(routegate.Snapshot)
	return snap, ok
}

// Guard authorizes every request against the engine's route table.
func Guard(engine *routegate.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serve(engine, next, w, r, nil)
		})
	}
}

// RequireRoles authorizes every request against an explicit role set,
// ignoring the route table. An empty set admits any authenticated identity.
func RequireRoles(engine *routegate.Engine, roles ...routegate.Role) func(http.Handler) http.Handler {
	required := roles
	if required == nil {
		required = []routegate.Role{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			serve(engine, next, w, r, required)
		})
	}
}

func serve(engine *routegate.Engine, next http.Handler, w http.ResponseWriter, r *http.Request, required []routegate.Role) {
	if engine == nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	ctx := routegate.WithClientIP(r.Context(), clientIP(r))
	ctx = routegate.WithReturnPath(ctx, r.URL.RequestURI())

	var (
		decision routegate.Decision
		err      error
	)
	if required == nil {
		decision, err = engine.Authorize(ctx, r.URL.Path)
	} else {
		decision, err = engine.AuthorizeRoles(ctx, required, r.URL.Path)
	}
	if err != nil {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	switch decision.Kind {
	case routegate.DecisionRender:
		snap := engine.Snapshot()
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), snapshotContextKey{}, snap)))
	case routegate.DecisionShowLoading:
		w.Header().Set("Retry-After", "1")
		http.Error(w, "session loading", http.StatusServiceUnavailable)
	case routegate.DecisionRedirectToLogin, routegate.DecisionRedirectToForbidden:
		http.Redirect(w, r, decision.RedirectTo, http.StatusSeeOther)
	default:
		http.Error(w, "forbidden", http.StatusForbidden)
	}
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
