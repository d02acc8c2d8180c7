package gate

import (
	"net/url"

	"github.com/vendalink/routegate/role"
	"github.com/vendalink/routegate/session"
)

// Kind classifies an authorization decision.
type Kind uint8

const (
	// KindRender allows the target surface.
	KindRender Kind = iota
	// KindShowLoading renders the interstitial while the session or role
	// is still settling. Never a denial.
	KindShowLoading
	// KindRedirectToLogin sends the anonymous caller to the entry surface,
	// carrying the originally requested path for post-login restoration.
	KindRedirectToLogin
	// KindRedirectToForbidden denies the navigation.
	KindRedirectToForbidden
)

func (k Kind) String() string {
	switch k {
	case KindRender:
		return "render"
	case KindShowLoading:
		return "show_loading"
	case KindRedirectToLogin:
		return "redirect_to_login"
	case KindRedirectToForbidden:
		return "redirect_to_forbidden"
	default:
		return "unknown"
	}
}

// Decision is the gate's output for one navigation attempt. RedirectTo is
// set for the redirect kinds.
type Decision struct {
	Kind       Kind
	RedirectTo string
}

// Paths names the entry and forbidden surfaces redirects target.
type Paths struct {
	Login     string
	Forbidden string
}

// Evaluate applies the cache-tier decision steps over (session, required)
// and reports whether a live fallback check is still needed. It is pure: no
// network, no clock, no session writes.
//
// A nil or empty required set means any authenticated identity may render.
// An unknown role with an insufficient-looking cache is never denied here;
// denial requires either a known-insufficient role plus a failed fallback.
func Evaluate(snap session.Snapshot, required []role.Role, returnPath string, paths Paths) (Decision, bool) {
	if snap.Loading {
		return Decision{Kind: KindShowLoading}, false
	}
	if !snap.Authenticated() {
		return Decision{Kind: KindRedirectToLogin, RedirectTo: loginRedirect(paths.Login, returnPath)}, false
	}
	if len(required) == 0 {
		return Decision{Kind: KindRender}, false
	}
	if snap.Role.Known() && snap.Role.MemberOf(required) {
		return Decision{Kind: KindRender}, false
	}
	if !snap.Role.Known() {
		// Resolution still pending: await it rather than prematurely deny.
		return Decision{Kind: KindShowLoading}, false
	}
	return Decision{Kind: KindRedirectToForbidden, RedirectTo: paths.Forbidden}, true
}

// loginRedirect builds "{login}?redirect={escaped path+query}".
func loginRedirect(loginPath, returnPath string) string {
	if returnPath == "" {
		return loginPath
	}
	return loginPath + "?redirect=" + url.QueryEscape(returnPath)
}
