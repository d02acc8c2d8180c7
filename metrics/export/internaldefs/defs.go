package internaldefs

import (
	routegate "github.com/vendalink/routegate"
)

// CounterDef binds a metric ID to its stable exported name.
type CounterDef struct {
	ID   routegate.MetricID
	Name string
	Help string
}

// HistogramDef binds a histogram metric ID to its stable exported name.
type HistogramDef struct {
	ID   routegate.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter. Exporters iterate this slice so
// Prometheus and OTel stay name-for-name identical.
var CounterDefs = []CounterDef{
	{ID: routegate.MetricSignIn, Name: "routegate_sign_in_total", Help: "Sessions established from auth events."},
	{ID: routegate.MetricIdentityChanged, Name: "routegate_identity_changed_total", Help: "Auth events that swapped the active identity."},
	{ID: routegate.MetricTokenRefreshed, Name: "routegate_token_refreshed_total", Help: "Same-identity token refreshes."},
	{ID: routegate.MetricSignOut, Name: "routegate_sign_out_total", Help: "Completed sign-outs."},
	{ID: routegate.MetricSignOutFailed, Name: "routegate_sign_out_failed_total", Help: "Sign-outs whose remote revocation failed."},
	{ID: routegate.MetricResolutionSuccess, Name: "routegate_resolution_success_total", Help: "Role resolutions that settled cleanly."},
	{ID: routegate.MetricResolutionFailure, Name: "routegate_resolution_failure_total", Help: "Role resolutions that failed upstream."},
	{ID: routegate.MetricResolutionTimeout, Name: "routegate_resolution_timeout_total", Help: "Role resolutions lost to the deadline."},
	{ID: routegate.MetricResolutionDiscarded, Name: "routegate_resolution_discarded_total", Help: "Stale resolution results dropped by epoch checks."},
	{ID: routegate.MetricRoleFallbackApplied, Name: "routegate_role_fallback_applied_total", Help: "Least-privilege role defaults applied after failures."},
	{ID: routegate.MetricHardStopFired, Name: "routegate_hard_stop_fired_total", Help: "Hard-stop timer expirations."},
	{ID: routegate.MetricDecisionRender, Name: "routegate_decision_render_total", Help: "Authorizations that rendered."},
	{ID: routegate.MetricDecisionLoading, Name: "routegate_decision_loading_total", Help: "Authorizations deferred to the loading interstitial."},
	{ID: routegate.MetricDecisionLoginRedirect, Name: "routegate_decision_login_redirect_total", Help: "Redirects to the login page."},
	{ID: routegate.MetricDecisionForbidden, Name: "routegate_decision_forbidden_total", Help: "Redirects to the forbidden page."},
	{ID: routegate.MetricFallbackAllowed, Name: "routegate_fallback_allowed_total", Help: "Live fallback checks that granted access."},
	{ID: routegate.MetricFallbackDenied, Name: "routegate_fallback_denied_total", Help: "Live fallback checks that denied access."},
	{ID: routegate.MetricFallbackFailed, Name: "routegate_fallback_failed_total", Help: "Fallback rounds resolved by error or timeout."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: routegate.MetricAuthorizeLatency, Name: "routegate_authorize_latency_seconds", Help: "Authorize latency histogram."},
}

// HistogramBounds are the upper bounds of the fixed latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix holds metric-name-safe bucket suffixes matching
// HistogramBounds index for index.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw bucket slice to the fixed width.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// both exposition formats require.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
