package gate

import (
	"errors"
	"sort"
	"strings"

	"github.com/vendalink/routegate/role"
)

// ErrEmptyRoleSet rejects a rule that names a role requirement but lists no
// roles. "No requirement" is expressed by omitting Roles entirely, not by an
// empty slice; conflating the two would silently widen access.
var ErrEmptyRoleSet = errors.New("routegate/gate: rule role set present but empty")

// Rule binds a path prefix to an access requirement.
//
// Public rules render without authentication. Non-public rules with nil
// Roles require any authenticated identity; non-nil Roles require
// membership in at least one listed role.
type Rule struct {
	Prefix string
	Roles  []role.Role
	Public bool
}

// RouteTable resolves a request path to the rule with the longest matching
// prefix. Paths matched by no rule are treated as public.
type RouteTable struct {
	rules []Rule
}

// NewRouteTable validates and orders the rules. Ordering is by descending
// prefix length so that Match can take the first hit.
func NewRouteTable(rules []Rule) (*RouteTable, error) {
	for _, r := range rules {
		if r.Prefix == "" || !strings.HasPrefix(r.Prefix, "/") {
			return nil, errors.New("routegate/gate: rule prefix must start with /")
		}
		if r.Roles != nil && len(r.Roles) == 0 {
			return nil, ErrEmptyRoleSet
		}
	}

	ordered := make([]Rule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool {
		return len(ordered[i].Prefix) > len(ordered[j].Prefix)
	})

	return &RouteTable{rules: ordered}, nil
}

// Match returns the most specific rule covering path, or false when no rule
// matches. A prefix matches on an exact path or a "/" boundary, so "/sales"
// covers "/sales/sky" but not "/salesfoo".
func (t *RouteTable) Match(path string) (Rule, bool) {
	for _, r := range t.rules {
		if prefixMatches(r.Prefix, path) {
			return r, true
		}
	}
	return Rule{}, false
}

// Requirement returns the role requirement for path: required is nil for
// any-authenticated routes, and public reports routes needing no identity.
func (t *RouteTable) Requirement(path string) (required []role.Role, public bool) {
	r, ok := t.Match(path)
	if !ok {
		return nil, true
	}
	return r.Roles, r.Public
}

func prefixMatches(prefix, path string) bool {
	if prefix == "/" {
		return path == "/"
	}
	if !strings.HasPrefix(path, prefix) {
		return false
	}
	return len(path) == len(prefix) || path[len(prefix)] == '/'
}

// DefaultRules is the stock route table: public login and forbidden pages,
// an any-authenticated shell, management-only quote creation, and an
// admin-only area.
func DefaultRules(paths Paths) []Rule {
	if paths.Login == "" {
		paths.Login = "/login"
	}
	if paths.Forbidden == "" {
		paths.Forbidden = "/403"
	}
	return []Rule{
		{Prefix: paths.Login, Public: true},
		{Prefix: paths.Forbidden, Public: true},
		{Prefix: "/", Roles: nil},
		{Prefix: "/bootstrap-admin", Roles: nil},
		{Prefix: "/dashboards", Roles: nil},
		{Prefix: "/dashboards/admin", Roles: []role.Role{role.Admin}},
		{Prefix: "/sales/sky/new", Roles: []role.Role{role.Manager, role.Admin}},
		{Prefix: "/sales/internet/new", Roles: []role.Role{role.Manager, role.Admin}},
		{Prefix: "/admin", Roles: []role.Role{role.Admin}},
	}
}
