package role

// Role is one of a closed set of authority levels with total order
// Admin > Manager > User > Unknown.
//
// Unknown means "not yet resolved" and is distinct from User, the least
// privileged concrete role: an identity whose role has not settled must not
// be treated as having no privilege, only as undecided.
type Role uint8

const (
	// Unknown is the zero value: no resolution has completed yet.
	Unknown Role = iota
	// User is the least-privileged concrete role and the fail-safe default.
	User
	// Manager sits between User and Admin.
	Manager
	// Admin is the highest-authority role.
	Admin
)

// Descending lists the concrete roles in strict descending authority order.
// The resolver checks membership in exactly this order; User is the implied
// floor and is never checked remotely.
var Descending = [...]Role{Admin, Manager}

// String returns the wire name of the role ("admin", "manager", "user");
// Unknown stringifies to "unknown" and must never be sent to the oracle.
func (r Role) String() string {
	switch r {
	case Admin:
		return "admin"
	case Manager:
		return "manager"
	case User:
		return "user"
	default:
		return "unknown"
	}
}

// Parse maps a wire name to a Role. Unrecognized names parse to Unknown
// with ok=false.
func Parse(s string) (Role, bool) {
	switch s {
	case "admin":
		return Admin, true
	case "manager":
		return Manager, true
	case "user":
		return User, true
	default:
		return Unknown, false
	}
}

// Known reports whether r is a concrete role (not Unknown).
func (r Role) Known() bool {
	return r == User || r == Manager || r == Admin
}

// AtLeast reports whether r carries at least the authority of other.
// Unknown is never at least anything, including Unknown itself.
func (r Role) AtLeast(other Role) bool {
	if !r.Known() || !other.Known() {
		return false
	}
	return r >= other
}

// MemberOf reports whether r is contained in the given role set.
func (r Role) MemberOf(set []Role) bool {
	for _, candidate := range set {
		if r == candidate {
			return true
		}
	}
	return false
}
