package role

import "testing"

func TestParseRoundTrip(t *testing.T) {
	for _, r := range []Role{User, Manager, Admin} {
		parsed, ok := Parse(r.String())
		if !ok {
			t.Fatalf("Parse(%q) not ok", r.String())
		}
		if parsed != r {
			t.Fatalf("Parse(%q) = %v, want %v", r.String(), parsed, r)
		}
	}
}

func TestParseRejectsUnknownNames(t *testing.T) {
	for _, s := range []string{"", "unknown", "root", "ADMIN", "superuser"} {
		if _, ok := Parse(s); ok {
			t.Fatalf("Parse(%q) unexpectedly ok", s)
		}
	}
}

func TestUnknownIsNotKnown(t *testing.T) {
	if Unknown.Known() {
		t.Fatal("Unknown reported as known")
	}
	for _, r := range []Role{User, Manager, Admin} {
		if !r.Known() {
			t.Fatalf("%v reported as not known", r)
		}
	}
}

func TestAtLeastOrdering(t *testing.T) {
	if !Admin.AtLeast(Manager) || !Manager.AtLeast(User) || !Admin.AtLeast(User) {
		t.Fatal("privilege order broken")
	}
	if User.AtLeast(Manager) || Manager.AtLeast(Admin) {
		t.Fatal("lower tier reported at least higher tier")
	}
	if Unknown.AtLeast(User) {
		t.Fatal("Unknown must never satisfy a concrete tier")
	}
}

func TestMemberOf(t *testing.T) {
	set := []Role{Manager, Admin}
	if !Admin.MemberOf(set) || !Manager.MemberOf(set) {
		t.Fatal("member not found in set")
	}
	if User.MemberOf(set) || Unknown.MemberOf(set) {
		t.Fatal("non-member found in set")
	}
	if User.MemberOf(nil) {
		t.Fatal("member of empty set")
	}
}

func TestDescendingCoversElevatedTiersInOrder(t *testing.T) {
	if len(Descending) != 2 || Descending[0] != Admin || Descending[1] != Manager {
		t.Fatalf("unexpected tier probe order: %v", Descending)
	}
}
