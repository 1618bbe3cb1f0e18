package rbac

import "testing"

func TestHierarchyIsTotal(t *testing.T) {
	for _, a := range BaseRoles() {
		for _, b := range BaseRoles() {
			held := 0
			if IsRoleHigherThan(a, b) {
				held++
			}
			if IsRoleHigherThan(b, a) {
				held++
			}
			if a == b {
				held++
			}
			if held != 1 {
				t.Fatalf("%s vs %s: expected exactly one relation, got %d", a, b, held)
			}
		}
	}
}

func TestIsRoleAtLeastIsReflexive(t *testing.T) {
	for _, r := range BaseRoles() {
		if !IsRoleAtLeast(r, r) {
			t.Fatalf("expected %s to be at least itself", r)
		}
	}
}

func TestBaseRolesDescendByWeight(t *testing.T) {
	roles := BaseRoles()
	for i := 1; i < len(roles); i++ {
		if !IsRoleHigherThan(roles[i-1], roles[i]) {
			t.Fatalf("expected %s to outrank %s", roles[i-1], roles[i])
		}
	}
	if Weight(BaseRoleAdmin) != 100 || Weight(BaseRoleClient) != 20 {
		t.Fatalf("unexpected weights admin=%d client=%d", Weight(BaseRoleAdmin), Weight(BaseRoleClient))
	}
}

func TestUnknownTierRanksBelowEverything(t *testing.T) {
	unknown := BaseRole("intern")
	if IsKnownBaseRole(unknown) {
		t.Fatal("intern should not be a known tier")
	}
	if !IsRoleHigherThan(BaseRoleClient, unknown) {
		t.Fatal("client should outrank an unknown tier")
	}
	if IsRoleAtLeast(unknown, BaseRoleClient) {
		t.Fatal("unknown tier should not reach client")
	}
}

func TestParseBaseRole(t *testing.T) {
	cases := map[string]struct {
		want BaseRole
		ok   bool
	}{
		"admin":     {BaseRoleAdmin, true},
		" Manager ": {BaseRoleManager, true},
		"DEVELOPER": {BaseRoleDeveloper, true},
		"superuser": {"superuser", false},
		"":          {"", false},
	}
	for raw, tc := range cases {
		got, ok := ParseBaseRole(raw)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ParseBaseRole(%q) = %q,%v want %q,%v", raw, got, ok, tc.want, tc.ok)
		}
	}
}
