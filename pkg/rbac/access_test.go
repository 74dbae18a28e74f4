package rbac

import "testing"

func TestCanDeniesUnauthenticated(t *testing.T) {
	state := AccessState{Authenticated: false, Role: RoleAdmin, Permissions: []string{PermissionAll}}
	if Can(state, "appointments.read") {
		t.Fatal("unauthenticated actor must be denied")
	}
}

func TestCanDeniesWithoutGrantList(t *testing.T) {
	state := AccessState{Authenticated: true, Role: RoleAdmin}
	if Can(state, "appointments.read") {
		t.Fatal("nil grant list must deny")
	}
}

func TestCanDeniesEmptyRequirement(t *testing.T) {
	state := AccessState{Authenticated: true, Role: RoleAdmin, Permissions: []string{PermissionAll}}
	if Can(state) {
		t.Fatal("empty requirement list must deny")
	}
}

func TestCanWildcardGrantAllowsAnything(t *testing.T) {
	state := AccessState{Authenticated: true, Role: RolePatient, Permissions: []string{PermissionAll}}
	if !Can(state, "users.admin") {
		t.Fatal("wildcard grant should allow any permission")
	}
}

func TestCanExactMatch(t *testing.T) {
	state := AccessState{Authenticated: true, Role: RolePatient, Permissions: []string{"appointments.read"}}
	if !Can(state, "appointments.read") {
		t.Fatal("exact grant should allow")
	}
	if Can(state, "appointments.write") {
		t.Fatal("unrelated permission should deny")
	}
}

func TestCanORSemantics(t *testing.T) {
	state := AccessState{Authenticated: true, Role: RolePatient, Permissions: []string{"records.read"}}
	if !Can(state, "records.write", "records.read") {
		t.Fatal("any satisfied requirement should allow")
	}
}

func TestCanRoleSentinels(t *testing.T) {
	doctor := AccessState{Authenticated: true, Role: RoleDoctor, Permissions: []string{"appointments.read"}}
	if !Can(doctor, PermissionRoleDoctor) {
		t.Fatal("role sentinel should pass for matching role")
	}
	if Can(doctor, PermissionRoleAdmin) {
		t.Fatal("role sentinel must not pass for a different role")
	}
}

func TestCanWildcardRequirement(t *testing.T) {
	state := AccessState{Authenticated: true, Role: RolePatient, Permissions: []string{"anything"}}
	if !Can(state, PermissionAll) {
		t.Fatal("wildcard requirement matches any non-empty grant list")
	}

	empty := AccessState{Authenticated: true, Role: RolePatient, Permissions: []string{}}
	if Can(empty, PermissionAll) {
		t.Fatal("wildcard requirement must not match an empty grant list")
	}
}
