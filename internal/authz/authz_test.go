package authz

import "testing"

func TestCanAccessOwner(t *testing.T) {
	user := User{ID: "u1", Role: RoleMember}
	if !CanAccess(user, "u1") {
		t.Fatal("owner should access their own resource")
	}
	if CanAccess(user, "u2") {
		t.Fatal("member should not access another owner's resource")
	}
}

func TestCanAccessElevated(t *testing.T) {
	admin := User{ID: "a1", Role: RoleAdmin}
	if !CanAccess(admin, "u2") {
		t.Fatal("admin should access any resource")
	}
	if !CanAccess(admin, "") {
		t.Fatal("admin should access unowned resources")
	}
}

func TestCanAccessAnonymous(t *testing.T) {
	if CanAccess(User{}, "") {
		t.Fatal("anonymous user should never match by ownership")
	}
}

func TestIsElevated(t *testing.T) {
	if IsElevated(User{Role: RoleMember}) {
		t.Fatal("member is not elevated")
	}
	if !IsElevated(User{Role: RoleAdmin}) {
		t.Fatal("admin is elevated")
	}
}
