package model

import "testing"

func TestParseRole(t *testing.T) {
	t.Parallel()

	cases := map[string]Role{
		"super_admin": RoleSuperAdmin,
		" editor ":    RoleEditor,
		"smm":         RoleSMM,
		"viewer":      RoleViewer,
		"owner":       RoleViewer, // unknown coerces down
		"":            RoleViewer,
		"SUPER_ADMIN": RoleViewer, // role strings are case-sensitive
	}
	for in, want := range cases {
		if got := ParseRole(in); got != want {
			t.Fatalf("ParseRole(%q)=%s, want %s", in, got, want)
		}
	}
}

func TestRoleCan(t *testing.T) {
	t.Parallel()

	// The wildcard grants everything, including tokens no table mentions.
	if !RoleSuperAdmin.Can(PermManageCourses) || !RoleSuperAdmin.Can("made_up_permission") {
		t.Fatalf("super_admin wildcard not honored")
	}

	if !RoleEditor.Can(PermEditContent) || RoleEditor.Can(PermManageNews) {
		t.Fatalf("editor permission set wrong")
	}
	if !RoleSMM.Can(PermManageNews) || RoleSMM.Can(PermManageCourses) {
		t.Fatalf("smm permission set wrong")
	}
	if !RoleViewer.Can(PermViewMessages) || RoleViewer.Can(PermEditContent) {
		t.Fatalf("viewer permission set wrong")
	}

	// A role absent from the table grants nothing.
	if Role("ghost").Can(PermViewMessages) {
		t.Fatalf("unknown role granted a permission")
	}
}

func TestPublicProjectionOmitsHash(t *testing.T) {
	t.Parallel()

	u := User{ID: "1", Username: "a", Email: "a@x.com", Role: RoleEditor, PasswordHash: "secret"}
	p := u.Public()
	if p.ID != "1" || p.Username != "a" || p.Role != RoleEditor {
		t.Fatalf("projection lost fields: %+v", p)
	}
}
