package sharing

import "testing"

func TestPermits(t *testing.T) {
	tests := []struct {
		role   Role
		action Action
		want   bool
	}{
		{RoleAdmin, ActionManage, true},
		{RoleAdmin, ActionDelete, true},
		{RoleEditor, ActionDelete, true},
		{RoleEditor, ActionManage, false},
		{RoleCollaborator, ActionEdit, true},
		{RoleCollaborator, ActionDelete, false},
		{RoleViewer, ActionView, true},
		{RoleViewer, ActionEdit, false},
		{Role("bogus"), ActionView, false},
	}
	for _, tt := range tests {
		if got := Permits(tt.role, tt.action); got != tt.want {
			t.Errorf("Permits(%s, %s) = %v, want %v", tt.role, tt.action, got, tt.want)
		}
	}
}

func TestParseExternalRole(t *testing.T) {
	tests := []struct {
		external string
		want     Role
	}{
		{"lector", RoleViewer},
		{"colaborador", RoleCollaborator},
		{"editor", RoleEditor},
		{"admin", RoleAdmin},
	}
	for _, tt := range tests {
		got, err := ParseExternalRole(tt.external)
		if err != nil {
			t.Fatalf("ParseExternalRole(%q): %v", tt.external, err)
		}
		if got != tt.want {
			t.Errorf("ParseExternalRole(%q) = %s, want %s", tt.external, got, tt.want)
		}
		if got.External() != tt.external {
			t.Errorf("%s.External() = %q, want %q", got, got.External(), tt.external)
		}
	}

	if _, err := ParseExternalRole("root"); ReasonOf(err) != ReasonInvalidRole {
		t.Errorf("expected invalid_role, got %v", err)
	}
}

func TestValidRole(t *testing.T) {
	for _, r := range []Role{RoleAdmin, RoleEditor, RoleCollaborator, RoleViewer} {
		if !ValidRole(r) {
			t.Errorf("ValidRole(%s) = false", r)
		}
	}
	if ValidRole(Role("viewer")) {
		t.Error("external names are not internal roles")
	}
}
