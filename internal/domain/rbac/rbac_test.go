package rbac

import (
	"errors"
	"testing"
)

func TestAuthorize(t *testing.T) {
	admin := &Identity{ID: "1", Role: RoleAdmin}
	recruiter := &Identity{ID: "2", Role: RoleRecruiter}
	viewer := &Identity{ID: "3", Role: RoleViewer}

	tests := []struct {
		name  string
		id    *Identity
		allow Predicate
		want  error
	}{
		{"нет личности", nil, IsRecruiterOrAdmin, ErrUnauthenticated},
		{"нет личности, без ограничений", nil, nil, ErrUnauthenticated},
		{"admin — recruiter-or-admin", admin, IsRecruiterOrAdmin, nil},
		{"recruiter — recruiter-or-admin", recruiter, IsRecruiterOrAdmin, nil},
		{"viewer — recruiter-or-admin", viewer, IsRecruiterOrAdmin, ErrForbidden},
		{"admin — admin-only", admin, IsAdmin, nil},
		{"recruiter — admin-only", recruiter, IsAdmin, ErrForbidden},
		{"viewer — любой сотрудник", viewer, nil, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.id, tt.allow)
			if !errors.Is(err, tt.want) {
				t.Errorf("Authorize() = %v, хотели %v", err, tt.want)
			}
		})
	}
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		role             string
		admin, recruiter bool
	}{
		{RoleAdmin, true, true},
		{RoleRecruiter, false, true},
		{RoleViewer, false, false},
		{"unknown", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			id := &Identity{Role: tt.role}
			if got := IsAdmin(id); got != tt.admin {
				t.Errorf("IsAdmin(%q) = %v, хотели %v", tt.role, got, tt.admin)
			}
			if got := IsRecruiterOrAdmin(id); got != tt.recruiter {
				t.Errorf("IsRecruiterOrAdmin(%q) = %v, хотели %v", tt.role, got, tt.recruiter)
			}
		})
	}

	if IsAdmin(nil) || IsRecruiterOrAdmin(nil) {
		t.Error("nil-личность не должна проходить проверки")
	}
}

func TestIsValidRole(t *testing.T) {
	for _, r := range []string{RoleAdmin, RoleRecruiter, RoleViewer} {
		if !IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = false", r)
		}
	}
	for _, r := range []string{"", "readonly", "Admin"} {
		if IsValidRole(r) {
			t.Errorf("IsValidRole(%q) = true", r)
		}
	}
}
