package auth

import (
	"testing"

	"github.com/taskboard/taskboard/internal/errors"
)

func TestRequireOwnership(t *testing.T) {
	tests := []struct {
		name     string
		claims   *Claims
		ownerID  string
		wantCode errors.ErrorCode
	}{
		{"owner", &Claims{UserID: "1"}, "1", ""},
		{"not owner", &Claims{UserID: "1"}, "2", errors.CodeForbidden},
		{"nil claims", nil, "1", errors.CodeMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireOwnership(tt.claims, tt.ownerID)
			assertCode(t, err, tt.wantCode)
		})
	}
}

func TestRequireRole(t *testing.T) {
	tests := []struct {
		name     string
		claims   *Claims
		role     string
		wantCode errors.ErrorCode
	}{
		{"matching role", &Claims{UserID: "1", Role: "admin"}, "admin", ""},
		{"wrong role", &Claims{UserID: "1", Role: "viewer"}, "admin", errors.CodeForbidden},
		{"no role at all", &Claims{UserID: "1"}, "admin", errors.CodeMissingRole},
		{"nil claims", nil, "admin", errors.CodeMissingCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequireRole(tt.claims, tt.role)
			assertCode(t, err, tt.wantCode)
		})
	}
}

func assertCode(t *testing.T, err error, want errors.ErrorCode) {
	t.Helper()
	if want == "" {
		if err != nil {
			t.Errorf("error = %v, want nil", err)
		}
		return
	}
	se := errors.GetServiceError(err)
	if se == nil {
		t.Fatalf("error = %v, want ServiceError with code %s", err, want)
	}
	if se.Code != want {
		t.Errorf("Code = %s, want %s", se.Code, want)
	}
}
