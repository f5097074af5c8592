package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "middleware-test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func adminClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"username": "admin",
		"role":     RoleAdmin,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
}

func TestAuthenticate(t *testing.T) {
	auth := NewAuthenticator(testSecret)

	var gotUsername, gotRole string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var err error
		if gotUsername, err = GetUsernameFromContext(r.Context()); err != nil {
			t.Errorf("username from context: %v", err)
		}
		if gotRole, err = GetRoleFromContext(r.Context()); err != nil {
			t.Errorf("role from context: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})
	handler := auth.Authenticate(next)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, adminClaims()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotUsername != "admin" || gotRole != RoleAdmin {
		t.Errorf("claims = %q/%q, want admin/admin", gotUsername, gotRole)
	}
}

func TestAuthenticate_Rejections(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached with invalid token")
	})
	handler := auth.Authenticate(next)

	expired := adminClaims()
	expired["exp"] = time.Now().Add(-time.Minute).Unix()

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"empty token", "Bearer "},
		{"garbage token", "Bearer not.a.token"},
		{"wrong secret", "Bearer " + signToken(t, "other-secret", adminClaims())},
		{"expired", "Bearer " + signToken(t, testSecret, expired)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want 401", rec.Code)
			}
		})
	}
}

func TestAuthorize(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	protected := auth.Authenticate(Authorize(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, adminClaims()))
	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("admin role: status = %d, want 200", rec.Code)
	}

	viewer := adminClaims()
	viewer["role"] = "viewer"
	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, viewer))
	rec = httptest.NewRecorder()
	protected.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("viewer role: status = %d, want 403", rec.Code)
	}

	// Authorize without Authenticate in front has no claims to check.
	bare := Authorize(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler reached without claims")
	}))
	req = httptest.NewRequest(http.MethodPost, "/admin", nil)
	rec = httptest.NewRecorder()
	bare.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("no claims: status = %d, want 403", rec.Code)
	}
}

func TestClaimHelpers_MissingClaims(t *testing.T) {
	auth := NewAuthenticator(testSecret)
	claims := jwt.MapClaims{"exp": time.Now().Add(time.Hour).Unix()}

	handler := auth.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := GetUsernameFromContext(r.Context()); err == nil {
			t.Error("expected error for missing username claim")
		}
		if _, err := GetRoleFromContext(r.Context()); err == nil {
			t.Error("expected error for missing role claim")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, claims))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}
