package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/meridian-care/platform/internal/privacy"
	"github.com/meridian-care/platform/internal/shared/config"
)

const testSecret = "test-secret"

func signToken(t *testing.T, role string) string {
	t.Helper()

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Role: role,
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return token
}

func protectedHandler(t *testing.T, gotUser **User) http.Handler {
	t.Helper()

	cfg := config.AuthConfig{JWTSecret: testSecret}
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*gotUser = GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	return Middleware(cfg)(inner)
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	var user *User
	handler := protectedHandler(t, &user)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "doctor"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if user == nil {
		t.Fatal("Expected user in context")
	}
	if user.Role != privacy.RoleDoctor {
		t.Errorf("Expected doctor role, got %s", user.Role)
	}
	if user.ID != "user-1" {
		t.Errorf("Expected subject user-1, got %s", user.ID)
	}
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	var user *User
	handler := protectedHandler(t, &user)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401, got %d", rec.Code)
	}
}

func TestMiddlewareRejectsUnknownRole(t *testing.T) {
	var user *User
	handler := protectedHandler(t, &user)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "superuser"))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for unknown role, got %d", rec.Code)
	}
}

func TestMiddlewareRejectsBadSignature(t *testing.T) {
	var user *User
	handler := protectedHandler(t, &user)

	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		Role:             "doctor",
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("wrong-secret"))
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 for bad signature, got %d", rec.Code)
	}
}

func contextWithUser(r *http.Request, user *User) context.Context {
	return context.WithValue(r.Context(), UserContextKey, user)
}

func TestRequireRoles(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireRoles(privacy.RoleDoctor, privacy.RoleAdmin)(inner)

	// No user in context.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without user, got %d", rec.Code)
	}

	// Wrong role.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextWithUser(req, &User{ID: "p1", Role: privacy.RolePatient}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for patient, got %d", rec.Code)
	}

	// Allowed role.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(contextWithUser(req, &User{ID: "d1", Role: privacy.RoleDoctor}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200 for doctor, got %d", rec.Code)
	}
}
