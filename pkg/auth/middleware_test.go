package auth_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/IlyasuSeidu/forge-sub004/pkg/auth"
)

func setupValidator(t *testing.T) *auth.JWTValidator {
	t.Helper()
	v := auth.NewJWTValidator([]byte("test-secret-key-material"))
	if v == nil {
		t.Fatal("expected non-nil validator")
	}
	return v
}

func TestMiddleware_ValidJWT(t *testing.T) {
	validator := setupValidator(t)
	middleware := auth.NewMiddleware(validator)

	var captured auth.Principal
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := auth.GetPrincipal(r.Context())
		if err != nil {
			t.Errorf("expected principal in context: %v", err)
		}
		captured = p
		w.WriteHeader(http.StatusOK)
	}))

	token, err := validator.Issue("human-1", "approver", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest("POST", "/requests/r1/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if captured == nil || captured.GetID() != "human-1" {
		t.Fatalf("expected principal human-1, got %v", captured)
	}
}

func TestMiddleware_ExpiredJWT(t *testing.T) {
	validator := setupValidator(t)
	middleware := auth.NewMiddleware(validator)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for expired token")
	}))

	token, err := validator.Issue("human-1", "approver", -time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	req := httptest.NewRequest("POST", "/requests/r1/approve", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_MissingHeader(t *testing.T) {
	validator := setupValidator(t)
	middleware := auth.NewMiddleware(validator)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called without auth header")
	}))

	req := httptest.NewRequest("POST", "/requests/r1/approve", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_NilValidator_FailClosed(t *testing.T) {
	middleware := auth.NewMiddleware(nil)

	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called when validator is nil")
	}))

	req := httptest.NewRequest("POST", "/requests/r1/approve", nil)
	req.Header.Set("Authorization", "Bearer some-token")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware_PublicPathsBypass(t *testing.T) {
	validator := setupValidator(t)
	middleware := auth.NewMiddleware(validator)

	called := false
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if !called {
		t.Error("handler should be called for public paths without auth")
	}
}

func TestRequireAdmin_RejectsNonAdmin(t *testing.T) {
	validator := setupValidator(t)
	chain := auth.NewMiddleware(validator)(auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for a non-admin principal")
	})))

	token, err := validator.Issue("human-1", "approver", time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest("POST", "/requests/r1/cancel", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403, got %d", w.Code)
	}
}

func TestRequireAdmin_AllowsAdmin(t *testing.T) {
	validator := setupValidator(t)
	called := false
	chain := auth.NewMiddleware(validator)(auth.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	})))

	token, err := validator.Issue("admin-1", auth.RoleAdmin, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	req := httptest.NewRequest("POST", "/requests/r1/cancel", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	chain.ServeHTTP(w, req)

	if !called || w.Code != http.StatusOK {
		t.Errorf("expected admin call to succeed, got code %d", w.Code)
	}
}

func TestCorrelationID_ExtractsFromContext(t *testing.T) {
	var got string
	handler := auth.CorrelationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/requests/r1", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got == "" {
		t.Fatal("expected non-empty correlation id from context")
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header to be set")
	}
}

func TestCorrelationID_ReusesCallerSuppliedHeader(t *testing.T) {
	var got string
	handler := auth.CorrelationIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = auth.CorrelationID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/requests/r1", nil)
	req.Header.Set("X-Request-ID", "upstream-trace-id")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if got != "upstream-trace-id" {
		t.Fatalf("expected caller-supplied correlation id to be reused, got %q", got)
	}
	if w.Header().Get("X-Request-ID") != "upstream-trace-id" {
		t.Fatal("expected response header to echo the caller-supplied id")
	}
}
