package httpserver

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SmartLinkDrive/CarRental/internal/common/auth"
	"github.com/SmartLinkDrive/CarRental/internal/common/config"
)

func testAuthCfg() config.AuthConfig {
	return config.AuthConfig{
		Enabled:   true,
		JWTSecret: "test-secret",
		Issuer:    "carrental",
		Audience:  "carrental",
	}
}

func okHandler(t *testing.T, wantID string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ai, ok := AuthFromContext(r.Context())
		if !ok {
			t.Fatalf("missing auth info in ctx")
		}
		if ai.ID != wantID {
			t.Fatalf("subject mismatch: %s", ai.ID)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthAndRole(t *testing.T) {
	cfg := testAuthCfg()

	token, _, err := auth.GenerateAccessToken(cfg, "u-1", "alice", []string{"user", "admin"}, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	h := RequireAuth(cfg, nil)(RequireRole(cfg, "admin")(okHandler(t, "u-1")))

	req := httptest.NewRequest(http.MethodGet, "/bookings/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestRequireAuthMissingToken(t *testing.T) {
	cfg := testAuthCfg()
	h := RequireAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run without token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAuthBadToken(t *testing.T) {
	cfg := testAuthCfg()
	h := RequireAuth(cfg, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run with bad token")
	}))

	req := httptest.NewRequest(http.MethodPost, "/bookings", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRoleRejectsNonAdmin(t *testing.T) {
	cfg := testAuthCfg()

	token, _, err := auth.GenerateAccessToken(cfg, "u-2", "bob", []string{"user"}, time.Hour)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	h := RequireAuth(cfg, nil)(RequireRole(cfg, "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not run without admin role")
	})))

	req := httptest.NewRequest(http.MethodGet, "/bookings/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}
