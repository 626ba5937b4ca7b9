package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const secret = "test-secret"

func TestGenerateAndValidate(t *testing.T) {
	tok, err := GenerateToken(secret, "admin-1", time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}
	claims, err := ValidateToken(secret, tok)
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if claims.AdminID != "admin-1" {
		t.Errorf("expected admin-1, got %q", claims.AdminID)
	}
}

func TestValidateRejects(t *testing.T) {
	expired, _ := GenerateToken(secret, "admin-1", -time.Minute)
	if _, err := ValidateToken(secret, expired); err == nil {
		t.Error("expected expired token to fail")
	}

	tok, _ := GenerateToken(secret, "admin-1", time.Hour)
	if _, err := ValidateToken("other-secret", tok); err == nil {
		t.Error("expected wrong secret to fail")
	}
	if _, err := ValidateToken(secret, "garbage"); err == nil {
		t.Error("expected garbage to fail")
	}
}

func TestGenerateRequiresAdmin(t *testing.T) {
	if _, err := GenerateToken(secret, "", time.Hour); err == nil {
		t.Fatal("expected error for empty admin id")
	}
}

func TestEmptySecretRefused(t *testing.T) {
	if _, err := GenerateToken("", "admin-1", time.Hour); !errors.Is(err, ErrNoSecret) {
		t.Errorf("expected ErrNoSecret when signing, got %v", err)
	}

	// A token signed with an empty key must not pass an unconfigured server.
	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{AdminID: "victim-admin"}).SignedString([]byte(""))
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	if _, err := ValidateToken("", forged); !errors.Is(err, ErrNoSecret) {
		t.Errorf("expected ErrNoSecret when verifying, got %v", err)
	}

	h := Middleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest("GET", "/forms", nil)
	req.Header.Set("Authorization", "Bearer "+forged)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
}

func TestMiddleware(t *testing.T) {
	var seen string
	h := Middleware(secret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = AdminID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/forms", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without header, got %d", w.Code)
	}

	req = httptest.NewRequest("GET", "/forms", nil)
	req.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for invalid token, got %d", w.Code)
	}

	tok, _ := GenerateToken(secret, "admin-7", time.Hour)
	req = httptest.NewRequest("GET", "/forms", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 with valid token, got %d", w.Code)
	}
	if seen != "admin-7" {
		t.Errorf("expected admin-7 in context, got %q", seen)
	}
}
