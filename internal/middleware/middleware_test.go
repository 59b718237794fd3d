package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"

	"github.com/enterprise-bte/bte-engine/internal/config"
)

func testStack() *Stack {
	cfg := &config.Config{
		JWT: config.JWTConfig{Secret: "test-secret", Issuer: "https://bte-engine.local", Audience: "bte-engine"},
	}
	return New(cfg, zerolog.Nop())
}

func signToken(t *testing.T, secret, issuer, audience, subject string, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": subject,
		"iss": issuer,
		"aud": audience,
		"exp": time.Now().Add(expiresIn).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return signed
}

func TestJWTAuth_ValidTokenInjectsUserID(t *testing.T) {
	s := testStack()
	tok := signToken(t, "test-secret", "https://bte-engine.local", "bte-engine", "user-42", time.Hour)

	var gotUserID string
	var gotOK bool
	handler := s.JWTAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID, gotOK = UserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/pending", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !gotOK || gotUserID != "user-42" {
		t.Errorf("UserID() = (%q, %v), want (\"user-42\", true)", gotUserID, gotOK)
	}
}

func TestJWTAuth_MissingHeaderRejected(t *testing.T) {
	s := testStack()
	handler := s.JWTAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/pending", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuth_ExpiredTokenRejected(t *testing.T) {
	s := testStack()
	tok := signToken(t, "test-secret", "https://bte-engine.local", "bte-engine", "user-42", -time.Hour)

	handler := s.JWTAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called with an expired token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/pending", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestJWTAuth_WrongSecretRejected(t *testing.T) {
	s := testStack()
	tok := signToken(t, "wrong-secret", "https://bte-engine.local", "bte-engine", "user-42", time.Hour)

	handler := s.JWTAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called with a bad signature")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/me/pending", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAPIKeyAuth_BypassesHealthEndpoint(t *testing.T) {
	cfg := &config.Config{APIKey: "secret-key"}
	s := New(cfg, zerolog.Nop())

	called := false
	handler := s.APIKeyAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !called {
		t.Error("handler should be invoked for /health even without an api-key header")
	}
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestAPIKeyAuth_RejectsWrongKey(t *testing.T) {
	cfg := &config.Config{APIKey: "secret-key"}
	s := New(cfg, zerolog.Nop())

	handler := s.APIKeyAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called with a wrong api key")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/transfers/tx-1/status", nil)
	req.Header.Set("api-key", "wrong")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
