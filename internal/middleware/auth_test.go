package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/k0msak007/jobber-chat/internal/auth"
)

func authedHandler(t *testing.T, wantUsername string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			t.Error("expected claims in request context")
		} else if claims.Username != wantUsername {
			t.Errorf("expected username %s, got %s", wantUsername, claims.Username)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	jwtSvc := auth.NewJWTService("test-secret")
	token, err := jwtSvc.GenerateToken("user-1", "alice", "alice@example.com")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	handler := AuthMiddleware(jwtSvc)(authedHandler(t, "alice"))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/message/mark-as-read", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	jwtSvc := auth.NewJWTService("test-secret")
	handler := AuthMiddleware(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/message/offer", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestAuthMiddleware_InvalidToken(t *testing.T) {
	jwtSvc := auth.NewJWTService("test-secret")
	handler := AuthMiddleware(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	req := httptest.NewRequest(http.MethodPut, "/api/v1/message/offer", nil)
	req.Header.Set("Authorization", "Bearer not-a-valid-token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "not-a-valid-token") {
		t.Error("error response must not echo the submitted token")
	}
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	jwtSvc := auth.NewJWTService("test-secret")
	handler := AuthMiddleware(jwtSvc)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be reached")
	}))

	for _, header := range []string{"Basic abc123", "Bearer", "bearer-token-no-space"} {
		req := httptest.NewRequest(http.MethodPut, "/api/v1/message/offer", nil)
		req.Header.Set("Authorization", header)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusUnauthorized {
			t.Errorf("header %q: expected 401, got %d", header, rec.Code)
		}
	}
}
