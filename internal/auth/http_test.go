// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers header and query token extraction, expiry, and context propagation

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func serveWithAuth(t *testing.T, a *Authenticator, req *http.Request) (*httptest.ResponseRecorder, *AuthContext) {
	t.Helper()
	var got *AuthContext
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	HTTPAuthMiddleware(a)(handler).ServeHTTP(rec, req)
	return rec, got
}

func TestHTTPAuthMiddleware_ValidToken(t *testing.T) {
	a := newTestAuthenticator(t)
	token, _ := a.Login("admin", "secure_password_123")

	req := httptest.NewRequest(http.MethodPost, "/api/offer", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec, authCtx := serveWithAuth(t, a, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if authCtx == nil || authCtx.Username != "admin" {
		t.Errorf("expected AuthContext for admin, got %+v", authCtx)
	}
}

func TestHTTPAuthMiddleware_Rejections(t *testing.T) {
	a := newTestAuthenticator(t)
	expired, _ := a.tokens.Generate("admin", -time.Minute)

	tests := []struct {
		name   string
		header string
		want   string
	}{
		{name: "missing header", header: "", want: "missing authorization header"},
		{name: "basic scheme", header: "Basic YWRtaW46cGFzcw==", want: "invalid authorization header format"},
		{name: "empty bearer", header: "Bearer ", want: "empty token"},
		{name: "garbage", header: "Bearer nope", want: "invalid authentication credentials"},
		{name: "expired", header: "Bearer " + expired, want: "token has expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/tools", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec, authCtx := serveWithAuth(t, a, req)

			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", rec.Code)
			}
			if authCtx != nil {
				t.Error("handler should not have run")
			}
			if !strings.Contains(rec.Body.String(), tt.want) {
				t.Errorf("body = %q, want it to contain %q", rec.Body.String(), tt.want)
			}
			if rec.Header().Get("WWW-Authenticate") != "Bearer" {
				t.Error("expected WWW-Authenticate: Bearer")
			}
		})
	}
}

func TestHTTPAuthMiddleware_QueryTokenOnUpgradeOnly(t *testing.T) {
	a := newTestAuthenticator(t)
	token, _ := a.Login("admin", "secure_password_123")

	upgrade := httptest.NewRequest(http.MethodGet, "/ws/abc?token="+token, nil)
	upgrade.Header.Set("Upgrade", "websocket")
	rec, authCtx := serveWithAuth(t, a, upgrade)
	if rec.Code != http.StatusOK || authCtx == nil {
		t.Errorf("upgrade with query token: status %d, auth %+v", rec.Code, authCtx)
	}

	plain := httptest.NewRequest(http.MethodGet, "/api/tools?token="+token, nil)
	rec, _ = serveWithAuth(t, a, plain)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("query token outside upgrade: expected 401, got %d", rec.Code)
	}
}
