//nolint:errcheck // Test file - ignoring error checks for json.Unmarshal
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aira-metrics/dashboard/internal/auth"
	"github.com/aira-metrics/dashboard/internal/middleware"
)

type stubVerifier struct {
	identity *auth.Identity
	err      error
}

func (v stubVerifier) Verify(ctx context.Context, idToken string) (*auth.Identity, error) {
	if idToken != "good-credential" {
		return nil, auth.ErrInvalidSignature
	}
	return v.identity, v.err
}

const testSecret = "0123456789abcdef0123456789abcdef"

func newAuthServer(t *testing.T, verifier IDTokenVerifier) (*testServer, *middleware.AuthMiddleware) {
	t.Helper()
	am, err := middleware.NewAuthMiddleware(middleware.Config{Enabled: true, Secret: testSecret, TTL: time.Hour})
	require.NoError(t, err)
	s := newTestServer(t, false, func(cfg *AppConfig) {
		cfg.Auth = am
		cfg.Verifier = verifier
		cfg.GoogleClientID = "client-123"
	})
	return s, am
}

func signInRequest(csrfCookie, csrfForm, credential string) *http.Request {
	form := url.Values{"credential": {credential}, "g_csrf_token": {csrfForm}}
	req := httptest.NewRequest("POST", "/auth/google?next=%2Fsessions%2Fabc", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if csrfCookie != "" {
		req.AddCookie(&http.Cookie{Name: "g_csrf_token", Value: csrfCookie})
	}
	return req
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == middleware.CookieName {
			return c
		}
	}
	return nil
}

func TestLoginPage(t *testing.T) {
	s, _ := newAuthServer(t, stubVerifier{})

	resp, body := s.get(t, "/login?next=/sessions/abc")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, `data-client_id="client-123"`)
	assert.Contains(t, body, `data-login_uri="/auth/google?next=%2Fsessions%2Fabc"`)
}

func TestLoginPage_AuthDisabled(t *testing.T) {
	s := newTestServer(t, false)
	resp, _ := s.get(t, "/login")
	assert.Equal(t, 303, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))
}

func TestGoogleCallback(t *testing.T) {
	identity := &auth.Identity{Subject: "42", Email: "jane@wavemaker.com", Name: "Jane"}

	t.Run("signs in and redirects to next", func(t *testing.T) {
		s, am := newAuthServer(t, stubVerifier{identity: identity})
		resp, _ := s.do(t, signInRequest("csrf-1", "csrf-1", "good-credential"))
		assert.Equal(t, 303, resp.StatusCode)
		assert.Equal(t, "/sessions/abc", resp.Header.Get("Location"))

		cookie := sessionCookie(resp)
		require.NotNil(t, cookie)
		assert.True(t, cookie.HttpOnly)
		claims, err := am.ValidateToken(cookie.Value)
		require.NoError(t, err)
		assert.Equal(t, "jane@wavemaker.com", claims.Email)
	})

	t.Run("csrf mismatch", func(t *testing.T) {
		s, _ := newAuthServer(t, stubVerifier{identity: identity})
		resp, body := s.do(t, signInRequest("csrf-1", "csrf-2", "good-credential"))
		assert.Equal(t, 400, resp.StatusCode)
		assert.Nil(t, sessionCookie(resp))
		assert.Contains(t, body, "Sign-in failed")
	})

	t.Run("missing csrf cookie", func(t *testing.T) {
		s, _ := newAuthServer(t, stubVerifier{identity: identity})
		resp, _ := s.do(t, signInRequest("", "", "good-credential"))
		assert.Equal(t, 400, resp.StatusCode)
	})

	t.Run("verification fails", func(t *testing.T) {
		s, _ := newAuthServer(t, stubVerifier{err: auth.ErrDomainNotAllowed})
		resp, body := s.do(t, signInRequest("c", "c", "good-credential"))
		assert.Equal(t, 401, resp.StatusCode)
		assert.Contains(t, body, "not allowed")
	})
}

func TestAuthenticatedRequests(t *testing.T) {
	s, am := newAuthServer(t, stubVerifier{})

	resp, _ := s.get(t, "/")
	assert.Equal(t, 303, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Location"), "/login"))

	resp, _ = s.get(t, "/api/users")
	assert.Equal(t, 401, resp.StatusCode)

	token, _, err := am.IssueToken("42", "jane@wavemaker.com", "Jane", "")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/?range=all", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: token})
	resp, body := s.do(t, req)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, "Jane")
	assert.Contains(t, body, `action="/auth/logout"`)

	req = httptest.NewRequest("GET", "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: middleware.CookieName, Value: token})
	resp, body = s.do(t, req)
	assert.Equal(t, 200, resp.StatusCode)
	var me MeResponse
	require.NoError(t, json.Unmarshal([]byte(body), &me))
	assert.True(t, me.Authenticated)
	assert.Equal(t, "42", me.User.Subject)
}

func TestMe_BearerToken(t *testing.T) {
	s, am := newAuthServer(t, stubVerifier{})
	token, _, err := am.IssueToken("42", "jane@wavemaker.com", "Jane", "")
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, body := s.do(t, req)
	assert.Equal(t, 200, resp.StatusCode)

	var me MeResponse
	require.NoError(t, json.Unmarshal([]byte(body), &me))
	assert.True(t, me.Authenticated)
	assert.Equal(t, "42", me.User.Subject)

	req = httptest.NewRequest("GET", "/auth/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, _ = s.do(t, req)
	assert.Equal(t, 401, resp.StatusCode)
}

func TestMe_Anonymous(t *testing.T) {
	s, _ := newAuthServer(t, stubVerifier{})
	resp, _ := s.get(t, "/auth/me")
	assert.Equal(t, 401, resp.StatusCode)
}

func TestLogout(t *testing.T) {
	s, _ := newAuthServer(t, stubVerifier{})
	resp, _ := s.do(t, httptest.NewRequest("POST", "/auth/logout", nil))
	assert.Equal(t, 303, resp.StatusCode)
	assert.Equal(t, "/login", resp.Header.Get("Location"))

	cookie := sessionCookie(resp)
	require.NotNil(t, cookie)
	assert.Empty(t, cookie.Value)
}

func TestSafeNext(t *testing.T) {
	assert.Equal(t, "/", safeNext(""))
	assert.Equal(t, "/", safeNext("https://evil.example.com"))
	assert.Equal(t, "/", safeNext("//evil.example.com"))
	assert.Equal(t, "/sessions/abc?x=1", safeNext("/sessions/abc?x=1"))
}
