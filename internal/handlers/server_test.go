//nolint:errcheck // Test file - ignoring error checks for json.Unmarshal
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aira-metrics/dashboard/internal/cache"
	"github.com/aira-metrics/dashboard/internal/fixtures"
	"github.com/aira-metrics/dashboard/internal/models"
	"github.com/aira-metrics/dashboard/internal/services"
	"github.com/aira-metrics/dashboard/internal/upstream"
)

const fixtureSessionID = "ae620910-91bf-4a0e-892a-58fec8da54f2"

// fakeAPI serves the embedded fixtures as if they were live, or fails.
type fakeAPI struct {
	mu      sync.Mutex
	fx      *fixtures.Set
	err     error
	queries []upstream.SessionQuery
}

func (f *fakeAPI) Users(ctx context.Context) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.fx.Users(), nil
}

func (f *fakeAPI) Sessions(ctx context.Context, q upstream.SessionQuery) ([]models.APISession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	return f.fx.Sessions(q.Usernames), nil
}

func (f *fakeAPI) SessionDetail(ctx context.Context, id string) (models.SessionDetailPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return models.SessionDetailPayload{}, f.err
	}
	p, ok := f.fx.SessionDetail(id)
	if !ok {
		return models.SessionDetailPayload{}, &upstream.HTTPError{What: "session details", StatusCode: 404, StatusText: "Not Found"}
	}
	return p, nil
}

func (f *fakeAPI) fail(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

type testServer struct {
	app *fiber.App
	api *fakeAPI
}

func newTestServer(t *testing.T, withPlaceholder bool, mutate ...func(*AppConfig)) *testServer {
	t.Helper()
	fx := fixtures.MustLoad(time.Now())
	api := &fakeAPI{fx: fx}

	var placeholder *fixtures.Set
	if withPlaceholder {
		placeholder = fx
	}
	svc := services.NewAnalyticsService(api, placeholder, cache.Config{MaxSize: 16, DefaultTTL: time.Hour})
	t.Cleanup(func() { _ = svc.Close() })

	cfg := AppConfig{
		Service:  svc,
		Fallback: services.DefaultFallbackPolicy,
		Location: time.UTC,
	}
	for _, m := range mutate {
		m(&cfg)
	}
	app, err := NewApp(cfg)
	require.NoError(t, err)
	return &testServer{app: app, api: api}
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	return resp, string(body)
}

func (s *testServer) get(t *testing.T, target string) (*http.Response, string) {
	t.Helper()
	return s.do(t, httptest.NewRequest("GET", target, nil))
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, false)
	_, _ = s.get(t, "/api/users")
	resp, body := s.get(t, "/healthz")
	assert.Equal(t, 200, resp.StatusCode)

	var health struct {
		Status string                 `json:"status"`
		Caches map[string]cache.Stats `json:"caches"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Contains(t, health.Caches, "users")
	assert.Equal(t, 1, health.Caches["users"].Size)
}

func TestStatic(t *testing.T) {
	s := newTestServer(t, false)
	resp, body := s.get(t, "/static/app.css")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, ".metrics")
}

func TestCompression(t *testing.T) {
	s := newTestServer(t, false)

	req := httptest.NewRequest("GET", "/?range=all", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	resp, _ := s.do(t, req)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "gzip", resp.Header.Get("Content-Encoding"))
}

func TestDashboardPage(t *testing.T) {
	s := newTestServer(t, false)

	resp, body := s.get(t, "/?range=all")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	assert.Contains(t, body, "<h2>Sessions <small>3</small></h2>")
	assert.Contains(t, body, "/sessions/"+fixtureSessionID)
	assert.Contains(t, body, `<option value="John Doe"`)
	assert.NotContains(t, body, `class="banner`)
}

func TestDashboardPage_FilterApplied(t *testing.T) {
	s := newTestServer(t, false)

	resp, body := s.get(t, "/?range=all&user=John+Doe&sort=tokens&order=asc")
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, `<option value="John Doe" selected>`)
	assert.Contains(t, body, `<option value="tokens" selected>`)

	require.NotEmpty(t, s.api.queries)
	assert.Equal(t, []string{"john doe"}, s.api.queries[len(s.api.queries)-1].Usernames)
}

func TestDashboardPage_UpstreamDown(t *testing.T) {
	t.Run("placeholder", func(t *testing.T) {
		s := newTestServer(t, true)
		s.api.fail(errors.New("dial tcp: connection refused"))

		resp, body := s.get(t, "/?range=all")
		assert.Equal(t, 200, resp.StatusCode)
		assert.Contains(t, body, "banner-warning")
		assert.Contains(t, body, "connection refused")
		assert.Contains(t, body, "placeholder data")
	})

	t.Run("nothing to show", func(t *testing.T) {
		s := newTestServer(t, false)
		s.api.fail(errors.New("dial tcp: connection refused"))

		resp, body := s.get(t, "/")
		assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
		assert.Contains(t, body, "banner-error")
		assert.Contains(t, body, "No sessions match these filters.")
	})
}

func TestSessionPage(t *testing.T) {
	s := newTestServer(t, false)

	resp, body := s.get(t, "/sessions/"+fixtureSessionID)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, body, "<strong>session timeout</strong>", "markdown is rendered")
	assert.Contains(t, body, "mcp_platform-server_getLoginConfig")
	assert.Contains(t, body, "toolu_011Mz6rdEbP5w4uYRN98ExJD")
	assert.Contains(t, body, "format=yaml")
}

func TestSessionPage_Unknown(t *testing.T) {
	s := newTestServer(t, false)
	resp, body := s.get(t, "/sessions/missing")
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
	assert.Contains(t, body, "404 Not Found")
}

func TestNotFoundPage(t *testing.T) {
	s := newTestServer(t, false)
	resp, body := s.get(t, "/nowhere")
	assert.Equal(t, 404, resp.StatusCode)
	assert.Contains(t, body, "<h1>404</h1>")

	req := httptest.NewRequest("GET", "/nowhere", nil)
	req.Header.Set("Accept", "application/json")
	resp, body = s.do(t, req)
	assert.Equal(t, 404, resp.StatusCode)
	assert.True(t, strings.HasPrefix(body, `{"error":`))
}

func decodeEnvelope(t *testing.T, body string) (Envelope, json.RawMessage) {
	t.Helper()
	var raw struct {
		Envelope
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &raw))
	return raw.Envelope, raw.Data
}
