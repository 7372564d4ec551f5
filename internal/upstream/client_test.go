package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aira-metrics/dashboard/internal/models"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.BaseURL = srv.URL
	if cfg.Timeout == 0 {
		cfg.Timeout = 2 * time.Second
	}
	return NewClient(cfg)
}

func TestClient_Users(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users", r.URL.Path)
		assert.Equal(t, http.MethodGet, r.Method)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `["john doe", {"id": "2", "name": "Jane Smith"}]`)
	}, Config{})

	users, err := client.Users(context.Background())
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "john doe", users[0].Name)
	assert.Equal(t, "Jane Smith", users[1].Name)
}

func TestClient_SessionsPOST(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/sessions", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string][]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, []string{"john doe"}, body["usernames"])

		_, _ = io.WriteString(w, `{"count": 1, "data": [{
			"session_id": "s1",
			"first_interaction": "Tue, 26 Aug 2025 10:00:00 GMT",
			"last_interaction": "Tue, 26 Aug 2025 10:05:00 GMT",
			"interaction_count": 15,
			"project_name": "pilot_test",
			"user_name": "john doe"
		}]}`)
	}, Config{})

	sessions, err := client.Sessions(context.Background(), SessionQuery{Usernames: []string{"john doe"}})
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "s1", sessions[0].SessionID)
	assert.Equal(t, 15, sessions[0].InteractionCount)
}

func TestClient_SessionsPOSTSendsEmptyList(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"usernames": []}`, string(raw))
		_, _ = io.WriteString(w, `{"count": 0, "data": []}`)
	}, Config{})

	sessions, err := client.Sessions(context.Background(), SessionQuery{})
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestClient_SessionsGET(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, []string{"a", "b"}, r.URL.Query()["username"])
		assert.Equal(t, "pilot_test", r.URL.Query().Get("project"))
		_, _ = io.WriteString(w, `{"count": 0, "data": []}`)
	}, Config{SessionsMethod: SessionsGET})

	_, err := client.Sessions(context.Background(), SessionQuery{Usernames: []string{"a", "b"}, Project: "pilot_test"})
	require.NoError(t, err)
}

func TestClient_HTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}, Config{})

	_, err := client.Sessions(context.Background(), SessionQuery{})
	require.Error(t, err)

	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, 500, httpErr.StatusCode)
	assert.Equal(t, "Failed to fetch sessions: 500 Internal Server Error", err.Error())
}

func TestClient_DecodeError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"count": "many", "data": {}}`)
	}, Config{})

	_, err := client.Sessions(context.Background(), SessionQuery{})
	var decodeErr *DecodeError
	require.True(t, errors.As(err, &decodeErr))
	assert.Equal(t, "sessions", decodeErr.What)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}, Config{Retries: 3})

	users, err := client.Users(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_NoRetryByDefaultOrOnClientErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, Config{})

	_, err := client.Users(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())

	calls.Store(0)
	client = newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}, Config{Retries: 3})

	_, err = client.Users(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_SessionDetailFallsBackOn404(t *testing.T) {
	var (
		mu    sync.Mutex
		paths []string
	)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		paths = append(paths, r.URL.Path)
		mu.Unlock()
		if r.URL.Path == "/sessions/s1" {
			http.NotFound(w, r)
			return
		}
		_, _ = io.WriteString(w, `{"r1": [{"request_id": "r1", "timestamp": 1, "response_type": ["text"], "response_content": ["hi"]}]}`)
	}, Config{})

	payload, err := client.SessionDetail(context.Background(), "s1")
	require.NoError(t, err)
	mu.Lock()
	assert.Equal(t, []string{"/sessions/s1", "/session-details/s1"}, paths)
	mu.Unlock()
	assert.Equal(t, models.DetailByRequest, payload.Shape)
	assert.Equal(t, 1, payload.Len())
}

func TestClient_SessionDetailStopsOnOtherErrors(t *testing.T) {
	var calls atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}, Config{})

	_, err := client.SessionDetail(context.Background(), "s1")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Contains(t, err.Error(), "Failed to fetch session details: 403 Forbidden")
}

func TestClient_SessionDetailAllMissing(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}, Config{})

	_, err := client.SessionDetail(context.Background(), "nope")
	assert.True(t, IsNotFound(err))
}

func TestClient_ContextCancel(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	}, Config{Timeout: 5 * time.Second})
	t.Cleanup(func() { close(release) })

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := client.Users(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 2*time.Second)
}
