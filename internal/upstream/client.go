// Package upstream is the client of the remote session analytics API.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/valyala/fasthttp"

	"github.com/aira-metrics/dashboard/internal/logger"
	"github.com/aira-metrics/dashboard/internal/models"
)

// Sessions calling conventions
const (
	SessionsPOST = "post"
	SessionsGET  = "get"
)

// DefaultBaseURL is the production analytics API.
const DefaultBaseURL = "https://aira-metrics.onwavemaker.com"

// DefaultDetailPaths are tried in order for a session's detail.
var DefaultDetailPaths = []string{"/sessions/{id}", "/session-details/{id}"}

// Config configures a Client.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	Retries        int
	SessionsMethod string
	DetailPaths    []string
	UserAgent      string
}

// SessionQuery selects sessions. Usernames is sent as-is; the other fields
// are only honoured by the GET convention.
type SessionQuery struct {
	Usernames []string
	Project   string
	From      time.Time
	To        time.Time
}

// Client talks to the analytics API.
type Client struct {
	cfg  Config
	http *fasthttp.Client
}

// NewClient creates a client, filling in defaults for unset fields.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.SessionsMethod == "" {
		cfg.SessionsMethod = SessionsPOST
	}
	if len(cfg.DetailPaths) == 0 {
		cfg.DetailPaths = DefaultDetailPaths
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "aira-dashboard"
	}

	return &Client{
		cfg: cfg,
		http: &fasthttp.Client{
			Name:                cfg.UserAgent,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: time.Minute,
		},
	}
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.cfg.BaseURL
}

// Users fetches the user list.
func (c *Client) Users(ctx context.Context) ([]models.User, error) {
	body, err := c.do(ctx, "users", fasthttp.MethodGet, c.cfg.BaseURL+"/users", nil)
	if err != nil {
		return nil, err
	}
	var users []models.User
	if err := json.Unmarshal(body, &users); err != nil {
		return nil, &DecodeError{What: "users", Err: err}
	}
	return users, nil
}

// Sessions fetches the sessions matching q.
func (c *Client) Sessions(ctx context.Context, q SessionQuery) ([]models.APISession, error) {
	var (
		body []byte
		err  error
	)

	if c.cfg.SessionsMethod == SessionsGET {
		params := url.Values{}
		for _, u := range q.Usernames {
			params.Add("username", u)
		}
		if q.Project != "" {
			params.Set("project", q.Project)
		}
		if !q.From.IsZero() {
			params.Set("from", q.From.UTC().Format(time.RFC3339))
		}
		if !q.To.IsZero() {
			params.Set("to", q.To.UTC().Format(time.RFC3339))
		}
		target := c.cfg.BaseURL + "/sessions"
		if len(params) > 0 {
			target += "?" + params.Encode()
		}
		body, err = c.do(ctx, "sessions", fasthttp.MethodGet, target, nil)
	} else {
		usernames := q.Usernames
		if usernames == nil {
			usernames = []string{}
		}
		payload, merr := json.Marshal(map[string][]string{"usernames": usernames})
		if merr != nil {
			return nil, fmt.Errorf("failed to marshal sessions request: %w", merr)
		}
		body, err = c.do(ctx, "sessions", fasthttp.MethodPost, c.cfg.BaseURL+"/sessions", payload)
	}
	if err != nil {
		return nil, err
	}

	var resp models.SessionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &DecodeError{What: "sessions", Err: err}
	}
	return resp.Data, nil
}

// SessionDetail fetches the interaction records of one session. Each
// configured path is tried in turn; the next one is used only after a 404.
func (c *Client) SessionDetail(ctx context.Context, sessionID string) (models.SessionDetailPayload, error) {
	var lastErr error
	for _, tmpl := range c.cfg.DetailPaths {
		target := c.cfg.BaseURL + strings.ReplaceAll(tmpl, "{id}", url.PathEscape(sessionID))
		body, err := c.do(ctx, "session details", fasthttp.MethodGet, target, nil)
		if err != nil {
			lastErr = err
			if IsNotFound(err) {
				logger.Debugf("session detail path %s returned 404, trying next", tmpl)
				continue
			}
			return models.SessionDetailPayload{}, err
		}

		payload, err := models.DecodeSessionDetail(body)
		if err != nil {
			return models.SessionDetailPayload{}, &DecodeError{What: "session details", Err: err}
		}
		return payload, nil
	}
	return models.SessionDetailPayload{}, lastErr
}

type result struct {
	status int
	body   []byte
	err    error
}

// do performs one logical request with the configured retry policy. Network
// errors and 5xx responses are retried; everything else is final.
func (c *Client) do(ctx context.Context, what, method, target string, body []byte) ([]byte, error) {
	var out []byte
	attempt := 0

	op := func() error {
		attempt++
		res, err := c.roundTrip(ctx, method, target, body)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("failed to fetch %s: %w", what, err)
		}
		if res.status < 200 || res.status > 299 {
			httpErr := &HTTPError{
				What:       what,
				StatusCode: res.status,
				StatusText: fasthttp.StatusMessage(res.status),
				Body:       string(res.body),
			}
			if httpErr.Temporary() {
				return httpErr
			}
			return backoff.Permanent(httpErr)
		}
		out = res.body
		return nil
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 250 * time.Millisecond
	policy.MaxInterval = 2 * time.Second
	retrier := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.Retries)), ctx)

	err := backoff.RetryNotify(op, retrier, func(err error, wait time.Duration) {
		l := logger.WithFields(map[string]interface{}{"method": method, "url": target, "attempt": attempt})
		l.Warn().Err(err).Msgf("request failed, retrying in %s", wait)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// roundTrip runs a single fasthttp exchange bounded by ctx.
func (c *Client) roundTrip(ctx context.Context, method, target string, body []byte) (result, error) {
	if err := ctx.Err(); err != nil {
		return result{}, err
	}

	deadline := time.Now().Add(c.cfg.Timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	done := make(chan result, 1)
	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(target)
		req.Header.SetMethod(method)
		req.Header.Set(fasthttp.HeaderAccept, "application/json")
		if body != nil {
			req.Header.SetContentType("application/json")
			req.SetBody(body)
		}

		if err := c.http.DoDeadline(req, resp, deadline); err != nil {
			done <- result{err: err}
			return
		}
		done <- result{
			status: resp.StatusCode(),
			body:   append([]byte(nil), resp.Body()...),
		}
	}()

	select {
	case <-ctx.Done():
		return result{}, ctx.Err()
	case res := <-done:
		if res.err != nil {
			if errors.Is(res.err, fasthttp.ErrTimeout) {
				return result{}, fmt.Errorf("request timed out after %s: %w", c.cfg.Timeout, res.err)
			}
			return result{}, res.err
		}
		logger.Debugf("%s %s -> %d (%d bytes)", method, target, res.status, len(res.body))
		return res, nil
	}
}
