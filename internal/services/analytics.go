package services

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/aira-metrics/dashboard/internal/analytics"
	"github.com/aira-metrics/dashboard/internal/cache"
	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/fixtures"
	"github.com/aira-metrics/dashboard/internal/logger"
	"github.com/aira-metrics/dashboard/internal/models"
	"github.com/aira-metrics/dashboard/internal/upstream"
)

// API is the subset of the upstream client the service needs.
type API interface {
	Users(ctx context.Context) ([]models.User, error)
	Sessions(ctx context.Context, q upstream.SessionQuery) ([]models.APISession, error)
	SessionDetail(ctx context.Context, sessionID string) (models.SessionDetailPayload, error)
}

// SessionDetail is a session's normalized interaction records.
type SessionDetail struct {
	SessionID    string               `json:"session_id"`
	Shape        models.DetailShape   `json:"shape"`
	Interactions []models.Interaction `json:"interactions"`
}

// RequestGroups groups the records by request.
func (d SessionDetail) RequestGroups() []analytics.RequestGroup {
	return analytics.RequestGroups(d.Interactions)
}

type cached[T any] struct {
	data      T
	fetchedAt time.Time
}

// AnalyticsService fetches analytics data and remembers the last good
// response of every query for use as a fallback.
type AnalyticsService struct {
	api      API
	fixtures *fixtures.Set
	now      func() time.Time

	users    *cache.LRU[cached[[]models.User]]
	sessions *cache.LRU[cached[[]models.SessionSummary]]
	details  *cache.LRU[cached[SessionDetail]]
}

// NewAnalyticsService creates the service. fx may be nil, in which case the
// placeholder source never has data.
//
// Cached responses outlive their TTL: an expired entry is still the last
// known good response and is served as a fallback together with its age.
// Entries leave the cache only by size eviction.
func NewAnalyticsService(api API, fx *fixtures.Set, cacheConfig cache.Config) *AnalyticsService {
	cacheConfig.KeepExpired = true
	cacheConfig.EnableStats = true
	return &AnalyticsService{
		api:      api,
		fixtures: fx,
		now:      time.Now,
		users:    cache.NewLRU[cached[[]models.User]](cacheConfig),
		sessions: cache.NewLRU[cached[[]models.SessionSummary]](cacheConfig),
		details:  cache.NewLRU[cached[SessionDetail]](cacheConfig),
	}
}

// Close releases the caches.
func (s *AnalyticsService) Close() error {
	_ = s.users.Close()
	_ = s.sessions.Close()
	return s.details.Close()
}

// CacheStats reports the hit counters of each cache.
func (s *AnalyticsService) CacheStats() map[string]cache.Stats {
	return map[string]cache.Stats{
		"users":    s.users.Stats(),
		"sessions": s.sessions.Stats(),
		"details":  s.details.Stats(),
	}
}

// Users fetches the user list.
func (s *AnalyticsService) Users(ctx context.Context) Result[[]models.User] {
	const key = "users"
	users, err := s.api.Users(ctx)
	if err != nil {
		logger.Warnf("users fetch failed: %v", err)
		return failed(err, map[Source]fallbackFunc[[]models.User]{
			SourceCache: fromCache(s.users, key, s.now),
			SourcePlaceholder: func() ([]models.User, time.Duration, bool) {
				if s.fixtures == nil {
					return nil, 0, false
				}
				return s.fixtures.Users(), 0, true
			},
		})
	}
	s.users.Set(key, cached[[]models.User]{data: users, fetchedAt: s.now()})
	return live(users)
}

// UserNames is Users reduced to display names.
func (s *AnalyticsService) UserNames(ctx context.Context, policy FallbackPolicy) Result[[]string] {
	r := WithFallback(s.Users(ctx), policy)
	return Result[[]string]{
		Data:   analytics.UserNames(r.Data),
		Err:    r.Err,
		Source: r.Source,
		Age:    r.Age,
	}
}

// Sessions fetches the sessions of the given users (all users when empty).
func (s *AnalyticsService) Sessions(ctx context.Context, q upstream.SessionQuery) Result[[]models.SessionSummary] {
	key := sessionsKey(q)
	rows, err := s.api.Sessions(ctx, q)
	if err != nil {
		logger.Warnf("sessions fetch failed: %v", err)
		return failed(err, map[Source]fallbackFunc[[]models.SessionSummary]{
			SourceCache: fromCache(s.sessions, key, s.now),
			SourcePlaceholder: func() ([]models.SessionSummary, time.Duration, bool) {
				if s.fixtures == nil {
					return nil, 0, false
				}
				return analytics.Summaries(s.fixtures.Sessions(q.Usernames)), 0, true
			},
		})
	}

	summaries := analytics.Summaries(rows)
	s.sessions.Set(key, cached[[]models.SessionSummary]{data: summaries, fetchedAt: s.now()})
	return live(summaries)
}

// SessionList fetches the sessions selected by opts and narrows and orders
// them. Exactly one upstream request is made per call.
func (s *AnalyticsService) SessionList(ctx context.Context, opts filter.Options, policy FallbackPolicy) Result[[]models.SessionSummary] {
	r := WithFallback(s.Sessions(ctx, QueryFor(opts, s.now())), policy)
	if r.HasData() {
		r.Data = filter.Apply(r.Data, opts, s.now())
	}
	return r
}

// SessionDetail fetches and normalizes one session's records.
func (s *AnalyticsService) SessionDetail(ctx context.Context, sessionID string) Result[SessionDetail] {
	key := "detail:" + sessionID
	payload, err := s.api.SessionDetail(ctx, sessionID)
	if err != nil {
		l := logger.WithField("session_id", sessionID)
		l.Warn().Err(err).Msg("session detail fetch failed")
		return failed(err, map[Source]fallbackFunc[SessionDetail]{
			SourceCache: fromCache(s.details, key, s.now),
			SourcePlaceholder: func() (SessionDetail, time.Duration, bool) {
				if s.fixtures == nil {
					return SessionDetail{}, 0, false
				}
				p, ok := s.fixtures.SessionDetail(sessionID)
				if !ok {
					return SessionDetail{}, 0, false
				}
				return detailFrom(sessionID, p), 0, true
			},
		})
	}

	detail := detailFrom(sessionID, payload)
	s.details.Set(key, cached[SessionDetail]{data: detail, fetchedAt: s.now()})
	return live(detail)
}

// FindSummary looks a session up in the most recent cached lists, for the
// detail header. It never fetches.
func (s *AnalyticsService) FindSummary(sessionID string) *models.SessionSummary {
	for _, key := range s.sessions.Keys() {
		entry, _, ok := s.sessions.GetStale(key)
		if !ok {
			continue
		}
		for i := range entry.data {
			if entry.data[i].SessionID == sessionID {
				found := entry.data[i]
				return &found
			}
		}
	}
	return nil
}

func detailFrom(sessionID string, p models.SessionDetailPayload) SessionDetail {
	return SessionDetail{
		SessionID:    sessionID,
		Shape:        p.Shape,
		Interactions: analytics.NormalizePayload(p),
	}
}

func fromCache[T any](c *cache.LRU[cached[T]], key string, now func() time.Time) fallbackFunc[T] {
	return func() (T, time.Duration, bool) {
		entry, _, ok := c.GetStale(key)
		if !ok {
			var zero T
			return zero, 0, false
		}
		return entry.data, now().Sub(entry.fetchedAt), true
	}
}

// QueryFor translates filter options into the upstream query. Only the user
// selection and project narrow the request; date windows are applied locally.
func QueryFor(opts filter.Options, now time.Time) upstream.SessionQuery {
	q := upstream.SessionQuery{Project: opts.Project}
	for _, u := range opts.Users {
		if u = strings.TrimSpace(u); u != "" {
			q.Usernames = append(q.Usernames, strings.ToLower(u))
		}
	}
	q.From, q.To = opts.Window(now)
	return q
}

func sessionsKey(q upstream.SessionQuery) string {
	users := append([]string(nil), q.Usernames...)
	for i := range users {
		users[i] = strings.ToLower(users[i])
	}
	sort.Strings(users)
	return "sessions:" + strings.Join(users, ",") + "|" + strings.ToLower(q.Project)
}
