package tui

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aira-metrics/dashboard/internal/cache"
	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/fixtures"
	"github.com/aira-metrics/dashboard/internal/models"
	"github.com/aira-metrics/dashboard/internal/services"
	"github.com/aira-metrics/dashboard/internal/upstream"
)

const fixtureSessionID = "ae620910-91bf-4a0e-892a-58fec8da54f2"

type fakeAPI struct {
	mu      sync.Mutex
	fx      *fixtures.Set
	queries []upstream.SessionQuery
}

func (f *fakeAPI) Users(ctx context.Context) ([]models.User, error) {
	return f.fx.Users(), nil
}

func (f *fakeAPI) Sessions(ctx context.Context, q upstream.SessionQuery) ([]models.APISession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	return f.fx.Sessions(q.Usernames), nil
}

func (f *fakeAPI) SessionDetail(ctx context.Context, id string) (models.SessionDetailPayload, error) {
	p, ok := f.fx.SessionDetail(id)
	if !ok {
		return models.SessionDetailPayload{}, &upstream.HTTPError{What: "session details", StatusCode: 404, StatusText: "Not Found"}
	}
	return p, nil
}

func (f *fakeAPI) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

func newTestModel(t *testing.T) (Model, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{fx: fixtures.MustLoad(time.Now())}
	svc := services.NewAnalyticsService(api, nil, cache.Config{MaxSize: 16, DefaultTTL: time.Hour})
	t.Cleanup(func() { _ = svc.Close() })

	opts := filter.Defaults()
	opts.DateRange = filter.RangeAll
	m := NewModel(Options{Service: svc, Fallback: services.DefaultFallbackPolicy, Filters: opts, Location: time.UTC})
	return *m, api
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	enter = tea.KeyMsg{Type: tea.KeyEnter}
	esc   = tea.KeyMsg{Type: tea.KeyEsc}
	down  = tea.KeyMsg{Type: tea.KeyDown}
	right = tea.KeyMsg{Type: tea.KeyRight}
	space = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
)

// send delivers msg and runs the resulting command once, feeding its message
// back in. Batches are not expanded.
func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	m, _ = send(t, m, cmd())
	return m
}

func loaded(t *testing.T) (Model, *fakeAPI) {
	t.Helper()
	m, api := newTestModel(t)
	cmd := m.fetchUsers()
	m = settle(t, m, cmd)
	cmd = m.refresh()
	m = settle(t, m, cmd)
	return m, api
}

func TestSessionsLoad(t *testing.T) {
	m, api := loaded(t)

	assert.Equal(t, 1, api.calls())
	assert.False(t, m.loadingSessions)
	assert.Len(t, m.sessions, 3)
	assert.Equal(t, []string{"Jane Smith", "John Doe"}, m.users)
	assert.Contains(t, m.View(), "Sessions")
	assert.Contains(t, m.View(), "John Doe")
}

func TestStaleSessionsResultDropped(t *testing.T) {
	m, _ := newTestModel(t)

	johnOnly := m.filters.Applied().Options
	johnOnly.Users = []string{"John Doe"}
	first := m.fetchSessions(johnOnly)
	second := m.refresh()

	m, _ = send(t, m, second())
	require.Len(t, m.sessions, 3)

	m, _ = send(t, m, first())
	assert.Len(t, m.sessions, 3, "superseded fetch must not replace newer data")
}

func TestFilterApplyGating(t *testing.T) {
	m, api := loaded(t)

	m, _ = send(t, m, runes("f"))
	require.Equal(t, FilterView, m.currentView)

	// Applying an unchanged draft does not refetch.
	m, cmd := send(t, m, enter)
	assert.Nil(t, cmd)
	assert.Equal(t, SessionsView, m.currentView)
	assert.Equal(t, 1, api.calls())

	// Select John Doe (the second user) and apply.
	m, _ = send(t, m, runes("f"))
	m, _ = send(t, m, right)
	m, _ = send(t, m, space)
	assert.True(t, m.filters.Dirty())
	assert.Equal(t, 1, api.calls(), "edits alone never fetch")

	m, cmd = send(t, m, enter)
	require.NotNil(t, cmd)
	m = settle(t, m, cmd)
	assert.Equal(t, 2, api.calls(), "apply triggers exactly one refetch")
	assert.False(t, m.filters.Dirty())
	assert.Equal(t, []string{"john doe"}, api.queries[1].Usernames)
	require.Len(t, m.sessions, 1)
	assert.Equal(t, "John Doe", m.sessions[0].Username)
}

func TestFilterEscapeDiscards(t *testing.T) {
	m, api := loaded(t)

	m, _ = send(t, m, runes("f"))
	m, _ = send(t, m, down) // project
	m, _ = send(t, m, down) // range
	m, _ = send(t, m, right)
	assert.True(t, m.filters.Dirty())

	m, cmd := send(t, m, esc)
	assert.Nil(t, cmd)
	assert.False(t, m.filters.Dirty())
	assert.Equal(t, filter.RangeAll, m.filters.Draft().DateRange)
	assert.Equal(t, 1, api.calls())
}

func TestFilterCustomRange(t *testing.T) {
	m, _ := loaded(t)

	m, _ = send(t, m, runes("f"))
	m.filters.Update(func(o *filter.Options) { o.DateRange = filter.RangeCustom })
	m.filterFocus = 2
	m, _ = send(t, m, down) // from
	require.Equal(t, fieldFrom, m.focusedField())

	for _, r := range "2025-08-01" {
		m, _ = send(t, m, runes(string(r)))
	}
	assert.Equal(t, time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC), m.filters.Draft().CustomStart)
	assert.Contains(t, m.View(), "Custom range")
}

func TestSortShortcutRefetches(t *testing.T) {
	m, api := loaded(t)

	m, cmd := send(t, m, runes("s"))
	require.NotNil(t, cmd)
	m = settle(t, m, cmd)
	assert.Equal(t, filter.SortTokens, m.filters.Applied().Options.SortBy)
	assert.Equal(t, 2, api.calls())
	for i := 1; i < len(m.sessions); i++ {
		assert.GreaterOrEqual(t, m.sessions[i-1].TotalTokens, m.sessions[i].TotalTokens)
	}
}

func TestDetailExpandCollapse(t *testing.T) {
	m, _ := loaded(t)
	m, _ = send(t, m, tea.WindowSizeMsg{Width: 140, Height: 60})

	cmd := m.openDetail(fixtureSessionID)
	m = settle(t, m, cmd)
	require.Equal(t, DetailView, m.currentView)
	require.NotNil(t, m.report)
	require.Len(t, m.detailRows(), 2, "collapsed requests only")

	view := m.View()
	assert.Contains(t, view, "Request 1")
	assert.NotContains(t, view, "mcp_platform-server_getLoginConfig")

	m, _ = send(t, m, enter)
	rows := m.detailRows()
	require.Len(t, rows, 3)
	assert.Equal(t, detailRow{request: 0, call: 0}, rows[1])
	assert.Contains(t, m.View(), "mcp_platform-server_getLoginConfig")
	assert.Contains(t, m.View(), "timeoutValue", "tool results are part of the request body")
	assert.NotContains(t, m.View(), "WMPRJ2c92808a9883263c019883277e710000", "inputs stay hidden until the call is expanded")

	m, _ = send(t, m, down)
	m, _ = send(t, m, enter)
	assert.True(t, m.expandedTools[toolKey(0, 0)])
	assert.Contains(t, m.View(), "WMPRJ2c92808a9883263c019883277e710000")

	m, _ = send(t, m, runes("c"))
	assert.Len(t, m.detailRows(), 2)
	assert.Equal(t, 0, m.detailCursor)

	m, _ = send(t, m, esc)
	assert.Equal(t, SessionsView, m.currentView)
}

func TestDetailUnknownSession(t *testing.T) {
	m, _ := loaded(t)
	cmd := m.openDetail("missing")
	m = settle(t, m, cmd)

	assert.Nil(t, m.report)
	assert.True(t, m.detailFailed)
	assert.Contains(t, m.View(), "404 Not Found")
}

func TestQuit(t *testing.T) {
	m, _ := loaded(t)
	m, cmd := send(t, m, runes("q"))
	require.NotNil(t, cmd)
	assert.True(t, m.quitting)
	assert.Empty(t, m.View())
}

func TestCycle(t *testing.T) {
	keys := []filter.SortKey{filter.SortTimestamp, filter.SortTokens, filter.SortDuration}
	assert.Equal(t, filter.SortTokens, cycle(keys, filter.SortTimestamp, 1))
	assert.Equal(t, filter.SortTimestamp, cycle(keys, filter.SortDuration, 1))
	assert.Equal(t, filter.SortDuration, cycle(keys, filter.SortTimestamp, -1))
}

func TestToggleUser(t *testing.T) {
	users := toggleUser(nil, "John Doe")
	assert.Equal(t, []string{"John Doe"}, users)
	assert.Empty(t, toggleUser(users, "john doe"))
}

func TestDescribeFilters(t *testing.T) {
	o := filter.Defaults()
	o.Users = []string{"John Doe"}
	got := describeFilters(o, time.UTC)
	assert.True(t, strings.HasPrefix(got, "John Doe · all projects · Last 7 days"))
}
