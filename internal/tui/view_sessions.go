package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aira-metrics/dashboard/internal/analytics"
	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/models"
	"github.com/aira-metrics/dashboard/internal/tui/components"
)

// SessionsViewImpl handles the metrics and sessions table
type SessionsViewImpl struct{}

// NewSessionsView creates a new sessions view instance
func NewSessionsView() *SessionsViewImpl {
	return &SessionsViewImpl{}
}

// GetViewType returns the view type identifier
func (v *SessionsViewImpl) GetViewType() ViewType {
	return SessionsView
}

// Update handles sessions-specific message processing
func (v *SessionsViewImpl) Update(m *Model, msg tea.Msg) (*Model, tea.Cmd) {
	return m, nil
}

// HandleKey processes key messages for the sessions view
func (v *SessionsViewImpl) HandleKey(m *Model, msg tea.KeyMsg) (*Model, tea.Cmd) {
	switch msg.String() {
	case components.KeyQuitAlt:
		m.quitting = true
		m.cancelFetches()
		return m, tea.Quit
	case components.KeyEnter:
		if i := m.table.Cursor(); i >= 0 && i < len(m.sessions) {
			return m, m.openDetail(m.sessions[i].SessionID)
		}
		return m, nil
	case components.KeyFilters:
		m.filterFocus = 0
		m.syncDateInputs()
		m.SwitchToView(FilterView)
		return m, nil
	case components.KeyRefresh:
		return m, tea.Batch(m.fetchUsers(), m.refresh())
	case components.KeySort:
		return m, m.applyEdit(func(o *filter.Options) {
			o.SortBy = cycle(filter.SortKeys, o.SortBy, 1)
		})
	case components.KeyOrder:
		return m, m.applyEdit(func(o *filter.Options) {
			if o.SortOrder == filter.Asc {
				o.SortOrder = filter.Desc
			} else {
				o.SortOrder = filter.Asc
			}
		})
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// applyEdit edits the applied options directly, discarding any unapplied
// draft, and refetches.
func (m *Model) applyEdit(fn func(*filter.Options)) tea.Cmd {
	m.filters.Discard()
	m.filters.Update(fn)
	return m.apply()
}

// apply commits the draft. Only a changed draft refetches.
func (m *Model) apply() tea.Cmd {
	snap, changed := m.filters.Apply()
	if !changed {
		return nil
	}
	return m.fetchSessions(snap.Options)
}

// HandleResize processes window resize messages
func (v *SessionsViewImpl) HandleResize(m *Model, msg tea.WindowSizeMsg) (*Model, tea.Cmd) {
	m.table.SetWidth(msg.Width - 2)
	// Header, metrics, filters line, banner and footer take about 12 lines.
	m.table.SetHeight(max(msg.Height-12, 3))
	return m, nil
}

// Render generates the sessions view content
func (v *SessionsViewImpl) Render(m *Model) string {
	var sections []string

	title := "AIRA Metrics · Sessions"
	if m.loadingSessions {
		title += " " + m.spinner.View()
	}
	sections = append(sections, components.HeaderStyle.Render(title))

	if b := m.banner(); b != "" {
		sections = append(sections, b)
	}

	sections = append(sections, renderMetrics(analytics.ComputeMetrics(m.sessions)))
	sections = append(sections, components.MutedStyle.Render(describeFilters(m.filters.Applied().Options, m.loc)))

	if len(m.sessions) == 0 && !m.loadingSessions {
		sections = append(sections, "", components.MutedStyle.Render("No sessions match these filters."))
	} else {
		sections = append(sections, m.table.View())
	}

	footer := components.FooterStyle.Render(strings.Join([]string{
		key("enter", "open"), key("f", "filters"), key("s", "sort"), key("o", "order"), key("r", "refresh"), key("q", "quit"),
	}, "  "))
	return lipgloss.JoinVertical(lipgloss.Left, components.MainContentStyle.Render(strings.Join(sections, "\n")), footer)
}

func (m *Model) banner() string {
	var parts []string
	if m.usersBanner != "" {
		parts = append(parts, m.usersBanner)
	}
	if m.sessionsBanner != "" {
		parts = append(parts, m.sessionsBanner)
	}
	return components.Banner(strings.Join(parts, " · "), m.sessionsFailed)
}

func renderMetrics(mt analytics.Metrics) string {
	card := func(label, value string) string {
		return components.MetricCardStyle.Render(components.MutedStyle.Render(label) + "\n" + components.MetricValueStyle.Render(value))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		card("Sessions", analytics.FormatNumber(int64(mt.TotalSessions))),
		card("Interactions", analytics.FormatNumber(int64(mt.TotalInteractions))),
		card("Users", analytics.FormatNumber(int64(mt.UniqueUsers))),
		card("Avg duration", analytics.FormatDuration(mt.AverageDuration)),
		card("Tokens", analytics.FormatTokenCount(mt.TotalTokens)),
	)
}

func describeFilters(o filter.Options, loc *time.Location) string {
	users := "all users"
	if len(o.Users) > 0 {
		users = strings.Join(o.Users, ", ")
	}
	project := "all projects"
	if o.Project != "" {
		project = o.Project
	}
	span := o.DateRange.Label()
	if o.DateRange == filter.RangeCustom {
		span = fmt.Sprintf("%s to %s", dateOrOpen(o.CustomStart, loc), dateOrOpen(o.CustomEnd, loc))
	}
	return fmt.Sprintf("%s · %s · %s · by %s %s", users, project, span, strings.ToLower(o.SortBy.Label()), o.SortOrder)
}

func dateOrOpen(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return "…"
	}
	return t.In(loc).Format(filter.DateLayout)
}

func newSessionsTable() table.Model {
	t := table.New(
		table.WithColumns([]table.Column{
			{Title: "Started", Width: 17},
			{Title: "User", Width: 16},
			{Title: "Project", Width: 20},
			{Title: "Duration", Width: 9},
			{Title: "Interactions", Width: 12},
			{Title: "Tokens", Width: 8},
			{Title: "Session", Width: 36},
		}),
		table.WithFocused(true),
		table.WithHeight(10),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color(components.ColorSecondary)).
		BorderBottom(true).
		Bold(true)
	styles.Selected = components.SelectedStyle
	t.SetStyles(styles)
	return t
}

func sessionRows(sessions []models.SessionSummary, loc *time.Location) []table.Row {
	rows := make([]table.Row, len(sessions))
	for i, s := range sessions {
		rows[i] = table.Row{
			analytics.FormatTime(s.StartTime, loc),
			s.Username,
			s.ProjectName,
			analytics.FormatDuration(s.Duration),
			analytics.FormatNumber(int64(s.InteractionCount)),
			analytics.FormatTokenCount(s.TotalTokens),
			s.SessionID,
		}
	}
	return rows
}

func key(k, label string) string {
	return components.KeyHighlightStyle.Render(k) + " " + label
}

// cycle returns the value step places after cur in values, wrapping around.
func cycle[T comparable](values []T, cur T, step int) T {
	if len(values) == 0 {
		return cur
	}
	idx := 0
	for i, v := range values {
		if v == cur {
			idx = i
			break
		}
	}
	idx = ((idx+step)%len(values) + len(values)) % len(values)
	return values[idx]
}
