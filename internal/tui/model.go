package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aira-metrics/dashboard/internal/export"
	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/models"
	"github.com/aira-metrics/dashboard/internal/services"
)

// ViewType represents the different views in the application
type ViewType int

const (
	// SessionsView is the metrics and sessions table
	SessionsView ViewType = iota
	// FilterView is the filter panel
	FilterView
	// DetailView shows one session's requests
	DetailView
)

// View interface that all views must implement
type View interface {
	// Update handles view-specific message processing
	Update(m *Model, msg tea.Msg) (*Model, tea.Cmd)

	// Render generates the view content
	Render(m *Model) string

	// HandleKey processes key messages for this view
	HandleKey(m *Model, msg tea.KeyMsg) (*Model, tea.Cmd)

	// HandleResize processes window resize messages
	HandleResize(m *Model, msg tea.WindowSizeMsg) (*Model, tea.Cmd)

	// GetViewType returns the view type identifier
	GetViewType() ViewType
}

// Options configures the terminal browser.
type Options struct {
	Service  *services.AnalyticsService
	Fallback services.FallbackPolicy
	Filters  filter.Options
	Location *time.Location
	// SessionID opens the detail view of this session first.
	SessionID string
}

// Model represents the main application state
type Model struct {
	// Core dependencies
	service *services.AnalyticsService
	policy  services.FallbackPolicy
	loc     *time.Location
	now     func() time.Time

	// Fetch gating, shared by every copy of the model
	usersLoader    *services.Loader[[]string]
	sessionsLoader *services.Loader[[]models.SessionSummary]
	detailLoader   *services.Loader[services.SessionDetail]
	filters        *filter.Controller

	// Current state
	currentView ViewType
	width       int
	height      int
	quitting    bool
	spinner     spinner.Model

	// Users and sessions
	users           []string
	fetched         []models.SessionSummary
	sessions        []models.SessionSummary
	projects        []string
	loadingSessions bool
	sessionsBanner  string
	sessionsFailed  bool
	usersBanner     string
	table           table.Model

	// Filter panel
	filterFocus int
	userCursor  int
	fromInput   textinput.Model
	toInput     textinput.Model

	// Session detail
	detailID      string
	report        *export.Report
	loadingDetail bool
	detailBanner  string
	detailFailed  bool
	expanded      map[int]bool
	expandedTools map[string]bool
	detailCursor  int
	detailPort    viewport.Model

	// View instances
	views map[ViewType]View
}

// NewModel creates a new application model with initialized views
func NewModel(opts Options) *Model {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	s := spinner.New()
	s.Spinner = spinner.Dot

	m := &Model{
		service:        opts.Service,
		policy:         opts.Fallback,
		loc:            loc,
		now:            time.Now,
		usersLoader:    &services.Loader[[]string]{},
		sessionsLoader: &services.Loader[[]models.SessionSummary]{},
		detailLoader:   &services.Loader[services.SessionDetail]{},
		filters:        filter.NewController(opts.Filters),
		currentView:    SessionsView,
		spinner:        s,
		table:          newSessionsTable(),
		fromInput:      newDateInput("from"),
		toInput:        newDateInput("to"),
		expanded:       make(map[int]bool),
		expandedTools:  make(map[string]bool),
		detailPort:     viewport.New(80, 20),
		detailID:       opts.SessionID,
		views:          make(map[ViewType]View),
	}

	m.views[SessionsView] = NewSessionsView()
	m.views[FilterView] = NewFilterView()
	m.views[DetailView] = NewDetailView()

	if opts.SessionID != "" {
		m.currentView = DetailView
	}
	return m
}

// GetCurrentView returns the currently active view
func (m *Model) GetCurrentView() View {
	return m.views[m.currentView]
}

// SwitchToView changes the current view
func (m *Model) SwitchToView(viewType ViewType) {
	m.currentView = viewType
}

// Filters exposes the filter controller.
func (m *Model) Filters() *filter.Controller {
	return m.filters
}

func (m *Model) loading() bool {
	return m.loadingSessions || m.loadingDetail
}
