package tui

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/aira-metrics/dashboard/internal/export"
	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/logger"
	"github.com/aira-metrics/dashboard/internal/tui/components"
)

// Init starts the first fetches
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.fetchUsers(), m.refresh()}
	if m.detailID != "" {
		cmds = append(cmds, m.fetchDetail(m.detailID))
	}
	return tea.Batch(cmds...)
}

// Update is the main update function that routes messages to appropriate handlers
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// First, handle global window sizing
	if windowMsg, ok := msg.(tea.WindowSizeMsg); ok {
		return m.handleWindowResize(windowMsg)
	}

	// Route key messages to current view
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		return m.handleKeyMessage(keyMsg)
	}

	// Handle spinner updates
	if spinnerMsg, ok := msg.(spinner.TickMsg); ok {
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(spinnerMsg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case usersMsg:
		return m.handleUsers(msg)
	case sessionsMsg:
		return m.handleSessions(msg)
	case detailMsg:
		return m.handleDetail(msg)
	}

	// Let current view handle any remaining messages
	newModel, cmd := m.GetCurrentView().Update(&m, msg)
	return *newModel, cmd
}

// Window resize handler
func (m Model) handleWindowResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.width = msg.Width
	m.height = msg.Height

	// Every view keeps its own component sizes current.
	for _, v := range m.views {
		v.HandleResize(&m, msg)
	}
	return m, nil
}

// Key message router with global key handling
func (m Model) handleKeyMessage(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == components.KeyQuit {
		m.quitting = true
		m.cancelFetches()
		return m, tea.Quit
	}

	newModel, cmd := m.GetCurrentView().HandleKey(&m, msg)
	return *newModel, cmd
}

func (m *Model) cancelFetches() {
	m.usersLoader.Cancel()
	m.sessionsLoader.Cancel()
	m.detailLoader.Cancel()
}

func (m Model) handleUsers(msg usersMsg) (tea.Model, tea.Cmd) {
	r, ok := m.usersLoader.Finish(msg.seq, msg.result)
	if !ok {
		return m, nil
	}
	if r.Err != nil {
		logger.Warnf("users: %v", r.Err)
	}
	m.users = r.Data
	m.usersBanner = r.Message()
	if m.userCursor >= len(m.users) {
		m.userCursor = 0
	}
	return m, nil
}

func (m Model) handleSessions(msg sessionsMsg) (tea.Model, tea.Cmd) {
	r, ok := m.sessionsLoader.Finish(msg.seq, msg.result)
	if !ok {
		logger.Debugf("dropping superseded sessions result %d", msg.seq)
		return m, nil
	}
	m.loadingSessions = false
	if r.Err != nil {
		logger.Warnf("sessions: %v", r.Err)
	}
	m.sessionsBanner = r.Message()
	m.sessionsFailed = !r.HasData()

	m.fetched = r.Data
	m.projects = filter.Projects(r.Data)
	m.applyLocal(msg.opts)
	return m, nil
}

// applyLocal narrows and orders the fetched sessions without refetching.
func (m *Model) applyLocal(opts filter.Options) {
	m.sessions = filter.Apply(m.fetched, opts, m.now())
	m.table.SetRows(sessionRows(m.sessions, m.loc))
	if m.table.Cursor() >= len(m.sessions) {
		m.table.SetCursor(0)
	}
}

func (m Model) handleDetail(msg detailMsg) (tea.Model, tea.Cmd) {
	r, ok := m.detailLoader.Finish(msg.seq, msg.result)
	if !ok {
		return m, nil
	}
	m.loadingDetail = false
	if r.Err != nil {
		logger.Warnf("session %s: %v", msg.id, r.Err)
	}
	m.detailBanner = r.Message()
	m.detailFailed = !r.HasData()
	m.report = nil
	if r.HasData() {
		report := export.Build(msg.id, m.service.FindSummary(msg.id), r.Data.Interactions)
		m.report = &report
	}
	m.refreshDetail()
	return m, nil
}

// openDetail switches to the detail view of id and fetches it.
func (m *Model) openDetail(id string) tea.Cmd {
	m.detailID = id
	m.report = nil
	m.detailBanner = ""
	m.detailFailed = false
	m.detailCursor = 0
	m.expanded = make(map[int]bool)
	m.expandedTools = make(map[string]bool)
	m.detailPort.GotoTop()
	m.SwitchToView(DetailView)
	return m.fetchDetail(id)
}
