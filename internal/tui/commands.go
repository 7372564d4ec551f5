package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/services"
)

// Data fetching commands. The loader ticket is taken when the command is
// built, so a later fetch supersedes this one even if it has not run yet.

func (m *Model) fetchUsers() tea.Cmd {
	t := m.usersLoader.Start(context.Background())
	service, policy := m.service, m.policy
	return func() tea.Msg {
		return usersMsg{seq: t.Seq, result: service.UserNames(t.Ctx, policy)}
	}
}

// fetchSessions fetches the sessions selected by opts. The remote query only
// narrows by user; Apply does the rest locally once the data arrives.
func (m *Model) fetchSessions(opts filter.Options) tea.Cmd {
	m.loadingSessions = true
	t := m.sessionsLoader.Start(context.Background())
	service, policy := m.service, m.policy
	q := services.QueryFor(opts, m.now())
	return func() tea.Msg {
		r := services.WithFallback(service.Sessions(t.Ctx, q), policy)
		return sessionsMsg{seq: t.Seq, opts: opts, result: r}
	}
}

func (m *Model) fetchDetail(id string) tea.Cmd {
	m.loadingDetail = true
	t := m.detailLoader.Start(context.Background())
	service, policy := m.service, m.policy
	return func() tea.Msg {
		r := services.WithFallback(service.SessionDetail(t.Ctx, id), policy)
		return detailMsg{seq: t.Seq, id: id, result: r}
	}
}

// refresh refetches the applied filters' sessions.
func (m *Model) refresh() tea.Cmd {
	return m.fetchSessions(m.filters.Applied().Options)
}
