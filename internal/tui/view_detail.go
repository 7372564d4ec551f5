package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aira-metrics/dashboard/internal/analytics"
	"github.com/aira-metrics/dashboard/internal/export"
	"github.com/aira-metrics/dashboard/internal/render"
	"github.com/aira-metrics/dashboard/internal/tui/components"
)

// detailRow is one selectable line of the detail view: a request header, or
// a tool call inside an expanded request.
type detailRow struct {
	request int
	// call is -1 for the request header.
	call int
}

// DetailViewImpl shows one session's requests with expand/collapse per
// request and per tool call.
type DetailViewImpl struct{}

// NewDetailView creates a new detail view instance
func NewDetailView() *DetailViewImpl {
	return &DetailViewImpl{}
}

// GetViewType returns the view type identifier
func (v *DetailViewImpl) GetViewType() ViewType {
	return DetailView
}

// Update handles detail-specific message processing
func (v *DetailViewImpl) Update(m *Model, msg tea.Msg) (*Model, tea.Cmd) {
	var cmd tea.Cmd
	m.detailPort, cmd = m.detailPort.Update(msg)
	return m, cmd
}

// HandleResize processes window resize messages
func (v *DetailViewImpl) HandleResize(m *Model, msg tea.WindowSizeMsg) (*Model, tea.Cmd) {
	m.detailPort.Width = max(msg.Width-2, 20)
	// Header block and footer take about 8 lines.
	m.detailPort.Height = max(msg.Height-8, 3)
	m.refreshDetail()
	return m, nil
}

func toolKey(request, call int) string {
	return fmt.Sprintf("%d/%d", request, call)
}

func (m *Model) detailRows() []detailRow {
	if m.report == nil {
		return nil
	}
	var rows []detailRow
	for i, req := range m.report.Requests {
		rows = append(rows, detailRow{request: i, call: -1})
		if m.expanded[i] {
			for j := range req.ToolCalls {
				rows = append(rows, detailRow{request: i, call: j})
			}
		}
	}
	return rows
}

// HandleKey processes key messages for the detail view
func (v *DetailViewImpl) HandleKey(m *Model, msg tea.KeyMsg) (*Model, tea.Cmd) {
	k := msg.String()
	rows := m.detailRows()

	switch {
	case k == components.KeyEscape || k == components.KeyBackspace:
		m.detailLoader.Cancel()
		m.loadingDetail = false
		m.SwitchToView(SessionsView)
		return m, nil
	case k == components.KeyQuitAlt:
		m.quitting = true
		m.cancelFetches()
		return m, tea.Quit
	case k == components.KeyRefresh && m.detailID != "":
		return m, m.fetchDetail(m.detailID)
	case components.IsUp(k):
		if m.detailCursor > 0 {
			m.detailCursor--
		}
	case components.IsDown(k):
		if m.detailCursor < len(rows)-1 {
			m.detailCursor++
		}
	case k == components.KeyVimTop || k == components.KeyHome:
		m.detailCursor = 0
	case k == components.KeyVimEnd || k == components.KeyEnd:
		m.detailCursor = max(len(rows)-1, 0)
	case k == components.KeyEnter || k == components.KeySpace:
		if m.detailCursor < len(rows) {
			m.toggleRow(rows[m.detailCursor])
		}
	case k == components.KeyExpandAll:
		if m.report != nil {
			for i := range m.report.Requests {
				m.expanded[i] = true
			}
		}
	case k == components.KeyCollapseAll:
		m.expanded = make(map[int]bool)
		m.expandedTools = make(map[string]bool)
		if m.detailCursor < len(rows) {
			m.detailCursor = rows[m.detailCursor].request
		}
	default:
		var cmd tea.Cmd
		m.detailPort, cmd = m.detailPort.Update(msg)
		return m, cmd
	}

	m.refreshDetail()
	return m, nil
}

func (m *Model) toggleRow(row detailRow) {
	if row.call < 0 {
		m.expanded[row.request] = !m.expanded[row.request]
		return
	}
	k := toolKey(row.request, row.call)
	m.expandedTools[k] = !m.expandedTools[k]
}

// refreshDetail re-renders the detail content and keeps the cursor visible.
func (m *Model) refreshDetail() {
	content, cursorLine := m.renderDetailBody()
	m.detailPort.SetContent(content)
	if cursorLine < m.detailPort.YOffset {
		m.detailPort.SetYOffset(cursorLine)
	} else if cursorLine >= m.detailPort.YOffset+m.detailPort.Height {
		m.detailPort.SetYOffset(cursorLine - m.detailPort.Height + 1)
	}
}

// renderDetailBody returns the content and the line the cursor is on.
func (m *Model) renderDetailBody() (string, int) {
	if m.report == nil {
		return "", 0
	}
	width := max(m.detailPort.Width-4, 20)

	var lines []string
	cursorLine := 0
	rowIndex := 0
	mark := func(text string) string {
		if rowIndex == m.detailCursor {
			cursorLine = len(lines)
			return components.SelectedStyle.Render(text)
		}
		return text
	}

	if len(m.report.Requests) == 0 {
		return components.MutedStyle.Render("This session has no interactions."), 0
	}

	for i, req := range m.report.Requests {
		arrow := "▸"
		if m.expanded[i] {
			arrow = "▾"
		}
		prompt := analytics.Truncate(strings.Join(strings.Fields(req.UserPrompt), " "), width-30)
		if prompt == "" {
			prompt = components.MutedStyle.Render("(no user prompt)")
		}
		header := fmt.Sprintf("%s Request %d · %s · %s tokens · %d exchanges  %s",
			arrow, i+1, analytics.FormatTimestamp(req.Timestamp, m.loc),
			analytics.FormatTokenCount(req.TotalTokens), len(req.Exchanges), prompt)
		lines = append(lines, mark(header))
		rowIndex++

		if !m.expanded[i] {
			continue
		}

		var body []string
		if req.UserPrompt != "" {
			body = append(body, components.SectionHeaderStyle.Render("User prompt"), render.Terminal(req.UserPrompt, width))
		}
		for _, tr := range req.ToolResults {
			body = append(body, components.SectionHeaderStyle.Render("Tool result ")+components.MutedStyle.Render(tr.ToolID), tr.Content)
		}
		for _, text := range req.Text {
			body = append(body, components.SectionHeaderStyle.Render("Response"), render.Terminal(text, width))
		}
		for _, other := range req.Other {
			body = append(body, components.SectionHeaderStyle.Render("Response ("+other.Type+")"), other.Content)
		}
		if len(body) > 0 {
			lines = append(lines, strings.Split(components.BlockStyle.Render(strings.Join(body, "\n")), "\n")...)
		}

		for j, call := range req.ToolCalls {
			lines = append(lines, mark(m.renderToolCallHeader(i, j, call)))
			rowIndex++
			if m.expandedTools[toolKey(i, j)] {
				lines = append(lines, strings.Split(renderToolCallBody(call), "\n")...)
			}
		}
	}
	return strings.Join(lines, "\n"), cursorLine
}

func (m *Model) renderToolCallHeader(request, call int, tc export.ToolCall) string {
	arrow := "▸"
	if m.expandedTools[toolKey(request, call)] {
		arrow = "▾"
	}
	name := tc.Name
	if name == "" {
		name = "unknown tool"
	}
	status := components.MutedStyle.Render("No response found")
	if tc.Result != nil {
		status = components.MutedStyle.Render("answered")
	}
	return fmt.Sprintf("    %s %s %s  %s", arrow, components.ToolStyle.Render(name), components.MutedStyle.Render(tc.ToolID), status)
}

func renderToolCallBody(tc export.ToolCall) string {
	var body []string
	if inputs := render.ToolInputs(tc.Inputs); inputs != "" {
		body = append(body, components.SubHeaderStyle.Render("Inputs"), inputs)
	}
	body = append(body, components.SubHeaderStyle.Render("Result"))
	if tc.Result != nil {
		body = append(body, tc.Result.Content)
	} else {
		body = append(body, components.MutedStyle.Render("No response found"))
	}
	return lipgloss.NewStyle().MarginLeft(6).Render(components.BlockStyle.Render(strings.Join(body, "\n")))
}

// Render generates the detail view content
func (v *DetailViewImpl) Render(m *Model) string {
	title := "Session " + m.detailID
	if m.loadingDetail {
		title += " " + m.spinner.View()
	}
	sections := []string{components.HeaderStyle.Render(title)}

	if b := components.Banner(m.detailBanner, m.detailFailed); b != "" {
		sections = append(sections, b)
	}
	if m.report != nil {
		h := m.report.Header
		sections = append(sections, fmt.Sprintf("%s · %s · %s · %s · %s tokens · %d requests",
			h.Username, h.ProjectName, analytics.FormatTime(h.StartTime, m.loc),
			analytics.FormatDuration(h.EndTime.Sub(h.StartTime)),
			analytics.FormatTokenCount(h.TotalTokens), h.Requests))
		sections = append(sections, m.detailPort.View())
	} else if !m.loadingDetail && !m.detailFailed {
		sections = append(sections, components.MutedStyle.Render("Nothing loaded."))
	}

	footer := components.FooterStyle.Render(strings.Join([]string{
		key("↑/↓", "move"), key("enter", "expand"), key("e", "expand all"), key("c", "collapse"), key("r", "reload"), key("esc", "back"),
	}, "  "))
	return lipgloss.JoinVertical(lipgloss.Left, components.MainContentStyle.Render(strings.Join(sections, "\n")), footer)
}
