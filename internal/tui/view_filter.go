package tui

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aira-metrics/dashboard/internal/filter"
	"github.com/aira-metrics/dashboard/internal/tui/components"
)

type filterField int

const (
	fieldUsers filterField = iota
	fieldProject
	fieldRange
	fieldFrom
	fieldTo
	fieldSort
	fieldOrder
)

// FilterViewImpl handles the filter panel. Edits go to the controller's
// draft and take effect on Apply.
type FilterViewImpl struct{}

// NewFilterView creates a new filter view instance
func NewFilterView() *FilterViewImpl {
	return &FilterViewImpl{}
}

// GetViewType returns the view type identifier
func (v *FilterViewImpl) GetViewType() ViewType {
	return FilterView
}

// Update handles filter-specific message processing
func (v *FilterViewImpl) Update(m *Model, msg tea.Msg) (*Model, tea.Cmd) {
	return m, nil
}

// HandleResize processes window resize messages
func (v *FilterViewImpl) HandleResize(m *Model, msg tea.WindowSizeMsg) (*Model, tea.Cmd) {
	return m, nil
}

func newDateInput(label string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = filter.DateLayout
	ti.CharLimit = len(filter.DateLayout)
	ti.Width = len(filter.DateLayout) + 1
	ti.Prompt = ""
	ti.PromptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color(components.ColorPrimary)).Bold(true)
	ti.Cursor.Style = lipgloss.NewStyle().Foreground(lipgloss.Color(components.ColorAccent)).Bold(true)
	return ti
}

// filterFields lists the panel's fields. The custom bounds are shown only for
// the custom range.
func (m *Model) filterFields() []filterField {
	fields := []filterField{fieldUsers, fieldProject, fieldRange}
	if m.filters.Draft().DateRange == filter.RangeCustom {
		fields = append(fields, fieldFrom, fieldTo)
	}
	return append(fields, fieldSort, fieldOrder)
}

func (m *Model) focusedField() filterField {
	fields := m.filterFields()
	if m.filterFocus >= len(fields) {
		m.filterFocus = len(fields) - 1
	}
	return fields[m.filterFocus]
}

func (m *Model) moveFocus(step int) {
	fields := m.filterFields()
	m.filterFocus = ((m.filterFocus+step)%len(fields) + len(fields)) % len(fields)
	m.fromInput.Blur()
	m.toInput.Blur()
	switch m.focusedField() {
	case fieldFrom:
		m.fromInput.Focus()
	case fieldTo:
		m.toInput.Focus()
	}
}

func (m *Model) syncDateInputs() {
	d := m.filters.Draft()
	m.fromInput.SetValue(formatDate(d.CustomStart, m.loc))
	m.toInput.SetValue(formatDate(d.CustomEnd, m.loc))
}

func formatDate(t time.Time, loc *time.Location) string {
	if t.IsZero() {
		return ""
	}
	return t.In(loc).Format(filter.DateLayout)
}

// HandleKey processes key messages for the filter panel
func (v *FilterViewImpl) HandleKey(m *Model, msg tea.KeyMsg) (*Model, tea.Cmd) {
	k := msg.String()

	switch k {
	case components.KeyEscape:
		m.filters.Discard()
		m.SwitchToView(SessionsView)
		return m, nil
	case components.KeyEnter, components.KeyApply:
		if err := m.filters.Draft().Validate(); err != nil {
			return m, nil
		}
		m.fromInput.Blur()
		m.toInput.Blur()
		m.SwitchToView(SessionsView)
		return m, m.apply()
	case components.KeyReset:
		m.filters.Reset()
		m.syncDateInputs()
		return m, nil
	case components.KeyDown, components.KeyTab:
		m.moveFocus(1)
		return m, nil
	case components.KeyUp, components.KeyShiftTab:
		m.moveFocus(-1)
		return m, nil
	}

	switch field := m.focusedField(); field {
	case fieldFrom, fieldTo:
		return m, m.editDate(field, msg)
	case fieldUsers:
		m.editUsers(k)
	default:
		step := 0
		switch {
		case components.IsLeft(k):
			step = -1
		case components.IsRight(k), k == components.KeySpace:
			step = 1
		}
		if step != 0 {
			m.cycleField(field, step)
		}
	}
	return m, nil
}

func (m *Model) editUsers(k string) {
	if len(m.users) == 0 {
		return
	}
	switch {
	case components.IsLeft(k), components.IsUp(k):
		m.userCursor = (m.userCursor - 1 + len(m.users)) % len(m.users)
	case components.IsRight(k), components.IsDown(k):
		m.userCursor = (m.userCursor + 1) % len(m.users)
	case k == components.KeySpace:
		name := m.users[m.userCursor]
		m.filters.Update(func(o *filter.Options) { o.Users = toggleUser(o.Users, name) })
	}
}

func toggleUser(users []string, name string) []string {
	for i, u := range users {
		if strings.EqualFold(u, name) {
			return slices.Delete(slices.Clone(users), i, i+1)
		}
	}
	return append(slices.Clone(users), name)
}

func (m *Model) cycleField(field filterField, step int) {
	m.filters.Update(func(o *filter.Options) {
		switch field {
		case fieldProject:
			o.Project = cycle(append([]string{""}, m.projects...), o.Project, step)
		case fieldRange:
			o.DateRange = cycle(filter.DateRanges, o.DateRange, step)
		case fieldSort:
			o.SortBy = cycle(filter.SortKeys, o.SortBy, step)
		case fieldOrder:
			o.SortOrder = cycle([]filter.SortOrder{filter.Desc, filter.Asc}, o.SortOrder, step)
		}
	})
	if field == fieldRange {
		m.syncDateInputs()
	}
}

// editDate forwards the key to the focused date input and stores the value
// in the draft once it parses. An empty input clears the bound.
func (m *Model) editDate(field filterField, msg tea.KeyMsg) tea.Cmd {
	input := &m.fromInput
	if field == fieldTo {
		input = &m.toInput
	}
	var cmd tea.Cmd
	*input, cmd = input.Update(msg)

	value := strings.TrimSpace(input.Value())
	var bound time.Time
	if value != "" {
		t, err := time.ParseInLocation(filter.DateLayout, value, m.loc)
		if err != nil {
			return cmd
		}
		bound = t
	}
	m.filters.Update(func(o *filter.Options) {
		if field == fieldFrom {
			o.CustomStart = bound
		} else {
			o.CustomEnd = bound
		}
	})
	return cmd
}

// Render generates the filter panel content
func (v *FilterViewImpl) Render(m *Model) string {
	draft := m.filters.Draft()
	focused := m.focusedField()

	row := func(field filterField, label, value string) string {
		marker := "  "
		if field == focused {
			marker = components.KeyHighlightStyle.Render("▸ ")
			label = components.SubHeaderStyle.Render(label)
		}
		return fmt.Sprintf("%s%-10s %s", marker, label, value)
	}

	var lines []string
	lines = append(lines, row(fieldUsers, "Users", m.renderUserChoices(draft, focused == fieldUsers)))
	project := draft.Project
	if project == "" {
		project = "All projects"
	}
	lines = append(lines, row(fieldProject, "Project", "‹ "+project+" ›"))
	lines = append(lines, row(fieldRange, "Range", "‹ "+draft.DateRange.Label()+" ›"))
	if draft.DateRange == filter.RangeCustom {
		lines = append(lines, row(fieldFrom, "From", m.fromInput.View()))
		lines = append(lines, row(fieldTo, "To", m.toInput.View()))
	}
	lines = append(lines, row(fieldSort, "Sort by", "‹ "+draft.SortBy.Label()+" ›"))
	lines = append(lines, row(fieldOrder, "Order", "‹ "+string(draft.SortOrder)+" ›"))

	status := components.MutedStyle.Render("No unapplied changes")
	if m.filters.Dirty() {
		status = components.WarningStyle.Render("Unapplied changes")
	}
	if err := draft.Validate(); err != nil {
		status = components.ErrorStyle.Render(err.Error())
	}
	lines = append(lines, "", status)

	panel := components.PanelStyle.Render(strings.Join(lines, "\n"))
	footer := components.FooterStyle.Render(strings.Join([]string{
		key("↑/↓", "field"), key("←/→", "change"), key("space", "toggle user"), key("enter", "apply"), key("ctrl+r", "reset"), key("esc", "cancel"),
	}, "  "))
	return lipgloss.JoinVertical(lipgloss.Left, components.HeaderStyle.Render("Filters"), panel, footer)
}

func (m *Model) renderUserChoices(draft filter.Options, focused bool) string {
	if len(m.users) == 0 {
		return components.MutedStyle.Render("(no users loaded)")
	}
	parts := make([]string, len(m.users))
	for i, name := range m.users {
		box := "[ ]"
		if slices.ContainsFunc(draft.Users, func(u string) bool { return strings.EqualFold(u, name) }) {
			box = "[x]"
		}
		item := box + " " + name
		if focused && i == m.userCursor {
			item = components.SelectedStyle.Render(item)
		}
		parts[i] = item
	}
	return strings.Join(parts, "  ")
}
