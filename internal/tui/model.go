package tui

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"strings"

	"charm.land/bubbles/v2/help"
	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/textinput"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/hylla/kanplan/internal/app"
	"github.com/hylla/kanplan/internal/domain"
)

// Service is the item store the board reads and edits. *app.Service satisfies it.
type Service interface {
	List(context.Context, domain.Kind) ([]domain.Item, error)
	Get(context.Context, domain.Kind, int) (domain.Item, error)
	Create(context.Context, domain.ItemInput) (domain.Item, error)
	Update(context.Context, int, domain.ItemInput) (domain.Item, error)
	Remove(context.Context, domain.Kind, int) error
	Prioritized(context.Context) ([]domain.Item, error)
	History(context.Context) ([]domain.Item, error)
}

// inputMode represents a selectable mode.
type inputMode int

// modeNone and related constants define package defaults.
const (
	modeNone inputMode = iota
	modeAddItem
	modeItemInfo
	modeItemList
	modeConfirmDelete
)

// boardStatuses lists the board columns left to right.
var boardStatuses = []domain.Status{
	domain.StatusNew,
	domain.StatusInProgress,
	domain.StatusDone,
}

// Model is the bubbletea model for the status board.
type Model struct {
	svc      Service
	keys     keyMap
	help     help.Model
	fields   FieldConfig
	markdown *markdownRenderer

	items          []domain.Item
	selectedColumn int
	selectedItem   int

	mode      inputMode
	input     textinput.Model
	addKind   domain.Kind
	addEpicID int
	info      domain.Item
	listTitle string
	listItems []domain.Item

	status string
	err    error
	ready  bool
	width  int
	height int
}

// loadedMsg carries message data through update handling.
type loadedMsg struct {
	items []domain.Item
	err   error
}

// actionMsg carries the outcome of one store mutation.
type actionMsg struct {
	status  string
	focusID int
	err     error
}

// infoMsg carries one item read for the info panel.
type infoMsg struct {
	item domain.Item
	err  error
}

// listMsg carries a prioritized or history listing.
type listMsg struct {
	title string
	items []domain.Item
	err   error
}

// NewModel constructs a new value for this package.
func NewModel(svc Service, opts ...Option) Model {
	h := help.New()
	h.ShowAll = false
	input := textinput.New()
	input.Prompt = "name: "
	input.Placeholder = "item name"
	input.CharLimit = 120
	m := Model{
		svc:      svc,
		keys:     newKeyMap(),
		help:     h,
		fields:   DefaultFieldConfig(),
		markdown: &markdownRenderer{},
		input:    input,
		status:   "loading...",
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&m)
		}
	}
	return m
}

// Init handles init.
func (m Model) Init() tea.Cmd {
	return m.loadData
}

// Update updates state for the requested operation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.items = msg.items
		m.clampSelections()
		if m.status == "" || m.status == "loading..." {
			m.status = "ready"
		}
		return m, nil

	case actionMsg:
		if msg.err != nil {
			m.status = describeError(msg.err)
			return m, nil
		}
		m.status = msg.status
		if msg.focusID > 0 {
			return m, m.loadAndFocus(msg.focusID)
		}
		return m, m.loadData

	case focusLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.items = msg.items
		m.focusItem(msg.focusID)
		return m, nil

	case infoMsg:
		if msg.err != nil {
			m.status = describeError(msg.err)
			return m, nil
		}
		m.info = msg.item
		m.mode = modeItemInfo
		return m, nil

	case listMsg:
		if msg.err != nil {
			m.status = describeError(msg.err)
			return m, nil
		}
		m.listTitle = msg.title
		m.listItems = msg.items
		m.mode = modeItemList
		return m, nil

	case tea.KeyPressMsg:
		if m.mode != modeNone {
			return m.handleModeKey(msg)
		}
		return m.handleNormalModeKey(msg)

	default:
		return m, nil
	}
}

// handleNormalModeKey handles board navigation and item actions.
func (m Model) handleNormalModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit
	case key.Matches(msg, m.keys.reload):
		m.status = "reloading..."
		return m, m.loadData
	case key.Matches(msg, m.keys.toggleHelp):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil
	case key.Matches(msg, m.keys.moveLeft):
		m.selectedColumn = clamp(m.selectedColumn-1, 0, len(boardStatuses)-1)
		m.selectedItem = 0
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.moveRight):
		m.selectedColumn = clamp(m.selectedColumn+1, 0, len(boardStatuses)-1)
		m.selectedItem = 0
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.moveUp):
		m.selectedItem--
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.moveDown):
		m.selectedItem++
		m.clampSelections()
		return m, nil
	case key.Matches(msg, m.keys.addTask):
		return m, m.startAdd(domain.KindTask, 0)
	case key.Matches(msg, m.keys.addEpic):
		return m, m.startAdd(domain.KindEpic, 0)
	case key.Matches(msg, m.keys.addSubtask):
		item, ok := m.selected()
		if !ok {
			m.status = "select an epic first"
			return m, nil
		}
		epicID := item.ID
		if item.Kind == domain.KindSubtask {
			epicID = item.EpicID
		} else if item.Kind != domain.KindEpic {
			m.status = "subtasks belong to an epic"
			return m, nil
		}
		return m, m.startAdd(domain.KindSubtask, epicID)
	case key.Matches(msg, m.keys.itemInfo):
		item, ok := m.selected()
		if !ok {
			return m, nil
		}
		return m, m.readItem(item.ID)
	case key.Matches(msg, m.keys.statusLeft):
		return m, m.shiftStatus(-1)
	case key.Matches(msg, m.keys.statusRight):
		return m, m.shiftStatus(1)
	case key.Matches(msg, m.keys.deleteItem):
		if _, ok := m.selected(); ok {
			m.mode = modeConfirmDelete
		}
		return m, nil
	case key.Matches(msg, m.keys.prioritized):
		return m, m.loadList("Prioritized", m.svc.Prioritized)
	case key.Matches(msg, m.keys.history):
		return m, m.loadList("History", m.svc.History)
	default:
		return m, nil
	}
}

// handleModeKey handles keys while a panel or prompt is open.
func (m Model) handleModeKey(msg tea.KeyPressMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "esc" {
		m.closeMode()
		return m, nil
	}
	switch m.mode {
	case modeAddItem:
		if msg.String() != "enter" {
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			return m, cmd
		}
		name := strings.TrimSpace(m.input.Value())
		if name == "" {
			m.status = "name is required"
			return m, nil
		}
		in := domain.ItemInput{Kind: m.addKind, Name: name, EpicID: m.addEpicID}
		m.closeMode()
		return m, m.createItem(in)
	case modeConfirmDelete:
		switch msg.String() {
		case "y", "enter":
			item, ok := m.selected()
			m.closeMode()
			if !ok {
				return m, nil
			}
			return m, m.removeItem(item)
		case "n":
			m.closeMode()
		}
		return m, nil
	default:
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil
	}
}

// closeMode returns to board navigation.
func (m *Model) closeMode() {
	m.mode = modeNone
	m.input.Blur()
	m.input.SetValue("")
	m.listItems = nil
}

// startAdd opens the name prompt for one new item.
func (m *Model) startAdd(kind domain.Kind, epicID int) tea.Cmd {
	m.mode = modeAddItem
	m.addKind = kind
	m.addEpicID = epicID
	m.input.SetValue("")
	return m.input.Focus()
}

// selected returns the highlighted item, if any.
func (m Model) selected() (domain.Item, bool) {
	items := m.columnItems(m.selectedColumn)
	if len(items) == 0 {
		return domain.Item{}, false
	}
	return items[clamp(m.selectedItem, 0, len(items)-1)], true
}

// columnItems returns the items whose status matches one board column.
func (m Model) columnItems(col int) []domain.Item {
	if col < 0 || col >= len(boardStatuses) {
		return nil
	}
	out := make([]domain.Item, 0, len(m.items))
	for _, item := range m.items {
		if item.Status == boardStatuses[col] {
			out = append(out, item)
		}
	}
	return out
}

// clampSelections keeps the selection inside the loaded items.
func (m *Model) clampSelections() {
	m.selectedColumn = clamp(m.selectedColumn, 0, len(boardStatuses)-1)
	m.selectedItem = clamp(m.selectedItem, 0, len(m.columnItems(m.selectedColumn))-1)
}

// focusItem moves the selection onto one item id.
func (m *Model) focusItem(id int) {
	for col := range boardStatuses {
		for idx, item := range m.columnItems(col) {
			if item.ID == id {
				m.selectedColumn = col
				m.selectedItem = idx
				return
			}
		}
	}
	m.clampSelections()
}

// loadData loads required data for the current operation.
func (m Model) loadData() tea.Msg {
	items, err := m.svc.List(context.Background(), "")
	return loadedMsg{items: items, err: err}
}

// focusLoadedMsg carries reloaded items plus the item to select.
type focusLoadedMsg struct {
	items   []domain.Item
	focusID int
	err     error
}

// loadAndFocus reloads items and selects id once they arrive.
func (m Model) loadAndFocus(id int) tea.Cmd {
	return func() tea.Msg {
		items, err := m.svc.List(context.Background(), "")
		return focusLoadedMsg{items: items, focusID: id, err: err}
	}
}

// readItem reads one item through the service so the view lands in history.
func (m Model) readItem(id int) tea.Cmd {
	return func() tea.Msg {
		item, err := m.svc.Get(context.Background(), "", id)
		return infoMsg{item: item, err: err}
	}
}

// loadList runs one listing query for the list panel.
func (m Model) loadList(title string, query func(context.Context) ([]domain.Item, error)) tea.Cmd {
	return func() tea.Msg {
		items, err := query(context.Background())
		return listMsg{title: title, items: items, err: err}
	}
}

// createItem stores one new item.
func (m Model) createItem(in domain.ItemInput) tea.Cmd {
	return func() tea.Msg {
		item, err := m.svc.Create(context.Background(), in)
		if err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: fmt.Sprintf("created %s #%d", strings.ToLower(string(item.Kind)), item.ID), focusID: item.ID}
	}
}

// removeItem deletes one item. Removing an epic removes its subtasks.
func (m Model) removeItem(item domain.Item) tea.Cmd {
	return func() tea.Msg {
		if err := m.svc.Remove(context.Background(), item.Kind, item.ID); err != nil {
			return actionMsg{err: err}
		}
		return actionMsg{status: fmt.Sprintf("deleted %s #%d", strings.ToLower(string(item.Kind)), item.ID)}
	}
}

// shiftStatus moves the selected item one status column left or right.
func (m Model) shiftStatus(delta int) tea.Cmd {
	item, ok := m.selected()
	if !ok {
		return nil
	}
	target := clamp(m.selectedColumn+delta, 0, len(boardStatuses)-1)
	if target == m.selectedColumn {
		return nil
	}
	in := item.Input()
	in.Status = boardStatuses[target]
	return func() tea.Msg {
		updated, err := m.svc.Update(context.Background(), item.ID, in)
		if err != nil {
			return actionMsg{err: err}
		}
		status := fmt.Sprintf("#%d is %s", updated.ID, updated.Status)
		if updated.Status != in.Status {
			status = fmt.Sprintf("#%d stays %s until all subtasks are done", updated.ID, updated.Status)
		}
		return actionMsg{status: status, focusID: updated.ID}
	}
}

// describeError turns store errors into one status line.
func describeError(err error) string {
	switch {
	case errors.Is(err, app.ErrScheduleConflict):
		return "rejected: schedule conflict"
	case errors.Is(err, app.ErrMissingParent):
		return "rejected: epic not found"
	case errors.Is(err, app.ErrNotFound):
		return "item not found"
	default:
		return "error: " + err.Error()
	}
}

// View handles view.
func (m Model) View() tea.View {
	v := tea.NewView(m.render())
	v.AltScreen = true
	return v
}

// render draws the current screen as plain terminal text.
func (m Model) render() string {
	if m.err != nil {
		return "error: " + m.err.Error() + "\n\npress r to retry • q quit\n"
	}
	if !m.ready {
		return "loading..."
	}

	accent := lipgloss.Color("62")
	muted := lipgloss.Color("241")
	dim := lipgloss.Color("239")
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252"))
	statusStyle := lipgloss.NewStyle().Foreground(dim)

	header := titleStyle.Render("kanplan") + statusStyle.Render(fmt.Sprintf("  %d items", len(m.items)))
	body := m.renderBoard(accent, muted, dim)
	if panel := m.renderPanel(accent, muted, dim); panel != "" {
		body = panel
	}

	sections := []string{header, "", body}
	if strings.TrimSpace(m.status) != "" && m.status != "ready" {
		sections = append(sections, statusStyle.Render(m.status))
	}
	content := strings.Join(sections, "\n")

	helpBubble := m.help
	helpBubble.SetWidth(max(0, m.width-2))
	helpLine := lipgloss.NewStyle().
		Foreground(muted).
		BorderTop(true).
		BorderForeground(dim).
		Padding(0, 1).
		Width(max(0, m.width)).
		Render(helpBubble.View(m.keys))
	if m.height > 0 {
		content = fitLines(content, max(0, m.height-lipgloss.Height(helpLine)))
	}
	return content + "\n" + helpLine
}

// renderBoard draws one bordered column per status.
func (m Model) renderBoard(accent, muted, dim color.Color) string {
	colWidth := m.columnWidth()
	baseColStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dim).
		Padding(0, 1).
		MarginRight(1).
		Width(colWidth)
	selColStyle := baseColStyle.BorderForeground(accent)
	colTitle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	emptyStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("243"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	subStyle := lipgloss.NewStyle().Foreground(muted)

	views := make([]string, 0, len(boardStatuses))
	for col, status := range boardStatuses {
		items := m.columnItems(col)
		lines := []string{colTitle.Render(fmt.Sprintf("%s (%d)", status, len(items)))}
		if len(items) == 0 {
			lines = append(lines, emptyStyle.Render("(empty)"))
		}
		for idx, item := range items {
			selected := col == m.selectedColumn && idx == m.selectedItem
			prefix := "  "
			if selected {
				prefix = "│ "
			}
			title := prefix + truncate(fmt.Sprintf("#%d %s", item.ID, item.Name), max(1, colWidth-6))
			if selected {
				title = selectedStyle.Render(title)
			}
			lines = append(lines, title)
			if sub := m.itemSecondary(item); sub != "" {
				lines = append(lines, prefix+subStyle.Render(truncate(sub, max(1, colWidth-6))))
			}
		}
		style := baseColStyle
		if col == m.selectedColumn {
			style = selColStyle
		}
		views = append(views, style.Render(strings.Join(lines, "\n")))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, views...)
}

// itemSecondary renders the second card line for one item.
func (m Model) itemSecondary(item domain.Item) string {
	parts := []string{strings.ToLower(string(item.Kind))}
	switch item.Kind {
	case domain.KindSubtask:
		parts = append(parts, fmt.Sprintf("epic #%d", item.EpicID))
	case domain.KindEpic:
		parts = append(parts, fmt.Sprintf("%d subtasks", len(item.SubtaskIDs)))
	}
	if m.fields.ShowWindow && item.Window.Scheduled() {
		parts = append(parts, formatWindow(item.Window))
	}
	if m.fields.ShowDescription && strings.TrimSpace(item.Description) != "" {
		parts = append(parts, item.Description)
	}
	return strings.Join(parts, " • ")
}

// renderPanel draws the open prompt or panel, or "" in board mode.
func (m Model) renderPanel(accent, muted, dim color.Color) string {
	panelStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(accent).
		Padding(0, 1).
		Width(max(24, min(m.width-4, 96)))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(accent)
	hintStyle := lipgloss.NewStyle().Foreground(muted)

	switch m.mode {
	case modeAddItem:
		title := "New " + strings.ToLower(string(m.addKind))
		if m.addKind == domain.KindSubtask {
			title += fmt.Sprintf(" of epic #%d", m.addEpicID)
		}
		return panelStyle.Render(strings.Join([]string{
			titleStyle.Render(title),
			m.input.View(),
			hintStyle.Render("enter save • esc cancel"),
		}, "\n"))
	case modeConfirmDelete:
		item, _ := m.selected()
		prompt := fmt.Sprintf("Delete %s #%d %q?", strings.ToLower(string(item.Kind)), item.ID, item.Name)
		if item.Kind == domain.KindEpic && len(item.SubtaskIDs) > 0 {
			prompt += fmt.Sprintf(" Its %d subtasks go too.", len(item.SubtaskIDs))
		}
		return panelStyle.Render(titleStyle.Render(prompt) + "\n" + hintStyle.Render("y confirm • n/esc cancel"))
	case modeItemInfo:
		return panelStyle.Render(m.renderInfo(titleStyle, hintStyle))
	case modeItemList:
		lines := []string{titleStyle.Render(m.listTitle)}
		if len(m.listItems) == 0 {
			lines = append(lines, hintStyle.Render("(none)"))
		}
		for _, item := range m.listItems {
			line := fmt.Sprintf("#%d %s [%s]", item.ID, item.Name, item.Status)
			if item.Window.Scheduled() {
				line += "  " + formatWindow(item.Window)
			}
			lines = append(lines, line)
		}
		lines = append(lines, lipgloss.NewStyle().Foreground(dim).Render("esc close"))
		return panelStyle.Render(strings.Join(lines, "\n"))
	default:
		return ""
	}
}

// renderInfo renders the item info panel body.
func (m Model) renderInfo(titleStyle, hintStyle lipgloss.Style) string {
	item := m.info
	lines := []string{
		titleStyle.Render(fmt.Sprintf("%s #%d %s", item.Kind, item.ID, item.Name)),
		"status: " + string(item.Status),
	}
	if item.Window.Scheduled() {
		lines = append(lines, "window: "+formatWindow(item.Window))
	} else {
		lines = append(lines, "window: unscheduled")
	}
	switch item.Kind {
	case domain.KindSubtask:
		lines = append(lines, fmt.Sprintf("epic: #%d", item.EpicID))
	case domain.KindEpic:
		ids := make([]string, 0, len(item.SubtaskIDs))
		for _, id := range item.SubtaskIDs {
			ids = append(ids, fmt.Sprintf("#%d", id))
		}
		lines = append(lines, "subtasks: "+strings.Join(ids, ", "))
	}
	if desc := m.markdown.render(item.Description, max(24, min(m.width-8, 92))); desc != "" {
		lines = append(lines, "", desc)
	}
	lines = append(lines, hintStyle.Render("esc close"))
	return strings.Join(lines, "\n")
}

// columnWidth splits the terminal width across the status columns.
func (m Model) columnWidth() int {
	if m.width <= 0 {
		return 28
	}
	return max(18, m.width/len(boardStatuses)-3)
}

// formatWindow renders a window as start..end in minutes.
func formatWindow(w domain.Window) string {
	return w.Start.Format("2006-01-02 15:04") + ".." + w.End().Format("15:04")
}

// clamp bounds v to [minV, maxV]. An empty range yields minV.
func clamp(v, minV, maxV int) int {
	if maxV < minV {
		return minV
	}
	if v < minV {
		return minV
	}
	if v > maxV {
		return maxV
	}
	return v
}

// fitLines trims or pads content to exactly maxLines lines.
func fitLines(content string, maxLines int) string {
	if maxLines <= 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	switch {
	case len(lines) > maxLines:
		if maxLines == 1 {
			lines = []string{"…"}
		} else {
			lines = append(lines[:maxLines-1], "…")
		}
	case len(lines) < maxLines:
		lines = append(lines, make([]string, maxLines-len(lines))...)
	}
	return strings.Join(lines, "\n")
}

// truncate shortens s to max runes with a trailing ellipsis.
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= max {
		return s
	}
	if max <= 1 {
		return string(rs[:max])
	}
	return string(rs[:max-1]) + "…"
}
