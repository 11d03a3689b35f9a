// Package statsui provides the Bubble Tea drop result interface.
package statsui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/dropstats/internal/model"
	"github.com/verte-zerg/dropstats/internal/stagecode"
	"github.com/verte-zerg/dropstats/internal/stats"
	"github.com/verte-zerg/dropstats/internal/store"
)

const (
	tabItem = iota
	tabStage
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	titleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	bestStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#8FBF6A"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Store is the data the result views read from.
type Store interface {
	stats.Source
	ListItems(ctx context.Context) ([]model.Item, error)
	ListChapters(ctx context.Context) ([]model.Chapter, error)
	HasPersonalData(ctx context.Context) (bool, error)
}

// choice is a selectable item or stage.
type choice struct {
	id    string
	label string
}

// resultTab is one result view. Each tab ranks its rows with its own engine,
// so sorting one view never changes the other.
type resultTab struct {
	title   string
	view    stats.View
	engine  *stats.Engine
	choices []choice
	index   int
	report  stats.Report
	loaded  bool
	table   table.Model
	empty   string
}

// Model implements the Bubble Tea result UI.
type Model struct {
	store  Store
	source model.DataSource

	tabs      []*resultTab
	activeTab int
	errMsg    string

	width  int
	height int
}

// NewModel constructs a result UI model. cfg selects the initial item,
// stage, data source and sort.
func NewModel(st Store, parser *stagecode.Parser, cfg model.ViewConfig) *Model {
	if parser == nil {
		parser = stagecode.Default()
	}
	source := cfg.Source
	if source == "" {
		source = model.SourceGlobal
	}
	m := &Model{
		store:  st,
		source: source,
		tabs: []*resultTab{
			newResultTab("By Item", stats.ViewItem, parser, "No items imported. Run: dropstats import <file>"),
			newResultTab("By Stage", stats.ViewStage, parser, "No stages imported. Run: dropstats import <file>"),
		},
	}
	m.loadChoices(cfg)
	m.initialSort(cfg)
	m.tabs[m.activeTab].table.Focus()
	return m
}

func newResultTab(title string, view stats.View, parser *stagecode.Parser, empty string) *resultTab {
	t := table.New(table.WithHeight(10))
	t.SetStyles(resultTableStyles())
	return &resultTab{
		title:  title,
		view:   view,
		engine: stats.NewEngine(parser),
		table:  t,
		empty:  empty,
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		switch key := msg.String(); key {
		case "left", "h", "right", "l", "tab":
			m.switchTab(1 - m.activeTab)
			return m, tea.ClearScreen
		case "[":
			m.cycle(-1)
			return m, nil
		case "]":
			m.cycle(1)
			return m, nil
		case "1", "2", "3", "4", "5", "6":
			m.sortByColumn(int(key[0] - '1'))
			return m, nil
		case "enter":
			m.openSelectedStage()
			return m, nil
		case "p":
			m.selectSource(model.SourcePersonal)
			return m, nil
		case "g":
			m.selectSource(model.SourceGlobal)
			return m, nil
		default:
			tab := m.tabs[m.activeTab]
			var cmd tea.Cmd
			tab.table, cmd = tab.table.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) loadChoices(cfg model.ViewConfig) {
	ctx := context.Background()
	items, err := m.store.ListItems(ctx)
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to list items: %v", err)
		return
	}
	itemTab := m.tabs[tabItem]
	for _, it := range items {
		label := it.Name
		if label == "" {
			label = it.ID
		}
		itemTab.choices = append(itemTab.choices, choice{id: it.ID, label: label})
	}
	itemTab.index = choiceIndex(itemTab.choices, cfg.ItemID)

	chapters, err := m.store.ListChapters(ctx)
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to list stages: %v", err)
		return
	}
	stageTab := m.tabs[tabStage]
	for _, ch := range chapters {
		for _, st := range ch.Stages {
			stageTab.choices = append(stageTab.choices, choice{id: st.ID, label: st.Code})
		}
	}
	stageTab.index = choiceIndex(stageTab.choices, cfg.StageID)
	if cfg.StageID != "" && cfg.ItemID == "" {
		m.activeTab = tabStage
	}
}

func choiceIndex(choices []choice, id string) int {
	for i, c := range choices {
		if c.id == id {
			return i
		}
	}
	return 0
}

func (m *Model) initialSort(cfg model.ViewConfig) {
	var req *stats.SortRequest
	if cfg.Sort != "" {
		dirText := cfg.Direction
		if dirText == "" {
			dirText = string(stats.Asc)
		}
		dir, err := stats.ParseDirection(dirText)
		if err != nil {
			m.errMsg = err.Error()
		} else {
			req = &stats.SortRequest{Column: cfg.Sort, Direction: dir}
		}
	}
	for i, tab := range m.tabs {
		if req != nil && stats.ValidColumn(tab.view, req.Column) {
			m.reload(i, req)
			continue
		}
		m.reload(i, nil)
	}
}

// reload fetches a fresh snapshot for the tab's current selection. A nil req
// keeps the tab's remembered sort.
func (m *Model) reload(idx int, req *stats.SortRequest) {
	tab := m.tabs[idx]
	if len(tab.choices) == 0 {
		tab.loaded = false
		tab.report = stats.Report{View: tab.view}
		m.applyReport(tab)
		return
	}
	id := tab.choices[tab.index].id
	ctx := context.Background()
	var (
		report stats.Report
		err    error
	)
	if tab.view == stats.ViewItem {
		report, err = stats.BuildItemReport(ctx, m.store, tab.engine, m.source, id, req)
	} else {
		report, err = stats.BuildStageReport(ctx, m.store, tab.engine, m.source, id, req)
	}
	if err != nil {
		m.errMsg = loadErrorMessage(err)
		return
	}
	tab.report = report
	tab.loaded = true
	m.applyReport(tab)
}

func loadErrorMessage(err error) string {
	switch {
	case errors.Is(err, store.ErrNoPersonalData):
		return "No personal data uploaded. Run: dropstats upload <file>"
	case errors.Is(err, store.ErrNotFound):
		return fmt.Sprintf("Selection no longer exists: %v", err)
	default:
		return fmt.Sprintf("Failed to load drops: %v", err)
	}
}

func (m *Model) applyReport(tab *resultTab) {
	cols, rows := buildTableData(tab.report)
	tab.table.SetColumns(cols)
	tab.table.SetRows(rows)
	if tab.table.Cursor() >= len(rows) {
		tab.table.SetCursor(maxInt(0, len(rows)-1))
	}
}

func buildTableData(report stats.Report) ([]table.Column, []table.Row) {
	cols := stats.Columns(report.View)
	columns := make([]table.Column, 0, len(cols))
	for _, c := range cols {
		title := stats.ColumnTitle(c, report.Sort, report.Sorted)
		width := lipgloss.Width(title)
		for _, r := range report.Rows {
			if w := lipgloss.Width(stats.FormatCell(c.Key, r)); w > width {
				width = w
			}
		}
		columns = append(columns, table.Column{Title: title, Width: width})
	}
	rows := make([]table.Row, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, table.Row(stats.Cells(report.View, r)))
	}
	return columns, rows
}

func (m *Model) switchTab(idx int) {
	if idx < 0 || idx >= len(m.tabs) {
		return
	}
	m.tabs[m.activeTab].table.Blur()
	m.activeTab = idx
	m.tabs[m.activeTab].table.Focus()
}

func (m *Model) cycle(delta int) {
	tab := m.tabs[m.activeTab]
	count := len(tab.choices)
	if count == 0 {
		return
	}
	tab.index = (tab.index + delta + count) % count
	m.errMsg = ""
	tab.table.SetCursor(0)
	m.reload(m.activeTab, nil)
}

// sortByColumn sorts the active tab by its n-th column. Selecting the active
// column again toggles the direction; a new column starts ascending.
func (m *Model) sortByColumn(n int) {
	tab := m.tabs[m.activeTab]
	cols := stats.Columns(tab.view)
	if n < 0 || n >= len(cols) || !tab.loaded {
		return
	}
	req := stats.SortRequest{Column: cols[n].Key, Direction: stats.Asc}
	if last, ok := tab.engine.LastSort(); ok && last.Column == req.Column {
		req.Direction = last.Direction.Toggle()
	}
	rows := tab.engine.Apply(req)
	tab.report.Rows = rows
	tab.report.Best = stats.BestRows(rows, 3)
	tab.report.Sort = req
	tab.report.Sorted = true
	m.applyReport(tab)
}

// openSelectedStage jumps from a row of the item view to the stage view of
// the row's stage.
func (m *Model) openSelectedStage() {
	if m.activeTab != tabItem {
		return
	}
	tab := m.tabs[tabItem]
	cursor := tab.table.Cursor()
	if cursor < 0 || cursor >= len(tab.report.Rows) {
		return
	}
	row := tab.report.Rows[cursor]
	if row.Stage == nil {
		return
	}
	stageTab := m.tabs[tabStage]
	for i, c := range stageTab.choices {
		if c.id == row.Stage.ID {
			stageTab.index = i
			stageTab.table.SetCursor(0)
			m.errMsg = ""
			m.reload(tabStage, nil)
			m.switchTab(tabStage)
			return
		}
	}
	m.errMsg = fmt.Sprintf("Stage %s is not listed", row.Code)
}

// selectSource switches the data source of both views. Personal data is only
// selectable after an upload.
func (m *Model) selectSource(source model.DataSource) {
	if source == m.source {
		return
	}
	if source == model.SourcePersonal {
		ok, err := m.store.HasPersonalData(context.Background())
		if err != nil {
			m.errMsg = fmt.Sprintf("Failed to check personal data: %v", err)
			return
		}
		if !ok {
			m.errMsg = "No personal data uploaded. Run: dropstats upload <file>"
			return
		}
	}
	m.source = source
	m.errMsg = ""
	for i := range m.tabs {
		m.reload(i, nil)
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 2
	footerHeight = 1
	if m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	for _, tab := range m.tabs {
		tab.table.SetWidth(m.width)
		tab.table.SetHeight(maxInt(1, bodyHeight-1))
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab.title))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab.title))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	tab := m.tabs[m.activeTab]
	selection := "-"
	position := ""
	if len(tab.choices) > 0 {
		selection = tab.choices[tab.index].label
		position = fmt.Sprintf(" (%d/%d)", tab.index+1, len(tab.choices))
	}
	summary := fmt.Sprintf("%s%s  source=%s  records=%d", titleStyle.Render(selection), position, m.source, tab.report.Records)
	return tabs + "\n" + truncateLine(summary, m.width) + "\n" + truncateLine(m.renderBest(tab), m.width)
}

func (m *Model) renderBest(tab *resultTab) string {
	if tab.view != stats.ViewItem || len(tab.report.Best) == 0 {
		return ""
	}
	parts := make([]string, 0, len(tab.report.Best))
	for _, r := range tab.report.Best {
		parts = append(parts, fmt.Sprintf("%s %s", r.Code, stats.FormatCell(stats.ColumnExpectation, r)))
	}
	return bestStyle.Render("Best AP/item: " + strings.Join(parts, "  "))
}

func (m *Model) renderBody() string {
	tab := m.tabs[m.activeTab]
	if len(tab.choices) == 0 {
		return tab.empty
	}
	if !tab.loaded {
		return "Failed to load drops."
	}
	if len(tab.report.Rows) == 0 {
		return "No drop records found."
	}
	return tableMutedStyle.Render(tab.table.View())
}

func (m *Model) renderHelp() string {
	help := "Tab: left/right  Select: [/]  Sort: 1-6  Source: p/g  Quit: q"
	if m.activeTab == tabItem {
		help = "Tab: left/right  Select: [/]  Sort: 1-6  Open stage: enter  Source: p/g  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func resultTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

// truncateLine cuts s to width cells. Styled text is left alone since escape
// sequences would be split.
func truncateLine(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width || strings.Contains(s, "\x1b") {
		return s
	}
	ellipsis := "..."
	if width <= len(ellipsis) {
		ellipsis = ""
	}
	limit := width - len(ellipsis)
	var out strings.Builder
	w := 0
	for _, r := range s {
		rw := lipgloss.Width(string(r))
		if w+rw > limit {
			break
		}
		out.WriteRune(r)
		w += rw
	}
	return out.String() + ellipsis
}
