package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/nconklindev/sandbox/internal/types"
)

// clipboardWriteAll is a package-level variable to allow mocking in tests.
var clipboardWriteAll = clipboard.WriteAll

// Converter runs the backend conversions.
type Converter interface {
	ExcelToJSON(ctx context.Context, path string, m types.Mapping, progressChan chan<- float64) (*types.ParseResult, error)
	JSONToExcel(ctx context.Context, text, outDir string) (*types.DownloadResult, error)
}

// Options wires the UI to its collaborators.
type Options struct {
	Context       context.Context
	Converter     Converter
	StartDir      string
	OutputDir     string
	DefaultPrefix string
	BackendURL    string
	Logger        *zap.Logger
}

type page int

const (
	pageMenu page = iota
	pageExcelToJSON
	pageJSONToExcel
	pagePrefix
)

type menuItem struct {
	page  page
	title string
	desc  string
}

var menuItems = []menuItem{
	{pageExcelToJSON, "Excel → JSON", "Upload a .xlsx file and get its rows as JSON"},
	{pageJSONToExcel, "JSON → Excel", "Paste an array of objects and download data.xlsx"},
	{pagePrefix, "Sequence Generator", "Prefix every number in an expression like 1+2-3"},
}

// backMsg asks the root model to return to the menu.
type backMsg struct{}

func goBack() tea.Msg { return backMsg{} }

type Model struct {
	page   page
	cursor int
	width  int
	height int

	backend string
	logger  *zap.Logger

	excel  excelPage
	json   jsonPage
	prefix prefixPage
}

func InitialModel(opts Options) Model {
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return Model{
		page:    pageMenu,
		backend: opts.BackendURL,
		logger:  opts.Logger,
		excel:   newExcelPage(opts),
		json:    newJSONPage(opts),
		prefix:  newPrefixPage(opts.DefaultPrefix),
	}
}

func (m Model) Init() tea.Cmd {
	return m.excel.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.excel.setSize(msg.Width, msg.Height)
		m.json.setSize(msg.Width, msg.Height)
		m.prefix.setSize(msg.Width)
		return m, nil

	case backMsg:
		m.logger.Debug("back to menu", zap.Int("from", int(m.page)))
		m.page = pageMenu
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

		var cmd tea.Cmd
		switch m.page {
		case pageMenu:
			return m.updateMenu(msg)
		case pageExcelToJSON:
			m.excel, cmd = m.excel.Update(msg)
		case pageJSONToExcel:
			m.json, cmd = m.json.Update(msg)
		case pagePrefix:
			m.prefix, cmd = m.prefix.Update(msg)
		}
		return m, cmd
	}

	// Async results and animation ticks go to every page; each ignores what
	// it did not start.
	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.excel, cmd = m.excel.Update(msg)
	cmds = append(cmds, cmd)
	m.json, cmd = m.json.Update(msg)
	cmds = append(cmds, cmd)
	m.prefix, cmd = m.prefix.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}
	case "down", "j":
		if m.cursor < len(menuItems)-1 {
			m.cursor++
		}
	case "1", "2", "3":
		m.cursor = int(msg.String()[0] - '1')
		return m.open(menuItems[m.cursor].page)
	case "enter":
		return m.open(menuItems[m.cursor].page)
	}
	return m, nil
}

func (m Model) open(p page) (tea.Model, tea.Cmd) {
	m.page = p
	m.logger.Debug("open page", zap.Int("page", int(p)))

	switch p {
	case pageJSONToExcel:
		cmd := m.json.focus()
		return m, cmd
	case pagePrefix:
		cmd := m.prefix.focus()
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.page {
	case pageExcelToJSON:
		return m.excel.View()
	case pageJSONToExcel:
		return m.json.View()
	case pagePrefix:
		return m.prefix.View()
	}
	return m.viewMenu()
}

func (m Model) viewMenu() string {
	var s strings.Builder

	title := TitleStyle.Render("⇄ Sandbox - Spreadsheet & JSON Tools")
	backend := m.backend
	if backend == "" {
		backend = "(no backend configured)"
	}
	byLine := lipgloss.JoinHorizontal(lipgloss.Top,
		SubtitleStyle.Render("Backend • "),
		LinkStyle.Render(backend))

	s.WriteString(lipgloss.JoinVertical(lipgloss.Left, title, byLine))
	s.WriteString("\n")

	for i, item := range menuItems {
		cursor := " "
		line := fmt.Sprintf("%d. %s", i+1, item.title)
		if m.cursor == i {
			cursor = ">"
			line = SelectedStyle.Render(line)
		} else {
			line = UnselectedStyle.Render(line)
		}
		s.WriteString(fmt.Sprintf("%s %s\n", cursor, line))
		s.WriteString(SubtitleStyle.UnsetMarginBottom().Render("    " + item.desc))
		s.WriteString("\n")
	}

	s.WriteString(HelpStyle.Render("↑/↓: navigate • enter/1-3: open • q: quit"))

	return BoxStyle.Render(s.String())
}
