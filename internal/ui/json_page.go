package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/nconklindev/sandbox/internal/api"
	"github.com/nconklindev/sandbox/internal/converter"
	"github.com/nconklindev/sandbox/internal/types"
)

type jsonPage struct {
	ctx    context.Context
	conv   Converter
	logger *zap.Logger
	outDir string

	input   textarea.Model
	spinner spinner.Model
	loading bool

	result *types.DownloadResult
	status string
	err    error
	warn   string

	width int
}

type downloadCompleteMsg struct {
	result *types.DownloadResult
	err    error
}

func newJSONPage(opts Options) jsonPage {
	ta := textarea.New()
	ta.Placeholder = `[ {"name": "A", "age": 20}, {"name": "B", "age": 25} ]`
	ta.ShowLineNumbers = true
	ta.CharLimit = 0
	ta.MaxHeight = 0
	ta.SetWidth(80)
	ta.SetHeight(15)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(accent)

	return jsonPage{
		ctx:     opts.Context,
		conv:    opts.Converter,
		logger:  opts.Logger,
		outDir:  opts.OutputDir,
		input:   ta,
		spinner: sp,
	}
}

func (p *jsonPage) setSize(width, height int) {
	p.width = width

	w := width - 8
	if w < 20 {
		w = 20
	}
	h := height - 14
	if h < 5 {
		h = 5
	}
	p.input.SetWidth(w)
	p.input.SetHeight(h)
}

func (p *jsonPage) focus() tea.Cmd {
	return p.input.Focus()
}

func (p jsonPage) Update(msg tea.Msg) (jsonPage, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "esc":
			return p, goBack
		case "ctrl+f":
			return p.format(), nil
		case "ctrl+l":
			p.input.Reset()
			p.clearMessages()
			return p, nil
		case "ctrl+s":
			return p.download()
		}
		if p.loading {
			return p, nil
		}
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return p, cmd

	case spinner.TickMsg:
		if !p.loading {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case downloadCompleteMsg:
		if !p.loading {
			return p, nil
		}
		p.loading = false
		if msg.err != nil {
			p.logger.Warn("download failed", zap.Error(msg.err))
			p.err = errors.New(api.UserMessage(msg.err))
			return p, nil
		}
		p.result = msg.result
		p.status = "Download complete!"
		return p, nil
	}

	if p.input.Focused() {
		var cmd tea.Cmd
		p.input, cmd = p.input.Update(msg)
		return p, cmd
	}
	return p, nil
}

func (p *jsonPage) clearMessages() {
	p.status = ""
	p.warn = ""
	p.err = nil
	p.result = nil
}

func (p jsonPage) format() jsonPage {
	if strings.TrimSpace(p.input.Value()) == "" {
		return p
	}
	p.clearMessages()
	pretty, err := converter.FormatJSON(p.input.Value())
	if err != nil {
		p.err = errors.New("invalid JSON")
		return p
	}
	p.input.SetValue(pretty)
	p.status = "JSON formatted!"
	return p
}

func (p jsonPage) download() (jsonPage, tea.Cmd) {
	if p.loading {
		return p, nil
	}
	p.clearMessages()

	text := p.input.Value()
	if _, err := converter.ValidateJSONArray(text); err != nil {
		switch {
		case errors.Is(err, converter.ErrEmptyInput):
			p.warn = "Please enter JSON!"
		case errors.Is(err, converter.ErrNotArray):
			p.warn = "JSON must be an array of objects!"
		default:
			p.err = errors.New("JSON is not well formed")
		}
		return p, nil
	}

	p.loading = true
	ctx, conv, outDir := p.ctx, p.conv, p.outDir
	p.logger.Info("requesting workbook", zap.String("out_dir", outDir))

	return p, tea.Batch(
		p.spinner.Tick,
		func() tea.Msg {
			result, err := conv.JSONToExcel(ctx, text, outDir)
			return downloadCompleteMsg{result: result, err: err}
		},
	)
}

func (p jsonPage) View() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("📊 JSON → Excel"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Paste a JSON array of objects below"))
	s.WriteString("\n")
	s.WriteString(p.input.View())
	s.WriteString("\n\n")

	switch {
	case p.loading:
		s.WriteString(p.spinner.View() + " Converting and downloading...")
	case p.err != nil:
		s.WriteString(ErrorStyle.Render("✗ " + p.err.Error()))
	case p.warn != "":
		s.WriteString(CheckedStyle.Render("! " + p.warn))
	case p.result != nil:
		s.WriteString(SuccessStyle.Render("✓ " + p.status))
		s.WriteString("\n")
		s.WriteString(fmt.Sprintf("Saved: %s (%s)\n", p.result.OutputFile, humanize.Bytes(uint64(p.result.Size))))
		s.WriteString(fmt.Sprintf("Sheet %q: %d row(s), columns: %s", p.result.Sheet, p.result.DataRows, strings.Join(p.result.Columns, ", ")))
	case p.status != "":
		s.WriteString(SuccessStyle.Render("✓ " + p.status))
	}
	s.WriteString("\n")

	help := "ctrl+f: format • ctrl+l: clear • ctrl+s: convert & download • esc: back"
	if strings.TrimSpace(p.input.Value()) == "" {
		help = "ctrl+f: format • ctrl+l: clear • esc: back"
	}
	s.WriteString(HelpStyle.Render(help))

	return s.String()
}
