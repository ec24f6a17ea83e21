package ui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/filepicker"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/nconklindev/sandbox/internal/api"
	"github.com/nconklindev/sandbox/internal/converter"
	"github.com/nconklindev/sandbox/internal/types"
)

type excelState int

const (
	excelPicking excelState = iota
	excelMapping
	excelUploading
	excelDone
)

type excelPage struct {
	ctx    context.Context
	conv   Converter
	logger *zap.Logger

	state      excelState
	filepicker filepicker.Model
	file       string
	fileSize   int64
	preview    *types.FileData
	previewErr error

	indexes   textinput.Model
	keys      textinput.Model
	focusKeys bool

	progress     progress.Model
	progressChan chan float64
	resultChan   chan uploadResultMsg

	result   *types.ParseResult
	viewport viewport.Model
	status   string
	err      error

	width  int
	height int
}

type previewLoadedMsg struct {
	path string
	data *types.FileData
	err  error
}

type uploadResultMsg struct {
	result *types.ParseResult
	err    error
}

type uploadCompleteMsg uploadResultMsg

type uploadProgressMsg float64

func newExcelPage(opts Options) excelPage {
	fp := filepicker.New()
	fp.AllowedTypes = []string{".xlsx"}
	fp.CurrentDirectory = opts.StartDir
	if fp.CurrentDirectory == "" {
		fp.CurrentDirectory, _ = os.Getwd()
	}

	fp.Styles.Cursor = lipgloss.NewStyle().Foreground(accent)
	fp.Styles.Symlink = lipgloss.NewStyle().Foreground(accentSoft)
	fp.Styles.Directory = lipgloss.NewStyle().Foreground(accentSoft)
	fp.Styles.File = lipgloss.NewStyle().Foreground(white)
	fp.Styles.Permission = lipgloss.NewStyle().Foreground(muted)
	fp.Styles.Selected = lipgloss.NewStyle().Foreground(accent).Bold(true)
	fp.Styles.FileSize = lipgloss.NewStyle().Foreground(muted)

	indexes := textinput.New()
	indexes.Placeholder = "e.g. 0, 1, 4 (blank for all columns)"
	indexes.Prompt = "› "
	indexes.Width = 40

	keys := textinput.New()
	keys.Placeholder = "e.g. fullName, age, email"
	keys.Prompt = "› "
	keys.Width = 40

	return excelPage{
		ctx:        opts.Context,
		conv:       opts.Converter,
		logger:     opts.Logger,
		state:      excelPicking,
		filepicker: fp,
		indexes:    indexes,
		keys:       keys,
		progress:   progress.New(progress.WithGradient("#FF8C42", "#FF9F5A")),
		viewport:   viewport.New(80, 15),
	}
}

func (p excelPage) Init() tea.Cmd {
	return p.filepicker.Init()
}

func (p *excelPage) setSize(width, height int) {
	p.width = width
	p.height = height

	// Leave room for title, subtitle, help text and padding.
	fpHeight := height - 14
	if fpHeight < 5 {
		fpHeight = 5
	}
	p.filepicker.SetHeight(fpHeight)

	vpHeight := height - 16
	if vpHeight < 5 {
		vpHeight = 5
	}
	vpWidth := width - 10
	if vpWidth < 20 {
		vpWidth = 20
	}
	p.viewport.Width = vpWidth
	p.viewport.Height = vpHeight
	p.progress.Width = vpWidth
}

func (p excelPage) Update(msg tea.Msg) (excelPage, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return p.handleKey(msg)

	case previewLoadedMsg:
		if msg.path != p.file {
			return p, nil
		}
		p.preview = msg.data
		p.previewErr = msg.err
		p.state = excelMapping
		cmd := p.focusInput()
		return p, cmd

	case progress.FrameMsg:
		progressModel, cmd := p.progress.Update(msg)
		p.progress = progressModel.(progress.Model)
		return p, cmd

	case uploadProgressMsg:
		if p.state == excelUploading {
			cmd := p.progress.SetPercent(float64(msg))
			return p, tea.Batch(cmd, waitForUpload(p.progressChan, p.resultChan))
		}
		return p, nil

	case uploadCompleteMsg:
		if p.state != excelUploading {
			return p, nil
		}
		if msg.err != nil {
			p.logger.Warn("upload failed", zap.String("file", p.file), zap.Error(msg.err))
			p.err = errors.New(api.UserMessage(msg.err))
			p.result = nil
			p.state = excelMapping
			cmd := p.focusInput()
			return p, cmd
		}
		p.result = msg.result
		p.viewport.SetContent(msg.result.Pretty)
		p.viewport.GotoTop()
		p.status = fmt.Sprintf("Parsed %d record(s)", msg.result.Count)
		p.state = excelDone
		return p, nil
	}

	switch p.state {
	case excelPicking:
		return p.updatePicker(msg)
	case excelMapping:
		var cmd tea.Cmd
		if p.focusKeys {
			p.keys, cmd = p.keys.Update(msg)
		} else {
			p.indexes, cmd = p.indexes.Update(msg)
		}
		return p, cmd
	}
	return p, nil
}

func (p excelPage) updatePicker(msg tea.Msg) (excelPage, tea.Cmd) {
	var cmd tea.Cmd
	p.filepicker, cmd = p.filepicker.Update(msg)

	if didSelect, path := p.filepicker.DidSelectFile(msg); didSelect {
		p.file = path
		p.fileSize = 0
		if info, err := os.Stat(path); err == nil {
			p.fileSize = info.Size()
		}
		p.result = nil
		p.err = nil
		p.status = ""
		return p, loadPreview(path)
	}
	if didSelect, path := p.filepicker.DidSelectDisabledFile(msg); didSelect {
		p.err = fmt.Errorf("%s is not an .xlsx file", filepath.Base(path))
		return p, cmd
	}

	return p, cmd
}

func (p excelPage) handleKey(msg tea.KeyMsg) (excelPage, tea.Cmd) {
	switch p.state {
	case excelPicking:
		if msg.String() == "esc" {
			return p, goBack
		}
		return p.updatePicker(msg)

	case excelMapping:
		switch msg.String() {
		case "esc":
			return p, goBack
		case "tab", "shift+tab":
			p.focusKeys = !p.focusKeys
			cmd := p.focusInput()
			return p, cmd
		case "ctrl+x":
			return p.removeFile()
		case "enter":
			return p.upload()
		}
		var cmd tea.Cmd
		if p.focusKeys {
			p.keys, cmd = p.keys.Update(msg)
		} else {
			p.indexes, cmd = p.indexes.Update(msg)
		}
		return p, cmd

	case excelUploading:
		// Submissions are blocked until the backend answers.
		return p, nil

	case excelDone:
		switch msg.String() {
		case "esc":
			return p, goBack
		case "c":
			return p.copyJSON()
		case "r":
			return p.upload()
		case "m":
			p.state = excelMapping
			cmd := p.focusInput()
			return p, cmd
		case "x":
			return p.removeFile()
		}
		var cmd tea.Cmd
		p.viewport, cmd = p.viewport.Update(msg)
		return p, cmd
	}
	return p, nil
}

func (p *excelPage) focusInput() tea.Cmd {
	if p.focusKeys {
		p.indexes.Blur()
		return p.keys.Focus()
	}
	p.keys.Blur()
	return p.indexes.Focus()
}

func (p excelPage) removeFile() (excelPage, tea.Cmd) {
	p.file = ""
	p.fileSize = 0
	p.preview = nil
	p.previewErr = nil
	p.result = nil
	p.err = nil
	p.status = ""
	p.state = excelPicking
	return p, p.filepicker.Init()
}

func (p excelPage) copyJSON() (excelPage, tea.Cmd) {
	if p.result == nil {
		return p, nil
	}
	compact, err := converter.CompactJSON(p.result.Raw)
	if err == nil {
		err = clipboardWriteAll(compact)
	}
	if err != nil {
		p.err = fmt.Errorf("copy failed: %w", err)
		return p, nil
	}
	p.err = nil
	p.status = "Copied JSON to clipboard!"
	return p, nil
}

func loadPreview(path string) tea.Cmd {
	return func() tea.Msg {
		data, err := converter.PreviewHeaders(path)
		return previewLoadedMsg{path: path, data: data, err: err}
	}
}

func (p excelPage) upload() (excelPage, tea.Cmd) {
	if p.file == "" {
		p.err = fmt.Errorf("no file has been chosen")
		return p, nil
	}

	mapping, err := converter.ParseMapping(p.indexes.Value(), p.keys.Value())
	if err != nil {
		p.err = err
		p.state = excelMapping
		return p, nil
	}

	p.err = nil
	p.status = ""
	p.state = excelUploading
	p.progressChan = make(chan float64, 100)
	p.resultChan = make(chan uploadResultMsg, 1)

	// Capture everything the goroutine needs.
	ctx := p.ctx
	conv := p.conv
	file := p.file
	progressChan := p.progressChan
	resultChan := p.resultChan

	p.logger.Info("starting upload", zap.String("file", file))

	cmd := tea.Batch(
		func() tea.Msg {
			go func() {
				result, err := conv.ExcelToJSON(ctx, file, mapping, progressChan)
				resultChan <- uploadResultMsg{result: result, err: err}
				close(progressChan)
				close(resultChan)
			}()
			return nil
		},
		waitForUpload(progressChan, resultChan),
		p.progress.SetPercent(0),
	)

	return p, cmd
}

func waitForUpload(progressChan chan float64, resultChan chan uploadResultMsg) tea.Cmd {
	return func() tea.Msg {
		if progressChan == nil {
			return nil
		}

		pct, ok := <-progressChan
		if !ok {
			// Progress channel closed, check result
			res, ok := <-resultChan
			if ok {
				return uploadCompleteMsg(res)
			}
			return nil
		}

		return uploadProgressMsg(pct)
	}
}

func (p excelPage) View() string {
	switch p.state {
	case excelMapping:
		return p.viewMapping()
	case excelUploading:
		return p.viewUploading()
	case excelDone:
		return p.viewResult()
	}
	return p.viewPicker()
}

func (p excelPage) viewPicker() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("📄 Excel → JSON"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render("Select an .xlsx file to parse"))
	s.WriteString("\n\n")
	s.WriteString(p.filepicker.View())
	if p.err != nil {
		s.WriteString("\n")
		s.WriteString(ErrorStyle.Render("✗ " + p.err.Error()))
	}
	s.WriteString("\n\n")
	s.WriteString(HelpStyle.Render("enter: choose • esc: back"))

	return s.String()
}

func (p excelPage) fileLine() string {
	line := fmt.Sprintf("File: %s", filepath.Base(p.file))
	if p.fileSize > 0 {
		line += fmt.Sprintf(" (%s)", humanize.Bytes(uint64(p.fileSize)))
	}
	return line
}

func (p excelPage) viewMapping() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("⚙ Column Mapping"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(p.fileLine()))
	s.WriteString("\n")

	switch {
	case p.previewErr != nil:
		s.WriteString(ErrorStyle.Render("Could not preview headers: " + p.previewErr.Error()))
		s.WriteString("\n\n")
	case p.preview != nil && len(p.preview.Headers) > 0:
		s.WriteString(LabelStyle.Render(fmt.Sprintf("Columns in %q (%d data rows)", p.preview.Sheet, p.preview.DataRows)))
		s.WriteString("\n")
		for i, h := range p.preview.Headers {
			s.WriteString(UnselectedStyle.Render(fmt.Sprintf("  %2d  %-24s → %s", i, h, p.preview.Keys[i])))
			s.WriteString("\n")
		}
		s.WriteString("\n")
	}

	s.WriteString(LabelStyle.Render("1. Only these columns (index from 0):"))
	s.WriteString("\n")
	s.WriteString(p.indexes.View())
	s.WriteString("\n\n")
	s.WriteString(LabelStyle.Render("2. JSON key names (same order):"))
	s.WriteString("\n")
	s.WriteString(p.keys.View())
	s.WriteString("\n\n")

	if p.preview != nil {
		if m, err := converter.ParseMapping(p.indexes.Value(), p.keys.Value()); err == nil {
			if keys := converter.ResolveKeys(p.preview, m); len(keys) > 0 {
				s.WriteString(CheckedStyle.Render("Keys: " + strings.Join(keys, ", ")))
				s.WriteString("\n")
			}
		}
	}

	if p.err != nil {
		s.WriteString(ErrorStyle.Render("✗ " + p.err.Error()))
		s.WriteString("\n")
	}

	s.WriteString(HelpStyle.Render("tab: switch field • enter: parse • ctrl+x: choose another file • esc: back"))

	return BoxStyle.Render(s.String())
}

func (p excelPage) viewUploading() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("📄 Processing..."))
	s.WriteString("\n\n")
	s.WriteString(fmt.Sprintf("Uploading %s...", filepath.Base(p.file)))
	s.WriteString("\n\n")
	s.WriteString(p.progress.View())

	return BoxStyle.Render(s.String())
}

func (p excelPage) viewResult() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("✓ JSON Result"))
	s.WriteString("\n")
	s.WriteString(SubtitleStyle.Render(fmt.Sprintf("%s • %d records", p.fileLine(), p.result.Count)))
	s.WriteString("\n")
	s.WriteString(CodeStyle.Render(p.viewport.View()))
	s.WriteString("\n")

	if p.err != nil {
		s.WriteString(ErrorStyle.Render("✗ " + p.err.Error()))
		s.WriteString("\n")
	} else if p.status != "" {
		s.WriteString(SuccessStyle.Render(p.status))
		s.WriteString("\n")
	}

	s.WriteString(HelpStyle.Render("↑/↓: scroll • c: copy JSON • r: parse again • m: edit mapping • x: remove file • esc: back"))

	return BoxStyle.Render(s.String())
}
