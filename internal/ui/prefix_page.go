package ui

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nconklindev/sandbox/internal/expression"
)

type prefixPage struct {
	prefix    textinput.Model
	input     textinput.Model
	focusExpr bool

	result string
	status string
	err    error
}

func newPrefixPage(defaultPrefix string) prefixPage {
	prefix := textinput.New()
	prefix.Placeholder = "e.g. DDL, ABC"
	prefix.Prompt = "› "
	prefix.Width = 20
	prefix.SetValue(defaultPrefix)

	input := textinput.New()
	input.Placeholder = "e.g. 1+2-3"
	input.Prompt = "› "
	input.Width = 50

	return prefixPage{
		prefix:    prefix,
		input:     input,
		focusExpr: true,
	}
}

func (p *prefixPage) setSize(width int) {
	w := width - 12
	if w < 20 {
		w = 20
	}
	p.input.Width = w
}

func (p *prefixPage) focus() tea.Cmd {
	if p.focusExpr {
		p.prefix.Blur()
		return p.input.Focus()
	}
	p.input.Blur()
	return p.prefix.Focus()
}

func (p prefixPage) Update(msg tea.Msg) (prefixPage, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return p, goBack
		case "tab", "shift+tab":
			p.focusExpr = !p.focusExpr
			cmd := p.focus()
			return p, cmd
		case "enter":
			return p.generate(), nil
		case "ctrl+y":
			return p.copy(), nil
		}
	}

	var cmd tea.Cmd
	if p.focusExpr {
		p.input, cmd = p.input.Update(msg)
	} else {
		p.prefix, cmd = p.prefix.Update(msg)
	}
	return p, cmd
}

func (p prefixPage) generate() prefixPage {
	p.status = ""
	result, err := expression.AddPrefixes(p.input.Value(), p.prefix.Value())
	if err != nil {
		p.err = err
		p.result = ""
		return p
	}
	p.err = nil
	p.result = result
	return p
}

func (p prefixPage) copy() prefixPage {
	if p.result == "" {
		return p
	}
	if err := clipboardWriteAll(p.result); err != nil {
		p.status = ""
		p.err = err
		return p
	}
	p.status = "Copied to clipboard!"
	return p
}

func (p prefixPage) View() string {
	var s strings.Builder

	s.WriteString(TitleStyle.Render("🧮 Sequence Generator"))
	s.WriteString("\n\n")
	s.WriteString(LabelStyle.Render("Prefix"))
	s.WriteString("\n")
	s.WriteString(p.prefix.View())
	s.WriteString("\n\n")
	s.WriteString(LabelStyle.Render("Input sequence"))
	s.WriteString("\n")
	s.WriteString(p.input.View())
	s.WriteString("\n\n")

	if p.err != nil {
		s.WriteString(ErrorStyle.Render("✗ " + p.err.Error()))
		s.WriteString("\n")
	}
	if p.result != "" {
		s.WriteString(LabelStyle.Render("Result"))
		s.WriteString("\n")
		s.WriteString(CodeStyle.Render(p.result))
		s.WriteString("\n")
	}
	if p.status != "" {
		s.WriteString(SuccessStyle.Render("✓ " + p.status))
		s.WriteString("\n")
	}

	s.WriteString(HelpStyle.Render("tab: switch field • enter: generate • ctrl+y: copy • esc: back"))

	return BoxStyle.Render(s.String())
}
