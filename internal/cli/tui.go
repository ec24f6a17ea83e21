package cli

import (
	"errors"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nconklindev/sandbox/internal/ui"
)

var errNoTerminal = errors.New("the interactive interface needs a terminal; use a subcommand such as excel2json, json2excel or prefix")

// isTerminal is a variable so tests can pretend to have a terminal.
var isTerminal = func(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return errNoTerminal
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	startDir, _ := os.Getwd()
	model := ui.InitialModel(ui.Options{
		Context:       commandContext(cmd),
		Converter:     a.svc,
		StartDir:      startDir,
		OutputDir:     a.cfg.Output.Dir,
		DefaultPrefix: a.cfg.Prefix.Default,
		BackendURL:    a.cfg.API.BaseURL,
		Logger:        a.logger,
	})

	a.logger.Info("starting tui", zap.String("version", Version))

	p := tea.NewProgram(model,
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(commandContext(cmd)),
	)
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}
