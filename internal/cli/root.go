// Package cli provides the command line interface for sandbox.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nconklindev/sandbox/internal/api"
	"github.com/nconklindev/sandbox/internal/config"
	"github.com/nconklindev/sandbox/internal/converter"
	"github.com/nconklindev/sandbox/internal/logging"
)

// Version information, set by main before Execute.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

var errNoBackend = errors.New("api.base_url is not set: run 'sandbox config init --base-url URL' or set SANDBOX_API_BASE_URL")

// NewRootCmd builds a fresh command tree. Cobra commands keep flag state
// between runs, so tests build one per case.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sandbox",
		Short: "Spreadsheet and JSON conversion tools",
		Long: `Sandbox converts between Excel workbooks and JSON through the
conversion backend, and prefixes number sequences like 1+2-3.

Run without a subcommand to open the interactive interface.`,
		SilenceUsage: true,
		RunE:         runTUI,
	}
	root.Version = fmt.Sprintf("%s (commit: %s, built: %s)", Version, Commit, Date)
	root.SetVersionTemplate("sandbox {{.Version}}\n")

	root.PersistentFlags().String("config", "", "config file (default "+config.DefaultPath()+")")

	root.AddCommand(
		newExcelToJSONCmd(),
		newJSONToExcelCmd(),
		newPrefixCmd(),
		newConfigCmd(),
		newTokenCmd(),
	)
	return root
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

// app holds everything a command needs once config is loaded.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	tokens *api.FileTokenStore
	client *api.Client
	svc    *converter.Service
}

func loadApp(cmd *cobra.Command) (*app, error) {
	path, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, err
	}

	tokens := api.NewFileTokenStore(cfg.Auth.TokenFile).WithLogger(logger)
	client := api.NewClient(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithRefreshEndpoint(cfg.API.RefreshEndpoint),
		api.WithAuthRequired(cfg.Auth.Required),
		api.WithTokenStore(tokens),
		api.WithLogger(logger),
	)

	logger.Debug("config loaded",
		zap.String("command", cmd.CommandPath()),
		zap.String("base_url", cfg.API.BaseURL))

	return &app{
		cfg:    cfg,
		logger: logger,
		tokens: tokens,
		client: client,
		svc:    converter.NewService(client, logger),
	}, nil
}

func (a *app) requireBackend() error {
	if a.cfg.API.BaseURL == "" {
		return errNoBackend
	}
	return nil
}

func (a *app) close() {
	_ = a.logger.Sync()
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
