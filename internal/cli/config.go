package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nconklindev/sandbox/internal/api"
	"github.com/nconklindev/sandbox/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Long: `Write a configuration file with default values.

Examples:
  sandbox config init --base-url http://localhost:8080
  sandbox config init --force`,
		Args: cobra.NoArgs,
		RunE: runConfigInit,
	}
	initCmd.Flags().String("base-url", "", "conversion backend URL")
	initCmd.Flags().BoolP("force", "f", false, "overwrite an existing file")
	cmd.AddCommand(initCmd)

	return cmd
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.DefaultPath()
	}
	force, _ := cmd.Flags().GetBool("force")
	baseURL, _ := cmd.Flags().GetString("base-url")

	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	cfg := config.NewConfig()
	cfg.API.BaseURL = baseURL
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}

	cmd.Printf("Created %s\n", path)
	return nil
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage cached bearer tokens",
	}

	setCmd := &cobra.Command{
		Use:   "set",
		Short: "Store the access and refresh tokens",
		Long: `Store the tokens sent with backend requests. The access token is
replaced automatically when the backend answers 401 and a refresh token
is available.`,
		Args: cobra.NoArgs,
		RunE: runTokenSet,
	}
	setCmd.Flags().String("access", "", "access token")
	setCmd.Flags().String("refresh", "", "refresh token")
	cmd.AddCommand(setCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the cached tokens",
		Args:  cobra.NoArgs,
		RunE:  runTokenClear,
	})

	return cmd
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	access, _ := cmd.Flags().GetString("access")
	refresh, _ := cmd.Flags().GetString("refresh")
	if access == "" && refresh == "" {
		return errors.New("at least one of --access or --refresh is required")
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	tokens, err := a.tokens.Load()
	if err != nil {
		return err
	}
	if access != "" {
		tokens.AccessToken = access
	}
	if refresh != "" {
		tokens.RefreshToken = refresh
	}
	if err := a.tokens.Save(tokens); err != nil {
		return err
	}

	cmd.Printf("Saved tokens to %s\n", a.tokens.Path())
	return nil
}

func runTokenClear(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	if err := a.tokens.Save(api.Tokens{}); err != nil {
		return err
	}
	cmd.Printf("Cleared tokens in %s\n", a.tokens.Path())
	return nil
}
