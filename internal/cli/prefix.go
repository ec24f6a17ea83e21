package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nconklindev/sandbox/internal/expression"
)

func newPrefixCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prefix EXPR",
		Short: "Prefix every number in a sequence like 1+2-3",
		Long: `Rewrite a sequence of numbers joined by + and - so each number
carries a prefix.

Examples:
  sandbox prefix 1+2-3             # DDL_1 + DDL_2 - DDL_3
  sandbox prefix "4 - 5" --prefix ABC`,
		Args: cobra.ExactArgs(1),
		RunE: runPrefix,
	}
	cmd.Flags().StringP("prefix", "p", "", "prefix to apply (default prefix.default from config)")
	return cmd
}

func runPrefix(cmd *cobra.Command, args []string) error {
	prefix, _ := cmd.Flags().GetString("prefix")
	if !cmd.Flags().Changed("prefix") {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.close()
		prefix = a.cfg.Prefix.Default
	}

	result, err := expression.AddPrefixes(args[0], prefix)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), result)
	return nil
}
