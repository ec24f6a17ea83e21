package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nconklindev/sandbox/internal/api"
	"github.com/nconklindev/sandbox/internal/converter"
)

// commandError prints the backend's message for err while keeping it
// reachable through errors.Is and errors.As.
type commandError struct {
	op  string
	err error
}

func (e *commandError) Error() string {
	return e.op + ": " + api.UserMessage(e.err)
}

func (e *commandError) Unwrap() error {
	return e.err
}

func newExcelToJSONCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "excel2json FILE",
		Short: "Parse an .xlsx workbook into JSON",
		Long: `Upload an .xlsx workbook to the backend and print its rows as JSON.

Examples:
  sandbox excel2json people.xlsx
  sandbox excel2json people.xlsx --columns 0,2 --keys name,email
  sandbox excel2json people.xlsx --table`,
		Args: cobra.ExactArgs(1),
		RunE: runExcelToJSON,
	}
	cmd.Flags().String("columns", "", "only these column indexes, counted from 0 (e.g. 0,1,4)")
	cmd.Flags().String("keys", "", "JSON key names for --columns, in the same order")
	cmd.Flags().Bool("table", false, "print the records as a table instead of JSON")
	return cmd
}

func runExcelToJSON(cmd *cobra.Command, args []string) error {
	columns, _ := cmd.Flags().GetString("columns")
	keys, _ := cmd.Flags().GetString("keys")
	asTable, _ := cmd.Flags().GetBool("table")

	mapping, err := converter.ParseMapping(columns, keys)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireBackend(); err != nil {
		return err
	}

	result, err := a.svc.ExcelToJSON(commandContext(cmd), args[0], mapping, nil)
	if err != nil {
		return &commandError{op: "excel2json", err: err}
	}

	out := cmd.OutOrStdout()
	if !asTable {
		fmt.Fprintln(out, result.Pretty)
		return nil
	}

	tbl, err := converter.RenderTable(result.Records)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, tbl)
	fmt.Fprintf(out, "%d record(s)\n", result.Count)
	return nil
}

func newJSONToExcelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "json2excel [FILE|-]",
		Short: "Convert a JSON array of objects into data.xlsx",
		Long: `Send a JSON array of objects to the backend and save the returned
workbook. Reads standard input when FILE is omitted or "-".

Examples:
  sandbox json2excel rows.json
  echo '[{"name":"A","age":20}]' | sandbox json2excel --out .`,
		Args: cobra.MaximumNArgs(1),
		RunE: runJSONToExcel,
	}
	cmd.Flags().String("out", "", "output directory (default output.dir from config)")
	return cmd
}

func runJSONToExcel(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}

	a, err := loadApp(cmd)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.requireBackend(); err != nil {
		return err
	}

	outDir, _ := cmd.Flags().GetString("out")
	if outDir == "" {
		outDir = a.cfg.Output.Dir
	}

	result, err := a.svc.JSONToExcel(commandContext(cmd), text, outDir)
	if err != nil {
		return &commandError{op: "json2excel", err: err}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Saved %s (%s)\n", result.OutputFile, humanize.Bytes(uint64(result.Size)))
	fmt.Fprintf(out, "Sheet %q: %d row(s), columns: %s\n", result.Sheet, result.DataRows, strings.Join(result.Columns, ", "))
	return nil
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}
