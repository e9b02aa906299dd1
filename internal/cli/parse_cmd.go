package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/testmend/testmend/internal/logging"
	"github.com/testmend/testmend/internal/parse"
)

var parseJSON bool

// parseCmd implements "testmend parse [file]": parse captured pytest output
// without running anything or touching any files.
var parseCmd = &cobra.Command{
	Use:   "parse [file]",
	Short: "Parse captured pytest output and list the failures",
	Long: `Parse pytest output from a file (or stdin when omitted) and print the
failures testmend would try to fix. Useful for checking what a fix run
would pick up, and for piping CI logs through the failure parser.`,
	Example: `  # Parse a saved CI log
  testmend parse ci-output.txt

  # Pipe pytest straight in
  pytest 2>&1 | testmend parse --json`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New("parse")

		var data []byte
		var err error
		if len(args) > 0 {
			data, err = os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[0], err)
			}
		} else {
			data, err = io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading stdin: %w", err)
			}
		}

		records := parse.ParseOutput(string(data))
		logger.Debug("parsed pytest output", "bytes", len(data), "failures", len(records))

		if parseJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}

		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No failures found.")
			return nil
		}
		for _, rec := range records {
			fmt.Fprintf(cmd.OutOrStdout(), "%s::%s  %s\n", rec.TestFile, rec.Function, rec.FormattedError())
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n%d failure(s)\n", len(records))
		return nil
	},
}

func init() {
	parseCmd.Flags().BoolVar(&parseJSON, "json", false, "Output parsed failures as JSON")
	rootCmd.AddCommand(parseCmd)
}
