package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/testmend/testmend/internal/logging"
)

// errTestsStillFailing signals a fix session that completed without fixing
// every test. It maps to exit code 2 so scripts can tell a partial result
// from a usage or infrastructure error. The message is already printed by
// the fix command when it returns this.
var errTestsStillFailing = errors.New("some tests are still failing")

// Global flag values accessible to all subcommands.
var (
	flagVerbose bool
	flagQuiet   bool
	flagConfig  string
	flagDir     string
	flagNoColor bool
)

// rootCmd is the base command for testmend.
var rootCmd = &cobra.Command{
	Use:   "testmend",
	Short: "Automated repair of failing pytest suites",
	Long: `testmend runs a failing pytest suite, parses the failures, and drives an
LLM-backed fix loop for each broken test: generate a candidate fix, apply it
under backup, and re-run the test to verify. Fixes land on a dedicated git
branch, ready for review.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Check env vars for flags not explicitly set on command line.
		if !cmd.Flags().Changed("verbose") && os.Getenv("TESTMEND_VERBOSE") != "" {
			flagVerbose = true
		}
		if !cmd.Flags().Changed("quiet") && os.Getenv("TESTMEND_QUIET") != "" {
			flagQuiet = true
		}
		if !cmd.Flags().Changed("no-color") && (os.Getenv("NO_COLOR") != "" || os.Getenv("TESTMEND_NO_COLOR") != "") {
			flagNoColor = true
		}

		// Initialize logging.
		jsonFormat := os.Getenv("TESTMEND_LOG_FORMAT") == "json"
		logging.Setup(flagVerbose, flagQuiet, jsonFormat)

		// Handle --no-color: disable colored output.
		if flagNoColor {
			lipgloss.SetColorProfile(termenv.Ascii)
		}

		// Handle --dir (change working directory).
		if flagDir != "" {
			if err := os.Chdir(flagDir); err != nil {
				return fmt.Errorf("changing directory to %s: %w", flagDir, err)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "Enable verbose (debug) output (env: TESTMEND_VERBOSE)")
	rootCmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "Suppress all output except errors (env: TESTMEND_QUIET)")
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to testmend.toml config file")
	rootCmd.PersistentFlags().StringVar(&flagDir, "dir", "", "Override working directory")
	rootCmd.PersistentFlags().BoolVar(&flagNoColor, "no-color", false, "Disable colored output (env: TESTMEND_NO_COLOR, NO_COLOR)")
}

// NewRootCmd returns the root command with the full subcommand tree, for
// completion and man page generators that need it without executing it.
func NewRootCmd() *cobra.Command {
	return rootCmd
}

// Execute runs the root command and returns the exit code.
func Execute() int {
	return exitCodeFor(rootCmd.Execute())
}

// exitCodeFor maps a command error to the process exit code: 0 on success,
// 2 for a partially-failed fix session, 1 for everything else.
func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errTestsStillFailing):
		return 2
	default:
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
}
