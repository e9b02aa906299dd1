package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/testmend/testmend/internal/config"
	"github.com/testmend/testmend/internal/logging"
	"github.com/testmend/testmend/internal/workspace"
)

// checkCmd implements "testmend check [dir]": validate the workspace,
// dependencies, and configuration without modifying anything.
var checkCmd = &cobra.Command{
	Use:   "check [dir]",
	Short: "Validate the workspace, dependencies, and configuration",
	Long: `Check that testmend can run here: the directory is writable, the Python
interpreter and pytest are available, the configuration is valid, and test
files can be discovered.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := logging.New("check")
		out := cmd.OutOrStdout()

		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}

		resolved, meta, err := loadAndResolveConfig(nil)
		if err != nil {
			return err
		}
		cfg := resolved.Config
		if resolved.Path != "" {
			fmt.Fprintf(out, "Config: %s\n", resolved.Path)
		} else {
			fmt.Fprintln(out, "Config: built-in defaults (no testmend.toml found)")
		}
		if err := reportValidation(config.Validate(cfg, meta), logger); err != nil {
			return err
		}

		validator := workspace.NewValidator(cfg.Pytest.Python, logger)

		if err := validator.ValidateWorkspace(dir); err != nil {
			return fmt.Errorf("workspace: %w", err)
		}
		fmt.Fprintf(out, "Workspace: %s is a writable directory\n", dir)

		if err := validator.CheckDependencies(); err != nil {
			return fmt.Errorf("dependencies: %w", err)
		}
		fmt.Fprintf(out, "Dependencies: %s and pytest available\n", cfg.Pytest.Python)

		files, err := validator.DiscoverTestFiles(dir)
		if err != nil {
			return fmt.Errorf("discovering test files: %w", err)
		}
		fmt.Fprintf(out, "Test files: %d found\n", len(files))
		if flagVerbose {
			for _, f := range files {
				fmt.Fprintf(out, "  %s\n", f)
			}
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
