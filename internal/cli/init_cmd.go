package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/testmend/testmend/internal/config"
)

// initCmd implements "testmend init": write a starter testmend.toml into the
// current directory. It is safe to run in a fresh project; an existing
// config file is never overwritten.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter testmend.toml into the current directory",
	Long: `Write a commented starter configuration file into the current directory
(or the directory given with --dir). Refuses to overwrite an existing
testmend.toml.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting current directory: %w", err)
		}

		path, err := config.WriteStarterConfig(dir)
		if err != nil {
			return err
		}

		stderr := cmd.ErrOrStderr()
		fmt.Fprintf(stderr, "Wrote %s\n\n", path)
		fmt.Fprintln(stderr, "Next steps:")
		fmt.Fprintln(stderr, "  1. Set the model and base_url for your LLM endpoint")
		fmt.Fprintf(stderr, "  2. Export the API key (default env var: %s)\n", config.NewDefaults().LLM.APIKeyEnv)
		fmt.Fprintln(stderr, "  3. Run: testmend fix")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
