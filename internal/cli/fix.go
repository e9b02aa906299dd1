package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/testmend/testmend/internal/apply"
	"github.com/testmend/testmend/internal/buildinfo"
	"github.com/testmend/testmend/internal/config"
	"github.com/testmend/testmend/internal/fixer"
	"github.com/testmend/testmend/internal/git"
	"github.com/testmend/testmend/internal/llm"
	"github.com/testmend/testmend/internal/logging"
	"github.com/testmend/testmend/internal/parse"
	"github.com/testmend/testmend/internal/pytest"
	"github.com/testmend/testmend/internal/tui"
	"github.com/testmend/testmend/internal/workspace"
)

// fixFlags holds parsed flag values for the fix command.
type fixFlags struct {
	MaxRetries    int
	InitialTemp   float64
	TempIncrement float64
	ForceSuccess  bool
	Model         string
	BaseURL       string
	Python        string
	Timeout       int
	BaseBranch    string
	CreatePR      bool
	NoBranch      bool
	NoTUI         bool
	Yes           bool
}

// newFixCmd creates the "testmend fix" command.
func newFixCmd() *cobra.Command {
	var flags fixFlags

	cmd := &cobra.Command{
		Use:   "fix [target]",
		Short: "Run the failing suite and repair broken tests with an LLM",
		Long: `Run pytest against the target (a test file, directory, or the current
directory when omitted), parse every failure, and work through them one by
one: ask the model for a candidate fix, apply it with a backup, and re-run
the single test to verify. A test that stays broken after the configured
retries fails the whole session and rolls the file back.

Unless --no-branch is given, fixes are made on a dedicated branch and
committed when the session completes.

Exit codes:
  0 - All failing tests repaired (or nothing was failing)
  1 - Error during execution
  2 - Session ended with unfixed tests`,
		Example: `  # Fix everything failing under the current directory
  testmend fix

  # Fix a single test file with more retries
  testmend fix tests/test_api.py --max-retries 5

  # Use a local OpenAI-compatible endpoint
  testmend fix --base-url http://localhost:11434/v1 --model qwen2.5-coder

  # Repair in place on the current branch, no questions asked
  testmend fix --no-branch --yes`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "."
			if len(args) > 0 {
				target = args[0]
			}
			return runFix(cmd, flags, target)
		},
	}

	cmd.Flags().IntVar(&flags.MaxRetries, "max-retries", 0, "Fix attempts per failing test (default from config)")
	cmd.Flags().Float64Var(&flags.InitialTemp, "initial-temperature", 0, "Sampling temperature of the first attempt")
	cmd.Flags().Float64Var(&flags.TempIncrement, "temperature-increment", 0, "Temperature added after each failed attempt")
	cmd.Flags().BoolVar(&flags.ForceSuccess, "force-success", false, "Mark attempts successful without invoking the model (pipeline dry runs)")
	cmd.Flags().StringVar(&flags.Model, "model", "", "Model name for fix generation")
	cmd.Flags().StringVar(&flags.BaseURL, "base-url", "", "OpenAI-compatible API base URL")
	cmd.Flags().StringVar(&flags.Python, "python", "", "Python interpreter used for pytest and syntax checks")
	cmd.Flags().IntVar(&flags.Timeout, "timeout", 0, "Per-pytest-run timeout in seconds")
	cmd.Flags().StringVar(&flags.BaseBranch, "base-branch", "", "Ref the fix branch is created from")
	cmd.Flags().BoolVar(&flags.CreatePR, "create-pr", false, "Open a pull request after a completed session")
	cmd.Flags().BoolVar(&flags.NoBranch, "no-branch", false, "Fix in place instead of on a dedicated branch")
	cmd.Flags().BoolVar(&flags.NoTUI, "no-tui", false, "Log progress instead of rendering the interactive view")
	cmd.Flags().BoolVarP(&flags.Yes, "yes", "y", false, "Skip the confirmation prompt")

	return cmd
}

func init() {
	rootCmd.AddCommand(newFixCmd())
}

// buildOverrides maps explicitly-set fix flags onto config overrides.
// Unchanged flags stay nil so lower-priority sources win.
func buildOverrides(cmd *cobra.Command, flags fixFlags) *config.CLIOverrides {
	ov := &config.CLIOverrides{}
	fs := cmd.Flags()

	if fs.Changed("max-retries") {
		ov.MaxRetries = &flags.MaxRetries
	}
	if fs.Changed("initial-temperature") {
		ov.InitialTemperature = &flags.InitialTemp
	}
	if fs.Changed("temperature-increment") {
		ov.TemperatureIncrement = &flags.TempIncrement
	}
	if fs.Changed("force-success") {
		ov.ForceSuccess = &flags.ForceSuccess
	}
	if fs.Changed("model") {
		ov.Model = &flags.Model
	}
	if fs.Changed("base-url") {
		ov.BaseURL = &flags.BaseURL
	}
	if fs.Changed("python") {
		ov.Python = &flags.Python
	}
	if fs.Changed("timeout") {
		ov.TimeoutSeconds = &flags.Timeout
	}
	if fs.Changed("base-branch") {
		ov.BaseBranch = &flags.BaseBranch
	}
	if fs.Changed("create-pr") {
		ov.CreatePR = &flags.CreatePR
	}
	return ov
}

// runFix is the RunE implementation for the fix command.
func runFix(cmd *cobra.Command, flags fixFlags, target string) error {
	logger := logging.New("fix")

	// Step 1: Load and resolve configuration.
	resolved, meta, err := loadAndResolveConfig(buildOverrides(cmd, flags))
	if err != nil {
		return err
	}
	cfg := resolved.Config
	if resolved.Path != "" {
		logger.Debug("using config file", "path", resolved.Path)
	}
	if err := reportValidation(config.Validate(cfg, meta), logger); err != nil {
		return err
	}

	// Step 2: Check the workspace before touching anything.
	validator := workspace.NewValidator(cfg.Pytest.Python, logging.New("workspace"))
	if err := validator.CheckDependencies(); err != nil {
		return fmt.Errorf("workspace check: %w", err)
	}

	// Step 3: Signal context for graceful cancellation.
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Step 4: Run the suite and collect failures.
	timeout := time.Duration(cfg.Pytest.TimeoutSeconds) * time.Second
	runner := pytest.NewRunner(cfg.Pytest.Python, "", timeout, logging.New("pytest"))

	logger.Info("running test suite", "target", target)
	result, err := runner.Run(ctx, target)
	if err != nil {
		return fmt.Errorf("running pytest: %w", err)
	}
	if result.Passed {
		fmt.Fprintln(cmd.OutOrStdout(), "All tests passing; nothing to fix.")
		return nil
	}

	records := parse.ParseOutput(result.Output)
	if len(records) == 0 {
		return fmt.Errorf("pytest exited %d but no failures could be parsed; run with --verbose and check the output", result.ExitCode)
	}
	cases := fixer.CasesFromRecords(records)
	logger.Info("failures collected", "count", len(cases))

	// Step 5: Confirm before modifying files.
	if !flags.Yes && !flagQuiet {
		confirmed, confirmErr := confirmFix(len(cases))
		if confirmErr != nil {
			return confirmErr
		}
		if !confirmed {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	// Step 6: Prepare the fix branch.
	var branchMgr *git.BranchManager
	branch := ""
	if !flags.NoBranch {
		client, gitErr := git.NewGitClient("")
		if gitErr != nil {
			logger.Warn("git unavailable; fixing in place", "error", gitErr)
		} else {
			branchMgr = git.NewBranchManager(client, cfg.Git.BranchTemplate, cfg.Git.BaseBranch, logging.New("git"))
			var restore func() error
			branch, restore, err = branchMgr.Prepare(ctx)
			if err != nil {
				return fmt.Errorf("preparing fix branch: %w", err)
			}
			defer func() {
				if restoreErr := restore(); restoreErr != nil {
					logger.Error("restoring stashed changes", "error", restoreErr)
				}
			}()
			logger.Info("working on fix branch", "branch", branch)
		}
	}

	// Step 7: Assemble the fix pipeline.
	apiKey := os.Getenv(cfg.LLM.APIKeyEnv)
	generator, err := llm.NewFixGenerator(apiKey, cfg.LLM.BaseURL, cfg.LLM.Model, logging.New("llm"))
	if err != nil && !cfg.Fix.ForceSuccess {
		return fmt.Errorf("building fix generator (is %s set?): %w", cfg.LLM.APIKeyEnv, err)
	}

	checker := apply.NewPyCompileChecker(cfg.Pytest.Python, timeout, logging.New("apply"))
	applier := apply.NewApplier(checker, logging.New("apply"))

	var opts []fixer.CoordinatorOption
	if cfg.Fix.ForceSuccess {
		opts = append(opts, fixer.WithForceSuccess(true))
	}
	coordinator := fixer.NewCoordinator(generator, applier, runner, validator, logging.New("fixer"), opts...)

	events := make(chan fixer.Event, 64)
	orchestrator, err := fixer.NewOrchestrator(
		coordinator,
		cfg.Fix.MaxRetries,
		cfg.Fix.InitialTemperature,
		cfg.Fix.TemperatureIncrement,
		fixer.WithEvents(events),
		fixer.WithLogger(logging.New("fixer")),
	)
	if err != nil {
		return fmt.Errorf("building orchestrator: %w", err)
	}

	session, err := orchestrator.StartSession(cases)
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}
	session.GitBranch = branch

	// Step 8: Run the session with the TUI (or plain logs) consuming events.
	g, gctx := errgroup.WithContext(ctx)
	allFixed := false
	g.Go(func() error {
		defer close(events)
		fixed, runErr := orchestrator.RunSession(gctx, session.ID)
		allFixed = fixed
		return runErr
	})

	if flags.NoTUI || flagQuiet {
		consumeEvents(events, logger)
	} else {
		model := tui.NewSessionModel(ctx, tui.SessionConfig{
			Version: buildinfo.Version,
			Cases:   cases,
			Events:  events,
			OnStop:  orchestrator.RequestStop,
		})
		if _, tuiErr := tea.NewProgram(model).Run(); tuiErr != nil {
			logger.Warn("interactive view failed; falling back to logs", "error", tuiErr)
			consumeEvents(events, logger)
		}
	}

	runErr := g.Wait()
	if runErr != nil {
		if errors.Is(runErr, context.Canceled) {
			fmt.Fprintln(cmd.ErrOrStderr(), "\nFix session cancelled.")
			return runErr
		}
		return fmt.Errorf("running fix session: %w", runErr)
	}

	// Step 9: Commit and summarize.
	if branchMgr != nil && session.FixedCount() > 0 {
		if commitErr := branchMgr.CommitFixes(ctx, session.ModifiedFiles, session.FixedCount()); commitErr != nil {
			return fmt.Errorf("committing fixes: %w", commitErr)
		}
	}

	printSummary(cmd, session, len(cases))

	// Step 10: Optionally open a pull request.
	if cfg.Git.CreatePR && allFixed && branchMgr != nil {
		if prErr := createSessionPR(ctx, cfg, session, branch); prErr != nil {
			return fmt.Errorf("creating pull request: %w", prErr)
		}
	}

	if !allFixed {
		fmt.Fprintln(cmd.ErrOrStderr(), "\nSome tests are still failing. Run with --verbose for details.")
		// Returning instead of exiting lets the deferred stash restore
		// run; Execute maps this sentinel to exit code 2.
		return errTestsStillFailing
	}
	return nil
}

// confirmFix asks the user whether to start modifying test files.
func confirmFix(count int) (bool, error) {
	confirmed := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Attempt to fix %d failing test(s)?", count)).
				Description("Files are modified in place; every change is backed up and rolled back on failure.").
				Affirmative("Fix them").
				Negative("Abort").
				Value(&confirmed),
		),
	).WithTheme(huh.ThemeCharm())

	if err := form.Run(); err != nil {
		return false, fmt.Errorf("confirmation prompt: %w", err)
	}
	return confirmed, nil
}

// consumeEvents drains the session event channel into the logger for
// non-interactive runs.
func consumeEvents(events <-chan fixer.Event, logger *log.Logger) {
	for ev := range events {
		switch ev.Type {
		case fixer.EventCaseFailed, fixer.EventSessionFailed, fixer.EventSessionError:
			logger.Error(ev.Message, "case", ev.Case)
		case fixer.EventAttemptStarted:
			logger.Info(ev.Message, "case", ev.Case, "attempt", ev.Attempt, "temperature", ev.Temperature)
		default:
			logger.Info(ev.Message, "case", ev.Case)
		}
	}
}

// ---- Summary rendering ------------------------------------------------------

var (
	summaryTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7B78FF"})
	summaryGoodStyle  = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#16A34A", Dark: "#4ADE80"})
	summaryBadStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#DC2626", Dark: "#F87171"})
	summaryMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"})
)

// printSummary renders the end-of-session report.
func printSummary(cmd *cobra.Command, session *fixer.FixSession, total int) {
	out := cmd.OutOrStdout()
	fixed := session.FixedCount()

	fmt.Fprintln(out)
	fmt.Fprintln(out, summaryTitleStyle.Render("Fix session "+string(session.State)))

	line := fmt.Sprintf("  %d/%d test(s) fixed", fixed, total)
	if fixed == total {
		fmt.Fprintln(out, summaryGoodStyle.Render(line))
	} else {
		fmt.Fprintln(out, summaryBadStyle.Render(line))
	}

	if len(session.ModifiedFiles) > 0 {
		fmt.Fprintln(out, summaryMutedStyle.Render("  Modified files:"))
		for _, f := range session.ModifiedFiles {
			fmt.Fprintln(out, summaryMutedStyle.Render("    "+f))
		}
	}
	if session.GitBranch != "" {
		fmt.Fprintln(out, summaryMutedStyle.Render("  Branch: "+session.GitBranch))
	}
}

// createSessionPR pushes the fix branch and opens a pull request for it.
func createSessionPR(ctx context.Context, cfg *config.Config, session *fixer.FixSession, branch string) error {
	pc := git.NewPRCreator("", logging.New("pr"))

	if err := pc.CheckPrerequisites(ctx, cfg.Git.BaseBranch); err != nil {
		return err
	}
	if err := pc.EnsureBranchPushed(ctx); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Automated repair session.\n\nFixed %d failing test(s).\n\nModified files:\n",
		session.FixedCount(),
	)
	for _, f := range session.ModifiedFiles {
		body += "- " + f + "\n"
	}

	result, err := pc.Create(ctx, git.PRCreateOpts{
		Title:      fmt.Sprintf("Fix %d failing test(s)", session.FixedCount()),
		Body:       body,
		BaseBranch: cfg.Git.BaseBranch,
	})
	if err != nil {
		return err
	}
	logging.New("pr").Info("pull request created", "url", result.URL, "number", result.Number)
	return nil
}
