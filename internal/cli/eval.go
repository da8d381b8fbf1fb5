package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenceql/fenceql/internal/engine"
	"github.com/fenceql/fenceql/internal/gateway"
	"github.com/fenceql/fenceql/internal/generate"
	"github.com/fenceql/fenceql/internal/grammar"
	"github.com/fenceql/fenceql/internal/harness"
)

// evalOptions holds flags for the eval command.
type evalOptions struct {
	Service     string
	Database    string
	Suites      []string
	LogDir      string
	Workers     int
	GenTimeout  time.Duration
	ExecTimeout time.Duration
}

// NewEvalCommand creates the eval command.
func NewEvalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &evalOptions{}

	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run the evaluation harness",
		Long: `Run the evaluation suites against a live generation service: grammar
validity, semantic correctness, safety guardrails, and robustness.

Without --db a throwaway snapshot of the fixture dataset is created for
the run, so semantic oracles line up with known data.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEval(rootOpts, opts, cmd)
		},
	}

	defaults := engine.DefaultOptions()
	cmd.Flags().StringVar(&opts.Service, "service", "http://localhost:8080/generate", "candidate generation service URL")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite dataset path (default: fixture snapshot)")
	cmd.Flags().StringSliceVar(&opts.Suites, "suite", nil, "suites to run (default: all)")
	cmd.Flags().StringVar(&opts.LogDir, "logs", "", "directory for JSON run logs")
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "concurrent cases per suite (0 = default)")
	cmd.Flags().DurationVar(&opts.GenTimeout, "gen-timeout", defaults.GenerateTimeout, "per-attempt generation timeout")
	cmd.Flags().DurationVar(&opts.ExecTimeout, "exec-timeout", defaults.ExecuteTimeout, "query execution timeout")

	return cmd
}

func runEval(rootOpts *RootOptions, opts *evalOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    rootOpts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   rootOpts.Verbose,
	}

	g, err := loadGrammar(rootOpts)
	if err != nil {
		return err
	}

	dbPath := opts.Database
	if dbPath == "" {
		dir, err := os.MkdirTemp("", "fenceql-eval-*")
		if err != nil {
			return WrapExitError(ExitCommandError, "create fixture dir", err)
		}
		defer os.RemoveAll(dir)
		dbPath = filepath.Join(dir, "fixture.db")
		if err := gateway.CreateFixture(dbPath, gateway.DefaultFixture()); err != nil {
			return WrapExitError(ExitCommandError, "create fixture dataset", err)
		}
		formatter.VerboseLog("fixture snapshot at %s", dbPath)
	}

	db, err := gateway.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "open dataset", err)
	}
	defer db.Close()

	engOpts := engine.DefaultOptions()
	engOpts.GenerateTimeout = opts.GenTimeout
	engOpts.ExecuteTimeout = opts.ExecTimeout
	logger := newLogger(rootOpts)
	eng := engine.New(g, generate.NewHTTPGenerator(opts.Service), db, engOpts, logger)

	suites, err := selectSuites(g, db, opts.Suites)
	if err != nil {
		return err
	}

	runner := harness.NewRunner(eng, g, opts.Workers, logger)
	report, err := runner.RunAll(cmd.Context(), suites...)
	if err != nil {
		return WrapExitError(ExitCommandError, "run suites", err)
	}

	if rootOpts.Format == "json" {
		if err := formatter.Success(report); err != nil {
			return err
		}
	} else {
		harness.PrintReport(formatter.Writer, report)
	}

	if opts.LogDir != "" {
		if err := harness.WriteLogs(opts.LogDir, report); err != nil {
			return WrapExitError(ExitCommandError, "write logs", err)
		}
		formatter.VerboseLog("logs written to %s", opts.LogDir)
	}

	if !report.AllPassed() {
		return NewExitError(ExitFailure,
			fmt.Sprintf("%d of %d case(s) failed", report.Overall.Failed, report.Overall.Total))
	}
	return nil
}

// selectSuites resolves the requested suite names, defaulting to all four.
func selectSuites(g *grammar.Grammar, db gateway.Executor, names []string) ([]harness.Suite, error) {
	all := []harness.Suite{
		harness.NewGrammarValiditySuite(),
		harness.NewSemanticSuite(db),
		harness.NewSafetySuite(g),
		harness.NewRobustnessSuite(),
	}
	if len(names) == 0 {
		return all, nil
	}

	byName := make(map[string]harness.Suite, len(all))
	for _, s := range all {
		byName[s.Name()] = s
	}
	var selected []harness.Suite
	for _, name := range names {
		s, ok := byName[name]
		if !ok {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("unknown suite %q", name))
		}
		selected = append(selected, s)
	}
	return selected, nil
}
