package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/fenceql/fenceql/internal/engine"
	"github.com/fenceql/fenceql/internal/gateway"
	"github.com/fenceql/fenceql/internal/generate"
)

// askOptions holds flags for the ask command.
type askOptions struct {
	Service        string
	Database       string
	MaxRetries     int
	GenTimeout     time.Duration
	ExecTimeout    time.Duration
	FeedbackOnFail bool
}

// NewAskCommand creates the ask command.
func NewAskCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Compile a question into SQL and execute it",
		Long: `Compile a natural-language question into a grammar-valid SQL query,
execute it against the read-only dataset, and print the result.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(rootOpts, opts, args[0], cmd)
		},
	}

	defaults := engine.DefaultOptions()
	cmd.Flags().StringVar(&opts.Service, "service", "http://localhost:8080/generate", "candidate generation service URL")
	cmd.Flags().StringVar(&opts.Database, "db", "", "SQLite dataset path (required)")
	cmd.Flags().IntVar(&opts.MaxRetries, "retries", defaults.MaxRetries, "regeneration attempts after a grammar rejection")
	cmd.Flags().DurationVar(&opts.GenTimeout, "gen-timeout", defaults.GenerateTimeout, "per-attempt generation timeout")
	cmd.Flags().DurationVar(&opts.ExecTimeout, "exec-timeout", defaults.ExecuteTimeout, "query execution timeout")
	cmd.Flags().BoolVar(&opts.FeedbackOnFail, "feedback", defaults.FeedbackOnReject, "send rejection diagnostics back on retry")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runAsk(rootOpts *RootOptions, opts *askOptions, question string, cmd *cobra.Command) error {
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

	db, err := gateway.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "open dataset", err)
	}
	defer db.Close()

	eng := engine.New(g, generate.NewHTTPGenerator(opts.Service), db, engine.Options{
		MaxRetries:       opts.MaxRetries,
		GenerateTimeout:  opts.GenTimeout,
		ExecuteTimeout:   opts.ExecTimeout,
		FeedbackOnReject: opts.FeedbackOnFail,
	}, newLogger(rootOpts))

	formatter.VerboseLog("asking: %s", question)
	resp := eng.Ask(cmd.Context(), question)

	if !resp.Success {
		_ = formatter.Error(string(resp.Err.Code), resp.Err.Message, resp.Err.Detail)
		return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", resp.Err.Code, resp.Err.Message))
	}

	if rootOpts.Format == "json" {
		return formatter.Success(resp)
	}
	return printResult(formatter, resp)
}

// printResult renders the SQL and the result rows as text.
func printResult(formatter *OutputFormatter, resp *engine.Response) error {
	fmt.Fprintf(formatter.Writer, "sql: %s\n\n", resp.SQL)
	fmt.Fprintln(formatter.Writer, strings.Join(resp.Result.Columns, "\t"))
	for _, row := range resp.Result.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = fmt.Sprint(cell)
		}
		fmt.Fprintln(formatter.Writer, strings.Join(cells, "\t"))
	}
	fmt.Fprintf(formatter.Writer, "\n%d row(s) in %s\n", resp.Result.RowCount, resp.Result.Elapsed)
	return nil
}
