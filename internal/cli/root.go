// Package cli wires the query compiler, grammar tools, and evaluation
// harness into the fenceql command.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fenceql/fenceql/internal/grammar"
	"github.com/fenceql/fenceql/internal/schema"
)

// RootOptions holds global flags shared by all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Schema  string // optional CUE schema file; empty selects the built-in table
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the fenceql CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "fenceql",
		Short: "fenceql - grammar-fenced natural language querying",
		Long:  "Compiles natural-language questions into SQL confined by a context-free grammar.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Schema, "schema", "", "CUE schema file (default: built-in Transactions table)")

	cmd.AddCommand(NewAskCommand(opts))
	cmd.AddCommand(NewGrammarCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))

	return cmd
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadGrammar resolves the schema (CUE file or built-in) and builds the
// grammar from it.
func loadGrammar(opts *RootOptions) (*grammar.Grammar, error) {
	table := schema.Transactions()
	if opts.Schema != "" {
		loaded, err := schema.LoadFile(opts.Schema)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "load schema", err)
		}
		table = loaded
	}
	g, err := grammar.Build(table)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "build grammar", err)
	}
	return g, nil
}

// newLogger builds the slog logger for a command run. Quiet by default,
// debug level in verbose mode.
func newLogger(opts *RootOptions) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
