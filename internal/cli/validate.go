package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// validationResult is the JSON shape for validate output.
type validationResult struct {
	Valid    bool     `json:"valid"`
	Position int      `json:"position,omitempty"`
	Got      string   `json:"got,omitempty"`
	Expected []string `json:"expected,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <sql>",
		Short: "Check a candidate query against the grammar",
		Long: `Run the grammar validator standalone over a candidate query string.
Prints acceptance, or the rejection position with the expected token set.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(rootOpts *RootOptions, candidate string, cmd *cobra.Command) error {
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

	tree, rej := g.Validate(candidate)
	if rej != nil {
		result := validationResult{
			Valid:    false,
			Position: rej.Pos,
			Got:      rej.Got,
			Expected: rej.Expected,
			Message:  rej.Message,
		}
		if rootOpts.Format == "json" {
			_ = formatter.Error("GRAMMAR_REJECTED", rej.Error(), result)
		} else {
			fmt.Fprintln(formatter.Writer, "✗ rejected")
			fmt.Fprintf(formatter.Writer, "  position: %d\n", rej.Pos)
			if rej.Got != "" {
				fmt.Fprintf(formatter.Writer, "  got:      %q\n", rej.Got)
			}
			if len(rej.Expected) > 0 {
				fmt.Fprintf(formatter.Writer, "  expected: %s\n", strings.Join(rej.Expected, ", "))
			}
		}
		return NewExitError(ExitFailure, "candidate rejected")
	}

	if rootOpts.Format == "json" {
		return formatter.Success(validationResult{Valid: true})
	}
	fmt.Fprintln(formatter.Writer, "✓ accepted")
	formatter.VerboseLog("parse tree spans %d terminal(s)", len(tree.Terminals()))
	return nil
}
