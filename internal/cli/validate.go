package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tardisdcr/tardis/internal/lang"
	"github.com/tardisdcr/tardis/internal/scopes"
)

// ValidationResult holds the outcome of validating one file.
type ValidationResult struct {
	Valid     bool   `json:"valid"`
	Events    int    `json:"events"`
	Relations int    `json:"relations"`
	Scopes    int    `json:"scopes"`
	Line      int    `json:"line,omitempty"`
	Reason    string `json:"reason,omitempty"`
}

// NewValidateCommand creates the validate command: parse a source or
// project file and check the scope tree without producing output.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "validate <file>",
		Short:         "Validate a choreography source or project file",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	g, err := loadGraph(path)
	if err != nil {
		result := ValidationResult{Reason: err.Error()}
		var pe *lang.ParseError
		if errors.As(err, &pe) {
			result.Line = pe.Line
			result.Reason = pe.Reason
		}
		formatter.Error(CodeParseError, err.Error(), result)
		return &ExitError{Code: ExitFailure, Message: "validate", Err: err}
	}

	if _, err := scopes.Build(g); err != nil {
		formatter.Error(CodeParseError, err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "validate", Err: err}
	}

	result := ValidationResult{
		Valid:     true,
		Events:    len(g.Events),
		Relations: len(g.Relations),
		Scopes:    len(g.Scopes),
	}
	text := fmt.Sprintf("%s: valid (%d events, %d relations, %d scopes)",
		path, result.Events, result.Relations, result.Scopes)
	return formatter.SuccessText(text, result)
}
