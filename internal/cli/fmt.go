package cli

import (
	"errors"
	"os"

	"github.com/spf13/cobra"

	"github.com/tardisdcr/tardis/internal/lang"
)

// NewFmtCommand creates the fmt command: parse a source file and print
// its canonical serialization.
func NewFmtCommand(rootOpts *RootOptions) *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:           "fmt <file.tardisdcr>",
		Short:         "Reformat a choreography source file",
		Long:          "Parse a choreography and print its canonical form. Scope-endpoint relations are expanded to leaf events.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFmt(rootOpts, args[0], write, cmd)
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "rewrite the file in place instead of printing")
	return cmd
}

func runFmt(opts *RootOptions, path string, write bool, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	data, err := os.ReadFile(path)
	if err != nil {
		formatter.Error(CodeIOError, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "read source", Err: err}
	}

	g, err := lang.Parse(string(data))
	if err != nil {
		var pe *lang.ParseError
		if errors.As(err, &pe) {
			formatter.Error(CodeParseError, pe.Error(), map[string]any{"line": pe.Line})
		} else {
			formatter.Error(CodeParseError, err.Error(), nil)
		}
		return &ExitError{Code: ExitFailure, Message: "parse source", Err: err}
	}

	out, err := lang.Serialize(g)
	if err != nil {
		formatter.Error(CodeParseError, err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "serialize", Err: err}
	}

	if write {
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			formatter.Error(CodeIOError, err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "write source", Err: err}
		}
		formatter.VerboseLog("rewrote %s", path)
		return nil
	}
	return formatter.SuccessText(out, map[string]string{"formatted": out})
}
