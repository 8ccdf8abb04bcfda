package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tardisdcr/tardis/internal/remote"
)

// CompileResult summarizes a remote compile round trip.
type CompileResult struct {
	Projections []ProjectionRow `json:"projections,omitempty"`
	Failures    []FailureRow    `json:"failures,omitempty"`
}

// ProjectionRow is one per-role projection in compile output.
type ProjectionRow struct {
	Role      string `json:"role"`
	Events    int    `json:"events"`
	Relations int    `json:"relations"`
}

// FailureRow is one compile failure frame in compile output.
type FailureRow struct {
	Message string       `json:"message"`
	Span    *remote.Span `json:"span,omitempty"`
}

// NewCompileCommand creates the compile command: submit source to the
// compile service and wait for per-role projections.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	var server string

	cmd := &cobra.Command{
		Use:           "compile <file.tardisdcr>",
		Short:         "Compile a choreography into per-role projections",
		Long:          "Submit source text to the compile service and await the per-role projections. Compile errors are printed as diagnostics, not process failures.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(rootOpts, args[0], server, cmd)
		},
	}

	cmd.Flags().StringVar(&server, "server", "http://localhost:8090", "compile service base URL")
	return cmd
}

func runCompile(opts *RootOptions, path, server string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	source, err := os.ReadFile(path)
	if err != nil {
		formatter.Error(CodeIOError, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "read source", Err: err}
	}

	client := remote.NewClient(server)
	defer client.Close()

	if err := client.Submit(ctx, string(source)); err != nil {
		formatter.Error(CodeCompileError, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "submit compile", Err: err}
	}
	formatter.VerboseLog("submitted %d bytes to %s", len(source), server)

	results, err := client.Await(ctx)
	if err != nil {
		formatter.Error(CodeCompileError, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "await compile", Err: err}
	}

	var out CompileResult
	var lines []string
	for _, res := range results {
		switch r := res.(type) {
		case remote.Projection:
			out.Projections = append(out.Projections, ProjectionRow{
				Role:      r.Role,
				Events:    len(r.Graph.Events),
				Relations: len(r.Graph.Relations),
			})
			lines = append(lines, fmt.Sprintf("%s: %d events, %d relations",
				r.Role, len(r.Graph.Events), len(r.Graph.Relations)))
		case remote.CompileFailure:
			for _, frame := range r.StackTrace {
				out.Failures = append(out.Failures, FailureRow{
					Message: frame.Message,
					Span:    frame.Location,
				})
				if frame.Location != nil {
					lines = append(lines, fmt.Sprintf("error %d:%d: %s",
						frame.Location.From.Line, frame.Location.From.Column, frame.Message))
				} else {
					lines = append(lines, "error: "+frame.Message)
				}
			}
		}
	}

	if len(out.Failures) > 0 {
		formatter.Error(CodeCompileError, strings.Join(lines, "\n"), out)
		return &ExitError{Code: ExitFailure, Message: "compile reported errors"}
	}
	return formatter.SuccessText(strings.Join(lines, "\n"), out)
}
