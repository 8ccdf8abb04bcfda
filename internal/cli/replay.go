package cli

import (
	"github.com/spf13/cobra"

	"github.com/tardisdcr/tardis/internal/engine"
	"github.com/tardisdcr/tardis/internal/scopes"
	"github.com/tardisdcr/tardis/internal/store"
)

// NewReplayCommand creates the replay command: reconstruct a session's
// final marking from the firing log.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "replay <file> <session>",
		Short:         "Replay a recorded session against its choreography",
		Long:          "Re-fire a session's logged events over the choreography's initial marking. The choreography must hash to the value recorded at session start.",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(rootOpts, args[0], args[1], dbPath, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "tardis.db", "firing log database path")
	return cmd
}

func runReplay(opts *RootOptions, path, session, dbPath string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	g, err := loadGraph(path)
	if err != nil {
		formatter.Error(CodeParseError, err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "load choreography", Err: err}
	}
	ix, err := scopes.Build(g)
	if err != nil {
		formatter.Error(CodeParseError, err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "index choreography", Err: err}
	}

	db, err := store.Open(dbPath)
	if err != nil {
		formatter.Error(CodeIOError, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "open firing log", Err: err}
	}
	defer db.Close()

	st, err := engine.Replay(ctx, ix, db, session)
	if err != nil {
		formatter.Error(CodeReplayError, err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "replay session", Err: err}
	}

	firings, err := db.ReadFirings(ctx, session)
	if err != nil {
		formatter.Error(CodeIOError, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "read firings", Err: err}
	}
	fired := make([]string, len(firings))
	for i, f := range firings {
		fired[i] = f.EventID
	}

	result := SimResult{
		Session:    session,
		Fired:      fired,
		Executable: st.Executable(),
		Events:     stateRows(ix, st),
	}
	return formatter.SuccessText(renderStateText(result), result)
}
