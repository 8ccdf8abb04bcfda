package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tardisdcr/tardis/internal/engine"
	"github.com/tardisdcr/tardis/internal/scopes"
	"github.com/tardisdcr/tardis/internal/store"
)

// SimResult is the outcome of a simulation run.
type SimResult struct {
	Session    string          `json:"session"`
	Fired      []string        `json:"fired"`
	Executable []string        `json:"executable"`
	Events     []EventStateRow `json:"events"`
}

// EventStateRow is one event's marking in command output.
type EventStateRow struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	Included   bool   `json:"included"`
	Pending    bool   `json:"pending"`
	Executable bool   `json:"executable"`
	Executed   bool   `json:"executed"`
}

// NewSimCommand creates the sim command: fire a sequence of events
// against a choreography and print the resulting marking.
func NewSimCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "sim <file> [event...]",
		Short:         "Simulate a choreography by firing events in order",
		Long:          "Load a choreography, fire the named events (labels or ids) in order and print the final marking. With --db, the session and every firing are recorded for later replay.",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSim(rootOpts, args[0], args[1:], dbPath, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "", "firing log database path (sessions become replayable)")
	return cmd
}

func runSim(opts *RootOptions, path string, events []string, dbPath string, cmd *cobra.Command) error {
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

	var simOpts []engine.Option
	if dbPath != "" {
		db, err := store.Open(dbPath)
		if err != nil {
			formatter.Error(CodeIOError, err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "open firing log", Err: err}
		}
		defer db.Close()
		simOpts = append(simOpts, engine.WithStore(db))
	}

	sim, err := engine.NewSimulation(ctx, ix, simOpts...)
	if err != nil {
		formatter.Error(CodeSimError, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "start simulation", Err: err}
	}

	var fired []string
	for _, name := range events {
		id := name
		if ev, ok := ix.ResolveAnywhere(name); ok {
			id = ev.ID
		}
		if err := sim.Fire(ctx, id); err != nil {
			formatter.Error(CodeSimError, fmt.Sprintf("fire %s: %v", name, err),
				map[string]any{"fired": fired})
			return &ExitError{Code: ExitFailure, Message: "fire event", Err: err}
		}
		fired = append(fired, id)
		formatter.VerboseLog("fired %s", id)
	}

	result := SimResult{
		Session:    sim.Session(),
		Fired:      fired,
		Executable: sim.Executable(),
		Events:     stateRows(ix, sim.State()),
	}
	return formatter.SuccessText(renderStateText(result), result)
}

func stateRows(ix *scopes.Index, st engine.State) []EventStateRow {
	g := ix.Graph()
	rows := make([]EventStateRow, 0, len(g.Events))
	for i := range g.Events {
		ev := &g.Events[i]
		es := st.Events[ev.ID]
		rows = append(rows, EventStateRow{
			ID:         ev.ID,
			Label:      ev.Label,
			Included:   es.Included,
			Pending:    es.Pending,
			Executable: es.Executable,
			Executed:   es.Executed,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })
	return rows
}

func renderStateText(res SimResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "session %s\n", res.Session)
	for _, row := range res.Events {
		flags := make([]string, 0, 4)
		if row.Included {
			flags = append(flags, "included")
		}
		if row.Pending {
			flags = append(flags, "pending")
		}
		if row.Executable {
			flags = append(flags, "executable")
		}
		if row.Executed {
			flags = append(flags, "executed")
		}
		fmt.Fprintf(&b, "%s (%s): %s\n", row.ID, row.Label, strings.Join(flags, ", "))
	}
	fmt.Fprintf(&b, "executable: %s", strings.Join(res.Executable, ", "))
	return b.String()
}
