package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/tardisdcr/tardis/internal/store"
)

// TraceResult lists either sessions or the firings of one session.
type TraceResult struct {
	Sessions []SessionRow `json:"sessions,omitempty"`
	Firings  []FiringRow  `json:"firings,omitempty"`
}

// SessionRow is one session in trace output.
type SessionRow struct {
	Token     string `json:"token"`
	GraphHash string `json:"graphHash"`
	CreatedAt string `json:"createdAt"`
}

// FiringRow is one firing in trace output.
type FiringRow struct {
	Seq     int64  `json:"seq"`
	EventID string `json:"eventId"`
}

// NewTraceCommand creates the trace command: inspect the firing log.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:           "trace [session]",
		Short:         "List recorded sessions, or the firings of one session",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := ""
			if len(args) == 1 {
				session = args[0]
			}
			return runTrace(rootOpts, session, dbPath, cmd)
		},
	}

	cmd.Flags().StringVar(&dbPath, "db", "tardis.db", "firing log database path")
	return cmd
}

func runTrace(opts *RootOptions, session, dbPath string, cmd *cobra.Command) error {
	formatter := formatterFor(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	ctx := cmd.Context()

	db, err := store.Open(dbPath)
	if err != nil {
		formatter.Error(CodeIOError, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "open firing log", Err: err}
	}
	defer db.Close()

	if session == "" {
		sessions, err := db.Sessions(ctx)
		if err != nil {
			formatter.Error(CodeIOError, err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "list sessions", Err: err}
		}
		result := TraceResult{}
		var lines []string
		for _, s := range sessions {
			result.Sessions = append(result.Sessions, SessionRow{
				Token:     s.Token,
				GraphHash: s.GraphHash,
				CreatedAt: s.CreatedAt,
			})
			lines = append(lines, fmt.Sprintf("%s  %s  %s", s.Token, s.CreatedAt, s.GraphHash))
		}
		if len(lines) == 0 {
			lines = []string{"no sessions recorded"}
		}
		return formatter.SuccessText(strings.Join(lines, "\n"), result)
	}

	if _, err := db.ReadSession(ctx, session); err != nil {
		formatter.Error(CodeIOError, err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "read session", Err: err}
	}
	firings, err := db.ReadFirings(ctx, session)
	if err != nil {
		formatter.Error(CodeIOError, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "read firings", Err: err}
	}

	result := TraceResult{}
	var lines []string
	for _, f := range firings {
		result.Firings = append(result.Firings, FiringRow{Seq: f.Seq, EventID: f.EventID})
		lines = append(lines, fmt.Sprintf("%4d  %s", f.Seq, f.EventID))
	}
	if len(lines) == 0 {
		lines = []string{"no firings recorded"}
	}
	return formatter.SuccessText(strings.Join(lines, "\n"), result)
}
