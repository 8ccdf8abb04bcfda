package engine

import (
	"context"
	"fmt"

	"github.com/tardisdcr/tardis/internal/scopes"
	"github.com/tardisdcr/tardis/internal/store"
)

// GraphMismatchError reports a replay attempt against a graph other than
// the one the session was recorded on.
type GraphMismatchError struct {
	Session  string
	Recorded string
	Current  string
}

func (e *GraphMismatchError) Error() string {
	return fmt.Sprintf("session %s was recorded on graph %s, not %s",
		e.Session, e.Recorded, e.Current)
}

// Replay folds a session's firing log over the graph's initial marking
// and returns the resulting state. The graph's content hash must match
// the hash pinned at session start; a changed graph makes the log
// meaningless.
func Replay(ctx context.Context, ix *scopes.Index, log *store.Store, session string) (State, error) {
	sess, err := log.ReadSession(ctx, session)
	if err != nil {
		return State{}, fmt.Errorf("replay: %w", err)
	}
	hash, err := ix.Graph().Hash()
	if err != nil {
		return State{}, fmt.Errorf("replay: %w", err)
	}
	if hash != sess.GraphHash {
		return State{}, &GraphMismatchError{
			Session:  session,
			Recorded: sess.GraphHash,
			Current:  hash,
		}
	}

	firings, err := log.ReadFirings(ctx, session)
	if err != nil {
		return State{}, fmt.Errorf("replay: %w", err)
	}

	st := Initial(ix)
	for _, f := range firings {
		st, err = Step(ix, st, f.EventID)
		if err != nil {
			return State{}, fmt.Errorf("replay seq %d: %w", f.Seq, err)
		}
	}
	return st, nil
}
