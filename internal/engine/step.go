package engine

import (
	"fmt"

	"github.com/tardisdcr/tardis/internal/model"
	"github.com/tardisdcr/tardis/internal/scopes"
)

// NotExecutableError reports an attempt to fire an event that the current
// marking does not allow.
type NotExecutableError struct {
	Event string
}

func (e *NotExecutableError) Error() string {
	return fmt.Sprintf("event %s is not executable", e.Event)
}

// Step fires one event and returns the next marking. The input state is
// never mutated. Firing applies the direct relation effects of every
// relation leaving the fired event, then the two closure passes: spawned
// subprocesses reveal their children, and milestone counts are recomputed
// globally before executability is refreshed.
func Step(ix *scopes.Index, st State, eventID string) (State, error) {
	if _, ok := ix.Event(eventID); !ok {
		return State{}, fmt.Errorf("step: unknown event %s", eventID)
	}
	if !st.Events[eventID].Executable {
		return State{}, &NotExecutableError{Event: eventID}
	}

	next := st.Clone()

	x := next.Events[eventID]
	x.Executed = true
	x.Pending = false
	next.Events[eventID] = x

	for _, e := range expand(ix) {
		if e.source != eventID {
			continue
		}
		switch e.kind {
		case model.Response:
			t := next.Events[e.target]
			t.Pending = true
			next.Events[e.target] = t
		case model.Include:
			t := next.Events[e.target]
			t.Included = true
			next.Events[e.target] = t
		case model.Exclude:
			t := next.Events[e.target]
			t.Included = false
			next.Events[e.target] = t
		case model.Spawn:
			next.Spawned[e.target] = true
		case model.Condition, model.Milestone:
			// No direct state change; both act through the blocking
			// counts recomputed below.
		}
	}

	// Closure: spawn reveal is implicit in Visible; the global recount
	// refreshes every event's executability from the new marking.
	refreshExecutability(ix, &next)
	return next, nil
}
