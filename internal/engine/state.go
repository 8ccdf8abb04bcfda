package engine

import (
	"sort"

	"github.com/tardisdcr/tardis/internal/model"
	"github.com/tardisdcr/tardis/internal/scopes"
)

// EventState is the full runtime marking of one event.
type EventState struct {
	Included   bool `json:"included"`
	Pending    bool `json:"pending"`
	Executable bool `json:"executable"`
	Executed   bool `json:"executed"`
}

// State is the marking of the whole graph at one instant. Values of this
// type are immutable by convention: Step returns a fresh State and never
// touches its input.
type State struct {
	Events  map[string]EventState
	Spawned map[string]bool // subprocess id -> spawned
}

// Clone returns an independent copy of the state.
func (st State) Clone() State {
	c := State{
		Events:  make(map[string]EventState, len(st.Events)),
		Spawned: make(map[string]bool, len(st.Spawned)),
	}
	for id, es := range st.Events {
		c.Events[id] = es
	}
	for id, sp := range st.Spawned {
		c.Spawned[id] = sp
	}
	return c
}

// Executable returns the ids of currently executable events, sorted.
func (st State) Executable() []string {
	var out []string
	for id, es := range st.Events {
		if es.Executable {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// Visible reports whether an event is visible: every subprocess on its
// ancestor chain must have been spawned. Children of an unspawned
// subprocess are hidden.
func Visible(ix *scopes.Index, st State, eventID string) bool {
	for _, anc := range ix.Ancestors(eventID) {
		sc, ok := ix.Scope(anc)
		if !ok {
			continue
		}
		if sc.Kind == model.Subprocess && !st.Spawned[anc] {
			return false
		}
	}
	return true
}

// Initial computes the marking on entry to simulation: included and
// pending come from the stored marking, nothing is executed, no
// subprocess is spawned, and executability follows the blocking counts.
func Initial(ix *scopes.Index) State {
	g := ix.Graph()
	st := State{
		Events:  make(map[string]EventState, len(g.Events)),
		Spawned: make(map[string]bool),
	}
	for i := range g.Events {
		ev := &g.Events[i]
		st.Events[ev.ID] = EventState{
			Included: ev.Marking.Included,
			Pending:  ev.Marking.Pending,
		}
	}
	for i := range g.Scopes {
		if g.Scopes[i].Kind == model.Subprocess {
			st.Spawned[g.Scopes[i].ID] = false
		}
	}
	refreshExecutability(ix, &st)
	return st
}

// edge is a relation expanded to event-level endpoints. Spawn edges keep
// the subprocess id as their target.
type edge struct {
	kind   model.RelationKind
	source string
	target string
}

// expand flattens every relation to event-level edges: a scope endpoint
// stands for all its leaf events, exactly as in the textual expansion.
func expand(ix *scopes.Index) []edge {
	g := ix.Graph()
	var out []edge
	for i := range g.Relations {
		r := &g.Relations[i]
		if r.Kind == model.Spawn {
			out = append(out, edge{kind: r.Kind, source: r.Source, target: r.Target})
			continue
		}
		for _, s := range endpointLeaves(ix, r.Source) {
			for _, t := range endpointLeaves(ix, r.Target) {
				out = append(out, edge{kind: r.Kind, source: s, target: t})
			}
		}
	}
	return out
}

func endpointLeaves(ix *scopes.Index, id string) []string {
	if _, ok := ix.Event(id); ok {
		return []string{id}
	}
	leaves := ix.LeafEvents(id)
	out := make([]string, len(leaves))
	for i, ev := range leaves {
		out[i] = ev.ID
	}
	return out
}

// conditions counts the incoming condition edges whose source has not yet
// executed. milestones counts the incoming milestone edges whose source is
// currently pending. Both are recomputed per refresh rather than cached:
// pending status can change anywhere in the graph on any firing.
func conditions(edges []edge, st State, target string) int {
	n := 0
	for _, e := range edges {
		if e.kind == model.Condition && e.target == target && !st.Events[e.source].Executed {
			n++
		}
	}
	return n
}

func milestones(edges []edge, st State, target string) int {
	n := 0
	for _, e := range edges {
		if e.kind == model.Milestone && e.target == target && st.Events[e.source].Pending {
			n++
		}
	}
	return n
}

// refreshExecutability runs the global closure pass: recompute the
// blocking counts for every event and refresh executability. The pass is
// idempotent; one run per firing reaches the fixpoint since only
// direct-neighbor effects plus the global pending recount are required.
func refreshExecutability(ix *scopes.Index, st *State) {
	edges := expand(ix)
	for id, es := range st.Events {
		es.Executable = es.Included &&
			Visible(ix, *st, id) &&
			conditions(edges, *st, id) == 0 &&
			milestones(edges, *st, id) == 0
		st.Events[id] = es
	}
}
