package harness

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tardisdcr/tardis/internal/engine"
	"github.com/tardisdcr/tardis/internal/lang"
	"github.com/tardisdcr/tardis/internal/scopes"
)

// markingSnapshot is the golden-file shape: one entry per event keyed by
// label, field order fixed by JSON struct tags.
type markingSnapshot struct {
	Scenario string             `json:"scenario"`
	Fired    []string           `json:"fired"`
	Events   []eventMarkingJSON `json:"events"`
}

type eventMarkingJSON struct {
	Label      string `json:"label"`
	ID         string `json:"id"`
	Included   bool   `json:"included"`
	Pending    bool   `json:"pending"`
	Executable bool   `json:"executable"`
	Executed   bool   `json:"executed"`
}

// Run executes one scenario file and compares the final marking against
// the scenario's expectations and its golden snapshot.
func Run(t *testing.T, scenarioPath string) {
	t.Helper()

	sc, err := LoadScenario(scenarioPath)
	require.NoError(t, err)

	source, err := os.ReadFile(filepath.Join(filepath.Dir(scenarioPath), sc.Source))
	require.NoError(t, err)

	g, err := lang.Parse(string(source))
	require.NoError(t, err)
	ix, err := scopes.Build(g)
	require.NoError(t, err)

	st := engine.Initial(ix)
	var fired []string
	for i, step := range sc.Fire {
		ev, ok := ix.ResolveAnywhere(step.Event)
		require.True(t, ok, "fire step %d: no event labelled %q", i, step.Event)

		next, err := engine.Step(ix, st, ev.ID)
		if step.Reject {
			var nx *engine.NotExecutableError
			require.True(t, errors.As(err, &nx),
				"fire step %d: expected %q to be refused, got err=%v", i, step.Event, err)
			continue
		}
		require.NoError(t, err, "fire step %d: %q", i, step.Event)
		st = next
		fired = append(fired, step.Event)
	}

	for label, want := range sc.Expect {
		ev, ok := ix.ResolveAnywhere(label)
		require.True(t, ok, "expect: no event labelled %q", label)
		got := st.Events[ev.ID]
		assert.Equal(t, want, ExpectedMarking{
			Included:   got.Included,
			Pending:    got.Pending,
			Executable: got.Executable,
			Executed:   got.Executed,
		}, "marking of %q", label)
	}

	snap := snapshot(sc.Name, fired, ix, st)
	data, err := json.MarshalIndent(snap, "", "  ")
	require.NoError(t, err)

	gold := goldie.New(t, goldie.WithFixtureDir(filepath.Join(filepath.Dir(scenarioPath), "..", "golden")))
	gold.Assert(t, sc.Name, data)
}

func snapshot(name string, fired []string, ix *scopes.Index, st engine.State) markingSnapshot {
	snap := markingSnapshot{Scenario: name, Fired: fired}
	g := ix.Graph()
	for i := range g.Events {
		ev := &g.Events[i]
		es := st.Events[ev.ID]
		snap.Events = append(snap.Events, eventMarkingJSON{
			Label:      ev.Label,
			ID:         ev.ID,
			Included:   es.Included,
			Pending:    es.Pending,
			Executable: es.Executable,
			Executed:   es.Executed,
		})
	}
	sort.Slice(snap.Events, func(i, j int) bool { return snap.Events[i].ID < snap.Events[j].ID })
	return snap
}
