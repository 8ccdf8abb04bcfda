package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddEvent_AssignsAllocatorIDAndDefaultMarking(t *testing.T) {
	g := New()

	id, err := g.AddEvent(EventSpec{Label: "submit", Name: "Submit report"})
	require.NoError(t, err)
	assert.Equal(t, "e0", id)

	ev, ok := g.EventByID("e0")
	require.True(t, ok)
	assert.Equal(t, EventInput, ev.Kind)
	assert.Equal(t, UnitType{}, ev.ValueType)
	assert.Equal(t, Marking{Included: true, Pending: false}, ev.Marking)
}

func TestAddEvent_DuplicateLabelInScopeRejected(t *testing.T) {
	g := New()
	_, err := g.AddEvent(EventSpec{Label: "submit"})
	require.NoError(t, err)

	_, err = g.AddEvent(EventSpec{Label: "submit"})
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonDuplicateLabel, rej.Reason)

	// The rejected allocation must not burn a suffix.
	id, err := g.AddEvent(EventSpec{Label: "accept"})
	require.NoError(t, err)
	assert.Equal(t, "e1", id)
}

func TestAddEvent_SameLabelInDifferentScopesAllowed(t *testing.T) {
	g := New()
	sub, err := g.AddSubprocess(GlobalScope)
	require.NoError(t, err)

	_, err = g.AddEvent(EventSpec{Label: "submit"})
	require.NoError(t, err)
	_, err = g.AddEvent(EventSpec{Scope: sub, Label: "submit"})
	assert.NoError(t, err)
}

func TestRemoveEvent_ReleasesSuffixAndDropsRelations(t *testing.T) {
	g := New()
	a, _ := g.AddEvent(EventSpec{Label: "a"})
	b, _ := g.AddEvent(EventSpec{Label: "b"})
	_, err := g.AddRelation(Condition, a, b, "")
	require.NoError(t, err)

	require.NoError(t, g.RemoveEvent(a))

	assert.Empty(t, g.Relations)
	// Freed suffix 0 is reused before the frontier.
	id, err := g.AddEvent(EventSpec{Label: "c"})
	require.NoError(t, err)
	assert.Equal(t, "e0", id)
}

func TestAddRelation_DuplicateKindRejected(t *testing.T) {
	g := New()
	a, _ := g.AddEvent(EventSpec{Label: "a"})
	b, _ := g.AddEvent(EventSpec{Label: "b"})

	_, err := g.AddRelation(Condition, a, b, "")
	require.NoError(t, err)

	_, err = g.AddRelation(Condition, a, b, "")
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonDuplicateRelation, rej.Reason)
	assert.Len(t, g.Relations, 1)

	// Same pair, different kind is fine.
	_, err = g.AddRelation(Response, a, b, "")
	assert.NoError(t, err)
}

func TestAddRelation_SelfRelationOnlyExcludeAndResponse(t *testing.T) {
	cases := []struct {
		kind RelationKind
		ok   bool
	}{
		{Exclude, true},
		{Response, true},
		{Condition, false},
		{Include, false},
		{Milestone, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.kind), func(t *testing.T) {
			g := New()
			a, _ := g.AddEvent(EventSpec{Label: "a"})

			_, err := g.AddRelation(tc.kind, a, a, "")
			if tc.ok {
				assert.NoError(t, err)
			} else {
				var rej *RejectionError
				require.ErrorAs(t, err, &rej)
				assert.Equal(t, ReasonSelfRelation, rej.Reason)
			}
		})
	}
}

func TestAddRelation_SpawnTargetMustBeSubprocess(t *testing.T) {
	g := New()
	a, _ := g.AddEvent(EventSpec{Label: "a"})
	nest, _ := g.AddNest(GlobalScope, Group)
	sub, _ := g.AddSubprocess(GlobalScope)

	_, err := g.AddRelation(Spawn, a, nest, "")
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonSpawnTarget, rej.Reason)
	assert.Empty(t, g.Relations)

	_, err = g.AddRelation(Spawn, a, sub, "")
	assert.NoError(t, err)
}

func TestAddRelation_SpawnCannotCarryGuard(t *testing.T) {
	g := New()
	a, _ := g.AddEvent(EventSpec{Label: "a"})
	sub, _ := g.AddSubprocess(GlobalScope)

	_, err := g.AddRelation(Spawn, a, sub, "x > 1")
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonGuardOnSpawn, rej.Reason)
}

func TestAddRelation_ScopeEndpointsAllowed(t *testing.T) {
	g := New()
	a, _ := g.AddEvent(EventSpec{Label: "a"})
	sub, _ := g.AddSubprocess(GlobalScope)

	// Conditions may target whole scopes; the serializer expands them.
	_, err := g.AddRelation(Condition, a, sub, "")
	assert.NoError(t, err)
}

func TestConvertScope_KeepsNumeralAcrossAllocators(t *testing.T) {
	g := New()
	nest, err := g.AddNest(GlobalScope, Group)
	require.NoError(t, err)
	require.Equal(t, "n0", nest)
	_, err = g.AddEvent(EventSpec{Scope: nest, Label: "inner"})
	require.NoError(t, err)

	converted, err := g.ConvertScope(nest)
	require.NoError(t, err)
	assert.Equal(t, "s0", converted)

	sc, ok := g.ScopeByID("s0")
	require.True(t, ok)
	assert.Equal(t, Subprocess, sc.Kind)

	ev, ok := g.EventByLabel("inner")
	require.True(t, ok)
	assert.Equal(t, "s0", ev.Scope)

	// n0 is free again, the next subprocess skips the claimed 0.
	nextNest, _ := g.AddNest(GlobalScope, Group)
	assert.Equal(t, "n0", nextNest)
	nextSub, _ := g.AddSubprocess(GlobalScope)
	assert.Equal(t, "s1", nextSub)
}

func TestConvertScope_RejectsWhenNumeralTakenOnOtherSide(t *testing.T) {
	g := New()
	for i := 0; i < 4; i++ {
		_, err := g.AddSubprocess(GlobalScope)
		require.NoError(t, err)
		_, err = g.AddNest(GlobalScope, Group)
		require.NoError(t, err)
	}

	// s3 already exists, so n3 cannot become a subprocess.
	_, err := g.ConvertScope("n3")
	var rej *RejectionError
	require.ErrorAs(t, err, &rej)
	assert.Equal(t, ReasonIDTaken, rej.Reason)
	assert.Equal(t, "s3", rej.Entity)

	// The graph is untouched: n3 is still a nest and s3 is unique.
	sc, ok := g.ScopeByID("n3")
	require.True(t, ok)
	assert.Equal(t, Nest, sc.Kind)
	count := 0
	for _, s := range g.Scopes {
		if s.ID == "s3" {
			count++
		}
	}
	assert.Equal(t, 1, count)
	assert.Empty(t, g.NestAlloc.Pool())
	assert.Empty(t, g.SubAlloc.Pool())
}

func TestRemoveScope_Recursive(t *testing.T) {
	g := New()
	sub, _ := g.AddSubprocess(GlobalScope)
	inner, _ := g.AddNest(sub, Group)
	_, err := g.AddEvent(EventSpec{Scope: inner, Label: "deep"})
	require.NoError(t, err)
	outside, _ := g.AddEvent(EventSpec{Label: "out"})
	_, err = g.AddRelation(Spawn, outside, sub, "")
	require.NoError(t, err)

	require.NoError(t, g.RemoveScope(sub))

	assert.Empty(t, g.Scopes)
	assert.Empty(t, g.Relations)
	require.Len(t, g.Events, 1)
	assert.Equal(t, outside, g.Events[0].ID)

	// Freed scope suffixes are reused smallest-first.
	id, _ := g.AddSubprocess(GlobalScope)
	assert.Equal(t, "s0", id)
}

func TestBatch_ErrorLeavesOriginalUntouched(t *testing.T) {
	g := New()
	_, err := g.AddEvent(EventSpec{Label: "a"})
	require.NoError(t, err)

	got, err := g.Batch(func(c *Graph) error {
		if _, err := c.AddEvent(EventSpec{Label: "b"}); err != nil {
			return err
		}
		// Second add with the same label fails the whole batch.
		_, err := c.AddEvent(EventSpec{Label: "b"})
		return err
	})

	require.Error(t, err)
	assert.Same(t, g, got)
	assert.Len(t, g.Events, 1)
}

func TestBatch_SuccessReturnsNewValue(t *testing.T) {
	g := New()

	got, err := g.Batch(func(c *Graph) error {
		_, err := c.AddEvent(EventSpec{Label: "a"})
		return err
	})

	require.NoError(t, err)
	assert.NotSame(t, g, got)
	assert.Empty(t, g.Events)
	assert.Len(t, got.Events, 1)
}

func TestHash_StableUnderReordering(t *testing.T) {
	build := func(order []string) *Graph {
		g := New()
		a, _ := g.AddEvent(EventSpec{Label: "a"})
		b, _ := g.AddEvent(EventSpec{Label: "b"})
		for _, kind := range order {
			_, err := g.AddRelation(RelationKind(kind), a, b, "")
			require.NoError(t, err)
		}
		return g
	}

	h1, err := build([]string{"condition", "response"}).Hash()
	require.NoError(t, err)
	h2, err := build([]string{"response", "condition"}).Hash()
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
}

func TestHash_SensitiveToMarking(t *testing.T) {
	g := New()
	_, err := g.AddEvent(EventSpec{Label: "a"})
	require.NoError(t, err)
	h1, err := g.Hash()
	require.NoError(t, err)

	ev, _ := g.EventByID("e0")
	ev.Marking.Pending = true
	h2, err := g.Hash()
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
}
