package project

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tardisdcr/tardis/internal/model"
)

func sampleGraph(t *testing.T) *model.Graph {
	t.Helper()
	g := model.New()
	g.Security = "public < secret"
	g.Roles = []model.Role{
		{Label: "Buyer", Params: []model.Param{{Name: "id", Type: "Integer"}}},
		{Label: "Seller"},
	}

	order, err := g.AddEvent(model.EventSpec{
		Label:      "order",
		Name:       "Place order",
		ValueType:  model.RecordType{Fields: []model.Field{{Name: "item", Type: "String"}, {Name: "qty", Type: "Integer"}}},
		Initiators: []string{"Buyer(#id)"},
		Receivers:  []string{"Seller"},
		Security:   "public",
	})
	require.NoError(t, err)

	sub, err := g.AddSubprocess(model.GlobalScope)
	require.NoError(t, err)
	ship, err := g.AddEvent(model.EventSpec{Scope: sub, Label: "ship"})
	require.NoError(t, err)
	ev, _ := g.EventByID(ship)
	ev.Marking = model.Marking{Included: false, Pending: true}

	nest, err := g.AddNest(model.GlobalScope, model.Choice)
	require.NoError(t, err)
	pay, err := g.AddEvent(model.EventSpec{
		Scope:      nest,
		Label:      "pay",
		Kind:       model.EventComputation,
		Expression: "total * qty",
	})
	require.NoError(t, err)

	_, err = g.AddRelation(model.Condition, order, pay, "qty > 0")
	require.NoError(t, err)
	_, err = g.AddRelation(model.Spawn, order, sub, "")
	require.NoError(t, err)
	return g
}

func TestFullRoundTrip(t *testing.T) {
	g := sampleGraph(t)

	data, err := Marshal(g, "roles; security; body")
	require.NoError(t, err)

	got, code, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, "roles; security; body", code)

	if diff := cmp.Diff(g, got, cmp.AllowUnexported(model.Allocator{})); diff != "" {
		t.Errorf("graph mismatch (-want +got):\n%s", diff)
	}
}

func TestFullRoundTripPreservesPools(t *testing.T) {
	g := sampleGraph(t)
	// Free a suffix so the pool is not just the frontier.
	require.NoError(t, g.RemoveEvent("e1"))

	data, err := Marshal(g, "")
	require.NoError(t, err)
	got, _, err := Unmarshal(data)
	require.NoError(t, err)

	assert.Equal(t, g.EventAlloc.Pool(), got.EventAlloc.Pool())

	id, err := got.AddEvent(model.EventSpec{Scope: "s0", Label: "replacement"})
	require.NoError(t, err)
	assert.Equal(t, "e1", id, "freed suffix is reused first")
}

func TestReducedRoundTripRebuildsAllocators(t *testing.T) {
	g := sampleGraph(t)

	data, err := MarshalReduced(g)
	require.NoError(t, err)
	got, code, err := Unmarshal(data)
	require.NoError(t, err)
	assert.Empty(t, code)

	// e0, e1, e2 are in use, so the next event id is e3; the single
	// nest and subprocess advance their allocators past 0.
	id, err := got.AddEvent(model.EventSpec{Label: "next"})
	require.NoError(t, err)
	assert.Equal(t, "e3", id)

	nest, err := got.AddNest(model.GlobalScope, model.Group)
	require.NoError(t, err)
	assert.Equal(t, "n1", nest)

	sub, err := got.AddSubprocess(model.GlobalScope)
	require.NoError(t, err)
	assert.Equal(t, "s1", sub)
}

func TestReducedRoundTripFillsGaps(t *testing.T) {
	g := sampleGraph(t)
	require.NoError(t, g.RemoveEvent("e1"))

	data, err := MarshalReduced(g)
	require.NoError(t, err)
	got, _, err := Unmarshal(data)
	require.NoError(t, err)

	id, err := got.AddEvent(model.EventSpec{Label: "fill"})
	require.NoError(t, err)
	assert.Equal(t, "e1", id, "reduced decode refills id gaps")
}

func TestUnmarshalRejectsUnknownTag(t *testing.T) {
	_, _, err := Unmarshal([]byte(`{
		"nodes": [{"tag": "cluster", "id": "x0"}],
		"edges": [],
		"security": "",
		"roles": []
	}`))
	assert.ErrorContains(t, err, "invalid project file")
}

func TestUnmarshalRejectsBadRelationKind(t *testing.T) {
	_, _, err := Unmarshal([]byte(`{
		"nodes": [],
		"edges": [{"id": "x", "kind": "teleport", "source": "e0", "target": "e1"}],
		"security": "",
		"roles": []
	}`))
	assert.ErrorContains(t, err, "invalid project file")
}

func TestUnmarshalRejectsMissingSections(t *testing.T) {
	_, _, err := Unmarshal([]byte(`{"nodes": []}`))
	assert.ErrorContains(t, err, "invalid project file")
}

func TestUnmarshalRejectsBrokenScopeTree(t *testing.T) {
	_, _, err := Unmarshal([]byte(`{
		"nodes": [{"tag": "subprocess", "id": "s0", "parent": "s9"}],
		"edges": [],
		"security": "",
		"roles": []
	}`))
	assert.Error(t, err)
}

func TestDecodeValueTypeTags(t *testing.T) {
	cases := []struct {
		name string
		in   *TypeRecord
		want model.ValueType
	}{
		{"nil", nil, nil},
		{"unit", &TypeRecord{Tag: "unit"}, model.UnitType{}},
		{"primitive", &TypeRecord{Tag: "primitive", Name: "Integer"}, model.PrimitiveType("Integer")},
		{"record", &TypeRecord{Tag: "record", Fields: []model.Field{{Name: "f", Type: "String"}}},
			model.RecordType{Fields: []model.Field{{Name: "f", Type: "String"}}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := decodeValueType(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
			assert.Equal(t, tc.in, encodeValueType(got))
		})
	}

	_, err := decodeValueType(&TypeRecord{Tag: "tuple"})
	assert.ErrorContains(t, err, "unknown value type tag")
}
