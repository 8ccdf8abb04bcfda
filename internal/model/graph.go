package model

import (
	"fmt"
	"strconv"
	"strings"
)

// Id prefixes per entity kind. The numeric suffix comes from the kind's
// allocator; conversion between nest and subprocess keeps the numeral and
// swaps the prefix.
const (
	eventPrefix      = "e"
	nestPrefix       = "n"
	subprocessPrefix = "s"
)

// Suffix splits an entity id into its prefix and numeric suffix.
func Suffix(id string) (prefix string, n int, err error) {
	i := 0
	for i < len(id) && (id[i] < '0' || id[i] > '9') {
		i++
	}
	if i == 0 || i == len(id) {
		return "", 0, fmt.Errorf("id %q has no numeric suffix", id)
	}
	n, err = strconv.Atoi(id[i:])
	if err != nil {
		return "", 0, fmt.Errorf("id %q has no numeric suffix", id)
	}
	return id[:i], n, nil
}

// RelationID derives the identity of a relation from its kind and ordered
// endpoints. The at-most-one-kind-per-pair invariant makes this unique.
func RelationID(kind RelationKind, source, target string) string {
	return strings.Join([]string{string(kind), source, target}, ":")
}

// IsValidSpawn reports whether a relation satisfies the spawn shape rule:
// non-spawn relations always do; a spawn's target must be a subprocess and
// its source an event.
func (g *Graph) IsValidSpawn(r Relation) bool {
	if r.Kind != Spawn {
		return true
	}
	if !g.IsEvent(r.Source) {
		return false
	}
	sc, ok := g.ScopeByID(r.Target)
	return ok && sc.Kind == Subprocess
}

// RelationExists reports whether a relation of the given kind already links
// the ordered (source, target) pair. Linear scan; graphs stay small.
func (g *Graph) RelationExists(source, target string, kind RelationKind) bool {
	for i := range g.Relations {
		r := &g.Relations[i]
		if r.Kind == kind && r.Source == source && r.Target == target {
			return true
		}
	}
	return false
}

// EventSpec describes a new event for AddEvent. Zero-value fields get
// defaults: kind input, unit value type, label equal to the assigned id.
type EventSpec struct {
	Scope      string
	Label      string
	Name       string
	Kind       EventKind
	ValueType  ValueType
	Expression string
	Initiators []string
	Receivers  []string
	Security   string
}

// AddEvent creates an event in the given scope with an allocator-assigned
// id and the default marking. Returns the new id.
func (g *Graph) AddEvent(spec EventSpec) (string, error) {
	const op = "add event"
	if spec.Scope != GlobalScope && !g.IsScope(spec.Scope) {
		return "", reject(op, spec.Scope, ReasonUnknownEntity)
	}
	id := eventPrefix + strconv.Itoa(g.EventAlloc.Next())
	label := spec.Label
	if label == "" {
		label = id
	}
	for i := range g.Events {
		if g.Events[i].Scope == spec.Scope && g.Events[i].Label == label {
			// Undo the allocation; the graph is unchanged on rejection.
			_, n, _ := Suffix(id)
			g.EventAlloc.Release(n)
			return "", reject(op, label, ReasonDuplicateLabel)
		}
	}
	kind := spec.Kind
	if kind == "" {
		kind = EventInput
	}
	vt := spec.ValueType
	if kind == EventInput && vt == nil {
		vt = UnitType{}
	}
	g.Events = append(g.Events, Event{
		ID:         id,
		Label:      label,
		Name:       spec.Name,
		Kind:       kind,
		ValueType:  vt,
		Expression: spec.Expression,
		Initiators: append([]string(nil), spec.Initiators...),
		Receivers:  append([]string(nil), spec.Receivers...),
		Security:   spec.Security,
		Marking:    DefaultMarking(),
		Scope:      spec.Scope,
	})
	return id, nil
}

// RemoveEvent deletes an event, every relation touching it, and returns its
// numeric suffix to the event allocator.
func (g *Graph) RemoveEvent(id string) error {
	const op = "remove event"
	idx := -1
	for i := range g.Events {
		if g.Events[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return reject(op, id, ReasonUnknownEntity)
	}
	g.Events = append(g.Events[:idx], g.Events[idx+1:]...)
	g.dropRelationsTouching(id)
	if _, n, err := Suffix(id); err == nil {
		g.EventAlloc.Release(n)
	}
	return nil
}

// AddRelation creates a relation after validating the business rules:
// endpoints must exist, at most one relation of a kind per ordered pair,
// self-relations only for exclude and response, spawn shape per
// IsValidSpawn, no guard on spawn. Returns the new relation id.
func (g *Graph) AddRelation(kind RelationKind, source, target, guard string) (string, error) {
	const op = "add relation"
	if !g.IsEvent(source) && !g.IsScope(source) {
		return "", reject(op, source, ReasonUnknownEntity)
	}
	if !g.IsEvent(target) && !g.IsScope(target) {
		return "", reject(op, target, ReasonUnknownEntity)
	}
	if source == target && kind != Exclude && kind != Response {
		return "", reject(op, source, ReasonSelfRelation)
	}
	if g.RelationExists(source, target, kind) {
		return "", reject(op, RelationID(kind, source, target), ReasonDuplicateRelation)
	}
	r := Relation{ID: RelationID(kind, source, target), Kind: kind, Source: source, Target: target, Guard: guard}
	if kind == Spawn {
		if guard != "" {
			return "", reject(op, r.ID, ReasonGuardOnSpawn)
		}
		if !g.IsEvent(source) {
			return "", reject(op, source, ReasonSpawnSource)
		}
		if !g.IsValidSpawn(r) {
			return "", reject(op, target, ReasonSpawnTarget)
		}
	}
	g.Relations = append(g.Relations, r)
	return r.ID, nil
}

// RemoveRelation deletes a relation by id.
func (g *Graph) RemoveRelation(id string) error {
	for i := range g.Relations {
		if g.Relations[i].ID == id {
			g.Relations = append(g.Relations[:i], g.Relations[i+1:]...)
			return nil
		}
	}
	return reject("remove relation", id, ReasonUnknownEntity)
}

// AddNest creates a nest scope under parent. Returns the new id.
func (g *Graph) AddNest(parent string, mode NestMode) (string, error) {
	const op = "add nest"
	if parent != GlobalScope && !g.IsScope(parent) {
		return "", reject(op, parent, ReasonUnknownEntity)
	}
	if mode == "" {
		mode = Group
	}
	id := nestPrefix + strconv.Itoa(g.NestAlloc.Next())
	g.Scopes = append(g.Scopes, Scope{ID: id, Kind: Nest, Mode: mode, Marking: DefaultMarking(), Parent: parent})
	return id, nil
}

// AddSubprocess creates a subprocess scope under parent. Returns the new id.
func (g *Graph) AddSubprocess(parent string) (string, error) {
	const op = "add subprocess"
	if parent != GlobalScope && !g.IsScope(parent) {
		return "", reject(op, parent, ReasonUnknownEntity)
	}
	id := subprocessPrefix + strconv.Itoa(g.SubAlloc.Next())
	g.Scopes = append(g.Scopes, Scope{ID: id, Kind: Subprocess, Marking: DefaultMarking(), Parent: parent})
	return id, nil
}

// RemoveScope deletes a scope together with its contained events and child
// scopes, drops every relation touching a removed entity, and releases all
// freed suffixes to their allocators.
func (g *Graph) RemoveScope(id string) error {
	const op = "remove scope"
	sc, ok := g.ScopeByID(id)
	if !ok {
		return reject(op, id, ReasonUnknownEntity)
	}
	// Children first, depth does not matter since everything under id goes.
	for _, child := range g.childScopes(sc.ID) {
		if err := g.RemoveScope(child); err != nil {
			return err
		}
	}
	for _, ev := range g.eventsIn(sc.ID) {
		if err := g.RemoveEvent(ev); err != nil {
			return err
		}
	}
	for i := range g.Scopes {
		if g.Scopes[i].ID == id {
			kind := g.Scopes[i].Kind
			g.Scopes = append(g.Scopes[:i], g.Scopes[i+1:]...)
			g.dropRelationsTouching(id)
			if _, n, err := Suffix(id); err == nil {
				switch kind {
				case Nest:
					g.NestAlloc.Release(n)
				case Subprocess:
					g.SubAlloc.Release(n)
				}
			}
			return nil
		}
	}
	return reject(op, id, ReasonUnknownEntity)
}

// ConvertScope flips a scope between nest and subprocess. The numeric
// suffix moves between the two allocators while the numeral itself is kept,
// so n3 becomes s3 and vice versa. All references to the old id are
// rewritten. Returns the new id.
func (g *Graph) ConvertScope(id string) (string, error) {
	const op = "convert scope"
	sc, ok := g.ScopeByID(id)
	if !ok {
		return "", reject(op, id, ReasonUnknownEntity)
	}
	_, n, err := Suffix(id)
	if err != nil {
		return "", reject(op, id, ReasonUnknownEntity)
	}
	var newID string
	switch sc.Kind {
	case Nest:
		newID = subprocessPrefix + strconv.Itoa(n)
	case Subprocess:
		newID = nestPrefix + strconv.Itoa(n)
	default:
		return "", reject(op, id, ReasonNotConvertible)
	}
	// The numeral may already be handed out on the other side, in which
	// case Claim would silently collide with the existing scope.
	if g.IsScope(newID) {
		return "", reject(op, newID, ReasonIDTaken)
	}
	switch sc.Kind {
	case Nest:
		g.NestAlloc.Release(n)
		g.SubAlloc.Claim(n)
		sc.Kind = Subprocess
		sc.Mode = ""
	case Subprocess:
		g.SubAlloc.Release(n)
		g.NestAlloc.Claim(n)
		sc.Kind = Nest
		sc.Mode = Group
	}
	sc.ID = newID
	g.rewriteID(id, newID)
	return newID, nil
}

// Batch applies an edit function to a clone of the graph and returns the
// clone on success. On any error the original graph is returned untouched,
// so a multi-step edit either lands whole or not at all. This replaces any
// remove-then-reinsert sequencing: all dependent recomputation happens
// synchronously inside the batch.
func (g *Graph) Batch(fn func(*Graph) error) (*Graph, error) {
	c := g.Clone()
	if err := fn(c); err != nil {
		return g, err
	}
	return c, nil
}

func (g *Graph) dropRelationsTouching(id string) {
	kept := g.Relations[:0]
	for _, r := range g.Relations {
		if r.Source != id && r.Target != id {
			kept = append(kept, r)
		}
	}
	g.Relations = kept
}

func (g *Graph) rewriteID(oldID, newID string) {
	for i := range g.Events {
		if g.Events[i].Scope == oldID {
			g.Events[i].Scope = newID
		}
	}
	for i := range g.Scopes {
		if g.Scopes[i].Parent == oldID {
			g.Scopes[i].Parent = newID
		}
	}
	for i := range g.Relations {
		r := &g.Relations[i]
		if r.Source == oldID {
			r.Source = newID
		}
		if r.Target == oldID {
			r.Target = newID
		}
		r.ID = RelationID(r.Kind, r.Source, r.Target)
	}
}

func (g *Graph) childScopes(id string) []string {
	var out []string
	for i := range g.Scopes {
		if g.Scopes[i].Parent == id {
			out = append(out, g.Scopes[i].ID)
		}
	}
	return out
}

func (g *Graph) eventsIn(scope string) []string {
	var out []string
	for i := range g.Events {
		if g.Events[i].Scope == scope {
			out = append(out, g.Events[i].ID)
		}
	}
	return out
}
