// Package scopes builds a tree view over the flat entity lists of a graph:
// which events and child scopes each scope owns, which relations it holds,
// and bottom-up label resolution matching nested-block lexical scoping.
package scopes

import (
	"fmt"

	"github.com/tardisdcr/tardis/internal/model"
)

// Index is a per-operation-batch snapshot of the scope tree. It is built
// once and then read-only; rebuilding after an edit batch is cheap at the
// graph sizes this editor works with.
type Index struct {
	graph *model.Graph

	scopeByID map[string]*model.Scope
	eventByID map[string]*model.Event

	events    map[string][]*model.Event    // scope id -> owned events
	children  map[string][]*model.Scope    // scope id -> child scopes
	relations map[string][]*model.Relation // scope id -> relations whose source it owns
	labels    map[string]map[string]*model.Event
}

// Build constructs the index. It fails if a relation endpoint or parent
// link names a missing entity, or if the parent links contain a cycle.
func Build(g *model.Graph) (*Index, error) {
	ix := &Index{
		graph:     g,
		scopeByID: make(map[string]*model.Scope, len(g.Scopes)),
		eventByID: make(map[string]*model.Event, len(g.Events)),
		events:    make(map[string][]*model.Event),
		children:  make(map[string][]*model.Scope),
		relations: make(map[string][]*model.Relation),
		labels:    make(map[string]map[string]*model.Event),
	}

	for i := range g.Scopes {
		sc := &g.Scopes[i]
		if _, dup := ix.scopeByID[sc.ID]; dup {
			return nil, fmt.Errorf("build scope index: duplicate scope id %s", sc.ID)
		}
		ix.scopeByID[sc.ID] = sc
	}
	for i := range g.Scopes {
		sc := &g.Scopes[i]
		if sc.Parent != model.GlobalScope {
			if _, ok := ix.scopeByID[sc.Parent]; !ok {
				return nil, fmt.Errorf("build scope index: scope %s has unknown parent %s", sc.ID, sc.Parent)
			}
		}
		ix.children[sc.Parent] = append(ix.children[sc.Parent], sc)
	}
	if err := ix.checkTree(); err != nil {
		return nil, err
	}

	for i := range g.Events {
		ev := &g.Events[i]
		if ev.Scope != model.GlobalScope {
			if _, ok := ix.scopeByID[ev.Scope]; !ok {
				return nil, fmt.Errorf("build scope index: event %s has unknown scope %s", ev.ID, ev.Scope)
			}
		}
		ix.eventByID[ev.ID] = ev
		ix.events[ev.Scope] = append(ix.events[ev.Scope], ev)
		if ix.labels[ev.Scope] == nil {
			ix.labels[ev.Scope] = make(map[string]*model.Event)
		}
		ix.labels[ev.Scope][ev.Label] = ev
	}

	for i := range g.Relations {
		r := &g.Relations[i]
		owner, err := ix.ownerOf(r.Source)
		if err != nil {
			return nil, fmt.Errorf("build scope index: relation %s: %w", r.ID, err)
		}
		if _, err := ix.ownerOf(r.Target); err != nil {
			return nil, fmt.Errorf("build scope index: relation %s: %w", r.ID, err)
		}
		ix.relations[owner] = append(ix.relations[owner], r)
	}

	return ix, nil
}

// checkTree verifies that no scope is its own ancestor.
func (ix *Index) checkTree() error {
	for id := range ix.scopeByID {
		seen := map[string]bool{id: true}
		cur := ix.scopeByID[id].Parent
		for cur != model.GlobalScope {
			if seen[cur] {
				return fmt.Errorf("build scope index: scope %s is its own ancestor", cur)
			}
			seen[cur] = true
			sc, ok := ix.scopeByID[cur]
			if !ok {
				break // missing parent reported elsewhere
			}
			cur = sc.Parent
		}
	}
	return nil
}

// ownerOf maps a relation endpoint to the scope that owns it: an event's
// owning scope, or a scope's parent. Cross-scope relations thus live at the
// scope owning the source endpoint.
func (ix *Index) ownerOf(id string) (string, error) {
	if ev, ok := ix.eventByID[id]; ok {
		return ev.Scope, nil
	}
	if sc, ok := ix.scopeByID[id]; ok {
		return sc.Parent, nil
	}
	return "", fmt.Errorf("endpoint %s names no event or scope", id)
}

// Graph returns the underlying graph.
func (ix *Index) Graph() *model.Graph { return ix.graph }

// Scope returns a scope by id.
func (ix *Index) Scope(id string) (*model.Scope, bool) {
	sc, ok := ix.scopeByID[id]
	return sc, ok
}

// Event returns an event by id.
func (ix *Index) Event(id string) (*model.Event, bool) {
	ev, ok := ix.eventByID[id]
	return ev, ok
}

// IsScope reports whether id names a scope.
func (ix *Index) IsScope(id string) bool {
	_, ok := ix.scopeByID[id]
	return ok
}

// Events returns the events owned directly by a scope, in insertion order.
func (ix *Index) Events(scopeID string) []*model.Event {
	return ix.events[scopeID]
}

// Children returns the direct child scopes of a scope.
func (ix *Index) Children(scopeID string) []*model.Scope {
	return ix.children[scopeID]
}

// Relations returns the relations owned by a scope (those whose source
// endpoint the scope owns).
func (ix *Index) Relations(scopeID string) []*model.Relation {
	return ix.relations[scopeID]
}

// Resolve looks a label up starting at the given scope and walking parent
// links outward, exactly like nested-block lexical scoping. The second
// result is false when no enclosing scope declares the label.
func (ix *Index) Resolve(label, scopeID string) (*model.Event, bool) {
	cur := scopeID
	for {
		if ev, ok := ix.labels[cur][label]; ok {
			return ev, true
		}
		if cur == model.GlobalScope {
			return nil, false
		}
		sc, ok := ix.scopeByID[cur]
		if !ok {
			return nil, false
		}
		cur = sc.Parent
	}
}

// ResolveAnywhere finds the first event with the given label in any scope.
// Fallback for spawn-trigger lookup when the label is not lexically
// visible from the current scope.
func (ix *Index) ResolveAnywhere(label string) (*model.Event, bool) {
	return ix.graph.EventByLabel(label)
}

// LeafEvents returns every event contained in a scope, descending through
// all nested scopes. Used by the serializer and the engine to expand
// relations whose endpoint is a whole scope.
func (ix *Index) LeafEvents(scopeID string) []*model.Event {
	out := append([]*model.Event(nil), ix.events[scopeID]...)
	for _, child := range ix.children[scopeID] {
		out = append(out, ix.LeafEvents(child.ID)...)
	}
	return out
}

// Ancestors returns the chain of scope ids from the event's owning scope up
// to (excluding) the global scope.
func (ix *Index) Ancestors(eventID string) []string {
	ev, ok := ix.eventByID[eventID]
	if !ok {
		return nil
	}
	var out []string
	cur := ev.Scope
	for cur != model.GlobalScope {
		out = append(out, cur)
		sc, ok := ix.scopeByID[cur]
		if !ok {
			break
		}
		cur = sc.Parent
	}
	return out
}
