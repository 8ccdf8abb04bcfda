package model

// EventKind distinguishes the two kinds of choreography events.
type EventKind string

const (
	// EventInput is an event that receives a typed value from a participant.
	EventInput EventKind = "input"
	// EventComputation is an event that evaluates an expression when fired.
	EventComputation EventKind = "computation"
)

// RelationKind identifies a DCR control-flow relation.
type RelationKind string

const (
	Condition RelationKind = "condition"
	Response  RelationKind = "response"
	Include   RelationKind = "include"
	Exclude   RelationKind = "exclude"
	Milestone RelationKind = "milestone"
	Spawn     RelationKind = "spawn"
)

// RelationKinds lists all relation kinds in canonical order.
var RelationKinds = []RelationKind{Condition, Response, Include, Exclude, Milestone, Spawn}

// ScopeKind distinguishes the three kinds of lexical scopes.
type ScopeKind string

const (
	// Global is the implicit outermost scope. Exactly one per graph.
	Global ScopeKind = "global"
	// Nest is a static grouping of events, either a plain group or a choice.
	Nest ScopeKind = "nest"
	// Subprocess is a dynamically spawned scope. Its children are hidden
	// until a spawn relation targeting it fires.
	Subprocess ScopeKind = "subprocess"
)

// NestMode selects the semantics of a Nest scope.
type NestMode string

const (
	Group  NestMode = "group"
	Choice NestMode = "choice"
)

// Marking is the persistent part of an event or nest marking.
// The derived parts (executable, executed) live in the engine state.
type Marking struct {
	Included bool `json:"included"`
	Pending  bool `json:"pending"`
}

// DefaultMarking is the marking assigned to freshly created events and scopes.
func DefaultMarking() Marking {
	return Marking{Included: true, Pending: false}
}

// ValueType is the value type carried by an input event.
// Exactly UnitType, PrimitiveType and RecordType implement it.
type ValueType interface {
	valueType()
}

// UnitType is the type of an input event that carries no payload.
type UnitType struct{}

func (UnitType) valueType() {}

// PrimitiveType names a primitive value type ("Integer", "String", "Boolean").
type PrimitiveType string

func (PrimitiveType) valueType() {}

// RecordType is a record of named primitive fields. Field order is the
// declaration order and is preserved across serialization.
type RecordType struct {
	Fields []Field
}

func (RecordType) valueType() {}

// Field is a single named field of a RecordType.
type Field struct {
	Name string        `json:"name"`
	Type PrimitiveType `json:"type"`
}

// Event is a single choreography event. It is owned by exactly one scope.
type Event struct {
	ID    string
	Label string // scope-unique short name used in relations
	Name  string // display name
	Kind  EventKind

	// ValueType is set for input events, Expression for computation events.
	ValueType  ValueType
	Expression string

	Initiators []string // role expressions, textual form
	Receivers  []string // role expressions, textual form
	Security   string   // security lattice element

	Marking Marking
	Scope   string // owning scope id
}

// Relation is a directed control-flow relation. Source and Target are each
// either an event id or a scope id.
type Relation struct {
	ID     string
	Kind   RelationKind
	Source string
	Target string
	Guard  string // optional boolean expression, never set on spawn relations
}

// Scope is a lexical grouping of events. Parent is empty only for the
// global scope; the parent links must form a tree.
type Scope struct {
	ID      string
	Kind    ScopeKind
	Mode    NestMode // nests only
	Marking Marking  // meaningful for nests
	Parent  string
}

// Param is a typed role parameter.
type Param struct {
	Name string        `json:"name"`
	Type PrimitiveType `json:"type"`
}

// Role is a participant role with an ordered parameter list.
type Role struct {
	Label  string  `json:"label"`
	Params []Param `json:"params,omitempty"`
}

// Graph is the whole choreography model: entities, roles, the security
// lattice text and the id allocators. Slices keep insertion order so that
// serialization is deterministic.
type Graph struct {
	Events    []Event
	Relations []Relation
	Scopes    []Scope // excludes the implicit global scope
	Roles     []Role
	Security  string

	EventAlloc *Allocator
	NestAlloc  *Allocator
	SubAlloc   *Allocator
}

// New returns an empty graph with fresh allocators.
func New() *Graph {
	return &Graph{
		EventAlloc: NewAllocator(),
		NestAlloc:  NewAllocator(),
		SubAlloc:   NewAllocator(),
	}
}

// GlobalScope is the id of the implicit outermost scope. It is not stored
// in Graph.Scopes; an empty Event.Scope or Scope.Parent refers to it.
const GlobalScope = ""

// EventByID returns the event with the given id.
func (g *Graph) EventByID(id string) (*Event, bool) {
	for i := range g.Events {
		if g.Events[i].ID == id {
			return &g.Events[i], true
		}
	}
	return nil, false
}

// EventByLabel returns the first event with the given label, searching the
// whole graph. Scope-aware resolution lives in the scopes package.
func (g *Graph) EventByLabel(label string) (*Event, bool) {
	for i := range g.Events {
		if g.Events[i].Label == label {
			return &g.Events[i], true
		}
	}
	return nil, false
}

// ScopeByID returns the scope with the given id. The global scope is not
// addressable this way.
func (g *Graph) ScopeByID(id string) (*Scope, bool) {
	for i := range g.Scopes {
		if g.Scopes[i].ID == id {
			return &g.Scopes[i], true
		}
	}
	return nil, false
}

// RoleByLabel returns the role with the given label.
func (g *Graph) RoleByLabel(label string) (*Role, bool) {
	for i := range g.Roles {
		if g.Roles[i].Label == label {
			return &g.Roles[i], true
		}
	}
	return nil, false
}

// IsEvent reports whether id names an event in the graph.
func (g *Graph) IsEvent(id string) bool {
	_, ok := g.EventByID(id)
	return ok
}

// IsScope reports whether id names a scope in the graph.
func (g *Graph) IsScope(id string) bool {
	_, ok := g.ScopeByID(id)
	return ok
}

// Clone returns a deep copy of the graph. Engine steps and edit batches
// operate on clones so callers can snapshot between operations.
func (g *Graph) Clone() *Graph {
	c := &Graph{
		Events:    make([]Event, len(g.Events)),
		Relations: make([]Relation, len(g.Relations)),
		Scopes:    make([]Scope, len(g.Scopes)),
		Roles:     make([]Role, len(g.Roles)),
		Security:  g.Security,
	}
	copy(c.Events, g.Events)
	copy(c.Relations, g.Relations)
	copy(c.Scopes, g.Scopes)
	for i := range c.Roles {
		c.Roles[i] = g.Roles[i]
		c.Roles[i].Params = append([]Param(nil), g.Roles[i].Params...)
	}
	for i := range c.Events {
		c.Events[i].Initiators = append([]string(nil), g.Events[i].Initiators...)
		c.Events[i].Receivers = append([]string(nil), g.Events[i].Receivers...)
		if rt, ok := g.Events[i].ValueType.(RecordType); ok {
			c.Events[i].ValueType = RecordType{Fields: append([]Field(nil), rt.Fields...)}
		}
	}
	if g.EventAlloc != nil {
		c.EventAlloc = g.EventAlloc.Clone()
	}
	if g.NestAlloc != nil {
		c.NestAlloc = g.NestAlloc.Clone()
	}
	if g.SubAlloc != nil {
		c.SubAlloc = g.SubAlloc.Clone()
	}
	return c
}
