package model

import "fmt"

// Reason names a business-rule rejection. Mutating operations never panic
// and never throw for rule violations; they return a RejectionError carrying
// one of these reasons and leave the graph unchanged.
type Reason string

const (
	// ReasonDuplicateRelation: a relation of the same kind already exists
	// between the ordered (source, target) pair.
	ReasonDuplicateRelation Reason = "duplicate relation"
	// ReasonSpawnTarget: a spawn relation's target is not a subprocess.
	ReasonSpawnTarget Reason = "spawn target is not a subprocess"
	// ReasonSpawnSource: a spawn relation's source is not an event.
	ReasonSpawnSource Reason = "spawn source is not an event"
	// ReasonSelfRelation: source == target for a kind other than exclude
	// or response.
	ReasonSelfRelation Reason = "self-relation not permitted for this kind"
	// ReasonUnknownEntity: an endpoint or owner id names nothing in the graph.
	ReasonUnknownEntity Reason = "unknown entity"
	// ReasonScopeCycle: a reparent would make a scope its own ancestor.
	ReasonScopeCycle Reason = "scope would become its own ancestor"
	// ReasonDuplicateLabel: an event label is already taken in the scope.
	ReasonDuplicateLabel Reason = "label already in use in scope"
	// ReasonGuardOnSpawn: spawn relations cannot carry guards.
	ReasonGuardOnSpawn Reason = "spawn relations cannot carry a guard"
	// ReasonNotConvertible: scope conversion applies only between nest and
	// subprocess.
	ReasonNotConvertible Reason = "scope is not convertible"
	// ReasonIDTaken: the id an operation would assign already names a scope.
	ReasonIDTaken Reason = "id already in use"
)

// RejectionError is the named rejection returned by mutating operations.
// The operation that produced it is a no-op.
type RejectionError struct {
	Op     string // operation, e.g. "add relation"
	Entity string // offending id or label, may be empty
	Reason Reason
}

func (e *RejectionError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.Entity, e.Reason)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func reject(op, entity string, reason Reason) error {
	return &RejectionError{Op: op, Entity: entity, Reason: reason}
}
