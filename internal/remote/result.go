package remote

import (
	"encoding/json"
	"fmt"

	"github.com/tardisdcr/tardis/internal/lang"
	"github.com/tardisdcr/tardis/internal/model"
)

// Result is one entry of the compile output: either a per-role
// projection or a structured compile failure. Exactly Projection and
// CompileFailure implement it.
type Result interface {
	result()
}

// Projection is one role's compiled view of the choreography.
type Projection struct {
	Role  string
	Graph CompiledGraph
}

func (Projection) result() {}

// CompileFailure is a structured compile error with optional source
// spans, rendered by callers as inline diagnostics.
type CompileFailure struct {
	StackTrace []Frame
}

func (CompileFailure) result() {}

func (f CompileFailure) Error() string {
	if len(f.StackTrace) == 0 {
		return "compile failed"
	}
	return fmt.Sprintf("compile failed: %s", f.StackTrace[0].Message)
}

// Frame is one entry of a compile failure's stack trace.
type Frame struct {
	Message  string `json:"message"`
	Location *Span  `json:"location,omitempty"`
}

// Span is a source range in the submitted text.
type Span struct {
	From Pos `json:"from"`
	To   Pos `json:"to"`
}

// Pos is a line/column position, 1-based.
type Pos struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// CompiledGraph is the event/relation shape of a projection. Relations
// reuse the model's record; events carry a typed expression AST rather
// than raw text.
type CompiledGraph struct {
	Events    []CompiledEvent  `json:"events"`
	Relations []model.Relation `json:"relations"`
}

// CompiledEvent is a projected event. Expression is the compiled typed
// AST, present only for computation events and guards the service
// resolved.
type CompiledEvent struct {
	ID         string
	Label      string
	Kind       model.EventKind
	Expression lang.Expr
	Initiators []string
	Receivers  []string
	Marking    model.Marking
}

type compiledEventJSON struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	Kind       string          `json:"kind"`
	Expression json.RawMessage `json:"expression,omitempty"`
	Initiators []string        `json:"initiators,omitempty"`
	Receivers  []string        `json:"receivers,omitempty"`
	Marking    model.Marking   `json:"marking"`
}

func (ev *CompiledEvent) UnmarshalJSON(data []byte) error {
	var raw compiledEventJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	ev.ID = raw.ID
	ev.Label = raw.Label
	ev.Kind = model.EventKind(raw.Kind)
	ev.Initiators = raw.Initiators
	ev.Receivers = raw.Receivers
	ev.Marking = raw.Marking
	if len(raw.Expression) > 0 {
		expr, err := lang.DecodeExpr(raw.Expression)
		if err != nil {
			return fmt.Errorf("event %s: %w", raw.ID, err)
		}
		ev.Expression = expr
	}
	return nil
}

func (ev CompiledEvent) MarshalJSON() ([]byte, error) {
	raw := compiledEventJSON{
		ID:         ev.ID,
		Label:      ev.Label,
		Kind:       string(ev.Kind),
		Initiators: ev.Initiators,
		Receivers:  ev.Receivers,
		Marking:    ev.Marking,
	}
	if ev.Expression != nil {
		enc, err := lang.EncodeExpr(ev.Expression)
		if err != nil {
			return nil, err
		}
		raw.Expression = enc
	}
	return json.Marshal(raw)
}

// resultJSON is the wire shape of one result entry. Exactly one of the
// two branches must be present.
type resultJSON struct {
	Role       *string         `json:"role,omitempty"`
	Graph      json.RawMessage `json:"graph,omitempty"`
	StackTrace []Frame         `json:"stackTrace,omitempty"`
}

func decodeResult(data []byte) (Result, error) {
	var raw resultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	switch {
	case raw.Role != nil && raw.StackTrace == nil:
		var g CompiledGraph
		if err := json.Unmarshal(raw.Graph, &g); err != nil {
			return nil, fmt.Errorf("projection for %s: %w", *raw.Role, err)
		}
		return Projection{Role: *raw.Role, Graph: g}, nil
	case raw.Role == nil && raw.StackTrace != nil:
		return CompileFailure{StackTrace: raw.StackTrace}, nil
	default:
		return nil, fmt.Errorf("result is neither a projection nor a failure")
	}
}

func decodeResults(entries []json.RawMessage) ([]Result, error) {
	out := make([]Result, 0, len(entries))
	for i, entry := range entries {
		r, err := decodeResult(entry)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		out = append(out, r)
	}
	return out, nil
}
