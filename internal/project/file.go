package project

import (
	"encoding/json"
	"fmt"

	"github.com/tardisdcr/tardis/internal/model"
	"github.com/tardisdcr/tardis/internal/scopes"
)

// File is the on-disk project shape. Nodes carry events and scopes in one
// tagged list; edges are relations. The three next-id pools are the
// allocator states of the full variant; the reduced variant omits them
// along with the raw source text.
type File struct {
	Nodes    []Node       `json:"nodes"`
	Edges    []Edge       `json:"edges"`
	Security string       `json:"security"`
	Roles    []model.Role `json:"roles"`
	Code     string       `json:"code,omitempty"`

	NextNodeID       []int `json:"nextNodeId,omitempty"`
	NextGroupID      []int `json:"nextGroupId,omitempty"`
	NextSubprocessID []int `json:"nextSubprocessId,omitempty"`
}

// Node is one tagged entry of the node list. The tag selects which fields
// are meaningful: events use label through scope, nests use mode, marking
// and parent, subprocesses use only parent.
type Node struct {
	Tag string `json:"tag"`
	ID  string `json:"id"`

	// event
	Label      string         `json:"label,omitempty"`
	Name       string         `json:"name,omitempty"`
	Kind       string         `json:"kind,omitempty"`
	ValueType  *TypeRecord    `json:"valueType,omitempty"`
	Expression string         `json:"expression,omitempty"`
	Initiators []string       `json:"initiators,omitempty"`
	Receivers  []string       `json:"receivers,omitempty"`
	Security   string         `json:"security,omitempty"`
	Marking    *model.Marking `json:"marking,omitempty"`
	Scope      string         `json:"scope,omitempty"`

	// nest / subprocess
	Mode   string `json:"mode,omitempty"`
	Parent string `json:"parent,omitempty"`
}

// Edge is one relation record.
type Edge struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Source string `json:"source"`
	Target string `json:"target"`
	Guard  string `json:"guard,omitempty"`
}

// TypeRecord is the tagged encoding of a value type.
type TypeRecord struct {
	Tag    string        `json:"tag"`
	Name   string        `json:"name,omitempty"`
	Fields []model.Field `json:"fields,omitempty"`
}

func encodeValueType(vt model.ValueType) *TypeRecord {
	switch t := vt.(type) {
	case nil:
		return nil
	case model.UnitType:
		return &TypeRecord{Tag: "unit"}
	case model.PrimitiveType:
		return &TypeRecord{Tag: "primitive", Name: string(t)}
	case model.RecordType:
		return &TypeRecord{Tag: "record", Fields: t.Fields}
	default:
		// The ValueType interface is sealed; this is unreachable.
		return nil
	}
}

func decodeValueType(tr *TypeRecord) (model.ValueType, error) {
	if tr == nil {
		return nil, nil
	}
	switch tr.Tag {
	case "unit":
		return model.UnitType{}, nil
	case "primitive":
		return model.PrimitiveType(tr.Name), nil
	case "record":
		return model.RecordType{Fields: tr.Fields}, nil
	default:
		return nil, fmt.Errorf("unknown value type tag %q", tr.Tag)
	}
}

// Encode builds the full project file for a graph: every node and edge,
// the allocator pools, and the raw source text.
func Encode(g *model.Graph, code string) File {
	f := EncodeReduced(g)
	f.Code = code
	f.NextNodeID = g.EventAlloc.Pool()
	f.NextGroupID = g.NestAlloc.Pool()
	f.NextSubprocessID = g.SubAlloc.Pool()
	return f
}

// EncodeReduced builds the reduced project file: the graph without
// allocator state or source text. Decoding a reduced file reconstructs
// the allocators from the ids in use.
func EncodeReduced(g *model.Graph) File {
	// Empty slices stay non-nil so they marshal as [] rather than null,
	// which the schema would reject.
	f := File{
		Nodes:    []Node{},
		Edges:    []Edge{},
		Security: g.Security,
		Roles:    append([]model.Role{}, g.Roles...),
	}
	for i := range g.Events {
		ev := &g.Events[i]
		marking := ev.Marking
		f.Nodes = append(f.Nodes, Node{
			Tag:        "event",
			ID:         ev.ID,
			Label:      ev.Label,
			Name:       ev.Name,
			Kind:       string(ev.Kind),
			ValueType:  encodeValueType(ev.ValueType),
			Expression: ev.Expression,
			Initiators: ev.Initiators,
			Receivers:  ev.Receivers,
			Security:   ev.Security,
			Marking:    &marking,
			Scope:      ev.Scope,
		})
	}
	for i := range g.Scopes {
		sc := &g.Scopes[i]
		switch sc.Kind {
		case model.Nest:
			marking := sc.Marking
			f.Nodes = append(f.Nodes, Node{
				Tag:     "nest",
				ID:      sc.ID,
				Mode:    string(sc.Mode),
				Marking: &marking,
				Parent:  sc.Parent,
			})
		case model.Subprocess:
			f.Nodes = append(f.Nodes, Node{
				Tag:    "subprocess",
				ID:     sc.ID,
				Parent: sc.Parent,
			})
		}
	}
	for i := range g.Relations {
		r := &g.Relations[i]
		f.Edges = append(f.Edges, Edge{
			ID:     r.ID,
			Kind:   string(r.Kind),
			Source: r.Source,
			Target: r.Target,
			Guard:  r.Guard,
		})
	}
	return f
}

// Decode reconstructs a graph from a project file. Allocator pools are
// restored when present; otherwise every used id suffix is claimed from a
// fresh allocator so future allocations fill the gaps smallest-first. The
// scope tree is validated before the graph is returned.
func Decode(f File) (*model.Graph, error) {
	g := model.New()
	g.Security = f.Security
	g.Roles = append([]model.Role(nil), f.Roles...)

	for _, n := range f.Nodes {
		switch n.Tag {
		case "event":
			vt, err := decodeValueType(n.ValueType)
			if err != nil {
				return nil, fmt.Errorf("node %s: %w", n.ID, err)
			}
			marking := model.DefaultMarking()
			if n.Marking != nil {
				marking = *n.Marking
			}
			g.Events = append(g.Events, model.Event{
				ID:         n.ID,
				Label:      n.Label,
				Name:       n.Name,
				Kind:       model.EventKind(n.Kind),
				ValueType:  vt,
				Expression: n.Expression,
				Initiators: n.Initiators,
				Receivers:  n.Receivers,
				Security:   n.Security,
				Marking:    marking,
				Scope:      n.Scope,
			})
		case "nest":
			marking := model.DefaultMarking()
			if n.Marking != nil {
				marking = *n.Marking
			}
			g.Scopes = append(g.Scopes, model.Scope{
				ID:      n.ID,
				Kind:    model.Nest,
				Mode:    model.NestMode(n.Mode),
				Marking: marking,
				Parent:  n.Parent,
			})
		case "subprocess":
			g.Scopes = append(g.Scopes, model.Scope{
				ID:     n.ID,
				Kind:   model.Subprocess,
				Parent: n.Parent,
			})
		default:
			return nil, fmt.Errorf("node %s: unknown tag %q", n.ID, n.Tag)
		}
	}
	for _, e := range f.Edges {
		g.Relations = append(g.Relations, model.Relation{
			ID:     e.ID,
			Kind:   model.RelationKind(e.Kind),
			Source: e.Source,
			Target: e.Target,
			Guard:  e.Guard,
		})
	}

	if len(f.NextNodeID) > 0 {
		g.EventAlloc = model.NewAllocatorFrom(f.NextNodeID)
		g.NestAlloc = model.NewAllocatorFrom(f.NextGroupID)
		g.SubAlloc = model.NewAllocatorFrom(f.NextSubprocessID)
	} else {
		if err := claimUsed(g); err != nil {
			return nil, err
		}
	}

	if _, err := scopes.Build(g); err != nil {
		return nil, fmt.Errorf("decode project: %w", err)
	}
	return g, nil
}

// claimUsed rebuilds the allocators of a reduced file from the id
// suffixes actually in use.
func claimUsed(g *model.Graph) error {
	for i := range g.Events {
		_, n, err := model.Suffix(g.Events[i].ID)
		if err != nil {
			return fmt.Errorf("event id: %w", err)
		}
		g.EventAlloc.Claim(n)
	}
	for i := range g.Scopes {
		_, n, err := model.Suffix(g.Scopes[i].ID)
		if err != nil {
			return fmt.Errorf("scope id: %w", err)
		}
		switch g.Scopes[i].Kind {
		case model.Nest:
			g.NestAlloc.Claim(n)
		case model.Subprocess:
			g.SubAlloc.Claim(n)
		}
	}
	return nil
}

// Marshal validates nothing and writes the full project file as indented
// JSON. Unmarshal is the validating inverse.
func Marshal(g *model.Graph, code string) ([]byte, error) {
	return json.MarshalIndent(Encode(g, code), "", "  ")
}

// MarshalReduced writes the reduced variant.
func MarshalReduced(g *model.Graph) ([]byte, error) {
	return json.MarshalIndent(EncodeReduced(g), "", "  ")
}

// Unmarshal validates raw project JSON against the schema, then decodes
// it. Returns the graph and the embedded source text, empty for reduced
// files.
func Unmarshal(data []byte) (*model.Graph, string, error) {
	if err := validate(data); err != nil {
		return nil, "", err
	}
	var f File
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, "", fmt.Errorf("decode project file: %w", err)
	}
	g, err := Decode(f)
	if err != nil {
		return nil, "", err
	}
	return g, f.Code, nil
}
