package lang

import (
	"fmt"
	"strings"

	"github.com/tardisdcr/tardis/internal/model"
	"github.com/tardisdcr/tardis/internal/scopes"
)

const indentUnit = "    "

// Serialize renders a graph as source text. The output parses back to a
// semantically equivalent graph: same events, same resolved relations.
// Ordering and whitespace are canonical rather than byte-identical to any
// earlier source.
//
// Nests have no textual syntax; their events and relations are written
// inline in the scope that owns the nest. Relations whose endpoint is a
// whole scope are expanded to the Cartesian product of the scope's leaf
// events, since the grammar only names individual events.
func Serialize(g *model.Graph) (string, error) {
	ix, err := scopes.Build(g)
	if err != nil {
		return "", fmt.Errorf("serialize: %w", err)
	}
	if err := checkSpawned(g); err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, role := range g.Roles {
		sb.WriteString(formatRoleDecl(role))
		sb.WriteByte('\n')
	}
	sb.WriteString(";\n")
	if g.Security != "" {
		sb.WriteString(g.Security)
		sb.WriteByte('\n')
	}
	sb.WriteString(";\n")
	if err := writeScope(&sb, ix, model.GlobalScope, 0); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func formatRoleDecl(role model.Role) string {
	if len(role.Params) == 0 {
		return role.Label
	}
	parts := make([]string, len(role.Params))
	for i, p := range role.Params {
		parts[i] = fmt.Sprintf("%s: %s", p.Name, p.Type)
	}
	return fmt.Sprintf("%s(%s)", role.Label, strings.Join(parts, "; "))
}

func writeScope(sb *strings.Builder, ix *scopes.Index, scopeID string, depth int) error {
	indent := strings.Repeat(indentUnit, depth)

	for _, ev := range flatEvents(ix, scopeID) {
		sb.WriteString(indent)
		sb.WriteString(formatEvent(ev))
		sb.WriteByte('\n')
	}
	sb.WriteString(indent)
	sb.WriteString(";\n")

	// Spawn blocks come first: a relation in this scope may name leaf
	// events of a spawned subprocess, and labels must be declared before
	// they are referenced.
	rels := flatRelations(ix, scopeID)
	for _, r := range rels {
		if r.Kind == model.Spawn {
			if err := writeSpawn(sb, ix, r, depth); err != nil {
				return err
			}
		}
	}
	for _, r := range rels {
		if r.Kind == model.Spawn {
			continue
		}
		if err := writeRelation(sb, ix, r, indent); err != nil {
			return err
		}
	}
	return nil
}

// checkSpawned rejects graphs holding a subprocess that no spawn relation
// targets. Such a scope has no textual position, and writing the graph
// without it would drop its events without a trace.
func checkSpawned(g *model.Graph) error {
	spawned := make(map[string]bool)
	for _, r := range g.Relations {
		if r.Kind == model.Spawn {
			spawned[r.Target] = true
		}
	}
	for _, sc := range g.Scopes {
		if sc.Kind == model.Subprocess && !spawned[sc.ID] {
			return fmt.Errorf("serialize: subprocess %s has no spawn relation and cannot be written", sc.ID)
		}
	}
	return nil
}

// flatEvents returns the events of a scope plus those of its nest
// descendants. Subprocess children are written by their spawn blocks.
func flatEvents(ix *scopes.Index, scopeID string) []*model.Event {
	out := append([]*model.Event(nil), ix.Events(scopeID)...)
	for _, child := range ix.Children(scopeID) {
		if child.Kind == model.Nest {
			out = append(out, flatEvents(ix, child.ID)...)
		}
	}
	return out
}

// flatRelations mirrors flatEvents for the relations owned by a scope and
// its nest descendants.
func flatRelations(ix *scopes.Index, scopeID string) []*model.Relation {
	out := append([]*model.Relation(nil), ix.Relations(scopeID)...)
	for _, child := range ix.Children(scopeID) {
		if child.Kind == model.Nest {
			out = append(out, flatRelations(ix, child.ID)...)
		}
	}
	return out
}

func formatEvent(ev *model.Event) string {
	var sb strings.Builder
	if !ev.Marking.Included {
		sb.WriteByte('%')
	}
	if ev.Marking.Pending {
		sb.WriteByte('!')
	}
	name := ev.Name
	if name == "" {
		name = ev.Label
	}
	fmt.Fprintf(&sb, "(%s: %s)(%s)", ev.Label, name, ev.Security)
	fmt.Fprintf(&sb, "[%s]", formatTypeAnnotation(ev))
	sb.WriteByte('[')
	sb.WriteString(strings.Join(ev.Initiators, ", "))
	if len(ev.Receivers) > 0 {
		sb.WriteString(" -> ")
		sb.WriteString(strings.Join(ev.Receivers, ", "))
	}
	sb.WriteByte(']')
	return sb.String()
}

func formatTypeAnnotation(ev *model.Event) string {
	if ev.Kind == model.EventComputation {
		return ev.Expression
	}
	switch t := ev.ValueType.(type) {
	case model.PrimitiveType:
		return fmt.Sprintf("?: %s", t)
	case model.RecordType:
		parts := make([]string, len(t.Fields))
		for i, f := range t.Fields {
			parts[i] = fmt.Sprintf("%s: %s", f.Name, f.Type)
		}
		return fmt.Sprintf("?: {%s}", strings.Join(parts, "; "))
	default:
		return "?"
	}
}

func writeRelation(sb *strings.Builder, ix *scopes.Index, r *model.Relation, indent string) error {
	sources, err := endpointEvents(ix, r.Source)
	if err != nil {
		return fmt.Errorf("serialize relation %s: %w", r.ID, err)
	}
	targets, err := endpointEvents(ix, r.Target)
	if err != nil {
		return fmt.Errorf("serialize relation %s: %w", r.ID, err)
	}
	op := kindOps[r.Kind]
	for _, s := range sources {
		for _, t := range targets {
			sb.WriteString(indent)
			fmt.Fprintf(sb, "%s %s %s", s.Label, op, t.Label)
			if r.Guard != "" {
				fmt.Fprintf(sb, " [%s]", r.Guard)
			}
			sb.WriteByte('\n')
		}
	}
	return nil
}

// endpointEvents expands a relation endpoint: an event stands for itself, a
// scope for all its leaf events.
func endpointEvents(ix *scopes.Index, id string) ([]*model.Event, error) {
	if ev, ok := ix.Event(id); ok {
		return []*model.Event{ev}, nil
	}
	if ix.IsScope(id) {
		return ix.LeafEvents(id), nil
	}
	return nil, fmt.Errorf("endpoint %s names no event or scope", id)
}

func writeSpawn(sb *strings.Builder, ix *scopes.Index, r *model.Relation, depth int) error {
	trigger, ok := ix.Event(r.Source)
	if !ok {
		return fmt.Errorf("serialize spawn %s: trigger is not an event", r.ID)
	}
	indent := strings.Repeat(indentUnit, depth)
	fmt.Fprintf(sb, "%s%s -->> {\n", indent, trigger.Label)
	if err := writeScope(sb, ix, r.Target, depth+1); err != nil {
		return err
	}
	sb.WriteString(indent)
	sb.WriteString("}\n")
	return nil
}
