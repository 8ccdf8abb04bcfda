package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"golang.org/x/text/unicode/norm"
)

// Domain prefix for graph content hashes. The version suffix allows the
// hashing scheme to change without colliding with old hashes.
const hashDomain = "tardis/graph/v1"

// Hash returns a content hash of the graph that is stable under reordering
// of events, relations, scopes and roles. Allocator state and display
// positions are excluded: two graphs with the same entities and the same
// semantics hash the same. Strings are NFC-normalized first, since labels
// typed through different editors may differ only in Unicode composition.
func (g *Graph) Hash() (string, error) {
	events := make([]map[string]any, 0, len(g.Events))
	for i := range g.Events {
		e := &g.Events[i]
		m := map[string]any{
			"id":       nfc(e.ID),
			"label":    nfc(e.Label),
			"name":     nfc(e.Name),
			"kind":     string(e.Kind),
			"security": nfc(e.Security),
			"scope":    nfc(e.Scope),
			"included": e.Marking.Included,
			"pending":  e.Marking.Pending,
		}
		if e.Kind == EventComputation {
			m["expression"] = nfc(e.Expression)
		} else {
			m["type"] = valueTypeKey(e.ValueType)
		}
		if len(e.Initiators) > 0 {
			m["initiators"] = nfcAll(e.Initiators)
		}
		if len(e.Receivers) > 0 {
			m["receivers"] = nfcAll(e.Receivers)
		}
		events = append(events, m)
	}
	sortByKey(events, "id")

	relations := make([]map[string]any, 0, len(g.Relations))
	for i := range g.Relations {
		r := &g.Relations[i]
		m := map[string]any{
			"id":     nfc(r.ID),
			"kind":   string(r.Kind),
			"source": nfc(r.Source),
			"target": nfc(r.Target),
		}
		if r.Guard != "" {
			m["guard"] = nfc(r.Guard)
		}
		relations = append(relations, m)
	}
	sortByKey(relations, "id")

	scopes := make([]map[string]any, 0, len(g.Scopes))
	for i := range g.Scopes {
		s := &g.Scopes[i]
		scopes = append(scopes, map[string]any{
			"id":       nfc(s.ID),
			"kind":     string(s.Kind),
			"mode":     string(s.Mode),
			"parent":   nfc(s.Parent),
			"included": s.Marking.Included,
			"pending":  s.Marking.Pending,
		})
	}
	sortByKey(scopes, "id")

	roles := make([]map[string]any, 0, len(g.Roles))
	for i := range g.Roles {
		r := &g.Roles[i]
		params := make([]map[string]any, 0, len(r.Params))
		for _, p := range r.Params {
			params = append(params, map[string]any{"name": nfc(p.Name), "type": string(p.Type)})
		}
		roles = append(roles, map[string]any{"label": nfc(r.Label), "params": params})
	}
	sortByKey(roles, "label")

	payload, err := json.Marshal(map[string]any{
		"events":    events,
		"relations": relations,
		"scopes":    scopes,
		"roles":     roles,
		"security":  nfc(g.Security),
	})
	if err != nil {
		return "", fmt.Errorf("hash graph: %w", err)
	}

	h := sha256.New()
	h.Write([]byte(hashDomain))
	h.Write([]byte{0x00})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil)), nil
}

func valueTypeKey(vt ValueType) string {
	switch t := vt.(type) {
	case nil, UnitType:
		return "unit"
	case PrimitiveType:
		return string(t)
	case RecordType:
		parts := make([]string, 0, len(t.Fields))
		for _, f := range t.Fields {
			parts = append(parts, nfc(f.Name)+":"+string(f.Type))
		}
		out := "{"
		for i, p := range parts {
			if i > 0 {
				out += ";"
			}
			out += p
		}
		return out + "}"
	default:
		return "unit"
	}
}

func nfc(s string) string {
	return norm.NFC.String(s)
}

func nfcAll(ss []string) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = nfc(s)
	}
	return out
}

func sortByKey(ms []map[string]any, key string) {
	sort.Slice(ms, func(i, j int) bool {
		a, _ := ms[i][key].(string)
		b, _ := ms[j][key].(string)
		return a < b
	})
}
