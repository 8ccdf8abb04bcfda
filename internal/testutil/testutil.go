// Package testutil provides small helpers shared by package tests:
// must-style graph builders and a deterministic token source.
package testutil

import (
	"fmt"
	"testing"

	"github.com/tardisdcr/tardis/internal/model"
)

// TokenSequence hands out prefix-0, prefix-1, ... deterministically. It
// satisfies the engine's token generator contract.
type TokenSequence struct {
	prefix string
	n      int
}

// NewTokenSequence returns a sequence with the given prefix.
func NewTokenSequence(prefix string) *TokenSequence {
	return &TokenSequence{prefix: prefix}
}

func (s *TokenSequence) Token() string {
	tok := fmt.Sprintf("%s-%d", s.prefix, s.n)
	s.n++
	return tok
}

// MustAddEvent adds an event or fails the test.
func MustAddEvent(t testing.TB, g *model.Graph, spec model.EventSpec) string {
	t.Helper()
	id, err := g.AddEvent(spec)
	if err != nil {
		t.Fatalf("add event %q: %v", spec.Label, err)
	}
	return id
}

// MustAddRelation adds a relation or fails the test.
func MustAddRelation(t testing.TB, g *model.Graph, kind model.RelationKind, source, target string) string {
	t.Helper()
	id, err := g.AddRelation(kind, source, target, "")
	if err != nil {
		t.Fatalf("add %s %s -> %s: %v", kind, source, target, err)
	}
	return id
}

// MustAddSubprocess adds a subprocess scope or fails the test.
func MustAddSubprocess(t testing.TB, g *model.Graph, parent string) string {
	t.Helper()
	id, err := g.AddSubprocess(parent)
	if err != nil {
		t.Fatalf("add subprocess under %q: %v", parent, err)
	}
	return id
}

// MustAddNest adds a nest scope or fails the test.
func MustAddNest(t testing.TB, g *model.Graph, parent string, mode model.NestMode) string {
	t.Helper()
	id, err := g.AddNest(parent, mode)
	if err != nil {
		t.Fatalf("add nest under %q: %v", parent, err)
	}
	return id
}
