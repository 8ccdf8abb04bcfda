package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/tardisdcr/tardis/internal/scopes"
	"github.com/tardisdcr/tardis/internal/store"
)

// TokenGenerator mints session tokens. Swappable so tests can fix the
// token sequence.
type TokenGenerator interface {
	Token() string
}

// UUIDv7Generator mints time-ordered UUID tokens.
type UUIDv7Generator struct{}

func (UUIDv7Generator) Token() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Simulation owns the mutable side of execution: the current state, the
// session token, and the firing sequence. The underlying Step function
// stays pure; Simulation is the only place state advances in place.
type Simulation struct {
	ix      *scopes.Index
	state   State
	session string
	seq     int64
	log     *store.Store
	tokens  TokenGenerator
}

// Option configures a Simulation.
type Option func(*Simulation)

// WithStore attaches a firing log. Every successful Fire is recorded.
func WithStore(s *store.Store) Option {
	return func(sim *Simulation) { sim.log = s }
}

// WithTokenGenerator overrides the session token source.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(sim *Simulation) { sim.tokens = g }
}

// NewSimulation starts a simulation at the graph's initial marking. When
// a store is attached the session is recorded immediately, pinned to the
// graph's content hash.
func NewSimulation(ctx context.Context, ix *scopes.Index, opts ...Option) (*Simulation, error) {
	sim := &Simulation{
		ix:     ix,
		tokens: UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(sim)
	}
	sim.session = sim.tokens.Token()
	sim.state = Initial(ix)

	if sim.log != nil {
		hash, err := ix.Graph().Hash()
		if err != nil {
			return nil, fmt.Errorf("new simulation: %w", err)
		}
		if err := sim.log.BeginSession(ctx, sim.session, hash); err != nil {
			return nil, fmt.Errorf("new simulation: %w", err)
		}
	}

	slog.Debug("simulation started",
		"session", sim.session,
		"events", len(sim.state.Events))
	return sim, nil
}

// Session returns the session token.
func (sim *Simulation) Session() string { return sim.session }

// State returns a copy of the current marking.
func (sim *Simulation) State() State { return sim.state.Clone() }

// Executable returns the ids of currently executable events, sorted.
func (sim *Simulation) Executable() []string { return sim.state.Executable() }

// Fire executes one event and advances the simulation. On success the
// firing is appended to the log, when one is attached. A failed Step
// leaves the simulation unchanged.
func (sim *Simulation) Fire(ctx context.Context, eventID string) error {
	next, err := Step(sim.ix, sim.state, eventID)
	if err != nil {
		return err
	}
	if sim.log != nil {
		f := store.Firing{Session: sim.session, Seq: sim.seq, EventID: eventID}
		if err := sim.log.WriteFiring(ctx, f); err != nil {
			return fmt.Errorf("fire %s: %w", eventID, err)
		}
	}
	sim.state = next
	sim.seq++
	slog.Debug("event fired",
		"session", sim.session,
		"event", eventID,
		"seq", sim.seq-1)
	return nil
}
