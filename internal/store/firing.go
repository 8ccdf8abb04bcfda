package store

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
)

// Domain prefix for content-addressed firing ids. The null separator in
// the hash input keeps domain and payload unambiguous.
const firingDomain = "tardis/firing/v1"

// Session identifies one simulation run over a pinned graph.
type Session struct {
	Token     string
	GraphHash string
	CreatedAt string
}

// Firing records that one event fired at a sequence position within a
// session. The id is content-addressed over (session, seq, event).
type Firing struct {
	ID      string
	Session string
	Seq     int64
	EventID string
}

// ErrSessionNotFound is returned when a session token is unknown.
var ErrSessionNotFound = errors.New("session not found")

// FiringID computes the content-addressed id of a firing. Stable across
// restarts and replays given the same inputs.
func FiringID(session string, seq int64, eventID string) string {
	payload, _ := json.Marshal(map[string]any{
		"session": session,
		"seq":     seq,
		"event":   eventID,
	})
	h := sha256.New()
	h.Write([]byte(firingDomain))
	h.Write([]byte{0x00})
	h.Write(payload)
	return hex.EncodeToString(h.Sum(nil))
}

// BeginSession records a new session. Re-recording the same token is
// idempotent; recording the same token with a different graph hash is an
// error since replay would be meaningless.
func (s *Store) BeginSession(ctx context.Context, token, graphHash string) error {
	existing, err := s.ReadSession(ctx, token)
	if err == nil {
		if existing.GraphHash != graphHash {
			return fmt.Errorf("begin session %s: token already bound to a different graph", token)
		}
		return nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (token, graph_hash) VALUES (?, ?)
		ON CONFLICT(token) DO NOTHING
	`, token, graphHash)
	if err != nil {
		return fmt.Errorf("begin session %s: %w", token, err)
	}
	return nil
}

// ReadSession returns a session by token.
func (s *Store) ReadSession(ctx context.Context, token string) (Session, error) {
	var sess Session
	err := s.db.QueryRowContext(ctx, `
		SELECT token, graph_hash, created_at FROM sessions WHERE token = ?
	`, token).Scan(&sess.Token, &sess.GraphHash, &sess.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("read session %s: %w", token, ErrSessionNotFound)
	}
	if err != nil {
		return Session{}, fmt.Errorf("read session %s: %w", token, err)
	}
	return sess, nil
}

// Sessions lists all recorded sessions, newest first.
func (s *Store) Sessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT token, graph_hash, created_at FROM sessions ORDER BY created_at DESC, token
	`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.Token, &sess.GraphHash, &sess.CreatedAt); err != nil {
			return nil, fmt.Errorf("list sessions: %w", err)
		}
		out = append(out, sess)
	}
	return out, rows.Err()
}

// WriteFiring appends a firing to the log. Idempotent: writing the same
// firing twice is a no-op via ON CONFLICT DO NOTHING.
func (s *Store) WriteFiring(ctx context.Context, f Firing) error {
	if f.ID == "" {
		f.ID = FiringID(f.Session, f.Seq, f.EventID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO firings (id, session, seq, event_id) VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, f.ID, f.Session, f.Seq, f.EventID)
	if err != nil {
		return fmt.Errorf("write firing %s/%d: %w", f.Session, f.Seq, err)
	}
	return nil
}

// ReadFirings returns the firings of a session in sequence order.
func (s *Store) ReadFirings(ctx context.Context, session string) ([]Firing, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session, seq, event_id FROM firings WHERE session = ? ORDER BY seq
	`, session)
	if err != nil {
		return nil, fmt.Errorf("read firings for %s: %w", session, err)
	}
	defer rows.Close()

	var out []Firing
	for rows.Next() {
		var f Firing
		if err := rows.Scan(&f.ID, &f.Session, &f.Seq, &f.EventID); err != nil {
			return nil, fmt.Errorf("read firings for %s: %w", session, err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
