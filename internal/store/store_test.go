package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "firings.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBeginSessionIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginSession(ctx, "tok-1", "hash-a"))
	require.NoError(t, s.BeginSession(ctx, "tok-1", "hash-a"))

	sess, err := s.ReadSession(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", sess.Token)
	assert.Equal(t, "hash-a", sess.GraphHash)
	assert.NotEmpty(t, sess.CreatedAt)
}

func TestBeginSessionGraphMismatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginSession(ctx, "tok-1", "hash-a"))
	err := s.BeginSession(ctx, "tok-1", "hash-b")
	assert.ErrorContains(t, err, "different graph")
}

func TestReadSessionNotFound(t *testing.T) {
	s := openTestStore(t)

	_, err := s.ReadSession(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestWriteFiringIdempotent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginSession(ctx, "tok-1", "hash-a"))

	f := Firing{Session: "tok-1", Seq: 0, EventID: "e0"}
	require.NoError(t, s.WriteFiring(ctx, f))
	require.NoError(t, s.WriteFiring(ctx, f))

	firings, err := s.ReadFirings(ctx, "tok-1")
	require.NoError(t, err)
	require.Len(t, firings, 1)
	assert.Equal(t, FiringID("tok-1", 0, "e0"), firings[0].ID)
	assert.Equal(t, "e0", firings[0].EventID)
}

func TestReadFiringsOrderedBySeq(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginSession(ctx, "tok-1", "hash-a"))
	for _, f := range []Firing{
		{Session: "tok-1", Seq: 2, EventID: "e2"},
		{Session: "tok-1", Seq: 0, EventID: "e0"},
		{Session: "tok-1", Seq: 1, EventID: "e1"},
	} {
		require.NoError(t, s.WriteFiring(ctx, f))
	}

	firings, err := s.ReadFirings(ctx, "tok-1")
	require.NoError(t, err)
	require.Len(t, firings, 3)
	assert.Equal(t, []string{"e0", "e1", "e2"}, []string{
		firings[0].EventID, firings[1].EventID, firings[2].EventID,
	})
}

func TestFiringsIsolatedPerSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.BeginSession(ctx, "tok-1", "hash-a"))
	require.NoError(t, s.BeginSession(ctx, "tok-2", "hash-a"))
	require.NoError(t, s.WriteFiring(ctx, Firing{Session: "tok-1", Seq: 0, EventID: "e0"}))
	require.NoError(t, s.WriteFiring(ctx, Firing{Session: "tok-2", Seq: 0, EventID: "e1"}))

	firings, err := s.ReadFirings(ctx, "tok-2")
	require.NoError(t, err)
	require.Len(t, firings, 1)
	assert.Equal(t, "e1", firings[0].EventID)
}

func TestFiringIDStable(t *testing.T) {
	a := FiringID("tok", 3, "e1")
	b := FiringID("tok", 3, "e1")
	c := FiringID("tok", 4, "e1")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
