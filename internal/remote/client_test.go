package remote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tardisdcr/tardis/internal/lang"
)

const projectionBody = `{
	"done": true,
	"results": [
		{
			"role": "Buyer",
			"graph": {
				"events": [
					{
						"id": "e0",
						"label": "pay",
						"kind": "computation",
						"expression": {
							"tag": "binary",
							"op": "==",
							"left": {"tag": "ownref", "value": "id"},
							"right": {"tag": "int", "value": 42}
						},
						"marking": {"included": true, "pending": false}
					}
				],
				"relations": [
					{"ID": "condition:e0:e1", "Kind": "condition", "Source": "e0", "Target": "e1"}
				]
			}
		},
		{
			"stackTrace": [
				{
					"message": "unknown role Seller",
					"location": {"from": {"line": 3, "column": 1}, "to": {"line": 3, "column": 7}}
				}
			]
		}
	]
}`

// compileServer fakes the service: POST acknowledges, GET reports not
// done until the given number of polls have happened.
func compileServer(t *testing.T, notReadyPolls int, body string) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var polls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/compile":
			w.WriteHeader(http.StatusAccepted)
		case r.Method == http.MethodGet && r.URL.Path == "/compile/results":
			if int(polls.Add(1)) <= notReadyPolls {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"done": false}`))
				return
			}
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(body))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &polls
}

func TestSubmitPollRoundTrip(t *testing.T) {
	srv, _ := compileServer(t, 0, projectionBody)
	c := NewClient(srv.URL)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, "Buyer; public; order"))

	results, ok, err := c.Poll(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, results, 2)

	proj, isProj := results[0].(Projection)
	require.True(t, isProj)
	assert.Equal(t, "Buyer", proj.Role)
	require.Len(t, proj.Graph.Events, 1)
	assert.Equal(t, lang.Binary{
		Op:    lang.OpEq,
		Left:  lang.OwnRef("id"),
		Right: lang.IntLit(42),
	}, proj.Graph.Events[0].Expression)
	require.Len(t, proj.Graph.Relations, 1)
	assert.Equal(t, "e1", proj.Graph.Relations[0].Target)

	fail, isFail := results[1].(CompileFailure)
	require.True(t, isFail)
	require.Len(t, fail.StackTrace, 1)
	assert.Equal(t, "unknown role Seller", fail.StackTrace[0].Message)
	require.NotNil(t, fail.StackTrace[0].Location)
	assert.Equal(t, Pos{Line: 3, Column: 1}, fail.StackTrace[0].Location.From)
}

func TestPollNotReady(t *testing.T) {
	srv, _ := compileServer(t, 1, projectionBody)
	c := NewClient(srv.URL)
	defer c.Close()

	_, ok, err := c.Poll(context.Background())
	require.NoError(t, err)
	assert.False(t, ok, "not-ready is retryable, not an error")
}

func TestAwaitBacksOffUntilDone(t *testing.T) {
	srv, polls := compileServer(t, 2, projectionBody)
	c := NewClient(srv.URL, WithPollInterval(time.Millisecond))
	defer c.Close()

	results, err := c.Await(context.Background())
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, int32(3), polls.Load())
}

func TestAwaitHonorsContext(t *testing.T) {
	srv, _ := compileServer(t, 1000, projectionBody)
	c := NewClient(srv.URL, WithPollInterval(5*time.Millisecond))
	defer c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSecondSubmitWhileInFlight(t *testing.T) {
	srv, _ := compileServer(t, 0, projectionBody)
	c := NewClient(srv.URL)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Submit(ctx, "first"))
	assert.ErrorIs(t, c.Submit(ctx, "second"), ErrInFlight)

	_, ok, err := c.Poll(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	assert.NoError(t, c.Submit(ctx, "third"), "collecting results releases the guard")
}

func TestSubmitTransportFailureReleasesGuard(t *testing.T) {
	srv, _ := compileServer(t, 0, projectionBody)
	srv.Close()
	c := NewClient(srv.URL)
	defer c.Close()
	ctx := context.Background()

	err := c.Submit(ctx, "source")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInFlight)

	// The failed submission does not wedge the client.
	assert.NotErrorIs(t, c.Submit(ctx, "source"), ErrInFlight)
}

func TestDecodeResultRejectsAmbiguousEntry(t *testing.T) {
	_, err := decodeResult([]byte(`{"role": "Buyer", "stackTrace": [{"message": "x"}]}`))
	assert.ErrorContains(t, err, "neither a projection nor a failure")

	_, err = decodeResult([]byte(`{}`))
	assert.ErrorContains(t, err, "neither a projection nor a failure")
}
