package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRelayServer(t *testing.T) (*Relay, string) {
	t.Helper()

	relay := NewRelay(logging.NewNop(), nil)
	mux := http.NewServeMux()
	mux.Handle("GET /v1/relay/{sessionID}", relay)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return relay, "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/relay/s-1"
}

func dial(t *testing.T, url, participant string) *Transport {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	tr, err := Dial(ctx, url, participant, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr
}

func waitForParticipants(t *testing.T, relay *Relay, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return len(relay.Participants("s-1")) == n
	}, 2*time.Second, 10*time.Millisecond)
}

func receive(t *testing.T, tr *Transport) broadcast.Envelope {
	t.Helper()
	select {
	case env, ok := <-tr.Receive():
		require.True(t, ok, "inbox closed")
		return env
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for envelope")
		return broadcast.Envelope{}
	}
}

func TestRelay_FansOutToOtherParticipants(t *testing.T) {
	t.Parallel()

	relay, url := newRelayServer(t)
	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")
	waitForParticipants(t, relay, 2)

	err := alice.Send(context.Background(), broadcast.Envelope{
		SenderID: "alice",
		Seq:      1,
		Payload:  broadcast.ScoreUpdate{PlayerID: "alice", Score: 60},
	})
	require.NoError(t, err)

	env := receive(t, bob)
	assert.Equal(t, broadcast.KindScoreUpdate, env.Kind)
	assert.Equal(t, "alice", env.SenderID)
	assert.Equal(t, uint64(1), env.Seq)
	assert.Equal(t, broadcast.ScoreUpdate{PlayerID: "alice", Score: 60}, env.Payload)

	select {
	case env := <-alice.Receive():
		t.Fatalf("sender received its own frame: %+v", env)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRelay_DropsForeignSender(t *testing.T) {
	t.Parallel()

	relay, url := newRelayServer(t)
	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")
	waitForParticipants(t, relay, 2)

	ctx := context.Background()
	require.NoError(t, alice.Send(ctx, broadcast.Envelope{
		SenderID: "mallory",
		Seq:      1,
		Payload:  broadcast.ScoreUpdate{PlayerID: "bob", Score: 1_000_000},
	}))
	require.NoError(t, alice.Send(ctx, broadcast.Envelope{
		SenderID: "alice",
		Seq:      2,
		Payload:  broadcast.ScoreUpdate{PlayerID: "alice", Score: 10},
	}))

	env := receive(t, bob)
	assert.Equal(t, "alice", env.SenderID)
	assert.Equal(t, uint64(2), env.Seq)
}

func TestRelay_AnnouncesDeparture(t *testing.T) {
	t.Parallel()

	relay, url := newRelayServer(t)
	alice := dial(t, url, "alice")
	bob := dial(t, url, "bob")
	waitForParticipants(t, relay, 2)

	require.NoError(t, alice.Close())

	env := receive(t, bob)
	assert.Equal(t, broadcast.KindPlayerLeft, env.Kind)
	assert.Equal(t, uint64(0), env.Seq)
	assert.Equal(t, broadcast.PlayerLeft{PlayerID: "alice"}, env.Payload)
	waitForParticipants(t, relay, 1)

	assert.ErrorIs(t, alice.Send(context.Background(), broadcast.Envelope{
		SenderID: "alice",
		Payload:  broadcast.PlayerLeft{PlayerID: "alice"},
	}), broadcast.ErrTransportClosed)
}

func TestRelay_RejectsMissingParticipant(t *testing.T) {
	t.Parallel()

	relay := NewRelay(logging.NewNop(), nil)
	req := httptest.NewRequest(http.MethodGet, "/v1/relay/s-1", nil)
	req.SetPathValue("sessionID", "s-1")
	rec := httptest.NewRecorder()

	relay.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
