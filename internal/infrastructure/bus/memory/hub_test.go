package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
)

func receive(t *testing.T, e *Endpoint) broadcast.Envelope {
	t.Helper()
	select {
	case env, ok := <-e.Receive():
		if !ok {
			t.Fatalf("inbox of %s closed", e.id)
		}
		return env
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for envelope on %s", e.id)
	}
	return broadcast.Envelope{}
}

func TestHub_DeliversToEveryoneButSender(t *testing.T) {
	t.Parallel()

	hub := NewHub(8, nil)
	a, err := hub.Connect("a")
	if err != nil {
		t.Fatalf("connect a: %v", err)
	}
	b, _ := hub.Connect("b")
	c, _ := hub.Connect("c")

	for seq := uint64(1); seq <= 3; seq++ {
		env := broadcast.Envelope{Kind: broadcast.KindScoreUpdate, Seq: seq, Payload: broadcast.ScoreUpdate{PlayerID: "a", Score: int64(seq)}}
		if err := a.Send(context.Background(), env); err != nil {
			t.Fatalf("send: %v", err)
		}
	}

	for _, e := range []*Endpoint{b, c} {
		for want := uint64(1); want <= 3; want++ {
			got := receive(t, e)
			if got.Seq != want || got.SenderID != "a" {
				t.Fatalf("endpoint %s: expected seq %d from a, got %+v", e.id, want, got)
			}
		}
	}
	select {
	case env := <-a.Receive():
		t.Fatalf("sender received its own envelope: %+v", env)
	default:
	}
}

func TestHub_CloseAnnouncesDeparture(t *testing.T) {
	t.Parallel()

	hub := NewHub(8, nil)
	a, _ := hub.Connect("a")
	b, _ := hub.Connect("b")

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	got := receive(t, b)
	left, ok := got.Payload.(broadcast.PlayerLeft)
	if !ok || left.PlayerID != "a" || got.SenderID != "a" {
		t.Fatalf("expected playerLeft for a, got %+v", got)
	}
	if err := a.Send(context.Background(), broadcast.Envelope{Payload: broadcast.PlayerLeft{PlayerID: "a"}}); !errors.Is(err, broadcast.ErrTransportClosed) {
		t.Fatalf("expected ErrTransportClosed, got %v", err)
	}
	if _, ok := <-a.Receive(); ok {
		t.Fatalf("expected closed inbox")
	}
	if got := hub.Participants(); len(got) != 1 || got[0] != "b" {
		t.Fatalf("unexpected participants: %v", got)
	}
}

func TestHub_RejectsDuplicateParticipant(t *testing.T) {
	t.Parallel()

	hub := NewHub(1, nil)
	if _, err := hub.Connect("a"); err != nil {
		t.Fatalf("connect: %v", err)
	}
	if _, err := hub.Connect("a"); err == nil {
		t.Fatalf("expected duplicate error")
	}
}

func TestHub_SendRespectsContextWhenInboxFull(t *testing.T) {
	t.Parallel()

	hub := NewHub(1, nil)
	a, _ := hub.Connect("a")
	_, _ = hub.Connect("b")

	if err := a.Send(context.Background(), broadcast.Envelope{Seq: 1, Payload: broadcast.ScoreUpdate{}}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := a.Send(ctx, broadcast.Envelope{Seq: 2, Payload: broadcast.ScoreUpdate{}}); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
