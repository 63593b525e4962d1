package usecase

import (
	"testing"

	"github.com/riskibarqy/point-farm/internal/domain/market"
	"github.com/riskibarqy/point-farm/internal/domain/player"
)

func TestGameContext_TimeEndsExactlyOnce(t *testing.T) {
	t.Parallel()

	settings := testSettings(market.ModeSolo)
	settings.TickRate = 2
	settings.TimeLimitFrames = 4
	game := NewGameContext(settings, nil, nil, nil)

	ended := 0
	var seconds []int64
	game.Subscribe(EventTimeEnded, func(any) { ended++ })
	game.Subscribe(EventTimeUpdated, func(payload any) {
		seconds = append(seconds, payload.(TimeUpdatedEvent).RemainingSeconds)
	})

	want := []bool{true, true, true, false, false, false}
	for i, expected := range want {
		if got := game.DecrementRemainingFrame(); got != expected {
			t.Fatalf("decrement %d: expected %v, got %v", i, expected, got)
		}
	}
	if ended != 1 {
		t.Fatalf("expected one timeEnded, got %d", ended)
	}
	if game.RemainingFrames() != 0 {
		t.Fatalf("remaining frames went below zero: %d", game.RemainingFrames())
	}
	if len(seconds) != 2 || seconds[0] != 1 || seconds[1] != 0 {
		t.Fatalf("unexpected second updates: %v", seconds)
	}
}

func TestGameContext_NotificationsExpire(t *testing.T) {
	t.Parallel()

	settings := testSettings(market.ModeSolo)
	settings.NotificationTTLFrames = 2
	game := NewGameContext(settings, nil, nil, nil)

	removed := 0
	game.Subscribe(EventNotificationRemoved, func(any) { removed++ })

	game.Notify("hello")
	if len(game.Notifications()) != 1 {
		t.Fatalf("expected one notification")
	}
	game.Scheduler().Advance()
	if len(game.Notifications()) != 1 {
		t.Fatalf("notification expired early")
	}
	game.Scheduler().Advance()
	if len(game.Notifications()) != 0 || removed != 1 {
		t.Fatalf("expected notification dismissed, have %d removed %d", len(game.Notifications()), removed)
	}
}

func TestGameContext_RemoteWritesCannotTouchLocalRecord(t *testing.T) {
	t.Parallel()

	game := NewGameContext(testSettings(market.ModeShared), nil, nil, nil)
	if _, err := game.AssignLocalID("me", player.Profile{Name: "Me"}); err != nil {
		t.Fatalf("assign: %v", err)
	}

	impostor := player.New("me", player.Profile{Name: "Evil"}, game.Now())
	impostor.Points = 9999
	if err := game.ApplyRemotePlayer(impostor); err == nil {
		t.Fatalf("expected remote write to local record to fail")
	}
	if got := game.CurrentPlayer(); got.Points != 0 || got.Profile.Name != "Me" {
		t.Fatalf("local record changed: %+v", got)
	}

	other := player.New("other", player.Profile{Name: "Other"}, game.Now())
	if err := game.UpdateCurrentPlayer(other); err == nil {
		t.Fatalf("expected local update of another id to fail")
	}
}

func TestGameContext_AuthorityIsEarliestJoiner(t *testing.T) {
	t.Parallel()

	clock := newStepClock()
	game := NewGameContext(testSettings(market.ModeShared), nil, nil, nil)
	early := clock.Now()
	game.now = clock.Now
	if _, err := game.AssignLocalID("zed", player.Profile{Name: "Zed"}); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if game.AuthorityID() != "zed" {
		t.Fatalf("expected zed to be authority alone, got %s", game.AuthorityID())
	}

	if _, err := game.AddPlayer(player.New("amy", player.Profile{Name: "Amy"}, early)); err != nil {
		t.Fatalf("add: %v", err)
	}
	if game.AuthorityID() != "amy" {
		t.Fatalf("expected amy (joined earlier), got %s", game.AuthorityID())
	}
	game.RemovePlayer("amy")
	if game.AuthorityID() != "zed" {
		t.Fatalf("expected handover to zed, got %s", game.AuthorityID())
	}
}
