package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	"github.com/riskibarqy/point-farm/internal/domain/market"
	"github.com/riskibarqy/point-farm/internal/domain/task"
	busmemory "github.com/riskibarqy/point-farm/internal/infrastructure/bus/memory"
	"github.com/riskibarqy/point-farm/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/point-farm/internal/platform/id"
)

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func newStepClock() *stepClock {
	return &stepClock{now: time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)}
}

// Now moves forward one millisecond per call so join order is strict.
func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func testSettings(mode market.Mode) GameSettings {
	s := DefaultGameSettings()
	s.Mode = mode
	s.TickRate = 10
	s.TimeLimitFrames = 100
	s.NotificationTTLFrames = 5
	s.AdCooldownFrames = 2
	s.MarketInitialDelayFrames = 1
	s.MarketIntervalFrames = 3
	s.RosterSyncFrames = 3
	s.MarketSeed = 42
	return s
}

type testPeer struct {
	s       *Session
	ep      *busmemory.Endpoint
	results *memory.ResultRepository
}

func newTestPeer(t *testing.T, playerID string, settings GameSettings, clock *stepClock, hub *busmemory.Hub) *testPeer {
	t.Helper()

	var transport broadcast.Transport
	var ep *busmemory.Endpoint
	if hub != nil {
		var err error
		ep, err = hub.Connect(playerID)
		if err != nil {
			t.Fatalf("connect %s: %v", playerID, err)
		}
		transport = ep
	}

	results := memory.NewResultRepository()
	s, err := NewSession(SessionConfig{
		SessionID:  "session-1",
		PlayerID:   playerID,
		PlayerName: playerID,
	}, SessionDeps{
		Settings:      settings,
		LedgerRepo:    memory.NewLedgerRepository(),
		AffiliateRepo: memory.NewAffiliateRepository(),
		ResultRepo:    results,
		Transport:     transport,
		IDs:           id.NewSequenceGenerator(playerID),
	})
	if err != nil {
		t.Fatalf("new session %s: %v", playerID, err)
	}
	if clock != nil {
		s.game.now = clock.Now
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return &testPeer{s: s, ep: ep, results: results}
}

func (p *testPeer) do(t *testing.T, fn func(ctx context.Context) error) {
	t.Helper()
	if err := p.s.Do(context.Background(), fn); err != nil {
		t.Fatalf("%s: %v", p.s.game.LocalPlayerID(), err)
	}
}

func (p *testPeer) join(t *testing.T) {
	t.Helper()
	if err := p.s.Join(context.Background()); err != nil {
		t.Fatalf("join: %v", err)
	}
}

func (p *testPeer) steps(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if err := p.s.Step(context.Background()); err != nil {
			t.Fatalf("step %d: %v", i, err)
		}
	}
}

// pump delivers queued envelopes until every inbox is empty.
func pump(t *testing.T, peers ...*testPeer) {
	t.Helper()
	for round := 0; round < 100; round++ {
		delivered := false
		for _, p := range peers {
		drain:
			for {
				select {
				case env, ok := <-p.ep.Receive():
					if !ok {
						break drain
					}
					delivered = true
					if err := p.s.HandleEnvelope(context.Background(), env); err != nil {
						t.Logf("%s rejected %s from %s: %v", p.s.game.LocalPlayerID(), env.Kind, env.SenderID, err)
					}
				default:
					break drain
				}
			}
		}
		if !delivered {
			return
		}
	}
	t.Fatalf("message exchange did not settle")
}

// reachShopping drives the local player to SHOPPING with 190 points and
// no market tick: profile 50, ad 10, first ad 30, survey 100.
func reachShopping(t *testing.T, p *testPeer) {
	t.Helper()
	p.do(t, func(ctx context.Context) error {
		if _, err := p.s.Tasks().UpdateProfile(ctx, p.s.cfg.PlayerName, "cat"); err != nil {
			return err
		}
		if _, err := p.s.Tasks().ClickAd(ctx); err != nil {
			return err
		}
		_, err := p.s.Tasks().CompleteTask(ctx, task.Survey)
		return err
	})
}
