package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/riskibarqy/point-farm/internal/domain/phase"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
)

// PhaseMachine advances the game phase whenever the local player changes
// and forces settlement when the countdown ends.
type PhaseMachine struct {
	game   *GameContext
	rules  phase.Rules
	logger *logging.Logger

	mu                 sync.Mutex
	settlementComplete bool
	unsubscribe        []func()
}

func NewPhaseMachine(game *GameContext, rules phase.Rules, logger *logging.Logger) *PhaseMachine {
	if logger == nil {
		logger = logging.Default()
	}
	m := &PhaseMachine{
		game:   game,
		rules:  rules,
		logger: logger.Named("phase"),
	}
	m.unsubscribe = append(m.unsubscribe,
		game.Subscribe(EventPlayerUpdated, func(payload any) {
			event, ok := payload.(PlayerUpdatedEvent)
			if !ok || !event.Local {
				return
			}
			m.Evaluate(context.Background())
		}),
		game.Subscribe(EventTimeEnded, func(any) {
			m.ForceSettlement(context.Background())
		}),
	)
	return m
}

func (m *PhaseMachine) Current() phase.Phase {
	return m.game.Phase()
}

// Evaluate steps through every consecutive phase whose entry condition
// holds and returns the phases entered, in order.
func (m *PhaseMachine) Evaluate(ctx context.Context) []phase.Phase {
	entered := make([]phase.Phase, 0)
	for {
		current := m.game.Phase()
		next, ok := current.Next()
		if !ok {
			return entered
		}
		transition, ok := m.rules.Into(next)
		if !ok || !transition.Condition.Satisfied(m.snapshot()) {
			return entered
		}
		if err := m.game.SetPhase(next, false); err != nil {
			m.logger.WarnContext(ctx, "phase advance rejected", "target", next.String(), "error", err)
			return entered
		}
		entered = append(entered, next)
		if transition.Notification != "" {
			m.game.Notify(transition.Notification)
		}
	}
}

// ForceSettlement jumps to SETTLEMENT from any earlier phase.
func (m *PhaseMachine) ForceSettlement(ctx context.Context) {
	current := m.game.Phase()
	if current >= phase.Settlement {
		return
	}
	if err := m.game.SetPhase(phase.Settlement, true); err != nil {
		m.logger.WarnContext(ctx, "forced settlement rejected", "from", current.String(), "error", err)
		return
	}
	if transition, ok := m.rules.Into(phase.Settlement); ok && transition.Notification != "" {
		m.game.Notify(transition.Notification)
	}
}

// CompleteSettlement records that the payout ran and lets the machine
// reach ENDED.
func (m *PhaseMachine) CompleteSettlement(ctx context.Context) {
	m.mu.Lock()
	m.settlementComplete = true
	m.mu.Unlock()
	m.Evaluate(ctx)
}

func (m *PhaseMachine) IsUnlocked(f phase.Feature) bool {
	_, ok := m.rules.UnlockedAt(m.game.Phase())[f]
	return ok
}

// Require fails with phase.ErrFeatureLocked unless f is unlocked.
func (m *PhaseMachine) Require(f phase.Feature) error {
	if !m.IsUnlocked(f) {
		return fmt.Errorf("%w: %s in %s", phase.ErrFeatureLocked, f, m.game.Phase())
	}
	return nil
}

func (m *PhaseMachine) Close() {
	for _, fn := range m.unsubscribe {
		fn()
	}
	m.unsubscribe = nil
}

func (m *PhaseMachine) snapshot() phase.Snapshot {
	m.mu.Lock()
	complete := m.settlementComplete
	m.mu.Unlock()
	return phase.Snapshot{
		Player:             m.game.CurrentPlayer(),
		RemainingFrames:    m.game.RemainingFrames(),
		SettlementComplete: complete,
	}
}
