package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/player"
	"github.com/riskibarqy/point-farm/internal/platform/id"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
)

// PointLedger is the only writer of the local player's balance. Every
// change is appended to the transaction log before the balance moves.
type PointLedger struct {
	game   *GameContext
	repo   ledger.Repository
	ids    id.Generator
	logger *logging.Logger
	clock  atomic.Uint64
}

func NewPointLedger(game *GameContext, repo ledger.Repository, ids id.Generator, logger *logging.Logger) *PointLedger {
	if logger == nil {
		logger = logging.Default()
	}
	return &PointLedger{
		game:   game,
		repo:   repo,
		ids:    ids,
		logger: logger.Named("ledger"),
	}
}

// Award adds amount points to the local player.
func (l *PointLedger) Award(ctx context.Context, amount int64, source ledger.Source, description string) (player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PointLedger.Award")
	defer span.End()

	if amount <= 0 {
		return player.Player{}, fmt.Errorf("%w: %w: award %d", ErrInvalidInput, ledger.ErrInvalidAmount, amount)
	}

	current := l.game.CurrentPlayer()
	updated, err := l.apply(ctx, current, amount, ledger.TypeEarned, source, description)
	if err != nil {
		return player.Player{}, err
	}

	l.game.Notify(fmt.Sprintf("+%d pts: %s", amount, description))
	return updated, nil
}

// Deduct removes amount points. It fails without side effects when the
// balance would go negative.
func (l *PointLedger) Deduct(ctx context.Context, amount int64, source ledger.Source, description string) (player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.PointLedger.Deduct")
	defer span.End()

	if amount <= 0 {
		return player.Player{}, fmt.Errorf("%w: %w: deduct %d", ErrInvalidInput, ledger.ErrInvalidAmount, amount)
	}

	current := l.game.CurrentPlayer()
	if current.Points < amount {
		l.logger.WarnContext(ctx, "deduct rejected",
			"player_id", current.ID,
			"balance", current.Points,
			"amount", amount,
			"source", string(source),
		)
		return player.Player{}, fmt.Errorf("%w: balance=%d amount=%d", ledger.ErrInsufficientFunds, current.Points, amount)
	}

	return l.apply(ctx, current, -amount, ledger.TypeSpent, source, description)
}

// Balance returns the local player's current points.
func (l *PointLedger) Balance() int64 {
	return l.game.CurrentPlayer().Points
}

func (l *PointLedger) Transactions(ctx context.Context, playerID string) ([]ledger.Transaction, error) {
	playerID = strings.TrimSpace(playerID)
	if playerID == "" {
		playerID = l.game.LocalPlayerID()
	}
	items, err := l.repo.ListByPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return items, nil
}

// Verify checks that the local balance equals the sum of its transactions.
func (l *PointLedger) Verify(ctx context.Context) error {
	current := l.game.CurrentPlayer()
	items, err := l.repo.ListByPlayer(ctx, current.ID)
	if err != nil {
		return fmt.Errorf("list transactions: %w", err)
	}
	if sum := ledger.Sum(items); sum != current.Points {
		return fmt.Errorf("%w: balance=%d sum=%d", ledger.ErrBalanceMismatch, current.Points, sum)
	}
	return nil
}

func (l *PointLedger) apply(ctx context.Context, current player.Player, signed int64, kind ledger.Type, source ledger.Source, description string) (player.Player, error) {
	txID, err := l.ids.NewID()
	if err != nil {
		return player.Player{}, fmt.Errorf("generate transaction id: %w", err)
	}

	tx := ledger.Transaction{
		ID:          txID,
		PlayerID:    current.ID,
		Amount:      signed,
		Source:      source,
		Description: strings.TrimSpace(description),
		Timestamp:   l.clock.Add(1),
		Type:        kind,
	}
	if err := tx.Validate(); err != nil {
		return player.Player{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := l.repo.Append(ctx, tx); err != nil {
		if errors.Is(err, ledger.ErrDuplicateTransaction) {
			return player.Player{}, fmt.Errorf("%w: %v", ErrInvalidState, err)
		}
		return player.Player{}, fmt.Errorf("append transaction: %w", err)
	}

	updated := current.Clone()
	updated.Points += signed
	if err := l.game.UpdateCurrentPlayer(updated); err != nil {
		return player.Player{}, fmt.Errorf("update player balance: %w", err)
	}

	l.logger.DebugContext(ctx, "ledger transaction applied",
		"player_id", current.ID,
		"amount", signed,
		"source", string(source),
		"balance", updated.Points,
	)
	return l.game.CurrentPlayer(), nil
}
