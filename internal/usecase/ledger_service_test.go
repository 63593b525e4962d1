package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/market"
	"github.com/riskibarqy/point-farm/internal/domain/player"
	"github.com/riskibarqy/point-farm/internal/infrastructure/repository/memory"
	"github.com/riskibarqy/point-farm/internal/platform/id"
	"pgregory.net/rapid"
)

func newTestLedger(t interface{ Fatalf(string, ...any) }) (*GameContext, *PointLedger, *memory.LedgerRepository) {
	game := NewGameContext(testSettings(market.ModeSolo), nil, nil, nil)
	if _, err := game.AssignLocalID("p1", player.Profile{Name: "Alice"}); err != nil {
		t.Fatalf("assign id: %v", err)
	}
	repo := memory.NewLedgerRepository()
	return game, NewPointLedger(game, repo, id.NewSequenceGenerator("tx"), nil), repo
}

func TestPointLedger_AwardAndDeduct(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	game, pointLedger, repo := newTestLedger(t)

	if _, err := pointLedger.Award(ctx, 120, ledger.SourceTask, "task: profile"); err != nil {
		t.Fatalf("award: %v", err)
	}
	got, err := pointLedger.Deduct(ctx, 20, ledger.SourceShop, "shop: manga")
	if err != nil {
		t.Fatalf("deduct: %v", err)
	}
	if got.Points != 100 || game.CurrentPlayer().Points != 100 {
		t.Fatalf("expected balance 100, got %d", got.Points)
	}

	txs, _ := repo.ListByPlayer(ctx, "p1")
	if len(txs) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(txs))
	}
	if txs[0].Type != ledger.TypeEarned || txs[1].Type != ledger.TypeSpent || txs[1].Amount != -20 {
		t.Fatalf("unexpected transactions: %+v", txs)
	}
	if txs[0].Timestamp >= txs[1].Timestamp {
		t.Fatalf("expected increasing timestamps: %+v", txs)
	}
	if err := pointLedger.Verify(ctx); err != nil {
		t.Fatalf("verify: %v", err)
	}
	if len(game.Notifications()) != 1 {
		t.Fatalf("expected one award notification, got %d", len(game.Notifications()))
	}
}

func TestPointLedger_RejectsWithoutSideEffects(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	game, pointLedger, repo := newTestLedger(t)
	if _, err := pointLedger.Award(ctx, 30, ledger.SourceAd, "ad click"); err != nil {
		t.Fatalf("award: %v", err)
	}

	tests := []struct {
		name    string
		run     func() error
		wantErr error
	}{
		{
			name:    "insufficient funds",
			run:     func() error { _, err := pointLedger.Deduct(ctx, 31, ledger.SourceShop, "too much"); return err },
			wantErr: ledger.ErrInsufficientFunds,
		},
		{
			name:    "zero award",
			run:     func() error { _, err := pointLedger.Award(ctx, 0, ledger.SourceTask, "nothing"); return err },
			wantErr: ledger.ErrInvalidAmount,
		},
		{
			name:    "negative deduct",
			run:     func() error { _, err := pointLedger.Deduct(ctx, -5, ledger.SourceShop, "refund"); return err },
			wantErr: ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.run(); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if game.CurrentPlayer().Points != 30 {
				t.Fatalf("balance changed: %d", game.CurrentPlayer().Points)
			}
			txs, _ := repo.ListByPlayer(ctx, "p1")
			if len(txs) != 1 {
				t.Fatalf("transaction log changed: %d entries", len(txs))
			}
		})
	}
}

func TestPointLedger_BalanceAlwaysMatchesLog(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		ctx := context.Background()
		game, pointLedger, _ := newTestLedger(rt)

		ops := rapid.SliceOfN(rapid.Int64Range(-300, 300), 1, 40).Draw(rt, "ops")
		for _, amount := range ops {
			switch {
			case amount > 0:
				if _, err := pointLedger.Award(ctx, amount, ledger.SourceTask, "award"); err != nil {
					rt.Fatalf("award %d: %v", amount, err)
				}
			case amount < 0:
				before := game.CurrentPlayer().Points
				_, err := pointLedger.Deduct(ctx, -amount, ledger.SourceShop, "deduct")
				if before < -amount && !errors.Is(err, ledger.ErrInsufficientFunds) {
					rt.Fatalf("expected insufficient funds for %d with balance %d, got %v", -amount, before, err)
				}
			}

			if game.CurrentPlayer().Points < 0 {
				rt.Fatalf("negative balance %d", game.CurrentPlayer().Points)
			}
			if err := pointLedger.Verify(ctx); err != nil {
				rt.Fatalf("verify: %v", err)
			}
		}
	})
}
