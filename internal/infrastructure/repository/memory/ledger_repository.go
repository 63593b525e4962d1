package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/riskibarqy/point-farm/internal/domain/ledger"
)

// LedgerRepository keeps transactions in append order per player.
type LedgerRepository struct {
	mu       sync.RWMutex
	byPlayer map[string][]ledger.Transaction
	ids      map[string]struct{}
}

func NewLedgerRepository() *LedgerRepository {
	return &LedgerRepository{
		byPlayer: make(map[string][]ledger.Transaction),
		ids:      make(map[string]struct{}),
	}
}

func (r *LedgerRepository) Append(_ context.Context, tx ledger.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.ids[tx.ID]; exists {
		return fmt.Errorf("%w: %s", ledger.ErrDuplicateTransaction, tx.ID)
	}
	r.ids[tx.ID] = struct{}{}
	r.byPlayer[tx.PlayerID] = append(r.byPlayer[tx.PlayerID], tx)
	return nil
}

func (r *LedgerRepository) ListByPlayer(_ context.Context, playerID string) ([]ledger.Transaction, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := r.byPlayer[playerID]
	out := make([]ledger.Transaction, 0, len(items))
	out = append(out, items...)
	return out, nil
}
