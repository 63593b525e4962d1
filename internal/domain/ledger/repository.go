package ledger

import "context"

// Repository stores the append-only transaction log.
type Repository interface {
	Append(ctx context.Context, tx Transaction) error
	ListByPlayer(ctx context.Context, playerID string) ([]Transaction, error)
}
