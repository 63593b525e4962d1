package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
)

const insertLedgerTransactionQuery = `
INSERT INTO ledger_transactions (public_id, player_id, amount, source, description, sequence, tx_type)
VALUES (:public_id, :player_id, :amount, :source, :description, :sequence, :tx_type)`

const selectLedgerTransactionsByPlayerQuery = `
SELECT id, public_id, player_id, amount, source, description, sequence, tx_type, created_at
FROM ledger_transactions
WHERE player_id = $1
ORDER BY sequence, id`

// LedgerRepository archives the append-only transaction log.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

func (r *LedgerRepository) Append(ctx context.Context, tx ledger.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}

	row := ledgerTransactionTableModel{
		PublicID:    tx.ID,
		PlayerID:    tx.PlayerID,
		Amount:      tx.Amount,
		Source:      string(tx.Source),
		Description: tx.Description,
		Sequence:    int64(tx.Timestamp),
		TxType:      string(tx.Type),
	}
	if _, err := r.db.NamedExecContext(ctx, insertLedgerTransactionQuery, row); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: id=%s", ledger.ErrDuplicateTransaction, tx.ID)
		}
		return fmt.Errorf("insert ledger transaction id=%s: %w", tx.ID, err)
	}
	return nil
}

func (r *LedgerRepository) ListByPlayer(ctx context.Context, playerID string) ([]ledger.Transaction, error) {
	var rows []ledgerTransactionTableModel
	if err := r.db.SelectContext(ctx, &rows, selectLedgerTransactionsByPlayerQuery, playerID); err != nil {
		return nil, fmt.Errorf("select ledger transactions by player: %w", err)
	}

	out := make([]ledger.Transaction, 0, len(rows))
	for _, row := range rows {
		out = append(out, ledger.Transaction{
			ID:          row.PublicID,
			PlayerID:    row.PlayerID,
			Amount:      row.Amount,
			Source:      ledger.Source(row.Source),
			Description: row.Description,
			Timestamp:   uint64(row.Sequence),
			Type:        ledger.Type(row.TxType),
		})
	}
	return out, nil
}
