package postgres

import "time"

type ledgerTransactionTableModel struct {
	ID          int64     `db:"id"`
	PublicID    string    `db:"public_id"`
	PlayerID    string    `db:"player_id"`
	Amount      int64     `db:"amount"`
	Source      string    `db:"source"`
	Description string    `db:"description"`
	Sequence    int64     `db:"sequence"`
	TxType      string    `db:"tx_type"`
	CreatedAt   time.Time `db:"created_at"`
}
