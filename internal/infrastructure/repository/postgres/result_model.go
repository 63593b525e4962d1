package postgres

import "time"

type standingTableModel struct {
	ID              int64     `db:"id"`
	SessionID       string    `db:"session_id"`
	PlayerID        string    `db:"player_id"`
	PlayerName      string    `db:"player_name"`
	Rank            int       `db:"rank"`
	FinalPoints     int64     `db:"final_points"`
	SettlementValue int64     `db:"settlement_value"`
	ItemCount       int       `db:"item_count"`
	RecordedAt      time.Time `db:"recorded_at"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}
