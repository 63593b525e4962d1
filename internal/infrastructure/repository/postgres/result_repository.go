package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/riskibarqy/point-farm/internal/domain/result"
)

const upsertStandingQuery = `
INSERT INTO final_standings (
	session_id, player_id, player_name, rank, final_points, settlement_value, item_count, recorded_at
) VALUES (
	:session_id, :player_id, :player_name, :rank, :final_points, :settlement_value, :item_count, :recorded_at
)
ON CONFLICT (session_id, player_id) DO UPDATE SET
	player_name = EXCLUDED.player_name,
	rank = EXCLUDED.rank,
	final_points = EXCLUDED.final_points,
	settlement_value = EXCLUDED.settlement_value,
	item_count = EXCLUDED.item_count,
	recorded_at = EXCLUDED.recorded_at,
	updated_at = NOW()`

const selectStandingsBySessionQuery = `
SELECT id, session_id, player_id, player_name, rank, final_points, settlement_value, item_count,
	recorded_at, created_at, updated_at
FROM final_standings
WHERE session_id = $1
ORDER BY rank, player_id`

type ResultRepository struct {
	db *sqlx.DB
}

func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

func (r *ResultRepository) Save(ctx context.Context, standing result.Standing) error {
	if strings.TrimSpace(standing.SessionID) == "" || strings.TrimSpace(standing.PlayerID) == "" {
		return fmt.Errorf("save standing: session id and player id are required")
	}

	row := standingTableModel{
		SessionID:       standing.SessionID,
		PlayerID:        standing.PlayerID,
		PlayerName:      standing.PlayerName,
		Rank:            standing.Rank,
		FinalPoints:     standing.FinalPoints,
		SettlementValue: standing.SettlementValue,
		ItemCount:       standing.ItemCount,
		RecordedAt:      standing.RecordedAt.UTC(),
	}
	if _, err := r.db.NamedExecContext(ctx, upsertStandingQuery, row); err != nil {
		return fmt.Errorf("upsert standing session=%s player=%s: %w", standing.SessionID, standing.PlayerID, err)
	}
	return nil
}

func (r *ResultRepository) ListBySession(ctx context.Context, sessionID string) ([]result.Standing, error) {
	var rows []standingTableModel
	if err := r.db.SelectContext(ctx, &rows, selectStandingsBySessionQuery, sessionID); err != nil {
		return nil, fmt.Errorf("select standings by session: %w", err)
	}

	out := make([]result.Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, result.Standing{
			SessionID:       row.SessionID,
			PlayerID:        row.PlayerID,
			PlayerName:      row.PlayerName,
			Rank:            row.Rank,
			FinalPoints:     row.FinalPoints,
			SettlementValue: row.SettlementValue,
			ItemCount:       row.ItemCount,
			RecordedAt:      row.RecordedAt,
		})
	}
	return out, nil
}
