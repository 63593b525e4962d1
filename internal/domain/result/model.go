package result

import (
	"context"
	"time"
)

// Standing is one row of the final ranking.
type Standing struct {
	SessionID       string
	PlayerID        string
	PlayerName      string
	Rank            int
	FinalPoints     int64
	SettlementValue int64
	ItemCount       int
	RecordedAt      time.Time
}

// Repository archives final standings.
type Repository interface {
	Save(ctx context.Context, standing Standing) error
	ListBySession(ctx context.Context, sessionID string) ([]Standing, error)
}
