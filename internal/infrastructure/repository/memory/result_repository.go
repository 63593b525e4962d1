package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/riskibarqy/point-farm/internal/domain/result"
)

type ResultRepository struct {
	mu        sync.RWMutex
	bySession map[string]map[string]result.Standing
}

func NewResultRepository() *ResultRepository {
	return &ResultRepository{bySession: make(map[string]map[string]result.Standing)}
}

// Save upserts the standing of one player in one session.
func (r *ResultRepository) Save(_ context.Context, standing result.Standing) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rows, ok := r.bySession[standing.SessionID]
	if !ok {
		rows = make(map[string]result.Standing)
		r.bySession[standing.SessionID] = rows
	}
	rows[standing.PlayerID] = standing
	return nil
}

func (r *ResultRepository) ListBySession(_ context.Context, sessionID string) ([]result.Standing, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.bySession[sessionID]
	out := make([]result.Standing, 0, len(rows))
	for _, row := range rows {
		out = append(out, row)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].PlayerID < out[j].PlayerID
	})
	return out, nil
}
