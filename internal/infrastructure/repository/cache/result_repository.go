package cache

import (
	"context"

	"github.com/riskibarqy/point-farm/internal/domain/result"
	basecache "github.com/riskibarqy/point-farm/internal/platform/cache"
)

const standingsKeyPrefix = "standings:session:"

// ResultRepository caches archived standings per session in front of a
// slower store. Saves invalidate the session's entry.
type ResultRepository struct {
	next  result.Repository
	cache *basecache.Store[[]result.Standing]
}

func NewResultRepository(next result.Repository, cache *basecache.Store[[]result.Standing]) *ResultRepository {
	return &ResultRepository{next: next, cache: cache}
}

func (r *ResultRepository) Save(ctx context.Context, standing result.Standing) error {
	if err := r.next.Save(ctx, standing); err != nil {
		return err
	}
	r.cache.Delete(ctx, standingsKeyPrefix+standing.SessionID)
	return nil
}

func (r *ResultRepository) ListBySession(ctx context.Context, sessionID string) ([]result.Standing, error) {
	items, err := r.cache.GetOrLoad(ctx, standingsKeyPrefix+sessionID, func(ctx context.Context) ([]result.Standing, error) {
		items, err := r.next.ListBySession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return append([]result.Standing(nil), items...), nil
	})
	if err != nil {
		return nil, err
	}
	return append([]result.Standing(nil), items...), nil
}
