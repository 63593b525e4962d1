package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/result"
	resultmock "github.com/riskibarqy/point-farm/internal/mocks/domain/result"
	basecache "github.com/riskibarqy/point-farm/internal/platform/cache"
	"github.com/stretchr/testify/mock"
)

func TestResultRepository_ListBySessionIsCachedUntilSave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	next := resultmock.NewRepository(t)
	first := []result.Standing{{SessionID: "s-1", PlayerID: "p1", Rank: 1}}
	second := []result.Standing{
		{SessionID: "s-1", PlayerID: "p1", Rank: 1},
		{SessionID: "s-1", PlayerID: "p2", Rank: 2},
	}
	next.On("ListBySession", mock.Anything, "s-1").Return(first, nil).Once()
	next.On("Save", mock.Anything, second[1]).Return(nil).Once()
	next.On("ListBySession", mock.Anything, "s-1").Return(second, nil).Once()

	repo := NewResultRepository(next, basecache.NewStore[[]result.Standing](time.Minute))

	for i := 0; i < 3; i++ {
		got, err := repo.ListBySession(ctx, "s-1")
		if err != nil {
			t.Fatalf("list %d: %v", i, err)
		}
		if len(got) != 1 {
			t.Fatalf("expected cached standing, got %+v", got)
		}
	}

	if err := repo.Save(ctx, second[1]); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := repo.ListBySession(ctx, "s-1")
	if err != nil {
		t.Fatalf("list after save: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected reload after save, got %+v", got)
	}
}

func TestResultRepository_SaveFailureKeepsCache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	next := resultmock.NewRepository(t)
	cached := []result.Standing{{SessionID: "s-1", PlayerID: "p1", Rank: 1}}
	next.On("ListBySession", mock.Anything, "s-1").Return(cached, nil).Once()
	next.On("Save", mock.Anything, mock.Anything).Return(errors.New("timeout")).Once()

	repo := NewResultRepository(next, basecache.NewStore[[]result.Standing](time.Minute))
	if _, err := repo.ListBySession(ctx, "s-1"); err != nil {
		t.Fatalf("list: %v", err)
	}
	if err := repo.Save(ctx, result.Standing{SessionID: "s-1", PlayerID: "p2"}); err == nil {
		t.Fatalf("expected save error")
	}
	if _, err := repo.ListBySession(ctx, "s-1"); err != nil {
		t.Fatalf("list from cache: %v", err)
	}
}
