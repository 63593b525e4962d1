package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/riskibarqy/point-farm/internal/domain/player"
	"github.com/riskibarqy/point-farm/internal/domain/result"
	"github.com/riskibarqy/point-farm/internal/platform/cache"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/riskibarqy/point-farm/internal/platform/resilience"
)

const leaderboardCacheKeyPrefix = "leaderboard:"

// ArchiveResult counts how many standings reached the result store.
type ArchiveResult struct {
	Saved  int
	Failed int
}

type RankingServiceDeps struct {
	SessionID  string
	Game       *GameContext
	Settlement *SettlementService
	Repo       result.Repository
	Cache      *cache.Store[[]result.Standing]
	Breaker    *resilience.CircuitBreaker
	Workers    int
	Logger     *logging.Logger
}

// RankingService orders the roster by points and archives the final
// standings when the game ends.
type RankingService struct {
	sessionID   string
	game        *GameContext
	settlement  *SettlementService
	repo        result.Repository
	cache       *cache.Store[[]result.Standing]
	breaker     *resilience.CircuitBreaker
	workers     int
	logger      *logging.Logger
	unsubscribe func()
}

func NewRankingService(deps RankingServiceDeps) *RankingService {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	workers := deps.Workers
	if workers < 1 {
		workers = 4
	}
	store := deps.Cache
	if store == nil {
		store = cache.NewStore[[]result.Standing](time.Second)
	}

	s := &RankingService{
		sessionID:  strings.TrimSpace(deps.SessionID),
		game:       deps.Game,
		settlement: deps.Settlement,
		repo:       deps.Repo,
		cache:      store,
		breaker:    deps.Breaker,
		workers:    workers,
		logger:     logger.Named("ranking"),
	}
	s.unsubscribe = deps.Game.Subscribe(EventPlayerUpdated, func(any) {
		s.cache.DeletePrefix(context.Background(), leaderboardCacheKeyPrefix)
	})
	return s
}

// Leaderboard ranks every known player. Equal scores share a rank.
func (s *RankingService) Leaderboard(ctx context.Context) ([]result.Standing, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RankingService.Leaderboard")
	defer span.End()

	items, err := s.cache.GetOrLoad(ctx, leaderboardCacheKeyPrefix+s.sessionID, func(context.Context) ([]result.Standing, error) {
		return s.rank(s.game.Players()), nil
	})
	if err != nil {
		return nil, err
	}
	return append([]result.Standing(nil), items...), nil
}

func (s *RankingService) rank(players []player.Player) []result.Standing {
	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Points != players[j].Points {
			return players[i].Points > players[j].Points
		}
		if players[i].Profile.Name != players[j].Profile.Name {
			return players[i].Profile.Name < players[j].Profile.Name
		}
		return players[i].ID < players[j].ID
	})

	localID := s.game.LocalPlayerID()
	var settlementValue int64
	if s.settlement != nil {
		if summary, done := s.settlement.Result(); done {
			settlementValue = summary.Total
		}
	}

	now := s.game.Now()
	out := make([]result.Standing, 0, len(players))
	for i, p := range players {
		rank := i + 1
		if i > 0 && players[i-1].Points == p.Points {
			rank = out[i-1].Rank
		}
		row := result.Standing{
			SessionID:   s.sessionID,
			PlayerID:    p.ID,
			PlayerName:  p.Profile.Name,
			Rank:        rank,
			FinalPoints: p.Points,
			ItemCount:   p.ItemCount(),
			RecordedAt:  now,
		}
		if p.ID == localID {
			row.SettlementValue = settlementValue
		}
		out = append(out, row)
	}
	return out
}

// Archive saves the local player's standing and every mirrored standing
// through a bounded worker pool. Each save goes through the circuit
// breaker when one is configured.
func (s *RankingService) Archive(ctx context.Context) (ArchiveResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.RankingService.Archive")
	defer span.End()

	if s.repo == nil {
		return ArchiveResult{}, fmt.Errorf("%w: result repository is not configured", ErrDependencyUnavailable)
	}

	standings := s.rank(s.game.Players())
	if len(standings) == 0 {
		return ArchiveResult{}, nil
	}

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return ArchiveResult{}, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var (
		saved   atomic.Int32
		failed  atomic.Int32
		mu      sync.Mutex
		errs    []error
		workers sync.WaitGroup
	)
	for _, standing := range standings {
		standing := standing
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()

			err := s.breaker.Guard(func() error {
				return s.repo.Save(ctx, standing)
			})
			if err != nil {
				failed.Add(1)
				mu.Lock()
				errs = append(errs, fmt.Errorf("save standing %s: %w", standing.PlayerID, err))
				mu.Unlock()
				return
			}
			saved.Add(1)
		}); err != nil {
			workers.Done()
			return ArchiveResult{}, fmt.Errorf("submit task to worker pool: %w", err)
		}
	}
	workers.Wait()

	out := ArchiveResult{Saved: int(saved.Load()), Failed: int(failed.Load())}
	s.logger.InfoContext(ctx, "standings archived",
		"session_id", s.sessionID,
		"saved", out.Saved,
		"failed", out.Failed,
	)
	if len(errs) > 0 {
		return out, errors.Join(errs...)
	}
	return out, nil
}

// History returns archived standings for the session.
func (s *RankingService) History(ctx context.Context) ([]result.Standing, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("%w: result repository is not configured", ErrDependencyUnavailable)
	}
	items, err := s.repo.ListBySession(ctx, s.sessionID)
	if err != nil {
		return nil, fmt.Errorf("list standings: %w", err)
	}
	return items, nil
}

func (s *RankingService) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}
