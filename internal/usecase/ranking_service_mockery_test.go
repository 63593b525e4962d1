package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/market"
	"github.com/riskibarqy/point-farm/internal/domain/phase"
	"github.com/riskibarqy/point-farm/internal/domain/player"
	"github.com/riskibarqy/point-farm/internal/domain/result"
	"github.com/riskibarqy/point-farm/internal/domain/task"
	ledgermock "github.com/riskibarqy/point-farm/internal/mocks/domain/ledger"
	resultmock "github.com/riskibarqy/point-farm/internal/mocks/domain/result"
	usecasemock "github.com/riskibarqy/point-farm/internal/mocks/usecase"
	"github.com/riskibarqy/point-farm/internal/platform/id"
	"github.com/riskibarqy/point-farm/internal/platform/resilience"
	"github.com/stretchr/testify/mock"
)

func newRosterGame(t *testing.T) *GameContext {
	t.Helper()

	game := NewGameContext(testSettings(market.ModeSolo), nil, nil, nil)
	local, err := game.AssignLocalID("p1", player.Profile{Name: "Alice"})
	if err != nil {
		t.Fatalf("assign id: %v", err)
	}
	local.Points = 120
	if err := game.UpdateCurrentPlayer(local); err != nil {
		t.Fatalf("update local: %v", err)
	}
	for _, p := range []player.Player{
		{ID: "p2", Profile: player.Profile{Name: "Bob"}, Points: 300},
		{ID: "p3", Profile: player.Profile{Name: "Cara"}, Points: 40},
	} {
		if _, err := game.AddPlayer(p); err != nil {
			t.Fatalf("add %s: %v", p.ID, err)
		}
	}
	return game
}

func standingFor(playerID string, rank int) any {
	return mock.MatchedBy(func(s result.Standing) bool {
		return s.SessionID == "s-1" && s.PlayerID == playerID && s.Rank == rank
	})
}

func TestRankingService_ArchiveSavesEveryStandingUsingMockery(t *testing.T) {
	t.Parallel()

	repo := resultmock.NewRepository(t)
	repo.On("Save", mock.Anything, standingFor("p2", 1)).Return(nil).Once()
	repo.On("Save", mock.Anything, standingFor("p1", 2)).Return(nil).Once()
	repo.On("Save", mock.Anything, standingFor("p3", 3)).Return(nil).Once()

	ranking := NewRankingService(RankingServiceDeps{
		SessionID: "s-1",
		Game:      newRosterGame(t),
		Repo:      repo,
		Workers:   2,
	})
	defer ranking.Close()

	got, err := ranking.Archive(context.Background())
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if got.Saved != 3 || got.Failed != 0 {
		t.Fatalf("unexpected archive result: %+v", got)
	}
}

func TestRankingService_ArchiveStopsAtOpenBreakerUsingMockery(t *testing.T) {
	t.Parallel()

	dbErr := errors.New("connection refused")
	repo := resultmock.NewRepository(t)
	repo.On("Save", mock.Anything, mock.AnythingOfType("result.Standing")).Return(dbErr).Once()

	ranking := NewRankingService(RankingServiceDeps{
		SessionID: "s-1",
		Game:      newRosterGame(t),
		Repo:      repo,
		Breaker:   resilience.NewCircuitBreaker(1, time.Minute, 1),
		Workers:   1,
	})
	defer ranking.Close()

	got, err := ranking.Archive(context.Background())
	if !errors.Is(err, dbErr) || !errors.Is(err, resilience.ErrCircuitOpen) {
		t.Fatalf("expected database and open circuit errors, got %v", err)
	}
	if got.Saved != 0 || got.Failed != 3 {
		t.Fatalf("unexpected archive result: %+v", got)
	}
}

func TestRankingService_HistoryUsingMockery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := resultmock.NewRepository(t)
	archived := []result.Standing{{SessionID: "s-1", PlayerID: "p2", Rank: 1, FinalPoints: 300}}
	repo.On("ListBySession", ctx, "s-1").Return(archived, nil).Once()

	ranking := NewRankingService(RankingServiceDeps{SessionID: "s-1", Game: newRosterGame(t), Repo: repo})
	defer ranking.Close()

	got, err := ranking.History(ctx)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 1 || got[0].PlayerID != "p2" {
		t.Fatalf("unexpected history: %+v", got)
	}
}

func TestPointLedger_AppendFailureKeepsBalanceUsingMockery(t *testing.T) {
	t.Parallel()

	game := NewGameContext(testSettings(market.ModeSolo), nil, nil, nil)
	if _, err := game.AssignLocalID("p1", player.Profile{Name: "Alice"}); err != nil {
		t.Fatalf("assign id: %v", err)
	}

	repo := ledgermock.NewRepository(t)
	repo.On("Append", mock.Anything, mock.MatchedBy(func(tx ledger.Transaction) bool {
		return tx.PlayerID == "p1" && tx.Amount == 50 && tx.Type == ledger.TypeEarned
	})).Return(errors.New("disk full")).Once()

	pointLedger := NewPointLedger(game, repo, id.NewSequenceGenerator("tx"), nil)
	if _, err := pointLedger.Award(context.Background(), 50, ledger.SourceTask, "task: profile"); err == nil {
		t.Fatalf("expected append failure")
	}
	if game.CurrentPlayer().Points != 0 {
		t.Fatalf("balance changed without a transaction: %d", game.CurrentPlayer().Points)
	}
}

func TestTaskService_UpdateProfileBroadcastsUsingMockery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	game, pointLedger, _ := newTestLedger(t)
	phases := NewPhaseMachine(game, phase.DefaultRules(), nil)
	defer phases.Close()

	broadcaster := usecasemock.NewBroadcaster(t)
	broadcaster.On("Broadcast", mock.Anything, broadcast.ProfileUpdate{PlayerID: "p1", Name: "Alicia", Avatar: "fox"}).Return(nil).Once()
	broadcaster.On("Broadcast", mock.Anything, broadcast.TaskCompletion{PlayerID: "p1", TaskID: string(task.Profile)}).Return(nil).Once()

	tasks := NewTaskService(game, pointLedger, phases, task.DefaultRegistry(), broadcaster, nil)
	got, err := tasks.UpdateProfile(ctx, " Alicia ", "fox")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if got.Profile.Name != "Alicia" || !got.HasCompleted(task.Profile) || got.Points != 50 {
		t.Fatalf("unexpected player: %+v", got)
	}
	if game.Phase() != phase.Basic {
		t.Fatalf("expected BASIC after profile, got %s", game.Phase())
	}
}

func TestTaskService_BroadcastFailureIsNotFatalUsingMockery(t *testing.T) {
	t.Parallel()

	game, pointLedger, _ := newTestLedger(t)
	phases := NewPhaseMachine(game, phase.DefaultRules(), nil)
	defer phases.Close()

	broadcaster := usecasemock.NewBroadcaster(t)
	broadcaster.On("Broadcast", mock.Anything, mock.Anything).Return(broadcast.ErrTransportClosed).Twice()

	tasks := NewTaskService(game, pointLedger, phases, task.DefaultRegistry(), broadcaster, nil)
	if _, err := tasks.UpdateProfile(context.Background(), "Alicia", ""); err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if game.CurrentPlayer().Points != 50 {
		t.Fatalf("expected local award despite broadcast failure, got %d", game.CurrentPlayer().Points)
	}
}

func TestTaskService_FailedRewardLeavesTaskOpenUsingMockery(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	game := NewGameContext(testSettings(market.ModeSolo), nil, nil, nil)
	if _, err := game.AssignLocalID("p1", player.Profile{Name: "Alice"}); err != nil {
		t.Fatalf("assign id: %v", err)
	}
	phases := NewPhaseMachine(game, phase.DefaultRules(), nil)
	defer phases.Close()

	repo := ledgermock.NewRepository(t)
	isProfileReward := mock.MatchedBy(func(tx ledger.Transaction) bool {
		return tx.PlayerID == "p1" && tx.Amount == 50 && tx.Source == ledger.SourceTask
	})
	repo.On("Append", mock.Anything, isProfileReward).Return(errors.New("disk full")).Once()
	repo.On("Append", mock.Anything, isProfileReward).Return(nil).Once()

	pointLedger := NewPointLedger(game, repo, id.NewSequenceGenerator("tx"), nil)
	tasks := NewTaskService(game, pointLedger, phases, task.DefaultRegistry(), nil, nil)

	if _, err := tasks.CompleteTask(ctx, task.Profile); err == nil {
		t.Fatalf("expected reward failure")
	}
	if got := game.CurrentPlayer(); got.HasCompleted(task.Profile) || got.Points != 0 {
		t.Fatalf("task marked without its reward: %+v", got)
	}

	got, err := tasks.CompleteTask(ctx, task.Profile)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !got.HasCompleted(task.Profile) || got.Points != 50 {
		t.Fatalf("unexpected player after retry: %+v", got)
	}
}
