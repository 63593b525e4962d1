package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/riskibarqy/point-farm/internal/domain/catalog"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/phase"
	"github.com/riskibarqy/point-farm/internal/domain/settlement"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
)

// SettlementService liquidates the local collection once the game enters
// SETTLEMENT and moves the machine to ENDED.
type SettlementService struct {
	game    *GameContext
	ledger  *PointLedger
	phases  *PhaseMachine
	catalog *catalog.Catalog
	logger  *logging.Logger

	mu      sync.Mutex
	done    bool
	summary settlement.Summary
}

func NewSettlementService(game *GameContext, pointLedger *PointLedger, phases *PhaseMachine, c *catalog.Catalog, logger *logging.Logger) *SettlementService {
	if logger == nil {
		logger = logging.Default()
	}
	return &SettlementService{
		game:    game,
		ledger:  pointLedger,
		phases:  phases,
		catalog: c,
		logger:  logger.Named("settlement"),
	}
}

// Preview computes what the current collection would pay out.
func (s *SettlementService) Preview() settlement.Summary {
	return settlement.Calculate(s.catalog, s.game.CurrentPlayer().OwnedItems)
}

func (s *SettlementService) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Result returns the summary of a completed settlement.
func (s *SettlementService) Result() (settlement.Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.summary, s.done
}

// Settle pays out the collection, clears the inventory and completes the
// game. Calling it again returns the first result.
func (s *SettlementService) Settle(ctx context.Context) (settlement.Summary, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.SettlementService.Settle")
	defer span.End()

	s.mu.Lock()
	if s.done {
		summary := s.summary
		s.mu.Unlock()
		return summary, nil
	}
	s.mu.Unlock()

	if current := s.game.Phase(); current != phase.Settlement {
		return settlement.Summary{}, fmt.Errorf("%w: settlement runs in %s, current phase is %s", ErrInvalidState, phase.Settlement, current)
	}

	summary := s.Preview()
	if summary.Total > 0 {
		if _, err := s.ledger.Award(ctx, summary.Total, ledger.SourceSettlement, "collection settlement"); err != nil {
			return settlement.Summary{}, fmt.Errorf("award settlement: %w", err)
		}
	}

	current := s.game.CurrentPlayer()
	if err := s.game.UpdateCurrentPlayer(current.Liquidated()); err != nil {
		return settlement.Summary{}, fmt.Errorf("liquidate inventory: %w", err)
	}

	s.mu.Lock()
	s.done = true
	s.summary = summary
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "settlement complete",
		"player_id", current.ID,
		"total", summary.Total,
		"items", current.ItemCount(),
	)
	s.phases.CompleteSettlement(ctx)
	return summary, nil
}
