package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/riskibarqy/point-farm/internal/domain/affiliate"
	"github.com/riskibarqy/point-farm/internal/domain/catalog"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/phase"
	"github.com/riskibarqy/point-farm/internal/domain/player"
	"github.com/riskibarqy/point-farm/internal/domain/task"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
)

// ShopItem is a catalog entry as the local player sees it.
type ShopItem struct {
	PriceView
	Owned bool
}

// ShopService sells catalog items at the market price.
type ShopService struct {
	game    *GameContext
	ledger  *PointLedger
	market  *MarketManager
	phases  *PhaseMachine
	tasks   *TaskService
	catalog *catalog.Catalog
	logger  *logging.Logger
}

func NewShopService(game *GameContext, pointLedger *PointLedger, marketManager *MarketManager, phases *PhaseMachine, tasks *TaskService, c *catalog.Catalog, logger *logging.Logger) *ShopService {
	if logger == nil {
		logger = logging.Default()
	}
	return &ShopService{
		game:    game,
		ledger:  pointLedger,
		market:  marketManager,
		phases:  phases,
		tasks:   tasks,
		catalog: c,
		logger:  logger.Named("shop"),
	}
}

func (s *ShopService) Items(ctx context.Context) []ShopItem {
	current := s.game.CurrentPlayer()
	prices := s.market.Prices(ctx)
	out := make([]ShopItem, 0, len(prices))
	for _, view := range prices {
		out = append(out, ShopItem{PriceView: view, Owned: current.Owns(view.Item.ID)})
	}
	return out
}

// Purchase buys itemID at its current price and completes the first
// purchase task.
func (s *ShopService) Purchase(ctx context.Context, itemID string) (player.Player, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ShopService.Purchase")
	defer span.End()

	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return player.Player{}, fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	if s.game.Phase() >= phase.Settlement {
		return player.Player{}, fmt.Errorf("%w: shop is closed", ErrGameOver)
	}
	if err := s.phases.Require(phase.FeatureShop); err != nil {
		return player.Player{}, err
	}

	item, err := s.catalog.Lookup(itemID)
	if err != nil {
		return player.Player{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if s.game.CurrentPlayer().Owns(item.ID) {
		return player.Player{}, fmt.Errorf("%w: item=%s", affiliate.ErrAlreadyOwned, item.ID)
	}

	price, fresh, err := s.market.CurrentPrice(ctx, item.ID)
	if err != nil {
		return player.Player{}, err
	}
	if _, err := s.ledger.Deduct(ctx, price, ledger.SourceShop, "shop: "+item.Name); err != nil {
		return player.Player{}, err
	}

	current := s.game.CurrentPlayer()
	if err := s.game.UpdateCurrentPlayer(current.WithItem(item, s.game.Now())); err != nil {
		return player.Player{}, fmt.Errorf("add purchased item: %w", err)
	}
	s.logger.InfoContext(ctx, "item purchased",
		"player_id", current.ID,
		"item_id", item.ID,
		"price", price,
		"fresh_price", fresh,
	)

	s.tasks.completeOnce(ctx, task.FirstPurchase)
	return s.game.CurrentPlayer(), nil
}
