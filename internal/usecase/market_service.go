package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	"github.com/riskibarqy/point-farm/internal/domain/catalog"
	"github.com/riskibarqy/point-farm/internal/domain/market"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/riskibarqy/point-farm/internal/platform/random"
	"github.com/riskibarqy/point-farm/internal/platform/scheduler"
)

// PriceView is a catalog item with the price a buyer would pay now.
type PriceView struct {
	Item         catalog.Item
	Price        int64
	Fresh        bool
	CalculatedAt int64
}

// MarketManager owns the dynamic price cache. In shared mode only the
// authority computes and broadcasts; everyone else applies its updates. In
// solo mode each instance computes from its own seeded source.
type MarketManager struct {
	game        *GameContext
	catalog     *catalog.Catalog
	mode        market.Mode
	params      market.Params
	rng         random.Source
	broadcaster Broadcaster
	logger      *logging.Logger

	mu       sync.RWMutex
	entries  map[string]market.PriceEntry
	local    map[string]bool
	degraded map[string]bool
	handle   scheduler.Handle
}

func NewSharedMarket(game *GameContext, c *catalog.Catalog, rng *random.Authority, broadcaster Broadcaster, logger *logging.Logger) *MarketManager {
	return newMarketManager(game, c, market.ModeShared, rng, broadcaster, logger)
}

func NewSoloMarket(game *GameContext, c *catalog.Catalog, rng *random.Seeded, logger *logging.Logger) *MarketManager {
	return newMarketManager(game, c, market.ModeSolo, rng, nil, logger)
}

func newMarketManager(game *GameContext, c *catalog.Catalog, mode market.Mode, rng random.Source, broadcaster Broadcaster, logger *logging.Logger) *MarketManager {
	if logger == nil {
		logger = logging.Default()
	}
	return &MarketManager{
		game:        game,
		catalog:     c,
		mode:        mode,
		params:      game.Settings().MarketParams,
		rng:         rng,
		broadcaster: broadcasterOrNoop(broadcaster),
		logger:      logger.Named("market").With("mode", string(mode)),
		entries:     make(map[string]market.PriceEntry),
		local:       make(map[string]bool),
		degraded:    make(map[string]bool),
	}
}

func (m *MarketManager) Mode() market.Mode {
	return m.mode
}

// Start schedules periodic recalculation on the game scheduler.
func (m *MarketManager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handle.Active() {
		return
	}
	settings := m.game.Settings()
	m.handle = m.game.Scheduler().Every(settings.MarketInitialDelayFrames, settings.MarketIntervalFrames, func() {
		if err := m.Tick(context.Background()); err != nil {
			m.logger.Warn("market tick failed", "error", err)
		}
	})
}

func (m *MarketManager) Stop() {
	m.mu.Lock()
	handle := m.handle
	m.handle = scheduler.Handle{}
	m.mu.Unlock()
	handle.Cancel()
}

// IsAuthority reports whether this instance computes prices. In shared
// mode a newcomer that has not synced its roster yet is never the
// authority, even while it is alone in it.
func (m *MarketManager) IsAuthority() bool {
	if m.mode == market.ModeSolo {
		return true
	}
	return m.game.AuthorityID() == m.game.LocalPlayerID() && m.game.RosterSynced()
}

// Tick recalculates every price when this instance is responsible for it.
func (m *MarketManager) Tick(ctx context.Context) error {
	if !m.IsAuthority() {
		m.dropLocal()
		return nil
	}
	return m.RecalculateAll(ctx)
}

// RecalculateAll computes a new price for every catalog item, caches it
// and, in shared mode, broadcasts it.
func (m *MarketManager) RecalculateAll(ctx context.Context) error {
	ctx, span := startUsecaseSpan(ctx, "usecase.MarketManager.RecalculateAll")
	defer span.End()

	remaining := m.game.RemainingFrames()
	frame := m.game.Scheduler().Frame()
	for _, item := range m.catalog.Items() {
		quote := m.CalculatePrice(ctx, item)
		entry := market.PriceEntry{
			ItemID:          item.ID,
			DynamicPrice:    quote.Price,
			CalculatedAt:    frame,
			RemainingFrames: remaining,
		}
		m.store(entry, true)

		if m.mode != market.ModeShared {
			continue
		}
		if err := m.broadcaster.Broadcast(ctx, broadcast.PriceUpdate{
			ItemID:        entry.ItemID,
			DynamicPrice:  entry.DynamicPrice,
			CalculatedAt:  entry.CalculatedAt,
			RemainingTime: entry.RemainingFrames,
		}); err != nil {
			return fmt.Errorf("broadcast price for %s: %w", item.ID, err)
		}
	}
	return nil
}

// CalculatePrice draws one value from the role's random source and prices
// item against the remaining time.
func (m *MarketManager) CalculatePrice(ctx context.Context, item catalog.Item) market.Quote {
	quote := market.Compute(item.PurchasePrice, m.game.RemainingFrames(), m.game.TotalFrames(), m.rng.Float64(), m.params)
	if quote.DefaultedBase {
		m.logger.WarnContext(ctx, "item has no base price, using fallback",
			"item_id", item.ID,
			"fallback", quote.BasePrice,
		)
	}
	return quote
}

// CurrentPrice returns the cached price, or the base price when no price
// has been computed or received yet. fresh is false in the fallback case.
func (m *MarketManager) CurrentPrice(ctx context.Context, itemID string) (price int64, fresh bool, err error) {
	item, err := m.catalog.Lookup(itemID)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	if entry, ok := m.Entry(itemID); ok {
		return entry.DynamicPrice, true, nil
	}

	base := item.PurchasePrice
	if base <= 0 {
		base = m.params.FallbackBasePrice
	}

	m.mu.Lock()
	first := !m.degraded[itemID]
	m.degraded[itemID] = true
	m.mu.Unlock()
	if first {
		m.logger.WarnContext(ctx, "no dynamic price yet, serving base price",
			"item_id", itemID,
			"price", base,
		)
	}
	return base, false, nil
}

// Entry returns the usable cached price. Entries this instance computed
// itself stop counting once another participant holds the authority.
func (m *MarketManager) Entry(itemID string) (market.PriceEntry, bool) {
	authority := m.IsAuthority()
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[itemID]
	if ok && m.local[itemID] && !authority {
		return market.PriceEntry{}, false
	}
	return entry, ok
}

func (m *MarketManager) IsDegraded(itemID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.degraded[itemID]
}

// Prices lists the current price of every catalog item.
func (m *MarketManager) Prices(ctx context.Context) []PriceView {
	items := m.catalog.Items()
	out := make([]PriceView, 0, len(items))
	for _, item := range items {
		price, fresh, err := m.CurrentPrice(ctx, item.ID)
		if err != nil {
			continue
		}
		view := PriceView{Item: item, Price: price, Fresh: fresh}
		if entry, ok := m.Entry(item.ID); ok {
			view.CalculatedAt = entry.CalculatedAt
		}
		out = append(out, view)
	}
	return out
}

// ApplyPriceUpdate caches a price computed by the authority.
func (m *MarketManager) ApplyPriceUpdate(ctx context.Context, senderID string, msg broadcast.PriceUpdate) error {
	if m.mode != market.ModeShared {
		return fmt.Errorf("%w: price updates are ignored in %s mode", ErrInvalidState, m.mode)
	}
	if authority := m.game.AuthorityID(); senderID != authority {
		m.logger.WarnContext(ctx, "price update from non-authority dropped",
			"sender_id", senderID,
			"authority_id", authority,
			"item_id", msg.ItemID,
		)
		return fmt.Errorf("%w: sender=%s", ErrNotAuthority, senderID)
	}
	if _, err := m.catalog.Lookup(msg.ItemID); err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if msg.DynamicPrice <= 0 {
		return fmt.Errorf("%w: price must be > 0, got %d", ErrInvalidInput, msg.DynamicPrice)
	}

	m.store(market.PriceEntry{
		ItemID:          msg.ItemID,
		DynamicPrice:    msg.DynamicPrice,
		CalculatedAt:    msg.CalculatedAt,
		RemainingFrames: msg.RemainingTime,
	}, false)
	return nil
}

func (m *MarketManager) store(entry market.PriceEntry, local bool) {
	m.mu.Lock()
	m.entries[entry.ItemID] = entry
	m.local[entry.ItemID] = local
	delete(m.degraded, entry.ItemID)
	m.mu.Unlock()
}

// dropLocal forgets prices computed while this instance believed it was
// the authority.
func (m *MarketManager) dropLocal() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for itemID, local := range m.local {
		if !local {
			continue
		}
		delete(m.entries, itemID)
		delete(m.local, itemID)
	}
}
