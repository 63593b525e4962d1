package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/riskibarqy/point-farm/internal/domain/affiliate"
	"github.com/riskibarqy/point-farm/internal/domain/broadcast"
	"github.com/riskibarqy/point-farm/internal/domain/catalog"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/phase"
	"github.com/riskibarqy/point-farm/internal/domain/task"
	"github.com/riskibarqy/point-farm/internal/platform/id"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/shopspring/decimal"
)

// AffiliateTimeline lets players share owned items at a frozen price and
// pays the sharer a commission when someone buys through the post.
type AffiliateTimeline struct {
	game        *GameContext
	ledger      *PointLedger
	market      *MarketManager
	phases      *PhaseMachine
	tasks       *TaskService
	catalog     *catalog.Catalog
	repo        affiliate.Repository
	ids         id.Generator
	broadcaster Broadcaster
	rewardRate  decimal.Decimal
	logger      *logging.Logger

	// purchases heard of before their post, keyed by post then buyer
	pending map[string]map[string]broadcast.AffiliatePurchase
}

type AffiliateTimelineDeps struct {
	Game        *GameContext
	Ledger      *PointLedger
	Market      *MarketManager
	Phases      *PhaseMachine
	Tasks       *TaskService
	Catalog     *catalog.Catalog
	Repo        affiliate.Repository
	IDs         id.Generator
	Broadcaster Broadcaster
	Logger      *logging.Logger
}

func NewAffiliateTimeline(deps AffiliateTimelineDeps) *AffiliateTimeline {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &AffiliateTimeline{
		game:        deps.Game,
		ledger:      deps.Ledger,
		market:      deps.Market,
		phases:      deps.Phases,
		tasks:       deps.Tasks,
		catalog:     deps.Catalog,
		repo:        deps.Repo,
		ids:         deps.IDs,
		broadcaster: broadcasterOrNoop(deps.Broadcaster),
		rewardRate:  deps.Game.Settings().RewardRate,
		logger:      logger.Named("affiliate"),
		pending:     make(map[string]map[string]broadcast.AffiliatePurchase),
	}
}

// Posts returns the timeline, newest first.
func (a *AffiliateTimeline) Posts(ctx context.Context) ([]affiliate.SharedPost, error) {
	items, err := a.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list shared posts: %w", err)
	}
	sort.SliceStable(items, func(i, j int) bool {
		if !items[i].SharedAt.Equal(items[j].SharedAt) {
			return items[i].SharedAt.After(items[j].SharedAt)
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

// Share posts an owned item at its current price.
func (a *AffiliateTimeline) Share(ctx context.Context, itemID string) (affiliate.SharedPost, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AffiliateTimeline.Share")
	defer span.End()

	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return affiliate.SharedPost{}, fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	if a.game.Phase() >= phase.Settlement {
		return affiliate.SharedPost{}, fmt.Errorf("%w: timeline is closed", ErrGameOver)
	}
	if err := a.phases.Require(phase.FeatureTimeline); err != nil {
		return affiliate.SharedPost{}, err
	}

	sharer := a.game.CurrentPlayer()
	item, err := a.catalog.Lookup(itemID)
	if err != nil {
		return affiliate.SharedPost{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if !sharer.Owns(item.ID) {
		return affiliate.SharedPost{}, fmt.Errorf("%w: item=%s", affiliate.ErrItemNotOwned, item.ID)
	}

	price, _, err := a.market.CurrentPrice(ctx, item.ID)
	if err != nil {
		return affiliate.SharedPost{}, err
	}
	postID, err := a.ids.NewID()
	if err != nil {
		return affiliate.SharedPost{}, fmt.Errorf("generate post id: %w", err)
	}

	post := affiliate.SharedPost{
		ID:          postID,
		SharerID:    sharer.ID,
		SharerName:  sharer.Profile.Name,
		Item:        item,
		SharedPrice: price,
		SharedAt:    a.game.Now(),
		IsAffiliate: true,
	}
	if err := post.Validate(); err != nil {
		return affiliate.SharedPost{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := a.repo.Save(ctx, post); err != nil {
		return affiliate.SharedPost{}, fmt.Errorf("save shared post: %w", err)
	}

	if err := a.broadcaster.Broadcast(ctx, broadcast.AffiliatePostShared{
		PlayerID:   sharer.ID,
		SharedPost: toWirePost(post),
	}); err != nil {
		a.logger.WarnContext(ctx, "broadcast shared post failed", "post_id", post.ID, "error", err)
	}

	a.tasks.completeOnce(ctx, task.FirstShare)
	return post, nil
}

// CanPurchase runs every purchase check without changing state.
func (a *AffiliateTimeline) CanPurchase(ctx context.Context, postID string) error {
	_, err := a.checkPurchase(ctx, postID)
	return err
}

// Purchase buys the post's item at its frozen price. The sharer's
// commission is paid on the sharer's own instance when it receives the
// broadcast.
func (a *AffiliateTimeline) Purchase(ctx context.Context, postID string) (affiliate.Purchase, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.AffiliateTimeline.Purchase")
	defer span.End()

	post, err := a.checkPurchase(ctx, postID)
	if err != nil {
		a.logger.WarnContext(ctx, "affiliate purchase rejected", "post_id", postID, "error", err)
		return affiliate.Purchase{}, err
	}

	buyer := a.game.CurrentPlayer()
	if _, err := a.ledger.Deduct(ctx, post.SharedPrice, ledger.SourceAffiliatePurchase, "affiliate: "+post.Item.Name); err != nil {
		return affiliate.Purchase{}, err
	}
	current := a.game.CurrentPlayer()
	if err := a.game.UpdateCurrentPlayer(current.WithItem(post.Item, a.game.Now())); err != nil {
		return affiliate.Purchase{}, fmt.Errorf("add purchased item: %w", err)
	}
	if _, _, err := a.repo.RecordPurchase(ctx, post.ID, buyer.ID); err != nil {
		return affiliate.Purchase{}, fmt.Errorf("record affiliate purchase: %w", err)
	}

	purchase := affiliate.Purchase{
		PostID:       post.ID,
		BuyerID:      buyer.ID,
		BuyerName:    buyer.Profile.Name,
		SharerID:     post.SharerID,
		Price:        post.SharedPrice,
		RewardPoints: affiliate.Reward(post.SharedPrice, a.rewardRate),
	}
	if err := a.broadcaster.Broadcast(ctx, broadcast.AffiliatePurchase{
		PostID:       purchase.PostID,
		BuyerID:      purchase.BuyerID,
		BuyerName:    purchase.BuyerName,
		SharerID:     purchase.SharerID,
		RewardPoints: purchase.RewardPoints,
	}); err != nil {
		a.logger.WarnContext(ctx, "broadcast affiliate purchase failed", "post_id", post.ID, "error", err)
	}

	a.logger.InfoContext(ctx, "affiliate purchase",
		"post_id", post.ID,
		"buyer_id", buyer.ID,
		"sharer_id", post.SharerID,
		"price", post.SharedPrice,
	)
	return purchase, nil
}

func (a *AffiliateTimeline) checkPurchase(ctx context.Context, postID string) (affiliate.SharedPost, error) {
	postID = strings.TrimSpace(postID)
	if postID == "" {
		return affiliate.SharedPost{}, fmt.Errorf("%w: post id is required", ErrInvalidInput)
	}
	if a.game.Phase() >= phase.Settlement {
		return affiliate.SharedPost{}, fmt.Errorf("%w: timeline is closed", ErrGameOver)
	}
	if err := a.phases.Require(phase.FeatureTimeline); err != nil {
		return affiliate.SharedPost{}, err
	}

	post, exists, err := a.repo.GetByID(ctx, postID)
	if err != nil {
		return affiliate.SharedPost{}, fmt.Errorf("get shared post: %w", err)
	}
	if !exists {
		return affiliate.SharedPost{}, fmt.Errorf("%w: post=%s", affiliate.ErrPostNotFound, postID)
	}

	buyer := a.game.CurrentPlayer()
	purchased, err := a.repo.HasPurchased(ctx, post.ID, buyer.ID)
	if err != nil {
		return affiliate.SharedPost{}, fmt.Errorf("check affiliate purchase: %w", err)
	}
	if purchased {
		return affiliate.SharedPost{}, fmt.Errorf("%w: post=%s buyer=%s", affiliate.ErrAlreadyApplied, post.ID, buyer.ID)
	}
	if err := affiliate.CheckPurchase(post, buyer.ID, buyer.Owns(post.Item.ID), buyer.Points); err != nil {
		return affiliate.SharedPost{}, err
	}
	return post, nil
}

// ApplyRemotePost stores a post shared by another participant.
func (a *AffiliateTimeline) ApplyRemotePost(ctx context.Context, senderID string, msg broadcast.AffiliatePostShared) error {
	if senderID != msg.PlayerID || senderID != msg.SharedPost.SharerID {
		return fmt.Errorf("%w: sender=%s sharer=%s", ErrForeignRecord, senderID, msg.SharedPost.SharerID)
	}
	item, err := a.catalog.Lookup(msg.SharedPost.ItemID)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}

	_, exists, err := a.repo.GetByID(ctx, msg.SharedPost.ID)
	if err != nil {
		return fmt.Errorf("get shared post: %w", err)
	}
	if exists {
		return nil
	}

	post := affiliate.SharedPost{
		ID:          msg.SharedPost.ID,
		SharerID:    msg.SharedPost.SharerID,
		SharerName:  msg.SharedPost.SharerName,
		Item:        item,
		SharedPrice: msg.SharedPost.SharedPrice,
		SharedAt:    msg.SharedPost.SharedAt,
		IsAffiliate: msg.SharedPost.IsAffiliate,
	}
	if err := post.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := a.repo.Save(ctx, post); err != nil {
		return fmt.Errorf("save shared post: %w", err)
	}
	return a.applyPending(ctx, post)
}

// applyPending replays purchases that arrived before post did.
func (a *AffiliateTimeline) applyPending(ctx context.Context, post affiliate.SharedPost) error {
	waiting := a.pending[post.ID]
	if len(waiting) == 0 {
		return nil
	}
	delete(a.pending, post.ID)

	buyers := make([]string, 0, len(waiting))
	for buyerID := range waiting {
		buyers = append(buyers, buyerID)
	}
	sort.Strings(buyers)

	var errs []error
	for _, buyerID := range buyers {
		if err := a.applyPurchase(ctx, post, waiting[buyerID]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// PendingPurchases counts purchases still waiting for their post.
func (a *AffiliateTimeline) PendingPurchases() int {
	n := 0
	for _, waiting := range a.pending {
		n += len(waiting)
	}
	return n
}

// ApplyRemotePurchase counts a purchase made on another instance. The
// count and the commission are applied at most once per (post, buyer);
// the commission only on the sharer's instance.
func (a *AffiliateTimeline) ApplyRemotePurchase(ctx context.Context, senderID string, msg broadcast.AffiliatePurchase) error {
	if senderID != msg.BuyerID {
		return fmt.Errorf("%w: sender=%s buyer=%s", ErrForeignRecord, senderID, msg.BuyerID)
	}

	post, exists, err := a.repo.GetByID(ctx, msg.PostID)
	if err != nil {
		return fmt.Errorf("get shared post: %w", err)
	}
	if !exists {
		waiting, ok := a.pending[msg.PostID]
		if !ok {
			waiting = make(map[string]broadcast.AffiliatePurchase)
			a.pending[msg.PostID] = waiting
		}
		if _, seen := waiting[msg.BuyerID]; !seen {
			waiting[msg.BuyerID] = msg
			a.logger.DebugContext(ctx, "purchase held until its post arrives", "post_id", msg.PostID, "buyer_id", msg.BuyerID)
		}
		return nil
	}
	return a.applyPurchase(ctx, post, msg)
}

func (a *AffiliateTimeline) applyPurchase(ctx context.Context, post affiliate.SharedPost, msg broadcast.AffiliatePurchase) error {
	if msg.BuyerID == post.SharerID {
		return fmt.Errorf("%w: post=%s", affiliate.ErrSelfPurchase, post.ID)
	}

	post, applied, err := a.repo.RecordPurchase(ctx, post.ID, msg.BuyerID)
	if err != nil {
		return fmt.Errorf("record affiliate purchase: %w", err)
	}
	if !applied {
		a.logger.DebugContext(ctx, "duplicate affiliate purchase ignored", "post_id", post.ID, "buyer_id", msg.BuyerID)
		return nil
	}

	if buyer, ok := a.game.Player(msg.BuyerID); ok && !buyer.Owns(post.Item.ID) {
		if err := a.game.ApplyRemotePlayer(buyer.WithItem(post.Item, a.game.Now())); err != nil {
			a.logger.WarnContext(ctx, "mirror buyer inventory failed", "buyer_id", msg.BuyerID, "error", err)
		}
	}

	if post.SharerID != a.game.LocalPlayerID() {
		return nil
	}

	reward := affiliate.Reward(post.SharedPrice, a.rewardRate)
	if reward != msg.RewardPoints {
		a.logger.WarnContext(ctx, "affiliate reward mismatch",
			"post_id", post.ID,
			"announced", msg.RewardPoints,
			"computed", reward,
		)
	}
	if reward <= 0 {
		return nil
	}
	if current := a.game.Phase(); current >= phase.Settlement {
		a.logger.WarnContext(ctx, "affiliate commission after settlement dropped",
			"post_id", post.ID,
			"buyer_id", msg.BuyerID,
			"reward", reward,
			"phase", current.String(),
		)
		return nil
	}
	name := msg.BuyerName
	if name == "" {
		name = msg.BuyerID
	}
	if _, err := a.ledger.Award(ctx, reward, ledger.SourceAffiliateReward, "affiliate commission from "+name); err != nil {
		return fmt.Errorf("award affiliate commission: %w", err)
	}
	return nil
}

func toWirePost(post affiliate.SharedPost) broadcast.SharedPost {
	return broadcast.SharedPost{
		ID:            post.ID,
		SharerID:      post.SharerID,
		SharerName:    post.SharerName,
		ItemID:        post.Item.ID,
		SharedPrice:   post.SharedPrice,
		SharedAt:      post.SharedAt,
		IsAffiliate:   post.IsAffiliate,
		PurchaseCount: post.PurchaseCount,
	}
}
