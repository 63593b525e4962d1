package affiliate

import (
	"errors"
	"fmt"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/catalog"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/shopspring/decimal"
)

var (
	ErrPostNotFound   = errors.New("shared post not found")
	ErrSelfPurchase   = errors.New("cannot purchase own shared post")
	ErrAlreadyOwned   = errors.New("item already owned")
	ErrItemNotOwned   = errors.New("item must be owned to share it")
	ErrAlreadyApplied = errors.New("purchase already applied")
)

// DefaultRewardRate is the sharer's commission share of the frozen price.
var DefaultRewardRate = decimal.RequireFromString("0.1")

// SharedPost is a timeline entry. SharedPrice is frozen when the post is made.
type SharedPost struct {
	ID            string
	SharerID      string
	SharerName    string
	Item          catalog.Item
	SharedPrice   int64
	SharedAt      time.Time
	IsAffiliate   bool
	PurchaseCount int
}

func (p SharedPost) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("post id is required")
	}
	if p.SharerID == "" {
		return fmt.Errorf("post sharer id is required")
	}
	if p.Item.ID == "" {
		return fmt.Errorf("post item is required")
	}
	if p.SharedPrice <= 0 {
		return fmt.Errorf("post shared price must be greater than zero: %s", p.ID)
	}
	return nil
}

// Purchase records one buyer taking an item through a post.
type Purchase struct {
	PostID       string
	BuyerID      string
	BuyerName    string
	SharerID     string
	Price        int64
	RewardPoints int64
}

// Reward returns floor(price * rate), never negative.
func Reward(sharedPrice int64, rate decimal.Decimal) int64 {
	if sharedPrice <= 0 || rate.IsNegative() {
		return 0
	}
	return decimal.NewFromInt(sharedPrice).Mul(rate).Floor().IntPart()
}

// CheckPurchase validates a purchase against a post and the buyer's state.
func CheckPurchase(post SharedPost, buyerID string, buyerOwnsItem bool, buyerBalance int64) error {
	if post.SharerID == buyerID {
		return fmt.Errorf("%w: post=%s", ErrSelfPurchase, post.ID)
	}
	if buyerOwnsItem {
		return fmt.Errorf("%w: item=%s", ErrAlreadyOwned, post.Item.ID)
	}
	if buyerBalance < post.SharedPrice {
		return fmt.Errorf("%w: balance=%d price=%d", ledger.ErrInsufficientFunds, buyerBalance, post.SharedPrice)
	}
	return nil
}
