package broadcast

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnknownKind     = errors.New("unknown message kind")
	ErrTransportClosed = errors.New("transport closed")
)

// Kind names a message on the session bus.
type Kind string

const (
	KindScoreUpdate         Kind = "scoreUpdate"
	KindProfileUpdate       Kind = "profileUpdate"
	KindPriceUpdate         Kind = "priceUpdate"
	KindAffiliatePostShared Kind = "affiliatePostShared"
	KindAffiliatePurchase   Kind = "affiliatePurchase"
	KindPlayerJoined        Kind = "playerJoined"
	KindTaskCompletion      Kind = "taskCompletion"
	KindPlayerLeft          Kind = "playerLeft"
)

// Message is a typed payload.
type Message interface {
	Kind() Kind
}

// Envelope wraps a message with its sender and per-sender sequence number.
// Delivery is ordered per sender and at-least-once.
type Envelope struct {
	Kind     Kind
	SenderID string
	Seq      uint64
	SentAt   time.Time
	Payload  Message
}

// Transport moves envelopes between session participants.
type Transport interface {
	Send(ctx context.Context, env Envelope) error
	Receive() <-chan Envelope
	Close() error
}

type ScoreUpdate struct {
	PlayerID string `json:"playerId"`
	Score    int64  `json:"score"`
}

func (ScoreUpdate) Kind() Kind { return KindScoreUpdate }

type ProfileUpdate struct {
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
	Avatar   string `json:"avatar"`
}

func (ProfileUpdate) Kind() Kind { return KindProfileUpdate }

type PriceUpdate struct {
	ItemID        string `json:"itemId"`
	DynamicPrice  int64  `json:"dynamicPrice"`
	CalculatedAt  int64  `json:"calculatedAt"`
	RemainingTime int64  `json:"remainingTime"`
}

func (PriceUpdate) Kind() Kind { return KindPriceUpdate }

type SharedPost struct {
	ID            string    `json:"id"`
	SharerID      string    `json:"sharerId"`
	SharerName    string    `json:"sharerName"`
	ItemID        string    `json:"itemId"`
	SharedPrice   int64     `json:"sharedPrice"`
	SharedAt      time.Time `json:"sharedAt"`
	IsAffiliate   bool      `json:"isAffiliate"`
	PurchaseCount int       `json:"purchaseCount"`
}

type AffiliatePostShared struct {
	PlayerID   string     `json:"playerId"`
	SharedPost SharedPost `json:"sharedPost"`
}

func (AffiliatePostShared) Kind() Kind { return KindAffiliatePostShared }

type AffiliatePurchase struct {
	PostID       string `json:"postId"`
	BuyerID      string `json:"buyerId"`
	BuyerName    string `json:"buyerName"`
	SharerID     string `json:"sharerId"`
	RewardPoints int64  `json:"rewardPoints"`
}

func (AffiliatePurchase) Kind() Kind { return KindAffiliatePurchase }

type Profile struct {
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type OwnedItem struct {
	ItemID      string    `json:"itemId"`
	PurchasedAt time.Time `json:"purchasedAt"`
}

type PlayerJoined struct {
	PlayerID     string      `json:"playerId"`
	Profile      Profile     `json:"profile"`
	Points       int64       `json:"points"`
	OwnedItems   []OwnedItem `json:"ownedItems"`
	JoinedAt     time.Time   `json:"joinedAt"`
	LastActiveAt time.Time   `json:"lastActiveAt"`
}

func (PlayerJoined) Kind() Kind { return KindPlayerJoined }

type TaskCompletion struct {
	PlayerID string `json:"playerId"`
	TaskID   string `json:"taskId"`
}

func (TaskCompletion) Kind() Kind { return KindTaskCompletion }

type PlayerLeft struct {
	PlayerID string `json:"playerId"`
}

func (PlayerLeft) Kind() Kind { return KindPlayerLeft }
