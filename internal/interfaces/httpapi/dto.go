package httpapi

import (
	"context"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/affiliate"
	"github.com/riskibarqy/point-farm/internal/domain/catalog"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/player"
	"github.com/riskibarqy/point-farm/internal/domain/result"
	"github.com/riskibarqy/point-farm/internal/domain/settlement"
	"github.com/riskibarqy/point-farm/internal/usecase"
)

type purchaseItemRequest struct {
	ItemID string `json:"item_id" validate:"required,max=64"`
}

type sharePostRequest struct {
	ItemID string `json:"item_id" validate:"required,max=64"`
}

type updateProfileRequest struct {
	Name   string `json:"name" validate:"required,max=32"`
	Avatar string `json:"avatar" validate:"omitempty,max=16"`
}

type setPauseRequest struct {
	Paused *bool `json:"paused" validate:"required"`
}

type itemDTO struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Category        string `json:"category"`
	SeriesNumber    int    `json:"series_number"`
	PurchasePrice   int64  `json:"purchase_price"`
	IndividualPrice int64  `json:"individual_price"`
	SetPrice        int64  `json:"set_price"`
	Emoji           string `json:"emoji,omitempty"`
}

type ownedItemDTO struct {
	Item        itemDTO   `json:"item"`
	PurchasedAt time.Time `json:"purchased_at"`
}

type playerDTO struct {
	ID                     string         `json:"id"`
	Name                   string         `json:"name"`
	Avatar                 string         `json:"avatar,omitempty"`
	Points                 int64          `json:"points"`
	ItemCount              int            `json:"item_count"`
	OwnedItems             []ownedItemDTO `json:"owned_items"`
	JoinedAt               time.Time      `json:"joined_at"`
	PreSettlementItemCount *int           `json:"pre_settlement_item_count,omitempty"`
}

type taskDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Reward      int64  `json:"reward"`
	Completed   bool   `json:"completed"`
}

type notificationDTO struct {
	ID      uint64 `json:"id"`
	Message string `json:"message"`
}

type stateDTO struct {
	SessionID        string            `json:"session_id"`
	Mode             string            `json:"mode"`
	Phase            string            `json:"phase"`
	RemainingSeconds int64             `json:"remaining_seconds"`
	RemainingFrames  int64             `json:"remaining_frames"`
	Paused           bool              `json:"paused"`
	IsAuthority      bool              `json:"is_authority"`
	UnlockedFeatures []string          `json:"unlocked_features"`
	Player           playerDTO         `json:"player"`
	Tasks            []taskDTO         `json:"tasks"`
	Notifications    []notificationDTO `json:"notifications"`
}

type priceDTO struct {
	Item         itemDTO `json:"item"`
	Price        int64   `json:"price"`
	Fresh        bool    `json:"fresh"`
	CalculatedAt int64   `json:"calculated_at_frame"`
	Owned        bool    `json:"owned"`
}

type postDTO struct {
	ID            string    `json:"id"`
	SharerID      string    `json:"sharer_id"`
	SharerName    string    `json:"sharer_name"`
	Item          itemDTO   `json:"item"`
	SharedPrice   int64     `json:"shared_price"`
	SharedAt      time.Time `json:"shared_at"`
	IsAffiliate   bool      `json:"is_affiliate"`
	PurchaseCount int       `json:"purchase_count"`
}

type affiliatePurchaseDTO struct {
	PostID       string `json:"post_id"`
	BuyerID      string `json:"buyer_id"`
	SharerID     string `json:"sharer_id"`
	Price        int64  `json:"price"`
	RewardPoints int64  `json:"reward_points"`
}

type transactionDTO struct {
	ID          string `json:"id"`
	Amount      int64  `json:"amount"`
	Source      string `json:"source"`
	Description string `json:"description"`
	Timestamp   uint64 `json:"timestamp"`
	Type        string `json:"type"`
}

type ledgerDTO struct {
	PlayerID     string           `json:"player_id"`
	Balance      int64            `json:"balance"`
	Transactions []transactionDTO `json:"transactions"`
}

type standingDTO struct {
	Rank            int    `json:"rank"`
	PlayerID        string `json:"player_id"`
	PlayerName      string `json:"player_name"`
	FinalPoints     int64  `json:"points"`
	SettlementValue int64  `json:"settlement_value,omitempty"`
	ItemCount       int    `json:"item_count"`
}

type setInfoDTO struct {
	Category        string    `json:"category"`
	IsComplete      bool      `json:"is_complete"`
	Items           []itemDTO `json:"items"`
	IndividualValue int64     `json:"individual_value"`
	SetBonus        int64     `json:"set_bonus"`
	Value           int64     `json:"value"`
}

type settlementDTO struct {
	Sets    []setInfoDTO `json:"sets"`
	Total   int64        `json:"total"`
	Settled bool         `json:"settled"`
}

func itemToDTO(v catalog.Item) itemDTO {
	return itemDTO{
		ID:              v.ID,
		Name:            v.Name,
		Category:        string(v.Category),
		SeriesNumber:    v.SeriesNumber,
		PurchasePrice:   v.PurchasePrice,
		IndividualPrice: v.IndividualPrice,
		SetPrice:        v.SetPrice,
		Emoji:           v.Emoji,
	}
}

func playerToDTO(ctx context.Context, v player.Player) playerDTO {
	ctx, span := startSpan(ctx, "httpapi.playerToDTO")
	defer span.End()

	owned := make([]ownedItemDTO, 0, len(v.OwnedItems))
	for _, item := range v.OwnedItems {
		owned = append(owned, ownedItemDTO{Item: itemToDTO(item.Item), PurchasedAt: item.PurchasedAt})
	}
	return playerDTO{
		ID:                     v.ID,
		Name:                   v.Profile.Name,
		Avatar:                 v.Profile.Avatar,
		Points:                 v.Points,
		ItemCount:              v.ItemCount(),
		OwnedItems:             owned,
		JoinedAt:               v.JoinedAt,
		PreSettlementItemCount: v.PreSettlementItemCount,
	}
}

func taskToDTO(v usecase.TaskStatus) taskDTO {
	return taskDTO{
		ID:          string(v.Definition.ID),
		Name:        v.Definition.Name,
		Description: v.Definition.Description,
		Reward:      v.Definition.Reward,
		Completed:   v.Completed,
	}
}

func shopItemToDTO(v usecase.ShopItem) priceDTO {
	return priceDTO{
		Item:         itemToDTO(v.Item),
		Price:        v.Price,
		Fresh:        v.Fresh,
		CalculatedAt: v.CalculatedAt,
		Owned:        v.Owned,
	}
}

func postToDTO(v affiliate.SharedPost) postDTO {
	return postDTO{
		ID:            v.ID,
		SharerID:      v.SharerID,
		SharerName:    v.SharerName,
		Item:          itemToDTO(v.Item),
		SharedPrice:   v.SharedPrice,
		SharedAt:      v.SharedAt,
		IsAffiliate:   v.IsAffiliate,
		PurchaseCount: v.PurchaseCount,
	}
}

func affiliatePurchaseToDTO(v affiliate.Purchase) affiliatePurchaseDTO {
	return affiliatePurchaseDTO{
		PostID:       v.PostID,
		BuyerID:      v.BuyerID,
		SharerID:     v.SharerID,
		Price:        v.Price,
		RewardPoints: v.RewardPoints,
	}
}

func transactionToDTO(v ledger.Transaction) transactionDTO {
	return transactionDTO{
		ID:          v.ID,
		Amount:      v.Amount,
		Source:      string(v.Source),
		Description: v.Description,
		Timestamp:   v.Timestamp,
		Type:        string(v.Type),
	}
}

func standingToDTO(v result.Standing) standingDTO {
	return standingDTO{
		Rank:            v.Rank,
		PlayerID:        v.PlayerID,
		PlayerName:      v.PlayerName,
		FinalPoints:     v.FinalPoints,
		SettlementValue: v.SettlementValue,
		ItemCount:       v.ItemCount,
	}
}

func settlementToDTO(v settlement.Summary, settled bool) settlementDTO {
	sets := make([]setInfoDTO, 0, len(v.Sets))
	for _, set := range v.Sets {
		items := make([]itemDTO, 0, len(set.Items))
		for _, item := range set.Items {
			items = append(items, itemToDTO(item))
		}
		sets = append(sets, setInfoDTO{
			Category:        string(set.Category),
			IsComplete:      set.IsComplete,
			Items:           items,
			IndividualValue: set.IndividualValue,
			SetBonus:        set.SetBonus,
			Value:           set.Value(),
		})
	}
	return settlementDTO{Sets: sets, Total: v.Total, Settled: settled}
}
