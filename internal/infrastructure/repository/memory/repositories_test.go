package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/affiliate"
	"github.com/riskibarqy/point-farm/internal/domain/catalog"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/result"
)

func TestLedgerRepository_AppendKeepsOrderAndRejectsDuplicates(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewLedgerRepository()

	earned := ledger.Transaction{ID: "tx-1", PlayerID: "p1", Amount: 50, Source: ledger.SourceTask, Timestamp: 1, Type: ledger.TypeEarned}
	spent := ledger.Transaction{ID: "tx-2", PlayerID: "p1", Amount: -30, Source: ledger.SourceShop, Timestamp: 2, Type: ledger.TypeSpent}
	if err := repo.Append(ctx, earned); err != nil {
		t.Fatalf("append earned: %v", err)
	}
	if err := repo.Append(ctx, spent); err != nil {
		t.Fatalf("append spent: %v", err)
	}
	if err := repo.Append(ctx, earned); !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	invalid := ledger.Transaction{ID: "tx-3", PlayerID: "p1", Amount: -5, Type: ledger.TypeEarned}
	if err := repo.Append(ctx, invalid); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Fatalf("expected invalid amount error, got %v", err)
	}

	items, err := repo.ListByPlayer(ctx, "p1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 2 || items[0].ID != "tx-1" || items[1].ID != "tx-2" {
		t.Fatalf("unexpected transactions: %+v", items)
	}
	if got := ledger.Sum(items); got != 20 {
		t.Fatalf("expected balance 20, got %d", got)
	}

	items[0].Amount = 999
	again, _ := repo.ListByPlayer(ctx, "p1")
	if again[0].Amount != 50 {
		t.Fatalf("list must return a copy, got amount %d", again[0].Amount)
	}
}

func TestAffiliateRepository_RecordPurchaseOncePerBuyer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewAffiliateRepository()
	post := affiliate.SharedPost{
		ID:          "post-1",
		SharerID:    "host",
		Item:        catalog.Item{ID: "manga-1", Name: "Manga Vol.1", Category: catalog.CategoryManga, SeriesNumber: 1, PurchasePrice: 100},
		SharedPrice: 100,
		SharedAt:    time.Unix(0, 0),
		IsAffiliate: true,
	}
	if err := repo.Save(ctx, post); err != nil {
		t.Fatalf("save: %v", err)
	}

	updated, applied, err := repo.RecordPurchase(ctx, "post-1", "guest")
	if err != nil || !applied || updated.PurchaseCount != 1 {
		t.Fatalf("first purchase: post=%+v applied=%v err=%v", updated, applied, err)
	}
	updated, applied, err = repo.RecordPurchase(ctx, "post-1", "guest")
	if err != nil || applied || updated.PurchaseCount != 1 {
		t.Fatalf("replayed purchase: post=%+v applied=%v err=%v", updated, applied, err)
	}
	if _, _, err := repo.RecordPurchase(ctx, "post-404", "guest"); !errors.Is(err, affiliate.ErrPostNotFound) {
		t.Fatalf("expected post not found, got %v", err)
	}

	bought, err := repo.HasPurchased(ctx, "post-1", "guest")
	if err != nil || !bought {
		t.Fatalf("expected guest purchase recorded, got %v %v", bought, err)
	}

	second := post
	second.ID = "post-2"
	if err := repo.Save(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}
	posts, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(posts) != 2 || posts[0].ID != "post-1" || posts[1].ID != "post-2" {
		t.Fatalf("unexpected post order: %+v", posts)
	}
}

func TestResultRepository_UpsertsAndOrdersByRank(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewResultRepository()
	rows := []result.Standing{
		{SessionID: "s1", PlayerID: "b", Rank: 2, FinalPoints: 10},
		{SessionID: "s1", PlayerID: "a", Rank: 1, FinalPoints: 40},
		{SessionID: "s1", PlayerID: "c", Rank: 2, FinalPoints: 10},
		{SessionID: "s2", PlayerID: "z", Rank: 1, FinalPoints: 5},
		{SessionID: "s1", PlayerID: "a", Rank: 1, FinalPoints: 45},
	}
	for _, row := range rows {
		if err := repo.Save(ctx, row); err != nil {
			t.Fatalf("save %s: %v", row.PlayerID, err)
		}
	}

	got, err := repo.ListBySession(ctx, "s1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 standings, got %d", len(got))
	}
	wantOrder := []string{"a", "b", "c"}
	for i, id := range wantOrder {
		if got[i].PlayerID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, got[i].PlayerID)
		}
	}
	if got[0].FinalPoints != 45 {
		t.Fatalf("expected upserted points 45, got %d", got[0].FinalPoints)
	}
}
