package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/riskibarqy/point-farm/internal/domain/affiliate"
	"github.com/riskibarqy/point-farm/internal/domain/ledger"
	"github.com/riskibarqy/point-farm/internal/domain/phase"
	"github.com/riskibarqy/point-farm/internal/domain/task"
	busmemory "github.com/riskibarqy/point-farm/internal/infrastructure/bus/memory"
	"github.com/riskibarqy/point-farm/internal/platform/logging"
	"github.com/riskibarqy/point-farm/internal/platform/random"
	"github.com/riskibarqy/point-farm/internal/usecase"
)

// Spend at most this share of the balance on one store item so the bot
// keeps funds for affiliate posts.
const maxSpendRatio = 0.6

// bot plays one session with a fixed script: profile, ads and the survey
// first, then store purchases, sharing and buying other players' posts.
type bot struct {
	name     string
	session  *usecase.Session
	endpoint *busmemory.Endpoint
	rng      *random.Seeded
	shared   map[string]bool
	logger   *logging.Logger
}

// frame applies pending messages, takes at most one scripted action and
// advances the clock by one frame.
func (b *bot) frame(ctx context.Context) error {
	b.drain(ctx)
	if err := b.session.Do(ctx, b.act); err != nil {
		return fmt.Errorf("%s act: %w", b.name, err)
	}
	return b.session.Step(ctx)
}

func (b *bot) drain(ctx context.Context) {
	for {
		select {
		case env, ok := <-b.endpoint.Receive():
			if !ok {
				return
			}
			if err := b.session.HandleEnvelope(ctx, env); err != nil {
				b.logger.DebugContext(ctx, "envelope rejected", "kind", string(env.Kind), "error", err)
			}
		default:
			return
		}
	}
}

func (b *bot) act(ctx context.Context) error {
	game := b.session.Game()
	current := game.CurrentPlayer()
	p := game.Phase()
	if p >= phase.Settlement {
		return nil
	}

	if !current.HasCompleted(task.Profile) {
		_, err := b.session.Tasks().UpdateProfile(ctx, b.name, "bot")
		return expected(err)
	}
	if p == phase.Basic {
		if !current.HasCompleted(task.Survey) {
			_, err := b.session.Tasks().CompleteTask(ctx, task.Survey)
			return expected(err)
		}
		_, err := b.session.Tasks().ClickAd(ctx)
		return expected(err)
	}

	// Ads keep paying in later phases; skip some frames so the bot also shops.
	if b.rng.Float64() < 0.3 {
		_, err := b.session.Tasks().ClickAd(ctx)
		return expected(err)
	}
	if p == phase.Advanced {
		if done, err := b.trade(ctx); done || err != nil {
			return err
		}
	}
	return b.shop(ctx)
}

func (b *bot) shop(ctx context.Context) error {
	balance := b.session.Game().CurrentPlayer().Points
	items := b.session.Shop().Items(ctx)
	sort.SliceStable(items, func(i, j int) bool { return items[i].Price < items[j].Price })
	for _, item := range items {
		if item.Owned || float64(item.Price) > float64(balance)*maxSpendRatio {
			continue
		}
		_, err := b.session.Shop().Purchase(ctx, item.Item.ID)
		return expected(err)
	}
	return nil
}

// trade shares one unshared owned item or buys one affordable post. It
// reports whether it took an action.
func (b *bot) trade(ctx context.Context) (bool, error) {
	timeline := b.session.Affiliate()
	for _, owned := range b.session.Game().CurrentPlayer().OwnedItems {
		if b.shared[owned.Item.ID] {
			continue
		}
		b.shared[owned.Item.ID] = true
		_, err := timeline.Share(ctx, owned.Item.ID)
		return true, expected(err)
	}

	posts, err := timeline.Posts(ctx)
	if err != nil {
		return false, err
	}
	for _, post := range posts {
		if timeline.CanPurchase(ctx, post.ID) != nil {
			continue
		}
		_, err := timeline.Purchase(ctx, post.ID)
		return true, expected(err)
	}
	return false, nil
}

// expected drops the rejections a scripted player runs into during normal
// play.
func expected(err error) error {
	switch {
	case err == nil,
		errors.Is(err, usecase.ErrAdCooldown),
		errors.Is(err, phase.ErrFeatureLocked),
		errors.Is(err, task.ErrAlreadyCompleted),
		errors.Is(err, affiliate.ErrAlreadyOwned),
		errors.Is(err, affiliate.ErrSelfPurchase),
		errors.Is(err, affiliate.ErrPostNotFound),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, usecase.ErrGameOver):
		return nil
	default:
		return err
	}
}
