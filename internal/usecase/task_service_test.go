package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/riskibarqy/point-farm/internal/domain/market"
	"github.com/riskibarqy/point-farm/internal/domain/phase"
	"github.com/riskibarqy/point-farm/internal/domain/task"
)

func TestTaskService_CompleteTask(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPeer(t, "tina", testSettings(market.ModeSolo), nil, nil)
	p.join(t)

	achieved := 0
	p.s.game.Subscribe(EventTaskAchieved, func(any) { achieved++ })

	if _, err := p.s.Tasks().CompleteTask(ctx, task.Survey); !errors.Is(err, phase.ErrFeatureLocked) {
		t.Fatalf("expected survey locked in INITIAL, got %v", err)
	}
	if _, err := p.s.Tasks().CompleteTask(ctx, task.Profile); err != nil {
		t.Fatalf("complete profile: %v", err)
	}
	if _, err := p.s.Tasks().CompleteTask(ctx, task.Profile); !errors.Is(err, task.ErrAlreadyCompleted) {
		t.Fatalf("expected ErrAlreadyCompleted, got %v", err)
	}
	if _, err := p.s.Tasks().CompleteTask(ctx, "daily_login"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if achieved != 1 || p.s.game.CurrentPlayer().Points != 50 {
		t.Fatalf("expected one achievement and 50 points, got %d and %d", achieved, p.s.game.CurrentPlayer().Points)
	}

	statuses := p.s.Tasks().Tasks()
	completed := 0
	for _, status := range statuses {
		if status.Completed {
			completed++
		}
	}
	if len(statuses) != 5 || completed != 1 {
		t.Fatalf("unexpected task statuses: %+v", statuses)
	}
}

func TestTaskService_ClickAdCooldown(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPeer(t, "adam", testSettings(market.ModeSolo), nil, nil)
	p.join(t)

	if _, err := p.s.Tasks().ClickAd(ctx); !errors.Is(err, phase.ErrFeatureLocked) {
		t.Fatalf("expected ads locked before profile, got %v", err)
	}
	if _, err := p.s.Tasks().UpdateProfile(ctx, "Adam", ""); err != nil {
		t.Fatalf("profile: %v", err)
	}

	got, err := p.s.Tasks().ClickAd(ctx)
	if err != nil {
		t.Fatalf("first click: %v", err)
	}
	// 50 profile + 10 ad + 30 first ad
	if got.Points != 90 || !got.HasCompleted(task.FirstAd) {
		t.Fatalf("unexpected player after first click: %+v", got)
	}

	if _, err := p.s.Tasks().ClickAd(ctx); !errors.Is(err, ErrAdCooldown) {
		t.Fatalf("expected ErrAdCooldown, got %v", err)
	}
	p.steps(t, 2)
	got, err = p.s.Tasks().ClickAd(ctx)
	if err != nil {
		t.Fatalf("click after cooldown: %v", err)
	}
	if got.Points != 100 {
		t.Fatalf("expected 100 points, got %d", got.Points)
	}
	if p.s.game.Phase() != phase.Shopping {
		t.Fatalf("expected SHOPPING at 100 points with first ad, got %s", p.s.game.Phase())
	}
}

func TestTaskService_UpdateProfileValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := newTestPeer(t, "val", testSettings(market.ModeSolo), nil, nil)
	p.join(t)

	tests := []struct {
		name string
		in   string
	}{
		{name: "blank", in: "   "},
		{name: "too long", in: "abcdefghijklmnopqrstuvwxyz0123456789"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := p.s.Tasks().UpdateProfile(ctx, tt.in, ""); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
		})
	}
	if p.s.game.CurrentPlayer().HasCompleted(task.Profile) {
		t.Fatalf("invalid profile must not complete the task")
	}
}
