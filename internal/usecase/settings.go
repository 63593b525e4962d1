package usecase

import (
	"fmt"
	"time"

	"github.com/riskibarqy/point-farm/internal/domain/affiliate"
	"github.com/riskibarqy/point-farm/internal/domain/market"
	"github.com/shopspring/decimal"
)

// GameSettings is the per-instance configuration threaded through every
// service. Durations are expressed in frames.
type GameSettings struct {
	Mode                     market.Mode
	TickRate                 int
	TimeLimitFrames          int64
	NotificationTTLFrames    int64
	AdReward                 int64
	AdCooldownFrames         int64
	MarketInitialDelayFrames int64
	MarketIntervalFrames     int64
	RosterSyncFrames         int64
	MarketParams             market.Params
	MarketSeed               uint64
	RewardRate               decimal.Decimal
}

func DefaultGameSettings() GameSettings {
	const tickRate = 60
	return GameSettings{
		Mode:                     market.ModeShared,
		TickRate:                 tickRate,
		TimeLimitFrames:          FramesFor(3*time.Minute, tickRate),
		NotificationTTLFrames:    FramesFor(3*time.Second, tickRate),
		AdReward:                 10,
		AdCooldownFrames:         FramesFor(time.Second, tickRate),
		MarketInitialDelayFrames: FramesFor(time.Second, tickRate),
		MarketIntervalFrames:     FramesFor(3*time.Second, tickRate),
		RosterSyncFrames:         FramesFor(time.Second, tickRate),
		MarketParams:             market.DefaultParams(),
		MarketSeed:               1,
		RewardRate:               affiliate.DefaultRewardRate,
	}
}

// FramesFor converts a duration to whole frames at tickRate.
func FramesFor(d time.Duration, tickRate int) int64 {
	if d <= 0 || tickRate <= 0 {
		return 0
	}
	return int64(d) * int64(tickRate) / int64(time.Second)
}

func (s GameSettings) Validate() error {
	if _, err := market.ParseMode(string(s.Mode)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if s.TickRate <= 0 {
		return fmt.Errorf("%w: tick rate must be > 0", ErrInvalidInput)
	}
	if s.TimeLimitFrames <= 0 {
		return fmt.Errorf("%w: time limit must be > 0", ErrInvalidInput)
	}
	if s.AdReward <= 0 {
		return fmt.Errorf("%w: ad reward must be > 0", ErrInvalidInput)
	}
	if s.MarketIntervalFrames <= 0 {
		return fmt.Errorf("%w: market interval must be > 0", ErrInvalidInput)
	}
	if s.RosterSyncFrames < 0 {
		return fmt.Errorf("%w: roster sync window must be >= 0", ErrInvalidInput)
	}
	if s.RewardRate.IsNegative() || s.RewardRate.GreaterThan(decimal.NewFromInt(1)) {
		return fmt.Errorf("%w: reward rate must be within [0,1]", ErrInvalidInput)
	}
	if err := s.MarketParams.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
