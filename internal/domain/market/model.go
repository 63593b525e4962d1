package market

import (
	"errors"
	"fmt"
)

var ErrInvalidParams = errors.New("invalid market params")

// Mode selects who computes prices.
type Mode string

const (
	// ModeShared has one authoritative participant compute and broadcast.
	ModeShared Mode = "multi"
	// ModeSolo has every instance compute locally from its own seed.
	ModeSolo Mode = "ranking"
)

func ParseMode(v string) (Mode, error) {
	switch Mode(v) {
	case ModeShared, ModeSolo:
		return Mode(v), nil
	default:
		return "", fmt.Errorf("invalid market mode %q: valid values are %s, %s", v, ModeShared, ModeSolo)
	}
}

// PriceEntry is a cached dynamic price. Entries are replaced wholesale.
type PriceEntry struct {
	ItemID          string
	DynamicPrice    int64
	CalculatedAt    int64
	RemainingFrames int64
}

// Params holds the pricing constants.
type Params struct {
	Volatility        float64
	MinPriceRatio     float64
	MaxPriceRatio     float64
	BoostExponent     float64
	BoostScale        float64
	FallbackBasePrice int64
}

func DefaultParams() Params {
	return Params{
		Volatility:        0.8,
		MinPriceRatio:     0.3,
		MaxPriceRatio:     3.0,
		BoostExponent:     0.3,
		BoostScale:        4,
		FallbackBasePrice: 100,
	}
}

func (p Params) Validate() error {
	if p.Volatility < 0 {
		return fmt.Errorf("%w: volatility must be >= 0", ErrInvalidParams)
	}
	if p.MinPriceRatio <= 0 || p.MaxPriceRatio <= 0 {
		return fmt.Errorf("%w: price ratios must be > 0", ErrInvalidParams)
	}
	if p.MinPriceRatio > p.MaxPriceRatio {
		return fmt.Errorf("%w: min ratio %.2f exceeds max ratio %.2f", ErrInvalidParams, p.MinPriceRatio, p.MaxPriceRatio)
	}
	if p.BoostExponent <= 0 {
		return fmt.Errorf("%w: boost exponent must be > 0", ErrInvalidParams)
	}
	if p.FallbackBasePrice <= 0 {
		return fmt.Errorf("%w: fallback base price must be > 0", ErrInvalidParams)
	}
	return nil
}
