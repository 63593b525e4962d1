package market

import "math"

// Quote is the outcome of one price computation.
type Quote struct {
	Price         int64
	BasePrice     int64
	TimeFactor    float64
	DefaultedBase bool
}

// Bounds returns the inclusive price range for a base price.
func Bounds(basePrice int64, p Params) (int64, int64) {
	minPrice := int64(math.Floor(float64(basePrice) * p.MinPriceRatio))
	maxPrice := int64(math.Floor(float64(basePrice) * p.MaxPriceRatio))
	if minPrice < 1 {
		minPrice = 1
	}
	if maxPrice < minPrice {
		maxPrice = minPrice
	}
	return minPrice, maxPrice
}

// Compute derives a dynamic price from the base price, the remaining and
// total time (in frames) and one random draw r in [0,1).
func Compute(basePrice, remaining, total int64, r float64, p Params) Quote {
	q := Quote{BasePrice: basePrice}
	if basePrice <= 0 {
		q.BasePrice = p.FallbackBasePrice
		q.DefaultedBase = true
	}

	q.TimeFactor = timeFactor(remaining, total)
	r = clampUnit(r)

	boost := math.Pow(q.TimeFactor, p.BoostExponent)
	volatilityMultiplier := 1 + boost*p.BoostScale
	waveEffect := math.Sin(r*2*math.Pi) * boost
	baseMultiplier := 0.5 + r
	priceMultiplier := baseMultiplier + waveEffect*p.Volatility*volatilityMultiplier

	raw := math.Floor(float64(q.BasePrice) * priceMultiplier)
	minPrice, maxPrice := Bounds(q.BasePrice, p)
	switch {
	case math.IsNaN(raw), raw < float64(minPrice):
		q.Price = minPrice
	case raw > float64(maxPrice):
		q.Price = maxPrice
	default:
		q.Price = int64(raw)
	}

	return q
}

func timeFactor(remaining, total int64) float64 {
	if total <= 0 || remaining <= 0 {
		return 0
	}
	if remaining >= total {
		return 1
	}
	return float64(remaining) / float64(total)
}

func clampUnit(r float64) float64 {
	switch {
	case math.IsNaN(r), r < 0:
		return 0
	case r >= 1:
		return math.Nextafter(1, 0)
	default:
		return r
	}
}
