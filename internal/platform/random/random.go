package random

import (
	crand "crypto/rand"
	"fmt"
	"math/rand/v2"
	"sync"
)

// Source draws uniform values in [0,1).
type Source interface {
	Float64() float64
}

// Authority is the generator owned by the participant that computes shared
// prices. It is seeded from the OS entropy pool.
type Authority struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewAuthority() (*Authority, error) {
	var seed [32]byte
	if _, err := crand.Read(seed[:]); err != nil {
		return nil, fmt.Errorf("read authority seed: %w", err)
	}
	return &Authority{rng: rand.New(rand.NewChaCha8(seed))}, nil
}

func (a *Authority) Float64() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.rng.Float64()
}

// Seeded is a deterministic local generator: the same seed yields the same
// sequence.
type Seeded struct {
	mu   sync.Mutex
	seed uint64
	rng  *rand.Rand
}

func NewSeeded(seed uint64) *Seeded {
	return &Seeded{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
}

func (s *Seeded) Seed() uint64 {
	return s.seed
}

func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}
