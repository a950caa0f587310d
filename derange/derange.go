// Package derange generates uniformly distributed random derangements:
// permutations where no element keeps its original position.
package derange

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
)

var (
	ErrInvalidInput        = errors.New("derange: invalid input")
	ErrRetryBudgetExceeded = errors.New("derange: retry budget exceeded")
)

// Strategy selects the sampling algorithm used by a Generator.
type Strategy int

const (
	// Auto uses rejection sampling for small inputs and falls back to Direct
	// when the input is large or the attempt cap is reached.
	Auto Strategy = iota
	// Rejection shuffles and discards permutations with a fixed point.
	Rejection
	// Direct builds the derangement in linear expected time without retries.
	Direct
)

const (
	DefaultMaxAttempts    = 64
	DefaultRejectionLimit = 32
)

func (s Strategy) String() string {
	switch s {
	case Auto:
		return "auto"
	case Rejection:
		return "rejection"
	case Direct:
		return "direct"
	}
	return fmt.Sprintf("Strategy(%d)", int(s))
}

// ParseStrategy converts a config value into a Strategy. An empty string is Auto.
func ParseStrategy(s string) (Strategy, error) {
	switch s {
	case "", "auto":
		return Auto, nil
	case "rejection":
		return Rejection, nil
	case "direct":
		return Direct, nil
	}
	return Auto, fmt.Errorf("derange: unknown strategy %q", s)
}

type Option func(g *Generator)

func WithStrategy(s Strategy) Option {
	return func(g *Generator) { g.strategy = s }
}

// WithMaxAttempts caps the number of shuffles tried by rejection sampling.
// Values below 1 keep the default.
func WithMaxAttempts(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.maxAttempts = n
		}
	}
}

// WithRejectionLimit sets the largest input Auto will try rejection sampling on.
func WithRejectionLimit(n int) Option {
	return func(g *Generator) {
		if n >= 0 {
			g.rejectionLimit = n
		}
	}
}

// Generator draws derangements from an injected random source. It is safe
// for concurrent use.
type Generator struct {
	mu             sync.Mutex
	rnd            *rand.Rand
	strategy       Strategy
	maxAttempts    int
	rejectionLimit int
}

func New(src rand.Source, opts ...Option) *Generator {
	g := &Generator{
		rnd:            rand.New(src),
		maxAttempts:    DefaultMaxAttempts,
		rejectionLimit: DefaultRejectionLimit,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// NewSeeded is New with a math/rand source seeded by seed.
func NewSeeded(seed int64, opts ...Option) *Generator {
	return New(rand.NewSource(seed), opts...)
}

func (g *Generator) Strategy() Strategy { return g.strategy }

// Indices returns a derangement p of 0..n-1, so p[i] != i for every i.
func (g *Generator) Indices(n int) ([]int, error) {
	if n < 2 {
		return nil, fmt.Errorf("%w: need at least 2 items, got %d", ErrInvalidInput, n)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	switch g.strategy {
	case Rejection:
		return rejectionSample(g.rnd, n, g.maxAttempts)
	case Direct:
		return directSample(g.rnd, n), nil
	}

	if n > g.rejectionLimit {
		return directSample(g.rnd, n), nil
	}
	p, err := rejectionSample(g.rnd, n, g.maxAttempts)
	if errors.Is(err, ErrRetryBudgetExceeded) {
		return directSample(g.rnd, n), nil
	}
	return p, err
}

// Generate returns items reordered so that result[i] != items[i] for every i.
// items must hold at least two distinct values and no duplicates.
func Generate[T comparable](g *Generator, items []T) ([]T, error) {
	seen := make(map[T]struct{}, len(items))
	for _, v := range items {
		if _, ok := seen[v]; ok {
			return nil, fmt.Errorf("%w: duplicate item %v", ErrInvalidInput, v)
		}
		seen[v] = struct{}{}
	}

	p, err := g.Indices(len(items))
	if err != nil {
		return nil, err
	}
	out := make([]T, len(items))
	for i := range out {
		out[i] = items[p[i]]
	}
	return out, nil
}

// IsDerangement reports whether p is a permutation of 0..len(p)-1 with no
// fixed points.
func IsDerangement(p []int) bool {
	seen := make([]bool, len(p))
	for i, v := range p {
		if v == i || v < 0 || v >= len(p) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return len(p) >= 2
}
