package derange

import (
	"fmt"
	"math/rand"
)

// rejectionSample shuffles the identity permutation until it has no fixed
// point. Every permutation is equally likely, so the accepted ones are a
// uniform sample of derangements. An attempt succeeds with probability
// D(n)/n!: 1/2 for n=2, 1/3 for n=3 and close to 1/e after that.
func rejectionSample(r *rand.Rand, n, maxAttempts int) ([]int, error) {
	p := make([]int, n)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		for i := range p {
			p[i] = i
		}
		r.Shuffle(n, func(i, j int) {
			p[i], p[j] = p[j], p[i]
		})
		if !hasFixedPoint(p) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no derangement of %d items after %d attempts", ErrRetryBudgetExceeded, n, maxAttempts)
}

func hasFixedPoint(p []int) bool {
	for i, v := range p {
		if i == v {
			return true
		}
	}
	return false
}
