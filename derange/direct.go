package derange

import "math/rand"

// directSample implements the random derangement algorithm of Martínez,
// Panholzer and Prodinger (2008). Walking down from the last index, each
// unmarked element swaps with a random unmarked element below it. With
// probability (u-1)D(u-2)/D(u) that swap closes a 2-cycle and the partner is
// marked as finished. u counts the unmarked indices at or below i.
//
// The output is uniform over all derangements and uses about 2n random
// numbers on average.
func directSample(r *rand.Rand, n int) []int {
	q := derangementRatios(n)
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	marked := make([]bool, n)

	u := n
	for i := n - 1; u >= 2; i-- {
		if marked[i] {
			continue
		}
		j := r.Intn(i)
		for marked[j] {
			j = r.Intn(i)
		}
		p[i], p[j] = p[j], p[i]
		if r.Float64() < closeProbability(u, q) {
			marked[j] = true
			u--
		}
		u--
	}
	return p
}

// derangementRatios returns q with q[u] = D(u-1)/D(u) for 2 <= u <= n, where
// D is the number of derangements. D(u) = (u-1)(D(u-1)+D(u-2)) gives
// q[u] = 1/((u-1)(1+q[u-1])), which stays finite long after D(u) would
// overflow a float64.
func derangementRatios(n int) []float64 {
	q := make([]float64, n+1)
	// q[2] = D(1)/D(2) = 0
	for u := 3; u <= n; u++ {
		q[u] = 1 / (float64(u-1) * (1 + q[u-1]))
	}
	return q
}

// closeProbability is (u-1)D(u-2)/D(u).
func closeProbability(u int, q []float64) float64 {
	if u == 2 {
		return 1
	}
	return float64(u-1) * q[u] * q[u-1]
}
