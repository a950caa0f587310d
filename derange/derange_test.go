package derange

import (
	"fmt"
	"math"
	"math/rand"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat/distuv"
)

var allStrategies = []Strategy{Auto, Rejection, Direct}

func isInvalid(t *testing.T, a []int) {
	t.Helper()
	if hasDuplicates(a) {
		t.Log(a)
		t.Fatal("List has duplicates")
	}
	if i, y := hasSamePosition(a); y {
		t.Log(a)
		t.Fatalf("Number %d should not stay in the same position", i)
	}
}

func hasDuplicates(a []int) bool {
	b := make([]int, len(a))
	for i := range a {
		b[a[i]]++
		if b[a[i]] > 1 {
			return true
		}
	}
	return false
}

func hasSamePosition(a []int) (int, bool) {
	for k, v := range a {
		if k == v {
			return k, true
		}
	}
	return 0, false
}

func TestIndices(t *testing.T) {
	for _, s := range allStrategies {
		for seed := int64(0); seed < 1<<10; seed++ {
			t.Run(fmt.Sprintf("%s/%d", s, seed), func(t *testing.T) {
				g := NewSeeded(seed, WithStrategy(s))
				a, err := g.Indices(16)
				require.NoError(t, err)
				require.Len(t, a, 16)
				isInvalid(t, a)
			})
		}
	}
}

func TestIndicesTerminates(t *testing.T) {
	for _, s := range allStrategies {
		for _, n := range []int{2, 3, 4, 10, 100, 1000} {
			t.Run(fmt.Sprintf("%s/%d", s, n), func(t *testing.T) {
				g := NewSeeded(int64(n), WithStrategy(s))
				a, err := g.Indices(n)
				require.NoError(t, err)
				assert.True(t, IsDerangement(a))
			})
		}
	}
}

type countingSource struct {
	rand.Source
	calls int
}

func (c *countingSource) Int63() int64 {
	c.calls++
	return c.Source.Int63()
}

func TestDirectUsesLinearRandomness(t *testing.T) {
	for _, n := range []int{2, 3, 10, 1000, 100_000} {
		src := &countingSource{Source: rand.NewSource(7)}
		g := New(src, WithStrategy(Direct))
		a, err := g.Indices(n)
		require.NoError(t, err)
		require.True(t, IsDerangement(a))
		assert.LessOrEqual(t, src.calls, 20*n+100, "n=%d", n)
	}
}

func TestInvalidInput(t *testing.T) {
	g := NewSeeded(1)

	_, err := g.Indices(0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = g.Indices(1)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = Generate(g, []int64{})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = Generate(g, []int64{42})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = Generate(g, []int64{1, 2, 2, 3})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = Generate(g, []string{"a", "a"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInvalidInputDrawsNothing(t *testing.T) {
	src := &countingSource{Source: rand.NewSource(1)}
	g := New(src)
	_, err := Generate(g, []int{5, 6, 5})
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Zero(t, src.calls)
}

func TestGenerate(t *testing.T) {
	items := []int64{11, 42, 7, 19, 3, 100}
	for _, s := range allStrategies {
		g := NewSeeded(3, WithStrategy(s))
		for i := 0; i < 200; i++ {
			out, err := Generate(g, items)
			require.NoError(t, err)
			for i := range items {
				require.NotEqual(t, items[i], out[i])
			}
			assert.ElementsMatch(t, items, out)
		}
	}
}

func TestGenerateLeavesInputUntouched(t *testing.T) {
	items := []string{"alice", "bob", "carol"}
	_, err := Generate(NewSeeded(9), items)
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob", "carol"}, items)
}

func TestGenerateTwo(t *testing.T) {
	for _, s := range allStrategies {
		out, err := Generate(NewSeeded(5, WithStrategy(s)), []int{1, 2})
		require.NoError(t, err)
		assert.Equal(t, []int{2, 1}, out)
	}
}

// assignmentIndices maps each chosen item back to its position in items.
func assignmentIndices(items, out []int) []int {
	p := make([]int, len(out))
	for i, v := range out {
		p[i] = slices.Index(items, v)
	}
	return p
}

func TestValidAssignmentExamples(t *testing.T) {
	in := []int{1, 2, 3, 4}
	assert.True(t, IsDerangement(assignmentIndices(in, []int{4, 3, 2, 1})))
	assert.True(t, IsDerangement(assignmentIndices(in, []int{2, 1, 4, 3})))
	assert.False(t, IsDerangement(assignmentIndices(in, []int{1, 3, 4, 2})))
	assert.False(t, IsDerangement(assignmentIndices(in, []int{2, 1, 4, 9})))

	assert.True(t, IsDerangement([]int{3, 2, 1, 0}))
	assert.True(t, IsDerangement([]int{1, 0, 3, 2}))
	assert.False(t, IsDerangement([]int{0, 2, 3, 1}))
	assert.False(t, IsDerangement([]int{1, 1, 0}))
	assert.False(t, IsDerangement([]int{1, 2, 5}))
	assert.False(t, IsDerangement([]int{0}))
}

func TestThreeItemsSplitEvenly(t *testing.T) {
	for _, s := range allStrategies {
		t.Run(s.String(), func(t *testing.T) {
			g := NewSeeded(2024, WithStrategy(s))
			counts := map[string]int{}
			const runs = 10_000
			for i := 0; i < runs; i++ {
				out, err := Generate(g, []int{1, 2, 3})
				require.NoError(t, err)
				counts[fmt.Sprint(out)]++
			}
			require.Len(t, counts, 2)
			// standard deviation of each count is 50
			assert.InDelta(t, runs/2, counts["[2 3 1]"], 300)
			assert.InDelta(t, runs/2, counts["[3 1 2]"], 300)
		})
	}
}

func TestFourItemsUniform(t *testing.T) {
	for _, s := range allStrategies {
		t.Run(s.String(), func(t *testing.T) {
			g := NewSeeded(99, WithStrategy(s))
			counts := map[string]int{}
			const runs = 18_000
			for i := 0; i < runs; i++ {
				p, err := g.Indices(4)
				require.NoError(t, err)
				counts[fmt.Sprint(p)]++
			}
			// D(4) = 9
			require.Len(t, counts, 9)

			expected := float64(runs) / 9
			var chi2 float64
			for _, c := range counts {
				d := float64(c) - expected
				chi2 += d * d / expected
			}
			pValue := 1 - distuv.ChiSquared{K: 8}.CDF(chi2)
			assert.Greater(t, pValue, 1e-4, "chi2=%f counts=%v", chi2, counts)
		})
	}
}

func TestNoTargetBias(t *testing.T) {
	// each position should see every other index about equally often
	const n, runs = 6, 30_000
	g := NewSeeded(11, WithStrategy(Direct))
	hits := make([][]int, n)
	for i := range hits {
		hits[i] = make([]int, n)
	}
	for i := 0; i < runs; i++ {
		p, err := g.Indices(n)
		require.NoError(t, err)
		for i, v := range p {
			hits[i][v]++
		}
	}
	expected := float64(runs) / (n - 1)
	for i := range hits {
		assert.Zero(t, hits[i][i])
		for j := range hits[i] {
			if i != j {
				assert.InDelta(t, expected, hits[i][j], expected*0.08, "position %d target %d", i, j)
			}
		}
	}
}

func TestRejectionBudget(t *testing.T) {
	exceeded := 0
	for seed := int64(0); seed < 100; seed++ {
		g := NewSeeded(seed, WithStrategy(Rejection), WithMaxAttempts(1))
		p, err := g.Indices(3)
		if err != nil {
			require.ErrorIs(t, err, ErrRetryBudgetExceeded)
			require.Nil(t, p)
			exceeded++
			continue
		}
		isInvalid(t, p)
	}
	// an attempt on three items fails two times in three
	assert.Greater(t, exceeded, 30)
	assert.Less(t, exceeded, 100)
}

func TestAutoFallsBackToDirect(t *testing.T) {
	for seed := int64(0); seed < 100; seed++ {
		g := NewSeeded(seed, WithMaxAttempts(1))
		p, err := g.Indices(3)
		require.NoError(t, err)
		isInvalid(t, p)
	}
}

func TestAutoSkipsRejectionAboveLimit(t *testing.T) {
	g := NewSeeded(4, WithRejectionLimit(2), WithMaxAttempts(1))
	p, err := g.Indices(500)
	require.NoError(t, err)
	assert.True(t, IsDerangement(p))
}

func TestDerangementRatios(t *testing.T) {
	// D(0..8) = 1, 0, 1, 2, 9, 44, 265, 1854, 14833
	d := []float64{1, 0, 1, 2, 9, 44, 265, 1854, 14833}
	q := derangementRatios(len(d) - 1)
	for u := 2; u < len(d); u++ {
		assert.InDelta(t, d[u-1]/d[u], q[u], 1e-12, "u=%d", u)
	}
	for u := 3; u < len(d); u++ {
		assert.InDelta(t, float64(u-1)*d[u-2]/d[u], closeProbability(u, q), 1e-12, "u=%d", u)
	}
	assert.Equal(t, 1.0, closeProbability(2, q))

	big := derangementRatios(100_000)
	assert.False(t, slices.ContainsFunc(big[2:], func(f float64) bool { return f < 0 || f > 1 || math.IsNaN(f) }))
}

func TestParseStrategy(t *testing.T) {
	for _, s := range allStrategies {
		got, err := ParseStrategy(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, got)
	}
	got, err := ParseStrategy("")
	require.NoError(t, err)
	assert.Equal(t, Auto, got)
	_, err = ParseStrategy("sattolo")
	assert.Error(t, err)
}

func TestConcurrentUse(t *testing.T) {
	g := NewSeeded(1)
	done := make(chan []int)
	for i := 0; i < 8; i++ {
		go func() {
			p, _ := g.Indices(50)
			done <- p
		}()
	}
	for i := 0; i < 8; i++ {
		assert.True(t, IsDerangement(<-done))
	}
}

func FuzzIndices(f *testing.F) {
	f.Add(int64(0), uint8(2))
	f.Add(int64(1), uint8(3))
	f.Add(int64(42), uint8(16))
	f.Fuzz(func(t *testing.T, seed int64, n uint8) {
		if n < 2 {
			t.Skip()
		}
		for _, s := range allStrategies {
			a, err := NewSeeded(seed, WithStrategy(s)).Indices(int(n))
			if err != nil {
				if s == Rejection {
					continue
				}
				t.Fatal(err)
			}
			isInvalid(t, a)
		}
	})
}
