package nbglm

import (
	"math"
	"sort"
)

// BenjaminiHochberg adjusts p-values for multiple testing, controlling the
// false discovery rate. NaN entries (untested genes) are passed through as
// NaN and do not count toward the number of hypotheses.
func BenjaminiHochberg(pvalues []float64) []float64 {
	type indexed struct {
		p float64
		i int
	}

	var tested []indexed
	for i, p := range pvalues {
		if math.IsNaN(p) {
			continue
		}
		tested = append(tested, indexed{p, i})
	}

	out := make([]float64, len(pvalues))
	for i := range out {
		out[i] = math.NaN()
	}

	m := len(tested)
	if m == 0 {
		return out
	}

	sort.Slice(tested, func(a, b int) bool { return tested[a].p < tested[b].p })

	// Walk from the largest p downward so each adjusted value is the running
	// minimum of p * m / rank.
	minSoFar := 1.0
	for rank := m; rank >= 1; rank-- {
		adj := tested[rank-1].p * float64(m) / float64(rank)
		if adj < minSoFar {
			minSoFar = adj
		}
		out[tested[rank-1].i] = minSoFar
	}

	return out
}
