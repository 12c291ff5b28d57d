// Package nbglm fits per-gene negative binomial generalized linear models for
// a two-group design and tests the group coefficient with a Wald test.
package nbglm

import (
	"fmt"
	"math"

	"github.com/carbocation/pfx"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	maxIterations = 100
	tolerance     = 1e-8

	// Small ridge on the normal equations keeps the fit defined when one
	// group has no reads at all.
	ridge = 1e-6

	// Coefficients are boxed during iteration; a natural-log fold change of
	// 30 is already far beyond anything biologically meaningful.
	maxBeta = 30
)

// GeneResult holds the Wald test output for one gene. When Valid is false
// (gene never observed) the statistics are meaningless and should be reported
// as NA.
type GeneResult struct {
	BaseMean       float64
	Log2FoldChange float64
	LfcSE          float64
	Stat           float64
	PValue         float64
	Valid          bool
}

// FitGene fits log mu_j = log s_j + b0 + b1*x_j by iteratively reweighted
// least squares, where s_j is the sample's size factor, x_j indicates the
// treated group, and the response is NB-distributed with the given
// dispersion. It returns the Wald test of b1 = 0 on the log2 scale.
func FitGene(counts, sizeFactors []float64, treated []bool, disp float64) (GeneResult, error) {
	if len(counts) != len(sizeFactors) || len(counts) != len(treated) {
		return GeneResult{}, pfx.Err(fmt.Errorf("mismatched lengths: %d counts, %d size factors, %d group flags", len(counts), len(sizeFactors), len(treated)))
	}

	var out GeneResult
	var total float64
	for j, v := range counts {
		out.BaseMean += v / sizeFactors[j]
		total += v
	}
	out.BaseMean /= float64(len(counts))

	if total == 0 {
		return out, nil
	}
	if math.IsNaN(disp) || disp < 0 {
		return out, pfx.Err(fmt.Errorf("invalid dispersion %f", disp))
	}

	b0, b1 := initialBetas(counts, sizeFactors, treated)

	var info [3]float64
	for iter := 0; iter < maxIterations; iter++ {
		var s00, s01, s11, r0, r1 float64
		for j, y := range counts {
			eta := b0
			if treated[j] {
				eta += b1
			}
			mu := sizeFactors[j] * math.Exp(eta)
			w := mu / (1 + disp*mu)
			z := (y - mu) / mu

			s00 += w
			r0 += w * z
			if treated[j] {
				s01 += w
				s11 += w
				r1 += w * z
			}
		}

		// Solve the 2x2 ridged normal equations for the update.
		det := (s00+ridge)*(s11+ridge) - s01*s01
		d0 := ((s11+ridge)*r0 - s01*r1) / det
		d1 := ((s00+ridge)*r1 - s01*r0) / det

		b0 = clampBeta(b0 + d0)
		b1 = clampBeta(b1 + d1)
		info[0], info[1], info[2] = s00, s01, s11

		if math.Abs(d0) < tolerance && math.Abs(d1) < tolerance {
			break
		}
	}

	// Standard error of b1 from the inverse Fisher information.
	det := info[0]*info[2] - info[1]*info[1]
	if det <= 0 {
		return out, nil
	}
	se := math.Sqrt(info[0] / det)

	out.Log2FoldChange = b1 / math.Ln2
	out.LfcSE = se / math.Ln2
	out.Stat = b1 / se
	out.PValue = 2 * distuv.UnitNormal.CDF(-math.Abs(out.Stat))
	out.Valid = true

	return out, nil
}

// initialBetas seeds the IRLS at the group means of normalized counts, with
// half a pseudocount guarding against empty groups.
func initialBetas(counts, sizeFactors []float64, treated []bool) (float64, float64) {
	var sum0, sum1, sf0, sf1 float64
	for j, v := range counts {
		if treated[j] {
			sum1 += v
			sf1 += sizeFactors[j]
		} else {
			sum0 += v
			sf0 += sizeFactors[j]
		}
	}

	if sf0 == 0 || sf1 == 0 {
		// Single-group data: intercept only.
		return math.Log((sum0 + sum1 + 0.5) / (sf0 + sf1)), 0
	}

	b0 := math.Log((sum0 + 0.5) / sf0)
	b1 := math.Log((sum1+0.5)/sf1) - b0

	return clampBeta(b0), clampBeta(b1)
}

func clampBeta(b float64) float64 {
	if b > maxBeta {
		return maxBeta
	}
	if b < -maxBeta {
		return -maxBeta
	}

	return b
}
