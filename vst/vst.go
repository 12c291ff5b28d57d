// Package vst applies the closed-form variance-stabilizing transformation
// implied by a parametric dispersion trend disp(mu) = a1/mu + a0. For large
// counts the transform approaches log2, while near zero it stays smooth
// instead of diverging.
package vst

import (
	"fmt"
	"math"

	"github.com/carbocation/pfx"
)

// Transform maps one normalized count onto the variance-stabilized scale.
// a0 must be positive (the trend's asymptotic dispersion).
func Transform(normCount, a0, a1 float64) float64 {
	q := normCount
	return math.Log2((1 + a1 + 2*a0*q + 2*math.Sqrt(a0*q*(1+a1+a0*q))) / (4 * a0))
}

// Matrix transforms a normalized count matrix in gene-major order.
func Matrix(normalized [][]float64, a0, a1 float64) ([][]float64, error) {
	if a0 <= 0 {
		return nil, pfx.Err(fmt.Errorf("asymptotic dispersion a0 = %f; must be positive", a0))
	}

	out := make([][]float64, len(normalized))
	for i, row := range normalized {
		t := make([]float64, len(row))
		for j, v := range row {
			t[j] = Transform(v, a0, a1)
		}
		out[i] = t
	}

	return out, nil
}
