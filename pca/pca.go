// Package pca projects samples onto their first two principal components,
// computed from the most variable genes of a variance-stabilized count
// matrix.
package pca

import (
	"fmt"
	"math"
	"sort"

	"github.com/carbocation/pfx"
	"github.com/carbocation/runningvariance"
	"gonum.org/v1/gonum/mat"
)

// Result places each sample in PC1/PC2 space. VarExplained holds the percent
// of total variance captured by each of the two components.
type Result struct {
	PC1, PC2     []float64
	VarExplained [2]float64
}

// TopVarianceGenes returns the row indices of the n most variable genes.
// Rows with zero variance are never selected.
func TopVarianceGenes(matrix [][]float64, n int) []int {
	type geneVar struct {
		idx      int
		variance float64
	}

	ranked := make([]geneVar, 0, len(matrix))
	for i, row := range matrix {
		rs := runningvariance.NewRunningStat()
		for _, v := range row {
			rs.Push(v)
		}
		sd := rs.StandardDeviation()
		if sd <= 0 || math.IsNaN(sd) {
			continue
		}
		ranked = append(ranked, geneVar{i, sd * sd})
	}

	sort.Slice(ranked, func(a, b int) bool { return ranked[a].variance > ranked[b].variance })
	if n > len(ranked) {
		n = len(ranked)
	}

	out := make([]int, n)
	for k := 0; k < n; k++ {
		out[k] = ranked[k].idx
	}

	return out
}

// Compute runs a singular value decomposition over the selected genes. The
// input is gene-major; samples become the observations, and each gene column
// is centered first.
func Compute(matrix [][]float64, geneIdx []int) (*Result, error) {
	if len(geneIdx) < 2 {
		return nil, pfx.Err(fmt.Errorf("need at least 2 genes for PCA; have %d", len(geneIdx)))
	}
	nSamples := len(matrix[geneIdx[0]])
	if nSamples < 3 {
		return nil, pfx.Err(fmt.Errorf("need at least 3 samples for a 2-component PCA; have %d", nSamples))
	}

	x := mat.NewDense(nSamples, len(geneIdx), nil)
	for k, gi := range geneIdx {
		row := matrix[gi]
		mean := 0.0
		for _, v := range row {
			mean += v
		}
		mean /= float64(len(row))
		for j, v := range row {
			x.Set(j, k, v-mean)
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(x, mat.SVDThin); !ok {
		return nil, pfx.Err(fmt.Errorf("SVD failed to converge"))
	}

	var u mat.Dense
	svd.UTo(&u)
	values := svd.Values(nil)

	var total float64
	for _, s := range values {
		total += s * s
	}

	out := &Result{
		PC1: make([]float64, nSamples),
		PC2: make([]float64, nSamples),
	}
	for j := 0; j < nSamples; j++ {
		out.PC1[j] = u.At(j, 0) * values[0]
		out.PC2[j] = u.At(j, 1) * values[1]
	}
	if total > 0 {
		out.VarExplained[0] = 100 * values[0] * values[0] / total
		out.VarExplained[1] = 100 * values[1] * values[1] / total
	}

	return out, nil
}
