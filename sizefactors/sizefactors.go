// Package sizefactors implements median-of-ratios library size normalization
// for read count matrices.
package sizefactors

import (
	"fmt"
	"math"

	"github.com/carbocation/pfx"
	"github.com/montanaflynn/stats"
)

// Estimate computes one size factor per sample (column). Each gene that is
// observed in every sample contributes the ratio of its count to its
// geometric mean across samples; the size factor is the per-sample median of
// those ratios. Genes with a zero count in any sample carry no information
// about relative sequencing depth and are skipped.
func Estimate(counts [][]float64) ([]float64, error) {
	if len(counts) == 0 {
		return nil, pfx.Err(fmt.Errorf("no genes"))
	}
	nSamples := len(counts[0])

	logGeoMeans := make([]float64, len(counts))
	usable := make([]bool, len(counts))
	for i, row := range counts {
		sumLog := 0.0
		allPositive := true
		for _, v := range row {
			if v <= 0 {
				allPositive = false
				break
			}
			sumLog += math.Log(v)
		}
		if allPositive {
			logGeoMeans[i] = sumLog / float64(len(row))
			usable[i] = true
		}
	}

	out := make([]float64, nSamples)
	for j := 0; j < nSamples; j++ {
		var logRatios []float64
		for i, row := range counts {
			if !usable[i] {
				continue
			}
			logRatios = append(logRatios, math.Log(row[j])-logGeoMeans[i])
		}
		if len(logRatios) == 0 {
			return nil, pfx.Err(fmt.Errorf("every gene contains a zero count; cannot estimate size factors"))
		}

		med, err := stats.Median(logRatios)
		if err != nil {
			return nil, pfx.Err(err)
		}
		out[j] = math.Exp(med)
	}

	return out, nil
}

// Normalize divides each column by its size factor.
func Normalize(counts [][]float64, sizeFactors []float64) [][]float64 {
	out := make([][]float64, len(counts))
	for i, row := range counts {
		norm := make([]float64, len(row))
		for j, v := range row {
			norm[j] = v / sizeFactors[j]
		}
		out[i] = norm
	}

	return out
}

// BaseMeans returns the per-gene mean of normalized counts.
func BaseMeans(normalized [][]float64) []float64 {
	out := make([]float64, len(normalized))
	for i, row := range normalized {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		out[i] = sum / float64(len(row))
	}

	return out
}
