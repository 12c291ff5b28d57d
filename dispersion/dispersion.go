// Package dispersion estimates per-gene negative binomial dispersions from
// normalized count data: a method-of-moments estimate per gene, a parametric
// mean-dispersion trend fitted across genes, and a final estimate that
// shrinks each gene toward the trend.
package dispersion

import (
	"fmt"
	"math"

	"github.com/carbocation/pfx"
	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"
)

// Floor is the smallest dispersion reported. Estimates at the floor indicate
// genes whose observed variance did not exceed their mean.
const Floor = 1e-8

// Genes whose gene-wise estimate sits more than this many standard deviations
// of the log residuals above the trend are treated as dispersion outliers and
// keep their gene-wise value instead of being shrunk.
const outlierLogSDs = 2.0

const trendIterations = 10

// Fit holds the three dispersion estimates per gene, aligned with the input
// gene order, plus the fitted trend disp(mu) = A1/mu + A0. Entries are NaN
// where no estimate exists (zero-mean genes, or too few residual degrees of
// freedom).
type Fit struct {
	GeneWise []float64
	Trend    []float64
	Final    []float64

	A0, A1 float64

	// LogSD is the standard deviation of log residuals of the gene-wise
	// estimates around the trend.
	LogSD float64
}

// TrendAt evaluates the fitted trend at a mean normalized count.
func (f *Fit) TrendAt(mu float64) float64 {
	return f.A0 + f.A1/mu
}

// Estimate computes dispersions for every gene. normalized is the
// size-factor-normalized count matrix, baseMeans the per-gene means, and
// treated the per-sample group indicator used to pool within-group variances.
func Estimate(normalized [][]float64, baseMeans []float64, treated []bool) (*Fit, error) {
	if len(normalized) != len(baseMeans) {
		return nil, pfx.Err(fmt.Errorf("have %d genes but %d base means", len(normalized), len(baseMeans)))
	}

	fit := &Fit{
		GeneWise: make([]float64, len(normalized)),
		Trend:    make([]float64, len(normalized)),
		Final:    make([]float64, len(normalized)),
	}

	for i, row := range normalized {
		fit.GeneWise[i] = geneWise(row, baseMeans[i], treated)
	}

	if err := fitTrend(fit, baseMeans); err != nil {
		return nil, err
	}

	shrink(fit, len(treated))

	return fit, nil
}

// geneWise is the method-of-moments estimate (var - mu) / mu^2, with the
// variance pooled within condition groups so that true expression differences
// between groups do not inflate it.
func geneWise(row []float64, mu float64, treated []bool) float64 {
	if mu <= 0 || len(row) < 3 {
		return math.NaN()
	}

	var sum0, sum1 float64
	var n0, n1 int
	for j, v := range row {
		if treated[j] {
			sum1 += v
			n1++
		} else {
			sum0 += v
			n0++
		}
	}

	dof := len(row) - 2
	if n0 == 0 || n1 == 0 {
		dof = len(row) - 1
	}
	if dof < 1 {
		return math.NaN()
	}

	var sse float64
	for j, v := range row {
		m := sum0 / float64(n0)
		if treated[j] {
			m = sum1 / float64(n1)
		}
		sse += (v - m) * (v - m)
	}

	variance := sse / float64(dof)
	disp := (variance - mu) / (mu * mu)
	if disp < Floor || math.IsNaN(disp) {
		return Floor
	}

	return disp
}

// fitTrend fits disp = a1/mu + a0 across genes by iteratively reweighted
// least squares: each pass weights by the inverse squared prediction and
// drops genes whose estimate is wildly off the current trend.
func fitTrend(fit *Fit, baseMeans []float64) error {
	var xs, ys []float64
	for i, d := range fit.GeneWise {
		if math.IsNaN(d) || d <= 10*Floor || baseMeans[i] <= 0 {
			continue
		}
		xs = append(xs, 1/baseMeans[i])
		ys = append(ys, d)
	}
	if len(xs) < 3 {
		return pfx.Err(fmt.Errorf("only %d genes with informative dispersion estimates; cannot fit a trend", len(xs)))
	}

	// Seed the predictions with the median gene-wise estimate so that a few
	// extreme dispersions cannot dominate the first outlier-exclusion pass.
	med, err := stats.Median(ys)
	if err != nil {
		return pfx.Err(err)
	}
	a0, a1 := clampTrend(med, 0)

	weights := make([]float64, len(xs))
	for iter := 0; iter < trendIterations; iter++ {
		for k := range xs {
			pred := a0 + a1*xs[k]
			ratio := ys[k] / pred
			if ratio > 15 || ratio < 1e-4 {
				weights[k] = 0
				continue
			}
			weights[k] = 1 / (pred * pred)
		}

		nextA0, nextA1 := stat.LinearRegression(xs, ys, weights, false)
		nextA0, nextA1 = clampTrend(nextA0, nextA1)

		if converged(a0, nextA0) && converged(a1, nextA1) {
			a0, a1 = nextA0, nextA1
			break
		}
		a0, a1 = nextA0, nextA1
	}

	fit.A0, fit.A1 = a0, a1
	for i, mu := range baseMeans {
		if mu <= 0 {
			fit.Trend[i] = math.NaN()
			continue
		}
		fit.Trend[i] = fit.TrendAt(mu)
	}

	return nil
}

func clampTrend(a0, a1 float64) (float64, float64) {
	if a0 < Floor {
		a0 = Floor
	}
	if a1 < 0 {
		a1 = 0
	}

	return a0, a1
}

func converged(prev, next float64) bool {
	return math.Abs(next-prev) <= 1e-6*(math.Abs(prev)+1e-12)
}

// shrink pulls each gene-wise estimate toward the trend in log space. The
// shrinkage weight comes from a normal-normal model: the sampling variance of
// a log dispersion estimate is approximated by trigamma((m-p)/2) for m
// samples and p=2 coefficients, and the prior variance is what remains of the
// observed log-residual spread after subtracting it.
func shrink(fit *Fit, nSamples int) {
	var logRes []float64
	for i, gw := range fit.GeneWise {
		if math.IsNaN(gw) || math.IsNaN(fit.Trend[i]) || gw <= 10*Floor {
			continue
		}
		logRes = append(logRes, math.Log(gw)-math.Log(fit.Trend[i]))
	}

	samplingVar := trigammaHalfInt(nSamples - 2)
	logVar := stat.Variance(logRes, nil)
	if len(logRes) < 2 || math.IsNaN(logVar) {
		logVar = samplingVar
	}
	fit.LogSD = math.Sqrt(logVar)

	priorVar := logVar - samplingVar
	if priorVar < 0.25 {
		priorVar = 0.25
	}
	w := priorVar / (priorVar + samplingVar)

	for i, gw := range fit.GeneWise {
		trend := fit.Trend[i]
		switch {
		case math.IsNaN(trend):
			fit.Final[i] = math.NaN()
		case math.IsNaN(gw):
			fit.Final[i] = trend
		case math.Log(gw) > math.Log(trend)+outlierLogSDs*fit.LogSD:
			// Dispersion outlier: shrinking would understate its variance.
			fit.Final[i] = gw
		default:
			logFinal := math.Log(trend) + w*(math.Log(gw)-math.Log(trend))
			fit.Final[i] = math.Max(math.Exp(logFinal), Floor)
		}
	}
}

// trigammaHalfInt computes trigamma(k/2) for k >= 1 via the recurrence
// trigamma(x+1) = trigamma(x) - 1/x^2 from trigamma(1/2) = pi^2/2 and
// trigamma(1) = pi^2/6.
func trigammaHalfInt(k int) float64 {
	if k < 1 {
		k = 1
	}

	var x, v float64
	if k%2 == 0 {
		x, v = 1, math.Pi*math.Pi/6
	} else {
		x, v = 0.5, math.Pi*math.Pi/2
	}
	for 2*x < float64(k) {
		v -= 1 / (x * x)
		x++
	}

	return v
}
