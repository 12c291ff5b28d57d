package dispersion

import (
	"math"
	"testing"
)

// syntheticGene builds four normalized counts (two per group, no expression
// difference) whose pooled within-group variance is exactly
// mu + disp*mu^2, so the method-of-moments estimate recovers disp exactly.
func syntheticGene(mu, disp float64) []float64 {
	d := math.Sqrt((mu + disp*mu*mu) / 2)
	return []float64{mu - d, mu + d, mu - d, mu + d}
}

func TestEstimateRecoversExactTrend(t *testing.T) {
	const a0, a1 = 0.05, 2.0

	treated := []bool{false, false, true, true}
	mus := []float64{10, 50, 100, 500, 1000, 5000}

	var normalized [][]float64
	var baseMeans []float64
	var want []float64
	for _, mu := range mus {
		disp := a0 + a1/mu
		normalized = append(normalized, syntheticGene(mu, disp))
		baseMeans = append(baseMeans, mu)
		want = append(want, disp)
	}

	fit, err := Estimate(normalized, baseMeans, treated)
	if err != nil {
		t.Fatal(err)
	}

	for i, w := range want {
		if math.Abs(fit.GeneWise[i]-w) > 1e-9 {
			t.Fatalf("gene %d (mu=%g): got gene-wise %.12f, want %.12f", i, mus[i], fit.GeneWise[i], w)
		}
	}

	// The gene-wise estimates lie exactly on a0 + a1/mu, so the trend fit
	// must recover the coefficients.
	if math.Abs(fit.A0-a0) > 1e-6 {
		t.Fatalf("got a0 %.9f, want %.9f", fit.A0, a0)
	}
	if math.Abs(fit.A1-a1) > 1e-4 {
		t.Fatalf("got a1 %.9f, want %.9f", fit.A1, a1)
	}

	// With zero residual spread, shrinkage must leave the estimates on the
	// trend.
	for i, w := range want {
		if math.Abs(fit.Final[i]-w) > 1e-4*w {
			t.Fatalf("gene %d: got final %.12f, want %.12f", i, fit.Final[i], w)
		}
	}
}

func TestEstimateOutlierKeepsGeneWiseValue(t *testing.T) {
	const a0, a1 = 0.05, 2.0

	treated := []bool{false, false, true, true}

	var normalized [][]float64
	var baseMeans []float64
	for _, mu := range []float64{10, 50, 100, 500, 1000, 5000} {
		normalized = append(normalized, syntheticGene(mu, a0+a1/mu))
		baseMeans = append(baseMeans, mu)
	}

	// One gene with dispersion far above the trend.
	const outlierMu, outlierDisp = 200.0, 10.0
	normalized = append(normalized, syntheticGene(outlierMu, outlierDisp))
	baseMeans = append(baseMeans, outlierMu)

	fit, err := Estimate(normalized, baseMeans, treated)
	if err != nil {
		t.Fatal(err)
	}

	last := len(baseMeans) - 1
	if math.Abs(fit.GeneWise[last]-outlierDisp) > 1e-6 {
		t.Fatalf("got outlier gene-wise %.9f, want %.9f", fit.GeneWise[last], outlierDisp)
	}
	if fit.Final[last] != fit.GeneWise[last] {
		t.Fatalf("outlier was shrunk: final %.9f vs gene-wise %.9f", fit.Final[last], fit.GeneWise[last])
	}

	// The outlier must not drag the trend away from the other genes.
	if math.Abs(fit.A0-a0) > 0.01 {
		t.Fatalf("got a0 %.9f, want about %.3f", fit.A0, a0)
	}
}

func TestGeneWiseEdgeCases(t *testing.T) {
	treated := []bool{false, false, true, true}

	// Zero-mean gene: no estimates anywhere.
	fitInput := [][]float64{
		{0, 0, 0, 0},
		syntheticGene(100, 0.1),
		syntheticGene(200, 0.1),
		syntheticGene(400, 0.1),
	}
	baseMeans := []float64{0, 100, 200, 400}

	fit, err := Estimate(fitInput, baseMeans, treated)
	if err != nil {
		t.Fatal(err)
	}

	if !math.IsNaN(fit.GeneWise[0]) || !math.IsNaN(fit.Trend[0]) || !math.IsNaN(fit.Final[0]) {
		t.Fatalf("zero-mean gene should have NaN estimates; got %v %v %v", fit.GeneWise[0], fit.Trend[0], fit.Final[0])
	}

	// Underdispersed gene: variance below the mean floors at Floor.
	under := geneWise([]float64{100, 100, 100, 100}, 100, treated)
	if under != Floor {
		t.Fatalf("got %g for constant gene, want floor %g", under, Floor)
	}
}

func TestEstimateNeedsInformativeGenes(t *testing.T) {
	treated := []bool{false, false, true, true}
	flat := [][]float64{
		{10, 10, 10, 10},
		{20, 20, 20, 20},
	}
	if _, err := Estimate(flat, []float64{10, 20}, treated); err == nil {
		t.Fatal("expected error when no gene has an informative dispersion estimate")
	}
}

func TestTrigammaHalfInt(t *testing.T) {
	// trigamma(1) = pi^2/6, trigamma(1/2) = pi^2/2, trigamma(2) = pi^2/6 - 1,
	// trigamma(3/2) = pi^2/2 - 4.
	for _, v := range []struct {
		k    int
		want float64
	}{
		{2, math.Pi * math.Pi / 6},
		{1, math.Pi * math.Pi / 2},
		{4, math.Pi*math.Pi/6 - 1},
		{3, math.Pi*math.Pi/2 - 4},
	} {
		if got := trigammaHalfInt(v.k); math.Abs(got-v.want) > 1e-12 {
			t.Fatalf("trigamma(%d/2): got %.12f, want %.12f", v.k, got, v.want)
		}
	}
}
