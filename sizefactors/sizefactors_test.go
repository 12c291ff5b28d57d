package sizefactors

import (
	"math"
	"testing"
)

func TestEstimateTwoFoldDepth(t *testing.T) {
	// Sample 2 is sequenced exactly twice as deeply as sample 1, so the
	// size factors must be 1/sqrt(2) and sqrt(2): each gene's geometric
	// mean is c*sqrt(2), giving ratios 1/sqrt(2) and sqrt(2) for every
	// gene.
	counts := [][]float64{
		{10, 20},
		{100, 200},
		{7, 14},
		{1000, 2000},
	}

	sf, err := Estimate(counts)
	if err != nil {
		t.Fatal(err)
	}

	want := []float64{1 / math.Sqrt2, math.Sqrt2}
	for j := range want {
		if math.Abs(sf[j]-want[j]) > 1e-12 {
			t.Fatalf("size factor %d: got %.12f, want %.12f", j, sf[j], want[j])
		}
	}
}

func TestEstimateSkipsGenesWithZeros(t *testing.T) {
	// The zero-containing gene would otherwise drag sample 1's median
	// ratio down; it must be ignored.
	counts := [][]float64{
		{0, 500},
		{10, 10},
		{20, 20},
		{30, 30},
	}

	sf, err := Estimate(counts)
	if err != nil {
		t.Fatal(err)
	}

	for j, v := range sf {
		if math.Abs(v-1) > 1e-12 {
			t.Fatalf("size factor %d: got %f, want 1", j, v)
		}
	}
}

func TestEstimateErrors(t *testing.T) {
	if _, err := Estimate(nil); err == nil {
		t.Fatal("expected error for empty matrix")
	}

	// Every gene has a zero somewhere, so no gene is usable.
	if _, err := Estimate([][]float64{{0, 5}, {5, 0}}); err == nil {
		t.Fatal("expected error when every gene contains a zero")
	}
}

func TestNormalizeAndBaseMeans(t *testing.T) {
	counts := [][]float64{{10, 40}}
	norm := Normalize(counts, []float64{0.5, 2})

	if norm[0][0] != 20 || norm[0][1] != 20 {
		t.Fatalf("got normalized row %v, want [20 20]", norm[0])
	}

	means := BaseMeans(norm)
	if means[0] != 20 {
		t.Fatalf("got base mean %f, want 20", means[0])
	}
}
