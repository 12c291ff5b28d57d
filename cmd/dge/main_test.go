package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/countlab/dge/results"
)

// writeSyntheticInputs builds a 50-gene, 6-sample experiment with built-in
// within-group spread and five genes upregulated eightfold in the treated
// group.
func writeSyntheticInputs(t *testing.T, dir string) (string, string) {
	t.Helper()

	// The low/mid/high pattern rotates from gene to gene; if it were the
	// same for every gene, size-factor normalization would absorb it and
	// leave no within-group variance at all.
	factors := []float64{0.6, 1.0, 1.4}

	var sb strings.Builder
	sb.WriteString("gene\tC1\tC2\tC3\tT1\tT2\tT3\n")
	for i := 0; i < 50; i++ {
		base := float64(20 + 19*i)

		treatedBase := base
		if i < 5 {
			treatedBase = 8 * base
		}

		sb.WriteString(fmt.Sprintf("gene%02d", i))
		for j := 0; j < 3; j++ {
			fmt.Fprintf(&sb, "\t%.0f", base*factors[(i+j)%3])
		}
		for j := 0; j < 3; j++ {
			fmt.Fprintf(&sb, "\t%.0f", treatedBase*factors[(i+j)%3])
		}
		sb.WriteByte('\n')
	}

	countsPath := filepath.Join(dir, "counts.tsv")
	if err := os.WriteFile(countsPath, []byte(sb.String()), 0o644); err != nil {
		t.Fatal(err)
	}

	design := "sample\tcondition\n" +
		"C1\tcontrol\nC2\tcontrol\nC3\tcontrol\n" +
		"T1\ttreated\nT2\ttreated\nT3\ttreated\n"
	designPath := filepath.Join(dir, "design.tsv")
	if err := os.WriteFile(designPath, []byte(design), 0o644); err != nil {
		t.Fatal(err)
	}

	return countsPath, designPath
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	countsPath, designPath := writeSyntheticInputs(t, dir)

	if err := run(countsPath, designPath, "control", dir, "test", 0.05, 1, 10, 50, 10, true, false); err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{
		"test_results_all.tsv",
		"test_results_significant.tsv",
		"test_normalized_counts.tsv",
		"test_dispersion.png",
		"test_pvalue_histogram.png",
		"test_volcano.png",
		"test_ma.png",
		"test_pca.png",
		"test_heatmap.png",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing output %s: %v", name, err)
		}
	}

	f, err := os.Open(filepath.Join(dir, "test_results_all.tsv"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	rows, err := results.ReadTSV(f)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 50 {
		t.Fatalf("got %d result rows, want 50", len(rows))
	}

	// The five spiked genes must surface as upregulated hits.
	sigUp := make(map[string]bool)
	for _, r := range rows {
		if r.PAdj.Valid && r.PAdj.Value < 0.05 && r.Log2FoldChange.Valid && r.Log2FoldChange.Value > 1 {
			sigUp[r.Gene] = true
		}
	}
	for i := 0; i < 5; i++ {
		gene := fmt.Sprintf("gene%02d", i)
		if !sigUp[gene] {
			t.Errorf("spiked gene %s not called significant", gene)
		}
	}

	// Rows come back sorted by adjusted p-value.
	for i := 1; i < len(rows); i++ {
		if !rows[i].PAdj.Valid {
			continue
		}
		if !rows[i-1].PAdj.Valid {
			t.Fatalf("NA padj sorted before a tested gene at row %d", i)
		}
		if rows[i-1].PAdj.Value > rows[i].PAdj.Value {
			t.Fatalf("rows not sorted by padj at %d: %g > %g", i, rows[i-1].PAdj.Value, rows[i].PAdj.Value)
		}
	}
}

func TestRunRejectsMismatchedDesign(t *testing.T) {
	dir := t.TempDir()
	countsPath, _ := writeSyntheticInputs(t, dir)

	badDesign := filepath.Join(dir, "bad_design.tsv")
	if err := os.WriteFile(badDesign, []byte("sample\tcondition\nX1\tcontrol\nX2\ttreated\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := run(countsPath, badDesign, "", dir, "bad", 0.05, 1, 10, 50, 10, false, false); err == nil {
		t.Fatal("expected error for design that does not match the count matrix")
	}
}
