// dge runs a two-group differential gene expression analysis from a
// tab-separated count matrix and sample design file, writing result tables
// and the standard report figures.
package main

import (
	"flag"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/countlab/dge/countdata"
	"github.com/countlab/dge/dispersion"
	"github.com/countlab/dge/nbglm"
	"github.com/countlab/dge/results"
	"github.com/countlab/dge/sizefactors"
)

func main() {
	var countsFile, designFile, reference, outDir, prefix string
	var alpha, lfcThreshold, minCount float64
	var pcaGenes, heatmapGenes int
	var writeNormalized, terminalHist bool

	flag.StringVar(&countsFile, "counts", "", "Tab-separated gene-by-sample count matrix.")
	flag.StringVar(&designFile, "design", "", "Tab-separated sample design file with sample and condition columns.")
	flag.StringVar(&reference, "reference", "", "Condition to treat as the reference level. Defaults to the lexically first condition.")
	flag.StringVar(&outDir, "outdir", ".", "Directory for output tables and plots.")
	flag.StringVar(&prefix, "prefix", "dge", "Filename prefix for all outputs.")
	flag.Float64Var(&alpha, "alpha", 0.05, "Adjusted p-value cutoff for the significant-genes table.")
	flag.Float64Var(&lfcThreshold, "lfc", 1.0, "Minimum absolute log2 fold change for the significant-genes table.")
	flag.Float64Var(&minCount, "mincount", 10, "Drop genes whose total count across samples is below this.")
	flag.IntVar(&pcaGenes, "pcagenes", 500, "Number of top-variance genes used for PCA.")
	flag.IntVar(&heatmapGenes, "heatmapgenes", 30, "Number of top-variance genes shown in the heatmap.")
	flag.BoolVar(&writeNormalized, "writenormalized", false, "Also write the normalized count matrix.")
	flag.BoolVar(&terminalHist, "terminalhist", false, "Print a p-value histogram to the terminal.")
	flag.Parse()

	if countsFile == "" || designFile == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(countsFile, designFile, reference, outDir, prefix, alpha, lfcThreshold, minCount, pcaGenes, heatmapGenes, writeNormalized, terminalHist); err != nil {
		log.Fatalln(err)
	}
}

func run(countsFile, designFile, reference, outDir, prefix string, alpha, lfcThreshold, minCount float64, pcaGenes, heatmapGenes int, writeNormalized, terminalHist bool) error {
	matrix, design, err := loadInputs(countsFile, designFile)
	if err != nil {
		return err
	}

	if reference == "" {
		reference = defaultReference(design)
		log.Printf("No -reference given; using %q", reference)
	}
	if err := design.Relevel(reference); err != nil {
		return err
	}
	treated, err := design.Treated()
	if err != nil {
		return err
	}

	filtered, dropped := matrix.FilterLowCounts(minCount)
	log.Printf("Filtered %d of %d genes with total count below %g; %d genes remain", dropped, len(matrix.Genes), minCount, len(filtered.Genes))

	sf, err := sizefactors.Estimate(filtered.Counts)
	if err != nil {
		return err
	}
	log.Printf("Size factors: %v", formatFloats(sf))

	normalized := sizefactors.Normalize(filtered.Counts, sf)
	baseMeans := sizefactors.BaseMeans(normalized)

	dispFit, err := dispersion.Estimate(normalized, baseMeans, treated)
	if err != nil {
		return err
	}
	log.Printf("Dispersion trend: %.4g/mu + %.4g", dispFit.A1, dispFit.A0)

	rows, pvalues, err := testAllGenes(filtered, sf, treated, dispFit)
	if err != nil {
		return err
	}

	padj := nbglm.BenjaminiHochberg(pvalues)
	for i := range rows {
		rows[i].PAdj = results.Of(padj[i])
	}
	results.SortByPAdj(rows)

	significant := results.Significant(rows, alpha, lfcThreshold)
	log.Printf("%d of %d tested genes significant at padj < %g and |log2FC| >= %g", len(significant), len(rows), alpha, lfcThreshold)

	if err := writeTables(outDir, prefix, rows, significant); err != nil {
		return err
	}
	if writeNormalized {
		if err := writeNormalizedCounts(filepath.Join(outDir, prefix+"_normalized_counts.tsv"), filtered.Genes, filtered.Samples, normalized); err != nil {
			return err
		}
	}

	if terminalHist {
		if err := printTerminalHistogram(pvalues); err != nil {
			return err
		}
	}

	return writePlots(outDir, prefix, filtered, design, normalized, baseMeans, dispFit, rows, alpha, lfcThreshold, pcaGenes, heatmapGenes)
}

func loadInputs(countsFile, designFile string) (*countdata.Matrix, *countdata.Design, error) {
	cf, err := os.Open(countsFile)
	if err != nil {
		return nil, nil, err
	}
	defer cf.Close()

	matrix, err := countdata.ReadMatrix(cf)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Read %d genes x %d samples from %s", len(matrix.Genes), len(matrix.Samples), countsFile)

	df, err := os.Open(designFile)
	if err != nil {
		return nil, nil, err
	}
	defer df.Close()

	design, err := countdata.ReadDesign(df)
	if err != nil {
		return nil, nil, err
	}
	log.Printf("Read %d samples, conditions %v from %s", len(design.Samples), design.Levels(), designFile)

	if err := countdata.Align(matrix, design); err != nil {
		return nil, nil, err
	}

	return matrix, design, nil
}

func defaultReference(design *countdata.Design) string {
	ref := ""
	for _, l := range design.Levels() {
		if ref == "" || l < ref {
			ref = l
		}
	}

	return ref
}

func testAllGenes(m *countdata.Matrix, sf []float64, treated []bool, dispFit *dispersion.Fit) ([]results.Row, []float64, error) {
	rows := make([]results.Row, len(m.Genes))
	pvalues := make([]float64, len(m.Genes))

	for i, gene := range m.Genes {
		disp := dispFit.Final[i]
		if math.IsNaN(disp) {
			disp = dispersion.Floor
		}

		res, err := nbglm.FitGene(m.Counts[i], sf, treated, disp)
		if err != nil {
			return nil, nil, fmt.Errorf("gene %q: %w", gene, err)
		}

		rows[i] = results.Row{Gene: gene, BaseMean: res.BaseMean}
		pvalues[i] = math.NaN()
		if res.Valid {
			rows[i].Log2FoldChange = results.Of(res.Log2FoldChange)
			rows[i].LfcSE = results.Of(res.LfcSE)
			rows[i].Stat = results.Of(res.Stat)
			rows[i].PValue = results.Of(res.PValue)
			pvalues[i] = res.PValue
		}
	}

	return rows, pvalues, nil
}

func printTerminalHistogram(pvalues []float64) error {
	var usable []float64
	for _, p := range pvalues {
		if !math.IsNaN(p) {
			usable = append(usable, p)
		}
	}
	if len(usable) == 0 {
		return nil
	}

	fmt.Println("P-value distribution:")
	hist := histogram.Hist(20, usable)

	return histogram.Fprint(os.Stdout, hist, histogram.Linear(40))
}

func formatFloats(vals []float64) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fmt.Sprintf("%.3f", v)
	}

	return out
}
