// dgeplot re-renders the volcano plot and p-value histogram from a results
// table previously written by dge, so figures can be regenerated with
// different thresholds without refitting the model.
package main

import (
	"bytes"
	"flag"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/countlab/dge/deplot"
	"github.com/countlab/dge/results"
)

func main() {
	var resultsFile, outDir, prefix string
	var alpha, lfcThreshold float64
	var bins int

	flag.StringVar(&resultsFile, "results", "", "All-genes results TSV written by dge.")
	flag.StringVar(&outDir, "outdir", ".", "Directory for output plots.")
	flag.StringVar(&prefix, "prefix", "dge", "Filename prefix for outputs.")
	flag.Float64Var(&alpha, "alpha", 0.05, "Adjusted p-value cutoff for highlighting.")
	flag.Float64Var(&lfcThreshold, "lfc", 1.0, "Minimum absolute log2 fold change for highlighting.")
	flag.IntVar(&bins, "bins", 20, "Number of p-value histogram bins.")
	flag.Parse()

	if resultsFile == "" {
		flag.PrintDefaults()
		os.Exit(1)
	}

	if err := run(resultsFile, outDir, prefix, alpha, lfcThreshold, bins); err != nil {
		log.Fatalln(err)
	}
}

func run(resultsFile, outDir, prefix string, alpha, lfcThreshold float64, bins int) error {
	f, err := os.Open(resultsFile)
	if err != nil {
		return err
	}
	defer f.Close()

	rows, err := results.ReadTSV(f)
	if err != nil {
		return err
	}
	log.Printf("Read %d genes from %s", len(rows), resultsFile)

	var pvalues []float64
	for _, r := range rows {
		if r.PValue.Valid {
			pvalues = append(pvalues, r.PValue.Value)
		}
	}

	if err := renderToFile(filepath.Join(outDir, prefix+"_volcano.png"), func(w io.Writer) error {
		return deplot.Volcano(w, rows, alpha, lfcThreshold)
	}); err != nil {
		return err
	}

	return renderToFile(filepath.Join(outDir, prefix+"_pvalue_histogram.png"), func(w io.Writer) error {
		return deplot.PValueHistogram(w, pvalues, bins)
	})
}

func renderToFile(path string, render func(io.Writer) error) error {
	buf := bytes.NewBuffer(nil)
	if err := render(buf); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := buf.WriteTo(f); err != nil {
		return err
	}
	log.Printf("Wrote %s", path)

	return nil
}
