package main

import (
	"encoding/csv"
	"log"
	"os"
	"path/filepath"
	"strconv"

	"github.com/countlab/dge/results"
)

func writeTables(outDir, prefix string, all, significant []results.Row) error {
	allPath := filepath.Join(outDir, prefix+"_results_all.tsv")
	if err := writeResultsFile(allPath, all); err != nil {
		return err
	}
	log.Printf("Wrote %d genes to %s", len(all), allPath)

	sigPath := filepath.Join(outDir, prefix+"_results_significant.tsv")
	if err := writeResultsFile(sigPath, significant); err != nil {
		return err
	}
	log.Printf("Wrote %d genes to %s", len(significant), sigPath)

	return nil
}

func writeResultsFile(path string, rows []results.Row) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return results.WriteTSV(f, rows)
}

func writeNormalizedCounts(path string, genes, samples []string, normalized [][]float64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	cw.Comma = '\t'

	if err := cw.Write(append([]string{"gene"}, samples...)); err != nil {
		return err
	}
	for i, row := range normalized {
		record := make([]string, 0, len(row)+1)
		record = append(record, genes[i])
		for _, v := range row {
			record = append(record, strconv.FormatFloat(v, 'f', 4, 64))
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	log.Printf("Wrote normalized counts to %s", path)

	return nil
}
