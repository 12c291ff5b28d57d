package main

import (
	"bytes"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/countlab/dge/countdata"
	"github.com/countlab/dge/deplot"
	"github.com/countlab/dge/dispersion"
	"github.com/countlab/dge/pca"
	"github.com/countlab/dge/results"
	"github.com/countlab/dge/vst"
)

func writePlots(outDir, prefix string, m *countdata.Matrix, design *countdata.Design, normalized [][]float64, baseMeans []float64, dispFit *dispersion.Fit, rows []results.Row, alpha, lfcThreshold float64, pcaGenes, heatmapGenes int) error {
	pvalues := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.PValue.Valid {
			pvalues = append(pvalues, r.PValue.Value)
		}
	}

	if err := renderToFile(filepath.Join(outDir, prefix+"_dispersion.png"), func(w io.Writer) error {
		return deplot.Dispersion(w, baseMeans, dispFit)
	}); err != nil {
		return err
	}
	if err := renderToFile(filepath.Join(outDir, prefix+"_pvalue_histogram.png"), func(w io.Writer) error {
		return deplot.PValueHistogram(w, pvalues, 20)
	}); err != nil {
		return err
	}
	if err := renderToFile(filepath.Join(outDir, prefix+"_volcano.png"), func(w io.Writer) error {
		return deplot.Volcano(w, rows, alpha, lfcThreshold)
	}); err != nil {
		return err
	}
	if err := renderToFile(filepath.Join(outDir, prefix+"_ma.png"), func(w io.Writer) error {
		return deplot.MA(w, rows, alpha)
	}); err != nil {
		return err
	}

	transformed, err := vst.Matrix(normalized, dispFit.A0, dispFit.A1)
	if err != nil {
		return err
	}

	pcaIdx := pca.TopVarianceGenes(transformed, pcaGenes)
	pcaRes, err := pca.Compute(transformed, pcaIdx)
	if err != nil {
		return err
	}
	if err := renderToFile(filepath.Join(outDir, prefix+"_pca.png"), func(w io.Writer) error {
		return deplot.PCA(w, pcaRes, design.Conditions)
	}); err != nil {
		return err
	}

	heatIdx := pca.TopVarianceGenes(transformed, heatmapGenes)
	heatRows := make([][]float64, len(heatIdx))
	heatGenes := make([]string, len(heatIdx))
	for k, gi := range heatIdx {
		heatRows[k] = transformed[gi]
		heatGenes[k] = m.Genes[gi]
	}

	return renderToFile(filepath.Join(outDir, prefix+"_heatmap.png"), func(w io.Writer) error {
		return deplot.Heatmap(w, heatGenes, m.Samples, deplot.RowZScores(heatRows))
	})
}

// renderToFile draws into a buffer first so a failed render never leaves a
// truncated file behind.
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
