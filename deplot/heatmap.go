package deplot

import (
	"fmt"
	"io"
	"math"

	"github.com/carbocation/pfx"
	"github.com/fogleman/gg"
	"gonum.org/v1/gonum/stat"
)

const (
	heatmapCellHeight = 16
	heatmapLeftMargin = 140
	heatmapTopMargin  = 90
	heatmapMinCellW   = 24
)

// RowZScores centers and scales each row to zero mean and unit variance,
// which is how heatmap expression values are conventionally displayed. Rows
// with zero variance come back as all zeros.
func RowZScores(matrix [][]float64) [][]float64 {
	out := make([][]float64, len(matrix))
	for i, row := range matrix {
		mean := stat.Mean(row, nil)
		sd := stat.StdDev(row, nil)

		z := make([]float64, len(row))
		if sd > 0 {
			for j, v := range row {
				z[j] = (v - mean) / sd
			}
		}
		out[i] = z
	}

	return out
}

// Heatmap renders a genes-by-samples tile grid of z-scores on a
// blue-white-red scale, gene names down the left edge and sample names along
// the top.
func Heatmap(w io.Writer, genes, samples []string, zscores [][]float64) error {
	if len(zscores) == 0 || len(zscores) != len(genes) {
		return pfx.Err(fmt.Errorf("have %d z-score rows for %d genes", len(zscores), len(genes)))
	}
	if len(samples) != len(zscores[0]) {
		return pfx.Err(fmt.Errorf("have %d samples for rows of width %d", len(samples), len(zscores[0])))
	}

	// Symmetric scale around zero so up- and down-regulation read equally.
	limit := 0.0
	for _, row := range zscores {
		for _, z := range row {
			if a := math.Abs(z); a > limit {
				limit = a
			}
		}
	}
	if limit == 0 {
		limit = 1
	}

	cellW := heatmapMinCellW
	if want := 720 / len(samples); want > cellW {
		cellW = want
	}

	width := heatmapLeftMargin + cellW*len(samples) + 20
	height := heatmapTopMargin + heatmapCellHeight*len(genes) + 20

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()

	for i, row := range zscores {
		y := float64(heatmapTopMargin + i*heatmapCellHeight)
		for j, z := range row {
			x := float64(heatmapLeftMargin + j*cellW)
			r, g, b := diverging(z / limit)
			dc.SetRGB(r, g, b)
			dc.DrawRectangle(x, y, float64(cellW), heatmapCellHeight)
			dc.Fill()
		}

		dc.SetRGB(0, 0, 0)
		dc.DrawStringAnchored(genes[i], heatmapLeftMargin-6, y+heatmapCellHeight/2, 1, 0.5)
	}

	for j, s := range samples {
		x := float64(heatmapLeftMargin+j*cellW) + float64(cellW)/2
		dc.SetRGB(0, 0, 0)
		dc.Push()
		dc.RotateAbout(gg.Radians(-60), x, heatmapTopMargin-8)
		dc.DrawStringAnchored(s, x, heatmapTopMargin-8, 0, 0.5)
		dc.Pop()
	}

	if err := dc.EncodePNG(w); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// diverging maps t in [-1, 1] to blue-white-red.
func diverging(t float64) (float64, float64, float64) {
	if t < -1 {
		t = -1
	} else if t > 1 {
		t = 1
	}

	if t < 0 {
		// Blue toward white.
		return 1 + t*0.85, 1 + t*0.65, 1
	}

	// White toward red.
	return 1, 1 - t*0.75, 1 - t*0.8
}
