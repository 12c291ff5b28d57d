// Package deplot renders the standard static figures of a differential
// expression report: dispersion plot, p-value histogram, volcano plot, MA
// plot, PCA plot, and a heatmap of selected genes.
package deplot

import (
	"fmt"
	"io"
	"math"

	"github.com/carbocation/pfx"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/countlab/dge/dispersion"
	"github.com/countlab/dge/pca"
	"github.com/countlab/dge/results"
)

const (
	plotWidth  = 1024
	plotHeight = 768

	// -log10(p) is capped so that p-values at the float64 floor do not
	// stretch the volcano axis into unreadability.
	maxNegLog10P = 50
)

var (
	colorGray = drawing.Color{R: 170, G: 170, B: 170, A: 255}
	colorRed  = drawing.Color{R: 220, G: 40, B: 40, A: 255}
	colorBlue = drawing.Color{R: 40, G: 80, B: 220, A: 255}
)

func dotStyle(c drawing.Color) chart.Style {
	return chart.Style{
		StrokeWidth: chart.Disabled,
		DotWidth:    2,
		DotColor:    c,
	}
}

// Dispersion draws gene-wise estimates (gray), final shrunken estimates
// (blue), and the fitted trend (red) on log10-log10 axes.
func Dispersion(w io.Writer, baseMeans []float64, fit *dispersion.Fit) error {
	var gwX, gwY, finalX, finalY []float64
	for i, mu := range baseMeans {
		if mu <= 0 {
			continue
		}
		if d := fit.GeneWise[i]; !math.IsNaN(d) && d > 0 {
			gwX = append(gwX, math.Log10(mu))
			gwY = append(gwY, math.Log10(d))
		}
		if d := fit.Final[i]; !math.IsNaN(d) && d > 0 {
			finalX = append(finalX, math.Log10(mu))
			finalY = append(finalY, math.Log10(d))
		}
	}
	if len(gwX) == 0 {
		return pfx.Err(fmt.Errorf("no plottable dispersion estimates"))
	}

	minX, maxX := minMax(gwX)
	trendX, trendY := trendCurve(fit, minX, maxX)

	graph := chart.Chart{
		Title:  "Dispersion estimates",
		Width:  plotWidth,
		Height: plotHeight,
		XAxis:  chart.XAxis{Name: "log10 mean of normalized counts"},
		YAxis:  chart.YAxis{Name: "log10 dispersion"},
		Series: []chart.Series{
			chart.ContinuousSeries{Name: "gene-wise", XValues: gwX, YValues: gwY, Style: dotStyle(colorGray)},
			chart.ContinuousSeries{Name: "final", XValues: finalX, YValues: finalY, Style: dotStyle(colorBlue)},
			chart.ContinuousSeries{
				Name:    "fitted trend",
				XValues: trendX,
				YValues: trendY,
				Style:   chart.Style{StrokeWidth: 2, StrokeColor: colorRed},
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return render(graph, w)
}

func trendCurve(fit *dispersion.Fit, minLogMu, maxLogMu float64) ([]float64, []float64) {
	const points = 200

	xs := make([]float64, points)
	ys := make([]float64, points)
	for k := 0; k < points; k++ {
		lx := minLogMu + (maxLogMu-minLogMu)*float64(k)/float64(points-1)
		xs[k] = lx
		ys[k] = math.Log10(fit.TrendAt(math.Pow(10, lx)))
	}

	return xs, ys
}

// PValueHistogram draws the distribution of raw p-values in fixed-width
// bins. A well-behaved experiment shows a spike near zero over a uniform
// background.
func PValueHistogram(w io.Writer, pvalues []float64, bins int) error {
	if bins < 1 {
		bins = 20
	}

	counts := make([]int, bins)
	n := 0
	for _, p := range pvalues {
		if math.IsNaN(p) {
			continue
		}
		b := int(p * float64(bins))
		if b >= bins {
			b = bins - 1
		}
		counts[b]++
		n++
	}
	if n == 0 {
		return pfx.Err(fmt.Errorf("no p-values to plot"))
	}

	labelEvery := bins / 5
	if labelEvery < 1 {
		labelEvery = 1
	}

	bars := make([]chart.Value, bins)
	for b, c := range counts {
		label := ""
		if b%labelEvery == 0 {
			label = fmt.Sprintf("%.2f", float64(b)/float64(bins))
		}
		bars[b] = chart.Value{Value: float64(c), Label: label}
	}

	graph := chart.BarChart{
		Title:    "P-value distribution",
		Width:    plotWidth,
		Height:   plotHeight,
		BarWidth: (plotWidth - 100) / bins,
		Bars:     bars,
		YAxis:    chart.YAxis{Name: "genes"},
	}

	if err := graph.Render(chart.PNG, w); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// Volcano plots log2 fold change against -log10 p-value, highlighting genes
// that pass both the padj and fold-change thresholds.
func Volcano(w io.Writer, rows []results.Row, alpha, minAbsLFC float64) error {
	var sigX, sigY, restX, restY []float64
	for _, r := range rows {
		if !r.Log2FoldChange.Valid || !r.PValue.Valid {
			continue
		}
		y := negLog10(r.PValue.Value)
		if r.PAdj.Valid && r.PAdj.Value < alpha && math.Abs(r.Log2FoldChange.Value) >= minAbsLFC {
			sigX = append(sigX, r.Log2FoldChange.Value)
			sigY = append(sigY, y)
		} else {
			restX = append(restX, r.Log2FoldChange.Value)
			restY = append(restY, y)
		}
	}
	if len(sigX)+len(restX) == 0 {
		return pfx.Err(fmt.Errorf("no testable genes to plot"))
	}

	graph := chart.Chart{
		Title:  "Volcano",
		Width:  plotWidth,
		Height: plotHeight,
		XAxis:  chart.XAxis{Name: "log2 fold change"},
		YAxis:  chart.YAxis{Name: "-log10 p-value"},
		Series: scatterPair(restX, restY, sigX, sigY),
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return render(graph, w)
}

// MA plots log2 fold change against log10 mean expression, highlighting
// significant genes.
func MA(w io.Writer, rows []results.Row, alpha float64) error {
	var sigX, sigY, restX, restY []float64
	for _, r := range rows {
		if !r.Log2FoldChange.Valid || r.BaseMean <= 0 {
			continue
		}
		x := math.Log10(r.BaseMean)
		if r.PAdj.Valid && r.PAdj.Value < alpha {
			sigX = append(sigX, x)
			sigY = append(sigY, r.Log2FoldChange.Value)
		} else {
			restX = append(restX, x)
			restY = append(restY, r.Log2FoldChange.Value)
		}
	}
	if len(sigX)+len(restX) == 0 {
		return pfx.Err(fmt.Errorf("no testable genes to plot"))
	}

	graph := chart.Chart{
		Title:  "MA",
		Width:  plotWidth,
		Height: plotHeight,
		XAxis:  chart.XAxis{Name: "log10 mean of normalized counts"},
		YAxis:  chart.YAxis{Name: "log2 fold change"},
		Series: scatterPair(restX, restY, sigX, sigY),
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return render(graph, w)
}

// PCA draws samples in PC1/PC2 space, one series per condition, with the
// variance explained by each component in the axis names.
func PCA(w io.Writer, res *pca.Result, conditions []string) error {
	if len(conditions) != len(res.PC1) {
		return pfx.Err(fmt.Errorf("have %d conditions for %d samples", len(conditions), len(res.PC1)))
	}

	byCondition := make(map[string][]int)
	var order []string
	for j, c := range conditions {
		if _, ok := byCondition[c]; !ok {
			order = append(order, c)
		}
		byCondition[c] = append(byCondition[c], j)
	}

	var series []chart.Series
	for k, c := range order {
		var xs, ys []float64
		for _, j := range byCondition[c] {
			xs = append(xs, res.PC1[j])
			ys = append(ys, res.PC2[j])
		}
		style := dotStyle(chart.GetDefaultColor(k))
		style.DotWidth = 5
		series = append(series, chart.ContinuousSeries{Name: c, XValues: xs, YValues: ys, Style: style})
	}

	graph := chart.Chart{
		Title:  "PCA",
		Width:  plotWidth,
		Height: plotHeight,
		XAxis:  chart.XAxis{Name: fmt.Sprintf("PC1: %.1f%% variance", res.VarExplained[0])},
		YAxis:  chart.YAxis{Name: fmt.Sprintf("PC2: %.1f%% variance", res.VarExplained[1])},
		Series: series,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return render(graph, w)
}

func scatterPair(restX, restY, sigX, sigY []float64) []chart.Series {
	var series []chart.Series
	if len(restX) > 0 {
		series = append(series, chart.ContinuousSeries{Name: "not significant", XValues: restX, YValues: restY, Style: dotStyle(colorGray)})
	}
	if len(sigX) > 0 {
		series = append(series, chart.ContinuousSeries{Name: "significant", XValues: sigX, YValues: sigY, Style: dotStyle(colorRed)})
	}

	return series
}

func negLog10(p float64) float64 {
	if p <= 0 {
		return maxNegLog10P
	}
	y := -math.Log10(p)
	if y > maxNegLog10P {
		return maxNegLog10P
	}

	return y
}

func minMax(vals []float64) (float64, float64) {
	min, max := vals[0], vals[0]
	for _, v := range vals {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}

	return min, max
}

func render(graph chart.Chart, w io.Writer) error {
	if err := graph.Render(chart.PNG, w); err != nil {
		return pfx.Err(err)
	}

	return nil
}
