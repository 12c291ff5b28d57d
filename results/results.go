// Package results holds the per-gene differential expression results table
// and its tab-separated serialization.
package results

import (
	"encoding/csv"
	"io"
	"math"
	"sort"
	"strconv"

	"github.com/carbocation/pfx"
	"github.com/gocarina/gocsv"
)

// NAFloat is a float column that renders as "NA" when no value exists, the
// convention downstream R tooling expects.
type NAFloat struct {
	Value float64
	Valid bool
}

// Of wraps a plain float, treating NaN as NA.
func Of(v float64) NAFloat {
	if math.IsNaN(v) {
		return NAFloat{}
	}

	return NAFloat{Value: v, Valid: true}
}

func (f NAFloat) MarshalCSV() (string, error) {
	if !f.Valid {
		return "NA", nil
	}

	return strconv.FormatFloat(f.Value, 'g', -1, 64), nil
}

func (f *NAFloat) UnmarshalCSV(field string) error {
	if field == "NA" || field == "" {
		*f = NAFloat{}
		return nil
	}

	v, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return pfx.Err(err)
	}
	*f = NAFloat{Value: v, Valid: true}

	return nil
}

// Row is one gene's test output, in the column order differential expression
// reports conventionally use.
type Row struct {
	Gene           string  `csv:"gene"`
	BaseMean       float64 `csv:"baseMean"`
	Log2FoldChange NAFloat `csv:"log2FoldChange"`
	LfcSE          NAFloat `csv:"lfcSE"`
	Stat           NAFloat `csv:"stat"`
	PValue         NAFloat `csv:"pvalue"`
	PAdj           NAFloat `csv:"padj"`
}

// SortByPAdj orders rows by ascending adjusted p-value. NA rows sort last;
// ties break on ascending raw p-value, then gene name for determinism.
func SortByPAdj(rows []Row) {
	sort.SliceStable(rows, func(a, b int) bool {
		ra, rb := rows[a], rows[b]
		switch {
		case ra.PAdj.Valid != rb.PAdj.Valid:
			return ra.PAdj.Valid
		case ra.PAdj.Valid && ra.PAdj.Value != rb.PAdj.Value:
			return ra.PAdj.Value < rb.PAdj.Value
		case ra.PValue.Valid && rb.PValue.Valid && ra.PValue.Value != rb.PValue.Value:
			return ra.PValue.Value < rb.PValue.Value
		}

		return ra.Gene < rb.Gene
	})
}

// Significant keeps rows with padj below alpha and an absolute log2 fold
// change of at least minAbsLFC.
func Significant(rows []Row, alpha, minAbsLFC float64) []Row {
	var out []Row
	for _, r := range rows {
		if !r.PAdj.Valid || !r.Log2FoldChange.Valid {
			continue
		}
		if r.PAdj.Value < alpha && math.Abs(r.Log2FoldChange.Value) >= minAbsLFC {
			out = append(out, r)
		}
	}

	return out
}

// WriteTSV writes the table with a header line, tab-delimited.
func WriteTSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'
	if err := gocsv.MarshalCSV(&rows, gocsv.NewSafeCSVWriter(cw)); err != nil {
		return pfx.Err(err)
	}

	return nil
}

// ReadTSV parses a table previously written by WriteTSV.
func ReadTSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'

	var rows []Row
	if err := gocsv.UnmarshalCSV(cr, &rows); err != nil {
		return nil, pfx.Err(err)
	}

	return rows, nil
}
