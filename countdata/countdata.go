// Package countdata loads gene-by-sample read count matrices and sample
// design tables from tab-separated files, and keeps the two aligned.
package countdata

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/carbocation/pfx"
)

// Matrix holds read counts in gene-major order: Counts[i][j] is the number of
// reads assigned to Genes[i] in Samples[j]. Counts are stored as float64
// because downstream normalization produces fractional values of the same
// shape.
type Matrix struct {
	Genes   []string
	Samples []string
	Counts  [][]float64
}

// Design assigns each sample to a condition. Reference names the condition
// that fold changes are computed against.
type Design struct {
	Samples    []string
	Conditions []string
	Reference  string
}

// ReadMatrix parses a count matrix, tab-separated by convention though the
// delimiter is detected. The first header field names the gene-ID column
// (often blank) and the remaining fields name the samples. Every data row
// must carry one value per sample.
func ReadMatrix(r io.Reader) (*Matrix, error) {
	cr, err := delimitedReader(r)
	if err != nil {
		return nil, err
	}

	header, err := cr.Read()
	if err != nil {
		return nil, pfx.Err(err)
	}
	if len(header) < 2 {
		return nil, pfx.Err(fmt.Errorf("count matrix header has %d fields; expected a gene column plus at least one sample", len(header)))
	}

	out := &Matrix{Samples: header[1:]}

	seen := make(map[string]struct{})
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		} else if err != nil {
			return nil, pfx.Err(err)
		}

		gene := row[0]
		if _, exists := seen[gene]; exists {
			return nil, pfx.Err(fmt.Errorf("line %d: duplicate gene ID %q", line, gene))
		}
		seen[gene] = struct{}{}

		counts := make([]float64, len(row)-1)
		for j, field := range row[1:] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, pfx.Err(fmt.Errorf("line %d: gene %q sample %q: %v", line, gene, out.Samples[j], err))
			}
			if v < 0 {
				return nil, pfx.Err(fmt.Errorf("line %d: gene %q sample %q: negative count %f", line, gene, out.Samples[j], v))
			}
			counts[j] = v
		}

		out.Genes = append(out.Genes, gene)
		out.Counts = append(out.Counts, counts)
	}

	if len(out.Genes) == 0 {
		return nil, pfx.Err(fmt.Errorf("count matrix has no gene rows"))
	}

	return out, nil
}

// ReadDesign parses a sample design table with the same delimiter handling
// as ReadMatrix. The columns named "sample" and "condition"
// (case-insensitive) are used; if neither name is present, the first two
// columns are taken in that order.
func ReadDesign(r io.Reader) (*Design, error) {
	cr, err := delimitedReader(r)
	if err != nil {
		return nil, err
	}

	entries, err := cr.ReadAll()
	if err != nil {
		return nil, pfx.Err(err)
	}
	if len(entries) < 2 {
		return nil, pfx.Err(fmt.Errorf("design table has no sample rows"))
	}

	header := make(map[string]int)
	for i, col := range entries[0] {
		header[strings.ToLower(col)] = i
	}

	sampleCol, okS := header["sample"]
	conditionCol, okC := header["condition"]
	if !okS || !okC {
		sampleCol, conditionCol = 0, 1
		if len(entries[0]) < 2 {
			return nil, pfx.Err(fmt.Errorf("design table needs sample and condition columns"))
		}
	}

	out := &Design{}
	for _, row := range entries[1:] {
		out.Samples = append(out.Samples, row[sampleCol])
		out.Conditions = append(out.Conditions, row[conditionCol])
	}

	return out, nil
}

// delimitedReader buffers the input, sniffs its delimiter, and returns a csv
// reader configured with it.
func delimitedReader(r io.Reader) (*csv.Reader, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, pfx.Err(err)
	}

	cr := csv.NewReader(bytes.NewReader(raw))
	cr.Comma = DetectDelimiter(bytes.NewReader(raw))

	return cr, nil
}

// Levels returns the distinct condition values in order of first appearance.
func (d *Design) Levels() []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range d.Conditions {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}

	return out
}

// Relevel marks ref as the reference condition. The design must contain
// exactly two conditions, one of which is ref.
func (d *Design) Relevel(ref string) error {
	levels := d.Levels()
	if len(levels) != 2 {
		return pfx.Err(fmt.Errorf("design has %d condition levels %v; two-group comparison requires exactly 2", len(levels), levels))
	}

	for _, l := range levels {
		if l == ref {
			d.Reference = ref
			return nil
		}
	}

	return pfx.Err(fmt.Errorf("reference condition %q not found among levels %v", ref, levels))
}

// Treated reports, per sample, whether it belongs to the non-reference
// condition. Relevel must have been called first.
func (d *Design) Treated() ([]bool, error) {
	if d.Reference == "" {
		return nil, pfx.Err(fmt.Errorf("no reference condition set"))
	}

	out := make([]bool, len(d.Conditions))
	for i, c := range d.Conditions {
		out[i] = c != d.Reference
	}

	return out, nil
}

// Align reorders the matrix columns to match the design's sample order. Every
// design sample must appear exactly once in the matrix and vice versa.
func Align(m *Matrix, d *Design) error {
	if len(m.Samples) != len(d.Samples) {
		return pfx.Err(fmt.Errorf("count matrix has %d samples but design has %d", len(m.Samples), len(d.Samples)))
	}

	pos := make(map[string]int)
	for j, s := range m.Samples {
		if _, ok := pos[s]; ok {
			return pfx.Err(fmt.Errorf("duplicate sample %q in count matrix", s))
		}
		pos[s] = j
	}

	order := make([]int, len(d.Samples))
	for j, s := range d.Samples {
		p, ok := pos[s]
		if !ok {
			return pfx.Err(fmt.Errorf("design sample %q not found in count matrix", s))
		}
		order[j] = p
	}

	for i, row := range m.Counts {
		next := make([]float64, len(row))
		for j, p := range order {
			next[j] = row[p]
		}
		m.Counts[i] = next
	}
	m.Samples = append([]string{}, d.Samples...)

	return nil
}

// FilterLowCounts drops genes whose total count across all samples is below
// min, returning the filtered matrix and the number of genes dropped.
func (m *Matrix) FilterLowCounts(min float64) (*Matrix, int) {
	out := &Matrix{Samples: m.Samples}
	dropped := 0
	for i, row := range m.Counts {
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		if sum < min {
			dropped++
			continue
		}
		out.Genes = append(out.Genes, m.Genes[i])
		out.Counts = append(out.Counts, row)
	}

	return out, dropped
}
