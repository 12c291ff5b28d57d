package results

import (
	"bytes"
	"math"
	"strings"
	"testing"
)

func TestNAFloatMarshal(t *testing.T) {
	for _, v := range []struct {
		in   NAFloat
		want string
	}{
		{Of(1.5), "1.5"},
		{Of(math.NaN()), "NA"},
		{NAFloat{}, "NA"},
	} {
		got, err := v.in.MarshalCSV()
		if err != nil {
			t.Fatal(err)
		}
		if got != v.want {
			t.Fatalf("got %q, want %q", got, v.want)
		}
	}
}

func TestNAFloatUnmarshal(t *testing.T) {
	var f NAFloat
	if err := f.UnmarshalCSV("NA"); err != nil {
		t.Fatal(err)
	}
	if f.Valid {
		t.Fatal("NA should unmarshal as invalid")
	}

	if err := f.UnmarshalCSV("0.25"); err != nil {
		t.Fatal(err)
	}
	if !f.Valid || f.Value != 0.25 {
		t.Fatalf("got %+v, want valid 0.25", f)
	}

	if err := f.UnmarshalCSV("junk"); err == nil {
		t.Fatal("expected error for unparseable field")
	}
}

func testRows() []Row {
	return []Row{
		{Gene: "gZero", BaseMean: 0},
		{Gene: "gUp", BaseMean: 500, Log2FoldChange: Of(2.5), LfcSE: Of(0.3), Stat: Of(8.3), PValue: Of(1e-16), PAdj: Of(3e-13)},
		{Gene: "gFlat", BaseMean: 80, Log2FoldChange: Of(0.1), LfcSE: Of(0.4), Stat: Of(0.25), PValue: Of(0.8), PAdj: Of(0.93)},
		{Gene: "gDown", BaseMean: 120, Log2FoldChange: Of(-1.8), LfcSE: Of(0.25), Stat: Of(-7.2), PValue: Of(6e-13), PAdj: Of(9e-10)},
	}
}

func TestSortByPAdj(t *testing.T) {
	rows := testRows()
	SortByPAdj(rows)

	want := []string{"gUp", "gDown", "gFlat", "gZero"}
	for i, gene := range want {
		if rows[i].Gene != gene {
			t.Fatalf("position %d: got %s, want %s (full order %v)", i, rows[i].Gene, gene, rows)
		}
	}
}

func TestSignificant(t *testing.T) {
	rows := testRows()

	sig := Significant(rows, 0.05, 1)
	if len(sig) != 2 {
		t.Fatalf("got %d significant genes, want 2", len(sig))
	}
	for _, r := range sig {
		if r.Gene != "gUp" && r.Gene != "gDown" {
			t.Fatalf("unexpected significant gene %s", r.Gene)
		}
	}

	// A fold-change threshold of 2 excludes gDown.
	sig = Significant(rows, 0.05, 2)
	if len(sig) != 1 || sig[0].Gene != "gUp" {
		t.Fatalf("got %v, want only gUp", sig)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	rows := testRows()

	var buf bytes.Buffer
	if err := WriteTSV(&buf, rows); err != nil {
		t.Fatal(err)
	}

	header := strings.SplitN(buf.String(), "\n", 2)[0]
	if want := "gene\tbaseMean\tlog2FoldChange\tlfcSE\tstat\tpvalue\tpadj"; header != want {
		t.Fatalf("got header %q, want %q", header, want)
	}
	if !strings.Contains(buf.String(), "gZero\t0\tNA\tNA\tNA\tNA\tNA") {
		t.Fatalf("untested gene not written as NA:\n%s", buf.String())
	}

	back, err := ReadTSV(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != len(rows) {
		t.Fatalf("got %d rows back, want %d", len(back), len(rows))
	}
	for i := range rows {
		if back[i] != rows[i] {
			t.Fatalf("row %d changed in round trip:\ngot  %+v\nwant %+v", i, back[i], rows[i])
		}
	}
}
