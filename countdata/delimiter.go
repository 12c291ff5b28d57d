package countdata

import (
	"io"

	"github.com/csimplestring/go-csv/detector"
)

// DetectDelimiter returns the single most likely rune delimiting the values
// in the reader. Count matrices and design tables are nominally
// tab-separated, but comma-separated exports are common enough that both are
// accepted; tab wins when detection is inconclusive.
func DetectDelimiter(r io.Reader) rune {
	d := detector.New()
	delimiters := d.DetectDelimiter(r, '"')

	if len(delimiters) > 0 {
		return rune(delimiters[0][0])
	}

	return '\t'
}
