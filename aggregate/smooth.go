package aggregate

import "math"

// smoothRow replaces row with its running mean over a centered window of
// width bins.  NaN entries neither contribute to neighboring means nor get
// filled in: a bin with no data stays NaN after smoothing.  Width <= 1 is
// the identity.  Even widths are rounded up to the next odd width so the
// window stays centered.
func smoothRow(row []float64, width int) {
	if width <= 1 || len(row) == 0 {
		return
	}
	half := width / 2
	src := make([]float64, len(row))
	copy(src, row)
	for i := range row {
		if math.IsNaN(src[i]) {
			continue
		}
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi >= len(src) {
			hi = len(src) - 1
		}
		row[i] = nanMean(src[lo : hi+1])
	}
}
