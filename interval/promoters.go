package interval

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Promoters derives one promoter window per gene: up bases 5' of the
// transcription start site and down bases 3' of it.  The TSS is Start for
// plus-strand genes and End for minus-strand genes, so the window always has
// "upstream" on the 5' side.  Windows are clamped at position 1; genomic
// upper bounds are not checked here.  Genes without strand information yield
// an errors.Invalid error, since their TSS is ambiguous.
func Promoters(genes Set, up, down int) (Set, error) {
	if up < 0 || down < 0 {
		return nil, errors.E(errors.Invalid, "interval: negative promoter offset")
	}
	out := make(Set, 0, len(genes))
	for _, g := range genes {
		var start, end int
		switch g.Strand {
		case StrandPlus:
			start, end = g.Start-up, g.Start+down
		case StrandMinus:
			start, end = g.End-down, g.End+up
		default:
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("interval: gene %s at %s has no strand", g.Name(), g.String()))
		}
		if start < 1 {
			start = 1
		}
		if end < start {
			end = start
		}
		out = append(out, Interval{
			Chrom:  g.Chrom,
			Start:  start,
			End:    end,
			Strand: g.Strand,
			Meta:   g.Meta,
		})
	}
	return out, nil
}
