package interval

import (
	"fmt"

	"github.com/grailbio/base/errors"
)

// Strand is the orientation of an interval on the reference.
type Strand byte

// The three recognized strand values.  BED and most annotation sources use
// '.' or '*' for "unknown"; both parse to StrandNone.
const (
	StrandPlus  Strand = '+'
	StrandMinus Strand = '-'
	StrandNone  Strand = '*'
)

// Interval is a genomic interval with 1-based inclusive coordinates.
// Start <= End and Chrom != "" always hold for intervals built with New;
// code in this repository never mutates an Interval after construction.
type Interval struct {
	Chrom  string
	Start  int
	End    int
	Strand Strand
	// Meta carries optional per-interval annotation, e.g. "gene_name".
	// A nil map means no annotation.
	Meta map[string]string
}

// New validates coordinates and returns an Interval.  It returns an
// errors.Invalid error naming the offending chromosome when start > end or
// the chromosome is empty.
func New(chrom string, start, end int, strand Strand) (Interval, error) {
	if chrom == "" {
		return Interval{}, errors.E(errors.Invalid, "interval: empty chromosome name")
	}
	if start > end {
		return Interval{}, errors.E(errors.Invalid,
			fmt.Sprintf("interval: %s:%d-%d: start exceeds end", chrom, start, end))
	}
	if strand != StrandPlus && strand != StrandMinus {
		strand = StrandNone
	}
	return Interval{Chrom: chrom, Start: start, End: end, Strand: strand}, nil
}

// Len returns the number of bases covered by iv.
func (iv Interval) Len() int {
	return iv.End - iv.Start + 1
}

// Mid returns the midpoint position of iv, rounding down.
func (iv Interval) Mid() int {
	return (iv.Start + iv.End) / 2
}

// Name returns the "gene_name" annotation, or "" when absent.
func (iv Interval) Name() string {
	return iv.Meta["gene_name"]
}

func (iv Interval) String() string {
	return fmt.Sprintf("%s:%d-%d", iv.Chrom, iv.Start, iv.End)
}

// Overlaps reports whether a and b share at least one base.  Both intervals
// use closed 1-based coordinates, so touching endpoints count as overlap.
func Overlaps(a, b Interval) bool {
	return a.Chrom == b.Chrom && a.Start <= b.End && b.Start <= a.End
}

// Set is an ordered sequence of intervals.  Order matters for downstream
// reporting (matrix rows, region ranking); it is irrelevant for overlap
// queries.
type Set []Interval

// FilterChrom returns the ordered subset of s on the given chromosome.
func (s Set) FilterChrom(chrom string) Set {
	var out Set
	for _, iv := range s {
		if iv.Chrom == chrom {
			out = append(out, iv)
		}
	}
	return out
}

// Chroms returns the distinct chromosome names in s, in first-seen order.
func (s Set) Chroms() []string {
	seen := make(map[string]bool)
	var out []string
	for _, iv := range s {
		if !seen[iv.Chrom] {
			seen[iv.Chrom] = true
			out = append(out, iv.Chrom)
		}
	}
	return out
}
