// Package track holds named genome-positioned scalar signals (chromatin
// accessibility, histone marks, methylation fraction) keyed by chromosome,
// and answers per-base queries over intervals.  Positions absent from a
// track are reported as NaN, never silently zero; downstream consumers must
// handle missing data explicitly.
package track

import (
	"fmt"
	"math"
	"sort"

	"github.com/grailbio/base/errors"

	"github.com/epistat/methdiff/interval"
)

// Sample is one measured genome position.  Pos is 1-based.
type Sample struct {
	Pos   int
	Value float64
}

// Track is a named signal source.  Per-chromosome sample slices are sorted
// by position; the track is read-only after construction.
type Track struct {
	Name string
	data map[string][]Sample
}

// New validates that each chromosome's samples are sorted by strictly
// increasing position and returns a Track wrapping them.
func New(name string, data map[string][]Sample) (*Track, error) {
	for chrom, samples := range data {
		for i := 1; i < len(samples); i++ {
			if samples[i].Pos <= samples[i-1].Pos {
				return nil, errors.E(errors.Invalid,
					fmt.Sprintf("track %s: %s: unsorted or duplicate position %d",
						name, chrom, samples[i].Pos))
			}
		}
	}
	return &Track{Name: name, data: data}, nil
}

// Chroms returns the chromosomes the track has samples for.
func (t *Track) Chroms() []string {
	out := make([]string, 0, len(t.data))
	for chrom := range t.data {
		out = append(out, chrom)
	}
	sort.Strings(out)
	return out
}

// Query returns one value per base of iv, in genomic order.  Bases with no
// sample are NaN.
func (t *Track) Query(iv interval.Interval) []float64 {
	out := make([]float64, iv.Len())
	for i := range out {
		out[i] = math.NaN()
	}
	samples := t.data[iv.Chrom]
	lo := sort.Search(len(samples), func(i int) bool { return samples[i].Pos >= iv.Start })
	for i := lo; i < len(samples) && samples[i].Pos <= iv.End; i++ {
		out[samples[i].Pos-iv.Start] = samples[i].Value
	}
	return out
}
