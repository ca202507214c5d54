// Package aggregate bins per-base signal tracks into fixed-width profile
// matrices around a set of anchor intervals (promoters, binding sites, gene
// bodies).  Each anchor contributes one row per track; rows are binned at a
// fixed resolution, optionally smoothed, and strand-flipped so that
// "upstream" is on the same side for every anchor.
package aggregate

import (
	"fmt"
	"math"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/traverse"
	"gonum.org/v1/gonum/floats"

	"github.com/epistat/methdiff/interval"
	"github.com/epistat/methdiff/track"
)

// Mode selects how an anchor maps onto the fixed bin axis.
type Mode int

const (
	// ModeCenter windows [mid-extend, mid+extend) around each anchor's
	// midpoint, independent of anchor length.
	ModeCenter Mode = iota
	// ModeScale rescales each anchor's own span onto the bin axis, so
	// variable-length anchors become comparable position-for-position.
	ModeScale
)

func (m Mode) String() string {
	if m == ModeScale {
		return "scale"
	}
	return "center"
}

// Opts configures one aggregation run.
type Opts struct {
	// Extend is the half-window in bases.  The bin count is always
	// 2*Extend/BinWidth, for both modes.
	Extend   int
	BinWidth int
	Mode     Mode
	// Smooth convolves each row with a running-mean kernel of SmoothWidth
	// bins.  Smoothing never crosses row boundaries.
	Smooth      bool
	SmoothWidth int
}

// DefaultOpts is the configuration used by the methdiff command.
var DefaultOpts = Opts{
	Extend:      1000,
	BinWidth:    20,
	Mode:        ModeCenter,
	SmoothWidth: 3,
}

// Matrix is the aggregation output: one (nAnchors x nBins) row-major block
// per track name.  All tracks share the anchor set and the bin axis.  Row i
// always corresponds to anchor i.
type Matrix struct {
	Anchors interval.Set
	NBins   int
	// Axis holds the bin coordinates: base offsets from the anchor midpoint
	// in center mode, fractional [0,1] positions in scale mode.
	Axis   []float64
	blocks map[string][]float64
}

// Tracks returns the track names present in the matrix.
func (m *Matrix) Tracks() []string {
	out := make([]string, 0, len(m.blocks))
	for name := range m.blocks {
		out = append(out, name)
	}
	return out
}

// Row returns the bin values for anchor i of the named track.  The returned
// slice aliases the matrix block.
func (m *Matrix) Row(name string, i int) []float64 {
	block := m.blocks[name]
	if block == nil {
		return nil
	}
	return block[i*m.NBins : (i+1)*m.NBins]
}

// TrackRows returns all rows of the named track as a slice of row slices,
// suitable as clustering input.
func (m *Matrix) TrackRows(name string) [][]float64 {
	block := m.blocks[name]
	if block == nil {
		return nil
	}
	out := make([][]float64, len(m.Anchors))
	for i := range out {
		out[i] = block[i*m.NBins : (i+1)*m.NBins]
	}
	return out
}

func (opts Opts) validate(nAnchors int) error {
	if nAnchors == 0 {
		return errors.E(errors.Invalid, "aggregate: empty anchor set")
	}
	if opts.Extend <= 0 || opts.BinWidth <= 0 {
		return errors.E(errors.Invalid,
			fmt.Sprintf("aggregate: invalid window: extend=%d binWidth=%d", opts.Extend, opts.BinWidth))
	}
	if opts.BinWidth > 2*opts.Extend {
		return errors.E(errors.Invalid,
			fmt.Sprintf("aggregate: invalid window: binWidth %d exceeds window %d", opts.BinWidth, 2*opts.Extend))
	}
	if (2*opts.Extend)%opts.BinWidth != 0 {
		return errors.E(errors.Invalid,
			fmt.Sprintf("aggregate: invalid window: binWidth %d does not divide window %d", opts.BinWidth, 2*opts.Extend))
	}
	return nil
}

// Aggregate bins every track over every anchor.  Bins with no underlying
// samples are NaN; negative-strand anchors have their bin axis reversed.
// Per-anchor work is independent and runs in parallel; row order in the
// output matches anchor order exactly.
func Aggregate(tracks map[string]*track.Track, anchors interval.Set, opts Opts) (*Matrix, error) {
	if err := opts.validate(len(anchors)); err != nil {
		return nil, err
	}
	nBins := 2 * opts.Extend / opts.BinWidth
	m := &Matrix{
		Anchors: anchors,
		NBins:   nBins,
		Axis:    make([]float64, nBins),
		blocks:  make(map[string][]float64, len(tracks)),
	}
	switch opts.Mode {
	case ModeScale:
		floats.Span(m.Axis, 0.5/float64(nBins), (float64(nBins)-0.5)/float64(nBins))
	default:
		for j := range m.Axis {
			m.Axis[j] = float64(-opts.Extend) + (float64(j)+0.5)*float64(opts.BinWidth)
		}
	}
	for name := range tracks {
		m.blocks[name] = make([]float64, len(anchors)*nBins)
	}

	// Each anchor is independent; workers write disjoint row slices, so the
	// only synchronization is the final join inside traverse.
	err := traverse.Each(len(anchors), func(i int) error {
		anchor := anchors[i]
		for name, tr := range tracks {
			row := m.blocks[name][i*nBins : (i+1)*nBins]
			binAnchor(tr, anchor, opts, nBins, row)
			if anchor.Strand == interval.StrandMinus {
				reverse(row)
			}
			if opts.Smooth {
				smoothRow(row, opts.SmoothWidth)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func binAnchor(tr *track.Track, anchor interval.Interval, opts Opts, nBins int, row []float64) {
	switch opts.Mode {
	case ModeScale:
		values := tr.Query(anchor)
		sums := make([]float64, nBins)
		counts := make([]int, nBins)
		for t, v := range values {
			if math.IsNaN(v) {
				continue
			}
			bin := t * nBins / len(values)
			sums[bin] += v
			counts[bin]++
		}
		for j := range row {
			if counts[j] == 0 {
				row[j] = math.NaN()
			} else {
				row[j] = sums[j] / float64(counts[j])
			}
		}
	default:
		mid := anchor.Mid()
		start := mid - opts.Extend
		values := make([]float64, 2*opts.Extend)
		for t := range values {
			values[t] = math.NaN()
		}
		if start+len(values)-1 >= 1 {
			qStart := start
			offset := 0
			if qStart < 1 {
				offset = 1 - qStart
				qStart = 1
			}
			q := interval.Interval{Chrom: anchor.Chrom, Start: qStart, End: start + len(values) - 1}
			copy(values[offset:], tr.Query(q))
		}
		for j := 0; j < nBins; j++ {
			row[j] = nanMean(values[j*opts.BinWidth : (j+1)*opts.BinWidth])
		}
	}
}

func nanMean(values []float64) float64 {
	sum, n := 0.0, 0
	for _, v := range values {
		if !math.IsNaN(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return math.NaN()
	}
	return sum / float64(n)
}

func reverse(row []float64) {
	for i, j := 0, len(row)-1; i < j; i, j = i+1, j-1 {
		row[i], row[j] = row[j], row[i]
	}
}
