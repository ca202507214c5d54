package dmr

import (
	"math"
	"sort"

	"github.com/epistat/methdiff/interval"
)

// Region is a called differential-methylation region.
type Region struct {
	interval.Interval
	// NumCpGs is the number of sites with a defined statistic inside the
	// region.  Never below Opts.MinCpGs for a reported region.
	NumCpGs int
	// MeanDiff is the mean per-site methylation difference between
	// conditions.
	MeanDiff float64
	// MinFDR is the minimum smoothed per-site false-discovery estimate
	// within the region.
	MinFDR float64
	// Genes lists overlapping gene names, filled by the annotate package.
	Genes []string
}

// Opts configures one testing run.
type Opts struct {
	// Coefficient names the design column tested, e.g. "Typecancer".
	Coefficient string
	// AllCovered drops a site when any sample has zero coverage there,
	// instead of fitting on the covered subset.
	AllCovered bool
	// BandwidthKb is the proximity bandwidth C in kilobases: consecutive
	// sites at most C*1000 bases apart join the same candidate region.
	BandwidthKb float64
	// MinCpGs is the minimum number of fitted sites a candidate needs to be
	// considered at all; smaller candidates are discarded, not reported as
	// non-significant.
	MinCpGs int
	// PCutoff is the ceiling on a region's MinFDR for it to be called.
	PCutoff float64
	// SmoothWidth is the running-mean window (in sites) applied to per-site
	// FDRs within a candidate before taking the minimum.
	SmoothWidth int
}

// DefaultOpts mirrors the defaults of the methdiff command.
var DefaultOpts = Opts{
	AllCovered:  true,
	BandwidthKb: 2,
	MinCpGs:     5,
	PCutoff:     0.05,
	SmoothWidth: 3,
}

// Stats counts per-site and per-region exclusions during a run.  These are
// recovered-from conditions, reported rather than fatal.
type Stats struct {
	// SitesTotal is the number of input sites.
	SitesTotal int
	// SitesLowCoverage counts sites dropped by the AllCovered requirement.
	SitesLowCoverage int
	// SitesUnstableFit counts sites whose statistic was undefined (too few
	// covered samples or a degenerate fit).
	SitesUnstableFit int
	// SitesTested counts sites that entered the region step.
	SitesTested int
	// Candidates counts proximity-grouped candidate regions.
	Candidates int
	// CandidatesTooSmall counts candidates discarded for having fewer than
	// MinCpGs fitted sites.
	CandidatesTooSmall int
	// RegionsNotSignificant counts candidates whose MinFDR exceeded PCutoff.
	RegionsNotSignificant int
	// RegionsCalled counts reported regions.
	RegionsCalled int
}

// Merge adds the field values of the two Stats objects and creates new
// Stats.
func (s Stats) Merge(o Stats) Stats {
	s.SitesTotal += o.SitesTotal
	s.SitesLowCoverage += o.SitesLowCoverage
	s.SitesUnstableFit += o.SitesUnstableFit
	s.SitesTested += o.SitesTested
	s.Candidates += o.Candidates
	s.CandidatesTooSmall += o.CandidatesTooSmall
	s.RegionsNotSignificant += o.RegionsNotSignificant
	s.RegionsCalled += o.RegionsCalled
	return s
}

// CallRegions runs the full testing pipeline: per-site fits, BH false
// discovery estimation, proximity grouping, smoothing, thresholding, and
// ranking.  The returned regions are ordered by descending |MeanDiff| (the
// primary reporting order); use RankByFDR for top-N selection.  Unknown
// coefficients and sample-count mismatches are fatal; data-sufficiency
// exclusions are counted in Stats.
func CallRegions(ds *Dataset, design *Design, opts Opts) ([]Region, Stats, error) {
	var stats Stats
	coef, err := design.Coefficient(opts.Coefficient)
	if err != nil {
		return nil, stats, err
	}
	if design.NumSamples() != len(ds.Samples) {
		return nil, stats, errDesignShape(design.NumSamples(), len(ds.Samples))
	}

	sites := make([]Site, len(ds.Sites))
	copy(sites, ds.Sites)
	sortSites(sites)
	stats.SitesTotal = len(sites)

	// Annotate: per-site statistics.  Each fit is independent; sites are
	// already sorted for the grouping step below.
	var fitted []siteStat
	for _, site := range sites {
		if opts.AllCovered && anyUncovered(site) {
			stats.SitesLowCoverage++
			continue
		}
		st := fitSite(site, design, coef)
		if !st.ok {
			stats.SitesUnstableFit++
			continue
		}
		fitted = append(fitted, st)
	}
	stats.SitesTested = len(fitted)

	// Benjamini-Hochberg over every tested site.
	pvals := make([]float64, len(fitted))
	for i, st := range fitted {
		pvals[i] = st.p
	}
	for i, fdr := range adjustFDR(pvals) {
		fitted[i].fdr = fdr
	}

	// Smooth & combine into candidates, then threshold.
	maxGap := int(opts.BandwidthKb * 1000)
	var regions []Region
	for start := 0; start < len(fitted); {
		end := start + 1
		for end < len(fitted) &&
			fitted[end].site.Chrom == fitted[end-1].site.Chrom &&
			fitted[end].site.Start-fitted[end-1].site.Start <= maxGap {
			end++
		}
		stats.Candidates++
		group := fitted[start:end]
		start = end

		if len(group) < opts.MinCpGs {
			stats.CandidatesTooSmall++
			continue
		}
		fdrs := make([]float64, len(group))
		diffSum := 0.0
		for i, st := range group {
			fdrs[i] = st.fdr
			diffSum += st.diff
		}
		smoothValues(fdrs, opts.SmoothWidth)
		minFDR := math.Inf(1)
		for _, v := range fdrs {
			if v < minFDR {
				minFDR = v
			}
		}
		if minFDR > opts.PCutoff {
			stats.RegionsNotSignificant++
			continue
		}
		regions = append(regions, Region{
			Interval: interval.Interval{
				Chrom: group[0].site.Chrom,
				Start: group[0].site.Start,
				End:   group[len(group)-1].site.End,
			},
			NumCpGs:  len(group),
			MeanDiff: diffSum / float64(len(group)),
			MinFDR:   minFDR,
		})
		stats.RegionsCalled++
	}

	RankByEffect(regions)
	return regions, stats, nil
}

func anyUncovered(site Site) bool {
	for _, c := range site.Counts {
		if c.Cov == 0 {
			return true
		}
	}
	return false
}

// adjustFDR applies the Benjamini-Hochberg correction, returning adjusted
// values aligned with the input.  Ties share the rank of their first
// occurrence in the ascending p-value order, and adjusted values are capped
// at 1.
func adjustFDR(pvals []float64) []float64 {
	n := len(pvals)
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return pvals[idx[a]] < pvals[idx[b]] })

	rankOf := make(map[float64]int, n)
	rank := 0
	for _, i := range idx {
		if _, ok := rankOf[pvals[i]]; !ok {
			rank++
			rankOf[pvals[i]] = rank
		}
	}
	out := make([]float64, n)
	for i, p := range pvals {
		padj := float64(n) * p / float64(rankOf[p])
		if padj > 1 {
			padj = 1
		}
		out[i] = padj
	}
	return out
}

// smoothValues is a NaN-free running mean over a centered window of width
// entries.  Width <= 1 leaves values untouched.
func smoothValues(values []float64, width int) {
	if width <= 1 || len(values) == 0 {
		return
	}
	half := width / 2
	src := make([]float64, len(values))
	copy(src, values)
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi >= len(src) {
			hi = len(src) - 1
		}
		sum := 0.0
		for _, v := range src[lo : hi+1] {
			sum += v
		}
		values[i] = sum / float64(hi-lo+1)
	}
}

// RankByEffect stably sorts regions by descending absolute mean difference.
func RankByEffect(regions []Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		return math.Abs(regions[i].MeanDiff) > math.Abs(regions[j].MeanDiff)
	})
}

// RankByFDR stably sorts regions by ascending combined FDR, used when
// selecting top-N regions for annotation.
func RankByFDR(regions []Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].MinFDR < regions[j].MinFDR
	})
}
