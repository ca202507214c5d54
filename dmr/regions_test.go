package dmr

import (
	"math"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/epistat/methdiff/interval"
)

func testSite(t *testing.T, chrom string, pos int, counts []SiteCounts) Site {
	iv, err := interval.New(chrom, pos, pos, interval.StrandNone)
	require.NoError(t, err)
	return Site{Interval: iv, Counts: counts}
}

// hyperSite builds a strongly differential site for the paired 3v3 layout
// (sample order n1,c1,n2,c2,n3,c3): normals near 3% methylation, cancers
// near 95%, with small per-pair jitter so the fit has nonzero residuals.
func hyperSite(t *testing.T, chrom string, pos, jitter int) Site {
	j := uint32(jitter)
	return testSite(t, chrom, pos, []SiteCounts{
		{4 + j, 200}, {190 + j, 200},
		{6 + j, 200}, {193 - j, 200},
		{5 + j, 200}, {188 + j, 200},
	})
}

// nullSite builds a site with no condition effect: both groups near 50%.
func nullSite(t *testing.T, chrom string, pos, jitter int) Site {
	j := uint32(jitter)
	return testSite(t, chrom, pos, []SiteCounts{
		{99 + j, 200}, {103 - j, 200},
		{97 - j, 200}, {101 + j, 200},
		{104 + j, 200}, {96 + j, 200},
	})
}

func pairedSetup(t *testing.T, sites []Site) (*Dataset, *Design) {
	pheno := pairedPheno()
	samples := make([]string, len(pheno))
	for i, ph := range pheno {
		samples[i] = ph.Sample
	}
	ds, err := NewDataset(sites, samples, pheno)
	require.NoError(t, err)
	design, err := DesignFromPhenotypes(pheno, "normal")
	require.NoError(t, err)
	return ds, design
}

func testOpts() Opts {
	opts := DefaultOpts
	opts.Coefficient = "Typecancer"
	return opts
}

func TestFitSiteDirection(t *testing.T) {
	_, design := pairedSetup(t, nil)
	coef, err := design.Coefficient("Typecancer")
	require.NoError(t, err)

	st := fitSite(hyperSite(t, "chr1", 100, 1), design, coef)
	require.True(t, st.ok)
	assert.Greater(t, st.stat, 0.0)
	assert.Less(t, st.p, 0.05)
	assert.InDelta(t, 0.93, st.diff, 0.05)

	st = fitSite(nullSite(t, "chr1", 100, 1), design, coef)
	require.True(t, st.ok)
	assert.InDelta(t, 0.0, st.diff, 0.1)
	assert.Greater(t, st.p, 0.05)
}

func TestFitSiteUndefinedExcluded(t *testing.T) {
	_, design := pairedSetup(t, nil)
	coef, _ := design.Coefficient("Typecancer")

	// Only three covered samples for a four-term design: no residual
	// degree of freedom, so the statistic is undefined.
	st := fitSite(testSite(t, "chr1", 100, []SiteCounts{
		{5, 10}, {9, 10}, {0, 0}, {0, 0}, {0, 0}, {5, 10},
	}), design, coef)
	assert.False(t, st.ok)
}

func TestCallRegionsEndToEnd(t *testing.T) {
	// Paired 3v3 cancer/normal, coefficient Typecancer, C=2, minCpGs=5,
	// pcutoff=0.05.  One strongly differential 6-site cluster, one null
	// cluster whose site count qualifies but whose significance does not.
	var sites []Site
	for i := 0; i < 6; i++ {
		sites = append(sites, hyperSite(t, "chr1", 10000+i*100, i%3))
	}
	for i := 0; i < 6; i++ {
		sites = append(sites, nullSite(t, "chr1", 50000+i*100, i%3))
	}
	ds, design := pairedSetup(t, sites)

	opts := testOpts()
	opts.BandwidthKb = 2
	opts.MinCpGs = 5
	opts.PCutoff = 0.05

	regions, stats, err := CallRegions(ds, design, opts)
	require.NoError(t, err)
	require.Len(t, regions, 1)

	r := regions[0]
	expect.EQ(t, r.Chrom, "chr1")
	expect.EQ(t, r.Start, 10000)
	expect.EQ(t, r.End, 10500)
	expect.EQ(t, r.NumCpGs, 6)
	assert.Greater(t, r.MeanDiff, 0.8)
	assert.LessOrEqual(t, r.MinFDR, 0.05)

	expect.EQ(t, stats.SitesTotal, 12)
	expect.EQ(t, stats.SitesTested, 12)
	expect.EQ(t, stats.Candidates, 2)
	expect.EQ(t, stats.RegionsNotSignificant, 1)
	expect.EQ(t, stats.RegionsCalled, 1)
}

func TestCallRegionsMinCpGsBoundary(t *testing.T) {
	build := func(n int) ([]Region, Stats) {
		var sites []Site
		for i := 0; i < n; i++ {
			sites = append(sites, hyperSite(t, "chr1", 10000+i*100, i%3))
		}
		ds, design := pairedSetup(t, sites)
		opts := testOpts()
		regions, stats, err := CallRegions(ds, design, opts)
		require.NoError(t, err)
		return regions, stats
	}

	// Exactly minCpGs sites is a valid region.
	regions, stats := build(5)
	require.Len(t, regions, 1)
	expect.EQ(t, regions[0].NumCpGs, 5)
	expect.EQ(t, stats.CandidatesTooSmall, 0)

	// One fewer is discarded outright, not reported as non-significant.
	regions, stats = build(4)
	require.Len(t, regions, 0)
	expect.EQ(t, stats.CandidatesTooSmall, 1)
	expect.EQ(t, stats.RegionsNotSignificant, 0)
}

func TestCallRegionsBandwidthSplitsCandidates(t *testing.T) {
	// Two 5-site clusters 10kb apart: one candidate with a wide bandwidth,
	// two with a narrow one.
	var sites []Site
	for i := 0; i < 5; i++ {
		sites = append(sites, hyperSite(t, "chr1", 10000+i*100, i%3))
	}
	for i := 0; i < 5; i++ {
		sites = append(sites, hyperSite(t, "chr1", 20000+i*100, i%3))
	}
	ds, design := pairedSetup(t, sites)

	opts := testOpts()
	opts.BandwidthKb = 2
	_, stats, err := CallRegions(ds, design, opts)
	require.NoError(t, err)
	expect.EQ(t, stats.Candidates, 2)

	opts.BandwidthKb = 15
	_, stats, err = CallRegions(ds, design, opts)
	require.NoError(t, err)
	expect.EQ(t, stats.Candidates, 1)
}

func TestCallRegionsLowCoverageDropped(t *testing.T) {
	sites := []Site{hyperSite(t, "chr1", 10000, 0)}
	sites[0].Counts[3] = SiteCounts{0, 0}
	for i := 1; i < 5; i++ {
		sites = append(sites, hyperSite(t, "chr1", 10000+i*100, i%3))
	}
	ds, design := pairedSetup(t, sites)

	opts := testOpts()
	_, stats, err := CallRegions(ds, design, opts)
	require.NoError(t, err)
	expect.EQ(t, stats.SitesLowCoverage, 1)
	expect.EQ(t, stats.SitesTested, 4)

	// Without the all-covered requirement the site is fitted on the
	// covered subset instead.
	opts.AllCovered = false
	_, stats, err = CallRegions(ds, design, opts)
	require.NoError(t, err)
	expect.EQ(t, stats.SitesLowCoverage, 0)
	expect.EQ(t, stats.SitesTested, 5)
}

func TestCallRegionsUnknownCoefficient(t *testing.T) {
	ds, design := pairedSetup(t, []Site{hyperSite(t, "chr1", 100, 0)})
	opts := testOpts()
	opts.Coefficient = "Typeplasma"
	_, _, err := CallRegions(ds, design, opts)
	require.Error(t, err)
	assert.True(t, errors.Is(errors.NotExist, err))
	assert.Contains(t, err.Error(), "Typeplasma")
}

func TestRanking(t *testing.T) {
	regions := []Region{
		{MeanDiff: 0.2, MinFDR: 0.01},
		{MeanDiff: -0.9, MinFDR: 0.04},
		{MeanDiff: 0.5, MinFDR: 0.002},
	}
	RankByEffect(regions)
	expect.EQ(t, regions[0].MeanDiff, -0.9)
	expect.EQ(t, regions[1].MeanDiff, 0.5)
	expect.EQ(t, regions[2].MeanDiff, 0.2)
	for i := 1; i < len(regions); i++ {
		assert.GreaterOrEqual(t,
			math.Abs(regions[i-1].MeanDiff), math.Abs(regions[i].MeanDiff))
	}

	RankByFDR(regions)
	expect.EQ(t, regions[0].MinFDR, 0.002)
	expect.EQ(t, regions[2].MinFDR, 0.04)
}

func TestStatsMerge(t *testing.T) {
	a := Stats{SitesTotal: 10, SitesLowCoverage: 1, SitesTested: 9, Candidates: 2, RegionsCalled: 1}
	b := Stats{SitesTotal: 4, SitesUnstableFit: 1, SitesTested: 3, Candidates: 1, RegionsNotSignificant: 1}
	got := a.Merge(b)
	expect.EQ(t, got, Stats{
		SitesTotal:            14,
		SitesLowCoverage:      1,
		SitesUnstableFit:      1,
		SitesTested:           12,
		Candidates:            3,
		RegionsNotSignificant: 1,
		RegionsCalled:         1,
	})
	// Merge is value based: the inputs are unchanged.
	expect.EQ(t, a.SitesTotal, 10)
}

func TestAdjustFDR(t *testing.T) {
	got := adjustFDR([]float64{0.01, 0.04, 0.03, 0.9})
	// rank(0.01)=1, rank(0.03)=2, rank(0.04)=3, rank(0.9)=4, n=4.
	expect.EQ(t, got[0], 0.04)
	assert.InDelta(t, 4*0.04/3, got[1], 1e-12)
	assert.InDelta(t, 4*0.03/2, got[2], 1e-12)
	expect.EQ(t, got[3], 0.9)

	expect.EQ(t, len(adjustFDR(nil)), 0)
}

func TestReadSitesTSV(t *testing.T) {
	in := strings.Join([]string{
		"chrom\tpos\tn1.meth\tn1.cov\tc1.meth\tc1.cov",
		"chr1\t100\t5\t20\t18\t20",
		"chr1\t250\t2\t15\t15\t15",
	}, "\n")
	sites, samples, err := ReadSitesTSV(strings.NewReader(in))
	require.NoError(t, err)
	expect.EQ(t, samples, []string{"n1", "c1"})
	require.Len(t, sites, 2)
	expect.EQ(t, sites[0].Chrom, "chr1")
	expect.EQ(t, sites[0].Start, 100)
	expect.EQ(t, sites[0].Counts[1], SiteCounts{Meth: 18, Cov: 20})
	expect.EQ(t, sites[1].Counts[0], SiteCounts{Meth: 2, Cov: 15})

	_, _, err = ReadSitesTSV(strings.NewReader("chrom\tpos\tn1.meth\n"))
	require.Error(t, err)
}

func TestReadPhenotypesTSV(t *testing.T) {
	in := "sample\tcondition\tpair\nn1\tnormal\t1\nc1\tcancer\t1\n"
	pheno, err := ReadPhenotypesTSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, pheno, 2)
	expect.EQ(t, pheno[0], Phenotype{Sample: "n1", Condition: "normal", Pair: "1"})
	expect.EQ(t, pheno[1].Condition, "cancer")

	_, err = ReadPhenotypesTSV(strings.NewReader("nope\n"))
	require.Error(t, err)
}
