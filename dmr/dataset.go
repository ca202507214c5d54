// Package dmr implements the differential-methylation testing pipeline:
// per-site linear-model statistics against a design matrix, smoothing and
// grouping of sites into candidate regions, significance thresholding, and
// region ranking.  The pipeline is a single batch pass per invocation; the
// only cross-site barrier is the coordinate sort before region grouping.
package dmr

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"

	"github.com/epistat/methdiff/interval"
)

// SiteCounts holds one sample's measurement at one site.
type SiteCounts struct {
	Meth uint32 // methylated read count
	Cov  uint32 // total coverage
}

// Site is a single measured position (typically a CpG) with per-sample
// counts.  Counts are indexed by the sample order of the owning Dataset.
type Site struct {
	interval.Interval
	Counts []SiteCounts
}

// Phenotype is one row of the per-sample phenotype table.
type Phenotype struct {
	Sample    string
	Condition string
	// Pair identifies the subject for paired designs; samples sharing a
	// Pair value came from the same subject.  Empty means unpaired.
	Pair string
}

// Dataset binds methylation sites to their sample axis and phenotype table.
// Construction validates the sample/phenotype join explicitly so that a
// misordered phenotype file fails fast instead of silently misaligning
// conditions with count columns.
type Dataset struct {
	Sites   []Site
	Samples []string
	Pheno   []Phenotype
}

// NewDataset validates shapes and the sample join.  The phenotype table must
// list exactly the dataset's samples, in the same order.
func NewDataset(sites []Site, samples []string, pheno []Phenotype) (*Dataset, error) {
	if len(samples) == 0 {
		return nil, errors.E(errors.Invalid, "dmr: no samples")
	}
	if len(pheno) != len(samples) {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("dmr: mismatched sample order: %d phenotype rows for %d samples",
				len(pheno), len(samples)))
	}
	for i, ph := range pheno {
		if ph.Sample != samples[i] {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("dmr: mismatched sample order: phenotype row %d is %q, sample column is %q",
					i, ph.Sample, samples[i]))
		}
	}
	for _, site := range sites {
		if len(site.Counts) != len(samples) {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("dmr: site %s has %d count pairs for %d samples",
					site.String(), len(site.Counts), len(samples)))
		}
		for _, c := range site.Counts {
			if c.Meth > c.Cov {
				return nil, errors.E(errors.Invalid,
					fmt.Sprintf("dmr: site %s: methylated count exceeds coverage", site.String()))
			}
		}
	}
	return &Dataset{Sites: sites, Samples: samples, Pheno: pheno}, nil
}

// sortSites orders sites by (chromosome, position).  Region grouping
// requires this ordering; chromosomes sort lexically, which is fine since
// grouping never crosses a chromosome boundary.
func sortSites(sites []Site) {
	sort.SliceStable(sites, func(i, j int) bool {
		if sites[i].Chrom != sites[j].Chrom {
			return sites[i].Chrom < sites[j].Chrom
		}
		return sites[i].Start < sites[j].Start
	})
}
