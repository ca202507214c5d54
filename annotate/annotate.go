// Package annotate intersects called differential-methylation regions with
// gene intervals, reporting overlapping gene names per region and selecting
// the genes behind the most significant regions.
package annotate

import (
	"github.com/epistat/methdiff/dmr"
	"github.com/epistat/methdiff/interval"
)

// Annotate fills each region's Genes list with the names of genes whose
// interval overlaps the region, in gene-set order.  Genes without a
// "gene_name" annotation are skipped; a region overlapping nothing keeps an
// empty list, which is not an error.  The input slice is returned with its
// order unchanged.
func Annotate(regions []dmr.Region, genes interval.Set) []dmr.Region {
	idx := interval.NewIndex(genes)
	for i := range regions {
		regions[i].Genes = nil
		for _, g := range idx.Overlapping(regions[i].Interval) {
			if name := g.Name(); name != "" {
				regions[i].Genes = append(regions[i].Genes, name)
			}
		}
	}
	return regions
}

// TopGenes selects the n regions with the smallest combined FDR, splits
// their overlapping-gene lists into individual names, and returns the
// matching gene intervals from the reference set, deduplicated by name and
// in gene-set order.  Regions without genes contribute nothing; they never
// cause an error.
func TopGenes(regions []dmr.Region, genes interval.Set, n int) interval.Set {
	ranked := make([]dmr.Region, len(regions))
	copy(ranked, regions)
	dmr.RankByFDR(ranked)
	if n < len(ranked) {
		ranked = ranked[:n]
	}
	wanted := make(map[string]bool)
	for _, r := range ranked {
		for _, name := range r.Genes {
			if name != "" {
				wanted[name] = true
			}
		}
	}
	var out interval.Set
	seen := make(map[string]bool)
	for _, g := range genes {
		name := g.Name()
		if name == "" || !wanted[name] || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, g)
	}
	return out
}
