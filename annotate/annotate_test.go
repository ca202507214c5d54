package annotate

import (
	"testing"

	"github.com/grailbio/testutil/expect"
	"github.com/stretchr/testify/require"

	"github.com/epistat/methdiff/dmr"
	"github.com/epistat/methdiff/interval"
)

func gene(t *testing.T, chrom string, start, end int, name string) interval.Interval {
	iv, err := interval.New(chrom, start, end, interval.StrandPlus)
	require.NoError(t, err)
	if name != "" {
		iv.Meta = map[string]string{"gene_name": name}
	}
	return iv
}

func region(chrom string, start, end int, minFDR float64) dmr.Region {
	return dmr.Region{
		Interval: interval.Interval{Chrom: chrom, Start: start, End: end},
		MinFDR:   minFDR,
	}
}

func TestAnnotate(t *testing.T) {
	genes := interval.Set{
		gene(t, "chr1", 100, 500, "TP53"),
		gene(t, "chr1", 400, 900, "BRCA1"),
		gene(t, "chr1", 2000, 3000, "MYC"),
		gene(t, "chr1", 450, 460, ""), // unnamed, never reported
	}
	regions := []dmr.Region{
		region("chr1", 450, 600, 0.01),  // hits TP53 and BRCA1
		region("chr1", 1000, 1500, 0.02), // hits nothing
		region("chr2", 100, 500, 0.03),   // other chromosome
	}
	got := Annotate(regions, genes)
	require.Len(t, got, 3)
	expect.EQ(t, got[0].Genes, []string{"TP53", "BRCA1"})
	expect.EQ(t, len(got[1].Genes), 0)
	expect.EQ(t, len(got[2].Genes), 0)
}

func TestTopGenes(t *testing.T) {
	genes := interval.Set{
		gene(t, "chr1", 100, 500, "TP53"),
		gene(t, "chr1", 400, 900, "BRCA1"),
		gene(t, "chr1", 2000, 3000, "MYC"),
	}
	regions := Annotate([]dmr.Region{
		region("chr1", 2100, 2200, 0.04), // MYC, least significant
		region("chr1", 450, 600, 0.001),  // TP53+BRCA1, most significant
		region("chr1", 1000, 1500, 0.01), // no genes
	}, genes)

	top := TopGenes(regions, genes, 2)
	require.Len(t, top, 2)
	expect.EQ(t, top[0].Name(), "TP53")
	expect.EQ(t, top[1].Name(), "BRCA1")

	// All regions: MYC joins, gene-set order kept, duplicates collapsed.
	top = TopGenes(regions, genes, 10)
	require.Len(t, top, 3)
	expect.EQ(t, top[2].Name(), "MYC")

	// A gene overlapped by two top regions appears once.
	dup := Annotate([]dmr.Region{
		region("chr1", 120, 130, 0.001),
		region("chr1", 200, 210, 0.002),
	}, genes)
	top = TopGenes(dup, genes, 2)
	require.Len(t, top, 1)
	expect.EQ(t, top[0].Name(), "TP53")

	// No-gene regions are skipped without error.
	none := Annotate([]dmr.Region{region("chr1", 1000, 1500, 0.01)}, genes)
	expect.EQ(t, len(TopGenes(none, genes, 5)), 0)
}
