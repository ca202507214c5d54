package interval

import (
	"fmt"

	"github.com/biogo/hts/sam"
	"github.com/grailbio/base/errors"
)

// Genome is a chromosome name/length table, used to validate chromosome
// references and clamp windows that extend past a contig end.
type Genome struct {
	names   []string
	lengths map[string]int
}

// NewGenome builds a Genome from parallel name/length slices.
func NewGenome(names []string, lengths []int) (*Genome, error) {
	if len(names) != len(lengths) {
		return nil, errors.E(errors.Invalid, "interval: genome name/length count mismatch")
	}
	g := &Genome{lengths: make(map[string]int, len(names))}
	for i, name := range names {
		if name == "" || lengths[i] <= 0 {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("interval: bad genome entry %q:%d", name, lengths[i]))
		}
		g.names = append(g.names, name)
		g.lengths[name] = lengths[i]
	}
	return g, nil
}

// GenomeFromSAMHeader builds a Genome from the reference dictionary of a
// SAM/BAM header.
func GenomeFromSAMHeader(header *sam.Header) (*Genome, error) {
	refs := header.Refs()
	names := make([]string, len(refs))
	lengths := make([]int, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name()
		lengths[i] = ref.Len()
	}
	return NewGenome(names, lengths)
}

// Chroms returns chromosome names in reference order.
func (g *Genome) Chroms() []string { return g.names }

// Len returns the length of the named chromosome, with ok=false when the
// genome does not mention it.
func (g *Genome) Len(chrom string) (int, bool) {
	n, ok := g.lengths[chrom]
	return n, ok
}

// Check returns an errors.NotExist error naming chrom when it is absent from
// the genome.
func (g *Genome) Check(chrom string) error {
	if _, ok := g.lengths[chrom]; !ok {
		return errors.E(errors.NotExist,
			fmt.Sprintf("interval: chromosome %q not in genome", chrom))
	}
	return nil
}
