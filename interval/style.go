package interval

import (
	"fmt"
	"strings"

	"github.com/grailbio/base/errors"
)

// Style identifies a chromosome naming convention.
type Style int

// The two conventions in common use.  Ensembl names primary contigs "1".."22",
// "X", "Y", "MT"; UCSC prefixes "chr" and calls the mitochondrion "chrM".
const (
	StyleEnsembl Style = iota
	StyleUCSC
)

func (s Style) String() string {
	if s == StyleUCSC {
		return "UCSC"
	}
	return "Ensembl"
}

func isPrimaryContig(name string) bool {
	switch name {
	case "X", "Y":
		return true
	}
	for _, c := range name {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(name) > 0
}

// relabelChrom maps a single chromosome name into the target style.  Names
// already in the target style pass through unchanged.
func relabelChrom(name string, target Style) (string, error) {
	switch target {
	case StyleUCSC:
		if strings.HasPrefix(name, "chr") {
			return name, nil
		}
		if name == "MT" {
			return "chrM", nil
		}
		if isPrimaryContig(name) {
			return "chr" + name, nil
		}
	case StyleEnsembl:
		if name == "chrM" {
			return "MT", nil
		}
		if trimmed := strings.TrimPrefix(name, "chr"); trimmed != name {
			if isPrimaryContig(trimmed) {
				return trimmed, nil
			}
		} else if isPrimaryContig(name) || name == "MT" {
			return name, nil
		}
	}
	return "", errors.E(errors.NotExist,
		fmt.Sprintf("interval: chromosome %q has no %s mapping", name, target))
}

// RelabelStyle returns a copy of s with chromosome names converted to the
// target style.  Coordinates and strands are never altered.  It fails with
// an errors.NotExist error naming the first chromosome that has no mapping
// in the target convention (e.g. unplaced scaffolds).
func RelabelStyle(s Set, target Style) (Set, error) {
	out := make(Set, len(s))
	for i, iv := range s {
		name, err := relabelChrom(iv.Chrom, target)
		if err != nil {
			return nil, err
		}
		iv.Chrom = name
		out[i] = iv
	}
	return out, nil
}
