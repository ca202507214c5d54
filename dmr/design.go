package dmr

import (
	"fmt"
	"sort"

	"github.com/grailbio/base/errors"
	"gonum.org/v1/gonum/mat"
)

// Design is a linear-model design matrix with named columns.  Rows follow
// the sample order of the associated Dataset; full column rank is verified
// at construction so per-site fits are always well defined.
type Design struct {
	x     *mat.Dense
	names []string
}

// NewDesign wraps a sample-by-term matrix.  It fails with an errors.Invalid
// error when dimensions are inconsistent or the matrix is column-rank
// deficient.
func NewDesign(names []string, x *mat.Dense) (*Design, error) {
	r, c := x.Dims()
	if len(names) != c {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("dmr: %d column names for %d design columns", len(names), c))
	}
	if r < c {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("dmr: design has more terms (%d) than samples (%d)", c, r))
	}
	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			return nil, errors.E(errors.Invalid,
				fmt.Sprintf("dmr: duplicate design column %q", name))
		}
		seen[name] = true
	}
	if rank := matrixRank(x); rank < c {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("dmr: design matrix is rank deficient (rank %d, %d columns)", rank, c))
	}
	return &Design{x: x, names: names}, nil
}

func matrixRank(x mat.Matrix) int {
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDNone) {
		return 0
	}
	values := svd.Values(nil)
	if len(values) == 0 {
		return 0
	}
	tol := float64(max(dims(x))) * values[0] * 1e-12
	rank := 0
	for _, v := range values {
		if v > tol {
			rank++
		}
	}
	return rank
}

func dims(x mat.Matrix) (int, int) { return x.Dims() }

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// DesignFromPhenotypes builds the standard paired two-condition design:
// an intercept, one indicator column per non-reference condition level
// (named "Type"+level), and one indicator per non-reference pair (named
// "Pair"+pair) when the table carries pairing information.  With samples
// {normal,cancer} x pairs {1,2,3} and refCondition "normal" the columns are
// {intercept, Typecancer, Pair2, Pair3}.
func DesignFromPhenotypes(pheno []Phenotype, refCondition string) (*Design, error) {
	if len(pheno) == 0 {
		return nil, errors.E(errors.Invalid, "dmr: empty phenotype table")
	}
	condSet := make(map[string]bool)
	pairSet := make(map[string]bool)
	paired := false
	for _, ph := range pheno {
		condSet[ph.Condition] = true
		if ph.Pair != "" {
			paired = true
			pairSet[ph.Pair] = true
		}
	}
	if !condSet[refCondition] {
		return nil, errors.E(errors.Invalid,
			fmt.Sprintf("dmr: reference condition %q not present in phenotype table", refCondition))
	}
	var condLevels []string
	for c := range condSet {
		if c != refCondition {
			condLevels = append(condLevels, c)
		}
	}
	sort.Strings(condLevels)
	var pairLevels []string
	if paired {
		for p := range pairSet {
			pairLevels = append(pairLevels, p)
		}
		sort.Strings(pairLevels)
		pairLevels = pairLevels[1:] // first pair is the reference
	}

	names := []string{"intercept"}
	for _, c := range condLevels {
		names = append(names, "Type"+c)
	}
	for _, p := range pairLevels {
		names = append(names, "Pair"+p)
	}
	x := mat.NewDense(len(pheno), len(names), nil)
	for i, ph := range pheno {
		x.Set(i, 0, 1)
		col := 1
		for _, c := range condLevels {
			if ph.Condition == c {
				x.Set(i, col, 1)
			}
			col++
		}
		for _, p := range pairLevels {
			if ph.Pair == p {
				x.Set(i, col, 1)
			}
			col++
		}
	}
	return NewDesign(names, x)
}

func errDesignShape(designRows, samples int) error {
	return errors.E(errors.Invalid,
		fmt.Sprintf("dmr: design has %d rows for %d samples", designRows, samples))
}

// Names returns the design's column names in order.
func (d *Design) Names() []string { return d.names }

// NumSamples returns the design's row count.
func (d *Design) NumSamples() int {
	r, _ := d.x.Dims()
	return r
}

// NumTerms returns the design's column count.
func (d *Design) NumTerms() int {
	_, c := d.x.Dims()
	return c
}

// Coefficient returns the column index of the named model term.  It fails
// with an errors.NotExist error naming the coefficient and the available
// columns when the term is absent; callers must treat that as fatal rather
// than let an unknown name silently select nothing.
func (d *Design) Coefficient(name string) (int, error) {
	for i, n := range d.names {
		if n == name {
			return i, nil
		}
	}
	return 0, errors.E(errors.NotExist,
		fmt.Sprintf("dmr: unknown coefficient %q (design columns: %v)", name, d.names))
}
