package dmr

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// siteStat is the per-site output of the annotate step.
type siteStat struct {
	site Site
	// diff is the raw mean methylation-proportion difference between the
	// samples selected by the coefficient of interest and the rest.
	diff float64
	stat float64
	p    float64
	fdr  float64
	ok   bool
}

// logit returns the empirical log-odds of methylation with the usual +0.5
// continuity correction, so fully methylated and unmethylated sites stay
// finite.
func logit(meth, cov uint32) float64 {
	return math.Log((float64(meth) + 0.5) / (float64(cov-meth) + 0.5))
}

// fitSite fits a weighted least-squares regression of the empirical logit
// on the design, weighting samples by coverage, and extracts the requested
// coefficient with its t statistic and two-sided p-value.  Samples with
// zero coverage carry no information and are excluded from the fit.  The
// returned stat is marked not-ok when too few covered samples remain for a
// residual degree of freedom or the fit is numerically degenerate; such
// sites are excluded from their region's aggregation, not treated as zero.
func fitSite(site Site, d *Design, coef int) siteStat {
	out := siteStat{site: site}
	p := d.NumTerms()
	var rows []int
	for i, c := range site.Counts {
		if c.Cov > 0 {
			rows = append(rows, i)
		}
	}
	n := len(rows)
	if n-p < 1 {
		return out
	}

	// Weighted design and response: scale each retained row by sqrt(cov).
	xw := mat.NewDense(n, p, nil)
	yw := mat.NewVecDense(n, nil)
	for r, i := range rows {
		c := site.Counts[i]
		w := math.Sqrt(float64(c.Cov))
		for j := 0; j < p; j++ {
			xw.Set(r, j, w*d.x.At(i, j))
		}
		yw.SetVec(r, w*logit(c.Meth, c.Cov))
	}

	var qr mat.QR
	qr.Factorize(xw)
	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, yw); err != nil {
		return out
	}

	// Residual variance and the coefficient's standard error from
	// (Xw'Xw)^-1.
	var fitted mat.VecDense
	fitted.MulVec(xw, &beta)
	rss := 0.0
	for r := 0; r < n; r++ {
		e := yw.AtVec(r) - fitted.AtVec(r)
		rss += e * e
	}
	df := float64(n - p)
	s2 := rss / df

	var xtx, inv mat.Dense
	xtx.Mul(xw.T(), xw)
	if err := inv.Inverse(&xtx); err != nil {
		return out
	}
	se := math.Sqrt(s2 * inv.At(coef, coef))
	if se == 0 || math.IsNaN(se) || math.IsInf(se, 0) {
		return out
	}

	out.stat = beta.AtVec(coef) / se
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}
	out.p = 2 * tdist.CDF(-math.Abs(out.stat))
	out.diff = conditionDiff(site, d, coef, rows)
	out.ok = true
	return out
}

// conditionDiff computes the difference in mean methylation proportion
// between the sample group the coefficient's indicator selects and the
// remaining samples, over covered samples only.
func conditionDiff(site Site, d *Design, coef int, rows []int) float64 {
	var sum1, sum0 float64
	var n1, n0 int
	for _, i := range rows {
		c := site.Counts[i]
		prop := float64(c.Meth) / float64(c.Cov)
		if d.x.At(i, coef) != 0 {
			sum1 += prop
			n1++
		} else {
			sum0 += prop
			n0++
		}
	}
	if n1 == 0 || n0 == 0 {
		return math.NaN()
	}
	return sum1/float64(n1) - sum0/float64(n0)
}
