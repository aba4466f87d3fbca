package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

var nan = math.NaN()

// estimate holds the numbers of a fitted model before they are exposed as attributes.
type estimate struct {
	params  []float64
	bse     []float64
	tvalues []float64
	pvalues []float64
	// "t" for least squares, "z" for maximum likelihood
	statName string
	dist     interface{ Quantile(float64) float64 }

	rsquared    float64
	rsquaredAdj float64
	fvalue      float64
	fPValue     float64
	llf         float64
	prsquared   float64

	dfResid float64
	dfModel float64
	nobs    float64

	fitted []float64
	resid  []float64

	regularized bool
}

func design(x [][]float64) *mat.Dense {
	n, k := len(x), len(x[0])
	data := make([]float64, 0, n*k)
	for _, row := range x {
		data = append(data, row...)
	}
	return mat.NewDense(n, k, data)
}

func invert(a mat.Matrix) (*mat.Dense, error) {
	var inv mat.Dense
	if err := inv.Inverse(a); err != nil {
		var cond mat.Condition
		if !errors.As(err, &cond) || math.IsInf(float64(cond), 1) {
			return nil, fmt.Errorf("singular matrix: %w", err)
		}
	}
	return &inv, nil
}

func hasConstant(x [][]float64) bool {
	if len(x) == 0 {
		return false
	}
	for j := range x[0] {
		constant := x[0][j] != 0
		for i := 1; constant && i < len(x); i++ {
			constant = x[i][j] == x[0][j]
		}
		if constant {
			return true
		}
	}
	return false
}

func checkShape(y []float64, x [][]float64) error {
	if len(y) == 0 || len(x) == 0 || len(x[0]) == 0 {
		return fmt.Errorf("empty design")
	}
	if len(y) < len(x[0]) {
		return fmt.Errorf("%d observations for %d parameters", len(y), len(x[0]))
	}
	return nil
}

func olsEstimate(y []float64, x [][]float64) (*estimate, error) {
	if err := checkShape(y, x); err != nil {
		return nil, err
	}
	n, k := len(y), len(x[0])
	X := design(x)
	Y := mat.NewVecDense(n, append([]float64(nil), y...))

	var xtx mat.Dense
	xtx.Mul(X.T(), X)
	inv, err := invert(&xtx)
	if err != nil {
		return nil, err
	}
	var xty, beta, fitted mat.VecDense
	xty.MulVec(X.T(), Y)
	beta.MulVec(inv, &xty)
	fitted.MulVec(X, &beta)

	e := &estimate{
		statName: "t",
		nobs:     float64(n),
		dfResid:  float64(n - k),
		params:   make([]float64, k),
		fitted:   make([]float64, n),
		resid:    make([]float64, n),
	}
	var ssr float64
	for i := range n {
		e.fitted[i] = fitted.AtVec(i)
		e.resid[i] = y[i] - e.fitted[i]
		ssr += e.resid[i] * e.resid[i]
	}
	for j := range k {
		e.params[j] = beta.AtVec(j)
	}

	sigma2 := ssr / e.dfResid
	tdist := distuv.StudentsT{Mu: 0, Sigma: 1, Nu: e.dfResid}
	e.dist = tdist
	for j := range k {
		se := math.Sqrt(sigma2 * inv.At(j, j))
		t := e.params[j] / se
		e.bse = append(e.bse, se)
		e.tvalues = append(e.tvalues, t)
		e.pvalues = append(e.pvalues, 2*tdist.Survival(math.Abs(t)))
	}

	constant := hasConstant(x)
	var tss float64
	if constant {
		mean := stat.Mean(y, nil)
		for _, v := range y {
			tss += (v - mean) * (v - mean)
		}
		e.dfModel = float64(k - 1)
	} else {
		tss = floats.Dot(y, y)
		e.dfModel = float64(k)
	}
	e.rsquared = 1 - ssr/tss
	kConst := 0.0
	if constant {
		kConst = 1
	}
	e.rsquaredAdj = 1 - (e.nobs-kConst)/e.dfResid*(1-e.rsquared)
	e.fvalue = nan
	e.fPValue = nan
	if e.dfModel > 0 && e.dfResid > 0 {
		e.fvalue = ((tss - ssr) / e.dfModel) / (ssr / e.dfResid)
		e.fPValue = distuv.F{D1: e.dfModel, D2: e.dfResid}.Survival(e.fvalue)
	}
	e.llf = -e.nobs / 2 * (math.Log(2*math.Pi) + math.Log(ssr/e.nobs) + 1)
	return e, nil
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func logitEstimate(y []float64, x [][]float64) (*estimate, bool, error) {
	if err := checkShape(y, x); err != nil {
		return nil, false, err
	}
	for _, v := range y {
		if v != 0 && v != 1 {
			return nil, false, fmt.Errorf("endog must be in the interval [0, 1], got %v", v)
		}
	}
	n, k := len(y), len(x[0])
	beta := make([]float64, k)
	var cov *mat.Dense

	const maxIter = 100
	converged := false
	for range maxIter {
		grad := make([]float64, k)
		hessian := mat.NewDense(k, k, nil)
		for i, row := range x {
			p := sigmoid(floats.Dot(row, beta))
			w := p * (1 - p)
			for a := range k {
				grad[a] += row[a] * (y[i] - p)
				for b := range k {
					hessian.Set(a, b, hessian.At(a, b)+w*row[a]*row[b])
				}
			}
		}
		inv, err := invert(hessian)
		if err != nil {
			return nil, false, fmt.Errorf("perfect separation or singular design: %w", err)
		}
		cov = inv
		var maxStep float64
		for a := range k {
			var step float64
			for b := range k {
				step += inv.At(a, b) * grad[b]
			}
			beta[a] += step
			maxStep = max(maxStep, math.Abs(step))
		}
		if maxStep < 1e-8 {
			converged = true
			break
		}
	}

	e := &estimate{
		statName: "z",
		dist:     distuv.UnitNormal,
		params:   beta,
		nobs:     float64(n),
		dfResid:  float64(n - k),
		dfModel:  float64(k - 1),
		fitted:   make([]float64, n),
		resid:    make([]float64, n),
		fvalue:   nan,
		fPValue:  nan,
	}
	for j := range k {
		se := math.Sqrt(cov.At(j, j))
		z := beta[j] / se
		e.bse = append(e.bse, se)
		e.tvalues = append(e.tvalues, z)
		e.pvalues = append(e.pvalues, 2*distuv.UnitNormal.Survival(math.Abs(z)))
	}
	mean := stat.Mean(y, nil)
	var llnull float64
	for i, row := range x {
		p := sigmoid(floats.Dot(row, beta))
		e.fitted[i] = p
		e.resid[i] = y[i] - p
		e.llf += y[i]*math.Log(p) + (1-y[i])*math.Log(1-p)
		llnull += y[i]*math.Log(mean) + (1-y[i])*math.Log(1-mean)
	}
	e.prsquared = 1 - e.llf/llnull
	e.rsquared = nan
	e.rsquaredAdj = nan
	return e, converged, nil
}

func softThreshold(v, gamma float64) float64 {
	switch {
	case v > gamma:
		return v - gamma
	case v < -gamma:
		return v + gamma
	}
	return 0
}

// elasticNetEstimate minimizes RSS/(2n) + alpha*((1-l1)*|b|^2/2 + l1*|b|_1) by coordinate descent.
func elasticNetEstimate(y []float64, x [][]float64, alpha, l1 float64) (*estimate, error) {
	if err := checkShape(y, x); err != nil {
		return nil, err
	}
	if alpha < 0 || l1 < 0 || l1 > 1 {
		return nil, fmt.Errorf("alpha must be >= 0 and L1_wt in [0, 1]")
	}
	if alpha == 0 {
		e, err := olsEstimate(y, x)
		if err != nil {
			return nil, err
		}
		return &estimate{
			params:      e.params,
			fitted:      e.fitted,
			resid:       e.resid,
			nobs:        e.nobs,
			dfResid:     e.dfResid,
			dfModel:     e.dfModel,
			regularized: true,
		}, nil
	}

	n, k := len(y), len(x[0])
	fn := float64(n)
	beta := make([]float64, k)
	resid := append([]float64(nil), y...)
	norms := make([]float64, k)
	for j := range k {
		for _, row := range x {
			norms[j] += row[j] * row[j]
		}
		norms[j] /= fn
	}
	const maxIter = 10000
	for range maxIter {
		var maxDelta float64
		for j := range k {
			if norms[j] == 0 {
				continue
			}
			var rho float64
			for i, row := range x {
				rho += row[j] * (resid[i] + row[j]*beta[j])
			}
			rho /= fn
			next := softThreshold(rho, alpha*l1) / (norms[j] + alpha*(1-l1))
			if delta := next - beta[j]; delta != 0 {
				for i, row := range x {
					resid[i] -= row[j] * delta
				}
				maxDelta = max(maxDelta, math.Abs(delta))
				beta[j] = next
			}
		}
		if maxDelta < 1e-10 {
			break
		}
	}

	e := &estimate{
		params:      beta,
		nobs:        fn,
		dfResid:     float64(n - k),
		dfModel:     float64(k),
		resid:       resid,
		fitted:      make([]float64, n),
		regularized: true,
	}
	for i := range y {
		e.fitted[i] = y[i] - resid[i]
	}
	return e, nil
}
