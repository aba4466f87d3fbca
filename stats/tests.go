package stats

import (
	"fmt"
	"math"

	"github.com/reusee/scisandbox/frames"
	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/pvalues"
	"github.com/reusee/scisandbox/warnings"
	"go.starlark.net/starlark"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

func testFuncs() starlark.StringDict {
	return starlark.StringDict{
		"ttest_ind": intercept.NewFunc("ttest_ind",
			"Calculate the T-test for the means of two independent samples. Returns the statistic and the two-sided p-value.",
			ttestInd),
		"ttest_1samp": intercept.NewFunc("ttest_1samp",
			"Calculate the T-test for the mean of one group of scores. Returns the statistic and the two-sided p-value.",
			ttest1Samp),
		"ttest_rel": intercept.NewFunc("ttest_rel",
			"Calculate the t-test on two related samples. Returns the statistic and the two-sided p-value.",
			ttestRel),
		"pearsonr": intercept.NewFunc("pearsonr",
			"Pearson correlation coefficient and p-value for testing non-correlation.",
			pearsonr),
		"chi2_contingency": intercept.NewFunc("chi2_contingency",
			"Chi-square test of independence of variables in a contingency table. Returns the statistic, p-value, degrees of freedom and expected frequencies.",
			chi2Contingency),
		"f_oneway": intercept.NewFunc("f_oneway",
			"Perform one-way ANOVA. Returns the F statistic and the p-value.",
			fOneway),
		"zscore": intercept.NewFunc("zscore",
			"Compute the z score of each value in the sample, relative to the sample mean and standard deviation.",
			zscore),
	}
}

// sample reads a numeric sequence. Missing values are omitted.
func sample(name string, v starlark.Value) ([]float64, error) {
	values, ok := frames.Values(v)
	if !ok {
		return nil, fmt.Errorf("%s: got %s, want a sequence of numbers", name, v.Type())
	}
	var ret []float64
	for _, value := range values {
		if frames.IsNA(value) {
			continue
		}
		if _, ok := value.(pvalues.PValue); ok {
			return nil, fmt.Errorf("%s: p-values cannot be used as sample data", name)
		}
		f, ok := pvalues.AsFloat(value)
		if !ok {
			return nil, fmt.Errorf("%s: non-numeric value %s", name, value.Type())
		}
		ret = append(ret, f)
	}
	return ret, nil
}

func twoSidedT(t, df float64) float64 {
	if math.IsNaN(t) || df <= 0 {
		return nan
	}
	return 2 * distuv.StudentsT{Mu: 0, Sigma: 1, Nu: df}.Survival(math.Abs(t))
}

func ttestResult(name string, statistic, pvalue, df float64) *TestResult {
	return &TestResult{
		Name:   name,
		Fields: []string{"statistic", "pvalue", "df"},
		Values: []starlark.Value{
			starlark.Float(statistic),
			starlark.Float(pvalue),
			starlark.Float(df),
		},
	}
}

func ttestInd(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var av, bv starlark.Value
	equalVar := true
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"a", &av,
		"b", &bv,
		"equal_var?", &equalVar,
	); err != nil {
		return nil, err
	}
	a, err := sample("a", av)
	if err != nil {
		return nil, err
	}
	b, err := sample("b", bv)
	if err != nil {
		return nil, err
	}
	if len(a) < 2 || len(b) < 2 {
		return nil, fmt.Errorf("%s: each sample needs at least two values", fn.Name())
	}
	meanA, varA := stat.MeanVariance(a, nil)
	meanB, varB := stat.MeanVariance(b, nil)
	na, nb := float64(len(a)), float64(len(b))
	var t, df float64
	if equalVar {
		df = na + nb - 2
		pooled := ((na-1)*varA + (nb-1)*varB) / df
		t = (meanA - meanB) / math.Sqrt(pooled*(1/na+1/nb))
	} else {
		va, vb := varA/na, varB/nb
		t = (meanA - meanB) / math.Sqrt(va+vb)
		df = (va + vb) * (va + vb) / (va*va/(na-1) + vb*vb/(nb-1))
	}
	return ttestResult("TtestResult", t, twoSidedT(t, df), df), nil
}

// number converts a scalar argument; ints are as good as floats.
func number(fnName, param string, v starlark.Value, def float64) (float64, error) {
	if v == nil {
		return def, nil
	}
	f, ok := starlark.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("%s: for parameter %s: got %s, want number", fnName, param, v.Type())
	}
	return f, nil
}

func ttest1Samp(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var av, pv starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"a", &av,
		"popmean", &pv,
	); err != nil {
		return nil, err
	}
	popmean, err := number(fn.Name(), "popmean", pv, 0)
	if err != nil {
		return nil, err
	}
	a, err := sample("a", av)
	if err != nil {
		return nil, err
	}
	if len(a) < 2 {
		return nil, fmt.Errorf("%s: sample needs at least two values", fn.Name())
	}
	mean, std := stat.MeanStdDev(a, nil)
	n := float64(len(a))
	t := (mean - popmean) / (std / math.Sqrt(n))
	return ttestResult("TtestResult", t, twoSidedT(t, n-1), n-1), nil
}

func ttestRel(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var av, bv starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "a", &av, "b", &bv); err != nil {
		return nil, err
	}
	a, err := sample("a", av)
	if err != nil {
		return nil, err
	}
	b, err := sample("b", bv)
	if err != nil {
		return nil, err
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("%s: unequal length arrays", fn.Name())
	}
	if len(a) < 2 {
		return nil, fmt.Errorf("%s: samples need at least two values", fn.Name())
	}
	d := make([]float64, len(a))
	floats.SubTo(d, a, b)
	mean, std := stat.MeanStdDev(d, nil)
	n := float64(len(d))
	t := mean / (std / math.Sqrt(n))
	return ttestResult("TtestResult", t, twoSidedT(t, n-1), n-1), nil
}

func pearsonr(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var xv, yv starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "x", &xv, "y", &yv); err != nil {
		return nil, err
	}
	x, err := sample("x", xv)
	if err != nil {
		return nil, err
	}
	y, err := sample("y", yv)
	if err != nil {
		return nil, err
	}
	if len(x) != len(y) {
		return nil, fmt.Errorf("%s: x and y must have the same length", fn.Name())
	}
	if len(x) < 2 {
		return nil, fmt.Errorf("%s: x and y must have length at least 2", fn.Name())
	}
	if floats.Max(x) == floats.Min(x) || floats.Max(y) == floats.Min(y) {
		if err := warnings.Warn(thread, warnings.CategoryConstantInput,
			"An input array is constant; the correlation coefficient is not defined."); err != nil {
			return nil, err
		}
		return &TestResult{
			Name:   "PearsonRResult",
			Fields: []string{"statistic", "pvalue"},
			Values: []starlark.Value{starlark.Float(nan), starlark.Float(nan)},
		}, nil
	}
	r := stat.Correlation(x, y, nil)
	n := float64(len(x))
	var p float64
	switch {
	case n == 2:
		p = 1
	case math.Abs(r) >= 1:
		p = 0
	default:
		t := r * math.Sqrt((n-2)/(1-r*r))
		p = twoSidedT(t, n-2)
	}
	return &TestResult{
		Name:   "PearsonRResult",
		Fields: []string{"statistic", "pvalue"},
		Values: []starlark.Value{starlark.Float(r), starlark.Float(p)},
	}, nil
}

func table(v starlark.Value) ([][]float64, error) {
	if f, ok := v.(*frames.Frame); ok {
		rows := make([][]float64, f.NumRows())
		for _, c := range f.Columns() {
			column, _ := f.Column(c)
			values, err := sample(c, starlark.NewList(column))
			if err != nil {
				return nil, err
			}
			if len(values) != len(rows) {
				return nil, fmt.Errorf("column %q has missing values", c)
			}
			for i, value := range values {
				rows[i] = append(rows[i], value)
			}
		}
		return rows, nil
	}
	rowValues, ok := frames.Values(v)
	if !ok {
		return nil, fmt.Errorf("got %s, want a table", v.Type())
	}
	var rows [][]float64
	for i, row := range rowValues {
		values, err := sample(fmt.Sprintf("row %d", i), row)
		if err != nil {
			return nil, err
		}
		if i > 0 && len(values) != len(rows[0]) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(values), len(rows[0]))
		}
		rows = append(rows, values)
	}
	return rows, nil
}

func chi2Contingency(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var observed starlark.Value
	correction := true
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"observed", &observed,
		"correction?", &correction,
	); err != nil {
		return nil, err
	}
	rows, err := table(observed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fn.Name(), err)
	}
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%s: empty table", fn.Name())
	}
	r, c := len(rows), len(rows[0])
	rowSums := make([]float64, r)
	colSums := make([]float64, c)
	var total float64
	for i, row := range rows {
		for j, v := range row {
			if v < 0 {
				return nil, fmt.Errorf("%s: all values in observed must be non-negative", fn.Name())
			}
			rowSums[i] += v
			colSums[j] += v
			total += v
		}
	}
	dof := float64((r - 1) * (c - 1))
	expected := make([]starlark.Value, 0, r)
	var chi2 float64
	for i, row := range rows {
		cells := make([]starlark.Value, 0, c)
		for j, o := range row {
			e := rowSums[i] * colSums[j] / total
			if e == 0 {
				return nil, fmt.Errorf("%s: the internally computed table of expected frequencies has a zero element", fn.Name())
			}
			cells = append(cells, starlark.Float(e))
			diff := o - e
			if correction && dof == 1 {
				// Yates
				diff = math.Max(0, math.Abs(diff)-0.5)
			}
			chi2 += diff * diff / e
		}
		expected = append(expected, starlark.NewList(cells))
	}
	p := 1.0
	if dof > 0 {
		p = distuv.ChiSquared{K: dof}.Survival(chi2)
	}
	return &TestResult{
		Name:   "Chi2ContingencyResult",
		Fields: []string{"statistic", "pvalue", "dof", "expected_freq"},
		Values: []starlark.Value{
			starlark.Float(chi2),
			starlark.Float(p),
			starlark.MakeInt(int(dof)),
			starlark.NewList(expected),
		},
	}, nil
}

func fOneway(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", fn.Name())
	}
	if len(args) < 2 {
		return nil, fmt.Errorf("%s: at least two groups are required", fn.Name())
	}
	var groups [][]float64
	var all []float64
	for i, arg := range args {
		g, err := sample(fmt.Sprintf("group %d", i), arg)
		if err != nil {
			return nil, err
		}
		if len(g) == 0 {
			return nil, fmt.Errorf("%s: group %d is empty", fn.Name(), i)
		}
		groups = append(groups, g)
		all = append(all, g...)
	}
	grand := stat.Mean(all, nil)
	var between, within float64
	for _, g := range groups {
		mean := stat.Mean(g, nil)
		between += float64(len(g)) * (mean - grand) * (mean - grand)
		for _, v := range g {
			within += (v - mean) * (v - mean)
		}
	}
	dfBetween := float64(len(groups) - 1)
	dfWithin := float64(len(all) - len(groups))
	if within == 0 {
		if err := warnings.Warn(thread, warnings.CategoryConstantInput,
			"Each of the input arrays is constant; the F statistic is not defined."); err != nil {
			return nil, err
		}
	}
	f := (between / dfBetween) / (within / dfWithin)
	p := nan
	if dfWithin > 0 && !math.IsNaN(f) {
		p = distuv.F{D1: dfBetween, D2: dfWithin}.Survival(f)
	}
	return &TestResult{
		Name:   "F_onewayResult",
		Fields: []string{"statistic", "pvalue"},
		Values: []starlark.Value{starlark.Float(f), starlark.Float(p)},
	}, nil
}

func zscore(thread *starlark.Thread, fn *intercept.Func, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var av starlark.Value
	ddof := 0
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "a", &av, "ddof?", &ddof); err != nil {
		return nil, err
	}
	a, err := sample("a", av)
	if err != nil {
		return nil, err
	}
	if len(a) <= ddof {
		return nil, fmt.Errorf("%s: not enough values", fn.Name())
	}
	mean := stat.Mean(a, nil)
	var ss float64
	for _, v := range a {
		ss += (v - mean) * (v - mean)
	}
	std := math.Sqrt(ss / float64(len(a)-ddof))
	ret := make([]starlark.Value, 0, len(a))
	for _, v := range a {
		ret = append(ret, starlark.Float((v-mean)/std))
	}
	return starlark.NewList(ret), nil
}
