package stats

import (
	"fmt"
	"maps"
	"slices"

	"github.com/reusee/scisandbox/intercept"
	"github.com/reusee/scisandbox/pvalues"
	"github.com/reusee/scisandbox/warnings"
	"go.starlark.net/starlark"
)

// Results is a fitted model. Attributes can be replaced per instance, which is how
// significance values get tagged after fitting.
type Results struct {
	Model *Model

	est   *estimate
	attrs starlark.StringDict
	class *intercept.Class
	lib   *Library
}

var (
	_ starlark.HasAttrs    = new(Results)
	_ starlark.HasSetField = new(Results)
	_ pvalues.Walker       = new(Results)
)

func (r *Results) String() string {
	return fmt.Sprintf("<%s results>", r.Model.Kind)
}

func (r *Results) Type() string {
	return "RegressionResults"
}

func (r *Results) Freeze() {}

func (r *Results) Truth() starlark.Bool {
	return true
}

func (r *Results) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable: %s", r.Type())
}

func (r *Results) Attr(name string) (starlark.Value, error) {
	if v, ok := r.attrs[name]; ok {
		return v, nil
	}
	if method, ok := r.class.Method(r, name); ok {
		return method, nil
	}
	return nil, nil
}

func (r *Results) AttrNames() []string {
	names := slices.Collect(maps.Keys(r.attrs))
	for _, name := range r.class.SlotNames() {
		if name[0] != '_' && !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (r *Results) SetField(name string, value starlark.Value) error {
	r.attrs[name] = value
	return nil
}

func (r *Results) WalkValues(fn func(starlark.Value) bool) {
	for _, name := range slices.Sorted(maps.Keys(r.attrs)) {
		if !fn(r.attrs[name]) {
			return
		}
	}
}

func (l *Library) newResults(thread *starlark.Thread, m *Model, est *estimate) *Results {
	fl := l.frames
	series := func(name string, values []float64) starlark.Value {
		cells := make([]starlark.Value, 0, len(values))
		for _, v := range values {
			cells = append(cells, starlark.Float(v))
		}
		labels := make([]starlark.Value, 0, len(m.XNames))
		for _, n := range m.XNames {
			labels = append(labels, starlark.String(n))
		}
		return fl.NewSeries(name, cells, labels)
	}
	rows := func(name string, values []float64) starlark.Value {
		cells := make([]starlark.Value, 0, len(values))
		for _, v := range values {
			cells = append(cells, starlark.Float(v))
		}
		return fl.NewSeries(name, cells, slices.Clone(m.labels))
	}

	r := &Results{
		Model: m,
		est:   est,
		class: l.ResultsClass,
		lib:   l,
		attrs: starlark.StringDict{
			"params":       series("params", est.params),
			"fittedvalues": rows("fittedvalues", est.fitted),
			"resid":        rows("resid", est.resid),
			"nobs":         starlark.Float(est.nobs),
			"df_resid":     starlark.Float(est.dfResid),
			"df_model":     starlark.Float(est.dfModel),
		},
	}
	if est.regularized {
		return r
	}
	r.attrs["bse"] = series("bse", est.bse)
	r.attrs["tvalues"] = series("tvalues", est.tvalues)
	r.attrs["pvalues"] = series("pvalues", est.pvalues)
	r.attrs["llf"] = starlark.Float(est.llf)
	switch est.statName {
	case "t":
		r.attrs["rsquared"] = starlark.Float(est.rsquared)
		r.attrs["rsquared_adj"] = starlark.Float(est.rsquaredAdj)
		r.attrs["fvalue"] = starlark.Float(est.fvalue)
		r.attrs["f_pvalue"] = starlark.Float(est.fPValue)
	case "z":
		r.attrs["prsquared"] = starlark.Float(est.prsquared)
	}
	return r
}

func recvResults(fn *starlark.Builtin, args starlark.Tuple) (*Results, starlark.Tuple, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("%s: missing receiver", fn.Name())
	}
	r, ok := args[0].(*Results)
	if !ok {
		return nil, nil, fmt.Errorf("%s: got %s, want results", fn.Name(), args[0].Type())
	}
	return r, args[1:], nil
}

func (l *Library) fitOLS(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	m, args, err := recvModel(fn, args)
	if err != nil {
		return nil, err
	}
	var covType string
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "cov_type?", &covType); err != nil {
		return nil, err
	}
	if covType != "" && covType != "nonrobust" {
		return nil, fmt.Errorf("%s: unsupported cov_type %q", fn.Name(), covType)
	}
	est, err := olsEstimate(m.y, m.x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Kind, err)
	}
	return l.newResults(thread, m, est), nil
}

func (l *Library) fitLogit(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	m, args, err := recvModel(fn, args)
	if err != nil {
		return nil, err
	}
	disp := 1
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "disp?", &disp); err != nil {
		return nil, err
	}
	est, converged, err := logitEstimate(m.y, m.x)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Kind, err)
	}
	if !converged {
		if err := warnings.Warn(thread, warnings.CategoryConvergence,
			"Maximum Likelihood optimization failed to converge."); err != nil {
			return nil, err
		}
	}
	return l.newResults(thread, m, est), nil
}

func (l *Library) fitRegularized(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	m, args, err := recvModel(fn, args)
	if err != nil {
		return nil, err
	}
	method := "elastic_net"
	var alphaV, l1V starlark.Value
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs,
		"method?", &method,
		"alpha?", &alphaV,
		"L1_wt?", &l1V,
	); err != nil {
		return nil, err
	}
	alpha, err := number(fn.Name(), "alpha", alphaV, 0)
	if err != nil {
		return nil, err
	}
	l1, err := number(fn.Name(), "L1_wt", l1V, 1)
	if err != nil {
		return nil, err
	}
	if method != "elastic_net" {
		return nil, fmt.Errorf("%s: unknown method %q", fn.Name(), method)
	}
	est, err := elasticNetEstimate(m.y, m.x, alpha, l1)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Kind, err)
	}
	return l.newResults(thread, m, est), nil
}

// PColumn is the summary column holding significance values for a statistic kind.
func PColumn(statName string) string {
	return "P>|" + statName + "|"
}

func (l *Library) resultsSummary(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	r, args, err := recvResults(fn, args)
	if err != nil {
		return nil, err
	}
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs); err != nil {
		return nil, err
	}
	if r.est.regularized {
		return nil, fmt.Errorf("%s: not available for regularized fits", fn.Name())
	}
	lower, upper := r.confInt(0.05)
	columns := []string{"coef", "std err", r.est.statName, PColumn(r.est.statName), "[0.025", "0.975]"}
	data := map[string][]starlark.Value{
		columns[0]: floatCells(r.est.params),
		columns[1]: floatCells(r.est.bse),
		columns[2]: floatCells(r.est.tvalues),
		columns[3]: floatCells(r.est.pvalues),
		columns[4]: floatCells(lower),
		columns[5]: floatCells(upper),
	}
	return l.frames.NewFrame(thread, columns, data, stringCells(r.Model.XNames))
}

func (r *Results) confInt(alpha float64) (lower, upper []float64) {
	q := r.est.dist.Quantile(1 - alpha/2)
	for j, p := range r.est.params {
		lower = append(lower, p-q*r.est.bse[j])
		upper = append(upper, p+q*r.est.bse[j])
	}
	return
}

func (l *Library) resultsConfInt(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	r, args, err := recvResults(fn, args)
	if err != nil {
		return nil, err
	}
	alpha := 0.05
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "alpha?", &alpha); err != nil {
		return nil, err
	}
	if r.est.regularized {
		return nil, fmt.Errorf("%s: not available for regularized fits", fn.Name())
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, fmt.Errorf("%s: alpha must be in (0, 1)", fn.Name())
	}
	lower, upper := r.confInt(alpha)
	return l.frames.NewFrame(thread, []string{"0", "1"}, map[string][]starlark.Value{
		"0": floatCells(lower),
		"1": floatCells(upper),
	}, stringCells(r.Model.XNames))
}

func floatCells(values []float64) []starlark.Value {
	ret := make([]starlark.Value, 0, len(values))
	for _, v := range values {
		ret = append(ret, starlark.Float(v))
	}
	return ret
}

func stringCells(values []string) []starlark.Value {
	ret := make([]starlark.Value, 0, len(values))
	for _, v := range values {
		ret = append(ret, starlark.String(v))
	}
	return ret
}
