package frames

import (
	"fmt"
	"math"
	"slices"

	"github.com/reusee/scisandbox/pvalues"
	"github.com/reusee/scisandbox/warnings"
	"go.starlark.net/starlark"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

func recvSeries(fn *starlark.Builtin, args starlark.Tuple) (*Series, starlark.Tuple, error) {
	if len(args) == 0 {
		return nil, nil, fmt.Errorf("%s: missing receiver", fn.Name())
	}
	s, ok := args[0].(*Series)
	if !ok {
		return nil, nil, fmt.Errorf("%s: got %s, want Series", fn.Name(), args[0].Type())
	}
	return s, args[1:], nil
}

func seriesMethods(lib *Library) map[string]builtinFunc {
	return map[string]builtinFunc{
		"__init__":     lib.seriesInit,
		"mean":         reduce("mean", mean),
		"std":          reduceStd,
		"min":          reduce("min", floats.Min),
		"max":          reduce("max", floats.Max),
		"sum":          reduceSum,
		"count":        seriesCount,
		"tolist":       seriesToList,
		"unique":       seriesUnique,
		"round":        seriesRound,
		"value_counts": lib.seriesValueCounts,
		"isna":         seriesIsNA,
	}
}

func (l *Library) seriesInit(thread *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, args, err := recvSeries(fn, args)
	if err != nil {
		return nil, err
	}
	var data, index starlark.Value = starlark.None, starlark.None
	var name string
	if err := starlark.UnpackArgs("Series", args, kwargs,
		"data?", &data,
		"index?", &index,
		"name?", &name,
	); err != nil {
		return nil, err
	}
	s.Name = name
	if data != starlark.None {
		values, ok := fromIterable(data)
		if !ok {
			return nil, fmt.Errorf("Series: unsupported data type %s", data.Type())
		}
		s.Values = values
	}
	s.Labels = rangeIndex(len(s.Values))
	if index != starlark.None {
		labels, ok := fromIterable(index)
		if !ok || len(labels) != len(s.Values) {
			return nil, fmt.Errorf("Series: index does not match data")
		}
		s.Labels = labels
	}
	return starlark.None, nil
}

func numericArg(fn *starlark.Builtin, s *Series) ([]float64, error) {
	for _, v := range s.Values {
		if p, ok := v.(pvalues.PValue); ok {
			return nil, &pvalues.OperationNotPermittedError{
				Op:        pvalues.Op(fn.Name()),
				CreatedBy: p.CreatedBy,
			}
		}
	}
	x, ok := Numeric(s.Values)
	if !ok {
		return nil, fmt.Errorf("%s: series %q is not numeric", fn.Name(), s.Name)
	}
	return x, nil
}

func reduce(name string, fn func([]float64) float64) builtinFunc {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		s, args, err := recvSeries(b, args)
		if err != nil {
			return nil, err
		}
		if err := starlark.UnpackArgs(name, args, kwargs); err != nil {
			return nil, err
		}
		x, err := numericArg(b, s)
		if err != nil {
			return nil, err
		}
		if len(x) == 0 {
			if err := warnings.Warn(thread, warnings.CategoryRuntime, "%s of empty slice", name); err != nil {
				return nil, err
			}
			return NaN, nil
		}
		return starlark.Float(fn(x)), nil
	}
}

func mean(x []float64) float64 {
	return stat.Mean(x, nil)
}

func reduceStd(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, args, err := recvSeries(b, args)
	if err != nil {
		return nil, err
	}
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	x, err := numericArg(b, s)
	if err != nil {
		return nil, err
	}
	return stdDev(x), nil
}

func reduceSum(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, args, err := recvSeries(b, args)
	if err != nil {
		return nil, err
	}
	if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
		return nil, err
	}
	x, err := numericArg(b, s)
	if err != nil {
		return nil, err
	}
	return starlark.Float(floats.Sum(x)), nil
}

func seriesCount(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, _, err := recvSeries(b, args)
	if err != nil {
		return nil, err
	}
	n := 0
	for _, v := range s.Values {
		if !IsNA(v) {
			n++
		}
	}
	return starlark.MakeInt(n), nil
}

func seriesToList(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, _, err := recvSeries(b, args)
	if err != nil {
		return nil, err
	}
	return toList(s.Values), nil
}

func uniqueValues(values []starlark.Value) (ret []starlark.Value, counts []int) {
	seen := new(starlark.Dict)
	for _, v := range values {
		if _, err := v.Hash(); err != nil {
			continue
		}
		if i, found, _ := seen.Get(v); found {
			n, _ := starlark.AsInt32(i)
			counts[n]++
			continue
		}
		_ = seen.SetKey(v, starlark.MakeInt(len(ret)))
		ret = append(ret, v)
		counts = append(counts, 1)
	}
	return
}

func seriesUnique(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, _, err := recvSeries(b, args)
	if err != nil {
		return nil, err
	}
	values, _ := uniqueValues(s.Values)
	return starlark.NewList(values), nil
}

func seriesRound(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, args, err := recvSeries(b, args)
	if err != nil {
		return nil, err
	}
	decimals := 0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "decimals?", &decimals); err != nil {
		return nil, err
	}
	scale := math.Pow(10, float64(decimals))
	var roundErr error
	ret := s.mapValues(func(v starlark.Value) starlark.Value {
		switch v := v.(type) {
		case starlark.Float:
			return starlark.Float(math.Round(float64(v)*scale) / scale)
		case pvalues.PValue:
			roundErr = &pvalues.OperationNotPermittedError{
				Op:        "round",
				CreatedBy: v.CreatedBy,
			}
		}
		return v
	})
	if roundErr != nil {
		return nil, roundErr
	}
	return ret, nil
}

func (l *Library) seriesValueCounts(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, _, err := recvSeries(b, args)
	if err != nil {
		return nil, err
	}
	var present []starlark.Value
	for _, v := range s.Values {
		if !IsNA(v) {
			present = append(present, v)
		}
	}
	values, counts := uniqueValues(present)
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return counts[b] - counts[a]
	})
	labels := make([]starlark.Value, 0, len(order))
	countValues := make([]starlark.Value, 0, len(order))
	for _, i := range order {
		labels = append(labels, values[i])
		countValues = append(countValues, starlark.MakeInt(counts[i]))
	}
	return l.NewSeries("count", countValues, labels), nil
}

func seriesIsNA(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	s, _, err := recvSeries(b, args)
	if err != nil {
		return nil, err
	}
	return s.mapValues(func(v starlark.Value) starlark.Value {
		return starlark.Bool(IsNA(v))
	}), nil
}
