package pvalues

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/reusee/scisandbox/issues"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

func TestPermittedOps(t *testing.T) {
	for _, op := range PermittedOps {
		if !op.Permitted() {
			t.Fatalf("%s", op)
		}
	}
	for _, op := range []Op{OpAdd, OpSub, OpMod, OpPow, OpNeg, OpPos, OpStr, OpRepr, OpIter} {
		if op.Permitted() {
			t.Fatalf("%s should not be permitted", op)
		}
	}

	p := New(0.04, "ttest_ind", nil)
	for _, op := range PermittedOps {
		switch {
		case op.Arith():
			ret, err := p.Arith(op, 2, false)
			if err != nil {
				t.Fatalf("%s: %v", op, err)
			}
			if ret.CreatedBy != "ttest_ind" {
				t.Fatalf("got %+v", ret)
			}
		case op == OpBool:
			if !p.Truth() {
				t.Fatal()
			}
		case op == OpHash:
			if _, err := p.Hash(); err != nil {
				t.Fatal(err)
			}
		default:
			if _, err := p.Compare(op, 0.05); err != nil {
				t.Fatalf("%s: %v", op, err)
			}
		}
	}
}

func TestArithClosure(t *testing.T) {
	for _, x := range []float64{0, 1e-10, 0.03, 0.5, 0.99} {
		p := New(x, "f", nil)
		ret, err := p.Binary(syntax.STAR, starlark.MakeInt(2), starlark.Left)
		if err != nil {
			t.Fatal(err)
		}
		doubled, ok := ret.(PValue)
		if !ok {
			t.Fatalf("got %T", ret)
		}
		if doubled.Value != x*2 {
			t.Fatalf("got %v", doubled.Value)
		}

		// reversed division
		ret, err = p.Binary(syntax.SLASH, starlark.Float(1), starlark.Right)
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := ret.(PValue); !ok {
			t.Fatalf("got %T", ret)
		}

		eq, err := Compare(syntax.EQL, p, starlark.Float(x))
		if err != nil {
			t.Fatal(err)
		}
		if eq != starlark.True {
			t.Fatalf("got %v", eq)
		}
	}
}

func TestForbiddenArith(t *testing.T) {
	p := New(0.5, "pearsonr", nil)
	_, err := p.Binary(syntax.PLUS, starlark.Float(1), starlark.Left)
	var notPermitted *OperationNotPermittedError
	if !errors.As(err, &notPermitted) {
		t.Fatalf("got %v", err)
	}
	if notPermitted.Op != OpAdd || notPermitted.CreatedBy != "pearsonr" {
		t.Fatalf("got %+v", notPermitted)
	}
	if _, err := p.Unary(syntax.MINUS); !errors.As(err, &notPermitted) {
		t.Fatalf("got %v", err)
	}
	if _, err := p.Arith(OpSub, 1, false); !errors.As(err, &notPermitted) {
		t.Fatalf("got %v", err)
	}
}

func TestWrap(t *testing.T) {
	_, err := Wrap(math.NaN(), "OLS", "", DefaultWrapOptions, nil)
	var invalid *InvalidValueError
	if !errors.As(err, &invalid) {
		t.Fatalf("got %v", err)
	}

	var list issues.List
	p, err := Wrap(1, "OLS", "x", DefaultWrapOptions, &list)
	if err != nil {
		t.Fatal(err)
	}
	if p.Value != 1 || len(list) != 1 {
		t.Fatalf("got %v %v", p, list)
	}
	if !strings.Contains(list[0].IssueText, "exactly 1") {
		t.Fatalf("got %v", list[0])
	}

	_, err = Wrap(1, "OLS", "", WrapOptions{}, nil)
	if err != nil {
		t.Fatal(err)
	}
}

func TestContainsTainted(t *testing.T) {
	p := New(0.01, "f", nil)
	cyclic := starlark.NewList([]starlark.Value{starlark.MakeInt(1)})
	if err := cyclic.Append(cyclic); err != nil {
		t.Fatal(err)
	}
	if ContainsTainted(cyclic) {
		t.Fatal()
	}
	dict := starlark.NewDict(1)
	if err := dict.SetKey(starlark.String("p"), starlark.Tuple{starlark.None, p}); err != nil {
		t.Fatal(err)
	}
	if err := cyclic.Append(dict); err != nil {
		t.Fatal(err)
	}
	if !ContainsTainted(cyclic) {
		t.Fatal()
	}
	if ContainsTainted(nil) || ContainsTainted(starlark.None) || ContainsTainted(starlark.String("x")) {
		t.Fatal()
	}
	if !IsTainted(p) || IsTainted(starlark.Float(0.01)) {
		t.Fatal()
	}
}

func TestLift(t *testing.T) {
	inner := starlark.NewList([]starlark.Value{starlark.Float(0.1), starlark.String("a")})
	if err := inner.Append(inner); err != nil {
		t.Fatal(err)
	}
	dict := starlark.NewDict(1)
	if err := dict.SetKey(starlark.String("k"), starlark.Float(0.2)); err != nil {
		t.Fatal(err)
	}
	v, err := Lift(starlark.Tuple{inner, dict, starlark.MakeInt(3)}, "lift", nil)
	if err != nil {
		t.Fatal(err)
	}
	tuple := v.(starlark.Tuple)
	list := tuple[0].(*starlark.List)
	if !IsTainted(list.Index(0)) {
		t.Fatal()
	}
	if list.Index(1) != starlark.String("a") {
		t.Fatal()
	}
	if list.Index(2) != list {
		t.Fatal("cycle should be preserved")
	}
	value, _, err := tuple[1].(*starlark.Dict).Get(starlark.String("k"))
	if err != nil {
		t.Fatal(err)
	}
	if !IsTainted(value) {
		t.Fatal()
	}
	if IsTainted(tuple[2]) {
		t.Fatal()
	}
}
