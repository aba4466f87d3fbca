package pvalues

import (
	"encoding/gob"
	"fmt"
	"math"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

func init() {
	gob.Register(PValue{})
}

// PValue is a significance value. Only the operations in PermittedOps are allowed on it.
type PValue struct {
	Value        float64
	CreatedBy    string
	VariableName string
	display      *Display
}

var (
	_ starlark.Value      = PValue{}
	_ starlark.HasBinary  = PValue{}
	_ starlark.HasUnary   = PValue{}
	_ starlark.Comparable = PValue{}
)

func New(value float64, createdBy string, display *Display) PValue {
	return PValue{
		Value:     value,
		CreatedBy: createdBy,
		display:   display,
	}
}

// Display returns the display the value renders through. May be nil.
func (p PValue) Display() *Display {
	return p.display
}

// WithDisplay attaches a display, used after crossing a process boundary.
func (p PValue) WithDisplay(d *Display) PValue {
	p.display = d
	return p
}

func (p PValue) String() string {
	if p.display == nil {
		return p.verbatim()
	}
	s, err := p.display.Format(p)
	if err != nil {
		p.display.violate(err)
		return "<p-value>"
	}
	return s
}

func (p PValue) verbatim() string {
	return fmt.Sprintf("PValue(%v)", p.Value)
}

func (p PValue) Type() string {
	return "PValue"
}

func (p PValue) Freeze() {}

func (p PValue) Truth() starlark.Bool {
	return p.Value != 0
}

func (p PValue) Hash() (uint32, error) {
	return starlark.Float(p.Value).Hash()
}

// Arith applies a value-producing operation. other may be a number or a PValue.
func (p PValue) Arith(op Op, other float64, reversed bool) (PValue, error) {
	if !op.Arith() {
		return PValue{}, &OperationNotPermittedError{
			Op:        op,
			CreatedBy: p.CreatedBy,
		}
	}
	x, y := p.Value, other
	if reversed {
		x, y = y, x
	}
	var v float64
	switch op {
	case OpMul:
		v = x * y
	case OpDiv:
		v = x / y
	case OpFloorDiv:
		v = math.Floor(x / y)
	}
	return PValue{
		Value:        v,
		CreatedBy:    p.CreatedBy,
		VariableName: p.VariableName,
		display:      p.display,
	}, nil
}

// Compare applies a comparison on the underlying float and returns a plain bool.
func (p PValue) Compare(op Op, other float64) (bool, error) {
	switch op {
	case OpEq:
		return p.Value == other, nil
	case OpNe:
		return p.Value != other, nil
	case OpLt:
		return p.Value < other, nil
	case OpLe:
		return p.Value <= other, nil
	case OpGt:
		return p.Value > other, nil
	case OpGe:
		return p.Value >= other, nil
	}
	return false, &OperationNotPermittedError{
		Op:        op,
		CreatedBy: p.CreatedBy,
	}
}

func (p PValue) Binary(tok syntax.Token, y starlark.Value, side starlark.Side) (starlark.Value, error) {
	op := OpFromToken(tok)
	if !op.Arith() {
		return nil, &OperationNotPermittedError{
			Op:        op,
			CreatedBy: p.CreatedBy,
		}
	}
	other, ok := AsFloat(y)
	if !ok {
		// let containers such as series handle it
		return nil, nil
	}
	return p.Arith(op, other, side == starlark.Right)
}

func (p PValue) Unary(tok syntax.Token) (starlark.Value, error) {
	op := OpNeg
	if tok == syntax.PLUS {
		op = OpPos
	}
	return nil, &OperationNotPermittedError{
		Op:        op,
		CreatedBy: p.CreatedBy,
	}
}

func (p PValue) CompareSameType(tok syntax.Token, y starlark.Value, depth int) (bool, error) {
	return p.Compare(OpFromToken(tok), y.(PValue).Value)
}

// AsFloat unwraps numbers and p-values.
func AsFloat(v starlark.Value) (float64, bool) {
	switch v := v.(type) {
	case PValue:
		return v.Value, true
	case starlark.Float:
		return float64(v), true
	case starlark.Int:
		f, _ := starlark.AsFloat(v)
		return f, true
	case starlark.Bool:
		if v {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}
