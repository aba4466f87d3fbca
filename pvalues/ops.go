package pvalues

import (
	"slices"

	"go.starlark.net/syntax"
)

type Op string

const (
	OpMul      Op = "*"
	OpDiv      Op = "/"
	OpFloorDiv Op = "//"
	OpEq       Op = "=="
	OpNe       Op = "!="
	OpLt       Op = "<"
	OpLe       Op = "<="
	OpGt       Op = ">"
	OpGe       Op = ">="
	OpBool     Op = "bool"
	OpHash     Op = "hash"

	OpAdd  Op = "+"
	OpSub  Op = "-"
	OpMod  Op = "%"
	OpPow  Op = "**"
	OpNeg  Op = "unary -"
	OpPos  Op = "unary +"
	OpStr  Op = "str"
	OpRepr Op = "repr"
	OpIter Op = "iter"
)

// PermittedOps lists every operation a PValue supports.
var PermittedOps = []Op{
	OpMul, OpDiv, OpFloorDiv,
	OpEq, OpNe, OpLt, OpLe, OpGt, OpGe,
	OpBool, OpHash,
}

// ArithOps are the permitted operations that produce a new PValue.
var ArithOps = []Op{
	OpMul, OpDiv, OpFloorDiv,
}

func (o Op) Permitted() bool {
	return slices.Contains(PermittedOps, o)
}

func (o Op) Arith() bool {
	return slices.Contains(ArithOps, o)
}

var tokenOps = map[syntax.Token]Op{
	syntax.STAR:       OpMul,
	syntax.SLASH:      OpDiv,
	syntax.SLASHSLASH: OpFloorDiv,
	syntax.EQL:        OpEq,
	syntax.NEQ:        OpNe,
	syntax.LT:         OpLt,
	syntax.LE:         OpLe,
	syntax.GT:         OpGt,
	syntax.GE:         OpGe,
	syntax.PLUS:       OpAdd,
	syntax.MINUS:      OpSub,
	syntax.PERCENT:    OpMod,
	syntax.STARSTAR:   OpPow,
}

func OpFromToken(tok syntax.Token) Op {
	if op, ok := tokenOps[tok]; ok {
		return op
	}
	return Op(tok.String())
}

func (o Op) Token() (syntax.Token, bool) {
	for tok, op := range tokenOps {
		if op == o {
			return tok, true
		}
	}
	return 0, false
}
