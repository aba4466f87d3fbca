package pvalues

import (
	"strconv"

	"go.starlark.net/syntax"
)

// RewriteComparisons replaces every comparison in f with a call to CompareFuncName.
// It must run before resolution.
func RewriteComparisons(f *syntax.File) {
	r := new(rewriter)
	r.stmts(f.Stmts)
}

type rewriter struct{}

func (r *rewriter) stmts(stmts []syntax.Stmt) {
	for _, stmt := range stmts {
		r.stmt(stmt)
	}
}

func (r *rewriter) stmt(stmt syntax.Stmt) {
	switch s := stmt.(type) {
	case *syntax.AssignStmt:
		s.LHS = r.expr(s.LHS)
		s.RHS = r.expr(s.RHS)
	case *syntax.DefStmt:
		r.params(s.Params)
		r.stmts(s.Body)
	case *syntax.ExprStmt:
		s.X = r.expr(s.X)
	case *syntax.ForStmt:
		s.X = r.expr(s.X)
		r.stmts(s.Body)
	case *syntax.WhileStmt:
		s.Cond = r.expr(s.Cond)
		r.stmts(s.Body)
	case *syntax.IfStmt:
		s.Cond = r.expr(s.Cond)
		r.stmts(s.True)
		r.stmts(s.False)
	case *syntax.ReturnStmt:
		if s.Result != nil {
			s.Result = r.expr(s.Result)
		}
	}
}

// params rewrites default values only.
func (r *rewriter) params(params []syntax.Expr) {
	for _, p := range params {
		if b, ok := p.(*syntax.BinaryExpr); ok && b.Op == syntax.EQ {
			b.Y = r.expr(b.Y)
		}
	}
}

func (r *rewriter) exprs(list []syntax.Expr) {
	for i, e := range list {
		list[i] = r.expr(e)
	}
}

func (r *rewriter) expr(e syntax.Expr) syntax.Expr {
	switch e := e.(type) {
	case *syntax.BinaryExpr:
		e.X = r.expr(e.X)
		e.Y = r.expr(e.Y)
		switch e.Op {
		case syntax.EQL, syntax.NEQ, syntax.LT, syntax.LE, syntax.GT, syntax.GE:
			op := e.Op.String()
			return &syntax.CallExpr{
				Fn: &syntax.Ident{
					NamePos: e.OpPos,
					Name:    CompareFuncName,
				},
				Lparen: e.OpPos,
				Args: []syntax.Expr{
					&syntax.Literal{
						Token:    syntax.STRING,
						TokenPos: e.OpPos,
						Raw:      strconv.Quote(op),
						Value:    op,
					},
					e.X,
					e.Y,
				},
				Rparen: e.OpPos,
			}
		}
	case *syntax.CallExpr:
		e.Fn = r.expr(e.Fn)
		for i, arg := range e.Args {
			if b, ok := arg.(*syntax.BinaryExpr); ok && b.Op == syntax.EQ {
				// keyword argument
				b.Y = r.expr(b.Y)
				continue
			}
			e.Args[i] = r.expr(arg)
		}
	case *syntax.Comprehension:
		e.Body = r.expr(e.Body)
		for _, clause := range e.Clauses {
			switch c := clause.(type) {
			case *syntax.ForClause:
				c.X = r.expr(c.X)
			case *syntax.IfClause:
				c.Cond = r.expr(c.Cond)
			}
		}
	case *syntax.CondExpr:
		e.Cond = r.expr(e.Cond)
		e.True = r.expr(e.True)
		e.False = r.expr(e.False)
	case *syntax.DictEntry:
		e.Key = r.expr(e.Key)
		e.Value = r.expr(e.Value)
	case *syntax.DictExpr:
		r.exprs(e.List)
	case *syntax.DotExpr:
		e.X = r.expr(e.X)
	case *syntax.IndexExpr:
		e.X = r.expr(e.X)
		e.Y = r.expr(e.Y)
	case *syntax.LambdaExpr:
		r.params(e.Params)
		e.Body = r.expr(e.Body)
	case *syntax.ListExpr:
		r.exprs(e.List)
	case *syntax.ParenExpr:
		e.X = r.expr(e.X)
	case *syntax.SliceExpr:
		e.X = r.expr(e.X)
		if e.Lo != nil {
			e.Lo = r.expr(e.Lo)
		}
		if e.Hi != nil {
			e.Hi = r.expr(e.Hi)
		}
		if e.Step != nil {
			e.Step = r.expr(e.Step)
		}
	case *syntax.TupleExpr:
		r.exprs(e.List)
	case *syntax.UnaryExpr:
		if e.X != nil {
			e.X = r.expr(e.X)
		}
	}
	return e
}
