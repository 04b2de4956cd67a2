package ast

// Analyze sets the analysis bits on every expression of fn, including
// nested function literals. It runs once, before code generation.
func Analyze(fn *FunctionLiteral) {
	a := &analyzer{loopVars: make(map[*Variable]int)}
	a.function(fn)
}

type analyzer struct {
	// loopVars counts, per variable, the enclosing for-loop headers that
	// use it as a smi induction variable.
	loopVars map[*Variable]int
}

func (a *analyzer) function(fn *FunctionLiteral) {
	saved := a.loopVars
	a.loopVars = make(map[*Variable]int)
	a.stmts(fn.Body)
	a.loopVars = saved
}

func (a *analyzer) stmts(list []Statement) {
	for _, s := range list {
		a.stmt(s)
	}
}

func (a *analyzer) stmt(s Statement) {
	switch s := s.(type) {
	case *Block:
		a.stmts(s.Statements)
	case *VarDecl:
		for _, b := range s.Bindings {
			a.expr(b.Name, false)
			if b.Init != nil {
				a.expr(b.Init, false)
			}
		}
	case *FunctionDecl:
		a.expr(s.Name, false)
		a.expr(s.Fn, false)
	case *ExprStmt:
		a.expr(s.X, true)
	case *If:
		a.expr(s.Cond, true)
		a.stmt(s.Then)
		if s.Else != nil {
			a.stmt(s.Else)
		}
	case *DoWhile:
		a.stmt(s.Body)
		s.Cond.Info().IsLoopCondition = true
		a.expr(s.Cond, true)
	case *While:
		s.Cond.Info().IsLoopCondition = true
		a.expr(s.Cond, true)
		a.stmt(s.Body)
	case *For:
		a.forStmt(s)
	case *ForIn:
		a.expr(s.Each, false)
		a.expr(s.Enumerable, false)
		a.stmt(s.Body)
	case *Switch:
		a.expr(s.Tag, false)
		for _, c := range s.Cases {
			if c.Label != nil {
				a.expr(c.Label, false)
			}
			a.stmts(c.Body)
		}
	case *Labeled:
		a.stmt(s.Body)
	case *Return:
		if s.Value != nil {
			a.expr(s.Value, false)
		}
	case *Throw:
		a.expr(s.Exception, false)
	case *TryCatch:
		a.stmt(s.Try)
		a.expr(s.CatchVar, false)
		a.stmt(s.Catch)
	case *TryFinally:
		a.stmt(s.Try)
		a.stmt(s.Finally)
	case *With:
		a.expr(s.Object, false)
		a.stmt(s.Body)
	}
}

func (a *analyzer) forStmt(s *For) {
	if s.Init != nil {
		a.stmt(s.Init)
	}
	v := smiLoopVariable(s)
	if v != nil {
		a.loopVars[v]++
	}
	if s.Cond != nil {
		s.Cond.Info().IsLoopCondition = true
		a.expr(s.Cond, true)
	}
	if s.Next != nil {
		a.stmt(s.Next)
	}
	if v != nil {
		if a.loopVars[v]--; a.loopVars[v] == 0 {
			delete(a.loopVars, v)
		}
	}
	a.stmt(s.Body)
}

// smiLoopVariable recognises for (i = <smi>; ...; i++ | ++i | i += <smi>)
// and returns i.
func smiLoopVariable(s *For) *Variable {
	var init Expression
	switch in := s.Init.(type) {
	case *ExprStmt:
		if as, ok := in.X.(*Assignment); ok && !as.IsCompound() {
			if p, ok := as.Target.(*VariableProxy); ok && isSmiLiteral(as.Value) {
				init = p
			}
		}
	case *VarDecl:
		if len(in.Bindings) == 1 && in.Bindings[0].Init != nil && isSmiLiteral(in.Bindings[0].Init) {
			init = in.Bindings[0].Name
		}
	}
	p, ok := init.(*VariableProxy)
	if !ok || p.Var == nil {
		return nil
	}
	next, ok := s.Next.(*ExprStmt)
	if !ok {
		return nil
	}
	switch x := next.X.(type) {
	case *Count:
		if t, ok := x.Target.(*VariableProxy); ok && t.Var == p.Var {
			return p.Var
		}
	case *Assignment:
		if t, ok := x.Target.(*VariableProxy); ok && t.Var == p.Var &&
			(x.Op == OpAdd || x.Op == OpSub) && isSmiLiteral(x.Value) {
			return p.Var
		}
	}
	return nil
}

func isSmiLiteral(e Expression) bool {
	lit, ok := e.(*Literal)
	return ok && lit.Value.IsSmi()
}

// expr annotates e. noNegZero says whether the consumer of e's value
// cannot observe the sign of a zero result. It returns the number of
// bitwise operators in the subtree and whether it contains a function
// literal.
func (a *analyzer) expr(e Expression, noNegZero bool) (bitOps int, hasFn bool) {
	info := e.Info()
	info.NoNegativeZero = noNegZero

	switch e := e.(type) {
	case *Literal:
		switch {
		case e.Value.IsSmi():
			info.Type = TypeLikelySmi
		case e.Value.IsNumber():
			info.Type = TypeNumber
		}
	case *VariableProxy:
		if e.Var != nil && a.loopVars[e.Var] > 0 {
			info.Type = TypeLikelySmi
		}
	case *ObjectLiteral:
		for _, p := range e.Properties {
			_, f := a.expr(p.Value, false)
			hasFn = hasFn || f
		}
	case *ArrayLiteral:
		for _, v := range e.Values {
			if v != nil {
				_, f := a.expr(v, false)
				hasFn = hasFn || f
			}
		}
	case *FunctionLiteral:
		hasFn = true
		a.function(e)
	case *Property:
		_, f1 := a.expr(e.Object, false)
		_, f2 := a.expr(e.Key, false)
		hasFn = f1 || f2
	case *Call:
		_, hasFn = a.expr(e.Callee, false)
		hasFn = a.args(e.Args) || hasFn
	case *CallNew:
		_, hasFn = a.expr(e.Callee, false)
		hasFn = a.args(e.Args) || hasFn
	case *Unary:
		childNoNegZero := true
		if e.Op == OpNeg || e.Op == OpPlus {
			childNoNegZero = noNegZero
		}
		if e.Op == OpDelete {
			childNoNegZero = false
		}
		var b int
		b, hasFn = a.expr(e.X, childNoNegZero)
		switch e.Op {
		case OpNeg:
			info.Type = TypeNumber
		case OpBitNot:
			info.Type = TypeLikelySmi
			bitOps = b + 1
		}
	case *Count:
		_, hasFn = a.expr(e.Target, false)
	case *Binary:
		bitOps, hasFn = a.binary(e, noNegZero)
	case *Compare:
		_, f1 := a.expr(e.Left, true)
		_, f2 := a.expr(e.Right, true)
		hasFn = f1 || f2
	case *Conditional:
		_, f1 := a.expr(e.Cond, true)
		_, f2 := a.expr(e.Then, noNegZero)
		_, f3 := a.expr(e.Else, noNegZero)
		hasFn = f1 || f2 || f3
	case *Assignment:
		_, f1 := a.expr(e.Target, false)
		_, f2 := a.expr(e.Value, false)
		hasFn = f1 || f2
		if e.Op.IsBitOp() {
			info.Type = TypeLikelySmi
		}
	}

	info.BitOps = bitOps
	info.HasFunctionLiteral = hasFn
	return bitOps, hasFn
}

func (a *analyzer) args(list []Expression) bool {
	hasFn := false
	for _, arg := range list {
		_, f := a.expr(arg, false)
		hasFn = hasFn || f
	}
	return hasFn
}

func (a *analyzer) binary(e *Binary, noNegZero bool) (int, bool) {
	left, right := noNegZero, noNegZero
	switch e.Op {
	case OpComma, OpOr:
		left = true
	case OpBitOr, OpBitXor, OpBitAnd, OpShl, OpSar, OpShr:
		left, right = true, true
	case OpDiv:
		right = false
	case OpMod:
		right = true
	}
	lb, lf := a.expr(e.Left, left)
	rb, rf := a.expr(e.Right, right)
	bitOps := lb + rb

	switch {
	case e.Op.IsBitOp():
		e.Type = TypeLikelySmi
		bitOps++
	case e.Op == OpSub || e.Op == OpMul || e.Op == OpDiv || e.Op == OpMod:
		e.Type = TypeNumber
	case e.Op == OpAdd:
		if e.Left.Info().IsLikelySmi() && e.Right.Info().IsLikelySmi() {
			e.Type = TypeLikelySmi
		}
	}
	return bitOps, lf || rf
}
