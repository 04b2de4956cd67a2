package ast

// Walk calls visit for n and, while visit returns true, for each of its
// children in source order. Nested function literals are entered too.
func Walk(n Node, visit func(Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	switch n := n.(type) {
	case *Block:
		walkStmts(n.Statements, visit)
	case *VarDecl:
		for _, b := range n.Bindings {
			Walk(b.Name, visit)
			if b.Init != nil {
				Walk(b.Init, visit)
			}
		}
	case *FunctionDecl:
		Walk(n.Name, visit)
		Walk(n.Fn, visit)
	case *ExprStmt:
		Walk(n.X, visit)
	case *If:
		Walk(n.Cond, visit)
		Walk(n.Then, visit)
		if n.Else != nil {
			Walk(n.Else, visit)
		}
	case *DoWhile:
		Walk(n.Body, visit)
		Walk(n.Cond, visit)
	case *While:
		Walk(n.Cond, visit)
		Walk(n.Body, visit)
	case *For:
		if n.Init != nil {
			Walk(n.Init, visit)
		}
		if n.Cond != nil {
			Walk(n.Cond, visit)
		}
		if n.Next != nil {
			Walk(n.Next, visit)
		}
		Walk(n.Body, visit)
	case *ForIn:
		Walk(n.Each, visit)
		Walk(n.Enumerable, visit)
		Walk(n.Body, visit)
	case *Switch:
		Walk(n.Tag, visit)
		for _, c := range n.Cases {
			if c.Label != nil {
				Walk(c.Label, visit)
			}
			walkStmts(c.Body, visit)
		}
	case *Labeled:
		Walk(n.Body, visit)
	case *Return:
		if n.Value != nil {
			Walk(n.Value, visit)
		}
	case *Throw:
		Walk(n.Exception, visit)
	case *TryCatch:
		Walk(n.Try, visit)
		Walk(n.CatchVar, visit)
		Walk(n.Catch, visit)
	case *TryFinally:
		Walk(n.Try, visit)
		Walk(n.Finally, visit)
	case *With:
		Walk(n.Object, visit)
		Walk(n.Body, visit)
	case *ObjectLiteral:
		for _, p := range n.Properties {
			Walk(p.Value, visit)
		}
	case *ArrayLiteral:
		for _, v := range n.Values {
			if v != nil {
				Walk(v, visit)
			}
		}
	case *FunctionLiteral:
		walkStmts(n.Body, visit)
	case *Property:
		Walk(n.Object, visit)
		Walk(n.Key, visit)
	case *Call:
		Walk(n.Callee, visit)
		walkExprs(n.Args, visit)
	case *CallNew:
		Walk(n.Callee, visit)
		walkExprs(n.Args, visit)
	case *Unary:
		Walk(n.X, visit)
	case *Count:
		Walk(n.Target, visit)
	case *Binary:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *Compare:
		Walk(n.Left, visit)
		Walk(n.Right, visit)
	case *Conditional:
		Walk(n.Cond, visit)
		Walk(n.Then, visit)
		Walk(n.Else, visit)
	case *Assignment:
		Walk(n.Target, visit)
		Walk(n.Value, visit)
	}
}

func walkStmts(list []Statement, visit func(Node) bool) {
	for _, s := range list {
		Walk(s, visit)
	}
}

func walkExprs(list []Expression, visit func(Node) bool) {
	for _, e := range list {
		Walk(e, visit)
	}
}

// ContainsFunctionLiteral reports whether a function literal appears
// anywhere in the subtree of n.
func ContainsFunctionLiteral(n Node) bool {
	found := false
	Walk(n, func(m Node) bool {
		if found {
			return false
		}
		if m.Kind() == KindFunctionLiteral {
			found = true
			return false
		}
		return true
	})
	return found
}
