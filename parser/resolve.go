package parser

import "kestrel/ast"

type envKind uint8

const (
	envFunction envKind = iota
	envCatch
	envWith
)

// env is one link of the lexical environment chain. Every variable
// reference records the chain current at its position.
type env struct {
	kind     envKind
	outer    *env
	fn       *funcState
	catchVar *ast.Variable
}

type ref struct {
	proxy *ast.VariableProxy
	env   *env
}

// breakable is a statement that break or continue can target
type breakable struct {
	stmt      ast.Statement
	labels    []string
	iteration bool
	// implicit targets are reachable by an unlabeled break
	implicit bool
}

func (b *breakable) hasLabel(name string) bool {
	for _, l := range b.labels {
		if l == name {
			return true
		}
	}
	return false
}

// funcState is the parser's bookkeeping for one function literal
type funcState struct {
	lit        *ast.FunctionLiteral
	scope      *ast.Scope
	outer      *funcState
	env        *env
	decls      map[string]*ast.Variable
	catchVars  map[*ast.Variable]bool
	refs       []ref
	breakables []*breakable
}

func (p *Parser) enterFunction(lit *ast.FunctionLiteral, kind ast.ScopeKind) *funcState {
	f := &funcState{
		lit:       lit,
		outer:     p.fn,
		decls:     make(map[string]*ast.Variable),
		catchVars: make(map[*ast.Variable]bool),
	}
	f.scope = &ast.Scope{Kind: kind}
	if p.fn != nil {
		f.scope.Outer = p.fn.scope
	}
	lit.Scope = f.scope
	f.env = &env{kind: envFunction, outer: p.env, fn: f}
	p.fn = f
	p.env = f.env
	p.funcs = append(p.funcs, f)
	return f
}

func (p *Parser) leaveFunction(f *funcState) {
	p.fn = f.outer
	p.env = f.env.outer
}

func (p *Parser) declareParameter(name string) {
	f := p.fn
	v := &ast.Variable{Name: name, Scope: f.scope, IsParameter: true, ParameterIndex: len(f.scope.Params)}
	f.scope.Params = append(f.scope.Params, v)
	f.lit.Params = append(f.lit.Params, v)
	f.decls[name] = v
}

func (p *Parser) declareVar(name string) {
	f := p.fn
	if _, ok := f.decls[name]; ok {
		return
	}
	v := &ast.Variable{Name: name, Scope: f.scope}
	f.scope.Locals = append(f.scope.Locals, v)
	f.decls[name] = v
}

// pushCatch binds name for the duration of a catch block
func (p *Parser) pushCatch(name string) *ast.Variable {
	f := p.fn
	v := &ast.Variable{Name: name, Scope: f.scope}
	f.scope.Locals = append(f.scope.Locals, v)
	f.catchVars[v] = true
	p.env = &env{kind: envCatch, outer: p.env, fn: f, catchVar: v}
	return v
}

func (p *Parser) pushWith() {
	p.fn.scope.ContainsWith = true
	p.env = &env{kind: envWith, outer: p.env, fn: p.fn}
}

func (p *Parser) popEnv() { p.env = p.env.outer }

// newProxy creates an unresolved reference to name at the current position
func (p *Parser) newProxy(name string, pos ast.Pos) *ast.VariableProxy {
	proxy := &ast.VariableProxy{Name: name}
	proxy.Pos = pos
	p.fn.refs = append(p.fn.refs, ref{proxy: proxy, env: p.env})
	return proxy
}

// resolve binds every reference and then allocates slots. References are
// resolved first because capture decides allocation.
func (p *Parser) resolve() {
	for _, f := range p.funcs {
		for _, r := range f.refs {
			p.resolveRef(f, r)
		}
	}
	for _, f := range p.funcs {
		f.allocate()
	}
}

func (p *Parser) resolveRef(f *funcState, r ref) {
	name := r.proxy.Name
	dynamic := false
	var found *ast.Variable
	for e := r.env; e != nil && found == nil; e = e.outer {
		switch e.kind {
		case envWith:
			dynamic = true
		case envCatch:
			if e.catchVar.Name == name {
				found = e.catchVar
			}
		case envFunction:
			found = e.fn.decls[name]
		}
	}

	if found != nil && (found.Scope != f.scope || dynamic) {
		found.Captured = true
	}
	switch {
	case dynamic:
		r.proxy.Var = &ast.Variable{Name: name, Scope: f.scope, Slot: ast.Slot{Kind: ast.SlotLookup}}
	case found != nil:
		r.proxy.Var = found
	default:
		r.proxy.Var = p.global(name)
	}
}

// global returns the shared variable for an undeclared name
func (p *Parser) global(name string) *ast.Variable {
	if v, ok := p.globals[name]; ok {
		return v
	}
	v := &ast.Variable{Name: name, Scope: p.funcs[0].scope, Slot: ast.Slot{Kind: ast.SlotGlobal}}
	p.globals[name] = v
	return v
}

// allocate assigns frame or context slots to the function's variables
func (f *funcState) allocate() {
	s := f.scope
	place := func(v *ast.Variable, stack ast.Slot) {
		if v.Captured || s.ContainsWith {
			v.Captured = true
			v.Slot = ast.Slot{Kind: ast.SlotContext, Index: s.NumContextSlots}
			s.NumContextSlots++
			s.ContextNames = append(s.ContextNames, v.Name)
			return
		}
		v.Slot = stack
	}
	for i, v := range s.Params {
		place(v, ast.Slot{Kind: ast.SlotParameter, Index: i})
	}
	for _, v := range s.Locals {
		if s.IsGlobal() && !f.catchVars[v] {
			v.Slot = ast.Slot{Kind: ast.SlotGlobal}
			s.GlobalNames = append(s.GlobalNames, v.Name)
			continue
		}
		place(v, ast.Slot{Kind: ast.SlotLocal, Index: s.NumStackLocals})
		if v.Slot.Kind == ast.SlotLocal {
			s.NumStackLocals++
		}
	}
}
