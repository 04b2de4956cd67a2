package codegen

import (
	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

var theHole = value.OddballConstant(value.RootTheHole)

// constantValue returns the value of a literal operand, or the hole for
// a value computed at run time
func constantValue(e ast.Expression) (value.Constant, bool) {
	if lit, ok := e.(*ast.Literal); ok {
		return lit.Value, true
	}
	return theHole, false
}

// visitObjectLiteral clones a boilerplate holding the literal values and
// stores the computed ones into the copy
func (g *Generator) visitObjectLiteral(e *ast.ObjectLiteral) {
	bp := &asm.ObjectBoilerplate{
		Keys:   make([]value.Constant, len(e.Properties)),
		Values: make([]value.Constant, len(e.Properties)),
	}
	for i, p := range e.Properties {
		bp.Keys[i] = p.Key
		bp.Values[i], _ = constantValue(p.Value)
	}
	g.frame.EmitPush(asm.Pool(g.masm.AddConstant(bp)))
	obj := g.frame.CallRuntime(asm.RT_CREATE_OBJECT_LITERAL)
	g.frame.Push(&obj)

	for _, p := range e.Properties {
		if _, ok := constantValue(p.Value); ok {
			continue
		}
		g.frame.Dup()
		var stub asm.Stub
		if p.Key.IsString() && !ast.IsArrayIndex(p.Key.Str()) {
			stub = asm.Stub{Kind: asm.STUB_STORE_IC, Name: g.masm.AddConstant(p.Key)}
		} else {
			g.frame.PushConstant(p.Key)
			stub = asm.Stub{Kind: asm.STUB_KEYED_STORE_IC}
		}
		g.load(p.Value)
		res := g.frame.CallStub(stub)
		res.Unuse()
	}
}

// visitArrayLiteral clones a boilerplate and stores the computed
// elements by index
func (g *Generator) visitArrayLiteral(e *ast.ArrayLiteral) {
	bp := &asm.ArrayBoilerplate{Values: make([]value.Constant, len(e.Values))}
	for i, v := range e.Values {
		bp.Values[i], _ = constantValue(v)
	}
	g.frame.EmitPush(asm.Pool(g.masm.AddConstant(bp)))
	arr := g.frame.CallRuntime(asm.RT_CREATE_ARRAY_LITERAL)
	g.frame.Push(&arr)

	for i, v := range e.Values {
		if v == nil {
			continue
		}
		if _, ok := constantValue(v); ok {
			continue
		}
		g.frame.Dup()
		g.frame.PushConstant(value.SmiConstant(int32(i)))
		g.load(v)
		res := g.frame.CallStub(asm.Stub{Kind: asm.STUB_KEYED_STORE_IC})
		res.Unuse()
	}
}
