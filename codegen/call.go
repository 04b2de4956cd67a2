package codegen

import (
	"kestrel/asm"
	"kestrel/ast"
	"kestrel/value"
)

// visitCall stages the function, the receiver and the arguments the way
// the callee expression dictates. Calls of a property keep the receiver
// below the function until the call returns:
//
//	global variable     [fn, global]
//	lookup slot         [fn, receiver of the lookup]
//	named property      [object, fn, object]
//	keyed property      [object, fn, object]
//	anything else       [fn, global]
func (g *Generator) visitCall(e *ast.Call) {
	nip := 0
	switch callee := e.Callee.(type) {
	case *ast.VariableProxy:
		switch v := callee.Var; v.Slot.Kind {
		case ast.SlotGlobal:
			g.loadVariable(v, false)
			g.loadGlobalObject()
		case ast.SlotLookup:
			g.frame.EmitPush(asm.Reg(asm.ContextRegister))
			g.frame.PushConstant(value.StringConstant(v.Name))
			fn := g.frame.CallRuntime(asm.RT_LOAD_CONTEXT_SLOT)
			receiver := g.registerResult(asm.EDX)
			g.frame.Push(&fn)
			g.frame.Push(&receiver)
		default:
			g.loadFromSlot(v, false)
			g.loadGlobalObject()
		}
	case *ast.Property:
		g.load(callee.Object)
		if callee.IsNamed() {
			g.frame.Dup()
			name := g.masm.AddConstant(value.StringConstant(callee.Key.(*ast.Literal).Value.Str()))
			fn := g.frame.CallStub(asm.Stub{Kind: asm.STUB_LOAD_IC, Name: name})
			g.frame.Push(&fn)
		} else {
			g.load(callee.Key)
			g.frame.PushElementAt(1)
			g.frame.PushElementAt(1)
			g.keyedLoad()
			g.frame.Nip(1)
		}
		g.frame.PushElementAt(1)
		nip = 1
	default:
		g.load(callee)
		g.loadGlobalObject()
	}

	for _, arg := range e.Args {
		g.load(arg)
	}
	g.masm.SetPosition(e.Position().Offset())
	res := g.frame.CallFunction(len(e.Args))
	g.frame.RestoreContextRegister()
	g.frame.SetElementAt(0, &res)
	if nip > 0 {
		g.frame.Nip(nip)
	}
}

func (g *Generator) visitCallNew(e *ast.CallNew) {
	g.load(e.Callee)
	for _, arg := range e.Args {
		g.load(arg)
	}
	g.masm.SetPosition(e.Position().Offset())
	res := g.frame.CallConstruct(len(e.Args))
	g.frame.RestoreContextRegister()
	g.frame.Push(&res)
}
