package codegen

import (
	"errors"
	"fmt"

	"kestrel/asm"
	"kestrel/ast"
	"kestrel/trace"
	"kestrel/value"
)

var (
	// ErrStackOverflow is returned when the AST nests deeper than
	// Options.MaxRecursionDepth
	ErrStackOverflow = errors.New("expression nesting too deep")
	// ErrUnsupported is returned for constructs the generator rejects
	ErrUnsupported = errors.New("unsupported construct")
)

// Options control the inline fast paths and limits of code generation
type Options struct {
	// InlineSmiArithmetic enables the inline smi paths of arithmetic,
	// comparison and count operations. Off, every operation calls the
	// generic stubs.
	InlineSmiArithmetic bool
	// InlineKeyedLoads enables the inline array element load in loops
	InlineKeyedLoads bool
	// MaxRecursionDepth bounds the nesting of visited nodes
	MaxRecursionDepth int
}

// DefaultOptions returns the options used when none are configured
func DefaultOptions() Options {
	return Options{
		InlineSmiArithmetic: true,
		InlineKeyedLoads:    true,
		MaxRecursionDepth:   1000,
	}
}

// Generator compiles one function literal
type Generator struct {
	masm  *asm.Assembler
	pool  RegisterPool
	frame *VirtualFrame
	opts  Options
	fn    *ast.FunctionLiteral
	scope *ast.Scope
	name  string

	deferred []DeferredCode
	dest     *ControlDestination // pending destination of the next visited expression

	functionReturn *BreakTarget
	breaks         map[ast.Statement]*BreakTarget
	continues      map[ast.Statement]*BreakTarget
	active         []*BreakTarget // break and continue targets of enclosing statements, outermost first
	loopNesting    int

	depth    int
	overflow bool
	err      error
}

// Generate compiles fn and, depth first, every function literal inside it.
// fn must have been through ast.Analyze; the analysis bits select the
// inline fast paths. Nested functions become constants of the enclosing
// Code, so the result is a tree whose root is fn.
//
// Generation stops at the first error. Nesting deeper than
// Options.MaxRecursionDepth yields ErrStackOverflow and constructs with no
// code generation support, such as regexp literals, yield ErrUnsupported.
// Both are reported for the whole tree; no partial Code is returned.
func Generate(fn *ast.FunctionLiteral, opts Options) (*asm.Code, error) {
	return generate(fn, opts, 0)
}

func generate(fn *ast.FunctionLiteral, opts Options, depth int) (*asm.Code, error) {
	name := fn.Name
	if name == "" {
		name = "anonymous"
	}
	g := &Generator{
		masm:      asm.NewAssembler(name),
		opts:      opts,
		fn:        fn,
		scope:     fn.Scope,
		name:      name,
		breaks:    make(map[ast.Statement]*BreakTarget),
		continues: make(map[ast.Statement]*BreakTarget),
		depth:     depth,
	}
	trace.FunctionStart(name, len(fn.Params), fn.Scope.NumStackLocals, fn.Scope.NumContextSlots)
	g.generate()
	if g.err == nil && g.overflow {
		g.err = ErrStackOverflow
	}
	if g.err != nil {
		trace.Failure(name, g.err)
		return nil, g.err
	}
	code, err := g.masm.Finalize()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	code.ParamCount = len(fn.Params)
	code.LocalCount = fn.Scope.NumStackLocals
	code.ContextSlots = fn.Scope.NumContextSlots
	code.ContextNames = fn.Scope.ContextNames
	trace.FunctionEnd(name, len(code.Instrs), code.DeferredStart, len(code.Constants))
	return code, nil
}

func (g *Generator) generate() {
	m := g.masm
	fn, s := g.fn, g.scope
	g.setFrame(NewFrame(g, len(fn.Params), s.NumStackLocals))
	m.SetPosition(fn.Position().Offset())
	m.RecordComment("[ function " + g.name)
	g.frame.Enter()
	g.frame.AllocateLocals()
	g.functionReturn = g.newBreakTarget()

	if s.NeedsContext() {
		g.allocateContext()
	}
	if s.IsGlobal() && len(s.GlobalNames) > 0 {
		names := m.AddConstant(asm.NameList(s.GlobalNames))
		g.frame.EmitPush(asm.Pool(names))
		res := g.frame.CallRuntime(asm.RT_DECLARE_GLOBALS)
		res.Unuse()
	}
	g.checkStack()
	for _, decl := range fn.Declarations {
		g.declareFunction(decl)
	}

	g.visitStatements(fn.Body)
	if g.frame != nil {
		undefined := g.constantResult(value.UndefinedConstant)
		g.functionReturn.JumpWithValue(&undefined)
	}
	if g.functionReturn.IsLinked() {
		g.generateReturnSequence()
	}
	m.RecordComment("]")

	m.Emit(asm.Instr{Op: asm.OP_INT3})
	start := m.PC()
	g.generateDeferred()
	m.SetDeferredStart(start)
}

// allocateContext creates the function's heap context and copies the
// parameters that live there
func (g *Generator) allocateContext() {
	m, f := g.masm, g.frame
	m.RecordComment("[ allocate context")
	f.PushFunction()
	ctx := f.CallRuntime(asm.RT_NEW_CONTEXT)
	m.Mov(asm.Reg(asm.ContextRegister), ctx.Operand())
	ctx.Unuse()
	f.SaveContextRegister()
	for i, p := range g.fn.Params {
		if p.Slot.Kind != ast.SlotContext {
			continue
		}
		tmp := g.allocate()
		m.Mov(tmp.Operand(), f.ParameterAt(i))
		m.Mov(contextSlot(asm.ContextRegister, p.Slot.Index), tmp.Operand())
		tmp.Unuse()
	}
	m.RecordComment("]")
}

// generateReturnSequence binds the return target and leaves the function
// with the returned value in EAX
func (g *Generator) generateReturnSequence() {
	res := g.functionReturn.BindWithValue()
	if g.frame == nil {
		return
	}
	g.masm.RecordComment("[ return")
	res.ToRegisterSpecific(asm.EAX)
	g.frame.PrepareForReturn()
	g.frame.Exit()
	res.Unuse()
	g.setFrame(nil)
	g.masm.RecordComment("]")
}

// checkStack calls the stack guard when the machine stack pointer is
// below the limit
func (g *Generator) checkStack() {
	d := &deferredStackCheck{deferredBase: g.newDeferred("stack check")}
	g.addDeferred(d)
	g.masm.Cmp(asm.Reg(asm.ESP), asm.Ext(asm.ExtStackLimit))
	d.Branch(g.masm, asm.Below)
	d.BindExit(g.masm)
}

// setFrame makes f the current frame. The registers of the previous frame
// stop counting in the pool.
func (g *Generator) setFrame(f *VirtualFrame) {
	if g.frame != nil {
		g.frame.detach()
	}
	g.frame = f
	if f != nil {
		f.attach()
	}
}

// checkRegisters asserts that every allocated register belongs to the
// frame, which is the state required at labels
func (g *Generator) checkRegisters() {
	for _, r := range asm.AllocatableRegisters {
		want := 0
		if g.frame != nil && g.frame.IsUsed(r) {
			want = 1
		}
		if got := g.pool.Count(r); got != want {
			panic(fmt.Sprintf("codegen: %s has %d references, frame holds %d (%s)", r, got, want, &g.pool))
		}
	}
}

// fail records the first error; code generation keeps walking but every
// later statement is skipped
func (g *Generator) fail(err error) {
	if g.err == nil {
		g.err = err
	}
}

func (g *Generator) enter() bool {
	g.depth++
	if g.depth > g.opts.MaxRecursionDepth && g.opts.MaxRecursionDepth > 0 {
		g.overflow = true
	}
	return !g.overflow
}

func (g *Generator) leave() { g.depth-- }

func (g *Generator) visitStatements(list []ast.Statement) {
	for _, s := range list {
		if g.frame == nil {
			return
		}
		g.visitStatement(s)
	}
}

func (g *Generator) visitStatement(s ast.Statement) {
	if g.frame == nil || g.err != nil {
		return
	}
	defer g.leave()
	if !g.enter() {
		return
	}
	height := g.frame.Height()
	g.masm.SetPosition(s.Position().Offset())

	switch s := s.(type) {
	case *ast.Block:
		g.visitStatements(s.Statements)
	case *ast.VarDecl:
		g.visitVarDecl(s)
	case *ast.FunctionDecl:
		// hoisted to the prologue
	case *ast.ExprStmt:
		g.visitExprStmt(s)
	case *ast.Empty, *ast.Debugger:
	case *ast.If:
		g.visitIf(s)
	case *ast.DoWhile:
		g.visitDoWhile(s)
	case *ast.While:
		g.visitWhile(s)
	case *ast.For:
		g.visitFor(s)
	case *ast.ForIn:
		g.visitForIn(s)
	case *ast.Switch:
		g.visitSwitch(s)
	case *ast.Labeled:
		g.visitLabeled(s)
	case *ast.Continue:
		g.continues[s.Target].Jump()
	case *ast.Break:
		g.breaks[s.Target].Jump()
	case *ast.Return:
		g.visitReturn(s)
	case *ast.Throw:
		g.visitThrow(s)
	case *ast.TryCatch:
		g.visitTryCatch(s)
	case *ast.TryFinally:
		g.visitTryFinally(s)
	case *ast.With:
		g.visitWith(s)
	default:
		panic(fmt.Sprintf("codegen: unexpected statement %s", s.Kind()))
	}

	if g.frame != nil && g.frame.Height() != height {
		panic(fmt.Sprintf("codegen: %s at %v changed the frame height from %d to %d",
			s.Kind(), s.Position(), height, g.frame.Height()))
	}
}

// visitExpression compiles e. An expression that understands control
// flow consumes the pending destination and leaves nothing; every other
// expression leaves its value on top of the frame.
func (g *Generator) visitExpression(e ast.Expression) {
	dest := g.dest
	g.dest = nil
	if g.frame == nil {
		panic(fmt.Sprintf("codegen: %s in unreachable code", e.Kind()))
	}
	defer g.leave()
	if !g.enter() || g.err != nil {
		g.frame.PushConstant(value.UndefinedConstant)
		return
	}
	height := g.frame.Height()
	g.masm.SetPosition(e.Position().Offset())

	switch e := e.(type) {
	case *ast.Literal:
		g.frame.PushConstant(e.Value)
	case *ast.ObjectLiteral:
		g.visitObjectLiteral(e)
	case *ast.ArrayLiteral:
		g.visitArrayLiteral(e)
	case *ast.FunctionLiteral:
		g.visitFunctionLiteral(e)
	case *ast.RegExpLiteral:
		g.fail(fmt.Errorf("%d:%d: regular expression literal: %w", e.Line, e.Col, ErrUnsupported))
		g.frame.PushConstant(value.UndefinedConstant)
	case *ast.VariableProxy:
		g.visitVariableProxy(e)
	case *ast.This:
		g.frame.PushReceiver()
	case *ast.Property:
		g.visitProperty(e)
	case *ast.Call:
		g.visitCall(e)
	case *ast.CallNew:
		g.visitCallNew(e)
	case *ast.Unary:
		g.visitUnary(e, dest)
	case *ast.Count:
		g.visitCount(e)
	case *ast.Binary:
		g.visitBinary(e, dest)
	case *ast.Compare:
		g.visitCompare(e, dest)
	case *ast.Conditional:
		g.visitConditional(e)
	case *ast.Assignment:
		g.visitAssignment(e)
	default:
		panic(fmt.Sprintf("codegen: unexpected expression %s", e.Kind()))
	}

	if g.frame == nil {
		return
	}
	want := height + 1
	if dest != nil && dest.IsUsed() {
		want = height
	}
	if g.frame.Height() != want {
		panic(fmt.Sprintf("codegen: %s at %v left frame height %d, want %d",
			e.Kind(), e.Position(), g.frame.Height(), want))
	}
}

// loadCondition compiles e for its truth value. With forceControl the
// value is always turned into control flow to dest; otherwise an
// expression that does not understand control flow leaves its value on
// the frame and dest stays unused. A valid frame afterwards is at dest's
// fall-through target.
func (g *Generator) loadCondition(e ast.Expression, dest *ControlDestination, forceControl bool) {
	g.dest = dest
	g.visitExpression(e)
	if forceControl && g.frame != nil && !dest.IsUsed() {
		g.toBoolean(dest)
	}
}

// declareFunction creates the closure of a hoisted function declaration
// and stores it in its variable
func (g *Generator) declareFunction(decl *ast.FunctionDecl) {
	if g.frame == nil || g.err != nil {
		return
	}
	g.visitFunctionLiteral(decl.Fn)
	g.storeTop(decl.Name)
	g.frame.Drop(1)
}

// compileNested compiles an inner function literal
func (g *Generator) compileNested(fn *ast.FunctionLiteral) *asm.Code {
	code, err := generate(fn, g.opts, g.depth)
	if err != nil {
		g.fail(err)
		return nil
	}
	return code
}

// contextSlot addresses variable slot index of the function context in ctx
func contextSlot(ctx asm.Register, index int) asm.Operand {
	return asm.Mem(ctx, int32(value.ContextHeaderSize+index))
}
