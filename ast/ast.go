package ast

import "kestrel/value"

// Kind tags each concrete node type
type Kind uint8

const (
	// Statements
	KindBlock Kind = iota
	KindVarDecl
	KindFunctionDecl
	KindExprStmt
	KindEmpty
	KindIf
	KindDoWhile
	KindWhile
	KindFor
	KindForIn
	KindSwitch
	KindContinue
	KindBreak
	KindReturn
	KindThrow
	KindTryCatch
	KindTryFinally
	KindWith
	KindLabeled
	KindDebugger

	// Expressions
	KindLiteral
	KindObjectLiteral
	KindArrayLiteral
	KindFunctionLiteral
	KindRegExpLiteral
	KindVariableProxy
	KindThis
	KindProperty
	KindCall
	KindCallNew
	KindUnary
	KindCount
	KindBinary
	KindCompare
	KindConditional
	KindAssignment
)

var kindNames = [...]string{
	"Block", "VarDecl", "FunctionDecl", "ExprStmt", "Empty", "If", "DoWhile",
	"While", "For", "ForIn", "Switch", "Continue", "Break", "Return", "Throw",
	"TryCatch", "TryFinally", "With", "Labeled", "Debugger",
	"Literal", "ObjectLiteral", "ArrayLiteral", "FunctionLiteral",
	"RegExpLiteral", "VariableProxy", "This", "Property", "Call", "CallNew",
	"Unary", "Count", "Binary", "Compare", "Conditional", "Assignment",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "Kind?"
}

// Pos is a source position
type Pos struct {
	Line, Col int
}

// Position returns the node's source position
func (p Pos) Position() Pos { return p }

// Offset packs a position into one int for instruction tables
func (p Pos) Offset() int { return p.Line<<12 | p.Col&0xfff }

// Node is implemented by every AST node
type Node interface {
	Kind() Kind
	Position() Pos
}

// Statement nodes leave the value stack unchanged
type Statement interface {
	Node
	stmtNode()
}

// Expression nodes leave exactly one value
type Expression interface {
	Node
	Info() *Bits
	exprNode()
}

// StaticType is the analysis guess about an expression's representation
type StaticType uint8

const (
	TypeUnknown StaticType = iota
	TypeLikelySmi
	TypeNumber
)

func (t StaticType) String() string {
	switch t {
	case TypeLikelySmi:
		return "likely_smi"
	case TypeNumber:
		return "number"
	}
	return "unknown"
}

// Bits are write-once analysis annotations read by code generation
type Bits struct {
	Type               StaticType
	NoNegativeZero     bool
	IsLoopCondition    bool
	BitOps             int
	HasFunctionLiteral bool
}

// Info returns the annotations of an expression
func (b *Bits) Info() *Bits { return b }

// IsLikelySmi reports whether the expression is expected to produce a smi
func (b *Bits) IsLikelySmi() bool { return b.Type == TypeLikelySmi || b.BitOps > 0 }

type stmtBase struct{ Pos }

func (stmtBase) stmtNode() {}

type exprBase struct {
	Pos
	Bits
}

func (exprBase) exprNode() {}

// Op is an operator token
type Op uint8

const (
	OpNone Op = iota

	// Binary
	OpComma
	OpOr
	OpAnd
	OpBitOr
	OpBitXor
	OpBitAnd
	OpShl
	OpSar
	OpShr
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	// Compare
	OpEq
	OpNe
	OpStrictEq
	OpStrictNe
	OpLt
	OpGt
	OpLe
	OpGe
	OpIn
	OpInstanceOf

	// Unary
	OpNot
	OpNeg
	OpPlus
	OpBitNot
	OpTypeOf
	OpVoid
	OpDelete

	// Count
	OpInc
	OpDec

	// Assignment
	OpAssign
	OpInit // variable initialisation from a declaration
)

var opNames = [...]string{
	OpNone: "?", OpComma: ",", OpOr: "||", OpAnd: "&&", OpBitOr: "|", OpBitXor: "^",
	OpBitAnd: "&", OpShl: "<<", OpSar: ">>", OpShr: ">>>", OpAdd: "+", OpSub: "-",
	OpMul: "*", OpDiv: "/", OpMod: "%", OpEq: "==", OpNe: "!=", OpStrictEq: "===",
	OpStrictNe: "!==", OpLt: "<", OpGt: ">", OpLe: "<=", OpGe: ">=", OpIn: "in",
	OpInstanceOf: "instanceof", OpNot: "!", OpNeg: "-", OpPlus: "+", OpBitNot: "~",
	OpTypeOf: "typeof", OpVoid: "void", OpDelete: "delete", OpInc: "++", OpDec: "--",
	OpAssign: "=", OpInit: "=init",
}

func (op Op) String() string {
	if int(op) < len(opNames) {
		return opNames[op]
	}
	return "op?"
}

// IsArithmetic reports whether op is handled by the binary operation
// specializer (arithmetic, bitwise and shift operators)
func (op Op) IsArithmetic() bool { return op >= OpBitOr && op <= OpMod }

// IsBitOp reports whether op is a bitwise or shift operator
func (op Op) IsBitOp() bool { return op >= OpBitOr && op <= OpShr }

// IsShift reports whether op is a shift operator
func (op Op) IsShift() bool { return op == OpShl || op == OpSar || op == OpShr }

// IsEquality reports whether op is an equality test
func (op Op) IsEquality() bool { return op >= OpEq && op <= OpStrictNe }

// IsRelational reports whether op is an ordering comparison
func (op Op) IsRelational() bool { return op >= OpLt && op <= OpGe }

// ---- Statements ----

type Block struct {
	stmtBase
	Statements []Statement
}

// Binding is one declared name with an optional initialiser
type Binding struct {
	Name *VariableProxy
	Init Expression
}

type VarDecl struct {
	stmtBase
	Bindings []*Binding
}

type FunctionDecl struct {
	stmtBase
	Name *VariableProxy
	Fn   *FunctionLiteral
}

type ExprStmt struct {
	stmtBase
	X Expression
}

type Empty struct{ stmtBase }

type If struct {
	stmtBase
	Cond Expression
	Then Statement
	Else Statement // nil when absent
}

// Labels is embedded by breakable statements
type Labels struct {
	Names []string
}

type DoWhile struct {
	stmtBase
	Labels
	Body Statement
	Cond Expression
}

type While struct {
	stmtBase
	Labels
	Cond Expression
	Body Statement
}

type For struct {
	stmtBase
	Labels
	Init Statement  // nil when absent
	Cond Expression // nil when absent
	Next Statement  // nil when absent
	Body Statement
}

type ForIn struct {
	stmtBase
	Labels
	Each       Expression // VariableProxy or Property target
	Enumerable Expression
	Body       Statement
}

// CaseClause is a switch case; Label is nil for default
type CaseClause struct {
	Pos
	Label Expression
	Body  []Statement
}

type Switch struct {
	stmtBase
	Labels
	Tag   Expression
	Cases []*CaseClause
}

// Labeled is a labelled statement that is not itself a loop or switch
type Labeled struct {
	stmtBase
	Labels
	Body Statement
}

type Continue struct {
	stmtBase
	Target Statement // the iteration statement
}

type Break struct {
	stmtBase
	Target Statement // the breakable statement
}

type Return struct {
	stmtBase
	Value Expression // nil returns undefined
}

type Throw struct {
	stmtBase
	Exception Expression
}

type TryCatch struct {
	stmtBase
	Try      *Block
	CatchVar *VariableProxy
	Catch    *Block
}

type TryFinally struct {
	stmtBase
	Try     *Block
	Finally *Block
}

type With struct {
	stmtBase
	Object Expression
	Body   Statement
}

type Debugger struct{ stmtBase }

// ---- Expressions ----

type Literal struct {
	exprBase
	Value value.Constant
}

// ObjectProperty is a key: value pair of an object literal
type ObjectProperty struct {
	Key   value.Constant
	Value Expression
}

type ObjectLiteral struct {
	exprBase
	Properties []*ObjectProperty
}

type ArrayLiteral struct {
	exprBase
	Values []Expression // nil entries are holes
}

type FunctionLiteral struct {
	exprBase
	Name   string
	Params []*Variable
	Body   []Statement
	Scope  *Scope
	// Declarations are the function declarations of the body, hoisted to
	// function entry in source order.
	Declarations []*FunctionDecl
}

type RegExpLiteral struct {
	exprBase
	Pattern string
	Flags   string
}

type VariableProxy struct {
	exprBase
	Name string
	Var  *Variable
}

type This struct{ exprBase }

type Property struct {
	exprBase
	Object Expression
	Key    Expression
}

// IsNamed reports whether the key is a constant property name rather than
// a computed or array-index key.
func (p *Property) IsNamed() bool {
	lit, ok := p.Key.(*Literal)
	return ok && lit.Value.IsString() && !IsArrayIndex(lit.Value.Str())
}

type Call struct {
	exprBase
	Callee Expression
	Args   []Expression
}

type CallNew struct {
	exprBase
	Callee Expression
	Args   []Expression
}

type Unary struct {
	exprBase
	Op Op
	X  Expression
}

type Count struct {
	exprBase
	Op     Op // OpInc or OpDec
	Prefix bool
	Target Expression
}

type Binary struct {
	exprBase
	Op          Op
	Left, Right Expression
}

type Compare struct {
	exprBase
	Op          Op
	Left, Right Expression
}

type Conditional struct {
	exprBase
	Cond, Then, Else Expression
}

type Assignment struct {
	exprBase
	Op     Op // OpAssign, OpInit, or the binary operator of a compound assignment
	Target Expression
	Value  Expression
	// BlockStart and BlockEnd bracket an initialisation block.
	BlockStart, BlockEnd bool
}

// IsCompound reports whether the assignment combines with the old value
func (a *Assignment) IsCompound() bool { return a.Op != OpAssign && a.Op != OpInit }

func (*Block) Kind() Kind        { return KindBlock }
func (*VarDecl) Kind() Kind      { return KindVarDecl }
func (*FunctionDecl) Kind() Kind { return KindFunctionDecl }
func (*ExprStmt) Kind() Kind     { return KindExprStmt }
func (*Empty) Kind() Kind        { return KindEmpty }
func (*If) Kind() Kind           { return KindIf }
func (*DoWhile) Kind() Kind      { return KindDoWhile }
func (*While) Kind() Kind        { return KindWhile }
func (*For) Kind() Kind          { return KindFor }
func (*ForIn) Kind() Kind        { return KindForIn }
func (*Switch) Kind() Kind       { return KindSwitch }
func (*Continue) Kind() Kind     { return KindContinue }
func (*Break) Kind() Kind        { return KindBreak }
func (*Return) Kind() Kind       { return KindReturn }
func (*Throw) Kind() Kind        { return KindThrow }
func (*TryCatch) Kind() Kind     { return KindTryCatch }
func (*TryFinally) Kind() Kind   { return KindTryFinally }
func (*With) Kind() Kind         { return KindWith }
func (*Labeled) Kind() Kind      { return KindLabeled }
func (*Debugger) Kind() Kind     { return KindDebugger }

func (*Literal) Kind() Kind         { return KindLiteral }
func (*ObjectLiteral) Kind() Kind   { return KindObjectLiteral }
func (*ArrayLiteral) Kind() Kind    { return KindArrayLiteral }
func (*FunctionLiteral) Kind() Kind { return KindFunctionLiteral }
func (*RegExpLiteral) Kind() Kind   { return KindRegExpLiteral }
func (*VariableProxy) Kind() Kind   { return KindVariableProxy }
func (*This) Kind() Kind            { return KindThis }
func (*Property) Kind() Kind        { return KindProperty }
func (*Call) Kind() Kind            { return KindCall }
func (*CallNew) Kind() Kind         { return KindCallNew }
func (*Unary) Kind() Kind           { return KindUnary }
func (*Count) Kind() Kind           { return KindCount }
func (*Binary) Kind() Kind          { return KindBinary }
func (*Compare) Kind() Kind         { return KindCompare }
func (*Conditional) Kind() Kind     { return KindConditional }
func (*Assignment) Kind() Kind      { return KindAssignment }

// IsArrayIndex reports whether s is the canonical form of an array index
func IsArrayIndex(s string) bool {
	if s == "" || len(s) > 10 {
		return false
	}
	if s == "0" {
		return true
	}
	if s[0] == '0' {
		return false
	}
	var n uint64
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		n = n*10 + uint64(c-'0')
	}
	return n < 1<<32-1
}
