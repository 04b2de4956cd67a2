package parser

import (
	"kestrel/ast"
	"kestrel/value"
)

// Config tunes the front end
type Config struct {
	// InitBlockThreshold is the minimum run of consecutive named property
	// stores to one receiver that is marked as an initialisation block.
	// Zero disables marking.
	InitBlockThreshold int
}

// DefaultConfig is used by Parse
var DefaultConfig = Config{InitBlockThreshold: 2}

// Parser parses script source into a resolved AST
type Parser struct {
	lexer   *Lexer
	current Token
	peek    Token
	config  Config

	fn      *funcState
	env     *env
	funcs   []*funcState
	globals map[string]*ast.Variable

	// noIn disables 'in' as a binary operator inside a for header
	noIn bool
	// pendingLabels are the labels of the statement being parsed
	pendingLabels []string
}

// NewParser creates a new Parser instance
func NewParser(input string, config Config) *Parser {
	p := &Parser{
		lexer:   NewLexer(input),
		config:  config,
		globals: make(map[string]*ast.Variable),
	}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses a complete script with the default configuration
func Parse(source string) (*ast.FunctionLiteral, error) {
	return NewParser(source, DefaultConfig).ParseProgram()
}

// nextToken advances to the next token
func (p *Parser) nextToken() {
	p.current = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) at(t TokenType) bool { return p.current.Type == t }

// accept consumes the current token if it has type t
func (p *Parser) accept(t TokenType) bool {
	if p.current.Type != t {
		return false
	}
	p.nextToken()
	return true
}

// expect consumes a token of type t or fails
func (p *Parser) expect(t TokenType) error {
	if err := p.lexer.Err(); err != nil {
		return err
	}
	if p.current.Type != t {
		return p.errorf("expected '%s', found '%s'", t, p.describe())
	}
	p.nextToken()
	return nil
}

func (p *Parser) describe() string {
	if p.current.Type == TOKEN_EOF {
		return "end of input"
	}
	return p.current.Value
}

func (p *Parser) identifier() (string, error) {
	if p.current.Type != TOKEN_IDENTIFIER {
		return "", p.errorf("expected identifier, found '%s'", p.describe())
	}
	name := p.current.Value
	p.nextToken()
	return name, nil
}

func (p *Parser) pos() ast.Pos {
	return ast.Pos{Line: p.current.Position.Line, Col: p.current.Position.Column}
}

// Precedence levels, lowest first
const (
	PREC_LOWEST = iota
	PREC_COMMA
	PREC_ASSIGN
	PREC_CONDITIONAL
	PREC_OR
	PREC_AND
	PREC_BITOR
	PREC_BITXOR
	PREC_BITAND
	PREC_EQUALITY
	PREC_RELATIONAL
	PREC_SHIFT
	PREC_ADDITIVE
	PREC_MULTIPLICATIVE
	PREC_UNARY
	PREC_POSTFIX
	PREC_CALL
)

var binaryOps = map[TokenType]struct {
	prec int
	op   ast.Op
}{
	TOKEN_COMMA:      {PREC_COMMA, ast.OpComma},
	TOKEN_OR:         {PREC_OR, ast.OpOr},
	TOKEN_AND:        {PREC_AND, ast.OpAnd},
	TOKEN_BITOR:      {PREC_BITOR, ast.OpBitOr},
	TOKEN_BITXOR:     {PREC_BITXOR, ast.OpBitXor},
	TOKEN_BITAND:     {PREC_BITAND, ast.OpBitAnd},
	TOKEN_EQ:         {PREC_EQUALITY, ast.OpEq},
	TOKEN_NE:         {PREC_EQUALITY, ast.OpNe},
	TOKEN_EQ_STRICT:  {PREC_EQUALITY, ast.OpStrictEq},
	TOKEN_NE_STRICT:  {PREC_EQUALITY, ast.OpStrictNe},
	TOKEN_LT:         {PREC_RELATIONAL, ast.OpLt},
	TOKEN_GT:         {PREC_RELATIONAL, ast.OpGt},
	TOKEN_LE:         {PREC_RELATIONAL, ast.OpLe},
	TOKEN_GE:         {PREC_RELATIONAL, ast.OpGe},
	TOKEN_IN:         {PREC_RELATIONAL, ast.OpIn},
	TOKEN_INSTANCEOF: {PREC_RELATIONAL, ast.OpInstanceOf},
	TOKEN_SHL:        {PREC_SHIFT, ast.OpShl},
	TOKEN_SAR:        {PREC_SHIFT, ast.OpSar},
	TOKEN_SHR:        {PREC_SHIFT, ast.OpShr},
	TOKEN_PLUS:       {PREC_ADDITIVE, ast.OpAdd},
	TOKEN_MINUS:      {PREC_ADDITIVE, ast.OpSub},
	TOKEN_STAR:       {PREC_MULTIPLICATIVE, ast.OpMul},
	TOKEN_SLASH:      {PREC_MULTIPLICATIVE, ast.OpDiv},
	TOKEN_PERCENT:    {PREC_MULTIPLICATIVE, ast.OpMod},
}

var assignOps = map[TokenType]ast.Op{
	TOKEN_ASSIGN:        ast.OpAssign,
	TOKEN_ASSIGN_ADD:    ast.OpAdd,
	TOKEN_ASSIGN_SUB:    ast.OpSub,
	TOKEN_ASSIGN_MUL:    ast.OpMul,
	TOKEN_ASSIGN_DIV:    ast.OpDiv,
	TOKEN_ASSIGN_MOD:    ast.OpMod,
	TOKEN_ASSIGN_BITAND: ast.OpBitAnd,
	TOKEN_ASSIGN_BITOR:  ast.OpBitOr,
	TOKEN_ASSIGN_BITXOR: ast.OpBitXor,
	TOKEN_ASSIGN_SHL:    ast.OpShl,
	TOKEN_ASSIGN_SAR:    ast.OpSar,
	TOKEN_ASSIGN_SHR:    ast.OpShr,
}

var unaryOps = map[TokenType]ast.Op{
	TOKEN_NOT:    ast.OpNot,
	TOKEN_MINUS:  ast.OpNeg,
	TOKEN_PLUS:   ast.OpPlus,
	TOKEN_BITNOT: ast.OpBitNot,
	TOKEN_TYPEOF: ast.OpTypeOf,
	TOKEN_VOID:   ast.OpVoid,
	TOKEN_DELETE: ast.OpDelete,
}

// infixPrecedence returns the binding power of the current token as an
// infix operator, or PREC_LOWEST when it is not one
func (p *Parser) infixPrecedence() int {
	t := p.current.Type
	if t == TOKEN_IN && p.noIn {
		return PREC_LOWEST
	}
	if info, ok := binaryOps[t]; ok {
		return info.prec
	}
	if _, ok := assignOps[t]; ok {
		return PREC_ASSIGN
	}
	if t == TOKEN_QUESTION {
		return PREC_CONDITIONAL
	}
	return PREC_LOWEST
}

// ParseExpression parses an expression whose operators all bind tighter
// than prec
func (p *Parser) ParseExpression(prec int) (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		if err := p.lexer.Err(); err != nil {
			return nil, err
		}
		next := p.infixPrecedence()
		if next <= prec {
			return left, nil
		}
		pos := p.pos()
		switch t := p.current.Type; {
		case t == TOKEN_QUESTION:
			left, err = p.parseConditional(left, pos)
		case next == PREC_ASSIGN:
			left, err = p.parseAssignment(left, pos)
		default:
			left, err = p.parseBinary(left, pos)
		}
		if err != nil {
			return nil, err
		}
	}
}

// parseAssignmentExpression parses an expression without top-level commas
func (p *Parser) parseAssignmentExpression() (ast.Expression, error) {
	return p.ParseExpression(PREC_COMMA)
}

func (p *Parser) parseBinary(left ast.Expression, pos ast.Pos) (ast.Expression, error) {
	info := binaryOps[p.current.Type]
	p.nextToken()
	right, err := p.ParseExpression(info.prec)
	if err != nil {
		return nil, err
	}
	switch info.op {
	case ast.OpEq, ast.OpNe, ast.OpStrictEq, ast.OpStrictNe,
		ast.OpLt, ast.OpGt, ast.OpLe, ast.OpGe, ast.OpIn, ast.OpInstanceOf:
		e := &ast.Compare{Op: info.op, Left: left, Right: right}
		e.Pos = pos
		return e, nil
	}
	e := &ast.Binary{Op: info.op, Left: left, Right: right}
	e.Pos = pos
	return e, nil
}

func (p *Parser) parseConditional(cond ast.Expression, pos ast.Pos) (ast.Expression, error) {
	p.nextToken() // consume '?'
	saved := p.noIn
	p.noIn = false
	then, err := p.parseAssignmentExpression()
	p.noIn = saved
	if err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_COLON); err != nil {
		return nil, err
	}
	els, err := p.parseAssignmentExpression()
	if err != nil {
		return nil, err
	}
	e := &ast.Conditional{Cond: cond, Then: then, Else: els}
	e.Pos = pos
	return e, nil
}

func (p *Parser) parseAssignment(target ast.Expression, pos ast.Pos) (ast.Expression, error) {
	op := assignOps[p.current.Type]
	if !isAssignable(target) {
		return nil, p.errorf("invalid assignment target")
	}
	p.nextToken()
	// right associative
	val, err := p.ParseExpression(PREC_ASSIGN - 1)
	if err != nil {
		return nil, err
	}
	e := &ast.Assignment{Op: op, Target: target, Value: val}
	e.Pos = pos
	return e, nil
}

func isAssignable(e ast.Expression) bool {
	switch e.(type) {
	case *ast.VariableProxy, *ast.Property:
		return true
	}
	return false
}

func (p *Parser) parseUnary() (ast.Expression, error) {
	pos := p.pos()
	if op, ok := unaryOps[p.current.Type]; ok {
		p.nextToken()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == ast.OpNeg {
			if lit, ok := x.(*ast.Literal); ok && lit.Value.IsNumber() {
				lit.Value = value.NumberConstant(-lit.Value.Number())
				lit.Pos = pos
				return lit, nil
			}
		}
		e := &ast.Unary{Op: op, X: x}
		e.Pos = pos
		return e, nil
	}
	if p.at(TOKEN_INC) || p.at(TOKEN_DEC) {
		op := ast.OpInc
		if p.at(TOKEN_DEC) {
			op = ast.OpDec
		}
		p.nextToken()
		target, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if !isAssignable(target) {
			return nil, p.errorAt(p.current.Position, "invalid increment operand")
		}
		e := &ast.Count{Op: op, Prefix: true, Target: target}
		e.Pos = pos
		return e, nil
	}
	return p.parsePostfix()
}

func (p *Parser) parsePostfix() (ast.Expression, error) {
	pos := p.pos()
	x, err := p.parseLeftHandSide()
	if err != nil {
		return nil, err
	}
	if (p.at(TOKEN_INC) || p.at(TOKEN_DEC)) && !p.current.NewlineBefore {
		if !isAssignable(x) {
			return nil, p.errorf("invalid increment operand")
		}
		op := ast.OpInc
		if p.at(TOKEN_DEC) {
			op = ast.OpDec
		}
		p.nextToken()
		e := &ast.Count{Op: op, Target: x}
		e.Pos = pos
		return e, nil
	}
	return x, nil
}

// parseLeftHandSide parses member accesses, calls and new expressions
func (p *Parser) parseLeftHandSide() (ast.Expression, error) {
	var x ast.Expression
	var err error
	if p.at(TOKEN_NEW) {
		x, err = p.parseNew()
	} else {
		x, err = p.parsePrimary()
	}
	if err != nil {
		return nil, err
	}
	return p.parseSuffixes(x, true)
}

// parseSuffixes parses .name, [key] and, when calls is set, (args)
func (p *Parser) parseSuffixes(x ast.Expression, calls bool) (ast.Expression, error) {
	for {
		pos := p.pos()
		switch {
		case p.at(TOKEN_DOT):
			p.nextToken()
			if p.current.Type != TOKEN_IDENTIFIER && LookupIdent(p.current.Value) == TOKEN_IDENTIFIER {
				return nil, p.errorf("expected property name after '.'")
			}
			key := &ast.Literal{Value: value.StringConstant(p.current.Value)}
			key.Pos = p.pos()
			p.nextToken()
			prop := &ast.Property{Object: x, Key: key}
			prop.Pos = pos
			x = prop
		case p.at(TOKEN_LBRACKET):
			p.nextToken()
			saved := p.noIn
			p.noIn = false
			key, err := p.ParseExpression(PREC_LOWEST)
			p.noIn = saved
			if err != nil {
				return nil, err
			}
			if err := p.expect(TOKEN_RBRACKET); err != nil {
				return nil, err
			}
			prop := &ast.Property{Object: x, Key: canonicalKey(key)}
			prop.Pos = pos
			x = prop
		case calls && p.at(TOKEN_LPAREN):
			args, err := p.parseArguments()
			if err != nil {
				return nil, err
			}
			call := &ast.Call{Callee: x, Args: args}
			call.Pos = pos
			x = call
		default:
			return x, nil
		}
	}
}

// canonicalKey turns a string literal key that is an array index into a
// number literal, so o["3"] and o[3] are compiled alike
func canonicalKey(key ast.Expression) ast.Expression {
	lit, ok := key.(*ast.Literal)
	if !ok || !lit.Value.IsString() || !ast.IsArrayIndex(lit.Value.Str()) {
		return key
	}
	var n float64
	for _, c := range lit.Value.Str() {
		n = n*10 + float64(c-'0')
	}
	out := &ast.Literal{Value: value.NumberConstant(n)}
	out.Pos = lit.Pos
	return out
}

func (p *Parser) parseNew() (ast.Expression, error) {
	pos := p.pos()
	p.nextToken() // consume 'new'
	var callee ast.Expression
	var err error
	if p.at(TOKEN_NEW) {
		callee, err = p.parseNew()
	} else {
		callee, err = p.parsePrimary()
	}
	if err != nil {
		return nil, err
	}
	callee, err = p.parseSuffixes(callee, false)
	if err != nil {
		return nil, err
	}
	var args []ast.Expression
	if p.at(TOKEN_LPAREN) {
		if args, err = p.parseArguments(); err != nil {
			return nil, err
		}
	}
	e := &ast.CallNew{Callee: callee, Args: args}
	e.Pos = pos
	return e, nil
}

func (p *Parser) parseArguments() ([]ast.Expression, error) {
	p.nextToken() // consume '('
	saved := p.noIn
	p.noIn = false
	defer func() { p.noIn = saved }()
	var args []ast.Expression
	for !p.at(TOKEN_RPAREN) {
		arg, err := p.parseAssignmentExpression()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	return args, p.expect(TOKEN_RPAREN)
}

func (p *Parser) parsePrimary() (ast.Expression, error) {
	if err := p.lexer.Err(); err != nil {
		return nil, err
	}
	pos := p.pos()
	tok := p.current
	literal := func(c value.Constant) (ast.Expression, error) {
		p.nextToken()
		lit := &ast.Literal{Value: c}
		lit.Pos = pos
		return lit, nil
	}
	switch tok.Type {
	case TOKEN_NUMBER:
		return literal(value.NumberConstant(tok.Number))
	case TOKEN_STRING:
		return literal(value.StringConstant(tok.Literal))
	case TOKEN_TRUE:
		return literal(value.TrueConstant)
	case TOKEN_FALSE:
		return literal(value.FalseConstant)
	case TOKEN_NULL:
		return literal(value.NullConstant)
	case TOKEN_THIS:
		p.nextToken()
		e := &ast.This{}
		e.Pos = pos
		return e, nil
	case TOKEN_IDENTIFIER:
		p.nextToken()
		return p.newProxy(tok.Value, pos), nil
	case TOKEN_REGEXP:
		p.nextToken()
		e := &ast.RegExpLiteral{Pattern: tok.Value, Flags: tok.Literal}
		e.Pos = pos
		return e, nil
	case TOKEN_LPAREN:
		p.nextToken()
		saved := p.noIn
		p.noIn = false
		x, err := p.ParseExpression(PREC_LOWEST)
		p.noIn = saved
		if err != nil {
			return nil, err
		}
		return x, p.expect(TOKEN_RPAREN)
	case TOKEN_LBRACKET:
		return p.parseArrayLiteral()
	case TOKEN_LBRACE:
		return p.parseObjectLiteral()
	case TOKEN_FUNCTION:
		p.nextToken()
		name := ""
		if p.at(TOKEN_IDENTIFIER) {
			name = p.current.Value
			p.nextToken()
		}
		return p.parseFunctionLiteral(name, pos)
	}
	return nil, p.errorf("unexpected '%s'", p.describe())
}

func (p *Parser) parseArrayLiteral() (ast.Expression, error) {
	pos := p.pos()
	p.nextToken() // consume '['
	saved := p.noIn
	p.noIn = false
	defer func() { p.noIn = saved }()
	lit := &ast.ArrayLiteral{}
	lit.Pos = pos
	for !p.at(TOKEN_RBRACKET) {
		if p.at(TOKEN_COMMA) {
			p.nextToken()
			lit.Values = append(lit.Values, nil)
			continue
		}
		v, err := p.parseAssignmentExpression()
		if err != nil {
			return nil, err
		}
		lit.Values = append(lit.Values, v)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	return lit, p.expect(TOKEN_RBRACKET)
}

func (p *Parser) parseObjectLiteral() (ast.Expression, error) {
	pos := p.pos()
	p.nextToken() // consume '{'
	saved := p.noIn
	p.noIn = false
	defer func() { p.noIn = saved }()
	lit := &ast.ObjectLiteral{}
	lit.Pos = pos
	for !p.at(TOKEN_RBRACE) {
		var key value.Constant
		switch tok := p.current; {
		case tok.Type == TOKEN_STRING:
			key = value.StringConstant(tok.Literal)
		case tok.Type == TOKEN_NUMBER:
			key = value.StringConstant(value.FormatNumber(tok.Number))
		case tok.Type == TOKEN_IDENTIFIER || LookupIdent(tok.Value) != TOKEN_IDENTIFIER:
			key = value.StringConstant(tok.Value)
		default:
			return nil, p.errorf("expected property name, found '%s'", p.describe())
		}
		p.nextToken()
		if err := p.expect(TOKEN_COLON); err != nil {
			return nil, err
		}
		v, err := p.parseAssignmentExpression()
		if err != nil {
			return nil, err
		}
		lit.Properties = append(lit.Properties, &ast.ObjectProperty{Key: key, Value: v})
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	return lit, p.expect(TOKEN_RBRACE)
}

// parseFunctionLiteral parses the parameter list and body. The current
// token is '('.
func (p *Parser) parseFunctionLiteral(name string, pos ast.Pos) (*ast.FunctionLiteral, error) {
	lit := &ast.FunctionLiteral{Name: name}
	lit.Pos = pos
	f := p.enterFunction(lit, ast.FunctionScope)
	defer p.leaveFunction(f)

	savedNoIn, savedLabels := p.noIn, p.pendingLabels
	p.noIn, p.pendingLabels = false, nil
	defer func() { p.noIn, p.pendingLabels = savedNoIn, savedLabels }()

	if err := p.expect(TOKEN_LPAREN); err != nil {
		return nil, err
	}
	for !p.at(TOKEN_RPAREN) {
		param, err := p.identifier()
		if err != nil {
			return nil, err
		}
		p.declareParameter(param)
		if !p.accept(TOKEN_COMMA) {
			break
		}
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_LBRACE); err != nil {
		return nil, err
	}
	body, err := p.parseStatementList(TOKEN_RBRACE)
	if err != nil {
		return nil, err
	}
	lit.Body = body
	return lit, p.expect(TOKEN_RBRACE)
}
