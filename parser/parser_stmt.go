package parser

import (
	"kestrel/ast"
)

// ParseProgram parses a complete script. The result is the top-level
// function literal with every variable reference resolved.
func (p *Parser) ParseProgram() (*ast.FunctionLiteral, error) {
	lit := &ast.FunctionLiteral{}
	lit.Pos = p.pos()
	f := p.enterFunction(lit, ast.GlobalScope)

	body, err := p.parseStatementList(TOKEN_EOF)
	if err != nil {
		return nil, err
	}
	if err := p.lexer.Err(); err != nil {
		return nil, err
	}
	if !p.at(TOKEN_EOF) {
		return nil, p.errorf("unexpected '%s'", p.describe())
	}
	lit.Body = body
	p.leaveFunction(f)
	p.resolve()
	return lit, nil
}

// parseStatementList parses statements up to (not including) end
func (p *Parser) parseStatementList(end ...TokenType) ([]ast.Statement, error) {
	var statements []ast.Statement
	for !p.at(TOKEN_EOF) && !p.atAny(end) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		statements = append(statements, stmt)
	}
	p.markInitializationBlocks(statements)
	return statements, nil
}

func (p *Parser) atAny(types []TokenType) bool {
	for _, t := range types {
		if p.current.Type == t {
			return true
		}
	}
	return false
}

// parseStatement parses a single statement
func (p *Parser) parseStatement() (ast.Statement, error) {
	if err := p.lexer.Err(); err != nil {
		return nil, err
	}
	switch p.current.Type {
	case TOKEN_LBRACE:
		return p.parseBlock()
	case TOKEN_VAR:
		decl, err := p.parseVarDecl()
		if err != nil {
			return nil, err
		}
		return decl, p.consumeSemicolon()
	case TOKEN_FUNCTION:
		return p.parseFunctionDeclaration()
	case TOKEN_SEMICOLON:
		stmt := &ast.Empty{}
		stmt.Pos = p.pos()
		p.nextToken()
		return stmt, nil
	case TOKEN_IF:
		return p.parseIfStatement()
	case TOKEN_DO:
		return p.parseDoWhileStatement()
	case TOKEN_WHILE:
		return p.parseWhileStatement()
	case TOKEN_FOR:
		return p.parseForStatement()
	case TOKEN_SWITCH:
		return p.parseSwitchStatement()
	case TOKEN_CONTINUE:
		return p.parseContinueStatement()
	case TOKEN_BREAK:
		return p.parseBreakStatement()
	case TOKEN_RETURN:
		return p.parseReturnStatement()
	case TOKEN_THROW:
		return p.parseThrowStatement()
	case TOKEN_TRY:
		return p.parseTryStatement()
	case TOKEN_WITH:
		return p.parseWithStatement()
	case TOKEN_DEBUGGER:
		stmt := &ast.Debugger{}
		stmt.Pos = p.pos()
		p.nextToken()
		return stmt, p.consumeSemicolon()
	case TOKEN_IDENTIFIER:
		if p.peek.Type == TOKEN_COLON {
			return p.parseLabeledStatement()
		}
	}
	return p.parseExpressionStatement()
}

// consumeSemicolon ends a statement, inserting the semicolon where a line
// break, a closing brace or the end of input allows it
func (p *Parser) consumeSemicolon() error {
	if p.accept(TOKEN_SEMICOLON) {
		return nil
	}
	if p.at(TOKEN_RBRACE) || p.at(TOKEN_EOF) || p.current.NewlineBefore {
		return p.lexer.Err()
	}
	return p.errorf("expected ';', found '%s'", p.describe())
}

func (p *Parser) parseBlock() (*ast.Block, error) {
	block := &ast.Block{}
	block.Pos = p.pos()
	if err := p.expect(TOKEN_LBRACE); err != nil {
		return nil, err
	}
	body, err := p.parseStatementList(TOKEN_RBRACE)
	if err != nil {
		return nil, err
	}
	block.Statements = body
	return block, p.expect(TOKEN_RBRACE)
}

func (p *Parser) parseVarDecl() (*ast.VarDecl, error) {
	decl := &ast.VarDecl{}
	decl.Pos = p.pos()
	p.nextToken() // consume 'var'
	for {
		pos := p.pos()
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		p.declareVar(name)
		b := &ast.Binding{Name: p.newProxy(name, pos)}
		if p.accept(TOKEN_ASSIGN) {
			if b.Init, err = p.parseAssignmentExpression(); err != nil {
				return nil, err
			}
		}
		decl.Bindings = append(decl.Bindings, b)
		if !p.accept(TOKEN_COMMA) {
			return decl, nil
		}
	}
}

func (p *Parser) parseFunctionDeclaration() (ast.Statement, error) {
	pos := p.pos()
	p.nextToken() // consume 'function'
	namePos := p.pos()
	name, err := p.identifier()
	if err != nil {
		return nil, err
	}
	p.declareVar(name)
	// The name binds in the function scope even inside a with block.
	proxy := &ast.VariableProxy{Name: name}
	proxy.Pos = namePos
	p.fn.refs = append(p.fn.refs, ref{proxy: proxy, env: p.fn.env})

	enclosing := p.fn.lit
	lit, err := p.parseFunctionLiteral(name, pos)
	if err != nil {
		return nil, err
	}
	decl := &ast.FunctionDecl{Name: proxy, Fn: lit}
	decl.Pos = pos
	enclosing.Declarations = append(enclosing.Declarations, decl)
	return decl, nil
}

func (p *Parser) parseExpressionStatement() (ast.Statement, error) {
	stmt := &ast.ExprStmt{}
	stmt.Pos = p.pos()
	x, err := p.ParseExpression(PREC_LOWEST)
	if err != nil {
		return nil, err
	}
	stmt.X = x
	return stmt, p.consumeSemicolon()
}

// parseCondition parses a parenthesised expression
func (p *Parser) parseCondition() (ast.Expression, error) {
	if err := p.expect(TOKEN_LPAREN); err != nil {
		return nil, err
	}
	cond, err := p.ParseExpression(PREC_LOWEST)
	if err != nil {
		return nil, err
	}
	return cond, p.expect(TOKEN_RPAREN)
}

func (p *Parser) parseIfStatement() (ast.Statement, error) {
	stmt := &ast.If{}
	stmt.Pos = p.pos()
	p.nextToken() // consume 'if'
	var err error
	if stmt.Cond, err = p.parseCondition(); err != nil {
		return nil, err
	}
	if stmt.Then, err = p.parseStatement(); err != nil {
		return nil, err
	}
	if p.accept(TOKEN_ELSE) {
		if stmt.Else, err = p.parseStatement(); err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

func (p *Parser) takeLabels() []string {
	labels := p.pendingLabels
	p.pendingLabels = nil
	return labels
}

func (p *Parser) pushBreakable(stmt ast.Statement, labels []string, iteration bool) {
	p.fn.breakables = append(p.fn.breakables, &breakable{
		stmt:      stmt,
		labels:    labels,
		iteration: iteration,
		implicit:  iteration || stmt.Kind() == ast.KindSwitch,
	})
}

func (p *Parser) popBreakable() {
	p.fn.breakables = p.fn.breakables[:len(p.fn.breakables)-1]
}

// parseLoopBody parses the body of an iteration statement registered as a
// break and continue target
func (p *Parser) parseLoopBody(loop ast.Statement, labels []string) (ast.Statement, error) {
	p.pushBreakable(loop, labels, true)
	defer p.popBreakable()
	return p.parseStatement()
}

func (p *Parser) parseDoWhileStatement() (ast.Statement, error) {
	stmt := &ast.DoWhile{}
	stmt.Pos = p.pos()
	stmt.Names = p.takeLabels()
	p.nextToken() // consume 'do'
	var err error
	if stmt.Body, err = p.parseLoopBody(stmt, stmt.Names); err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_WHILE); err != nil {
		return nil, err
	}
	if stmt.Cond, err = p.parseCondition(); err != nil {
		return nil, err
	}
	p.accept(TOKEN_SEMICOLON)
	return stmt, nil
}

func (p *Parser) parseWhileStatement() (ast.Statement, error) {
	stmt := &ast.While{}
	stmt.Pos = p.pos()
	stmt.Names = p.takeLabels()
	p.nextToken() // consume 'while'
	var err error
	if stmt.Cond, err = p.parseCondition(); err != nil {
		return nil, err
	}
	if stmt.Body, err = p.parseLoopBody(stmt, stmt.Names); err != nil {
		return nil, err
	}
	return stmt, nil
}

// parseForStatement parses both for (;;) and for-in loops
func (p *Parser) parseForStatement() (ast.Statement, error) {
	pos := p.pos()
	labels := p.takeLabels()
	p.nextToken() // consume 'for'
	if err := p.expect(TOKEN_LPAREN); err != nil {
		return nil, err
	}

	var init ast.Statement
	switch {
	case p.at(TOKEN_VAR):
		p.noIn = true
		decl, err := p.parseVarDecl()
		p.noIn = false
		if err != nil {
			return nil, err
		}
		if p.at(TOKEN_IN) {
			if len(decl.Bindings) != 1 || decl.Bindings[0].Init != nil {
				return nil, p.errorf("invalid for-in declaration")
			}
			return p.parseForIn(pos, labels, decl.Bindings[0].Name)
		}
		init = decl
	case !p.at(TOKEN_SEMICOLON):
		stmtPos := p.pos()
		p.noIn = true
		x, err := p.ParseExpression(PREC_LOWEST)
		p.noIn = false
		if err != nil {
			return nil, err
		}
		if p.at(TOKEN_IN) {
			if !isAssignable(x) {
				return nil, p.errorf("invalid for-in target")
			}
			return p.parseForIn(pos, labels, x)
		}
		es := &ast.ExprStmt{X: x}
		es.Pos = stmtPos
		init = es
	}

	stmt := &ast.For{Init: init}
	stmt.Pos = pos
	stmt.Names = labels
	if err := p.expect(TOKEN_SEMICOLON); err != nil {
		return nil, err
	}
	if !p.at(TOKEN_SEMICOLON) {
		cond, err := p.ParseExpression(PREC_LOWEST)
		if err != nil {
			return nil, err
		}
		stmt.Cond = cond
	}
	if err := p.expect(TOKEN_SEMICOLON); err != nil {
		return nil, err
	}
	if !p.at(TOKEN_RPAREN) {
		nextPos := p.pos()
		x, err := p.ParseExpression(PREC_LOWEST)
		if err != nil {
			return nil, err
		}
		next := &ast.ExprStmt{X: x}
		next.Pos = nextPos
		stmt.Next = next
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}
	body, err := p.parseLoopBody(stmt, labels)
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

func (p *Parser) parseForIn(pos ast.Pos, labels []string, each ast.Expression) (ast.Statement, error) {
	p.nextToken() // consume 'in'
	stmt := &ast.ForIn{Each: each}
	stmt.Pos = pos
	stmt.Names = labels
	var err error
	if stmt.Enumerable, err = p.ParseExpression(PREC_LOWEST); err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_RPAREN); err != nil {
		return nil, err
	}
	if stmt.Body, err = p.parseLoopBody(stmt, labels); err != nil {
		return nil, err
	}
	return stmt, nil
}

func (p *Parser) parseSwitchStatement() (ast.Statement, error) {
	stmt := &ast.Switch{}
	stmt.Pos = p.pos()
	stmt.Names = p.takeLabels()
	p.nextToken() // consume 'switch'
	var err error
	if stmt.Tag, err = p.parseCondition(); err != nil {
		return nil, err
	}
	if err := p.expect(TOKEN_LBRACE); err != nil {
		return nil, err
	}
	p.pushBreakable(stmt, stmt.Names, false)
	defer p.popBreakable()

	hasDefault := false
	for !p.at(TOKEN_RBRACE) {
		clause := &ast.CaseClause{Pos: p.pos()}
		switch {
		case p.accept(TOKEN_CASE):
			if clause.Label, err = p.ParseExpression(PREC_LOWEST); err != nil {
				return nil, err
			}
		case p.at(TOKEN_DEFAULT):
			if hasDefault {
				return nil, p.errorf("more than one default clause in switch")
			}
			hasDefault = true
			p.nextToken()
		default:
			return nil, p.errorf("expected 'case' or 'default', found '%s'", p.describe())
		}
		if err := p.expect(TOKEN_COLON); err != nil {
			return nil, err
		}
		if clause.Body, err = p.parseStatementList(TOKEN_CASE, TOKEN_DEFAULT, TOKEN_RBRACE); err != nil {
			return nil, err
		}
		stmt.Cases = append(stmt.Cases, clause)
	}
	return stmt, p.expect(TOKEN_RBRACE)
}

func (p *Parser) parseLabeledStatement() (ast.Statement, error) {
	pos := p.pos()
	for p.at(TOKEN_IDENTIFIER) && p.peek.Type == TOKEN_COLON {
		name := p.current.Value
		pending := &breakable{labels: p.pendingLabels}
		for _, b := range append(p.fn.breakables, pending) {
			if b.hasLabel(name) {
				return nil, p.errorf("label '%s' has already been declared", name)
			}
		}
		p.pendingLabels = append(p.pendingLabels, name)
		p.nextToken() // label
		p.nextToken() // ':'
	}
	switch p.current.Type {
	case TOKEN_DO, TOKEN_WHILE, TOKEN_FOR, TOKEN_SWITCH:
		return p.parseStatement()
	}
	stmt := &ast.Labeled{}
	stmt.Pos = pos
	stmt.Names = p.takeLabels()
	p.pushBreakable(stmt, stmt.Names, false)
	defer p.popBreakable()
	body, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	stmt.Body = body
	return stmt, nil
}

// optionalLabel reads the label of a break or continue on the same line
func (p *Parser) optionalLabel() string {
	if p.at(TOKEN_IDENTIFIER) && !p.current.NewlineBefore {
		name := p.current.Value
		p.nextToken()
		return name
	}
	return ""
}

func (p *Parser) parseContinueStatement() (ast.Statement, error) {
	stmt := &ast.Continue{}
	stmt.Pos = p.pos()
	p.nextToken() // consume 'continue'
	label := p.optionalLabel()
	for i := len(p.fn.breakables) - 1; i >= 0; i-- {
		b := p.fn.breakables[i]
		if label == "" && b.iteration {
			stmt.Target = b.stmt
			break
		}
		if label != "" && b.hasLabel(label) {
			if !b.iteration {
				return nil, p.errorf("continue target '%s' is not a loop", label)
			}
			stmt.Target = b.stmt
			break
		}
	}
	if stmt.Target == nil {
		if label != "" {
			return nil, p.errorf("undefined label '%s'", label)
		}
		return nil, p.errorf("continue outside of a loop")
	}
	return stmt, p.consumeSemicolon()
}

func (p *Parser) parseBreakStatement() (ast.Statement, error) {
	stmt := &ast.Break{}
	stmt.Pos = p.pos()
	p.nextToken() // consume 'break'
	label := p.optionalLabel()
	for i := len(p.fn.breakables) - 1; i >= 0; i-- {
		b := p.fn.breakables[i]
		if (label == "" && b.implicit) || (label != "" && b.hasLabel(label)) {
			stmt.Target = b.stmt
			break
		}
	}
	if stmt.Target == nil {
		if label != "" {
			return nil, p.errorf("undefined label '%s'", label)
		}
		return nil, p.errorf("break outside of a loop or switch")
	}
	return stmt, p.consumeSemicolon()
}

func (p *Parser) parseReturnStatement() (ast.Statement, error) {
	stmt := &ast.Return{}
	stmt.Pos = p.pos()
	if p.fn.scope.IsGlobal() {
		return nil, p.errorf("return outside of a function")
	}
	p.nextToken() // consume 'return'
	if !p.at(TOKEN_SEMICOLON) && !p.at(TOKEN_RBRACE) && !p.at(TOKEN_EOF) && !p.current.NewlineBefore {
		x, err := p.ParseExpression(PREC_LOWEST)
		if err != nil {
			return nil, err
		}
		stmt.Value = x
	}
	return stmt, p.consumeSemicolon()
}

func (p *Parser) parseThrowStatement() (ast.Statement, error) {
	stmt := &ast.Throw{}
	stmt.Pos = p.pos()
	p.nextToken() // consume 'throw'
	if p.current.NewlineBefore {
		return nil, p.errorf("line break after throw")
	}
	x, err := p.ParseExpression(PREC_LOWEST)
	if err != nil {
		return nil, err
	}
	stmt.Exception = x
	return stmt, p.consumeSemicolon()
}

// parseTryStatement parses try/catch, try/finally and try/catch/finally.
// The last form becomes a try/catch nested in a try/finally.
func (p *Parser) parseTryStatement() (ast.Statement, error) {
	pos := p.pos()
	p.nextToken() // consume 'try'
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}

	var result ast.Statement
	if p.at(TOKEN_CATCH) {
		p.nextToken()
		if err := p.expect(TOKEN_LPAREN); err != nil {
			return nil, err
		}
		namePos := p.pos()
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		if err := p.expect(TOKEN_RPAREN); err != nil {
			return nil, err
		}
		v := p.pushCatch(name)
		handler, err := p.parseBlock()
		p.popEnv()
		if err != nil {
			return nil, err
		}
		catchVar := &ast.VariableProxy{Name: name, Var: v}
		catchVar.Pos = namePos
		tc := &ast.TryCatch{Try: body, CatchVar: catchVar, Catch: handler}
		tc.Pos = pos
		result = tc
	}

	if p.accept(TOKEN_FINALLY) {
		finally, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		if result != nil {
			body = &ast.Block{Statements: []ast.Statement{result}}
			body.Pos = pos
		}
		tf := &ast.TryFinally{Try: body, Finally: finally}
		tf.Pos = pos
		result = tf
	}
	if result == nil {
		return nil, p.errorf("missing catch or finally after try")
	}
	return result, nil
}

func (p *Parser) parseWithStatement() (ast.Statement, error) {
	stmt := &ast.With{}
	stmt.Pos = p.pos()
	p.nextToken() // consume 'with'
	var err error
	if stmt.Object, err = p.parseCondition(); err != nil {
		return nil, err
	}
	p.pushWith()
	stmt.Body, err = p.parseStatement()
	p.popEnv()
	if err != nil {
		return nil, err
	}
	return stmt, nil
}

// markInitializationBlocks brackets runs of named property stores to the
// same receiver, e.g. o.a = 1; o.b = 2; so code generation can switch the
// receiver to dictionary mode for the run.
func (p *Parser) markInitializationBlocks(stmts []ast.Statement) {
	min := p.config.InitBlockThreshold
	if min <= 0 {
		return
	}
	for i := 0; i < len(stmts); {
		recv := initReceiver(stmts[i])
		if recv == "" {
			i++
			continue
		}
		j := i + 1
		for j < len(stmts) && initReceiver(stmts[j]) == recv {
			j++
		}
		if j-i >= min {
			stmts[i].(*ast.ExprStmt).X.(*ast.Assignment).BlockStart = true
			stmts[j-1].(*ast.ExprStmt).X.(*ast.Assignment).BlockEnd = true
		}
		i = j
	}
}

// initReceiver returns the receiver name of a statement of the form
// x.name = value, or "" for any other statement
func initReceiver(s ast.Statement) string {
	es, ok := s.(*ast.ExprStmt)
	if !ok {
		return ""
	}
	as, ok := es.X.(*ast.Assignment)
	if !ok || as.Op != ast.OpAssign {
		return ""
	}
	prop, ok := as.Target.(*ast.Property)
	if !ok || !prop.IsNamed() {
		return ""
	}
	switch obj := prop.Object.(type) {
	case *ast.VariableProxy:
		return obj.Name
	case *ast.This:
		return "this"
	}
	return ""
}
