package parser

import (
	"strconv"
	"strings"
)

// Lexer tokenizes script source code
type Lexer struct {
	input        string
	position     int  // current position in input (points to current char)
	readPosition int  // current reading position in input (after current char)
	ch           byte // current char under examination
	line         int
	column       int

	newline bool      // a line terminator was skipped before the next token
	last    TokenType // type of the previously returned token
	err     error
}

// NewLexer creates a new Lexer instance
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		last:  TOKEN_ILLEGAL,
	}
	l.readChar()
	return l
}

// Err returns the first lexical error, if any
func (l *Lexer) Err() error { return l.err }

// readChar reads the next character and advances position
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0 // ASCII NUL
	} else {
		l.ch = l.input[l.readPosition]
	}
	l.position = l.readPosition
	l.readPosition++
	l.column++
}

// peekChar returns the next character without advancing
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

// skipTrivia skips whitespace and comments, noting line terminators
func (l *Lexer) skipTrivia() {
	for {
		switch {
		case l.ch == '\n':
			l.newline = true
			l.readChar()
		case l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\f' || l.ch == '\v':
			l.readChar()
		case l.ch == '/' && l.peekChar() == '/':
			for l.ch != '\n' && l.ch != 0 {
				l.readChar()
			}
		case l.ch == '/' && l.peekChar() == '*':
			l.readChar()
			l.readChar()
			for !(l.ch == '*' && l.peekChar() == '/') {
				if l.ch == 0 {
					l.fail("unterminated comment")
					return
				}
				if l.ch == '\n' {
					l.newline = true
				}
				l.readChar()
			}
			l.readChar()
			l.readChar()
		default:
			return
		}
	}
}

func (l *Lexer) fail(msg string) {
	if l.err == nil {
		l.err = &Error{Pos: Position{Line: l.line, Column: l.column, Offset: l.position}, Msg: msg}
	}
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	l.newline = false
	l.skipTrivia()

	tok := Token{
		Position:      Position{Line: l.line, Column: l.column, Offset: l.position},
		NewlineBefore: l.newline,
	}
	start := l.position

	switch {
	case l.ch == 0:
		tok.Type = TOKEN_EOF
	case isLetter(l.ch):
		for isLetter(l.ch) || isDigit(l.ch) {
			l.readChar()
		}
		tok.Value = l.input[start:l.position]
		tok.Type = LookupIdent(tok.Value)
	case isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())):
		l.readNumber(&tok)
	case l.ch == '"' || l.ch == '\'':
		l.readString(&tok)
	case l.ch == '/' && !l.last.endsOperand():
		l.readRegExp(&tok)
	default:
		l.readOperator(&tok)
	}
	if tok.Value == "" {
		tok.Value = l.input[start:l.position]
	}
	l.last = tok.Type
	return tok
}

// operators lists punctuators longest first so the first prefix match wins
var operators = []struct {
	text string
	tok  TokenType
}{
	{">>>=", TOKEN_ASSIGN_SHR},
	{"===", TOKEN_EQ_STRICT}, {"!==", TOKEN_NE_STRICT}, {">>>", TOKEN_SHR},
	{"<<=", TOKEN_ASSIGN_SHL}, {">>=", TOKEN_ASSIGN_SAR},
	{"==", TOKEN_EQ}, {"!=", TOKEN_NE}, {"<=", TOKEN_LE}, {">=", TOKEN_GE},
	{"&&", TOKEN_AND}, {"||", TOKEN_OR}, {"++", TOKEN_INC}, {"--", TOKEN_DEC},
	{"<<", TOKEN_SHL}, {">>", TOKEN_SAR},
	{"+=", TOKEN_ASSIGN_ADD}, {"-=", TOKEN_ASSIGN_SUB}, {"*=", TOKEN_ASSIGN_MUL},
	{"/=", TOKEN_ASSIGN_DIV}, {"%=", TOKEN_ASSIGN_MOD}, {"&=", TOKEN_ASSIGN_BITAND},
	{"|=", TOKEN_ASSIGN_BITOR}, {"^=", TOKEN_ASSIGN_BITXOR},
	{"+", TOKEN_PLUS}, {"-", TOKEN_MINUS}, {"*", TOKEN_STAR}, {"/", TOKEN_SLASH},
	{"%", TOKEN_PERCENT}, {"<", TOKEN_LT}, {">", TOKEN_GT}, {"!", TOKEN_NOT},
	{"&", TOKEN_BITAND}, {"|", TOKEN_BITOR}, {"^", TOKEN_BITXOR}, {"~", TOKEN_BITNOT},
	{"?", TOKEN_QUESTION}, {"=", TOKEN_ASSIGN},
	{"(", TOKEN_LPAREN}, {")", TOKEN_RPAREN}, {"{", TOKEN_LBRACE}, {"}", TOKEN_RBRACE},
	{"[", TOKEN_LBRACKET}, {"]", TOKEN_RBRACKET}, {",", TOKEN_COMMA},
	{";", TOKEN_SEMICOLON}, {".", TOKEN_DOT}, {":", TOKEN_COLON},
}

func (l *Lexer) readOperator(tok *Token) {
	rest := l.input[l.position:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op.text) {
			tok.Type = op.tok
			for range op.text {
				l.readChar()
			}
			return
		}
	}
	tok.Type = TOKEN_ILLEGAL
	l.fail("unexpected character " + strconv.QuoteRune(rune(l.ch)))
	l.readChar()
}

func (l *Lexer) readNumber(tok *Token) {
	start := l.position
	tok.Type = TOKEN_NUMBER
	if l.ch == '0' && (l.peekChar() == 'x' || l.peekChar() == 'X') {
		l.readChar()
		l.readChar()
		for isHexDigit(l.ch) {
			l.readChar()
		}
		n, err := strconv.ParseUint(l.input[start+2:l.position], 16, 64)
		if err != nil {
			l.fail("malformed hex literal")
		}
		tok.Number = float64(n)
		return
	}
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			l.fail("malformed exponent")
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if isLetter(l.ch) {
		l.fail("identifier starts immediately after numeric literal")
	}
	n, err := strconv.ParseFloat(l.input[start:l.position], 64)
	if err != nil && n == 0 {
		l.fail("malformed number")
	}
	tok.Number = n
}

func (l *Lexer) readRegExp(tok *Token) {
	tok.Type = TOKEN_REGEXP
	l.readChar() // skip opening /
	start := l.position
	inClass := false
	for l.ch != '/' || inClass {
		switch l.ch {
		case 0, '\n':
			l.fail("unterminated regular expression")
			return
		case '\\':
			l.readChar()
		case '[':
			inClass = true
		case ']':
			inClass = false
		}
		l.readChar()
	}
	pattern := l.input[start:l.position]
	l.readChar() // skip closing /
	flagStart := l.position
	for isLetter(l.ch) {
		l.readChar()
	}
	tok.Value = pattern
	tok.Literal = l.input[flagStart:l.position]
}

func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_' || ch == '$'
}

func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}

func isHexDigit(ch byte) bool {
	return isDigit(ch) || 'a' <= ch && ch <= 'f' || 'A' <= ch && ch <= 'F'
}
