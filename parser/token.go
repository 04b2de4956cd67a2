package parser

// TokenType represents different types of lexical tokens
type TokenType int

const (
	// Special tokens
	TOKEN_EOF TokenType = iota
	TOKEN_ILLEGAL

	// Literals
	TOKEN_NUMBER // 42, 3.14, 0x1f
	TOKEN_STRING // "hello", 'hello'
	TOKEN_REGEXP // /ab+c/g
	TOKEN_IDENTIFIER

	// Keywords
	TOKEN_VAR
	TOKEN_FUNCTION
	TOKEN_IF
	TOKEN_ELSE
	TOKEN_DO
	TOKEN_WHILE
	TOKEN_FOR
	TOKEN_IN
	TOKEN_SWITCH
	TOKEN_CASE
	TOKEN_DEFAULT
	TOKEN_BREAK
	TOKEN_CONTINUE
	TOKEN_RETURN
	TOKEN_THROW
	TOKEN_TRY
	TOKEN_CATCH
	TOKEN_FINALLY
	TOKEN_WITH
	TOKEN_NEW
	TOKEN_DELETE
	TOKEN_TYPEOF
	TOKEN_VOID
	TOKEN_INSTANCEOF
	TOKEN_THIS
	TOKEN_NULL
	TOKEN_TRUE
	TOKEN_FALSE
	TOKEN_DEBUGGER

	// Operators
	TOKEN_PLUS      // +
	TOKEN_MINUS     // -
	TOKEN_STAR      // *
	TOKEN_SLASH     // /
	TOKEN_PERCENT   // %
	TOKEN_INC       // ++
	TOKEN_DEC       // --
	TOKEN_EQ        // ==
	TOKEN_NE        // !=
	TOKEN_EQ_STRICT // ===
	TOKEN_NE_STRICT // !==
	TOKEN_LT        // <
	TOKEN_GT        // >
	TOKEN_LE        // <=
	TOKEN_GE        // >=
	TOKEN_AND       // &&
	TOKEN_OR        // ||
	TOKEN_NOT       // !
	TOKEN_BITAND    // &
	TOKEN_BITOR     // |
	TOKEN_BITXOR    // ^
	TOKEN_BITNOT    // ~
	TOKEN_SHL       // <<
	TOKEN_SAR       // >>
	TOKEN_SHR       // >>>
	TOKEN_QUESTION  // ?

	// Assignment operators
	TOKEN_ASSIGN         // =
	TOKEN_ASSIGN_ADD     // +=
	TOKEN_ASSIGN_SUB     // -=
	TOKEN_ASSIGN_MUL     // *=
	TOKEN_ASSIGN_DIV     // /=
	TOKEN_ASSIGN_MOD     // %=
	TOKEN_ASSIGN_BITAND  // &=
	TOKEN_ASSIGN_BITOR   // |=
	TOKEN_ASSIGN_BITXOR  // ^=
	TOKEN_ASSIGN_SHL     // <<=
	TOKEN_ASSIGN_SAR     // >>=
	TOKEN_ASSIGN_SHR     // >>>=

	// Delimiters
	TOKEN_LPAREN    // (
	TOKEN_RPAREN    // )
	TOKEN_LBRACE    // {
	TOKEN_RBRACE    // }
	TOKEN_LBRACKET  // [
	TOKEN_RBRACKET  // ]
	TOKEN_COMMA     // ,
	TOKEN_SEMICOLON // ;
	TOKEN_DOT       // .
	TOKEN_COLON     // :
)

var tokenNames = map[TokenType]string{
	TOKEN_EOF:           "EOF",
	TOKEN_ILLEGAL:       "ILLEGAL",
	TOKEN_NUMBER:        "NUMBER",
	TOKEN_STRING:        "STRING",
	TOKEN_REGEXP:        "REGEXP",
	TOKEN_IDENTIFIER:    "IDENTIFIER",
	TOKEN_VAR:           "var",
	TOKEN_FUNCTION:      "function",
	TOKEN_IF:            "if",
	TOKEN_ELSE:          "else",
	TOKEN_DO:            "do",
	TOKEN_WHILE:         "while",
	TOKEN_FOR:           "for",
	TOKEN_IN:            "in",
	TOKEN_SWITCH:        "switch",
	TOKEN_CASE:          "case",
	TOKEN_DEFAULT:       "default",
	TOKEN_BREAK:         "break",
	TOKEN_CONTINUE:      "continue",
	TOKEN_RETURN:        "return",
	TOKEN_THROW:         "throw",
	TOKEN_TRY:           "try",
	TOKEN_CATCH:         "catch",
	TOKEN_FINALLY:       "finally",
	TOKEN_WITH:          "with",
	TOKEN_NEW:           "new",
	TOKEN_DELETE:        "delete",
	TOKEN_TYPEOF:        "typeof",
	TOKEN_VOID:          "void",
	TOKEN_INSTANCEOF:    "instanceof",
	TOKEN_THIS:          "this",
	TOKEN_NULL:          "null",
	TOKEN_TRUE:          "true",
	TOKEN_FALSE:         "false",
	TOKEN_DEBUGGER:      "debugger",
	TOKEN_PLUS:          "+",
	TOKEN_MINUS:         "-",
	TOKEN_STAR:          "*",
	TOKEN_SLASH:         "/",
	TOKEN_PERCENT:       "%",
	TOKEN_INC:           "++",
	TOKEN_DEC:           "--",
	TOKEN_EQ:            "==",
	TOKEN_NE:            "!=",
	TOKEN_EQ_STRICT:     "===",
	TOKEN_NE_STRICT:     "!==",
	TOKEN_LT:            "<",
	TOKEN_GT:            ">",
	TOKEN_LE:            "<=",
	TOKEN_GE:            ">=",
	TOKEN_AND:           "&&",
	TOKEN_OR:            "||",
	TOKEN_NOT:           "!",
	TOKEN_BITAND:        "&",
	TOKEN_BITOR:         "|",
	TOKEN_BITXOR:        "^",
	TOKEN_BITNOT:        "~",
	TOKEN_SHL:           "<<",
	TOKEN_SAR:           ">>",
	TOKEN_SHR:           ">>>",
	TOKEN_QUESTION:      "?",
	TOKEN_ASSIGN:        "=",
	TOKEN_ASSIGN_ADD:    "+=",
	TOKEN_ASSIGN_SUB:    "-=",
	TOKEN_ASSIGN_MUL:    "*=",
	TOKEN_ASSIGN_DIV:    "/=",
	TOKEN_ASSIGN_MOD:    "%=",
	TOKEN_ASSIGN_BITAND: "&=",
	TOKEN_ASSIGN_BITOR:  "|=",
	TOKEN_ASSIGN_BITXOR: "^=",
	TOKEN_ASSIGN_SHL:    "<<=",
	TOKEN_ASSIGN_SAR:    ">>=",
	TOKEN_ASSIGN_SHR:    ">>>=",
	TOKEN_LPAREN:        "(",
	TOKEN_RPAREN:        ")",
	TOKEN_LBRACE:        "{",
	TOKEN_RBRACE:        "}",
	TOKEN_LBRACKET:      "[",
	TOKEN_RBRACKET:      "]",
	TOKEN_COMMA:         ",",
	TOKEN_SEMICOLON:     ";",
	TOKEN_DOT:           ".",
	TOKEN_COLON:         ":",
}

// String returns a string representation of the token type
func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

var keywords = map[string]TokenType{
	"var":        TOKEN_VAR,
	"function":   TOKEN_FUNCTION,
	"if":         TOKEN_IF,
	"else":       TOKEN_ELSE,
	"do":         TOKEN_DO,
	"while":      TOKEN_WHILE,
	"for":        TOKEN_FOR,
	"in":         TOKEN_IN,
	"switch":     TOKEN_SWITCH,
	"case":       TOKEN_CASE,
	"default":    TOKEN_DEFAULT,
	"break":      TOKEN_BREAK,
	"continue":   TOKEN_CONTINUE,
	"return":     TOKEN_RETURN,
	"throw":      TOKEN_THROW,
	"try":        TOKEN_TRY,
	"catch":      TOKEN_CATCH,
	"finally":    TOKEN_FINALLY,
	"with":       TOKEN_WITH,
	"new":        TOKEN_NEW,
	"delete":     TOKEN_DELETE,
	"typeof":     TOKEN_TYPEOF,
	"void":       TOKEN_VOID,
	"instanceof": TOKEN_INSTANCEOF,
	"this":       TOKEN_THIS,
	"null":       TOKEN_NULL,
	"true":       TOKEN_TRUE,
	"false":      TOKEN_FALSE,
	"debugger":   TOKEN_DEBUGGER,
}

// LookupIdent returns the keyword token for ident, or TOKEN_IDENTIFIER
func LookupIdent(ident string) TokenType {
	if tok, ok := keywords[ident]; ok {
		return tok
	}
	return TOKEN_IDENTIFIER
}

// Position represents a position in the source code
type Position struct {
	Line   int
	Column int
	Offset int
}

// Token represents a lexical token
type Token struct {
	Type     TokenType
	Value    string  // source text
	Literal  string  // decoded value of a string literal, flags of a regexp
	Number   float64 // value of a number literal
	Position Position
	// NewlineBefore is set when a line terminator precedes the token.
	NewlineBefore bool
}

// endsOperand reports whether a '/' after this token is a division
func (t TokenType) endsOperand() bool {
	switch t {
	case TOKEN_NUMBER, TOKEN_STRING, TOKEN_REGEXP, TOKEN_IDENTIFIER,
		TOKEN_THIS, TOKEN_NULL, TOKEN_TRUE, TOKEN_FALSE,
		TOKEN_RPAREN, TOKEN_RBRACKET, TOKEN_RBRACE, TOKEN_INC, TOKEN_DEC:
		return true
	}
	return false
}
