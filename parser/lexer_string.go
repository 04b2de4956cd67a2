package parser

import "unicode/utf8"

// readString reads a single- or double-quoted string literal with escape
// sequences
func (l *Lexer) readString(tok *Token) {
	tok.Type = TOKEN_STRING
	quote := l.ch
	start := l.position
	l.readChar() // skip opening quote

	var result []byte
	for l.ch != quote {
		if l.ch == 0 || l.ch == '\n' {
			l.fail("unterminated string literal")
			break
		}
		if l.ch != '\\' {
			result = append(result, l.ch)
			l.readChar()
			continue
		}
		l.readChar() // skip backslash
		switch l.ch {
		case 'n':
			result = append(result, '\n')
		case 't':
			result = append(result, '\t')
		case 'r':
			result = append(result, '\r')
		case 'b':
			result = append(result, '\b')
		case 'f':
			result = append(result, '\f')
		case 'v':
			result = append(result, '\v')
		case '0':
			result = append(result, 0)
		case 'x':
			result = utf8.AppendRune(result, l.readHexEscape(2))
			continue
		case 'u':
			result = utf8.AppendRune(result, l.readHexEscape(4))
			continue
		case '\n':
			// line continuation
		default:
			result = append(result, l.ch)
		}
		l.readChar()
	}

	if l.ch == quote {
		l.readChar() // skip closing quote
	}

	tok.Value = l.input[start:l.position] // the full quoted string
	tok.Literal = string(result)          // the decoded value
}

// readHexEscape reads n hex digits following \x or \u. The current char
// is the escape letter.
func (l *Lexer) readHexEscape(n int) rune {
	var r rune
	for i := 0; i < n; i++ {
		l.readChar()
		c := l.ch
		var d byte
		switch {
		case isDigit(c):
			d = c - '0'
		case 'a' <= c && c <= 'f':
			d = c - 'a' + 10
		case 'A' <= c && c <= 'F':
			d = c - 'A' + 10
		default:
			l.fail("malformed escape sequence")
			return utf8.RuneError
		}
		r = r<<4 | rune(d)
	}
	l.readChar()
	return r
}
