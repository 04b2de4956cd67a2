package parser

import "fmt"

// Error is a syntax or resolution error at a source position
type Error struct {
	Pos Position
	Msg string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Pos.Line, e.Pos.Column, e.Msg)
}

// errorf reports an error at the current token
func (p *Parser) errorf(format string, args ...any) error {
	return p.errorAt(p.current.Position, format, args...)
}

func (p *Parser) errorAt(pos Position, format string, args ...any) error {
	return &Error{Pos: pos, Msg: fmt.Sprintf(format, args...)}
}
