// Package compiler drives the front end and the code generator over a
// whole script and links the result into a Program.
package compiler

import (
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"kestrel/asm"
	"kestrel/ast"
	"kestrel/codegen"
	"kestrel/parser"
	"kestrel/value"
	"kestrel/vm"
)

// Program is a compiled script
type Program struct {
	ID     uuid.UUID
	Name   string
	Digest [32]byte // cache key of the source and options
	Main   *asm.Code
}

// Functions returns the code of the script and of every function literal
// in it, outermost first
func (p *Program) Functions() []*asm.Code {
	var out []*asm.Code
	var walk func(c *asm.Code)
	walk = func(c *asm.Code) {
		out = append(out, c)
		for _, fn := range c.Functions() {
			walk(fn)
		}
	}
	walk(p.Main)
	return out
}

// Size returns the number of instructions over all functions
func (p *Program) Size() int {
	n := 0
	for _, c := range p.Functions() {
		n += c.Size()
	}
	return n
}

// Run executes the script on m
func (p *Program) Run(m *vm.Machine) (value.Word, error) {
	return m.Run(p.Main)
}

// Compile parses, analyzes and generates code for source. name labels
// the script in errors and listings.
func Compile(source, name string, opts Options) (prog *Program, err error) {
	defer recoverInternal(name, &err)

	fn, err := parser.NewParser(source, opts.parserConfig()).ParseProgram()
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	ast.Analyze(fn)
	if fn.Name == "" {
		fn.Name = name
	}
	code, err := codegen.Generate(fn, opts.codegenOptions())
	if err != nil {
		return nil, errors.Wrap(err, name)
	}
	return &Program{
		ID:     uuid.New(),
		Name:   name,
		Digest: Key(source, opts),
		Main:   code,
	}, nil
}

// Check parses source without generating code and returns the syntax
// error, if any
func Check(source string, opts Options) error {
	_, err := parser.NewParser(source, opts.parserConfig()).ParseProgram()
	return err
}

// MustCompile is like Compile but panics on error
func MustCompile(source, name string) *Program {
	p, err := Compile(source, name, DefaultOptions())
	if err != nil {
		panic(err)
	}
	return p
}
