package compiler

import (
	"fmt"
	"runtime/debug"

	"github.com/pkg/errors"

	"kestrel/codegen"
)

var (
	// ErrStackOverflow is returned when the script nests deeper than
	// max_recursion_depth
	ErrStackOverflow = codegen.ErrStackOverflow
	// ErrUnsupported is returned for constructs the code generator rejects
	ErrUnsupported = codegen.ErrUnsupported
	// ErrInternal is returned when the code generator breaks one of its
	// own invariants
	ErrInternal = errors.New("internal compiler error")
)

// InternalError carries the panic behind an ErrInternal
type InternalError struct {
	Name  string
	Value any
	Stack []byte
}

func (e *InternalError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Name, ErrInternal, e.Value)
}

func (e *InternalError) Unwrap() error { return ErrInternal }

// recoverInternal turns a panic of the code generator into an error
func recoverInternal(name string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	*err = &InternalError{Name: name, Value: r, Stack: debug.Stack()}
}
