package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Tracer reports code generation events for debugging
type Tracer struct {
	enabled bool
	filters []string
	writer  io.Writer
	mu      sync.Mutex
}

// Global tracer instance
var globalTracer *Tracer

// Init initializes the global tracer
func Init(enabled bool, filters []string, writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}
	globalTracer = &Tracer{
		enabled: enabled,
		filters: filters,
		writer:  writer,
	}
}

// IsEnabled returns whether tracing is enabled
func IsEnabled() bool {
	if globalTracer == nil {
		return false
	}
	return globalTracer.enabled
}

// Enabled reports whether events of the named function are traced
func Enabled(function string) bool {
	return globalTracer != nil && globalTracer.enabled && globalTracer.matchesFilter(function)
}

// matchesFilter checks if a function name matches any of the filter patterns
func (t *Tracer) matchesFilter(function string) bool {
	if len(t.filters) == 0 {
		return true // No filters = trace everything
	}

	for _, pattern := range t.filters {
		if matched, _ := filepath.Match(pattern, function); matched {
			return true
		}
	}
	return false
}

func (t *Tracer) printf(function, format string, args ...any) {
	if !t.enabled || !t.matchesFilter(function) {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.writer, "[TRACE] "+format+"\n", args...)
}

// FunctionStart logs the start of code generation for a function
func (t *Tracer) FunctionStart(function string, params, locals, contextSlots int) {
	t.printf(function, "GEN %s params=%d locals=%d context=%d", function, params, locals, contextSlots)
}

// FunctionEnd logs a finished function
func (t *Tracer) FunctionEnd(function string, instrs, deferred, constants int) {
	t.printf(function, "DONE %s instrs=%d deferred-from=%d constants=%d", function, instrs, deferred, constants)
}

// Merge logs the reconciliation steps emitted at a jump target
func (t *Tracer) Merge(function string, steps []string) {
	if len(steps) == 0 {
		return
	}
	t.printf(function, "  MERGE %s", strings.Join(steps, "; "))
}

// Deferred logs the creation of an out-of-line slow path
func (t *Tracer) Deferred(function, comment string) {
	t.printf(function, "  DEFERRED %s", comment)
}

// Failure logs a function whose generation failed
func (t *Tracer) Failure(function string, err error) {
	t.printf(function, "FAIL %s: %v", function, err)
}

// Global convenience functions

// FunctionStart logs the start of a function using the global tracer
func FunctionStart(function string, params, locals, contextSlots int) {
	if globalTracer != nil {
		globalTracer.FunctionStart(function, params, locals, contextSlots)
	}
}

// FunctionEnd logs a finished function using the global tracer
func FunctionEnd(function string, instrs, deferred, constants int) {
	if globalTracer != nil {
		globalTracer.FunctionEnd(function, instrs, deferred, constants)
	}
}

// Merge logs merge steps using the global tracer
func Merge(function string, steps []string) {
	if globalTracer != nil {
		globalTracer.Merge(function, steps)
	}
}

// Deferred logs a deferred block using the global tracer
func Deferred(function, comment string) {
	if globalTracer != nil {
		globalTracer.Deferred(function, comment)
	}
}

// Failure logs a failed function using the global tracer
func Failure(function string, err error) {
	if globalTracer != nil {
		globalTracer.Failure(function, err)
	}
}
