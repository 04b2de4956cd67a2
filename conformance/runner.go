package conformance

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"kestrel/compiler"
	"kestrel/parser"
	"kestrel/value"
	"kestrel/vm"
)

// Modes are the code generation settings every test runs under
var Modes = []string{"inline", "generic"}

// resultVar is the global a test stores its value in
const resultVar = "__result"

// tickLimit stops runaway loops in broken code
const tickLimit = 50_000_000

// TestResult represents the outcome of running a single test
type TestResult struct {
	Test       LoadedTest
	Mode       string
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
}

// Runner executes conformance tests
type Runner struct {
	mode  string
	opts  compiler.Options
	cache *compiler.Cache
}

// NewRunner creates a runner for one of Modes
func NewRunner(mode string) *Runner {
	opts := compiler.DefaultOptions()
	switch mode {
	case "inline":
	case "generic":
		opts.InlineSmiArithmetic = false
		opts.InlineKeyedLoads = false
	default:
		panic("conformance: unknown mode " + mode)
	}
	return &Runner{mode: mode, opts: opts, cache: compiler.NewCache()}
}

// script builds the program of a test: the suite setup, then the test
// storing its value in the result global
func script(test LoadedTest) (string, bool) {
	var b strings.Builder
	if test.Suite.Setup != "" {
		b.WriteString(test.Suite.Setup)
		b.WriteString("\n")
	}
	switch {
	case test.Test.Statement != "":
		fmt.Fprintf(&b, "%s = (function () {\n%s\n})();\n", resultVar, test.Test.Statement)
	case test.Test.Code != "":
		fmt.Fprintf(&b, "%s = (%s);\n", resultVar, test.Test.Code)
	default:
		return "", false
	}
	return b.String(), true
}

// Run executes a single test case
func (r *Runner) Run(test LoadedTest) TestResult {
	res := TestResult{Test: test, Mode: r.mode}
	if skipped, reason := test.Test.IsSkipped(); skipped {
		res.Skipped, res.SkipReason = true, reason
		return res
	}
	if !test.Test.RunsIn(r.mode) {
		res.Skipped, res.SkipReason = true, "not run in "+r.mode+" mode"
		return res
	}
	src, ok := script(test)
	if !ok {
		res.Skipped, res.SkipReason = true, "no code/statement"
		return res
	}

	expect := test.Test.Expect
	prog, err := r.cache.Compile(src, test.File+":"+test.Test.Name, r.opts)
	if expect.CompileError != "" {
		res.Error = checkCompileError(expect.CompileError, err)
		res.Passed = res.Error == nil
		return res
	}
	if err != nil {
		res.Error = fmt.Errorf("compile: %w", err)
		return res
	}

	m := vm.NewMachine()
	var out bytes.Buffer
	m.Out = &out
	m.TickLimit = tickLimit
	_, err = prog.Run(m)
	res.Error = r.checkExpectation(m, expect, err, out.String())
	res.Passed = res.Error == nil
	return res
}

// RunAll executes all loaded tests
func (r *Runner) RunAll(tests []LoadedTest) []TestResult {
	results := make([]TestResult, len(tests))
	for i, test := range tests {
		results[i] = r.Run(test)
	}
	return results
}

// SummaryStats computes statistics from test results
type SummaryStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ComputeStats generates statistics from test results
func ComputeStats(results []TestResult) SummaryStats {
	stats := SummaryStats{Total: len(results)}
	for _, r := range results {
		if r.Skipped {
			stats.Skipped++
		} else if r.Passed {
			stats.Passed++
		} else {
			stats.Failed++
		}
	}
	return stats
}

// FormatStats returns a human-readable summary
func FormatStats(stats SummaryStats) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)",
		stats.Passed, stats.Failed, stats.Skipped, stats.Total)
}

func checkCompileError(want string, err error) error {
	if err == nil {
		return fmt.Errorf("expected compile error %s, compiled", want)
	}
	var ok bool
	switch want {
	case "unsupported":
		ok = errors.Is(err, compiler.ErrUnsupported)
	case "stack_overflow":
		ok = errors.Is(err, compiler.ErrStackOverflow)
	case "syntax":
		var perr *parser.Error
		ok = errors.As(err, &perr)
	default:
		return fmt.Errorf("unknown compile error %s", want)
	}
	if !ok {
		return fmt.Errorf("expected compile error %s, got %v", want, err)
	}
	return nil
}

// checkExpectation checks if the run matches the expected outcome
func (r *Runner) checkExpectation(m *vm.Machine, expect Expectation, runErr error, output string) error {
	h := m.Heap
	if expect.Output != nil {
		got := strings.Split(strings.TrimSuffix(output, "\n"), "\n")
		if output == "" {
			got = nil
		}
		if strings.Join(got, "\n") != strings.Join(expect.Output, "\n") {
			return fmt.Errorf("expected output %q, got %q", expect.Output, got)
		}
	}

	if expect.Error != "" {
		var thrown *vm.ThrowError
		if !errors.As(runErr, &thrown) {
			return fmt.Errorf("expected error %s, got %v", expect.Error, runErr)
		}
		if name := errorName(h, thrown.Value); name != expect.Error {
			return fmt.Errorf("expected error %s, got %s", expect.Error, name)
		}
		return nil
	}
	if runErr != nil {
		return fmt.Errorf("unexpected error: %w", runErr)
	}

	got, _ := h.GetProperty(h.Global, resultVar)
	if expect.Type != "" {
		if t := h.TypeOfString(got); t != expect.Type {
			return fmt.Errorf("expected type %s, got %s (%s)", expect.Type, t, h.ToString(got))
		}
	}
	if expect.Value != nil {
		if err := match(h, got, expect.Value); err != nil {
			return err
		}
	}
	if !expect.HasExpectation() {
		return fmt.Errorf("no expectation specified")
	}
	return nil
}

// errorName names a thrown value: the name property of an error object,
// otherwise the value as a string
func errorName(h *vm.Heap, w value.Word) string {
	if h.IsJSObject(w) {
		if name, ok := h.GetProperty(w, "name"); ok {
			return h.ToString(name)
		}
	}
	return h.ToString(w)
}

// match compares a machine value with a value decoded from YAML
func match(h *vm.Heap, got value.Word, want interface{}) error {
	mismatch := func() error {
		return fmt.Errorf("expected %v, got %s (%s)", want, h.ToString(got), h.TypeOfString(got))
	}
	switch want := want.(type) {
	case int:
		if !h.IsNumber(got) || h.Number(got) != float64(want) {
			return mismatch()
		}
	case float64:
		if !h.IsNumber(got) {
			return mismatch()
		}
		n := h.Number(got)
		if math.IsNaN(want) != math.IsNaN(n) || !math.IsNaN(want) && n != want {
			return mismatch()
		}
		if want == 0 && math.Signbit(want) != math.Signbit(n) {
			return mismatch()
		}
	case string:
		if !h.IsString(got) || h.ToString(got) != want {
			return mismatch()
		}
	case bool:
		if got != value.Bool(want) {
			return mismatch()
		}
	case []interface{}:
		if h.TypeOf(got) != value.TypeArray {
			return mismatch()
		}
		elems := h.ArrayElements(got)
		if len(elems) != len(want) {
			return fmt.Errorf("expected %d elements, got %d", len(want), len(elems))
		}
		for i, e := range want {
			if err := match(h, elems[i], e); err != nil {
				return fmt.Errorf("element %d: %w", i, err)
			}
		}
	case map[string]interface{}:
		if !h.IsJSObject(got) {
			return mismatch()
		}
		keys := h.OwnKeys(got)
		if len(keys) != len(want) {
			sort.Strings(keys)
			return fmt.Errorf("expected %d properties, got %v", len(want), keys)
		}
		for k, v := range want {
			p, ok := h.GetOwn(got, k)
			if !ok {
				return fmt.Errorf("missing property %s", k)
			}
			if err := match(h, p, v); err != nil {
				return fmt.Errorf("property %s: %w", k, err)
			}
		}
	default:
		return fmt.Errorf("unsupported YAML type: %T", want)
	}
	return nil
}
