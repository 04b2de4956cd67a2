package conformance

// TestSuite represents a complete YAML test file
type TestSuite struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description,omitempty"`
	Setup       string     `yaml:"setup,omitempty"` // script run before every test of the suite
	Tests       []TestCase `yaml:"tests"`
}

// TestCase represents a single test within a suite
type TestCase struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Skip        interface{} `yaml:"skip,omitempty"`  // bool or string
	Modes       []string    `yaml:"modes,omitempty"` // inline|generic, both when empty
	Code        string      `yaml:"code,omitempty"`  // expression whose value is checked
	Statement   string      `yaml:"statement,omitempty"`
	Expect      Expectation `yaml:"expect"`
}

// Expectation defines what result is expected from a test. A statement
// test's value is what its body returns.
type Expectation struct {
	Value        interface{} `yaml:"value,omitempty"`         // exact match
	Type         string      `yaml:"type,omitempty"`          // typeof the value
	Output       []string    `yaml:"output,omitempty"`        // lines printed
	Error        string      `yaml:"error,omitempty"`         // name of the uncaught error, or the thrown value
	CompileError string      `yaml:"compile_error,omitempty"` // unsupported|stack_overflow|syntax
}

// IsSkipped returns true if this test should be skipped
func (tc *TestCase) IsSkipped() (bool, string) {
	if tc.Skip == nil {
		return false, ""
	}

	switch v := tc.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
		return false, ""
	case string:
		return true, v
	default:
		return false, ""
	}
}

// RunsIn reports whether the test applies to the named mode
func (tc *TestCase) RunsIn(mode string) bool {
	if len(tc.Modes) == 0 {
		return true
	}
	for _, m := range tc.Modes {
		if m == mode {
			return true
		}
	}
	return false
}

// HasExpectation reports whether anything is checked
func (e *Expectation) HasExpectation() bool {
	return e.Value != nil || e.Type != "" || e.Output != nil || e.Error != "" || e.CompileError != ""
}
