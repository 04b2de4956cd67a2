package conformance

import (
	"testing"
)

// TestConformance runs every suite once with the inline fast paths and
// once with the generic stubs only
func TestConformance(t *testing.T) {
	tests, err := LoadAllTests()
	if err != nil {
		t.Fatalf("Failed to load tests: %v", err)
	}
	if len(tests) == 0 {
		t.Fatal("No tests loaded")
	}

	for _, mode := range Modes {
		t.Run(mode, func(t *testing.T) {
			results := NewRunner(mode).RunAll(tests)

			// Group results by file for organized output
			var files []string
			fileGroups := make(map[string][]TestResult)
			for _, result := range results {
				if _, ok := fileGroups[result.Test.File]; !ok {
					files = append(files, result.Test.File)
				}
				fileGroups[result.Test.File] = append(fileGroups[result.Test.File], result)
			}

			for _, file := range files {
				t.Run(file, func(t *testing.T) {
					for _, result := range fileGroups[file] {
						t.Run(result.Test.Test.Name, func(t *testing.T) {
							if result.Skipped {
								t.Skipf("Skipped: %s", result.SkipReason)
							} else if !result.Passed {
								t.Errorf("Test failed: %v", result.Error)
							}
						})
					}
				})
			}
			t.Logf("%s: %s", mode, FormatStats(ComputeStats(results)))
		})
	}
}

func TestYAMLParsing(t *testing.T) {
	tests, err := LoadAllTests()
	if err != nil {
		t.Fatalf("YAML parsing failed: %v", err)
	}

	files := make(map[string]bool)
	names := make(map[string]bool)
	for i, test := range tests {
		files[test.File] = true
		if test.Test.Name == "" {
			t.Errorf("Test %d in %s has no name", i, test.File)
		}
		key := test.File + ":" + test.Test.Name
		if names[key] {
			t.Errorf("Duplicate test %s", key)
		}
		names[key] = true

		if !test.Test.Expect.HasExpectation() {
			t.Errorf("Test %s in %s has no expectation", test.Test.Name, test.File)
		}
		if test.Test.Code == "" && test.Test.Statement == "" {
			t.Errorf("Test %s in %s has no code/statement", test.Test.Name, test.File)
		}
		if test.Test.Code != "" && test.Test.Statement != "" {
			t.Errorf("Test %s in %s has both code and statement", test.Test.Name, test.File)
		}
		for _, m := range test.Test.Modes {
			if m != "inline" && m != "generic" {
				t.Errorf("Test %s in %s has unknown mode %q", test.Test.Name, test.File, m)
			}
		}
	}
	t.Logf("Loaded %d tests from %d files", len(tests), len(files))
}

func TestLoadTestsMissingDirectory(t *testing.T) {
	if _, err := LoadTests("testdata/does-not-exist"); err == nil {
		t.Error("LoadTests of a missing directory succeeded")
	}
}

// BenchmarkConformance measures compiling and running the whole suite
func BenchmarkConformance(b *testing.B) {
	tests, err := LoadAllTests()
	if err != nil {
		b.Fatal(err)
	}
	for i := 0; i < b.N; i++ {
		NewRunner("inline").RunAll(tests)
	}
}
