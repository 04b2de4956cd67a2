package main

import (
	"testing"

	"github.com/kr/pretty"

	"kestrel/compiler"
	"kestrel/trace"
)

func TestSplitFilters(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"fib", []string{"fib"}},
		{"fib, test_*", []string{"fib", "test_*"}},
		{" a ,, b ,", []string{"a", "b"}},
		{",", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if diff := pretty.Diff(splitFilters(tt.in), tt.want); len(diff) > 0 {
				t.Errorf("splitFilters(%q): %v", tt.in, diff)
			}
		})
	}
}

func TestInitTraceUsesFilters(t *testing.T) {
	opts := compiler.DefaultOptions()
	opts.Trace = true
	opts.TraceFilter = splitFilters("loop*,main")
	initTrace(opts)
	defer trace.Init(false, nil, nil)

	for fn, want := range map[string]bool{"main": true, "loop1": true, "other": false} {
		if got := trace.Enabled(fn); got != want {
			t.Errorf("Enabled(%q) = %v, want %v", fn, got, want)
		}
	}
}
