package trace

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

func TestFilters(t *testing.T) {
	tests := []struct {
		name    string
		filters []string
		want    []string
	}{
		{"all", nil, []string{"GEN main", "GEN fib", "GEN test_a"}},
		{"exact", []string{"fib"}, []string{"GEN fib"}},
		{"glob", []string{"test_*", "main"}, []string{"GEN main", "GEN test_a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			Init(true, tt.filters, &buf)
			defer Init(false, nil, nil)
			for _, fn := range []string{"main", "fib", "test_a"} {
				FunctionStart(fn, 0, 0, 0)
			}
			for _, w := range tt.want {
				if !strings.Contains(buf.String(), w) {
					t.Errorf("output %q is missing %q", buf.String(), w)
				}
			}
			if got := strings.Count(buf.String(), "[TRACE]"); got != len(tt.want) {
				t.Errorf("got %d events, want %d:\n%s", got, len(tt.want), buf.String())
			}
		})
	}
}

func TestDisabled(t *testing.T) {
	var buf bytes.Buffer
	Init(false, nil, &buf)
	defer Init(false, nil, nil)
	if IsEnabled() || Enabled("main") {
		t.Fatal("disabled tracer reports enabled")
	}
	FunctionStart("main", 1, 2, 3)
	Failure("main", errors.New("boom"))
	if buf.Len() != 0 {
		t.Errorf("disabled tracer wrote %q", buf.String())
	}
}

func TestEvents(t *testing.T) {
	var buf bytes.Buffer
	Init(true, nil, &buf)
	defer Init(false, nil, nil)

	FunctionStart("f", 2, 1, 0)
	Merge("f", nil)
	Merge("f", []string{"spill 5 eax", "load 5 ->ebx"})
	Deferred("f", "DeferredInlineBinaryOperation")
	FunctionEnd("f", 40, 31, 2)
	Failure("g", errors.New("boom"))

	want := []string{
		"[TRACE] GEN f params=2 locals=1 context=0",
		"[TRACE]   MERGE spill 5 eax; load 5 ->ebx",
		"[TRACE]   DEFERRED DeferredInlineBinaryOperation",
		"[TRACE] DONE f instrs=40 deferred-from=31 constants=2",
		"[TRACE] FAIL g: boom",
	}
	got := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(got) != len(want) {
		t.Fatalf("got %d lines, want %d:\n%s", len(got), len(want), buf.String())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}
