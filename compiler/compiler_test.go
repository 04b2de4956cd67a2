package compiler

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kr/pretty"
	"github.com/pkg/errors"

	"kestrel/parser"
	"kestrel/vm"
)

func TestParseOptions(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		want    func(o *Options)
		wantErr bool
	}{
		{"empty keeps defaults", "", func(o *Options) {}, false},
		{"generic mode", "inline_smi_arithmetic: false\ninline_keyed_loads: false\n", func(o *Options) {
			o.InlineSmiArithmetic = false
			o.InlineKeyedLoads = false
		}, false},
		{"limits", "max_recursion_depth: 20\ninit_block_threshold: 0\n", func(o *Options) {
			o.MaxRecursionDepth = 20
			o.InitBlockThreshold = 0
		}, false},
		{"trace", "trace: true\ntrace_filter: [\"loop*\", main]\n", func(o *Options) {
			o.Trace = true
			o.TraceFilter = []string{"loop*", "main"}
		}, false},
		{"unknown key", "inline_everything: true\n", nil, true},
		{"negative depth", "max_recursion_depth: -1\n", nil, true},
		{"bad type", "max_recursion_depth: deep\n", nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseOptions([]byte(tt.yaml))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseOptions succeeded: %# v", pretty.Formatter(got))
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseOptions: %v", err)
			}
			want := DefaultOptions()
			tt.want(&want)
			if diff := pretty.Diff(got, want); len(diff) > 0 {
				t.Errorf("options differ: %v", diff)
			}
		})
	}
}

func TestLoadOptions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kestrel.yaml")
	if err := os.WriteFile(path, []byte("inline_smi_arithmetic: false\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	opts, err := LoadOptions(path)
	if err != nil {
		t.Fatalf("LoadOptions: %v", err)
	}
	if opts.InlineSmiArithmetic {
		t.Error("inline_smi_arithmetic not applied")
	}
	if _, err := LoadOptions(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadOptions of a missing file succeeded")
	}
}

func TestCompileAndRun(t *testing.T) {
	p, err := Compile(`function sq(x) { return x * x; } print(sq(7));`, "square", DefaultOptions())
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if got := len(p.Functions()); got != 2 {
		t.Errorf("Functions() = %d codes, want 2", got)
	}
	if p.Size() == 0 {
		t.Error("Size() = 0")
	}
	m := vm.NewMachine()
	var out bytes.Buffer
	m.Out = &out
	if _, err := p.Run(m); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := out.String(); got != "49\n" {
		t.Errorf("printed %q, want \"49\\n\"", got)
	}
}

func TestCompileErrors(t *testing.T) {
	t.Run("syntax", func(t *testing.T) {
		_, err := Compile("var = 1;", "bad", DefaultOptions())
		var perr *parser.Error
		if !errors.As(err, &perr) {
			t.Fatalf("Compile = %v, want a *parser.Error", err)
		}
		if !strings.HasPrefix(err.Error(), "bad: ") {
			t.Errorf("error %q does not name the script", err)
		}
	})
	t.Run("regexp literal", func(t *testing.T) {
		_, err := Compile("var r = /ab+c/g;", "re", DefaultOptions())
		if !errors.Is(err, ErrUnsupported) {
			t.Errorf("Compile = %v, want ErrUnsupported", err)
		}
	})
	t.Run("nesting", func(t *testing.T) {
		opts := DefaultOptions()
		opts.MaxRecursionDepth = 10
		_, err := Compile("var x = 1"+strings.Repeat(" * 2", 50)+";", "deep", opts)
		if !errors.Is(err, ErrStackOverflow) {
			t.Errorf("Compile = %v, want ErrStackOverflow", err)
		}
	})
}

func TestRecoverInternal(t *testing.T) {
	err := func() (err error) {
		defer recoverInternal("broken", &err)
		panic("frame height mismatch")
	}()
	if !errors.Is(err, ErrInternal) {
		t.Fatalf("err = %v, want ErrInternal", err)
	}
	var ie *InternalError
	if !errors.As(err, &ie) || ie.Name != "broken" || len(ie.Stack) == 0 {
		t.Errorf("InternalError = %# v", pretty.Formatter(ie))
	}
}

func TestCache(t *testing.T) {
	c := NewCache()
	src := "print(1 + 2);"
	a, err := c.Compile(src, "a", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Compile(src, "b", DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("second compilation of the same source missed the cache")
	}

	generic := DefaultOptions()
	generic.InlineSmiArithmetic = false
	g, err := c.Compile(src, "g", generic)
	if err != nil {
		t.Fatal(err)
	}
	if g == a || g.Digest == a.Digest {
		t.Error("options that change code share a cache entry")
	}

	traced := DefaultOptions()
	traced.Trace = true
	if Key(src, traced) != Key(src, DefaultOptions()) {
		t.Error("tracing changes the cache key")
	}

	if _, err := c.Compile("var = ;", "broken", DefaultOptions()); err == nil {
		t.Error("broken source compiled")
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 3 {
		t.Errorf("Stats() = %d hits, %d misses; want 1, 3", hits, misses)
	}
	if n := c.Len(); n != 2 {
		t.Errorf("Len() = %d, want 2", n)
	}
}

func TestCompileAll(t *testing.T) {
	var sources []Source
	for i := 0; i < 20; i++ {
		sources = append(sources, Source{
			Name: fmt.Sprintf("s%d", i),
			Text: fmt.Sprintf("var x = %d; print(x * 3);", i%5),
		})
	}
	cache := NewCache()
	progs, err := CompileAll(context.Background(), sources, DefaultOptions(), cache, 4)
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	if len(progs) != len(sources) {
		t.Fatalf("got %d programs, want %d", len(progs), len(sources))
	}
	for i, p := range progs {
		if p.Digest != Key(sources[i].Text, DefaultOptions()) {
			t.Errorf("program %d is not the compilation of source %d", i, i)
		}
	}
	if n := cache.Len(); n != 5 {
		t.Errorf("cache holds %d programs, want 5", n)
	}

	sources[7].Text = "var = ;"
	if _, err := CompileAll(context.Background(), sources, DefaultOptions(), nil, 2); err == nil {
		t.Error("CompileAll with a broken source succeeded")
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		src        string
		incomplete bool
		ok         bool
	}{
		{"var a = 1;", false, true},
		{"function f() {", true, false},
		{"var = ;", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			err := Check(tt.src, DefaultOptions())
			if (err == nil) != tt.ok {
				t.Fatalf("Check(%q) = %v", tt.src, err)
			}
			if err == nil {
				return
			}
			if got := strings.Contains(err.Error(), "end of input"); got != tt.incomplete {
				t.Errorf("Check(%q) = %v, incomplete = %v, want %v", tt.src, err, got, tt.incomplete)
			}
		})
	}
}
