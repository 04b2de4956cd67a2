package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"kestrel/compiler"
	"kestrel/trace"
	"kestrel/value"
	"kestrel/vm"
)

const (
	historyFile = ".kestrel_history"
	promptMain  = "kestrel> "
	promptCont  = "....... "
)

func main() {
	configPath := flag.String("config", "", "YAML file with compiler options")
	generic := flag.Bool("generic", false, "Disable inline smi arithmetic and keyed loads")

	// Trace flags
	traceEnabled := flag.Bool("trace", false, "Trace code generation")
	traceFilter := flag.String("trace-filter", "", "Trace filter pattern (glob, e.g., 'fib' or 'test_*')")

	// Inspection flags
	disasm := flag.Bool("disasm", false, "Print the generated code instead of running it")
	stats := flag.Bool("stats", false, "Print code size statistics after compiling")
	evalExpr := flag.String("e", "", "Compile and run a script given on the command line")
	repl := flag.Bool("repl", false, "Start an interactive session")
	jobs := flag.Int("j", runtime.NumCPU(), "Files compiled in parallel")

	flag.Parse()

	opts := compiler.DefaultOptions()
	if *configPath != "" {
		loaded, err := compiler.LoadOptions(*configPath)
		if err != nil {
			log.Fatalf("Failed to load options: %v", err)
		}
		opts = loaded
	}
	if *generic {
		opts.InlineSmiArithmetic = false
		opts.InlineKeyedLoads = false
	}
	if *traceEnabled {
		opts.Trace = true
	}
	if *traceFilter != "" {
		opts.TraceFilter = splitFilters(*traceFilter)
	}
	initTrace(opts)

	out := listingOutput{w: os.Stdout, color: isatty.IsTerminal(os.Stdout.Fd())}

	switch {
	case *evalExpr != "":
		os.Exit(runSources(out, []compiler.Source{{Name: "-e", Text: *evalExpr}}, opts, *disasm, *stats, *jobs))
	case *repl || flag.NArg() == 0:
		os.Exit(runREPL(opts))
	default:
		sources, err := readSources(flag.Args())
		if err != nil {
			log.Fatalf("%v", err)
		}
		os.Exit(runSources(out, sources, opts, *disasm, *stats, *jobs))
	}
}

// initTrace installs the tracer configured by opts
func initTrace(opts compiler.Options) {
	if !opts.Trace {
		trace.Init(false, nil, nil)
		return
	}
	trace.Init(true, opts.TraceFilter, os.Stderr)
	log.Printf("Tracing enabled (filters: %v)", opts.TraceFilter)
}

// splitFilters turns a comma-separated -trace-filter value into patterns
func splitFilters(s string) []string {
	var filters []string
	for _, f := range strings.Split(s, ",") {
		if f = strings.TrimSpace(f); f != "" {
			filters = append(filters, f)
		}
	}
	return filters
}

func readSources(paths []string) ([]compiler.Source, error) {
	sources := make([]compiler.Source, 0, len(paths))
	for _, path := range paths {
		text, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		sources = append(sources, compiler.Source{Name: filepath.Base(path), Text: string(text)})
	}
	return sources, nil
}

// runSources compiles every source, then either lists or runs them in
// order on one machine. It returns the process exit code.
func runSources(out listingOutput, sources []compiler.Source, opts compiler.Options, disasm, stats bool, jobs int) int {
	progs, err := compiler.CompileAll(context.Background(), sources, opts, nil, jobs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	if stats {
		for i, p := range progs {
			fmt.Fprintf(os.Stderr, "%s: %s of source, %d functions, %s instructions\n",
				p.Name, humanize.Bytes(uint64(len(sources[i].Text))),
				len(p.Functions()), humanize.Comma(int64(p.Size())))
		}
	}

	if disasm {
		for _, p := range progs {
			for _, c := range p.Functions() {
				out.listing(c)
			}
		}
		return 0
	}

	m := vm.NewMachine()
	for _, p := range progs {
		if _, err := p.Run(m); err != nil {
			fmt.Fprintf(os.Stderr, "%s: %s\n", p.Name, describeRunError(m, err))
			return 1
		}
	}
	return 0
}

func describeRunError(m *vm.Machine, err error) string {
	var thrown *vm.ThrowError
	if errors.As(err, &thrown) {
		return "uncaught exception: " + m.Heap.ToString(thrown.Value)
	}
	return err.Error()
}

// runREPL runs an interactive session. Every entry is compiled on its
// own and run on one machine, so globals persist between entries.
func runREPL(opts compiler.Options) int {
	fmt.Println("kestrel: type a script, :dis <script> for its code, :quit to leave")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}

	m := vm.NewMachine()
	out := listingOutput{w: os.Stdout, color: isatty.IsTerminal(os.Stdout.Fd())}
	cache := compiler.NewCache()
	entry := 0

	for {
		src, ok := readEntry(ln, opts)
		if !ok {
			fmt.Println()
			break
		}
		trimmed := strings.TrimSpace(src)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(src, "\n", " "))

		if trimmed == ":quit" || trimmed == ":q" {
			break
		}
		listOnly := false
		if rest, found := strings.CutPrefix(trimmed, ":dis "); found {
			src, listOnly = rest, true
		}

		entry++
		p, err := cache.Compile(src, fmt.Sprintf("entry%d", entry), opts)
		if err != nil {
			fmt.Println(err)
			continue
		}
		if listOnly {
			for _, c := range p.Functions() {
				out.listing(c)
			}
			continue
		}
		result, err := p.Run(m)
		if err != nil {
			fmt.Println(describeRunError(m, err))
			continue
		}
		if result != value.Undefined {
			fmt.Println(m.Heap.ToString(result))
		}
	}

	if f, err := os.Create(histPath); err == nil {
		_, _ = ln.WriteHistory(f)
		_ = f.Close()
	}
	return 0
}

// readEntry reads lines until they parse or fail for a reason other
// than running out of input
func readEntry(ln *liner.State, opts compiler.Options) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			return "", true
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		src := b.String()
		if strings.HasPrefix(strings.TrimSpace(src), ":") {
			return src, true
		}
		if err := compiler.Check(src, opts); err == nil || !strings.Contains(err.Error(), "end of input") {
			return src, true
		}
	}
}
