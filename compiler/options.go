package compiler

import (
	"bytes"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"kestrel/codegen"
	"kestrel/parser"
)

// Options configure a compilation. They load from YAML:
//
//	inline_smi_arithmetic: true
//	inline_keyed_loads: true
//	max_recursion_depth: 1000
//	init_block_threshold: 2
//	trace: false
//	trace_filter: ["loop*"]
type Options struct {
	InlineSmiArithmetic bool     `yaml:"inline_smi_arithmetic"`
	InlineKeyedLoads    bool     `yaml:"inline_keyed_loads"`
	MaxRecursionDepth   int      `yaml:"max_recursion_depth"`
	InitBlockThreshold  int      `yaml:"init_block_threshold"`
	Trace               bool     `yaml:"trace"`
	TraceFilter         []string `yaml:"trace_filter,omitempty"`
}

// DefaultOptions returns the options used when no configuration is given
func DefaultOptions() Options {
	cg := codegen.DefaultOptions()
	return Options{
		InlineSmiArithmetic: cg.InlineSmiArithmetic,
		InlineKeyedLoads:    cg.InlineKeyedLoads,
		MaxRecursionDepth:   cg.MaxRecursionDepth,
		InitBlockThreshold:  parser.DefaultConfig.InitBlockThreshold,
	}
}

// ParseOptions decodes YAML over the defaults. Unknown keys are errors.
func ParseOptions(data []byte) (Options, error) {
	opts := DefaultOptions()
	if len(bytes.TrimSpace(data)) == 0 {
		return opts, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&opts); err != nil {
		return Options{}, errors.Wrap(err, "decode options")
	}
	if opts.MaxRecursionDepth < 0 {
		return Options{}, errors.Errorf("max_recursion_depth %d is negative", opts.MaxRecursionDepth)
	}
	if opts.InitBlockThreshold < 0 {
		return Options{}, errors.Errorf("init_block_threshold %d is negative", opts.InitBlockThreshold)
	}
	return opts, nil
}

// LoadOptions reads options from a YAML file
func LoadOptions(path string) (Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Options{}, errors.Wrap(err, "read options")
	}
	opts, err := ParseOptions(data)
	if err != nil {
		return Options{}, errors.Wrap(err, path)
	}
	return opts, nil
}

func (o Options) codegenOptions() codegen.Options {
	return codegen.Options{
		InlineSmiArithmetic: o.InlineSmiArithmetic,
		InlineKeyedLoads:    o.InlineKeyedLoads,
		MaxRecursionDepth:   o.MaxRecursionDepth,
	}
}

func (o Options) parserConfig() parser.Config {
	return parser.Config{InitBlockThreshold: o.InitBlockThreshold}
}

// fingerprint is the part of the options that changes generated code,
// in a stable encoding
func (o Options) fingerprint() []byte {
	o.Trace, o.TraceFilter = false, nil
	data, err := yaml.Marshal(o)
	if err != nil {
		panic("compiler: marshal options: " + err.Error())
	}
	return data
}
