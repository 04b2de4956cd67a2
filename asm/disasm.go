package asm

import (
	"fmt"
	"io"
	"strings"

	"kestrel/value"
)

// Disassemble renders a listing of c
func Disassemble(c *Code) string {
	var b strings.Builder
	Fdisassemble(&b, c)
	return b.String()
}

// Fdisassemble writes a listing of c to w. Jump targets are marked with
// a '>' so that block boundaries stand out.
func Fdisassemble(w io.Writer, c *Code) {
	targets := make(map[int]bool)
	for i := range c.Instrs {
		if c.Instrs[i].IsJump() {
			targets[c.Instrs[i].Target] = true
		}
	}
	fmt.Fprintf(w, "function %s (params=%d locals=%d context=%d)\n", c.Name, c.ParamCount, c.LocalCount, c.ContextSlots)
	for i := range c.Instrs {
		if i == c.DeferredStart && c.DeferredStart > 0 {
			fmt.Fprintln(w, "  ;; --- deferred code ---")
		}
		in := &c.Instrs[i]
		mark := ' '
		if targets[i] {
			mark = '>'
		}
		if in.Op == OP_COMMENT {
			fmt.Fprintf(w, "%c%5d        %s\n", mark, i, in.String())
			continue
		}
		fmt.Fprintf(w, "%c%5d  %s\n", mark, i, in.String())
	}
	if len(c.Constants) == 0 {
		return
	}
	fmt.Fprintln(w, "constants:")
	for i, k := range c.Constants {
		fmt.Fprintf(w, "  [%d] %s\n", i, describeConstant(k))
	}
}

func describeConstant(k any) string {
	switch k := k.(type) {
	case value.Constant:
		return k.String()
	case *Code:
		return "function " + k.Name
	case *ObjectBoilerplate:
		parts := make([]string, len(k.Keys))
		for i := range k.Keys {
			parts[i] = fmt.Sprintf("%s: %s", k.Keys[i], k.Values[i])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *ArrayBoilerplate:
		parts := make([]string, len(k.Values))
		for i, v := range k.Values {
			parts[i] = v.String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case NameList:
		return "names(" + strings.Join(k, ", ") + ")"
	}
	return fmt.Sprintf("%v", k)
}
