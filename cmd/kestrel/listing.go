package main

import (
	"fmt"
	"io"
	"strings"

	"kestrel/asm"
)

const (
	ansiReset  = "\x1b[0m"
	ansiBold   = "\x1b[1m"
	ansiDim    = "\x1b[2m"
	ansiYellow = "\x1b[33m"
)

// listingOutput prints disassembly, highlighting function headers,
// comments and the deferred section when color is set
type listingOutput struct {
	w     io.Writer
	color bool
}

func (o listingOutput) listing(c *asm.Code) {
	text := asm.Disassemble(c)
	if !o.color {
		fmt.Fprintln(o.w, text)
		return
	}
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "function "), line == "constants:":
			fmt.Fprintln(o.w, ansiBold+line+ansiReset)
		case strings.HasPrefix(trimmed, ";; ---"):
			fmt.Fprintln(o.w, ansiYellow+line+ansiReset)
		case strings.Contains(line, ";; "):
			fmt.Fprintln(o.w, ansiDim+line+ansiReset)
		default:
			fmt.Fprintln(o.w, line)
		}
	}
	fmt.Fprintln(o.w)
}
