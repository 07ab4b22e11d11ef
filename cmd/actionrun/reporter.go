package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/fatih/color"

	"github.com/vk/actionrungo/internal/diag"
)

var (
	msgColor   = color.New(color.FgCyan)
	warnColor  = color.New(color.FgYellow)
	errColor   = color.New(color.FgRed)
	fatalColor = color.New(color.FgRed, color.Bold)
)

// consoleReporter renders the loader's message and fatal channels for a
// terminal user.
type consoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

func (r *consoleReporter) Message(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	msgColor.Fprintln(r.out, text)
}

func (r *consoleReporter) Fatal(text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fatalColor.Fprintf(r.out, "Fatal: %s\n", text)
}

// renderDiags prints the diagnostics of a failed load attempt, colored by
// severity.
func renderDiags(out io.Writer, diags []*diag.Diagnostic) {
	for _, d := range diags {
		switch d.Severity {
		case diag.Error:
			errColor.Fprintln(out, d.String())
		case diag.Warning:
			warnColor.Fprintln(out, d.String())
		default:
			fmt.Fprintln(out, d.String())
		}
	}
}
