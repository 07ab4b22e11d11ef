// Package diag provides the severity-tagged diagnostic collector shared by
// every stage of the model loading pipeline. A single Collector instance is
// passed by reference through parse, link, and build so that messages from
// independently-implemented stages accumulate in one place.
package diag

import (
	"fmt"

	"github.com/hashicorp/hcl/v2"
)

// Severity classifies a diagnostic message.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
)

// String returns the lowercase name of the severity.
func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("severity(%d)", int(s))
	}
}

// Diagnostic is a single message produced during parsing, linking, or
// semantic build.
type Diagnostic struct {
	Severity Severity
	Summary  string
	Detail   string

	// Subject is the source range the message refers to, when known.
	Subject *hcl.Range
}

// String renders the diagnostic in the "severity: summary; detail" form used
// by the CLI and by log output.
func (d *Diagnostic) String() string {
	msg := fmt.Sprintf("%s: %s", d.Severity, d.Summary)
	if d.Subject != nil {
		msg = fmt.Sprintf("%s: %s: %s", d.Subject, d.Severity, d.Summary)
	}
	if d.Detail != "" {
		msg += "; " + d.Detail
	}
	return msg
}

// Collector accumulates diagnostics for one load attempt. Collectors are
// created fresh per attempt and discarded once the load decision is made.
// A Collector is not safe for concurrent use; the pipeline is sequential.
type Collector struct {
	diags []*Diagnostic
	max   Severity
	seen  bool
}

// NewCollector returns an empty Collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Record appends a diagnostic with the given severity and summary text.
func (c *Collector) Record(sev Severity, summary string) {
	c.add(&Diagnostic{Severity: sev, Summary: summary})
}

// Recordf is Record with fmt.Sprintf formatting of the summary.
func (c *Collector) Recordf(sev Severity, format string, args ...any) {
	c.Record(sev, fmt.Sprintf(format, args...))
}

// Add appends a fully-formed diagnostic.
func (c *Collector) Add(d *Diagnostic) {
	c.add(d)
}

// Append converts HCL diagnostics into the collector's severity model and
// records them. hcl.DiagError maps to Error, hcl.DiagWarning to Warning,
// anything else to Info.
func (c *Collector) Append(diags hcl.Diagnostics) {
	for _, d := range diags {
		sev := Info
		switch d.Severity {
		case hcl.DiagError:
			sev = Error
		case hcl.DiagWarning:
			sev = Warning
		}
		c.add(&Diagnostic{
			Severity: sev,
			Summary:  d.Summary,
			Detail:   d.Detail,
			Subject:  d.Subject,
		})
	}
}

func (c *Collector) add(d *Diagnostic) {
	c.diags = append(c.diags, d)
	if !c.seen || d.Severity > c.max {
		c.max = d.Severity
		c.seen = true
	}
}

// HasSeverityAtLeast reports whether any recorded diagnostic has a severity
// at or above level. It is a pure query backed by a running max.
func (c *Collector) HasSeverityAtLeast(level Severity) bool {
	return c.seen && c.max >= level
}

// Diags returns the accumulated diagnostics in submission order.
func (c *Collector) Diags() []*Diagnostic {
	return c.diags
}

// Len returns the number of accumulated diagnostics.
func (c *Collector) Len() int {
	return len(c.diags)
}
