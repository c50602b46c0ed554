package shim

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
)

// Reporter provides user-friendly rendering of generated types and package
// errors, for interactive debugging of proxy setups
type Reporter struct {
	out     io.Writer
	verbose bool
}

// NewReporter creates a reporter writing to out. In verbose mode it also
// prints underlying causes and per-site binding state.
func NewReporter(out io.Writer, verbose bool) *Reporter {
	return &Reporter{
		out:     out,
		verbose: verbose,
	}
}

// DescribeType renders one generated type: name, identity, delegate and the
// implemented method set with the binding state of each call site
func (r *Reporter) DescribeType(t *GeneratedType) {
	if t == nil {
		fmt.Fprintln(r.out, "<nil type>")
		return
	}

	heading := color.New(color.FgCyan, color.Bold)
	heading.Fprintf(r.out, "%s\n", t.Name())
	fmt.Fprintf(r.out, "  id: %s\n", t.ID())
	if dt := t.desc.DelegateType(); dt != nil {
		fmt.Fprintf(r.out, "  delegate: %s\n", dt)
	}
	if !IsGeneratedType(t) {
		color.New(color.FgYellow).Fprintf(r.out, "  not registered\n")
	}

	for _, tm := range t.methods {
		state := "default"
		c := color.New(color.FgWhite)
		if tm.site != nil {
			if tm.site.Bound() {
				state = "bound"
				c = color.New(color.FgGreen)
			} else {
				state = "unbound"
				c = color.New(color.FgYellow)
			}
		}
		fmt.Fprintf(r.out, "  %-8s", tm.info.Kind)
		c.Fprintf(r.out, "%-8s ", state)
		fmt.Fprintf(r.out, "%s\n", tm.info.Signature.String())
	}
}

// DescribeRegistry renders a summary of the process-wide registry
func (r *Reporter) DescribeRegistry() {
	reg := globalRegistry()
	fmt.Fprintf(r.out, "registered generated types: %d\n", reg.size())
}

// ReportError renders a package error with its code, method context, cause
// chain and hints
func (r *Reporter) ReportError(err error) {
	if err == nil {
		return
	}

	var e *Error
	if !errors.As(err, &e) {
		fmt.Fprintf(r.out, "error: %s\n", err.Error())
		return
	}

	header := color.New(color.FgRed, color.Bold)
	header.Fprintf(r.out, "%s\n", e.Code)
	fmt.Fprintf(r.out, "  %s\n", e.Message)
	if e.Method != "" {
		fmt.Fprintf(r.out, "  method: %s\n", e.Method)
	}
	if r.verbose && e.Cause != nil {
		fmt.Fprintf(r.out, "  cause: %s\n", e.Cause.Error())
	}
	for _, hint := range e.Hints {
		color.New(color.FgYellow).Fprint(r.out, "  hint: ")
		fmt.Fprintf(r.out, "%s\n", hint)
	}
}
