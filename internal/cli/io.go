package cli

import (
	"fmt"
	"io"
)

// IO carries a command's streams.
//
// Problems recorded with [IO.Problem] are things the operator has to resolve
// by hand, such as a project name present in two stages. They go to stderr
// before the first line of regular output and again when the command ends,
// so they survive `pj sync | tail`, and they turn the exit code into 1.
type IO struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	problems     []string
	shownAtStart bool
}

// NewIO returns an IO over the given streams.
func NewIO(in io.Reader, out, errOut io.Writer) *IO {
	return &IO{in: in, out: out, errOut: errOut}
}

// Problem records an issue together with the fix the operator should apply.
func (o *IO) Problem(issue, fix string) {
	o.problems = append(o.problems, issue+": "+fix)
}

// Warn prints a notice to stderr right away. The exit code is unaffected.
func (o *IO) Warn(msg string) {
	o.warning(msg)
}

// Println writes a line to stdout.
func (o *IO) Println(a ...any) {
	o.beforeOutput()
	_, _ = fmt.Fprintln(o.out, a...)
}

// Printf writes formatted output to stdout.
func (o *IO) Printf(format string, a ...any) {
	o.beforeOutput()
	_, _ = fmt.Fprintf(o.out, format, a...)
}

// ErrPrintln writes a line to stderr.
func (o *IO) ErrPrintln(a ...any) {
	_, _ = fmt.Fprintln(o.errOut, a...)
}

// Finish repeats recorded problems after all output and returns the exit
// code: 1 if there were any, 0 otherwise.
func (o *IO) Finish() int {
	if len(o.problems) == 0 {
		return 0
	}

	o.beforeOutput()

	for _, p := range o.problems {
		o.warning(p)
	}

	return 1
}

func (o *IO) beforeOutput() {
	if o.shownAtStart || len(o.problems) == 0 {
		return
	}

	o.shownAtStart = true

	for _, p := range o.problems {
		o.warning(p)
	}
}

func (o *IO) warning(msg string) {
	_, _ = fmt.Fprintln(o.errOut, "warning:", msg)
}
