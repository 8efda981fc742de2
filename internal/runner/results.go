package runner

import (
	"errors"
)

// Output is what one command produced.
type Output struct {
	Seq     Seq
	Command string
	Lines   []string
	// ExitStatus is nil when the remote side never reported one.
	ExitStatus *int
	Err        error
}

// Results holds command outputs in ascending sequence order.
type Results []Output

// Map returns the lines of each command keyed by sequence number.
func (rs Results) Map() map[Seq][]string {
	m := make(map[Seq][]string, len(rs))
	for _, r := range rs {
		lines := r.Lines
		if lines == nil {
			lines = []string{}
		}
		m[r.Seq] = lines
	}
	return m
}

// Lines flattens every command's lines in sequence order.
func (rs Results) Lines() []string {
	var out []string
	for _, r := range rs {
		out = append(out, r.Lines...)
	}
	return out
}

// Err joins the errors of all failed commands.
func (rs Results) Err() error {
	var errs []error
	for _, r := range rs {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errors.Join(errs...)
}

// Failed reports whether any command errored or exited non-zero.
func (rs Results) Failed() bool {
	for _, r := range rs {
		if r.Err != nil || (r.ExitStatus != nil && *r.ExitStatus != 0) {
			return true
		}
	}
	return false
}
