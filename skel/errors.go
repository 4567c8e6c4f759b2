package skel

import (
	"errors"
	"fmt"
	"strings"
)

// ErrClosed reports a lifecycle call on a state whose handle was
// already closed or moved to the next state.
var ErrClosed = errors.New("skel: object handle closed or moved")

// OpenError reports that the compiled object could not be parsed.
type OpenError struct {
	Object string
	Err    error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.Object, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// LoadError reports a verification or load failure. It is not
// retryable: the verifier rejected the program as given, and the
// diagnostic log is the only actionable output.
type LoadError struct {
	Object string
	Log    string // verifier diagnostic text, possibly empty
	Err    error
}

func (e *LoadError) Error() string {
	if e.Log == "" {
		return fmt.Sprintf("load %s: %v", e.Object, e.Err)
	}
	return fmt.Sprintf("load %s: %v\nverifier log:\n%s", e.Object, e.Err, e.Log)
}

func (e *LoadError) Unwrap() error { return e.Err }

// AttachFailure is one program that could not be attached.
type AttachFailure struct {
	Program string
	Err     error
}

// AttachError collects per-program attach failures. Programs attached
// before a failure stay attached; their links are owned by the
// returned attached-state object and released on Close. Callers decide
// whether a partial attachment is acceptable.
type AttachError struct {
	Object   string
	Failures []AttachFailure
	Attached []string // programs that did attach, in attach order
}

func (e *AttachError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "attach %s: %d of %d programs failed",
		e.Object, len(e.Failures), len(e.Failures)+len(e.Attached))
	for _, f := range e.Failures {
		fmt.Fprintf(&sb, "\n  %s: %v", f.Program, f.Err)
	}
	return sb.String()
}
