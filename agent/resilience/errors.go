package resilience

import (
	"errors"
	"fmt"
)

var (
	ErrUnavailable       = errors.New("dependency unavailable")
	ErrFailed            = errors.New("dependency failed")
	ErrTimeout           = errors.New("dependency timed out")
	ErrUnknownDependency = errors.New("unknown dependency")
	errRejectedByBreaker = errors.New("rejected by circuit breaker")
)

// Kind classifies how a dependency invocation ended.
type Kind string

const (
	KindUnavailable Kind = "unavailable"
	KindFailed      Kind = "failed"
	KindTimeout     Kind = "timeout"
	KindCanceled    Kind = "canceled"
)

// DependencyError is returned by Executor.Do for every non-successful
// invocation. It unwraps to the sentinel for its kind and to the last
// underlying error. A timeout also unwraps to ErrFailed because it counts as
// a failure for breaker accounting.
type DependencyError struct {
	Dependency string
	Kind       Kind
	Attempts   int
	Err        error
}

func (e *DependencyError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %s after %d attempt(s)", e.Dependency, e.Kind, e.Attempts)
	}
	return fmt.Sprintf("%s %s after %d attempt(s): %v", e.Dependency, e.Kind, e.Attempts, e.Err)
}

func (e *DependencyError) Unwrap() []error {
	var out []error
	switch e.Kind {
	case KindUnavailable:
		out = append(out, ErrUnavailable)
	case KindFailed:
		out = append(out, ErrFailed)
	case KindTimeout:
		out = append(out, ErrTimeout, ErrFailed)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// KindOf extracts the dependency error kind from err, or "" when err did not
// come from the executor.
func KindOf(err error) Kind {
	var de *DependencyError
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as non-retriable. The executor stops at the first
// permanent error and reports a terminal failure.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}
