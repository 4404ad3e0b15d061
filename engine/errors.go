package engine

import "fmt"

// UnknownSystemError reports an include or exclude rule naming a code
// system the concept source does not know.
type UnknownSystemError struct {
	System string
}

func (e *UnknownSystemError) Error() string {
	return fmt.Sprintf("engine: unknown code system %q", e.System)
}

// CircularReferenceError reports a cycle through nested value set
// references.
type CircularReferenceError struct {
	URL string
}

func (e *CircularReferenceError) Error() string {
	return fmt.Sprintf("engine: circular value set reference through %q", e.URL)
}

// NestingTooDeepError reports that nested value set references exceeded
// the configured depth bound.
type NestingTooDeepError struct {
	URL   string
	Depth int
}

func (e *NestingTooDeepError) Error() string {
	return fmt.Sprintf("engine: value set nesting exceeds depth %d at %q", e.Depth, e.URL)
}

// UnresolvedReferenceError reports a value set reference the resolver
// could not satisfy.
type UnresolvedReferenceError struct {
	URL string
	Err error
}

func (e *UnresolvedReferenceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("engine: cannot resolve value set %q: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("engine: cannot resolve value set %q", e.URL)
}

// Unwrap returns the resolver's error.
func (e *UnresolvedReferenceError) Unwrap() error {
	return e.Err
}

// ExpansionTooLargeError reports that the full expansion exceeded the
// configured size cap. The expansion is failed rather than truncated.
type ExpansionTooLargeError struct {
	Size  int
	Limit int
}

func (e *ExpansionTooLargeError) Error() string {
	return fmt.Sprintf("engine: expansion of %d concepts exceeds limit %d", e.Size, e.Limit)
}
