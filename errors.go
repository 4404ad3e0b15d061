package valueset

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by ValueSet operations.
var (
	// ErrExpansionUnsupported is returned by Expand when the value set
	// carries a composition but no strategy capable of materializing it.
	ErrExpansionUnsupported = errors.New("valueset: value set does not support expansion")

	// ErrExpansionNotInitialized is returned by a mutation that requires
	// an expansion when auto-initialization was disabled.
	ErrExpansionNotInitialized = errors.New("valueset: expansion not initialized")

	// ErrEmptyBatch is returned by Extend when called with no codings.
	ErrEmptyBatch = errors.New("valueset: empty coding batch")

	// ErrMixedSystemBatch is returned by Extend when the batch spans more
	// than one code system and MutateOptions.RequireUniformSystem is set.
	ErrMixedSystemBatch = errors.New("valueset: batch mixes code systems")
)

// ExpansionInvariantError reports a broken strategy contract: an Expander
// claimed success but produced no expansion. This is a programming error
// in the strategy, not a recoverable condition.
type ExpansionInvariantError struct {
	URL string
}

func (e *ExpansionInvariantError) Error() string {
	if e.URL == "" {
		return "valueset: no expansion present after expand"
	}
	return fmt.Sprintf("valueset: no expansion present after expanding %s", e.URL)
}

// RedundantExpansionWarning signals that Expand was called on a value set
// that is fully enumerated at construction time. It is advisory: the
// existing expansion is left untouched and the caller may ignore it.
type RedundantExpansionWarning struct {
	URL string
}

func (e *RedundantExpansionWarning) Error() string {
	if e.URL == "" {
		return "valueset: value set is already expanded at construction time"
	}
	return fmt.Sprintf("valueset: %s is already expanded at construction time", e.URL)
}

// IsRedundantExpansion reports whether err is the non-fatal advisory
// raised when expanding an enumerated value set.
func IsRedundantExpansion(err error) bool {
	var w *RedundantExpansionWarning
	return errors.As(err, &w)
}
