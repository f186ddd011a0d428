package geobatch

import (
	"errors"
	"fmt"
)

// ErrBuildCancelled is returned by BuildJob.Run when the job ends by
// cancellation rather than completion. Cancellation is a normal terminal
// outcome, not a failure; callers distinguish it with errors.Is.
var ErrBuildCancelled = errors.New("build cancelled")

// InvalidOptionError indicates a configuration value that can never
// produce a working pipeline, such as a non-positive buffer capacity.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type InvalidOptionError struct {
	Option string
	Value  int
	cause  error
}

func (e *InvalidOptionError) Error() string {
	return fmt.Sprintf("invalid option %s: %d", e.Option, e.Value)
}

func (e *InvalidOptionError) Unwrap() error { return e.cause }

// Warning records one entity skipped during a build because its vertex
// data was malformed. Warnings never abort a build; the entity simply
// does not appear in the output.
type Warning struct {
	Entity EntityID
	Reason string
}

func (w Warning) String() string {
	return fmt.Sprintf("entity %d skipped: %s", w.Entity, w.Reason)
}
