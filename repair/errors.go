package repair

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig reports invalid option combinations and slice strings.
	ErrConfig = errors.New("configuration error")
	// ErrBacktrackExhausted reports a drop search that found no parse
	// within its bounds.
	ErrBacktrackExhausted = errors.New("backtrack exhausted")
)

// BacktrackError carries the furthest offset the drop search parsed to
// and the error that stopped the initial read.
type BacktrackError struct {
	Offset int
	Err    error
}

func (e *BacktrackError) Error() string {
	return fmt.Sprintf("drop search exhausted, furthest offset %d: %v", e.Offset, e.Err)
}

func (e *BacktrackError) Unwrap() []error {
	return []error{ErrBacktrackExhausted, e.Err}
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfig, fmt.Sprintf(format, args...))
}
