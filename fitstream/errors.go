package fitstream

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned while reading a stream wraps one of
// them, so callers can tell bad framing from bad values with errors.Is.
var (
	// ErrFormat covers signature mismatch, impossible header sizes, invalid
	// base type codes and architecture bytes.
	ErrFormat = errors.New("format violation")
	// ErrFraming covers tokens overflowing the data, data messages without
	// a definition and checksum mismatches.
	ErrFraming = errors.New("framing error")
	// ErrValue covers timestamps out of order or beyond the allowed gap and
	// field bytes that cannot be interpreted under their declared type.
	ErrValue = errors.New("value error")
)

// ParseError locates a failure in the stream.
type ParseError struct {
	Offset int
	Kind   Kind
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s at offset %d: %v", e.Kind, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseError(offset int, kind Kind, err error) error {
	var pe *ParseError
	if errors.As(err, &pe) {
		return err
	}
	return &ParseError{Offset: offset, Kind: kind, Err: err}
}
