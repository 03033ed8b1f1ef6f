package reader

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch marks an event whose payload is valid JSON but not an
// object carrying a "body" field. Such events are skipped without a report.
var ErrShapeMismatch = errors.New("payload is not an object with a body field")

// DecodeError reports an event whose payload could not be parsed.
type DecodeError struct {
	EventID  string
	Stream   string
	Position uint64
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding event %s in stream %s at position %d: %v", e.EventID, e.Stream, e.Position, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ConnectionError is a failure to reach, authenticate with, or keep reading
// from the store. It always ends the run.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *ConnectionError) Unwrap() error { return e.Err }
