package eventstore

import (
	"errors"
	"strings"

	"github.com/nats-io/nats.go/jetstream"
)

var (
	// ErrStoreNotFound is returned when the store stream does not exist.
	ErrStoreNotFound = errors.New("eventstore: store stream not found")

	// ErrInvalidStreamName is returned for stream names that cannot be mapped
	// to a subject token.
	ErrInvalidStreamName = errors.New("eventstore: invalid stream name")
)

// isStreamNotFound checks if an error means the JetStream stream is missing.
func isStreamNotFound(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, jetstream.ErrStreamNotFound) {
		return true
	}
	// Older servers answer with a generic API error.
	return strings.Contains(err.Error(), "stream not found")
}
