// Package events defines the boundary between the stream reader and the
// event-store client: the recorded event shape and the blocking pull
// sequence a client hands out for reads and subscriptions.
package events

import (
	"context"
	"fmt"
	"time"
)

// AllStream is the name of the global stream of every event in the store.
const AllStream = "$all"

// Event is a single recorded event as delivered by the store client.
type Event struct {
	ID          string
	Type        string
	Stream      string
	Data        []byte
	Metadata    []byte
	ContentType string
	Revision    *uint64 // nil when the writer did not record one
	Position    uint64
	Created     time.Time
}

// Item is one step of a sequence: either an event or the caught-up sentinel a
// subscription emits once its historical backlog is exhausted.
type Item struct {
	Event    *Event
	CaughtUp bool
}

// Offset selects where a read starts.
type Offset int

const (
	OffsetStart Offset = iota
	OffsetEnd
	OffsetLast
)

func (o Offset) String() string {
	switch o {
	case OffsetStart:
		return "start"
	case OffsetEnd:
		return "end"
	case OffsetLast:
		return "last"
	default:
		return "unknown"
	}
}

// ParseOffset parses "start", "end" or "last".
func ParseOffset(s string) (Offset, error) {
	switch s {
	case "start", "":
		return OffsetStart, nil
	case "end":
		return OffsetEnd, nil
	case "last":
		return OffsetLast, nil
	default:
		return OffsetStart, fmt.Errorf("invalid offset %q: expected start, end or last", s)
	}
}

// ReadOptions configures a read or subscription.
type ReadOptions struct {
	Offset Offset
	// FromPosition, when non-zero, starts at that global position and takes
	// precedence over Offset.
	FromPosition uint64
	// CatchUpNotify asks a subscription to emit an Item with CaughtUp set
	// once the backlog has been delivered.
	CatchUpNotify bool
}

// Sequence is a blocking pull source of items. Next returns io.EOF when a
// bounded read is exhausted and ctx.Err() when ctx is cancelled.
type Sequence interface {
	Next(ctx context.Context) (Item, error)
	Close() error
}

// Store opens event sequences against a store.
type Store interface {
	ReadStream(ctx context.Context, stream string, opts ReadOptions) (Sequence, error)
	ReadAll(ctx context.Context, opts ReadOptions) (Sequence, error)
	SubscribeToStream(ctx context.Context, stream string, opts ReadOptions) (Sequence, error)
	SubscribeToAll(ctx context.Context, opts ReadOptions) (Sequence, error)
}
