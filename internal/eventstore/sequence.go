package eventstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/gftdcojp/escat/internal/events"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// Event headers.
const (
	HeaderEventID     = jetstream.MsgIDHeader
	HeaderEventType   = "Event-Type"
	HeaderMetadata    = "Event-Metadata"
	HeaderRevision    = "Event-Revision"
	HeaderContentType = "Content-Type"
)

// sequence pulls events from an ephemeral consumer.
type sequence struct {
	client *Client
	stream jetstream.Stream
	iter   jetstream.MessagesContext
	name   string

	follow bool
	notify bool

	drained  bool // the backlog present at open time has been delivered
	notified bool

	closeOnce sync.Once
	closeErr  error
}

func (s *sequence) Next(ctx context.Context) (events.Item, error) {
	if err := ctx.Err(); err != nil {
		return events.Item{}, err
	}
	if s.drained {
		if !s.follow {
			return events.Item{}, io.EOF
		}
		if s.notify && !s.notified {
			s.notified = true
			return events.Item{CaughtUp: true}, nil
		}
	}

	stop := context.AfterFunc(ctx, s.iter.Stop)
	msg, err := s.iter.Next()
	stop()
	if err != nil {
		if ctx.Err() != nil {
			return events.Item{}, ctx.Err()
		}
		if errors.Is(err, jetstream.ErrMsgIteratorClosed) {
			return events.Item{}, fmt.Errorf("eventstore: subscription closed: %w", err)
		}
		return events.Item{}, fmt.Errorf("eventstore: receiving event: %w", err)
	}

	ev, err := s.client.toEvent(msg)
	if err != nil {
		return events.Item{}, err
	}
	if md, _ := msg.Metadata(); md != nil && md.NumPending == 0 {
		s.drained = true
	}
	return events.Item{Event: ev}, nil
}

// Close stops the iterator and deletes the consumer.
func (s *sequence) Close() error {
	s.closeOnce.Do(func() {
		if s.iter != nil {
			s.iter.Stop()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.stream.DeleteConsumer(ctx, s.name); err != nil && !errors.Is(err, jetstream.ErrConsumerNotFound) {
			s.closeErr = fmt.Errorf("eventstore: deleting consumer %s: %w", s.name, err)
		}
	})
	return s.closeErr
}

// toEvent converts a stored message into an event.
func (c *Client) toEvent(msg jetstream.Msg) (*events.Event, error) {
	md, err := msg.Metadata()
	if err != nil {
		return nil, fmt.Errorf("eventstore: message metadata: %w", err)
	}

	ev := &events.Event{
		Stream:   c.streamName(msg.Subject()),
		Data:     msg.Data(),
		Position: md.Sequence.Stream,
		Created:  md.Timestamp,
	}

	hdrs := msg.Headers()
	if hdrs != nil {
		ev.ID = hdrs.Get(HeaderEventID)
		ev.Type = hdrs.Get(HeaderEventType)
		ev.ContentType = hdrs.Get(HeaderContentType)
		if m := hdrs.Get(HeaderMetadata); m != "" {
			ev.Metadata = []byte(m)
		}
		if r := hdrs.Get(HeaderRevision); r != "" {
			rev, err := strconv.ParseUint(r, 10, 64)
			if err != nil {
				c.logger.Debug("ignoring malformed revision header",
					zap.Uint64("position", ev.Position),
					zap.String("value", r),
				)
			} else {
				ev.Revision = &rev
			}
		}
	}
	// Events published without a de-duplication id are named by position.
	if ev.ID == "" {
		ev.ID = strconv.FormatUint(ev.Position, 10)
	}
	return ev, nil
}
