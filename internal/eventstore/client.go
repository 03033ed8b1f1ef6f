package eventstore

import (
	"context"
	"fmt"
	"time"

	"github.com/gftdcojp/escat/internal/config"
	"github.com/gftdcojp/escat/internal/events"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"
)

// Config configures the event store client.
type Config struct {
	// JS is the JetStream context.
	JS jetstream.JetStream

	// Stream is the JetStream stream holding every event.
	// Defaults to "EVENTS".
	Stream string

	// SubjectPrefix is the subject prefix of event streams.
	// Defaults to "events".
	SubjectPrefix string

	Logger *zap.Logger
}

// Client reads and subscribes to event streams. It implements events.Store.
type Client struct {
	js     jetstream.JetStream
	store  string
	prefix string
	logger *zap.Logger
}

var _ events.Store = (*Client)(nil)

// New creates a new event store client.
func New(cfg Config) (*Client, error) {
	if cfg.JS == nil {
		return nil, fmt.Errorf("eventstore: JS (JetStream context) is required")
	}
	store := cfg.Stream
	if store == "" {
		store = "EVENTS"
	}
	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "events"
	}
	if err := config.ValidateSubjectPrefix(prefix); err != nil {
		return nil, fmt.Errorf("eventstore: subject prefix: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		js:     cfg.JS,
		store:  store,
		prefix: prefix,
		logger: logger,
	}, nil
}

// ReadStream reads a named stream and ends with io.EOF once the events
// pending at open time have been delivered.
func (c *Client) ReadStream(ctx context.Context, stream string, opts events.ReadOptions) (events.Sequence, error) {
	if err := ValidateStreamName(stream); err != nil {
		return nil, err
	}
	return c.open(ctx, c.streamSubject(stream), opts, false)
}

// ReadAll reads the global stream and ends with io.EOF.
func (c *Client) ReadAll(ctx context.Context, opts events.ReadOptions) (events.Sequence, error) {
	return c.open(ctx, c.allSubject(), opts, false)
}

// SubscribeToStream follows a named stream until ctx is cancelled.
func (c *Client) SubscribeToStream(ctx context.Context, stream string, opts events.ReadOptions) (events.Sequence, error) {
	if err := ValidateStreamName(stream); err != nil {
		return nil, err
	}
	return c.open(ctx, c.streamSubject(stream), opts, true)
}

// SubscribeToAll follows the global stream until ctx is cancelled.
func (c *Client) SubscribeToAll(ctx context.Context, opts events.ReadOptions) (events.Sequence, error) {
	return c.open(ctx, c.allSubject(), opts, true)
}

// consumerConfig maps read options onto an ephemeral, unacknowledged consumer.
func consumerConfig(filter string, opts events.ReadOptions) jetstream.ConsumerConfig {
	cfg := jetstream.ConsumerConfig{
		FilterSubject:     filter,
		AckPolicy:         jetstream.AckNonePolicy,
		InactiveThreshold: time.Minute,
		MemoryStorage:     true,
	}
	switch {
	case opts.FromPosition > 0:
		cfg.DeliverPolicy = jetstream.DeliverByStartSequencePolicy
		cfg.OptStartSeq = opts.FromPosition
	case opts.Offset == events.OffsetEnd:
		cfg.DeliverPolicy = jetstream.DeliverNewPolicy
	case opts.Offset == events.OffsetLast:
		cfg.DeliverPolicy = jetstream.DeliverLastPolicy
	default:
		cfg.DeliverPolicy = jetstream.DeliverAllPolicy
	}
	return cfg
}

func (c *Client) open(ctx context.Context, filter string, opts events.ReadOptions, follow bool) (events.Sequence, error) {
	st, err := c.js.Stream(ctx, c.store)
	if err != nil {
		if isStreamNotFound(err) {
			return nil, fmt.Errorf("%w: %s", ErrStoreNotFound, c.store)
		}
		return nil, fmt.Errorf("eventstore: stream %q: %w", c.store, err)
	}

	cons, err := st.CreateConsumer(ctx, consumerConfig(filter, opts))
	if err != nil {
		return nil, fmt.Errorf("eventstore: creating consumer on %q: %w", c.store, err)
	}
	info := cons.CachedInfo()

	seq := &sequence{
		client: c,
		stream: st,
		name:   info.Name,
		follow: follow,
		notify: follow && opts.CatchUpNotify,
	}

	c.logger.Debug("consumer created",
		zap.String("consumer", info.Name),
		zap.String("filter", filter),
		zap.Stringer("offset", opts.Offset),
		zap.Uint64("from_position", opts.FromPosition),
		zap.Uint64("pending", info.NumPending),
		zap.Bool("follow", follow),
	)

	// Nothing to replay: a bounded read is already over and a subscription is
	// already caught up.
	if info.NumPending == 0 {
		seq.drained = true
	}
	if !follow && seq.drained {
		return seq, nil
	}

	iter, err := cons.Messages()
	if err != nil {
		seq.Close()
		return nil, fmt.Errorf("eventstore: starting message iterator: %w", err)
	}
	seq.iter = iter
	return seq, nil
}
