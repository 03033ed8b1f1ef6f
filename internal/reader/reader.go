// Package reader implements the stream reading and live-follow engine: it
// picks a read mode, pulls events one at a time, announces the switch to
// live tailing, and writes each decodable event as one JSON line.
package reader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"syscall"
	"time"

	"github.com/gftdcojp/escat/internal/events"
	"github.com/gftdcojp/escat/internal/metrics"
	"go.uber.org/zap"
)

// State is the state of a read session.
type State int

const (
	StateReading State = iota
	StateExhausted
	StateStoppedByCount
	StateStoppedByCancel
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateReading:
		return "reading"
	case StateExhausted:
		return "exhausted"
	case StateStoppedByCount:
		return "stopped_by_count"
	case StateStoppedByCancel:
		return "stopped_by_cancel"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Graceful reports whether s is a terminal state that should exit with 0.
func (s State) Graceful() bool {
	return s == StateExhausted || s == StateStoppedByCount || s == StateStoppedByCancel
}

// Config describes one read.
type Config struct {
	Stream       string
	Follow       bool
	WithMetadata bool
	// Count stops the read after that many records; 0 means no limit.
	Count   int
	Options events.ReadOptions
}

// Session is a snapshot of a read's progress.
type Session struct {
	Mode      Mode
	Announced bool
	Emitted   int
	Limit     int
	State     State
}

// Reader runs a single read session against a store.
type Reader struct {
	store  events.Store
	cfg    Config
	out    *Formatter
	logger *zap.Logger

	mu      sync.Mutex
	session Session
}

// New creates a reader writing records to out.
func New(store events.Store, cfg Config, out io.Writer, logger *zap.Logger) *Reader {
	return &Reader{
		store:  store,
		cfg:    cfg,
		out:    NewFormatter(out, cfg.WithMetadata),
		logger: logger,
		session: Session{
			Mode:  SelectMode(cfg.Stream, cfg.Follow),
			Limit: cfg.Count,
			State: StateReading,
		},
	}
}

// Session returns a snapshot of the current session.
func (r *Reader) Session() Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// Progress reports whether the read follows the stream and has caught up.
func (r *Reader) Progress() (following, caughtUp bool) {
	s := r.Session()
	return s.Mode.Follow, s.Announced
}

// Run reads until the sequence is exhausted, the count is reached, ctx is
// cancelled, or the source fails. Only the last case returns an error.
func (r *Reader) Run(ctx context.Context) (State, error) {
	seq, mode, err := SelectSource(ctx, r.store, Request{
		Stream:  r.cfg.Stream,
		Follow:  r.cfg.Follow,
		Options: r.cfg.Options,
	})
	if err != nil {
		if ctx.Err() != nil {
			return r.cancel(), nil
		}
		return r.finish(StateFailed), err
	}
	defer func() {
		if err := seq.Close(); err != nil {
			r.logger.Debug("closing sequence", zap.Error(err))
		}
	}()

	r.logger.Debug("read started",
		zap.String("stream", r.cfg.Stream),
		zap.Stringer("mode", mode),
		zap.Stringer("offset", r.cfg.Options.Offset),
		zap.Uint64("from_position", r.cfg.Options.FromPosition),
		zap.Int("count", r.cfg.Count),
	)

	var tracker *CatchUpTracker
	if mode.Follow {
		tracker = NewCatchUpTracker(r.logger)
	}

	for {
		item, err := seq.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				r.logger.Debug("end of stream reached", zap.Int("emitted", r.Session().Emitted))
				return r.finish(StateExhausted), nil
			case ctx.Err() != nil:
				return r.cancel(), nil
			default:
				return r.finish(StateFailed), &ConnectionError{Op: mode.String(), Err: err}
			}
		}

		ev := item.Event
		if tracker != nil {
			var caughtUp bool
			ev, caughtUp = tracker.Observe(item)
			if caughtUp {
				r.markCaughtUp()
			}
		}
		if ev == nil {
			continue
		}
		metrics.EventsReceived.WithLabelValues(r.cfg.Stream).Inc()

		env, err := Decode(ev, r.cfg.WithMetadata)
		if err != nil {
			r.skip(ev, err)
			continue
		}

		start := time.Now()
		if err := r.out.Write(env, ev); err != nil {
			if isBrokenPipe(err) {
				return r.cancel(), nil
			}
			return r.finish(StateFailed), fmt.Errorf("writing record: %w", err)
		}
		metrics.WriteLatency.WithLabelValues(r.cfg.Stream).Observe(time.Since(start).Seconds())
		metrics.RecordsEmitted.WithLabelValues(r.cfg.Stream).Inc()

		if emitted := r.recordEmitted(); r.cfg.Count > 0 && emitted >= r.cfg.Count {
			r.logger.Debug("count reached", zap.Int("count", r.cfg.Count))
			return r.finish(StateStoppedByCount), nil
		}
	}
}

func (r *Reader) skip(ev *events.Event, err error) {
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		metrics.DecodeErrors.WithLabelValues(r.cfg.Stream).Inc()
		r.logger.Error("skipping undecodable event",
			zap.String("event_id", ev.ID),
			zap.String("stream", ev.Stream),
			zap.Uint64("position", ev.Position),
			zap.Error(decodeErr.Err),
		)
		return
	}
	metrics.EventsSkipped.WithLabelValues(r.cfg.Stream, "shape").Inc()
}

func (r *Reader) cancel() State {
	if err := r.out.Flush(); err != nil && !isBrokenPipe(err) {
		r.logger.Debug("flushing output", zap.Error(err))
	}
	r.logger.Info("interrupted, stopping", zap.Int("emitted", r.Session().Emitted))
	return r.finish(StateStoppedByCancel)
}

func (r *Reader) finish(s State) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.State = s
	return s
}

func (r *Reader) markCaughtUp() {
	metrics.CaughtUp.WithLabelValues(r.cfg.Stream).Set(1)
	r.mu.Lock()
	r.session.Announced = true
	r.mu.Unlock()
}

func (r *Reader) recordEmitted() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.session.Emitted++
	return r.session.Emitted
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE)
}
