package reader

import (
	"context"

	"github.com/gftdcojp/escat/internal/events"
)

// Mode is the read mode picked for a request.
type Mode struct {
	Global bool // reading $all rather than a named stream
	Follow bool // live subscription rather than a bounded read
}

func (m Mode) String() string {
	target := "stream"
	if m.Global {
		target = "$all"
	}
	if m.Follow {
		return "subscribe to " + target
	}
	return "read " + target
}

// Request describes what to read.
type Request struct {
	Stream  string
	Follow  bool
	Options events.ReadOptions
}

// SelectMode picks the read mode for a stream name and follow flag.
func SelectMode(stream string, follow bool) Mode {
	return Mode{Global: stream == events.AllStream, Follow: follow}
}

// SelectSource opens the sequence matching req. Subscriptions always ask the
// store for a caught-up sentinel. Open failures are returned as
// *ConnectionError and are not retried.
func SelectSource(ctx context.Context, store events.Store, req Request) (events.Sequence, Mode, error) {
	mode := SelectMode(req.Stream, req.Follow)
	opts := req.Options
	opts.CatchUpNotify = mode.Follow

	var (
		seq events.Sequence
		err error
	)
	switch {
	case mode.Global && mode.Follow:
		seq, err = store.SubscribeToAll(ctx, opts)
	case mode.Global:
		seq, err = store.ReadAll(ctx, opts)
	case mode.Follow:
		seq, err = store.SubscribeToStream(ctx, req.Stream, opts)
	default:
		seq, err = store.ReadStream(ctx, req.Stream, opts)
	}
	if err != nil {
		return nil, mode, &ConnectionError{Op: mode.String(), Err: err}
	}
	return seq, mode, nil
}
