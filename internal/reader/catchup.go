package reader

import (
	"github.com/gftdcojp/escat/internal/events"
	"go.uber.org/zap"
)

// CatchUpTracker detects the switch from history replay to live tailing of a
// subscription and announces it once.
type CatchUpTracker struct {
	announced bool
	logger    *zap.Logger
}

// NewCatchUpTracker creates a tracker that announces on logger.
func NewCatchUpTracker(logger *zap.Logger) *CatchUpTracker {
	return &CatchUpTracker{logger: logger}
}

// Observe classifies item. Events are returned unchanged; caught-up sentinels
// are swallowed and yield a nil event. caughtUp is true only for the first
// sentinel seen.
func (t *CatchUpTracker) Observe(item events.Item) (ev *events.Event, caughtUp bool) {
	if !item.CaughtUp {
		return item.Event, false
	}
	if t.announced {
		return nil, false
	}
	t.announced = true
	t.logger.Info("caught up, waiting for new events")
	return nil, true
}

// Announced reports whether the caught-up notice has been emitted.
func (t *CatchUpTracker) Announced() bool {
	return t.announced
}
