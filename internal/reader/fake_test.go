package reader

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gftdcojp/escat/internal/events"
)

type fakeSequence struct {
	mu     sync.Mutex
	items  []events.Item
	err    error // returned once items run out
	block  bool  // block until ctx is done once items run out
	closed bool
}

func (s *fakeSequence) Next(ctx context.Context) (events.Item, error) {
	s.mu.Lock()
	if len(s.items) > 0 {
		it := s.items[0]
		s.items = s.items[1:]
		s.mu.Unlock()
		return it, nil
	}
	s.mu.Unlock()

	if s.err != nil {
		return events.Item{}, s.err
	}
	if s.block {
		<-ctx.Done()
		return events.Item{}, ctx.Err()
	}
	return events.Item{}, io.EOF
}

func (s *fakeSequence) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeSequence) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeStore struct {
	seq     *fakeSequence
	openErr error

	call   string
	stream string
	opts   events.ReadOptions
}

func (f *fakeStore) open(call, stream string, opts events.ReadOptions) (events.Sequence, error) {
	f.call, f.stream, f.opts = call, stream, opts
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.seq, nil
}

func (f *fakeStore) ReadStream(_ context.Context, stream string, opts events.ReadOptions) (events.Sequence, error) {
	return f.open("ReadStream", stream, opts)
}

func (f *fakeStore) ReadAll(_ context.Context, opts events.ReadOptions) (events.Sequence, error) {
	return f.open("ReadAll", events.AllStream, opts)
}

func (f *fakeStore) SubscribeToStream(_ context.Context, stream string, opts events.ReadOptions) (events.Sequence, error) {
	return f.open("SubscribeToStream", stream, opts)
}

func (f *fakeStore) SubscribeToAll(_ context.Context, opts events.ReadOptions) (events.Sequence, error) {
	return f.open("SubscribeToAll", events.AllStream, opts)
}

func testEvent(pos uint64, data string) *events.Event {
	return &events.Event{
		ID:       fmt.Sprintf("evt-%d", pos),
		Type:     "TestEvent",
		Stream:   "test-stream",
		Data:     []byte(data),
		Position: pos,
		Created:  time.Date(2024, 5, 1, 12, 0, 0, int(pos), time.UTC),
	}
}

func eventItem(ev *events.Event) events.Item {
	return events.Item{Event: ev}
}

func bodyItem(pos uint64, body string) events.Item {
	return eventItem(testEvent(pos, `{"body":`+body+`}`))
}

var caughtUpItem = events.Item{CaughtUp: true}

// journal records output lines and log entries in the order they were written.
type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) writer(prefix string) io.Writer {
	return journalWriter{j: j, prefix: prefix}
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

type journalWriter struct {
	j      *journal
	prefix string
}

func (w journalWriter) Write(p []byte) (int, error) {
	w.j.mu.Lock()
	defer w.j.mu.Unlock()
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		w.j.entries = append(w.j.entries, w.prefix+line)
	}
	return len(p), nil
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(b)
}
