package reader

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/gftdcojp/escat/internal/events"
)

// Well-known custom metadata keys, checked in order.
var (
	correlationKeys = []string{"$correlationId", "correlation_id"}
	causationKeys   = []string{"$causationId", "causation_id"}
)

// Metadata is the fixed metadata shape written next to a body. Every key is
// always present; unknown values are written as null. Events read from the
// store always carry a position and a timestamp, so those two are null only
// for events built without them.
type Metadata struct {
	ID            string  `json:"id"`
	Type          string  `json:"type"`
	Stream        string  `json:"stream"`
	Revision      *uint64 `json:"revision"`
	Position      *uint64 `json:"position"`
	Timestamp     *string `json:"timestamp"`
	CorrelationID *string `json:"correlation_id"`
	CausationID   *string `json:"causation_id"`
}

// Record is the output shape when metadata is enabled.
type Record struct {
	Data     json.RawMessage `json:"data"`
	Metadata Metadata        `json:"metadata"`
}

// Formatter renders envelopes as single JSON lines.
type Formatter struct {
	w            *bufio.Writer
	withMetadata bool
}

// NewFormatter creates a formatter writing to w.
func NewFormatter(w io.Writer, withMetadata bool) *Formatter {
	return &Formatter{w: bufio.NewWriter(w), withMetadata: withMetadata}
}

// Format renders one record without a trailing newline.
func (f *Formatter) Format(env *Envelope, ev *events.Event) ([]byte, error) {
	var buf bytes.Buffer
	if !f.withMetadata {
		if err := json.Compact(&buf, env.Body); err != nil {
			return nil, fmt.Errorf("compacting body: %w", err)
		}
		return buf.Bytes(), nil
	}

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(Record{Data: env.Body, Metadata: buildMetadata(env, ev)}); err != nil {
		return nil, fmt.Errorf("encoding record: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Write formats one record, writes it as a line and flushes.
func (f *Formatter) Write(env *Envelope, ev *events.Event) error {
	line, err := f.Format(env, ev)
	if err != nil {
		return err
	}
	if _, err := f.w.Write(line); err != nil {
		return err
	}
	if err := f.w.WriteByte('\n'); err != nil {
		return err
	}
	return f.w.Flush()
}

// Flush writes any buffered output.
func (f *Formatter) Flush() error {
	return f.w.Flush()
}

func buildMetadata(env *Envelope, ev *events.Event) Metadata {
	m := Metadata{
		ID:            ev.ID,
		Type:          ev.Type,
		Stream:        ev.Stream,
		Revision:      ev.Revision,
		CorrelationID: lookupString(env.Custom, correlationKeys),
		CausationID:   lookupString(env.Custom, causationKeys),
	}
	if ev.Position > 0 {
		pos := ev.Position
		m.Position = &pos
	}
	if !ev.Created.IsZero() {
		ts := ev.Created.UTC().Format(time.RFC3339Nano)
		m.Timestamp = &ts
	}
	return m
}

func lookupString(custom map[string]any, keys []string) *string {
	for _, k := range keys {
		v, ok := custom[k]
		if !ok || v == nil {
			continue
		}
		var s string
		switch tv := v.(type) {
		case string:
			s = tv
		case json.Number:
			s = tv.String()
		default:
			s = fmt.Sprint(tv)
		}
		return &s
	}
	return nil
}
