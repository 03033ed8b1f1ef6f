package reader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	"github.com/gftdcojp/escat/internal/events"
)

// Envelope is an event payload that has the {"body": ...} shape.
type Envelope struct {
	Body json.RawMessage
	// Custom holds the event's parsed custom metadata. It is only populated
	// when metadata output is enabled and is never nil in that case.
	Custom map[string]any
}

// Decode extracts the body of ev. It returns a *DecodeError when the payload
// is not JSON and ErrShapeMismatch when it is JSON of the wrong shape.
func Decode(ev *events.Event, withMetadata bool) (*Envelope, error) {
	if !isJSONContentType(ev.ContentType) {
		return nil, newDecodeError(ev, fmt.Errorf("unsupported content type %q", ev.ContentType))
	}
	if !utf8.Valid(ev.Data) {
		return nil, newDecodeError(ev, errors.New("payload is not valid UTF-8"))
	}
	if !json.Valid(ev.Data) {
		return nil, newDecodeError(ev, syntaxError(ev.Data))
	}

	// A non-object payload fails to unmarshal here; "null" leaves fields nil.
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(ev.Data, &fields); err != nil {
		return nil, ErrShapeMismatch
	}
	body, ok := fields["body"]
	if !ok {
		return nil, ErrShapeMismatch
	}

	env := &Envelope{Body: body}
	if withMetadata {
		env.Custom = parseCustomMetadata(ev.Metadata)
	}
	return env, nil
}

func newDecodeError(ev *events.Event, err error) *DecodeError {
	return &DecodeError{
		EventID:  ev.ID,
		Stream:   ev.Stream,
		Position: ev.Position,
		Err:      err,
	}
}

// syntaxError recovers the parser's description of why data is not JSON.
func syntaxError(data []byte) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return errors.New("empty payload")
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	return errors.New("invalid JSON")
}

func isJSONContentType(ct string) bool {
	if ct == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// parseCustomMetadata returns an empty map for absent or unparsable metadata.
func parseCustomMetadata(data []byte) map[string]any {
	custom := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return custom
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var parsed map[string]any
	if err := dec.Decode(&parsed); err != nil || parsed == nil {
		return custom
	}
	return parsed
}
