package eventstore

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/gftdcojp/escat/internal/events"
)

// ValidateStreamName checks that name can be used as a subject suffix.
// Names may contain dots; every dot-separated token must be non-empty and
// free of whitespace and the wildcards '*' and '>'.
func ValidateStreamName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidStreamName)
	}
	if name == events.AllStream {
		return fmt.Errorf("%w: %q is reserved for the global stream", ErrInvalidStreamName, name)
	}
	for _, tok := range strings.Split(name, ".") {
		if tok == "" {
			return fmt.Errorf("%w: %q has an empty token", ErrInvalidStreamName, name)
		}
		if strings.ContainsAny(tok, "*>") {
			return fmt.Errorf("%w: %q contains a wildcard", ErrInvalidStreamName, name)
		}
		if strings.IndexFunc(tok, unicode.IsSpace) >= 0 {
			return fmt.Errorf("%w: %q contains whitespace", ErrInvalidStreamName, name)
		}
	}
	return nil
}

func (c *Client) streamSubject(name string) string {
	return c.prefix + "." + name
}

func (c *Client) allSubject() string {
	return c.prefix + ".>"
}

// streamName maps a message subject back to the event stream name.
func (c *Client) streamName(subject string) string {
	if name, ok := strings.CutPrefix(subject, c.prefix+"."); ok {
		return name
	}
	return subject
}
