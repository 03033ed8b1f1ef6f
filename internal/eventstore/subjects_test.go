package eventstore

import (
	"errors"
	"testing"

	"github.com/gftdcojp/escat/internal/events"
	"github.com/nats-io/nats.go/jetstream"
)

func TestValidateStreamName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"orders-1", true},
		{"billing.invoices", true},
		{"user_42", true},
		{"$ce-orders", true},
		{"", false},
		{"$all", false},
		{"orders.", false},
		{".orders", false},
		{"a..b", false},
		{"orders.*", false},
		{"orders.>", false},
		{"my orders", false},
		{"tab\tname", false},
	}
	for _, tt := range tests {
		err := ValidateStreamName(tt.name)
		if tt.valid && err != nil {
			t.Errorf("ValidateStreamName(%q) = %v, want nil", tt.name, err)
		}
		if !tt.valid && !errors.Is(err, ErrInvalidStreamName) {
			t.Errorf("ValidateStreamName(%q) = %v, want ErrInvalidStreamName", tt.name, err)
		}
	}
}

func TestSubjectMapping(t *testing.T) {
	c := &Client{prefix: "acme.events"}
	if got := c.streamSubject("orders-1"); got != "acme.events.orders-1" {
		t.Errorf("streamSubject = %q", got)
	}
	if got := c.allSubject(); got != "acme.events.>" {
		t.Errorf("allSubject = %q", got)
	}
	if got := c.streamName("acme.events.billing.invoices"); got != "billing.invoices" {
		t.Errorf("streamName = %q", got)
	}
	if got := c.streamName("elsewhere.x"); got != "elsewhere.x" {
		t.Errorf("foreign subjects should pass through, got %q", got)
	}
}

func TestConsumerConfig(t *testing.T) {
	tests := []struct {
		opts     events.ReadOptions
		policy   jetstream.DeliverPolicy
		startSeq uint64
	}{
		{events.ReadOptions{}, jetstream.DeliverAllPolicy, 0},
		{events.ReadOptions{Offset: events.OffsetEnd}, jetstream.DeliverNewPolicy, 0},
		{events.ReadOptions{Offset: events.OffsetLast}, jetstream.DeliverLastPolicy, 0},
		{events.ReadOptions{FromPosition: 42}, jetstream.DeliverByStartSequencePolicy, 42},
	}
	for _, tt := range tests {
		cfg := consumerConfig("events.x", tt.opts)
		if cfg.DeliverPolicy != tt.policy || cfg.OptStartSeq != tt.startSeq {
			t.Errorf("%+v: policy=%v start=%d", tt.opts, cfg.DeliverPolicy, cfg.OptStartSeq)
		}
		if cfg.AckPolicy != jetstream.AckNonePolicy || cfg.Durable != "" || cfg.FilterSubject != "events.x" {
			t.Errorf("%+v: expected an ephemeral unacknowledged consumer, got %+v", tt.opts, cfg)
		}
	}
}

func TestIsStreamNotFound(t *testing.T) {
	if !isStreamNotFound(jetstream.ErrStreamNotFound) {
		t.Error("ErrStreamNotFound should match")
	}
	if isStreamNotFound(nil) || isStreamNotFound(errors.New("timeout")) {
		t.Error("unrelated errors should not match")
	}
}
