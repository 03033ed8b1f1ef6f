// Package eventstore reads events from a NATS JetStream stream laid out as
// an event store.
//
// Every event lives in a single JetStream stream (the store stream, "EVENTS"
// by default) under the subject <prefix>.<stream name>. The global stream
// $all is the filter <prefix>.> and an event's global position is its
// JetStream stream sequence.
//
// # Headers
//
//	Nats-Msg-Id      event id
//	Event-Type       event type
//	Event-Metadata   custom metadata (JSON)
//	Event-Revision   revision within the event stream
//	Content-Type     payload content type, JSON when absent
//
// # Usage
//
//	nc, _ := nats.Connect(nats.DefaultURL)
//	js, _ := jetstream.New(nc)
//
//	client, _ := eventstore.New(eventstore.Config{JS: js, Logger: logger})
//	seq, _ := client.SubscribeToStream(ctx, "orders-1", events.ReadOptions{CatchUpNotify: true})
//	defer seq.Close()
//	for {
//		item, err := seq.Next(ctx)
//		...
//	}
package eventstore
