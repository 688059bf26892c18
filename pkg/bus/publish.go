package bus

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Publish serializes body and sends it to exchange on its own routing
// key, deriving the subject and routing key from the Payload itself so
// callers can't accidentally mismatch a struct to the wrong exchange.
// body's type parameter is constrained to Payload, the compile-time
// equivalent of spec §4.K's "body must be an instance of a declared
// schema, else reject".
func Publish[T Payload](ctx context.Context, b *Bus, exchange string, body T) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal bus payload: %w", err)
	}
	subj := subject(exchange, body.busRoutingKey())
	if _, err := b.js.Publish(subj, data, nats.Context(ctx)); err != nil {
		return fmt.Errorf("publish to %s: %w", subj, err)
	}
	return nil
}
