package bus

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/nextlevelbuilder/acontext/pkg/store"
)

// ConsumerConfig declares one (exchange, routing_key, queue) binding
// (spec §4.K). QueueName doubles as the JetStream durable consumer name,
// so the same logical consumer resumes from where it left off across
// process restarts.
type ConsumerConfig struct {
	Exchange   string
	RoutingKey string
	QueueName  string
}

// Handler processes one decoded payload. Returning nil acks the message.
// A returned error wrapping one of store's non-internal sentinels
// (ErrValidation, ErrBadRequest, ErrNotFound, ErrConflict) is treated as
// permanent — spec §7: "retrying wouldn't help" — and the message is
// acked after logging. Any other error is treated as internal and
// retried with backoff up to cfg's max retries before moving to the
// dead-letter exchange.
//
// The handler's parameter order (body, then the broker's raw message
// handle) mirrors spec §4.K's "first parameter named body, second
// message" rule; Go has no runtime access to parameter names, so the
// generic signature's fixed position is this framework's equivalent of
// that registration-time check — a mismatched shape is a compile error
// instead of a startup-time rejection.
type Handler[T Payload] func(ctx context.Context, body T, msg *nats.Msg) error

// RegisterConsumer binds handler to cfg's exchange/routing_key/queue and
// begins dispatching. The subscription is durable: handler keeps running
// across process restarts from the last unacked message.
func RegisterConsumer[T Payload](b *Bus, cfg ConsumerConfig, handler Handler[T]) (*nats.Subscription, error) {
	subj := subject(cfg.Exchange, cfg.RoutingKey)
	return b.js.QueueSubscribe(subj, cfg.QueueName, func(msg *nats.Msg) {
		dispatch(b, cfg, msg, handler)
	},
		nats.Durable(cfg.QueueName),
		nats.ManualAck(),
		nats.AckWait(b.cfg.HandlerTimeout),
		nats.MaxDeliver(b.cfg.MaxRetries+1),
		nats.MaxAckPending(b.cfg.QoS),
	)
}

func dispatch[T Payload](b *Bus, cfg ConsumerConfig, msg *nats.Msg, handler Handler[T]) {
	var body T
	if err := json.Unmarshal(msg.Data, &body); err != nil {
		slog.Error("bus: malformed payload, dropping", "exchange", cfg.Exchange, "routing_key", cfg.RoutingKey, "error", err)
		_ = msg.Term()
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), b.cfg.HandlerTimeout)
	defer cancel()

	err := handler(ctx, body, msg)
	if err == nil {
		_ = msg.Ack()
		return
	}

	if isPermanent(err) {
		slog.Warn("bus: handler rejected message, acking without retry", "exchange", cfg.Exchange, "routing_key", cfg.RoutingKey, "error", err)
		_ = msg.Ack()
		return
	}

	delivered := uint64(1)
	if meta, metaErr := msg.Metadata(); metaErr == nil {
		delivered = meta.NumDelivered
	}

	if delivered > uint64(b.cfg.MaxRetries) {
		slog.Error("bus: handler failed past max_retries, dead-lettering", "exchange", cfg.Exchange, "routing_key", cfg.RoutingKey, "error", err)
		b.deadLetter(cfg, msg.Data)
		_ = msg.Term()
		return
	}

	delay := b.cfg.RetryDelayUnit * time.Duration(uint64(1)<<delivered)
	slog.Warn("bus: handler failed, retrying with backoff", "exchange", cfg.Exchange, "routing_key", cfg.RoutingKey, "attempt", delivered, "delay", delay, "error", err)
	_ = msg.NakWithDelay(delay)
}

func isPermanent(err error) bool {
	return errors.Is(err, store.ErrValidation) ||
		errors.Is(err, store.ErrBadRequest) ||
		errors.Is(err, store.ErrNotFound) ||
		errors.Is(err, store.ErrConflict)
}

func (b *Bus) deadLetter(cfg ConsumerConfig, data []byte) {
	subj := dlxSubject(cfg.Exchange, cfg.RoutingKey)
	if _, err := b.js.Publish(subj, data); err != nil {
		slog.Error("bus: failed to publish to dead-letter exchange", "subject", subj, "error", err)
	}
}
