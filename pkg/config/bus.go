package config

import "time"

// BusConfig controls the durable message-bus consumer framework (spec §4.K).
type BusConfig struct {
	// URL is the NATS server URL, e.g. "nats://localhost:4222".
	URL string

	// QoS is the cap on unacknowledged in-flight messages for each
	// consumer (applied as its MaxAckPending).
	QoS int

	// HandlerTimeout bounds a single handler invocation; exceeded ⇒
	// negative-ack with retry counter increment.
	HandlerTimeout time.Duration

	// MaxRetries is the number of redelivery attempts before a message is
	// routed to the dead-letter exchange.
	MaxRetries int

	// RetryDelayUnit is the base unit for exponential backoff between
	// redeliveries: delay = RetryDelayUnit * 2^attempt.
	RetryDelayUnit time.Duration

	// MessageTTL is the default message time-to-live.
	MessageTTL time.Duration

	// DLXTTL is how long a message survives in the dead-letter exchange;
	// it is the dead-letter stream's MaxAge, so the stream expires it.
	DLXTTL time.Duration
}

// DefaultBusConfig returns the built-in bus defaults from spec §4.K.
func DefaultBusConfig() *BusConfig {
	return &BusConfig{
		URL:            "nats://localhost:4222",
		QoS:            100,
		HandlerTimeout: 60 * time.Second,
		MaxRetries:     3,
		RetryDelayUnit: 1 * time.Second,
		MessageTTL:     7 * 24 * time.Hour,
		DLXTTL:         7 * 24 * time.Hour,
	}
}
