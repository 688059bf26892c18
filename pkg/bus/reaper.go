package bus

import (
	"context"
	"log/slog"
	"time"
)

// Reaper periodically reports dead-letter exchange depth for operator
// visibility. Actual expiry of dead-lettered messages is handled
// declaratively by each DLX stream's MaxAge (set at EnsureExchange
// time) rather than by a polling delete loop — JetStream already
// expires them. Adapted from the teacher's pkg/cleanup.Service
// Start/Stop/ticker shape (itself a session/event retention poller),
// repurposed here to watch dead-letter depth instead of deleting rows
// directly.
type Reaper struct {
	bus       *Bus
	exchanges []string
	interval  time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// NewReaper builds a Reaper that reports on the given exchanges' DLX
// streams every interval.
func NewReaper(b *Bus, exchanges []string, interval time.Duration) *Reaper {
	return &Reaper{bus: b, exchanges: exchanges, interval: interval}
}

// Start launches the background reporting loop.
func (r *Reaper) Start(ctx context.Context) {
	if r.cancel != nil {
		return
	}
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})

	go r.run(ctx)
}

// Stop signals the loop to exit and waits for it to finish.
func (r *Reaper) Stop() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)

	r.reportAll()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.reportAll()
		}
	}
}

func (r *Reaper) reportAll() {
	for _, exchange := range r.exchanges {
		name := exchange + "_dlx"
		info, err := r.bus.js.StreamInfo(name)
		if err != nil {
			slog.Warn("bus: failed to read dead-letter stream info", "stream", name, "error", err)
			continue
		}
		if info.State.Msgs > 0 {
			slog.Warn("bus: dead-lettered messages pending", "stream", name, "count", info.State.Msgs, "bytes", info.State.Bytes)
		}
	}
}
