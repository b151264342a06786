package notify

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"
)

type queued struct {
	ev   Event
	span trace.SpanContext
}

// Dispatcher decouples callers from sink latency with a bounded queue.
// When the queue is full the event is dropped and logged.
type Dispatcher struct {
	sink         Sink
	queue        chan queued
	log          *slog.Logger
	drainTimeout time.Duration
}

func NewDispatcher(sink Sink, size int, log *slog.Logger) *Dispatcher {
	if size <= 0 {
		size = 256
	}
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		sink:         sink,
		queue:        make(chan queued, size),
		log:          log.With(slog.String("component", "notify")),
		drainTimeout: 5 * time.Second,
	}
}

func (d *Dispatcher) Notify(ctx context.Context, events ...Event) {
	sc := trace.SpanContextFromContext(ctx)
	for _, ev := range events {
		select {
		case d.queue <- queued{ev: ev, span: sc}:
		default:
			d.log.Warn("notification dropped, queue full",
				slog.String("type", ev.Type),
				slog.String("booking_id", ev.BookingID),
				slog.String("recipient", ev.RecipientUserID),
			)
		}
	}
}

// Run delivers queued events until ctx is done, then drains what is left.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case q := <-d.queue:
			d.deliver(context.Background(), q)
		case <-ctx.Done():
			d.drain()
			return nil
		}
	}
}

func (d *Dispatcher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), d.drainTimeout)
	defer cancel()
	for {
		select {
		case q := <-d.queue:
			d.deliver(ctx, q)
		default:
			return
		}
		if ctx.Err() != nil {
			d.log.Warn("notification drain timed out", slog.Int("remaining", len(d.queue)))
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, q queued) {
	if q.span.IsValid() {
		ctx = trace.ContextWithRemoteSpanContext(ctx, q.span)
	}
	if err := d.sink.Publish(ctx, q.ev); err != nil {
		d.log.Error("notification delivery failed",
			slog.String("type", q.ev.Type),
			slog.String("booking_id", q.ev.BookingID),
			slog.Any("err", err),
		)
	}
}
