package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

type recordingSink struct {
	mu     sync.Mutex
	events []Event
	ctxs   []context.Context
	err    error
}

func (s *recordingSink) Publish(ctx context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	s.ctxs = append(s.ctxs, ctx)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

func TestDispatcher_DeliversAndDrains(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 8, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	d.Notify(context.Background(), Event{ID: "1", BookingID: "b1"}, Event{ID: "2", BookingID: "b1"})
	require.Eventually(t, func() bool { return sink.count() == 2 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done

	d.Notify(context.Background(), Event{ID: "3"})
	d.drain()
	assert.Equal(t, 3, sink.count())
}

func TestDispatcher_DropsWhenFull(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 1, nil)

	d.Notify(context.Background(), Event{ID: "1"}, Event{ID: "2"}, Event{ID: "3"})
	d.drain()

	require.Equal(t, 1, sink.count())
	assert.Equal(t, "1", sink.events[0].ID)
}

func TestDispatcher_KeepsTraceContext(t *testing.T) {
	sink := &recordingSink{}
	d := NewDispatcher(sink, 4, nil)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{1},
		SpanID:     trace.SpanID{2},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	d.Notify(ctx, Event{ID: "1"})
	d.drain()

	require.Equal(t, 1, sink.count())
	got := trace.SpanContextFromContext(sink.ctxs[0])
	assert.Equal(t, sc.TraceID(), got.TraceID())
}

func TestMulti_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingSink{}
	failing := &recordingSink{err: boom}

	err := Multi(failing, ok).Publish(context.Background(), Event{ID: "1"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, ok.count(), "a failing sink does not stop the others")
}

type fakeWriter struct {
	msgs []kafka.Message
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func TestKafkaSink_Publish(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	w := &fakeWriter{}
	sink := &KafkaSink{w: w}

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0xa},
		SpanID:     trace.SpanID{0xb},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	ev := Event{
		ID:              "e1",
		Type:            EventBookingCreated,
		RecipientUserID: "u3",
		Title:           "Booking received",
		Severity:        SeveritySuccess,
		BookingID:       "b1",
		Timestamp:       time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.Publish(ctx, ev))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "b1", string(msg.Key))

	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, "e1", headers["event_id"])
	assert.Equal(t, EventBookingCreated, headers["event_type"])
	assert.Contains(t, headers["traceparent"], sc.TraceID().String())

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "u3", decoded.RecipientUserID)
}
