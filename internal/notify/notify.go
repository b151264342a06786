package notify

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

type Severity string

const (
	SeverityInfo    Severity = "INFO"
	SeveritySuccess Severity = "SUCCESS"
	SeverityWarning Severity = "WARNING"
	SeverityError   Severity = "ERROR"
)

const (
	EventBookingCreated     = "booking.created"
	EventBookingConfirmed   = "booking.confirmed"
	EventBookingCompleted   = "booking.completed"
	EventBookingCancelled   = "booking.cancelled"
	EventBookingRestored    = "booking.restored"
	EventBookingRescheduled = "booking.rescheduled"
	EventPaymentUpdated     = "booking.payment_updated"
)

type Event struct {
	ID              string    `json:"id"`
	Type            string    `json:"type"`
	RecipientUserID string    `json:"recipientUserId"`
	Title           string    `json:"title"`
	Message         string    `json:"message"`
	Severity        Severity  `json:"severity"`
	BookingID       string    `json:"bookingId"`
	Timestamp       time.Time `json:"timestamp"`
}

// Sink delivers events to an external system.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// Notifier accepts events without waiting for delivery.
type Notifier interface {
	Notify(ctx context.Context, events ...Event)
}

type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	if log == nil {
		log = slog.Default()
	}
	return &LogSink{log: log.With(slog.String("component", "notify"))}
}

func (s *LogSink) Publish(ctx context.Context, ev Event) error {
	s.log.InfoContext(ctx, "notification",
		slog.String("type", ev.Type),
		slog.String("recipient", ev.RecipientUserID),
		slog.String("booking_id", ev.BookingID),
		slog.String("severity", string(ev.Severity)),
		slog.String("title", ev.Title),
	)
	return nil
}

type multiSink []Sink

// Multi publishes to every sink and joins their errors.
func Multi(sinks ...Sink) Sink {
	return multiSink(sinks)
}

func (m multiSink) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
