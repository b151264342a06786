package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"chronobook/backend/internal/catalog"
	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/identity"
	"chronobook/backend/internal/store"
)

type StatusInput struct {
	Actor     identity.Actor
	BookingID uuid.UUID
	Status    domain.BookingStatus
}

// UpdateBookingStatus moves a booking through its lifecycle. Restoring a cancelled booking
// re-checks its slot because the time may have been taken in the meantime.
func (s *Service) UpdateBookingStatus(ctx context.Context, in StatusInput) (updated domain.Booking, err error) {
	ctx, span := s.startSpan(ctx, "UpdateBookingStatus",
		attribute.String("booking_id", in.BookingID.String()),
		attribute.String("status", string(in.Status)),
	)
	defer func() { endSpan(span, err) }()

	to, ok := domain.ParseBookingStatus(string(in.Status))
	if !ok {
		return domain.Booking{}, domain.InvalidRequest("unknown booking status %q", in.Status)
	}
	b, staff, err := s.load(ctx, in.BookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := canTransition(in.Actor, b, staff, to); err != nil {
		return domain.Booking{}, err
	}

	var from domain.BookingStatus
	err = s.inStaffCalendar(ctx, b.StaffID, func(ctx context.Context, tx store.CalendarTx) error {
		cur, err := tx.GetBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		from = cur.Status
		if err := domain.CheckTransition(cur.Status, to); err != nil {
			return err
		}

		if domain.IsRestore(cur.Status, to) {
			if !cur.StartTime.After(s.clock.Now()) {
				return domain.PastDate(cur.StartTime)
			}
			if err := s.checkSlot(ctx, tx, cur, cur.StartTime); err != nil {
				return err
			}
		}

		cur.PaymentStatus, cur.PaidAmount = domain.ApplyTransitionPayment(cur, to)
		cur.Status = to
		updated, err = tx.UpdateBooking(ctx, cur)
		return err
	})
	if err != nil {
		return domain.Booking{}, s.bookingError(err, in.BookingID)
	}

	s.log.InfoContext(ctx, "booking status updated",
		slog.String("booking_id", updated.ID.String()),
		slog.String("from", string(from)),
		slog.String("to", string(updated.Status)),
		slog.String("payment_status", string(updated.PaymentStatus)),
	)
	s.notifier.Notify(ctx, transitionEvents(updated, from, staff, s.clock.Now())...)
	return updated, nil
}

type RescheduleInput struct {
	Actor     identity.Actor
	BookingID uuid.UUID
	StartTime time.Time
}

// RescheduleBooking moves a pending or confirmed booking to a new start time on the same
// staff calendar. The booking's own slot does not block the move.
func (s *Service) RescheduleBooking(ctx context.Context, in RescheduleInput) (updated domain.Booking, err error) {
	ctx, span := s.startSpan(ctx, "RescheduleBooking", attribute.String("booking_id", in.BookingID.String()))
	defer func() { endSpan(span, err) }()

	if in.StartTime.IsZero() {
		return domain.Booking{}, domain.InvalidRequest("start time is required")
	}
	start := in.StartTime.UTC()

	b, staff, err := s.load(ctx, in.BookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := canView(in.Actor, b, staff); err != nil {
		return domain.Booking{}, err
	}

	var previous time.Time
	err = s.inStaffCalendar(ctx, b.StaffID, func(ctx context.Context, tx store.CalendarTx) error {
		cur, err := tx.GetBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		if cur.Status != domain.StatusPending && cur.Status != domain.StatusConfirmed {
			return domain.InvalidRequest("only pending or confirmed bookings can be rescheduled, booking is %s", cur.Status)
		}
		if !start.After(s.clock.Now()) {
			return domain.PastDate(start)
		}
		if err := s.checkSlot(ctx, tx, cur, start); err != nil {
			return err
		}

		previous = cur.StartTime
		cur.EndTime = start.Add(cur.EndTime.Sub(cur.StartTime))
		cur.StartTime = start
		updated, err = tx.UpdateBooking(ctx, cur)
		return err
	})
	if err != nil {
		return domain.Booking{}, s.bookingError(err, in.BookingID)
	}

	s.log.InfoContext(ctx, "booking rescheduled",
		slog.String("booking_id", updated.ID.String()),
		slog.Time("from", previous),
		slog.Time("to", updated.StartTime),
	)
	s.notifier.Notify(ctx, rescheduledEvents(updated, previous, staff, s.clock.Now())...)
	return updated, nil
}

type PaymentInput struct {
	Actor     identity.Actor
	BookingID uuid.UUID
	Status    domain.PaymentStatus
	// Amount is only read for PARTIAL.
	Amount float64
}

func (s *Service) MarkPayment(ctx context.Context, in PaymentInput) (updated domain.Booking, err error) {
	ctx, span := s.startSpan(ctx, "MarkPayment",
		attribute.String("booking_id", in.BookingID.String()),
		attribute.String("payment_status", string(in.Status)),
	)
	defer func() { endSpan(span, err) }()

	status, ok := domain.ParsePaymentStatus(string(in.Status))
	if !ok {
		return domain.Booking{}, domain.InvalidPayment("unknown payment status %q", in.Status)
	}
	b, staff, err := s.load(ctx, in.BookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := canManagePayment(in.Actor, b, staff); err != nil {
		return domain.Booking{}, err
	}

	err = s.inStaffCalendar(ctx, b.StaffID, func(ctx context.Context, tx store.CalendarTx) error {
		cur, err := tx.GetBooking(ctx, b.ID)
		if err != nil {
			return err
		}
		paid, err := domain.ApplyPayment(cur, status, in.Amount)
		if err != nil {
			return err
		}
		cur.PaymentStatus = status
		cur.PaidAmount = paid
		updated, err = tx.UpdateBooking(ctx, cur)
		return err
	})
	if err != nil {
		return domain.Booking{}, s.bookingError(err, in.BookingID)
	}

	s.log.InfoContext(ctx, "booking payment updated",
		slog.String("booking_id", updated.ID.String()),
		slog.String("payment_status", string(updated.PaymentStatus)),
		slog.Float64("paid_amount", updated.PaidAmount),
	)
	s.notifier.Notify(ctx, paymentEvent(updated, s.clock.Now()))
	return updated, nil
}

// checkSlot verifies that b can occupy start, ignoring b itself.
func (s *Service) checkSlot(ctx context.Context, tx store.CalendarTx, b domain.Booking, start time.Time) error {
	r, err := s.resolve(ctx, b.LocationID, b.ServiceID, b.StaffID)
	if err != nil {
		return err
	}
	q := r.query()
	q.Exclude = b.ID
	ok, err := s.engine.CheckSlot(ctx, tx, q, start)
	if err != nil {
		return err
	}
	if !ok {
		return domain.SlotUnavailable(start, 1)
	}
	return nil
}

// load reads a booking and the staff record that owns its calendar.
func (s *Service) load(ctx context.Context, id uuid.UUID) (domain.Booking, domain.Staff, error) {
	if id == uuid.Nil {
		return domain.Booking{}, domain.Staff{}, domain.InvalidRequest("booking id is required")
	}
	b, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Booking{}, domain.Staff{}, s.bookingError(err, id)
	}
	staff, err := s.catalog.GetStaff(ctx, b.StaffID)
	if errors.Is(err, catalog.ErrNotFound) {
		return b, domain.Staff{ID: b.StaffID}, nil
	}
	if err != nil {
		return domain.Booking{}, domain.Staff{}, fmt.Errorf("get staff %s: %w", b.StaffID, err)
	}
	return b, staff, nil
}

func (s *Service) bookingError(err error, id uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return domain.BookingNotFound(id.String())
	}
	return err
}
