package bookings

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/identity"
	"chronobook/backend/internal/store"
)

type RequestInput struct {
	Actor             identity.Actor
	CustomerID        string
	ServiceID         string
	StaffID           string
	LocationID        string
	StartTime         time.Time
	RecurrencePattern domain.RecurrencePattern
	PaymentMethod     domain.PaymentMethod
	Notes             string
	// IdempotencyKey makes retries of the same request return the original bookings.
	IdempotencyKey string
}

// RequestBooking validates a booking request and commits every occurrence of it, or none.
// Checks run in a fixed order and the first failure is returned.
func (s *Service) RequestBooking(ctx context.Context, in RequestInput) (created []domain.Booking, err error) {
	ctx, span := s.startSpan(ctx, "RequestBooking",
		attribute.String("staff_id", in.StaffID),
		attribute.String("service_id", in.ServiceID),
		attribute.String("location_id", in.LocationID),
	)
	defer func() { endSpan(span, err) }()

	in, err = normalizeRequest(in)
	if err != nil {
		return nil, err
	}

	r, err := s.resolve(ctx, in.LocationID, in.ServiceID, in.StaffID)
	if err != nil {
		return nil, err
	}
	if err := canBookFor(in.Actor, in.CustomerID, r.staff); err != nil {
		return nil, err
	}
	if !r.service.IsActive {
		return nil, domain.ServiceInactive(r.service.ID)
	}
	if !r.service.AllowsRecurrence(in.RecurrencePattern) {
		return nil, domain.RecurrenceNotAllowed(in.RecurrencePattern)
	}
	if !in.StartTime.After(s.clock.Now()) {
		return nil, domain.PastDate(in.StartTime)
	}

	tz, err := r.location.TimeLocation()
	if err != nil {
		return nil, err
	}
	starts, err := domain.Occurrences(in.StartTime, in.RecurrencePattern, s.occurrences, tz)
	if err != nil {
		return nil, domain.InvalidRequest("%v", err)
	}
	drafts := s.draftBookings(in, r.service, starts)

	var replayed bool
	err = s.inStaffCalendar(ctx, in.StaffID, func(ctx context.Context, tx store.CalendarTx) error {
		if in.IdempotencyKey != "" {
			prior, ok, err := replay(ctx, tx, drafts)
			if err != nil {
				return err
			}
			if ok {
				created, replayed = prior, true
				return nil
			}
		}

		q := r.query()
		for i, start := range starts {
			ok, err := s.engine.CheckSlot(ctx, tx, q, start)
			if err != nil {
				return err
			}
			if !ok {
				return domain.SlotUnavailable(start, i+1)
			}
		}

		created, err = tx.CreateBookings(ctx, drafts)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, domain.InvalidRequest("idempotency key %q was already used", in.IdempotencyKey)
		}
		return nil, err
	}

	if replayed {
		s.log.InfoContext(ctx, "booking request replayed", slog.String("idempotency_key", in.IdempotencyKey), slog.Int("occurrences", len(created)))
		return created, nil
	}

	s.log.InfoContext(ctx, "bookings created",
		slog.String("staff_id", in.StaffID),
		slog.String("customer_id", in.CustomerID),
		slog.String("first_booking_id", created[0].ID.String()),
		slog.Int("occurrences", len(created)),
	)
	s.notifier.Notify(ctx, createdEvents(created, r.staff, s.clock.Now())...)
	return created, nil
}

func normalizeRequest(in RequestInput) (RequestInput, error) {
	in.CustomerID = strings.TrimSpace(in.CustomerID)
	in.ServiceID = strings.TrimSpace(in.ServiceID)
	in.StaffID = strings.TrimSpace(in.StaffID)
	in.LocationID = strings.TrimSpace(in.LocationID)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)

	if in.CustomerID == "" && in.Actor.Role == identity.RoleCustomer {
		in.CustomerID = in.Actor.UserID
	}

	switch {
	case in.CustomerID == "":
		return in, domain.InvalidRequest("customer id is required")
	case in.ServiceID == "":
		return in, domain.InvalidRequest("service id is required")
	case in.StaffID == "":
		return in, domain.InvalidRequest("staff id is required")
	case in.LocationID == "":
		return in, domain.InvalidRequest("location id is required")
	case in.StartTime.IsZero():
		return in, domain.InvalidRequest("start time is required")
	case len(in.Notes) > maxNotesLength:
		return in, domain.InvalidRequest("notes must be at most %d characters", maxNotesLength)
	case len(in.IdempotencyKey) > maxIdempotencyKeyLength:
		return in, domain.InvalidRequest("idempotency key must be at most %d characters", maxIdempotencyKeyLength)
	}

	pattern, ok := domain.ParseRecurrencePattern(string(in.RecurrencePattern))
	if !ok {
		return in, domain.InvalidRequest("unknown recurrence pattern %q", in.RecurrencePattern)
	}
	method, ok := domain.ParsePaymentMethod(string(in.PaymentMethod))
	if !ok {
		return in, domain.InvalidRequest("unknown payment method %q", in.PaymentMethod)
	}
	in.RecurrencePattern = pattern
	in.PaymentMethod = method
	in.StartTime = in.StartTime.UTC()
	return in, nil
}

func (s *Service) draftBookings(in RequestInput, svc domain.Service, starts []time.Time) []domain.Booking {
	var seriesID *uuid.UUID
	if len(starts) > 1 {
		id := uuid.Must(uuid.NewV7())
		if in.IdempotencyKey != "" {
			id = idempotentID(in, "series")
		}
		seriesID = &id
	}

	status, paid := domain.InitialPayment(in.PaymentMethod, svc.Price)
	out := make([]domain.Booking, len(starts))
	for i, start := range starts {
		b := domain.Booking{
			SeriesID:          seriesID,
			LocationID:        in.LocationID,
			ServiceID:         in.ServiceID,
			StaffID:           in.StaffID,
			CustomerID:        in.CustomerID,
			StartTime:         start.UTC(),
			EndTime:           start.UTC().Add(svc.Duration()),
			Status:            domain.StatusPending,
			PaymentStatus:     status,
			PaymentMethod:     in.PaymentMethod,
			TotalPrice:        domain.RoundMoney(svc.Price),
			PaidAmount:        paid,
			RecurrencePattern: in.RecurrencePattern,
			Notes:             in.Notes,
		}
		if in.IdempotencyKey != "" {
			b.ID = idempotentID(in, strconv.Itoa(i))
		}
		out[i] = b
	}
	return out
}

func idempotentID(in RequestInput, part string) uuid.UUID {
	name := "chronobook:request_booking:" + in.CustomerID + ":" + in.IdempotencyKey + ":" + part
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(name))
}

// replay returns the bookings committed by an earlier request with the same key.
func replay(ctx context.Context, tx store.CalendarTx, drafts []domain.Booking) ([]domain.Booking, bool, error) {
	out := make([]domain.Booking, 0, len(drafts))
	for _, d := range drafts {
		b, err := tx.GetBooking(ctx, d.ID)
		if errors.Is(err, store.ErrNotFound) {
			if len(out) == 0 {
				return nil, false, nil
			}
			return nil, false, store.ErrConflict
		}
		if err != nil {
			return nil, false, err
		}
		if !sameRequest(b, d) {
			return nil, false, store.ErrConflict
		}
		out = append(out, b)
	}
	return out, true, nil
}

func sameRequest(a, b domain.Booking) bool {
	return a.StaffID == b.StaffID &&
		a.ServiceID == b.ServiceID &&
		a.LocationID == b.LocationID &&
		a.CustomerID == b.CustomerID &&
		a.StartTime.Equal(b.StartTime) &&
		a.RecurrencePattern == b.RecurrencePattern
}
