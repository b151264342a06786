package bookings

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/identity"
	"chronobook/backend/internal/store"
)

func (s *Service) GetBooking(ctx context.Context, actor identity.Actor, id uuid.UUID) (domain.Booking, error) {
	b, staff, err := s.load(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if err := canView(actor, b, staff); err != nil {
		return domain.Booking{}, err
	}
	return b, nil
}

type ListInput struct {
	Actor      identity.Actor
	StaffID    string
	CustomerID string
	LocationID string
	From       time.Time
	To         time.Time
	Statuses   []domain.BookingStatus
	Limit      int
}

// ListBookings returns bookings ordered by start time. Customers only ever see their own
// bookings and staff members only their own calendar.
func (s *Service) ListBookings(ctx context.Context, in ListInput) ([]domain.Booking, error) {
	filter := store.BookingFilter{
		StaffID:    strings.TrimSpace(in.StaffID),
		CustomerID: strings.TrimSpace(in.CustomerID),
		LocationID: strings.TrimSpace(in.LocationID),
		From:       in.From,
		To:         in.To,
		Limit:      in.Limit,
	}
	if !filter.From.IsZero() && !filter.To.IsZero() && !filter.To.After(filter.From) {
		return nil, domain.InvalidRequest("to must be after from")
	}
	switch {
	case filter.Limit <= 0:
		filter.Limit = defaultListLimit
	case filter.Limit > maxListLimit:
		filter.Limit = maxListLimit
	}
	for _, st := range in.Statuses {
		parsed, ok := domain.ParseBookingStatus(string(st))
		if !ok {
			return nil, domain.InvalidRequest("unknown booking status %q", st)
		}
		filter.Statuses = append(filter.Statuses, parsed)
	}

	switch in.Actor.Role {
	case identity.RoleCustomer:
		if filter.CustomerID != "" && filter.CustomerID != in.Actor.UserID {
			return nil, domain.Forbidden("customers may only list their own bookings")
		}
		filter.CustomerID = in.Actor.UserID
	case identity.RoleStaff:
		if filter.StaffID == "" {
			return nil, domain.InvalidRequest("staff id is required")
		}
		staff, err := s.catalog.GetStaff(ctx, filter.StaffID)
		if err != nil {
			return nil, catalogLookupError("staff", filter.StaffID, err)
		}
		if staff.UserID != in.Actor.UserID {
			return nil, domain.Forbidden("staff may only list their own calendar")
		}
	}

	return s.repo.List(ctx, filter)
}

type FreeSlotsInput struct {
	StaffID    string
	LocationID string
	ServiceID  string
	// Date is a calendar day in the location's timezone; the time of day is ignored.
	Date time.Time
}

// FreeSlots returns the bookable windows of a staff member's day. It is a read-only view
// and does not reserve anything.
func (s *Service) FreeSlots(ctx context.Context, in FreeSlotsInput) (slots []domain.Interval, err error) {
	ctx, span := s.startSpan(ctx, "FreeSlots",
		attribute.String("staff_id", in.StaffID),
		attribute.String("service_id", in.ServiceID),
		attribute.String("location_id", in.LocationID),
	)
	defer func() { endSpan(span, err) }()

	switch {
	case strings.TrimSpace(in.StaffID) == "":
		return nil, domain.InvalidRequest("staff id is required")
	case strings.TrimSpace(in.LocationID) == "":
		return nil, domain.InvalidRequest("location id is required")
	case strings.TrimSpace(in.ServiceID) == "":
		return nil, domain.InvalidRequest("service id is required")
	case in.Date.IsZero():
		return nil, domain.InvalidRequest("date is required")
	}

	r, err := s.resolve(ctx, strings.TrimSpace(in.LocationID), strings.TrimSpace(in.ServiceID), strings.TrimSpace(in.StaffID))
	if err != nil {
		return nil, err
	}
	q := r.query()
	q.Date = in.Date
	// Read without the staff lock. The result is advisory; RequestBooking checks the slot
	// again inside the staff calendar before committing.
	return s.engine.FreeSlots(ctx, s.repo, q)
}
