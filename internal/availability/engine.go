package availability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"chronobook/backend/internal/catalog"
	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/store"
)

// BookingSource is satisfied by store.BookingRepository for plain reads and by
// store.CalendarTx for reads under the staff lock.
type BookingSource interface {
	ListActiveForStaff(ctx context.Context, staffID string, from, to time.Time) ([]domain.Booking, error)
}

type Query struct {
	StaffID    string
	LocationID string
	Service    domain.Service
	Location   domain.Location
	// Date is a calendar day; only its year, month and day are used.
	Date    time.Time
	Exclude uuid.UUID
}

type Engine struct {
	catalog catalog.Reader
	log     *slog.Logger
}

func NewEngine(cat catalog.Reader, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{catalog: cat, log: log.With(slog.String("component", "availability"))}
}

func (e *Engine) Calendar(ctx context.Context, src BookingSource, q Query) (Calendar, error) {
	loc, err := q.Location.TimeLocation()
	if err != nil {
		return Calendar{}, err
	}
	y, m, d := q.Date.Date()
	dayStart := time.Date(y, m, d, 0, 0, 0, 0, loc)
	dayEnd := time.Date(y, m, d+1, 0, 0, 0, 0, loc)

	rules, err := e.catalog.ListRules(ctx, q.StaffID, q.LocationID, dayStart.Weekday())
	if err != nil {
		return Calendar{}, fmt.Errorf("list rules: %w", err)
	}

	bookings, err := src.ListActiveForStaff(ctx, q.StaffID, dayStart.Add(-store.AvailabilitySlack).UTC(), dayEnd.Add(store.AvailabilitySlack).UTC())
	if err != nil {
		return Calendar{}, fmt.Errorf("list bookings: %w", err)
	}

	services, err := e.servicesOf(ctx, q.Service, bookings)
	if err != nil {
		return Calendar{}, err
	}

	return Compute(Input{
		Date:       dayStart,
		Location:   loc,
		LocationID: q.LocationID,
		Service:    q.Service,
		Rules:      rules,
		Bookings:   bookings,
		Services:   services,
		Exclude:    q.Exclude,
	})
}

// FreeSlots returns the ordered free windows of the day, each long enough for the
// service plus both buffers.
func (e *Engine) FreeSlots(ctx context.Context, src BookingSource, q Query) ([]domain.Interval, error) {
	cal, err := e.Calendar(ctx, src, q)
	if err != nil {
		return nil, err
	}
	return cal.Free, nil
}

// CheckSlot reports whether the service can start at start. q.Date is replaced by the
// local day of start.
func (e *Engine) CheckSlot(ctx context.Context, src BookingSource, q Query, start time.Time) (bool, error) {
	loc, err := q.Location.TimeLocation()
	if err != nil {
		return false, err
	}
	q.Date = start.In(loc)
	cal, err := e.Calendar(ctx, src, q)
	if err != nil {
		return false, err
	}
	return cal.Fits(start), nil
}

func (e *Engine) servicesOf(ctx context.Context, requested domain.Service, bookings []domain.Booking) (map[string]domain.Service, error) {
	out := map[string]domain.Service{requested.ID: requested}
	for _, b := range bookings {
		if _, ok := out[b.ServiceID]; ok {
			continue
		}
		svc, err := e.catalog.GetService(ctx, b.ServiceID)
		if errors.Is(err, catalog.ErrNotFound) {
			e.log.Warn("booking references unknown service", slog.String("booking_id", b.ID.String()), slog.String("service_id", b.ServiceID))
			out[b.ServiceID] = domain.Service{ID: b.ServiceID}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get service %s: %w", b.ServiceID, err)
		}
		out[b.ServiceID] = svc
	}
	return out, nil
}
