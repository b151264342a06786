package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"chronobook/backend/internal/domain"
)

// AvailabilitySlack widens booking lookups around a day so bookings that start
// the previous or next day still contribute their buffers.
const AvailabilitySlack = 24 * time.Hour

type BookingFilter struct {
	StaffID    string
	CustomerID string
	LocationID string
	From       time.Time
	To         time.Time
	Statuses   []domain.BookingStatus
	Limit      int
}

type BookingRepository interface {
	// InStaffTransaction runs fn atomically against one staff calendar. Writes made through tx
	// are committed together or not at all.
	InStaffTransaction(ctx context.Context, staffID string, fn func(ctx context.Context, tx CalendarTx) error) error

	Get(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	List(ctx context.Context, filter BookingFilter) ([]domain.Booking, error)
	ListActiveForStaff(ctx context.Context, staffID string, from, to time.Time) ([]domain.Booking, error)
}

type CalendarTx interface {
	GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error)
	// ListActiveForStaff returns non-cancelled bookings of the staff whose start lies in [from, to).
	ListActiveForStaff(ctx context.Context, staffID string, from, to time.Time) ([]domain.Booking, error)
	CreateBookings(ctx context.Context, bookings []domain.Booking) ([]domain.Booking, error)
	UpdateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error)
}
