package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/store"
)

func booking(staffID string, start time.Time, status domain.BookingStatus) domain.Booking {
	return domain.Booking{
		StaffID:    staffID,
		LocationID: "l1",
		ServiceID:  "s1",
		CustomerID: "u3",
		StartTime:  start,
		EndTime:    start.Add(time.Hour),
		Status:     status,
	}
}

func TestBookingRepo_FailedTransactionWritesNothing(t *testing.T) {
	repo := NewBookingRepo()
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	boom := errors.New("boom")
	err := repo.InStaffTransaction(ctx, "st1", func(ctx context.Context, tx store.CalendarTx) error {
		_, err := tx.CreateBookings(ctx, []domain.Booking{
			booking("st1", start, domain.StatusPending),
			booking("st1", start.Add(7*24*time.Hour), domain.StatusPending),
		})
		require.NoError(t, err)

		staged, err := tx.ListActiveForStaff(ctx, "st1", start.Add(-time.Hour), start.Add(30*24*time.Hour))
		require.NoError(t, err)
		assert.Len(t, staged, 2, "staged writes visible inside the transaction")
		return boom
	})
	require.ErrorIs(t, err, boom)

	all, err := repo.List(ctx, store.BookingFilter{StaffID: "st1"})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestBookingRepo_CommitAndUpdate(t *testing.T) {
	repo := NewBookingRepo()
	ctx := context.Background()
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	var created []domain.Booking
	err := repo.InStaffTransaction(ctx, "st1", func(ctx context.Context, tx store.CalendarTx) error {
		var err error
		created, err = tx.CreateBookings(ctx, []domain.Booking{booking("st1", start, domain.StatusPending)})
		return err
	})
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.NotEqual(t, uuid.Nil, created[0].ID)
	assert.False(t, created[0].CreatedAt.IsZero())

	err = repo.InStaffTransaction(ctx, "st1", func(ctx context.Context, tx store.CalendarTx) error {
		b, err := tx.GetBooking(ctx, created[0].ID)
		if err != nil {
			return err
		}
		b.Status = domain.StatusCancelled
		_, err = tx.UpdateBooking(ctx, b)
		return err
	})
	require.NoError(t, err)

	active, err := repo.ListActiveForStaff(ctx, "st1", start.Add(-time.Hour), start.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, active, "cancelled bookings do not occupy the calendar")

	got, err := repo.Get(ctx, created[0].ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, got.Status)
}

func TestBookingRepo_UpdateMissing(t *testing.T) {
	repo := NewBookingRepo()
	err := repo.InStaffTransaction(context.Background(), "st1", func(ctx context.Context, tx store.CalendarTx) error {
		_, err := tx.UpdateBooking(ctx, domain.Booking{ID: uuid.New()})
		return err
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestBookingRepo_ListFilter(t *testing.T) {
	repo := NewBookingRepo()
	ctx := context.Background()
	day := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	err := repo.InStaffTransaction(ctx, "st1", func(ctx context.Context, tx store.CalendarTx) error {
		other := booking("st1", day.Add(2*time.Hour), domain.StatusConfirmed)
		other.CustomerID = "u9"
		_, err := tx.CreateBookings(ctx, []domain.Booking{
			booking("st1", day, domain.StatusPending),
			other,
			booking("st1", day.Add(48*time.Hour), domain.StatusPending),
		})
		return err
	})
	require.NoError(t, err)

	got, err := repo.List(ctx, store.BookingFilter{CustomerID: "u3", From: day, To: day.Add(24 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].StartTime.Equal(day))

	got, err = repo.List(ctx, store.BookingFilter{Statuses: []domain.BookingStatus{domain.StatusConfirmed}})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u9", got[0].CustomerID)
}
