package memory

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/store"
)

// BookingRepo keeps bookings in process memory. Staff-level serialization is the caller's
// job (see lock.Locker); the repo only guarantees that a transaction's writes land together.
type BookingRepo struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]domain.Booking
	byStaff  map[string][]uuid.UUID
	now      func() time.Time
}

func NewBookingRepo() *BookingRepo {
	return &BookingRepo{
		bookings: make(map[uuid.UUID]domain.Booking),
		byStaff:  make(map[string][]uuid.UUID),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type calendarTx struct {
	repo   *BookingRepo
	staged map[uuid.UUID]domain.Booking
	order  []uuid.UUID
}

func (r *BookingRepo) InStaffTransaction(ctx context.Context, staffID string, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &calendarTx{repo: r, staged: make(map[uuid.UUID]domain.Booking)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, id := range tx.order {
		b := tx.staged[id]
		if _, exists := r.bookings[id]; !exists {
			r.byStaff[b.StaffID] = append(r.byStaff[b.StaffID], id)
		}
		r.bookings[id] = b
	}
	return nil
}

func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.bookings[id]
	if !ok {
		return domain.Booking{}, store.ErrNotFound
	}
	return b, nil
}

func (r *BookingRepo) List(ctx context.Context, filter store.BookingFilter) ([]domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Booking, 0)
	for _, b := range r.bookings {
		if matches(b, filter) {
			out = append(out, b)
		}
	}
	sortByStart(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *BookingRepo) ListActiveForStaff(ctx context.Context, staffID string, from, to time.Time) ([]domain.Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeForStaffLocked(staffID, from, to, nil), nil
}

func (r *BookingRepo) activeForStaffLocked(staffID string, from, to time.Time, overlay map[uuid.UUID]domain.Booking) []domain.Booking {
	out := make([]domain.Booking, 0)
	seen := make(map[uuid.UUID]struct{})
	consider := func(b domain.Booking) {
		if b.StaffID != staffID || !b.Occupies() {
			return
		}
		if b.StartTime.Before(from) || !b.StartTime.Before(to) {
			return
		}
		out = append(out, b)
	}
	for _, id := range r.byStaff[staffID] {
		b := r.bookings[id]
		if staged, ok := overlay[id]; ok {
			b = staged
		}
		seen[id] = struct{}{}
		consider(b)
	}
	for id, b := range overlay {
		if _, ok := seen[id]; !ok {
			consider(b)
		}
	}
	sortByStart(out)
	return out
}

func (tx *calendarTx) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	if b, ok := tx.staged[id]; ok {
		return b, nil
	}
	return tx.repo.Get(ctx, id)
}

func (tx *calendarTx) ListActiveForStaff(ctx context.Context, staffID string, from, to time.Time) ([]domain.Booking, error) {
	tx.repo.mu.RLock()
	defer tx.repo.mu.RUnlock()
	return tx.repo.activeForStaffLocked(staffID, from, to, tx.staged), nil
}

func (tx *calendarTx) CreateBookings(ctx context.Context, bookings []domain.Booking) ([]domain.Booking, error) {
	now := tx.repo.now()
	out := make([]domain.Booking, 0, len(bookings))
	for _, b := range bookings {
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return nil, err
			}
			b.ID = id
		}
		if _, err := tx.GetBooking(ctx, b.ID); err == nil {
			return nil, store.ErrConflict
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		b.UpdatedAt = now
		tx.stage(b)
		out = append(out, b)
	}
	return out, nil
}

func (tx *calendarTx) UpdateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	if _, err := tx.GetBooking(ctx, booking.ID); err != nil {
		return domain.Booking{}, err
	}
	booking.UpdatedAt = tx.repo.now()
	tx.stage(booking)
	return booking, nil
}

func (tx *calendarTx) stage(b domain.Booking) {
	if _, ok := tx.staged[b.ID]; !ok {
		tx.order = append(tx.order, b.ID)
	}
	tx.staged[b.ID] = b
}

func matches(b domain.Booking, f store.BookingFilter) bool {
	if f.StaffID != "" && b.StaffID != f.StaffID {
		return false
	}
	if f.CustomerID != "" && b.CustomerID != f.CustomerID {
		return false
	}
	if f.LocationID != "" && b.LocationID != f.LocationID {
		return false
	}
	if !f.From.IsZero() && !b.EndTime.After(f.From) {
		return false
	}
	if !f.To.IsZero() && !b.StartTime.Before(f.To) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, b.Status) {
		return false
	}
	return true
}

func sortByStart(bs []domain.Booking) {
	sort.Slice(bs, func(i, j int) bool {
		if bs[i].StartTime.Equal(bs[j].StartTime) {
			return bs[i].ID.String() < bs[j].ID.String()
		}
		return bs[i].StartTime.Before(bs[j].StartTime)
	})
}
