package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/store"
)

type BookingRepo struct {
	db          *bun.DB
	lockTimeout time.Duration
}

// NewBookingRepo returns a repo whose staff transactions wait at most lockTimeout for the
// staff advisory lock. Zero means wait for the server default.
func NewBookingRepo(db *bun.DB, lockTimeout time.Duration) *BookingRepo {
	return &BookingRepo{db: db, lockTimeout: lockTimeout}
}

type calendarTx struct {
	tx bun.Tx
}

func (r *BookingRepo) InStaffTransaction(ctx context.Context, staffID string, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := lockStaffCalendar(ctx, tx, staffID, r.lockTimeout); err != nil {
			return err
		}
		return fn(ctx, calendarTx{tx: tx})
	})
	return mapError(err)
}

func lockStaffCalendar(ctx context.Context, tx bun.Tx, staffID string, timeout time.Duration) error {
	if stmt := lockTimeoutStatement(timeout); stmt != "" {
		if _, err := tx.NewRaw(stmt).Exec(ctx); err != nil {
			return err
		}
	}
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", "staff:"+staffID).Exec(ctx)
	return err
}

func lockTimeoutStatement(timeout time.Duration) string {
	if timeout <= 0 {
		return ""
	}
	ms := timeout.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", ms)
}

// mapError translates driver errors into store sentinels. Errors from the callback pass through.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "55P03":
			return fmt.Errorf("%w: %s", store.ErrBusy, pgErr.Message)
		case "23505":
			return fmt.Errorf("%w: %s", store.ErrConflict, pgErr.ConstraintName)
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, r.db, id)
}

func (r *BookingRepo) List(ctx context.Context, filter store.BookingFilter) ([]domain.Booking, error) {
	var rows []domain.Booking
	q := r.db.NewSelect().Model(&rows)
	if filter.StaffID != "" {
		q = q.Where("staff_id = ?", filter.StaffID)
	}
	if filter.CustomerID != "" {
		q = q.Where("customer_id = ?", filter.CustomerID)
	}
	if filter.LocationID != "" {
		q = q.Where("location_id = ?", filter.LocationID)
	}
	if !filter.From.IsZero() {
		q = q.Where("end_time > ?", filter.From)
	}
	if !filter.To.IsZero() {
		q = q.Where("start_time < ?", filter.To)
	}
	if len(filter.Statuses) > 0 {
		q = q.Where("status IN (?)", bun.In(filter.Statuses))
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if err := q.OrderExpr("start_time ASC, id ASC").Scan(ctx); err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func (r *BookingRepo) ListActiveForStaff(ctx context.Context, staffID string, from, to time.Time) ([]domain.Booking, error) {
	return listActiveForStaff(ctx, r.db, staffID, from, to)
}

func (c calendarTx) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return getBooking(ctx, c.tx, id)
}

func (c calendarTx) ListActiveForStaff(ctx context.Context, staffID string, from, to time.Time) ([]domain.Booking, error) {
	return listActiveForStaff(ctx, c.tx, staffID, from, to)
}

func (c calendarTx) CreateBookings(ctx context.Context, bookings []domain.Booking) ([]domain.Booking, error) {
	out := make([]domain.Booking, 0, len(bookings))
	for _, b := range bookings {
		m := b
		if _, err := c.tx.NewInsert().Model(&m).Exec(ctx); err != nil {
			return nil, mapError(err)
		}
		out = append(out, m)
	}
	return out, nil
}

func (c calendarTx) UpdateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	m := booking
	res, err := c.tx.NewUpdate().
		Model(&m).
		Column("start_time", "end_time", "status", "payment_status", "paid_amount", "notes", "updated_at").
		WherePK().
		Exec(ctx)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.Booking{}, err
	}
	if affected == 0 {
		return domain.Booking{}, store.ErrNotFound
	}
	return m, nil
}

func getBooking(ctx context.Context, db bun.IDB, id uuid.UUID) (domain.Booking, error) {
	var b domain.Booking
	err := db.NewSelect().
		Model(&b).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return domain.Booking{}, mapError(err)
	}
	return b, nil
}

// listActiveForStaff is served by bookings_staff_start_idx.
func listActiveForStaff(ctx context.Context, db bun.IDB, staffID string, from, to time.Time) ([]domain.Booking, error) {
	var rows []domain.Booking
	err := db.NewSelect().
		Model(&rows).
		Where("staff_id = ?", staffID).
		Where("start_time >= ?", from).
		Where("start_time < ?", to).
		Where("status <> ?", domain.StatusCancelled).
		OrderExpr("start_time ASC").
		Scan(ctx)
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}
