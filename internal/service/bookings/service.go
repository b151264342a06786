package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"chronobook/backend/internal/availability"
	"chronobook/backend/internal/catalog"
	"chronobook/backend/internal/clock"
	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/lock"
	"chronobook/backend/internal/notify"
	"chronobook/backend/internal/store"
)

const (
	DefaultLockWait  = 3 * time.Second
	DefaultRetryHint = 200 * time.Millisecond

	maxNotesLength          = 2000
	maxIdempotencyKeyLength = 256
	defaultListLimit        = 100
	maxListLimit            = 500
)

type Service struct {
	repo        store.BookingRepository
	catalog     catalog.Reader
	engine      *availability.Engine
	locker      lock.Locker
	notifier    notify.Notifier
	clock       clock.Clock
	log         *slog.Logger
	tracer      trace.Tracer
	occurrences int
	retryHint   time.Duration
}

type Option func(*Service)

func WithLocker(l lock.Locker) Option {
	return func(s *Service) {
		if l != nil {
			s.locker = l
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithClock(c clock.Clock) Option {
	return func(s *Service) {
		if c != nil {
			s.clock = c
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

func WithTracer(t trace.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithOccurrenceCount sets how many occurrences a recurring request books.
func WithOccurrenceCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.occurrences = n
		}
	}
}

func WithRetryHint(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.retryHint = d
		}
	}
}

func NewService(repo store.BookingRepository, cat catalog.Reader, opts ...Option) *Service {
	s := &Service{
		repo:        repo,
		catalog:     cat,
		locker:      lock.NewLocal(DefaultLockWait),
		notifier:    discardNotifier{},
		clock:       clock.NewSystem(),
		log:         slog.Default(),
		tracer:      noop.NewTracerProvider().Tracer(""),
		occurrences: domain.DefaultOccurrenceCount,
		retryHint:   DefaultRetryHint,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(slog.String("component", "bookings"))
	s.engine = availability.NewEngine(cat, s.log)
	return s
}

type discardNotifier struct{}

func (discardNotifier) Notify(context.Context, ...notify.Event) {}

// inStaffCalendar runs fn with exclusive ownership of the staff calendar. Waiting for the
// calendar honours ctx; once owned, the transaction runs to completion regardless of ctx.
func (s *Service) inStaffCalendar(ctx context.Context, staffID string, fn func(ctx context.Context, tx store.CalendarTx) error) error {
	release, err := s.locker.Acquire(ctx, "staff:"+staffID)
	if err != nil {
		if errors.Is(err, lock.ErrTimeout) {
			return domain.Busy(s.retryHint, err)
		}
		return err
	}
	defer release()

	if err := ctx.Err(); err != nil {
		return err
	}

	err = s.repo.InStaffTransaction(context.WithoutCancel(ctx), staffID, fn)
	if errors.Is(err, store.ErrBusy) {
		return domain.Busy(s.retryHint, err)
	}
	return err
}

type refs struct {
	location domain.Location
	service  domain.Service
	staff    domain.Staff
}

// resolve loads and cross-checks the catalog records of a booking.
func (s *Service) resolve(ctx context.Context, locationID, serviceID, staffID string) (refs, error) {
	var r refs
	var err error

	if r.location, err = s.catalog.GetLocation(ctx, locationID); err != nil {
		return refs{}, catalogLookupError("location", locationID, err)
	}
	if r.service, err = s.catalog.GetService(ctx, serviceID); err != nil {
		return refs{}, catalogLookupError("service", serviceID, err)
	}
	if r.staff, err = s.catalog.GetStaff(ctx, staffID); err != nil {
		return refs{}, catalogLookupError("staff", staffID, err)
	}

	switch {
	case !r.location.IsActive:
		return refs{}, domain.InvalidAssignment("location %s is not active", locationID)
	case !r.service.OfferedAt(locationID):
		return refs{}, domain.InvalidAssignment("service %s is not offered at location %s", serviceID, locationID)
	case !r.staff.CanPerform(serviceID):
		return refs{}, domain.InvalidAssignment("staff %s is not assigned to service %s", staffID, serviceID)
	case !r.staff.WorksAt(locationID):
		return refs{}, domain.InvalidAssignment("staff %s does not work at location %s", staffID, locationID)
	}
	return r, nil
}

func catalogLookupError(kind, id string, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return domain.InvalidAssignment("unknown %s %s", kind, id)
	}
	return fmt.Errorf("get %s %s: %w", kind, id, err)
}

func (r refs) query() availability.Query {
	return availability.Query{
		StaffID:    r.staff.ID,
		LocationID: r.location.ID,
		Service:    r.service,
		Location:   r.location,
	}
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "bookings."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		if kind := domain.KindOf(err); kind != "" {
			span.SetAttributes(attribute.String("booking.error_kind", string(kind)))
		}
	}
	span.End()
}
