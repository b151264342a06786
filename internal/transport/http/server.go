package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/identity"
	"chronobook/backend/internal/service/bookings"
)

type bookingService interface {
	RequestBooking(ctx context.Context, in bookings.RequestInput) ([]domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, in bookings.StatusInput) (domain.Booking, error)
	RescheduleBooking(ctx context.Context, in bookings.RescheduleInput) (domain.Booking, error)
	MarkPayment(ctx context.Context, in bookings.PaymentInput) (domain.Booking, error)
	GetBooking(ctx context.Context, actor identity.Actor, id uuid.UUID) (domain.Booking, error)
	ListBookings(ctx context.Context, in bookings.ListInput) ([]domain.Booking, error)
	FreeSlots(ctx context.Context, in bookings.FreeSlotsInput) ([]domain.Interval, error)
}

type Options struct {
	Service  bookingService
	Verifier tokenVerifier
	// Limiter is optional; nil disables rate limiting.
	Limiter Limiter
	// Ready reports whether dependencies are reachable. Nil means always ready.
	Ready   func(ctx context.Context) error
	Retries int
	Logger  *slog.Logger
}

type handler struct {
	svc     bookingService
	log     *slog.Logger
	retries int
}

// NewRouter builds the REST surface under /v1 plus the health probes.
func NewRouter(opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http.bookings"))
	retries := opts.Retries
	if retries < 1 {
		retries = bookings.DefaultRetryAttempts
	}
	h := &handler{svc: opts.Service, log: log, retries: retries}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(log))

	r.GET("/healthz", func(c *gin.Context) {
		success(c, http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/readyz", func(c *gin.Context) {
		if opts.Ready != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := opts.Ready(ctx); err != nil {
				log.Warn("readiness check failed", slog.Any("err", err))
				failure(c, http.StatusServiceUnavailable, "NOT_READY", "Dependencies unavailable")
				return
			}
		}
		success(c, http.StatusOK, gin.H{"status": "ready"})
	})

	v1 := r.Group("/v1")
	public := v1.Group("")
	authed := v1.Group("", requireAuth(opts.Verifier))
	if opts.Limiter != nil {
		public.Use(rateLimit(opts.Limiter, log))
		authed.Use(rateLimit(opts.Limiter, log))
	}

	public.GET("/availability", h.freeSlots)

	authed.POST("/bookings", h.requestBooking)
	authed.GET("/bookings", h.listBookings)
	authed.GET("/bookings/:id", h.getBooking)
	authed.POST("/bookings/:id/status", h.updateStatus)
	authed.POST("/bookings/:id/reschedule", h.reschedule)
	authed.POST("/bookings/:id/payment", h.markPayment)

	return r
}
