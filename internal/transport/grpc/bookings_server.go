package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	chronobookv1 "chronobook/backend/internal/api/chronobook/v1"
	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/identity"
	"chronobook/backend/internal/service/bookings"
)

type BookingsServer struct {
	chronobookv1.UnimplementedBookingServiceServer

	svc     bookingService
	log     *slog.Logger
	retries int
}

type bookingService interface {
	RequestBooking(ctx context.Context, in bookings.RequestInput) ([]domain.Booking, error)
	UpdateBookingStatus(ctx context.Context, in bookings.StatusInput) (domain.Booking, error)
	RescheduleBooking(ctx context.Context, in bookings.RescheduleInput) (domain.Booking, error)
	MarkPayment(ctx context.Context, in bookings.PaymentInput) (domain.Booking, error)
	GetBooking(ctx context.Context, actor identity.Actor, id uuid.UUID) (domain.Booking, error)
	ListBookings(ctx context.Context, in bookings.ListInput) ([]domain.Booking, error)
	FreeSlots(ctx context.Context, in bookings.FreeSlotsInput) ([]domain.Interval, error)
}

// NewBookingsServer serves chronobook.v1.BookingService. Writes that hit a busy staff
// calendar are retried up to retries times before Unavailable is returned.
func NewBookingsServer(svc bookingService, log *slog.Logger, retries int) *BookingsServer {
	if log == nil {
		log = slog.Default()
	}
	if retries < 1 {
		retries = bookings.DefaultRetryAttempts
	}
	return &BookingsServer{
		svc:     svc,
		log:     log.With(slog.String("component", "grpc.bookings")),
		retries: retries,
	}
}

func (s *BookingsServer) RequestBooking(ctx context.Context, req *chronobookv1.RequestBookingRequest) (*chronobookv1.RequestBookingResponse, error) {
	log := s.log.With(slog.String("rpc", "RequestBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	if req.StartTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_start_time"), slog.String("staff_id", req.StaffId))
		return nil, status.Error(codes.InvalidArgument, "start_time is required")
	}
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	created, err := bookings.RetryBusy(ctx, s.retries, func() ([]domain.Booking, error) {
		return s.svc.RequestBooking(ctx, bookings.RequestInput{
			Actor:             actor,
			CustomerID:        req.CustomerId,
			ServiceID:         req.ServiceId,
			StaffID:           req.StaffId,
			LocationID:        req.LocationId,
			StartTime:         req.StartTime.AsTime(),
			RecurrencePattern: domain.RecurrencePattern(req.RecurrencePattern),
			PaymentMethod:     domain.PaymentMethod(req.PaymentMethod),
			Notes:             req.Notes,
			IdempotencyKey:    idempotencyKey(ctx),
		})
	})
	if err != nil {
		return nil, s.statusError(ctx, log, "booking request failed", err, slog.String("staff_id", req.StaffId), slog.Time("start_time", req.StartTime.AsTime()))
	}

	log.Info("booking requested",
		slog.String("booking_id", created[0].ID.String()),
		slog.String("staff_id", req.StaffId),
		slog.Int("occurrences", len(created)),
	)
	return &chronobookv1.RequestBookingResponse{Bookings: toProtoBookings(created)}, nil
}

func (s *BookingsServer) UpdateBookingStatus(ctx context.Context, req *chronobookv1.UpdateBookingStatusRequest) (*chronobookv1.UpdateBookingStatusResponse, error) {
	log := s.log.With(slog.String("rpc", "UpdateBookingStatus"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.BookingId)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "booking_id must be a UUID")
	}
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	b, err := bookings.RetryBusy(ctx, s.retries, func() (domain.Booking, error) {
		return s.svc.UpdateBookingStatus(ctx, bookings.StatusInput{Actor: actor, BookingID: id, Status: domain.BookingStatus(req.Status)})
	})
	if err != nil {
		return nil, s.statusError(ctx, log, "booking status update failed", err, slog.String("booking_id", id.String()), slog.String("status", req.Status))
	}

	log.Info("booking status updated", slog.String("booking_id", id.String()), slog.String("status", string(b.Status)))
	return &chronobookv1.UpdateBookingStatusResponse{Booking: toProtoBooking(b)}, nil
}

func (s *BookingsServer) RescheduleBooking(ctx context.Context, req *chronobookv1.RescheduleBookingRequest) (*chronobookv1.RescheduleBookingResponse, error) {
	log := s.log.With(slog.String("rpc", "RescheduleBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.BookingId)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "booking_id must be a UUID")
	}
	if req.StartTime == nil {
		log.Warn("invalid request", slog.String("reason", "missing_start_time"), slog.String("booking_id", id.String()))
		return nil, status.Error(codes.InvalidArgument, "start_time is required")
	}
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	b, err := bookings.RetryBusy(ctx, s.retries, func() (domain.Booking, error) {
		return s.svc.RescheduleBooking(ctx, bookings.RescheduleInput{Actor: actor, BookingID: id, StartTime: req.StartTime.AsTime()})
	})
	if err != nil {
		return nil, s.statusError(ctx, log, "booking reschedule failed", err, slog.String("booking_id", id.String()))
	}

	log.Info("booking rescheduled", slog.String("booking_id", id.String()), slog.Time("start_time", b.StartTime))
	return &chronobookv1.RescheduleBookingResponse{Booking: toProtoBooking(b)}, nil
}

func (s *BookingsServer) MarkPayment(ctx context.Context, req *chronobookv1.MarkPaymentRequest) (*chronobookv1.MarkPaymentResponse, error) {
	log := s.log.With(slog.String("rpc", "MarkPayment"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.BookingId)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "booking_id must be a UUID")
	}
	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}

	b, err := bookings.RetryBusy(ctx, s.retries, func() (domain.Booking, error) {
		return s.svc.MarkPayment(ctx, bookings.PaymentInput{
			Actor:     actor,
			BookingID: id,
			Status:    domain.PaymentStatus(req.PaymentStatus),
			Amount:    req.Amount,
		})
	})
	if err != nil {
		return nil, s.statusError(ctx, log, "payment update failed", err, slog.String("booking_id", id.String()))
	}

	log.Info("payment updated", slog.String("booking_id", id.String()), slog.String("payment_status", string(b.PaymentStatus)))
	return &chronobookv1.MarkPaymentResponse{Booking: toProtoBooking(b)}, nil
}

func (s *BookingsServer) GetBooking(ctx context.Context, req *chronobookv1.GetBookingRequest) (*chronobookv1.GetBookingResponse, error) {
	log := s.log.With(slog.String("rpc", "GetBooking"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	id, err := uuid.Parse(req.BookingId)
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"))
		return nil, status.Error(codes.InvalidArgument, "booking_id must be a UUID")
	}

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	b, err := s.svc.GetBooking(ctx, actor, id)
	if err != nil {
		return nil, s.statusError(ctx, log, "booking get failed", err, slog.String("booking_id", id.String()))
	}
	return &chronobookv1.GetBookingResponse{Booking: toProtoBooking(b)}, nil
}

func (s *BookingsServer) ListBookings(ctx context.Context, req *chronobookv1.ListBookingsRequest) (*chronobookv1.ListBookingsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListBookings"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	actor, err := requireActor(ctx)
	if err != nil {
		return nil, err
	}
	in := bookings.ListInput{
		Actor:      actor,
		StaffID:    req.StaffId,
		CustomerID: req.CustomerId,
		LocationID: req.LocationId,
		Limit:      int(req.Limit),
	}
	if req.WindowStart != nil {
		in.From = req.WindowStart.AsTime()
	}
	if req.WindowEnd != nil {
		in.To = req.WindowEnd.AsTime()
	}
	for _, st := range req.Statuses {
		in.Statuses = append(in.Statuses, domain.BookingStatus(st))
	}

	list, err := s.svc.ListBookings(ctx, in)
	if err != nil {
		return nil, s.statusError(ctx, log, "bookings list failed", err, slog.String("staff_id", req.StaffId))
	}

	log.Debug("bookings listed", slog.String("staff_id", req.StaffId), slog.Int("count", len(list)))
	return &chronobookv1.ListBookingsResponse{Bookings: toProtoBookings(list)}, nil
}

func (s *BookingsServer) ComputeFreeSlots(ctx context.Context, req *chronobookv1.ComputeFreeSlotsRequest) (*chronobookv1.ComputeFreeSlotsResponse, error) {
	log := s.log.With(slog.String("rpc", "ComputeFreeSlots"))

	if req == nil {
		log.Warn("invalid request", slog.String("reason", "nil_request"))
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(req.Date))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_date"), slog.String("date", req.Date))
		return nil, status.Error(codes.InvalidArgument, "date must be formatted as YYYY-MM-DD")
	}

	slots, err := s.svc.FreeSlots(ctx, bookings.FreeSlotsInput{
		StaffID:    req.StaffId,
		LocationID: req.LocationId,
		ServiceID:  req.ServiceId,
		Date:       date,
	})
	if err != nil {
		return nil, s.statusError(ctx, log, "free slots failed", err, slog.String("staff_id", req.StaffId), slog.String("date", req.Date))
	}

	out := make([]*chronobookv1.TimeSlot, 0, len(slots))
	for _, iv := range slots {
		out = append(out, &chronobookv1.TimeSlot{StartTime: timestamppb.New(iv.Start), EndTime: timestamppb.New(iv.End)})
	}
	log.Debug("free slots computed", slog.String("staff_id", req.StaffId), slog.String("date", req.Date), slog.Int("count", len(out)))
	return &chronobookv1.ComputeFreeSlotsResponse{Slots: out}, nil
}

// statusError maps booking failures to gRPC statuses. Business rejections are logged at
// Info, unexpected failures at Error.
func (s *BookingsServer) statusError(ctx context.Context, log *slog.Logger, msg string, err error, attrs ...any) error {
	var be *domain.BookingError
	if !errors.As(err, &be) {
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			log.Warn(msg, append(attrs, slog.Any("err", err))...)
			return status.Error(codes.DeadlineExceeded, "request timed out")
		case errors.Is(err, context.Canceled):
			return status.Error(codes.Canceled, "request cancelled")
		}
		log.Error(msg, append(attrs, slog.Any("err", err))...)
		return status.Error(codes.Internal, "internal error")
	}

	log.Info(msg, append(attrs, slog.String("kind", string(be.Kind)), slog.String("reason", be.Message))...)
	switch be.Kind {
	case domain.KindInvalidRequest, domain.KindInvalidAssignment, domain.KindRecurrenceNotAllowed, domain.KindPastDate, domain.KindInvalidPayment:
		return status.Error(codes.InvalidArgument, be.Message)
	case domain.KindServiceInactive, domain.KindIllegalTransition, domain.KindTerminalState:
		return status.Error(codes.FailedPrecondition, be.Message)
	case domain.KindSlotUnavailable:
		if be.Occurrence > 1 {
			return status.Errorf(codes.FailedPrecondition, "Occurrence %d at %s is no longer available. Pick a different slot.", be.Occurrence, be.ConflictAt.Format(time.RFC3339))
		}
		return status.Error(codes.FailedPrecondition, "That time is no longer available. Pick a different slot.")
	case domain.KindNotFound:
		return status.Error(codes.NotFound, "booking not found")
	case domain.KindForbidden:
		return status.Error(codes.PermissionDenied, be.Message)
	case domain.KindBusy:
		_ = grpc.SetTrailer(ctx, metadata.Pairs("retry-after-ms", strconv.FormatInt(be.RetryAfter.Milliseconds(), 10)))
		return status.Error(codes.Unavailable, "The calendar is busy. Try again shortly.")
	}
	log.Error(msg, append(attrs, slog.Any("err", err))...)
	return status.Error(codes.Internal, "internal error")
}

func requireActor(ctx context.Context) (identity.Actor, error) {
	actor, ok := identity.FromContext(ctx)
	if !ok {
		return identity.Actor{}, status.Error(codes.Unauthenticated, "authentication required")
	}
	return actor, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func toProtoBookings(bs []domain.Booking) []*chronobookv1.Booking {
	out := make([]*chronobookv1.Booking, 0, len(bs))
	for _, b := range bs {
		out = append(out, toProtoBooking(b))
	}
	return out
}

func toProtoBooking(b domain.Booking) *chronobookv1.Booking {
	var seriesID string
	if b.SeriesID != nil {
		seriesID = b.SeriesID.String()
	}
	return &chronobookv1.Booking{
		Id:                b.ID.String(),
		SeriesId:          seriesID,
		LocationId:        b.LocationID,
		ServiceId:         b.ServiceID,
		StaffId:           b.StaffID,
		CustomerId:        b.CustomerID,
		StartTime:         timestamppb.New(b.StartTime),
		EndTime:           timestamppb.New(b.EndTime),
		Status:            string(b.Status),
		PaymentStatus:     string(b.PaymentStatus),
		PaymentMethod:     string(b.PaymentMethod),
		TotalPrice:        b.TotalPrice,
		PaidAmount:        b.PaidAmount,
		RecurrencePattern: string(b.RecurrencePattern),
		Notes:             b.Notes,
		CreatedAt:         timestamppb.New(b.CreatedAt),
		UpdatedAt:         timestamppb.New(b.UpdatedAt),
	}
}
