package http

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/service/bookings"
)

type requestBookingBody struct {
	CustomerID        string    `json:"customerId"`
	ServiceID         string    `json:"serviceId" binding:"required"`
	StaffID           string    `json:"staffId" binding:"required"`
	LocationID        string    `json:"locationId" binding:"required"`
	StartTime         time.Time `json:"startTime"`
	RecurrencePattern string    `json:"recurrencePattern"`
	PaymentMethod     string    `json:"paymentMethod"`
	Notes             string    `json:"notes"`
}

type statusBody struct {
	Status string `json:"status" binding:"required"`
}

type rescheduleBody struct {
	StartTime time.Time `json:"startTime"`
}

type paymentBody struct {
	PaymentStatus string  `json:"paymentStatus" binding:"required"`
	Amount        float64 `json:"amount"`
}

type bookingResponse struct {
	ID                string    `json:"id"`
	SeriesID          string    `json:"seriesId,omitempty"`
	LocationID        string    `json:"locationId"`
	ServiceID         string    `json:"serviceId"`
	StaffID           string    `json:"staffId"`
	CustomerID        string    `json:"customerId"`
	StartTime         time.Time `json:"startTime"`
	EndTime           time.Time `json:"endTime"`
	Status            string    `json:"status"`
	PaymentStatus     string    `json:"paymentStatus"`
	PaymentMethod     string    `json:"paymentMethod"`
	TotalPrice        float64   `json:"totalPrice"`
	PaidAmount        float64   `json:"paidAmount"`
	RecurrencePattern string    `json:"recurrencePattern"`
	Notes             string    `json:"notes,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type slotResponse struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (h *handler) requestBooking(c *gin.Context) {
	var body requestBookingBody
	if err := c.ShouldBindJSON(&body); err != nil {
		failure(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if body.StartTime.IsZero() {
		failure(c, http.StatusBadRequest, "VALIDATION_ERROR", "startTime is required")
		return
	}

	ctx := c.Request.Context()
	actor := actorOf(c)
	created, err := bookings.RetryBusy(ctx, h.retries, func() ([]domain.Booking, error) {
		return h.svc.RequestBooking(ctx, bookings.RequestInput{
			Actor:             actor,
			CustomerID:        body.CustomerID,
			ServiceID:         body.ServiceID,
			StaffID:           body.StaffID,
			LocationID:        body.LocationID,
			StartTime:         body.StartTime,
			RecurrencePattern: domain.RecurrencePattern(body.RecurrencePattern),
			PaymentMethod:     domain.PaymentMethod(body.PaymentMethod),
			Notes:             body.Notes,
			IdempotencyKey:    strings.TrimSpace(c.GetHeader("Idempotency-Key")),
		})
	})
	if err != nil {
		writeError(c, h.log, "booking request failed", err)
		return
	}
	success(c, http.StatusCreated, gin.H{"bookings": toBookingResponses(created)})
}

func (h *handler) getBooking(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	b, err := h.svc.GetBooking(c.Request.Context(), actorOf(c), id)
	if err != nil {
		writeError(c, h.log, "booking get failed", err)
		return
	}
	success(c, http.StatusOK, toBookingResponse(b))
}

func (h *handler) listBookings(c *gin.Context) {
	in := bookings.ListInput{
		Actor:      actorOf(c),
		StaffID:    c.Query("staffId"),
		CustomerID: c.Query("customerId"),
		LocationID: c.Query("locationId"),
	}
	var err error
	if in.From, err = optionalTime(c.Query("from")); err != nil {
		failure(c, http.StatusBadRequest, "VALIDATION_ERROR", "from must be RFC3339")
		return
	}
	if in.To, err = optionalTime(c.Query("to")); err != nil {
		failure(c, http.StatusBadRequest, "VALIDATION_ERROR", "to must be RFC3339")
		return
	}
	if raw := c.Query("limit"); raw != "" {
		if in.Limit, err = strconv.Atoi(raw); err != nil {
			failure(c, http.StatusBadRequest, "VALIDATION_ERROR", "limit must be a number")
			return
		}
	}
	for _, st := range c.QueryArray("status") {
		for _, part := range strings.Split(st, ",") {
			if part = strings.TrimSpace(part); part != "" {
				in.Statuses = append(in.Statuses, domain.BookingStatus(part))
			}
		}
	}

	list, err := h.svc.ListBookings(c.Request.Context(), in)
	if err != nil {
		writeError(c, h.log, "bookings list failed", err)
		return
	}
	success(c, http.StatusOK, gin.H{"bookings": toBookingResponses(list)})
}

func (h *handler) updateStatus(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var body statusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		failure(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	ctx := c.Request.Context()
	actor := actorOf(c)
	b, err := bookings.RetryBusy(ctx, h.retries, func() (domain.Booking, error) {
		return h.svc.UpdateBookingStatus(ctx, bookings.StatusInput{Actor: actor, BookingID: id, Status: domain.BookingStatus(body.Status)})
	})
	if err != nil {
		writeError(c, h.log, "booking status update failed", err)
		return
	}
	h.log.Info("booking status updated", slog.String("booking_id", id.String()), slog.String("status", string(b.Status)))
	success(c, http.StatusOK, toBookingResponse(b))
}

func (h *handler) reschedule(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var body rescheduleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		failure(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}
	if body.StartTime.IsZero() {
		failure(c, http.StatusBadRequest, "VALIDATION_ERROR", "startTime is required")
		return
	}

	ctx := c.Request.Context()
	actor := actorOf(c)
	b, err := bookings.RetryBusy(ctx, h.retries, func() (domain.Booking, error) {
		return h.svc.RescheduleBooking(ctx, bookings.RescheduleInput{Actor: actor, BookingID: id, StartTime: body.StartTime})
	})
	if err != nil {
		writeError(c, h.log, "booking reschedule failed", err)
		return
	}
	success(c, http.StatusOK, toBookingResponse(b))
}

func (h *handler) markPayment(c *gin.Context) {
	id, ok := bookingID(c)
	if !ok {
		return
	}
	var body paymentBody
	if err := c.ShouldBindJSON(&body); err != nil {
		failure(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
		return
	}

	ctx := c.Request.Context()
	actor := actorOf(c)
	b, err := bookings.RetryBusy(ctx, h.retries, func() (domain.Booking, error) {
		return h.svc.MarkPayment(ctx, bookings.PaymentInput{
			Actor:     actor,
			BookingID: id,
			Status:    domain.PaymentStatus(body.PaymentStatus),
			Amount:    body.Amount,
		})
	})
	if err != nil {
		writeError(c, h.log, "booking payment failed", err)
		return
	}
	success(c, http.StatusOK, toBookingResponse(b))
}

func (h *handler) freeSlots(c *gin.Context) {
	date, err := time.Parse(time.DateOnly, strings.TrimSpace(c.Query("date")))
	if err != nil {
		failure(c, http.StatusBadRequest, "VALIDATION_ERROR", "date must be formatted as YYYY-MM-DD")
		return
	}
	slots, err := h.svc.FreeSlots(c.Request.Context(), bookings.FreeSlotsInput{
		StaffID:    c.Query("staffId"),
		LocationID: c.Query("locationId"),
		ServiceID:  c.Query("serviceId"),
		Date:       date,
	})
	if err != nil {
		writeError(c, h.log, "free slots failed", err)
		return
	}
	out := make([]slotResponse, 0, len(slots))
	for _, iv := range slots {
		out = append(out, slotResponse{Start: iv.Start, End: iv.End})
	}
	success(c, http.StatusOK, gin.H{"slots": out})
}

func bookingID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		failure(c, http.StatusBadRequest, "VALIDATION_ERROR", "id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

func optionalTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}

func toBookingResponses(bs []domain.Booking) []bookingResponse {
	out := make([]bookingResponse, 0, len(bs))
	for _, b := range bs {
		out = append(out, toBookingResponse(b))
	}
	return out
}

func toBookingResponse(b domain.Booking) bookingResponse {
	var seriesID string
	if b.SeriesID != nil {
		seriesID = b.SeriesID.String()
	}
	return bookingResponse{
		ID:                b.ID.String(),
		SeriesID:          seriesID,
		LocationID:        b.LocationID,
		ServiceID:         b.ServiceID,
		StaffID:           b.StaffID,
		CustomerID:        b.CustomerID,
		StartTime:         b.StartTime.UTC(),
		EndTime:           b.EndTime.UTC(),
		Status:            string(b.Status),
		PaymentStatus:     string(b.PaymentStatus),
		PaymentMethod:     string(b.PaymentMethod),
		TotalPrice:        b.TotalPrice,
		PaidAmount:        b.PaidAmount,
		RecurrencePattern: string(b.RecurrencePattern),
		Notes:             b.Notes,
		CreatedAt:         b.CreatedAt,
		UpdatedAt:         b.UpdatedAt,
	}
}
