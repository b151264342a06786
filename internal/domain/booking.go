package domain

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type BookingStatus string

const (
	StatusPending   BookingStatus = "PENDING"
	StatusConfirmed BookingStatus = "CONFIRMED"
	StatusCompleted BookingStatus = "COMPLETED"
	StatusCancelled BookingStatus = "CANCELLED"
)

func ParseBookingStatus(s string) (BookingStatus, bool) {
	st := BookingStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return st, true
	}
	return "", false
}

type PaymentStatus string

const (
	PaymentUnpaid   PaymentStatus = "UNPAID"
	PaymentPartial  PaymentStatus = "PARTIAL"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

func ParsePaymentStatus(s string) (PaymentStatus, bool) {
	st := PaymentStatus(strings.ToUpper(strings.TrimSpace(s)))
	switch st {
	case PaymentUnpaid, PaymentPartial, PaymentPaid, PaymentRefunded:
		return st, true
	}
	return "", false
}

type PaymentMethod string

const (
	PaymentMethodABAPay     PaymentMethod = "ABA_PAY"
	PaymentMethodStripe     PaymentMethod = "STRIPE"
	PaymentMethodCreditCard PaymentMethod = "CREDIT_CARD"
	PaymentMethodPayLater   PaymentMethod = "PAY_LATER"
)

func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case "":
		return PaymentMethodPayLater, true
	case PaymentMethodABAPay, PaymentMethodStripe, PaymentMethodCreditCard, PaymentMethodPayLater:
		return m, true
	}
	return "", false
}

type Booking struct {
	bun.BaseModel `bun:"table:bookings"`

	ID                uuid.UUID         `bun:"id,pk,type:uuid"`
	SeriesID          *uuid.UUID        `bun:"series_id,type:uuid"`
	LocationID        string            `bun:"location_id,notnull"`
	ServiceID         string            `bun:"service_id,notnull"`
	StaffID           string            `bun:"staff_id,notnull"`
	CustomerID        string            `bun:"customer_id,notnull"`
	StartTime         time.Time         `bun:"start_time,notnull"`
	EndTime           time.Time         `bun:"end_time,notnull"`
	Status            BookingStatus     `bun:"status,notnull"`
	PaymentStatus     PaymentStatus     `bun:"payment_status,notnull"`
	PaymentMethod     PaymentMethod     `bun:"payment_method,notnull"`
	TotalPrice        float64           `bun:"total_price,notnull"`
	PaidAmount        float64           `bun:"paid_amount,notnull"`
	RecurrencePattern RecurrencePattern `bun:"recurrence_pattern,notnull"`
	Notes             string            `bun:"notes"`
	CreatedAt         time.Time         `bun:"created_at,notnull"`
	UpdatedAt         time.Time         `bun:"updated_at,notnull"`
}

func (b *Booking) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if b.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			b.ID = id
		}
		if b.CreatedAt.IsZero() {
			b.CreatedAt = now
		}
		if b.UpdatedAt.IsZero() {
			b.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		b.UpdatedAt = now
	}
	return nil
}

func (b Booking) Interval() Interval {
	return Interval{Start: b.StartTime.UTC(), End: b.EndTime.UTC()}
}

// Occupies reports whether the booking still holds its slot on the calendar.
func (b Booking) Occupies() bool {
	return b.Status != StatusCancelled
}

func (b Booking) AmountDue() float64 {
	return RoundMoney(b.TotalPrice - b.PaidAmount)
}

func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}

// InitialPayment derives the payment state of a new booking. Any method other than
// pay-later models an already authorized external payment.
func InitialPayment(method PaymentMethod, price float64) (PaymentStatus, float64) {
	if method == PaymentMethodPayLater {
		return PaymentUnpaid, 0
	}
	return PaymentPaid, RoundMoney(price)
}
