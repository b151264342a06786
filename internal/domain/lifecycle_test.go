package domain

import (
	"errors"
	"testing"
)

func TestCheckTransition(t *testing.T) {
	allowed := map[[2]BookingStatus]bool{
		{StatusPending, StatusConfirmed}:   true,
		{StatusPending, StatusCancelled}:   true,
		{StatusConfirmed, StatusCompleted}: true,
		{StatusConfirmed, StatusCancelled}: true,
		{StatusCancelled, StatusPending}:   true,
	}
	all := []BookingStatus{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

	for _, from := range all {
		for _, to := range all {
			err := CheckTransition(from, to)
			switch {
			case allowed[[2]BookingStatus{from, to}]:
				if err != nil {
					t.Fatalf("%s -> %s: unexpected error: %v", from, to, err)
				}
			case from == StatusCompleted:
				if !errors.Is(err, ErrTerminalState) {
					t.Fatalf("%s -> %s: expected terminal state, got %v", from, to, err)
				}
			default:
				var be *BookingError
				if !errors.As(err, &be) || be.Kind != KindIllegalTransition {
					t.Fatalf("%s -> %s: expected illegal transition, got %v", from, to, err)
				}
				if be.From != from || be.To != to {
					t.Fatalf("expected error to carry %s -> %s, got %s -> %s", from, to, be.From, be.To)
				}
			}
		}
	}
}

func TestApplyTransitionPayment(t *testing.T) {
	paid := Booking{Status: StatusConfirmed, PaymentStatus: PaymentPaid, TotalPrice: 50, PaidAmount: 50}
	if st, amount := ApplyTransitionPayment(paid, StatusCancelled); st != PaymentRefunded || amount != 50 {
		t.Fatalf("expected refund on cancel, got %s %.2f", st, amount)
	}

	unpaid := Booking{Status: StatusPending, PaymentStatus: PaymentUnpaid, TotalPrice: 50}
	if st, _ := ApplyTransitionPayment(unpaid, StatusCancelled); st != PaymentUnpaid {
		t.Fatalf("expected unpaid booking to stay unpaid, got %s", st)
	}

	refunded := Booking{Status: StatusCancelled, PaymentStatus: PaymentRefunded, TotalPrice: 50, PaidAmount: 50}
	if st, amount := ApplyTransitionPayment(refunded, StatusPending); st != PaymentUnpaid || amount != 0 {
		t.Fatalf("expected restore to reset payment, got %s %.2f", st, amount)
	}
}

func TestApplyPayment(t *testing.T) {
	b := Booking{Status: StatusConfirmed, PaymentStatus: PaymentUnpaid, TotalPrice: 80}

	if amount, err := ApplyPayment(b, PaymentPaid, 0); err != nil || amount != 80 {
		t.Fatalf("expected full payment, got %.2f %v", amount, err)
	}
	if amount, err := ApplyPayment(b, PaymentPartial, 30.004); err != nil || amount != 30 {
		t.Fatalf("expected partial payment of 30, got %.2f %v", amount, err)
	}
	if _, err := ApplyPayment(b, PaymentPartial, 80); !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected invalid payment for full partial amount, got %v", err)
	}
	if _, err := ApplyPayment(b, PaymentRefunded, 0); !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected refund of unpaid booking to fail, got %v", err)
	}

	cancelled := b
	cancelled.Status = StatusCancelled
	if _, err := ApplyPayment(cancelled, PaymentPaid, 0); !errors.Is(err, ErrInvalidPayment) {
		t.Fatalf("expected cancelled booking payment to fail, got %v", err)
	}
}

func TestBookingErrorIsMatchesKind(t *testing.T) {
	err := SlotUnavailable(at(10, 0), 3)
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected slot unavailable to match sentinel")
	}
	if errors.Is(err, ErrBusy) {
		t.Fatalf("expected slot unavailable not to match busy")
	}
	if KindOf(err) != KindSlotUnavailable {
		t.Fatalf("unexpected kind %q", KindOf(err))
	}
}
