package domain

// CheckTransition validates a status change against the booking lifecycle:
//
//	PENDING   -> CONFIRMED | CANCELLED
//	CONFIRMED -> COMPLETED | CANCELLED
//	CANCELLED -> PENDING (restore)
//	COMPLETED is terminal
func CheckTransition(from, to BookingStatus) error {
	if from == StatusCompleted {
		return TerminalState(from, to)
	}
	switch {
	case from == StatusPending && to == StatusConfirmed,
		from == StatusPending && to == StatusCancelled,
		from == StatusConfirmed && to == StatusCompleted,
		from == StatusConfirmed && to == StatusCancelled,
		from == StatusCancelled && to == StatusPending:
		return nil
	}
	return IllegalTransition(from, to)
}

// IsRestore reports whether the transition puts a cancelled booking back on the calendar.
func IsRestore(from, to BookingStatus) bool {
	return from == StatusCancelled && to == StatusPending
}

// ApplyTransitionPayment returns the payment state after a status change.
// Cancelling a booking with money on it refunds it; restoring a refunded booking resets it.
func ApplyTransitionPayment(b Booking, to BookingStatus) (PaymentStatus, float64) {
	switch {
	case to == StatusCancelled && b.PaidAmount > 0:
		return PaymentRefunded, b.PaidAmount
	case IsRestore(b.Status, to) && b.PaymentStatus == PaymentRefunded:
		return PaymentUnpaid, 0
	}
	return b.PaymentStatus, b.PaidAmount
}

// ApplyPayment validates a manual payment update and returns the new paid amount.
func ApplyPayment(b Booking, status PaymentStatus, amount float64) (float64, error) {
	if b.Status == StatusCancelled && (status == PaymentPaid || status == PaymentPartial) {
		return 0, InvalidPayment("cancelled booking cannot be marked %s", status)
	}
	switch status {
	case PaymentPaid:
		return RoundMoney(b.TotalPrice), nil
	case PaymentUnpaid:
		return 0, nil
	case PaymentPartial:
		amount = RoundMoney(amount)
		if amount <= 0 || amount >= b.TotalPrice {
			return 0, InvalidPayment("partial amount must be between 0 and %.2f", b.TotalPrice)
		}
		return amount, nil
	case PaymentRefunded:
		if b.PaymentStatus != PaymentPaid && b.PaymentStatus != PaymentPartial {
			return 0, InvalidPayment("only paid bookings can be refunded")
		}
		return b.PaidAmount, nil
	}
	return 0, InvalidPayment("unknown payment status %q", status)
}
