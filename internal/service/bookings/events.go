package bookings

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/notify"
)

const timeLayout = "Mon 2 Jan 2006 15:04 MST"

func newEvent(typ, recipient string, b domain.Booking, sev notify.Severity, title, msg string, now time.Time) notify.Event {
	return notify.Event{
		ID:              uuid.NewString(),
		Type:            typ,
		RecipientUserID: recipient,
		Title:           title,
		Message:         msg,
		Severity:        sev,
		BookingID:       b.ID.String(),
		Timestamp:       now.UTC(),
	}
}

// toStaff appends ev addressed to the staff member's user, if they have one.
func toStaff(events []notify.Event, staff domain.Staff, ev notify.Event) []notify.Event {
	if staff.UserID == "" {
		return events
	}
	ev.ID = uuid.NewString()
	ev.RecipientUserID = staff.UserID
	return append(events, ev)
}

func createdEvents(created []domain.Booking, staff domain.Staff, now time.Time) []notify.Event {
	var out []notify.Event
	for _, b := range created {
		when := b.StartTime.Format(timeLayout)
		out = append(out, newEvent(notify.EventBookingCreated, b.CustomerID, b, notify.SeveritySuccess,
			"Booking requested", fmt.Sprintf("Your booking on %s is pending confirmation.", when), now))
		out = toStaff(out, staff, newEvent(notify.EventBookingCreated, "", b, notify.SeverityInfo,
			"New booking", fmt.Sprintf("New booking request for %s.", when), now))
	}
	return out
}

func transitionEvents(b domain.Booking, from domain.BookingStatus, staff domain.Staff, now time.Time) []notify.Event {
	when := b.StartTime.Format(timeLayout)
	switch {
	case domain.IsRestore(from, b.Status):
		return []notify.Event{newEvent(notify.EventBookingRestored, b.CustomerID, b, notify.SeverityInfo,
			"Booking restored", fmt.Sprintf("Your booking on %s is active again.", when), now)}
	case b.Status == domain.StatusConfirmed:
		return []notify.Event{newEvent(notify.EventBookingConfirmed, b.CustomerID, b, notify.SeveritySuccess,
			"Booking confirmed", fmt.Sprintf("Your booking on %s is confirmed.", when), now)}
	case b.Status == domain.StatusCompleted:
		out := []notify.Event{newEvent(notify.EventBookingCompleted, b.CustomerID, b, notify.SeverityInfo,
			"Booking completed", "Thanks for visiting.", now)}
		return toStaff(out, staff, newEvent(notify.EventBookingCompleted, "", b, notify.SeverityInfo,
			"Booking completed", fmt.Sprintf("Booking on %s marked completed.", when), now))
	case b.Status == domain.StatusCancelled:
		msg := fmt.Sprintf("Your booking on %s was cancelled.", when)
		if b.PaymentStatus == domain.PaymentRefunded {
			msg += fmt.Sprintf(" %.2f will be refunded.", b.PaidAmount)
		}
		out := []notify.Event{newEvent(notify.EventBookingCancelled, b.CustomerID, b, notify.SeverityWarning,
			"Booking cancelled", msg, now)}
		return toStaff(out, staff, newEvent(notify.EventBookingCancelled, "", b, notify.SeverityWarning,
			"Booking cancelled", fmt.Sprintf("Booking on %s was cancelled.", when), now))
	}
	return nil
}

func rescheduledEvents(b domain.Booking, previous time.Time, staff domain.Staff, now time.Time) []notify.Event {
	msg := fmt.Sprintf("Moved from %s to %s.", previous.Format(timeLayout), b.StartTime.Format(timeLayout))
	out := []notify.Event{newEvent(notify.EventBookingRescheduled, b.CustomerID, b, notify.SeverityInfo, "Booking rescheduled", msg, now)}
	return toStaff(out, staff, newEvent(notify.EventBookingRescheduled, "", b, notify.SeverityInfo, "Booking rescheduled", msg, now))
}

func paymentEvent(b domain.Booking, now time.Time) notify.Event {
	return newEvent(notify.EventPaymentUpdated, b.CustomerID, b, notify.SeverityInfo, "Payment updated",
		fmt.Sprintf("Payment status is now %s (%.2f of %.2f paid).", b.PaymentStatus, b.PaidAmount, b.TotalPrice), now)
}
