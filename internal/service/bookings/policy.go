package bookings

import (
	"chronobook/backend/internal/domain"
	"chronobook/backend/internal/identity"
)

// A zero Actor is an internal caller and is trusted.

func canBookFor(actor identity.Actor, customerID string, staff domain.Staff) error {
	switch {
	case actor.IsZero(), actor.Role == identity.RoleAdmin:
		return nil
	case actor.Role == identity.RoleCustomer && customerID == actor.UserID:
		return nil
	case actor.Role == identity.RoleStaff && staff.UserID == actor.UserID:
		return nil
	}
	return domain.Forbidden("not allowed to book for this customer or staff member")
}

func canView(actor identity.Actor, b domain.Booking, staff domain.Staff) error {
	switch {
	case actor.IsZero(), actor.Role == identity.RoleAdmin:
		return nil
	case actor.Role == identity.RoleCustomer && b.CustomerID == actor.UserID:
		return nil
	case actor.Role == identity.RoleStaff && staff.UserID == actor.UserID:
		return nil
	}
	return domain.Forbidden("not allowed to access this booking")
}

// Customers may cancel, restore and reschedule their own bookings; confirming and
// completing belongs to staff and admins.
func canTransition(actor identity.Actor, b domain.Booking, staff domain.Staff, to domain.BookingStatus) error {
	if err := canView(actor, b, staff); err != nil {
		return err
	}
	if actor.Role == identity.RoleCustomer && to != domain.StatusCancelled && to != domain.StatusPending {
		return domain.Forbidden("customers may only cancel or restore their bookings")
	}
	return nil
}

func canManagePayment(actor identity.Actor, b domain.Booking, staff domain.Staff) error {
	if actor.Role == identity.RoleCustomer {
		return domain.Forbidden("customers may not change payment state")
	}
	return canView(actor, b, staff)
}
