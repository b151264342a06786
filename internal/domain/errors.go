package domain

import (
	"errors"
	"fmt"
	"time"
)

type ErrorKind string

const (
	KindInvalidRequest       ErrorKind = "INVALID_REQUEST"
	KindInvalidAssignment    ErrorKind = "INVALID_ASSIGNMENT"
	KindServiceInactive      ErrorKind = "SERVICE_INACTIVE"
	KindRecurrenceNotAllowed ErrorKind = "RECURRENCE_NOT_ALLOWED"
	KindPastDate             ErrorKind = "PAST_DATE"
	KindSlotUnavailable      ErrorKind = "SLOT_UNAVAILABLE"
	KindIllegalTransition    ErrorKind = "ILLEGAL_TRANSITION"
	KindTerminalState        ErrorKind = "TERMINAL_STATE"
	KindInvalidPayment       ErrorKind = "INVALID_PAYMENT"
	KindNotFound             ErrorKind = "NOT_FOUND"
	KindForbidden            ErrorKind = "FORBIDDEN"
	KindBusy                 ErrorKind = "BUSY"
)

// BookingError is the typed failure returned by booking operations.
// errors.Is matches on Kind, so the package sentinels work as targets.
type BookingError struct {
	Kind    ErrorKind
	Message string

	// ConflictAt and Occurrence (1-based) identify the first unavailable occurrence.
	ConflictAt time.Time
	Occurrence int

	From BookingStatus
	To   BookingStatus

	RetryAfter time.Duration

	Err error
}

func (e *BookingError) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Message
}

func (e *BookingError) Unwrap() error {
	return e.Err
}

func (e *BookingError) Is(target error) bool {
	t, ok := target.(*BookingError)
	return ok && t.Kind == e.Kind
}

var (
	ErrInvalidRequest       = &BookingError{Kind: KindInvalidRequest}
	ErrInvalidAssignment    = &BookingError{Kind: KindInvalidAssignment}
	ErrServiceInactive      = &BookingError{Kind: KindServiceInactive}
	ErrRecurrenceNotAllowed = &BookingError{Kind: KindRecurrenceNotAllowed}
	ErrPastDate             = &BookingError{Kind: KindPastDate}
	ErrSlotUnavailable      = &BookingError{Kind: KindSlotUnavailable}
	ErrIllegalTransition    = &BookingError{Kind: KindIllegalTransition}
	ErrTerminalState        = &BookingError{Kind: KindTerminalState}
	ErrInvalidPayment       = &BookingError{Kind: KindInvalidPayment}
	ErrBookingNotFound      = &BookingError{Kind: KindNotFound}
	ErrForbidden            = &BookingError{Kind: KindForbidden}
	ErrBusy                 = &BookingError{Kind: KindBusy}
)

func InvalidRequest(format string, args ...any) *BookingError {
	return &BookingError{Kind: KindInvalidRequest, Message: fmt.Sprintf(format, args...)}
}

func InvalidAssignment(format string, args ...any) *BookingError {
	return &BookingError{Kind: KindInvalidAssignment, Message: fmt.Sprintf(format, args...)}
}

func ServiceInactive(serviceID string) *BookingError {
	return &BookingError{Kind: KindServiceInactive, Message: fmt.Sprintf("service %s is not active", serviceID)}
}

func RecurrenceNotAllowed(p RecurrencePattern) *BookingError {
	return &BookingError{Kind: KindRecurrenceNotAllowed, Message: fmt.Sprintf("recurrence %s is not allowed for this service", p)}
}

func PastDate(start time.Time) *BookingError {
	return &BookingError{Kind: KindPastDate, Message: "start time is in the past", ConflictAt: start}
}

func SlotUnavailable(at time.Time, occurrence int) *BookingError {
	msg := fmt.Sprintf("slot at %s is not available", at.UTC().Format(time.RFC3339))
	if occurrence > 1 {
		msg = fmt.Sprintf("occurrence %d at %s is not available", occurrence, at.UTC().Format(time.RFC3339))
	}
	return &BookingError{Kind: KindSlotUnavailable, Message: msg, ConflictAt: at, Occurrence: occurrence}
}

func IllegalTransition(from, to BookingStatus) *BookingError {
	return &BookingError{
		Kind:    KindIllegalTransition,
		Message: fmt.Sprintf("cannot move booking from %s to %s", from, to),
		From:    from,
		To:      to,
	}
}

func TerminalState(from, to BookingStatus) *BookingError {
	return &BookingError{
		Kind:    KindTerminalState,
		Message: fmt.Sprintf("booking is %s and cannot move to %s", from, to),
		From:    from,
		To:      to,
	}
}

func InvalidPayment(format string, args ...any) *BookingError {
	return &BookingError{Kind: KindInvalidPayment, Message: fmt.Sprintf(format, args...)}
}

func BookingNotFound(id string) *BookingError {
	return &BookingError{Kind: KindNotFound, Message: fmt.Sprintf("booking %s not found", id)}
}

func Forbidden(msg string) *BookingError {
	return &BookingError{Kind: KindForbidden, Message: msg}
}

func Busy(retryAfter time.Duration, cause error) *BookingError {
	return &BookingError{
		Kind:       KindBusy,
		Message:    "calendar is busy, retry later",
		RetryAfter: retryAfter,
		Err:        cause,
	}
}

// KindOf returns the kind of the first BookingError in err's chain, or "".
func KindOf(err error) ErrorKind {
	var be *BookingError
	if errors.As(err, &be) {
		return be.Kind
	}
	return ""
}
