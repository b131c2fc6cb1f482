package appointments

import (
	"errors"
	"fmt"
	"strings"
)

// ValidationError rejects a single input field. Nothing is persisted.
type ValidationError struct {
	Field string
	msg   string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func validationError(field, msg string) error {
	return &ValidationError{Field: field, msg: msg}
}

// AvailabilityError means the requested staff member is booked for the
// interval. Available lists who is free right now.
type AvailabilityError struct {
	Staff     string
	Available []string
}

func (e *AvailabilityError) Error() string {
	if len(e.Available) == 0 {
		return "no staff available for the requested interval"
	}
	return fmt.Sprintf("%s is not available for the requested interval (available: %s)", e.Staff, strings.Join(e.Available, ", "))
}

var ErrAlreadyAttended = errors.New("appointment already attended")

// TerminalStateError is returned for any change to an attended appointment.
type TerminalStateError struct {
	AppointmentID int64
}

func (e *TerminalStateError) Error() string {
	return fmt.Sprintf("appointment %d: %v", e.AppointmentID, ErrAlreadyAttended)
}

func (e *TerminalStateError) Unwrap() error {
	return ErrAlreadyAttended
}

// EmissionError means no invoice was produced, so the appointment stays pending.
type EmissionError struct {
	Err error
}

func (e *EmissionError) Error() string {
	return "emit invoice: " + e.Err.Error()
}

func (e *EmissionError) Unwrap() error {
	return e.Err
}
