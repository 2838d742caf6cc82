package scheduling

import (
	"errors"
	"fmt"
)

// Kind classifies a rejected appointment proposal.
type Kind string

const (
	KindNoScheduleConfigured Kind = "no_schedule_configured"
	KindOutsideWorkingHours  Kind = "outside_working_hours"
	KindSlotAlreadyBooked    Kind = "slot_already_booked"
	KindInvalidSlotAlignment Kind = "invalid_slot_alignment"
)

var messages = map[Kind]string{
	KindNoScheduleConfigured: "doctor has no schedule configured for this date",
	KindOutsideWorkingHours:  "requested time is outside the doctor's working hours",
	KindSlotAlreadyBooked:    "this time slot is already booked",
	KindInvalidSlotAlignment: "appointments must start on a 30 minute boundary",
}

// ValidationError is returned when a proposal breaks a booking rule.
type ValidationError struct {
	Kind Kind
}

func (e *ValidationError) Error() string {
	if msg, ok := messages[e.Kind]; ok {
		return msg
	}
	return string(e.Kind)
}

func NewValidationError(kind Kind) *ValidationError {
	return &ValidationError{Kind: kind}
}

// StoreError wraps a failure reading schedules or appointments.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// IsKind reports whether err is a ValidationError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ve *ValidationError
	return errors.As(err, &ve) && ve.Kind == kind
}

func IsStoreError(err error) bool {
	var se *StoreError
	return errors.As(err, &se)
}
