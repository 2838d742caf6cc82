package scheduling

import "github.com/jwalitptl/appointments-api/internal/model"

// Proposal is a requested doctor/date/time combination.
type Proposal struct {
	DoctorID int64
	Date     model.Date
	Time     model.Clock
	// ExcludeAppointmentID is the appointment being updated, which must not
	// conflict with itself.
	ExcludeAppointmentID *int64
	// CheckAlignment enables the slot boundary rule. Only creation sets it.
	CheckAlignment bool
}

// Validate applies the booking rules in order and returns the first failure.
func Validate(p Proposal, windows []model.Schedule, active []model.Appointment) error {
	var inWindow, hasWindow bool
	for _, w := range windows {
		if w.DoctorID != p.DoctorID || w.Date != p.Date {
			continue
		}
		hasWindow = true
		if w.Contains(p.Time) {
			inWindow = true
			break
		}
	}
	if !hasWindow {
		return NewValidationError(KindNoScheduleConfigured)
	}
	if !inWindow {
		return NewValidationError(KindOutsideWorkingHours)
	}

	for _, a := range active {
		if !a.Status.IsActive() || a.DoctorID != p.DoctorID || a.Date != p.Date {
			continue
		}
		if p.ExcludeAppointmentID != nil && a.ID == *p.ExcludeAppointmentID {
			continue
		}
		if a.Time == p.Time {
			return NewValidationError(KindSlotAlreadyBooked)
		}
	}

	if p.CheckAlignment && p.Time.Minute()%DefaultSlotMinutes != 0 {
		return NewValidationError(KindInvalidSlotAlignment)
	}
	return nil
}

// Changed reports whether the patch moves the appointment to a different
// doctor, date or time. Only then does an update need validation.
func Changed(existing model.Appointment, patch model.AppointmentPatch) bool {
	if patch.DoctorID != nil && *patch.DoctorID != existing.DoctorID {
		return true
	}
	if patch.Date != nil && *patch.Date != existing.Date {
		return true
	}
	if patch.Time != nil && *patch.Time != existing.Time {
		return true
	}
	return false
}
