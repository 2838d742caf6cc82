package scheduling

import (
	"time"

	"github.com/jwalitptl/appointments-api/internal/model"
)

// FilterAvailable drops slots whose start is booked and, when date is today
// in loc, slots that have already started. Relative order is preserved.
func FilterAvailable(slots []model.TimeSlot, booked map[model.Clock]struct{}, date model.Date, now time.Time, loc *time.Location) []model.TimeSlot {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	today := model.DateOf(now) == date

	available := make([]model.TimeSlot, 0, len(slots))
	for _, s := range slots {
		if _, ok := booked[s.Start]; ok {
			continue
		}
		if today && !date.At(s.Start, loc).After(now) {
			continue
		}
		available = append(available, s)
	}
	return available
}

// BookedTimes builds the booked set from active appointments.
func BookedTimes(appointments []model.Appointment) map[model.Clock]struct{} {
	booked := make(map[model.Clock]struct{}, len(appointments))
	for _, a := range appointments {
		if a.Status.IsActive() {
			booked[a.Time] = struct{}{}
		}
	}
	return booked
}
