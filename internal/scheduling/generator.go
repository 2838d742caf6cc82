package scheduling

import "github.com/jwalitptl/appointments-api/internal/model"

// DefaultSlotMinutes is the fixed appointment length.
const DefaultSlotMinutes = 30

// GenerateSlots splits every window into consecutive slots of slotMinutes.
// A slot is emitted only if it ends at or before the window end, so a
// trailing remainder is dropped. Windows are processed in the given order;
// output is neither sorted nor deduplicated.
func GenerateSlots(windows []model.Schedule, slotMinutes int) []model.TimeSlot {
	if slotMinutes <= 0 {
		slotMinutes = DefaultSlotMinutes
	}

	slots := make([]model.TimeSlot, 0)
	for _, w := range windows {
		for start := w.StartTime; start.Add(slotMinutes) <= w.EndTime; start = start.Add(slotMinutes) {
			slots = append(slots, model.TimeSlot{Start: start, End: start.Add(slotMinutes)})
		}
	}
	return slots
}
