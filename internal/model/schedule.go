package model

// Schedule is a doctor's working window for one date.
type Schedule struct {
	ID        int64 `json:"id" db:"id"`
	DoctorID  int64 `json:"doctor_id" db:"doctor_id"`
	Date      Date  `json:"date" db:"date"`
	StartTime Clock `json:"start_time" db:"start_time"`
	EndTime   Clock `json:"end_time" db:"end_time"`
}

// Minutes returns the window length.
func (s Schedule) Minutes() int { return int(s.EndTime - s.StartTime) }

// Contains reports whether t falls within [StartTime, EndTime).
func (s Schedule) Contains(t Clock) bool {
	return t >= s.StartTime && t < s.EndTime
}

// Overlaps reports whether the two windows share any minute.
func (s Schedule) Overlaps(o Schedule) bool {
	return s.StartTime < o.EndTime && o.StartTime < s.EndTime
}

type CreateScheduleRequest struct {
	DoctorID  int64  `json:"doctor_id" binding:"required,gt=0"`
	Date      string `json:"date" binding:"required,date"`
	StartTime string `json:"start_time" binding:"required,clock"`
	EndTime   string `json:"end_time" binding:"required,clock"`
}

type UpdateScheduleRequest struct {
	Date      *string `json:"date" binding:"omitempty,date"`
	StartTime *string `json:"start_time" binding:"omitempty,clock"`
	EndTime   *string `json:"end_time" binding:"omitempty,clock"`
}

type SchedulePatch struct {
	Date      *Date
	StartTime *Clock
	EndTime   *Clock
}

func (p SchedulePatch) IsEmpty() bool {
	return p.Date == nil && p.StartTime == nil && p.EndTime == nil
}

// Apply returns a copy of s with the patch applied.
func (p SchedulePatch) Apply(s Schedule) Schedule {
	if p.Date != nil {
		s.Date = *p.Date
	}
	if p.StartTime != nil {
		s.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		s.EndTime = *p.EndTime
	}
	return s
}

// TimeSlot is a derived bookable period; it is never persisted.
type TimeSlot struct {
	Start Clock `json:"start"`
	End   Clock `json:"end"`
}
