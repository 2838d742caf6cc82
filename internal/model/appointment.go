package model

import "time"

type AppointmentStatus string

const (
	AppointmentStatusPending   AppointmentStatus = "pending"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
	AppointmentStatusCompleted AppointmentStatus = "completed"
)

// IsActive reports whether an appointment in this status occupies its slot.
func (s AppointmentStatus) IsActive() bool {
	return s == AppointmentStatusPending || s == AppointmentStatusConfirmed
}

func (s AppointmentStatus) Valid() bool {
	switch s {
	case AppointmentStatusPending, AppointmentStatusConfirmed,
		AppointmentStatusCancelled, AppointmentStatusCompleted:
		return true
	}
	return false
}

// BookingTypeInPerson is the only accepted booking type.
const BookingTypeInPerson = "in_person"

type Appointment struct {
	ID          int64             `db:"id" json:"id"`
	PatientID   int64             `db:"patient_id" json:"patient_id"`
	DoctorID    int64             `db:"doctor_id" json:"doctor_id"`
	Date        Date              `db:"date" json:"date"`
	Time        Clock             `db:"time" json:"time"`
	Service     string            `db:"service" json:"service"`
	BookingType string            `db:"booking_type" json:"booking_type"`
	Status      AppointmentStatus `db:"status" json:"status"`
	CreatedAt   time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at" json:"updated_at"`
}

// AppointmentDetail is an appointment joined with patient and doctor names.
type AppointmentDetail struct {
	Appointment
	PatientFirstName string `db:"patient_first_name" json:"patient_first_name"`
	PatientLastName  string `db:"patient_last_name" json:"patient_last_name"`
	DoctorFirstName  string `db:"doctor_first_name" json:"doctor_first_name"`
	DoctorLastName   string `db:"doctor_last_name" json:"doctor_last_name"`
	Specialty        string `db:"specialty" json:"specialty"`
}

type CreateAppointmentRequest struct {
	PatientID   *int64  `json:"patient_id" binding:"omitempty,gt=0"`
	DoctorID    int64   `json:"doctor_id" binding:"required,gt=0"`
	Date        string  `json:"date" binding:"required,date"`
	Time        string  `json:"time" binding:"required,clock"`
	Service     string  `json:"service" binding:"required"`
	BookingType string  `json:"booking_type"`
	Status      *string `json:"status" binding:"omitempty,oneof=pending confirmed cancelled completed"`
}

type UpdateAppointmentRequest struct {
	PatientID   *int64  `json:"patient_id" binding:"omitempty,gt=0"`
	DoctorID    *int64  `json:"doctor_id" binding:"omitempty,gt=0"`
	Date        *string `json:"date" binding:"omitempty,date"`
	Time        *string `json:"time" binding:"omitempty,clock"`
	Service     *string `json:"service"`
	BookingType *string `json:"booking_type"`
	Status      *string `json:"status" binding:"omitempty,oneof=pending confirmed cancelled completed"`
}

// AppointmentPatch enumerates the appointment columns an update touches.
type AppointmentPatch struct {
	PatientID   *int64
	DoctorID    *int64
	Date        *Date
	Time        *Clock
	Service     *string
	BookingType *string
	Status      *AppointmentStatus
}

func (p AppointmentPatch) IsEmpty() bool {
	return p.PatientID == nil && p.DoctorID == nil && p.Date == nil && p.Time == nil &&
		p.Service == nil && p.BookingType == nil && p.Status == nil
}

// Apply returns a copy of a with the patch applied.
func (p AppointmentPatch) Apply(a Appointment) Appointment {
	if p.PatientID != nil {
		a.PatientID = *p.PatientID
	}
	if p.DoctorID != nil {
		a.DoctorID = *p.DoctorID
	}
	if p.Date != nil {
		a.Date = *p.Date
	}
	if p.Time != nil {
		a.Time = *p.Time
	}
	if p.Service != nil {
		a.Service = *p.Service
	}
	if p.BookingType != nil {
		a.BookingType = *p.BookingType
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	return a
}

// AvailableSlots is the response of the available-slots endpoint.
type AvailableSlots struct {
	DoctorID int64      `json:"doctor_id"`
	Date     Date       `json:"date"`
	Times    []string   `json:"available_times"`
	Slots    []TimeSlot `json:"slots"`
}
