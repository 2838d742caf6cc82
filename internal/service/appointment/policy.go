package appointment

import "github.com/jwalitptl/appointments-api/internal/model"

// CanManageAppointment reports whether actor may read, change or delete a.
// Administrators manage every appointment; everyone else only their own.
func CanManageAppointment(actor model.Actor, a model.Appointment) bool {
	return actor.IsAdmin() || a.PatientID == actor.UserID
}

// CanBook reports whether actor's role may create appointments at all.
func CanBook(actor model.Actor) bool {
	return actor.Role == model.RoleAdmin || actor.Role == model.RolePatient
}
