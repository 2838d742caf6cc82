package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository/memory"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	sent []sentMail
}

func (m *fakeMailer) SendCustom(ctx context.Context, to, subject, content string) error {
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: content})
	return nil
}

func TestAppointmentNotifier_Notify(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	patient := &model.User{Username: "ana", FirstName: "Ana", PaternalSurname: "Ruiz", Email: "ana@example.com", Role: model.RolePatient}
	require.NoError(t, store.Users().Create(ctx, patient))
	doctor := &model.Doctor{FirstName: "Gregory", LastName: "House", Specialty: "Diagnostics"}
	require.NoError(t, store.Doctors().Create(ctx, doctor))

	mailer := &fakeMailer{}
	n := NewAppointmentNotifier(store.Users(), store.Doctors(), mailer, zerolog.Nop())

	evt := model.NewAppointmentEvent(model.Appointment{
		ID:        7,
		PatientID: patient.ID,
		DoctorID:  doctor.ID,
		Date:      model.MustParseDate("2030-03-15"),
		Time:      model.MustParseClock("09:30"),
		Service:   "Checkup",
		Status:    model.AppointmentStatusPending,
	}, time.Now())
	payload, err := json.Marshal(evt)
	require.NoError(t, err)

	require.NoError(t, n.Notify(ctx, model.EventAppointmentCreated, payload))
	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "ana@example.com", mailer.sent[0].to)
	assert.Equal(t, "Your appointment has been booked", mailer.sent[0].subject)
	assert.Contains(t, mailer.sent[0].body, "Dr. Gregory House on 2030-03-15 at 09:30")

	assert.Error(t, n.Notify(ctx, model.EventAppointmentCreated, json.RawMessage(`not json`)))

	evt.PatientID = 999
	payload, err = json.Marshal(evt)
	require.NoError(t, err)
	assert.Error(t, n.Notify(ctx, model.EventAppointmentDeleted, payload))
}
