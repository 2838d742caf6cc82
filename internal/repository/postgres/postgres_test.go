package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository"
)

var appointmentRowColumns = []string{
	"id", "patient_id", "doctor_id", "date", "time", "service", "booking_type", "status", "created_at", "updated_at",
}

func newMockBase(t *testing.T) (BaseRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewBaseRepository(sqlx.NewDb(db, "postgres")), mock
}

func TestAppointmentRepository_Create(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)
	now := time.Now()

	appointment := &model.Appointment{
		PatientID: 4,
		DoctorID:  1,
		Date:      model.MustParseDate("2030-01-15"),
		Time:      model.MustParseClock("09:30"),
		Service:   "checkup",
	}

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WithArgs(int64(4), int64(1), "2030-01-15", "09:30:00", "checkup", "in_person", "pending").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(12), now, now))

	require.NoError(t, repo.Create(context.Background(), appointment))
	assert.Equal(t, int64(12), appointment.ID)
	assert.Equal(t, model.AppointmentStatusPending, appointment.Status)
	assert.Equal(t, model.BookingTypeInPerson, appointment.BookingType)
}

func TestAppointmentRepository_CreateSlotTaken(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "appointments_active_slot_idx"})

	err := repo.Create(context.Background(), &model.Appointment{
		PatientID: 4, DoctorID: 1, Date: model.MustParseDate("2030-01-15"), Time: model.MustParseClock("09:30"),
	})
	assert.ErrorIs(t, err, repository.ErrSlotTaken)
}

func TestAppointmentRepository_GetNotFound(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("FROM appointments a")).
		WithArgs(int64(99)).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns))

	_, err := repo.Get(context.Background(), 99)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestAppointmentRepository_List(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)
	now := time.Now()
	patientID := int64(4)

	columns := append(append([]string{}, appointmentRowColumns...),
		"patient_first_name", "patient_last_name", "doctor_first_name", "doctor_last_name", "specialty")

	mock.ExpectQuery(regexp.QuoteMeta("WHERE 1=1 AND a.patient_id = $1 ORDER BY a.date, a.time")).
		WithArgs(int64(4)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			int64(1), int64(4), int64(2), "2030-01-15", "10:00:00", "checkup", "in_person", "confirmed", now, now,
			"Ana", "Lopez", "Gregory", "House", "Diagnostics",
		))

	list, err := repo.List(context.Background(), repository.AppointmentFilter{PatientID: &patientID})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "10:00", list[0].Time.String())
	assert.Equal(t, model.AppointmentStatusConfirmed, list[0].Status)
	assert.Equal(t, "House", list[0].DoctorLastName)
}

func TestAppointmentRepository_Update(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)
	now := time.Now()

	newTime := model.MustParseClock("11:00")
	status := model.AppointmentStatusConfirmed

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE appointments SET time = $1, status = $2, updated_at = NOW() WHERE id = $3 RETURNING")).
		WithArgs("11:00:00", "confirmed", int64(5)).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns).AddRow(
			int64(5), int64(4), int64(1), "2030-01-15", "11:00:00", "checkup", "in_person", "confirmed", now, now,
		))

	updated, err := repo.Update(context.Background(), 5, model.AppointmentPatch{Time: &newTime, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, newTime, updated.Time)
	assert.Equal(t, status, updated.Status)
}

func TestAppointmentRepository_Delete(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments WHERE id = $1")).
		WithArgs(int64(5)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM appointments WHERE id = $1")).
		WithArgs(int64(6)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.Delete(context.Background(), 5))
	assert.ErrorIs(t, repo.Delete(context.Background(), 6), repository.ErrNotFound)
}

func TestAppointmentRepository_GetActiveAppointments(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)
	now := time.Now()
	exclude := int64(3)

	mock.ExpectQuery(regexp.QuoteMeta("status IN ('pending', 'confirmed')")).
		WithArgs(int64(1), "2030-01-15", int64(3)).
		WillReturnRows(sqlmock.NewRows(appointmentRowColumns).AddRow(
			int64(7), int64(4), int64(1), "2030-01-15", "09:00:00", "checkup", "in_person", "pending", now, now,
		))

	active, err := repo.GetActiveAppointments(context.Background(), 1, model.MustParseDate("2030-01-15"), &exclude)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, int64(7), active[0].ID)
}

func TestAppointmentRepository_GetBookedTimes(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT time")).
		WithArgs(int64(1), "2030-01-15").
		WillReturnRows(sqlmock.NewRows([]string{"time"}).AddRow("09:00:00").AddRow("10:30:00"))

	booked, err := repo.GetBookedTimes(context.Background(), 1, model.MustParseDate("2030-01-15"))
	require.NoError(t, err)
	assert.Len(t, booked, 2)
	assert.Contains(t, booked, model.MustParseClock("10:30"))
}

func TestAppointmentRepository_StoreFailure(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewAppointmentRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT time")).WillReturnError(errors.New("connection reset"))

	_, err := repo.GetBookedTimes(context.Background(), 1, model.MustParseDate("2030-01-15"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to get booked times")
}

func TestScheduleRepository(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewScheduleRepository(base)
	date := model.MustParseDate("2030-01-15")

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO schedules")).
		WithArgs(int64(1), "2030-01-15", "09:00:00", "13:00:00").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(3)))

	schedule := &model.Schedule{DoctorID: 1, Date: date, StartTime: model.MustParseClock("09:00"), EndTime: model.MustParseClock("13:00")}
	require.NoError(t, repo.Create(context.Background(), schedule))
	assert.Equal(t, int64(3), schedule.ID)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE doctor_id = $1 AND date = $2")).
		WithArgs(int64(1), "2030-01-15").
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "date", "start_time", "end_time"}).
			AddRow(int64(3), int64(1), "2030-01-15", "09:00:00", "13:00:00").
			AddRow(int64(4), int64(1), "2030-01-15", "15:00:00", "18:00:00"))

	windows, err := repo.GetWindows(context.Background(), 1, date)
	require.NoError(t, err)
	require.Len(t, windows, 2)
	assert.Equal(t, "15:00", windows[1].StartTime.String())

	mock.ExpectQuery(regexp.QuoteMeta("WHERE doctor_id = $1 ORDER BY date, start_time")).
		WithArgs(int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "date", "start_time", "end_time"}))

	list, err := repo.ListByDoctor(context.Background(), 2, nil)
	require.NoError(t, err)
	assert.Empty(t, list)

	end := model.MustParseClock("12:00")
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE schedules SET end_time = $1 WHERE id = $2 RETURNING")).
		WithArgs("12:00:00", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "doctor_id", "date", "start_time", "end_time"}).
			AddRow(int64(3), int64(1), "2030-01-15", "09:00:00", "12:00:00"))

	updated, err := repo.Update(context.Background(), 3, model.SchedulePatch{EndTime: &end})
	require.NoError(t, err)
	assert.Equal(t, end, updated.EndTime)
}

func TestDoctorRepository(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewDoctorRepository(base)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO doctors")).
		WithArgs("Gregory", "House", "Diagnostics").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	doctor := &model.Doctor{FirstName: "Gregory", LastName: "House", Specialty: "Diagnostics"}
	require.NoError(t, repo.Create(context.Background(), doctor))
	assert.Equal(t, int64(1), doctor.ID)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	has, err := repo.HasAppointments(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, has)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM doctors")).
		WithArgs(int64(1)).
		WillReturnError(&pq.Error{Code: "23503"})

	assert.ErrorIs(t, repo.Delete(context.Background(), 1), repository.ErrInUse)
}

func TestUserRepository(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewUserRepository(base)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(&pq.Error{Code: "23505", Constraint: "users_username_key"})

	err := repo.Create(context.Background(), &model.User{Username: "ana", Email: "ana@example.com"})
	assert.ErrorIs(t, err, repository.ErrDuplicate)

	columns := []string{
		"id", "username", "password_hash", "first_name", "paternal_surname", "maternal_surname",
		"email", "phone", "address", "birth_date", "gender", "role", "created_at", "updated_at",
	}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE username = $1")).
		WithArgs("ana").
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			int64(4), "ana", "hash", "Ana", "Lopez", nil, "ana@example.com", "555", nil, "1990-04-01", nil, "patient", now, now,
		))

	user, err := repo.GetByUsername(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, int64(4), user.ID)
	require.NotNil(t, user.BirthDate)
	assert.Equal(t, "1990-04-01", user.BirthDate.String())
	assert.Nil(t, user.MaternalSurname)

	role := model.RoleAdmin
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2")).
		WithArgs("admin", int64(4)).
		WillReturnRows(sqlmock.NewRows(columns).AddRow(
			int64(4), "ana", "hash", "Ana", "Lopez", nil, "ana@example.com", "555", nil, nil, nil, "admin", now, now,
		))

	updated, err := repo.Update(context.Background(), 4, model.UserPatch{Role: &role})
	require.NoError(t, err)
	assert.True(t, updated.IsAdmin())
}

func TestOutboxRepository(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewOutboxRepository(base)

	event := &model.OutboxEvent{EventType: model.EventAppointmentCreated, Payload: []byte(`{"appointment_id":1}`)}
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_events")).
		WithArgs(sqlmock.AnyArg(), model.EventAppointmentCreated, sqlmock.AnyArg(), "PENDING", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), event))
	assert.NotEqual(t, uuid.Nil, event.ID)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE outbox_events")).
		WithArgs("FAILED", sqlmock.AnyArg(), 1, nil, event.ID.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	msg := "broker unavailable"
	require.NoError(t, repo.UpdateStatus(context.Background(), event.ID, model.OutboxStatusFailed, &msg))

	assert.Error(t, repo.Create(context.Background(), nil))
}

func TestOutboxRepository_ClaimPending(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewOutboxRepository(base)

	older := time.Date(2030, 1, 1, 9, 0, 0, 0, time.UTC)
	newer := older.Add(time.Minute)
	columns := []string{"id", "event_type", "payload", "status", "error_message", "retry_count", "created_at", "processed_at"}

	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE SKIP LOCKED")).
		WithArgs("PENDING", 10, 300).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(uuid.New().String(), model.EventAppointmentUpdated, []byte(`{}`), "PENDING", nil, 0, newer, nil).
			AddRow(uuid.New().String(), model.EventAppointmentCreated, []byte(`{}`), "PENDING", nil, 0, older, nil))

	events, err := repo.GetPendingEvents(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, model.EventAppointmentCreated, events[0].EventType)
	assert.Equal(t, model.EventAppointmentUpdated, events[1].EventType)
}

func TestBaseRepository_WithinTx(t *testing.T) {
	ctx := context.Background()
	appointment := func() *model.Appointment {
		return &model.Appointment{
			PatientID: 4,
			DoctorID:  1,
			Date:      model.MustParseDate("2030-01-15"),
			Time:      model.MustParseClock("09:30"),
		}
	}
	event := func() *model.OutboxEvent {
		return &model.OutboxEvent{EventType: model.EventAppointmentCreated, Payload: []byte(`{"appointment_id":12}`)}
	}

	t.Run("commits both writes", func(t *testing.T) {
		base, mock := newMockBase(t)
		appointments := NewAppointmentRepository(base)
		outbox := NewOutboxRepository(base)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(12), now, now))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_events")).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := base.WithinTx(ctx, func(ctx context.Context) error {
			if err := appointments.Create(ctx, appointment()); err != nil {
				return err
			}
			return outbox.Create(ctx, event())
		})
		require.NoError(t, err)
	})

	t.Run("rolls back when the event insert fails", func(t *testing.T) {
		base, mock := newMockBase(t)
		appointments := NewAppointmentRepository(base)
		outbox := NewOutboxRepository(base)
		now := time.Now()

		mock.ExpectBegin()
		mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO appointments")).
			WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at"}).AddRow(int64(12), now, now))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO outbox_events")).
			WillReturnError(errors.New("disk full"))
		mock.ExpectRollback()

		err := base.WithinTx(ctx, func(ctx context.Context) error {
			if err := appointments.Create(ctx, appointment()); err != nil {
				return err
			}
			return outbox.Create(ctx, event())
		})
		assert.ErrorContains(t, err, "disk full")
	})

	t.Run("nested calls join the outer transaction", func(t *testing.T) {
		base, mock := newMockBase(t)
		mock.ExpectBegin()
		mock.ExpectCommit()

		calls := 0
		err := base.WithinTx(ctx, func(ctx context.Context) error {
			return base.WithinTx(ctx, func(context.Context) error {
				calls++
				return nil
			})
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})
}
