package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/appointments-api/internal/model"
)

type mockScheduleStore struct {
	windows []model.Schedule
	err     error
}

func (m *mockScheduleStore) GetWindows(ctx context.Context, doctorID int64, date model.Date) ([]model.Schedule, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Schedule
	for _, w := range m.windows {
		if w.DoctorID == doctorID && w.Date == date {
			out = append(out, w)
		}
	}
	return out, nil
}

type mockAppointmentStore struct {
	appointments []model.Appointment
	err          error
	lastExclude  *int64
}

func (m *mockAppointmentStore) GetActiveAppointments(ctx context.Context, doctorID int64, date model.Date, excludeID *int64) ([]model.Appointment, error) {
	m.lastExclude = excludeID
	if m.err != nil {
		return nil, m.err
	}
	var out []model.Appointment
	for _, a := range m.appointments {
		if a.DoctorID != doctorID || a.Date != date || !a.Status.IsActive() {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (m *mockAppointmentStore) GetBookedTimes(ctx context.Context, doctorID int64, date model.Date) (map[model.Clock]struct{}, error) {
	active, err := m.GetActiveAppointments(ctx, doctorID, date, nil)
	if err != nil {
		return nil, err
	}
	return BookedTimes(active), nil
}

func TestEngine_ListAvailableSlots(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2030, 1, 10, 8, 0, 0, 0, time.UTC)

	t.Run("future date no bookings", func(t *testing.T) {
		engine := NewEngine(
			&mockScheduleStore{windows: []model.Schedule{window(1, testDate, "09:00", "11:00")}},
			&mockAppointmentStore{},
			WithLocation(time.UTC),
		)
		slots, err := engine.ListAvailableSlots(ctx, 1, testDate, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, starts(slots))
	})

	t.Run("booked slot removed", func(t *testing.T) {
		engine := NewEngine(
			&mockScheduleStore{windows: []model.Schedule{window(1, testDate, "09:00", "10:00")}},
			&mockAppointmentStore{appointments: []model.Appointment{
				{ID: 1, DoctorID: 1, Date: testDate, Time: model.MustParseClock("09:30"), Status: model.AppointmentStatusPending},
			}},
			WithLocation(time.UTC),
		)
		slots, err := engine.ListAvailableSlots(ctx, 1, testDate, now)
		require.NoError(t, err)
		assert.Equal(t, []string{"09:00"}, starts(slots))
	})

	t.Run("no windows is empty not error", func(t *testing.T) {
		engine := NewEngine(&mockScheduleStore{}, &mockAppointmentStore{}, WithLocation(time.UTC))
		slots, err := engine.ListAvailableSlots(ctx, 1, testDate, now)
		require.NoError(t, err)
		assert.NotNil(t, slots)
		assert.Empty(t, slots)
	})

	t.Run("store failure", func(t *testing.T) {
		engine := NewEngine(&mockScheduleStore{err: errors.New("connection refused")}, &mockAppointmentStore{})
		_, err := engine.ListAvailableSlots(ctx, 1, testDate, now)
		require.Error(t, err)
		assert.True(t, IsStoreError(err))
	})

	t.Run("every listed slot can be booked", func(t *testing.T) {
		engine := NewEngine(
			&mockScheduleStore{windows: []model.Schedule{
				window(1, testDate, "09:00", "10:00"),
				window(1, testDate, "13:30", "15:00"),
			}},
			&mockAppointmentStore{},
			WithLocation(time.UTC),
		)
		slots, err := engine.ListAvailableSlots(ctx, 1, testDate, now)
		require.NoError(t, err)
		require.NotEmpty(t, slots)

		for _, s := range slots {
			err := engine.ValidateAppointment(ctx, Proposal{DoctorID: 1, Date: testDate, Time: s.Start, CheckAlignment: true})
			assert.NoError(t, err, "listed slot %s rejected", s.Start)
		}
	})
}

func TestEngine_ValidateAppointment(t *testing.T) {
	ctx := context.Background()
	date := model.MustParseDate("2025-01-01")
	schedules := &mockScheduleStore{windows: []model.Schedule{window(1, date, "09:00", "17:00")}}
	appointments := &mockAppointmentStore{appointments: []model.Appointment{
		{ID: 3, DoctorID: 1, Date: date, Time: model.MustParseClock("11:00"), Status: model.AppointmentStatusPending},
	}}
	engine := NewEngine(schedules, appointments)

	err := engine.ValidateAppointment(ctx, Proposal{DoctorID: 1, Date: date, Time: model.MustParseClock("08:00"), CheckAlignment: true})
	assert.True(t, IsKind(err, KindOutsideWorkingHours))

	err = engine.ValidateAppointment(ctx, Proposal{DoctorID: 1, Date: date, Time: model.MustParseClock("11:00"), CheckAlignment: true})
	assert.True(t, IsKind(err, KindSlotAlreadyBooked))

	exclude := int64(3)
	err = engine.ValidateAppointment(ctx, Proposal{DoctorID: 1, Date: date, Time: model.MustParseClock("11:00"), ExcludeAppointmentID: &exclude})
	assert.NoError(t, err)
	require.NotNil(t, appointments.lastExclude)
	assert.Equal(t, int64(3), *appointments.lastExclude)

	err = engine.ValidateAppointment(ctx, Proposal{DoctorID: 1, Date: date, Time: model.MustParseClock("09:15"), CheckAlignment: true})
	assert.True(t, IsKind(err, KindInvalidSlotAlignment))

	err = engine.ValidateAppointment(ctx, Proposal{DoctorID: 2, Date: date, Time: model.MustParseClock("10:00"), CheckAlignment: true})
	assert.True(t, IsKind(err, KindNoScheduleConfigured))

	failing := NewEngine(schedules, &mockAppointmentStore{err: errors.New("timeout")})
	err = failing.ValidateAppointment(ctx, Proposal{DoctorID: 1, Date: date, Time: model.MustParseClock("10:00")})
	assert.True(t, IsStoreError(err))
}
