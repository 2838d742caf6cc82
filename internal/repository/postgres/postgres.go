package postgres

import (
	"github.com/jwalitptl/appointments-api/internal/repository"
)

type userRepository struct {
	BaseRepository
}

type doctorRepository struct {
	BaseRepository
}

type scheduleRepository struct {
	BaseRepository
}

type appointmentRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func NewDoctorRepository(base BaseRepository) repository.DoctorRepository {
	return &doctorRepository{base}
}

func NewScheduleRepository(base BaseRepository) repository.ScheduleRepository {
	return &scheduleRepository{base}
}

func NewAppointmentRepository(base BaseRepository) repository.AppointmentRepository {
	return &appointmentRepository{base}
}

func NewOutboxRepository(base BaseRepository) repository.OutboxRepository {
	return &outboxRepository{base}
}
