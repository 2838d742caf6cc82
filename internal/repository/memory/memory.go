// Package memory provides in-memory repositories with the same constraint
// behaviour as the postgres adapters. It backs unit tests.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository"
)

// Store holds every table. Repositories created from one Store share data.
type Store struct {
	mu           sync.RWMutex
	nextID       int64
	users        map[int64]model.User
	doctors      map[int64]model.Doctor
	schedules    map[int64]model.Schedule
	appointments map[int64]model.Appointment
	outbox       map[uuid.UUID]model.OutboxEvent

	// Err, when set, is returned by every call.
	Err error
}

func NewStore() *Store {
	return &Store{
		users:        map[int64]model.User{},
		doctors:      map[int64]model.Doctor{},
		schedules:    map[int64]model.Schedule{},
		appointments: map[int64]model.Appointment{},
		outbox:       map[uuid.UUID]model.OutboxEvent{},
	}
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) Users() repository.UserRepository               { return &userRepo{s} }
func (s *Store) Doctors() repository.DoctorRepository           { return &doctorRepo{s} }
func (s *Store) Schedules() repository.ScheduleRepository       { return &scheduleRepo{s} }
func (s *Store) Appointments() repository.AppointmentRepository { return &appointmentRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository            { return &outboxRepo{s} }

// OutboxEvents returns every stored event, oldest first.
func (s *Store) OutboxEvents() []model.OutboxEvent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.OutboxEvent, 0, len(s.outbox))
	for _, e := range s.outbox {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// WithinTx runs fn and restores appointments and outbox events when it fails.
// Writes from other goroutines made while fn runs are rolled back too.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	appointments := maps.Clone(s.appointments)
	outbox := maps.Clone(s.outbox)
	s.mu.Unlock()

	if err := fn(ctx); err != nil {
		s.mu.Lock()
		s.appointments = appointments
		s.outbox = outbox
		s.mu.Unlock()
		return err
	}
	return nil
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	for _, u := range r.s.users {
		if u.Username == user.Username || u.Email == user.Email {
			return repository.ErrDuplicate
		}
	}
	if user.Role == "" {
		user.Role = model.RolePatient
	}
	user.ID = r.s.id()
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	r.s.users[user.ID] = *user
	return nil
}

func (r *userRepo) Get(ctx context.Context, id int64) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r *userRepo) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	for _, u := range r.s.users {
		if u.Username == username {
			u := u
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *userRepo) List(ctx context.Context) ([]*model.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	out := make([]*model.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		u := u
		out = append(out, &u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *userRepo) Update(ctx context.Context, id int64, p model.UserPatch) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for otherID, other := range r.s.users {
		if otherID == id {
			continue
		}
		if (p.Username != nil && other.Username == *p.Username) || (p.Email != nil && other.Email == *p.Email) {
			return nil, repository.ErrDuplicate
		}
	}

	setString(&u.Username, p.Username)
	setString(&u.PasswordHash, p.PasswordHash)
	setString(&u.FirstName, p.FirstName)
	setString(&u.PaternalSurname, p.PaternalSurname)
	setString(&u.Email, p.Email)
	setString(&u.Phone, p.Phone)
	setString(&u.Role, p.Role)
	if p.MaternalSurname != nil {
		u.MaternalSurname = p.MaternalSurname
	}
	if p.Address != nil {
		u.Address = p.Address
	}
	if p.Gender != nil {
		u.Gender = p.Gender
	}
	if p.BirthDate != nil {
		u.BirthDate = p.BirthDate
	}
	u.UpdatedAt = time.Now()
	r.s.users[id] = u
	return &u, nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

type doctorRepo struct{ s *Store }

func (r *doctorRepo) Create(ctx context.Context, doctor *model.Doctor) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	doctor.ID = r.s.id()
	r.s.doctors[doctor.ID] = *doctor
	return nil
}

func (r *doctorRepo) Get(ctx context.Context, id int64) (*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r *doctorRepo) List(ctx context.Context) ([]*model.Doctor, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	out := make([]*model.Doctor, 0, len(r.s.doctors))
	for _, d := range r.s.doctors {
		d := d
		out = append(out, &d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *doctorRepo) Update(ctx context.Context, id int64, p model.DoctorPatch) (*model.Doctor, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	d, ok := r.s.doctors[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	setString(&d.FirstName, p.FirstName)
	setString(&d.LastName, p.LastName)
	setString(&d.Specialty, p.Specialty)
	r.s.doctors[id] = d
	return &d, nil
}

func (r *doctorRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.doctors[id]; !ok {
		return repository.ErrNotFound
	}
	for _, a := range r.s.appointments {
		if a.DoctorID == id {
			return repository.ErrInUse
		}
	}
	for sid, sch := range r.s.schedules {
		if sch.DoctorID == id {
			delete(r.s.schedules, sid)
		}
	}
	delete(r.s.doctors, id)
	return nil
}

func (r *doctorRepo) HasAppointments(ctx context.Context, id int64) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.Err != nil {
		return false, r.s.Err
	}
	for _, a := range r.s.appointments {
		if a.DoctorID == id {
			return true, nil
		}
	}
	return false, nil
}

type scheduleRepo struct{ s *Store }

func (r *scheduleRepo) Create(ctx context.Context, schedule *model.Schedule) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.doctors[schedule.DoctorID]; !ok {
		return repository.ErrInUse
	}
	schedule.ID = r.s.id()
	r.s.schedules[schedule.ID] = *schedule
	return nil
}

func (r *scheduleRepo) Get(ctx context.Context, id int64) (*model.Schedule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	sch, ok := r.s.schedules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &sch, nil
}

func (r *scheduleRepo) ListByDoctor(ctx context.Context, doctorID int64, date *model.Date) ([]*model.Schedule, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	out := []*model.Schedule{}
	for _, sch := range r.s.schedules {
		if sch.DoctorID != doctorID || (date != nil && sch.Date != *date) {
			continue
		}
		sch := sch
		out = append(out, &sch)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.String() < out[j].Date.String()
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

func (r *scheduleRepo) Update(ctx context.Context, id int64, p model.SchedulePatch) (*model.Schedule, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	sch, ok := r.s.schedules[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	sch = p.Apply(sch)
	r.s.schedules[id] = sch
	return &sch, nil
}

func (r *scheduleRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.schedules[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.schedules, id)
	return nil
}

func (r *scheduleRepo) GetWindows(ctx context.Context, doctorID int64, date model.Date) ([]model.Schedule, error) {
	list, err := r.ListByDoctor(ctx, doctorID, &date)
	if err != nil {
		return nil, err
	}
	out := make([]model.Schedule, 0, len(list))
	for _, sch := range list {
		out = append(out, *sch)
	}
	return out, nil
}

type appointmentRepo struct{ s *Store }

// slotTaken must be called with the lock held.
func (r *appointmentRepo) slotTaken(a model.Appointment) bool {
	if !a.Status.IsActive() {
		return false
	}
	for id, other := range r.s.appointments {
		if id != a.ID && other.Status.IsActive() && other.DoctorID == a.DoctorID &&
			other.Date == a.Date && other.Time == a.Time {
			return true
		}
	}
	return false
}

func (r *appointmentRepo) Create(ctx context.Context, a *model.Appointment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if a.Status == "" {
		a.Status = model.AppointmentStatusPending
	}
	if a.BookingType == "" {
		a.BookingType = model.BookingTypeInPerson
	}
	if r.slotTaken(*a) {
		return repository.ErrSlotTaken
	}
	a.ID = r.s.id()
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	r.s.appointments[a.ID] = *a
	return nil
}

// detail must be called with the lock held.
func (r *appointmentRepo) detail(a model.Appointment) *model.AppointmentDetail {
	d := &model.AppointmentDetail{Appointment: a}
	if u, ok := r.s.users[a.PatientID]; ok {
		d.PatientFirstName = u.FirstName
		d.PatientLastName = u.PaternalSurname
	}
	if doc, ok := r.s.doctors[a.DoctorID]; ok {
		d.DoctorFirstName = doc.FirstName
		d.DoctorLastName = doc.LastName
		d.Specialty = doc.Specialty
	}
	return d
}

func (r *appointmentRepo) Get(ctx context.Context, id int64) (*model.AppointmentDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.detail(a), nil
}

func (r *appointmentRepo) List(ctx context.Context, f repository.AppointmentFilter) ([]*model.AppointmentDetail, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	out := []*model.AppointmentDetail{}
	for _, a := range r.s.appointments {
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.DoctorID != nil && a.DoctorID != *f.DoctorID {
			continue
		}
		if f.Date != nil && a.Date != *f.Date {
			continue
		}
		out = append(out, r.detail(a))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.String() < out[j].Date.String()
		}
		if out[i].Time != out[j].Time {
			return out[i].Time < out[j].Time
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *appointmentRepo) Update(ctx context.Context, id int64, p model.AppointmentPatch) (*model.Appointment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	a, ok := r.s.appointments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a = p.Apply(a)
	if r.slotTaken(a) {
		return nil, repository.ErrSlotTaken
	}
	a.UpdatedAt = time.Now()
	r.s.appointments[id] = a
	return &a, nil
}

func (r *appointmentRepo) Delete(ctx context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if _, ok := r.s.appointments[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.appointments, id)
	return nil
}

func (r *appointmentRepo) GetActiveAppointments(ctx context.Context, doctorID int64, date model.Date, excludeID *int64) ([]model.Appointment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if r.s.Err != nil {
		return nil, r.s.Err
	}
	out := []model.Appointment{}
	for _, a := range r.s.appointments {
		if a.DoctorID != doctorID || a.Date != date || !a.Status.IsActive() {
			continue
		}
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Time < out[j].Time })
	return out, nil
}

func (r *appointmentRepo) GetBookedTimes(ctx context.Context, doctorID int64, date model.Date) (map[model.Clock]struct{}, error) {
	active, err := r.GetActiveAppointments(ctx, doctorID, date, nil)
	if err != nil {
		return nil, err
	}
	booked := make(map[model.Clock]struct{}, len(active))
	for _, a := range active {
		booked[a.Time] = struct{}{}
	}
	return booked, nil
}

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Create(ctx context.Context, event *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.Err != nil {
		return r.s.Err
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	event.Status = model.OutboxStatusPending
	r.s.outbox[event.ID] = *event
	return nil
}

func (r *outboxRepo) GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error) {
	events := r.s.OutboxEvents()
	out := []*model.OutboxEvent{}
	for _, e := range events {
		if e.Status != model.OutboxStatusPending || len(out) >= limit {
			continue
		}
		e := e
		out = append(out, &e)
	}
	return out, nil
}

func (r *outboxRepo) CountPending(ctx context.Context) (int, error) {
	pending, err := r.GetPendingEvents(ctx, int(^uint(0)>>1))
	return len(pending), err
}

func (r *outboxRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errorMessage *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	e, ok := r.s.outbox[id]
	if !ok {
		return repository.ErrNotFound
	}
	e.Status = status
	e.ErrorMessage = errorMessage
	if status == model.OutboxStatusFailed {
		e.RetryCount++
	}
	if status == model.OutboxStatusProcessed {
		now := time.Now()
		e.ProcessedAt = &now
	}
	r.s.outbox[id] = e
	return nil
}

func (r *outboxRepo) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			delete(r.s.outbox, id)
			n++
		}
	}
	return n, nil
}
