package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/jwalitptl/appointments-api/internal/handler"
	appointmenthandler "github.com/jwalitptl/appointments-api/internal/handler/appointment"
	authhandler "github.com/jwalitptl/appointments-api/internal/handler/auth"
	doctorhandler "github.com/jwalitptl/appointments-api/internal/handler/doctor"
	schedulehandler "github.com/jwalitptl/appointments-api/internal/handler/schedule"
	userhandler "github.com/jwalitptl/appointments-api/internal/handler/user"
	"github.com/jwalitptl/appointments-api/internal/middleware"
	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/repository/memory"
	"github.com/jwalitptl/appointments-api/internal/scheduling"
	"github.com/jwalitptl/appointments-api/internal/service/appointment"
	authservice "github.com/jwalitptl/appointments-api/internal/service/auth"
	"github.com/jwalitptl/appointments-api/internal/service/doctor"
	"github.com/jwalitptl/appointments-api/internal/service/event"
	"github.com/jwalitptl/appointments-api/internal/service/schedule"
	"github.com/jwalitptl/appointments-api/internal/service/user"
	"github.com/jwalitptl/appointments-api/pkg/auth"
	"github.com/jwalitptl/appointments-api/pkg/metrics"
	"github.com/jwalitptl/appointments-api/pkg/security"
)

// Far enough ahead that the same-day filter never applies.
const bookingDate = "2099-06-01"

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testAPI struct {
	t       *testing.T
	engine  *gin.Engine
	store   *memory.Store
	metrics *metrics.Metrics
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, middleware.RegisterValidators())

	store := memory.NewStore()
	reg := prometheus.NewRegistry()
	m := metrics.New("test", reg)
	hasher := security.NewBcryptHasher(bcrypt.MinCost)
	jwtSvc := auth.NewJWTService("test-secret", time.Hour, "appointments-api")

	authSvc := authservice.NewService(store.Users(), hasher, jwtSvc, authservice.WithAdminSignup(true))
	doctorSvc := doctor.NewService(store.Doctors(), m)
	engine := scheduling.NewEngine(store.Schedules(), store.Appointments(), scheduling.WithLocation(time.UTC))
	appointmentSvc := appointment.NewService(store.Appointments(), store, store.Users(), doctorSvc, engine,
		event.NewEventService(store.Outbox()), m)

	r := NewRouter(middleware.NewAuthMiddleware(authSvc), Handlers{
		Health:      handler.NewHandler(pingFunc(func(context.Context) error { return nil }), reg),
		Auth:        authhandler.NewHandler(authSvc),
		User:        userhandler.NewHandler(user.NewService(store.Users(), hasher)),
		Doctor:      doctorhandler.NewHandler(doctorSvc),
		Schedule:    schedulehandler.NewHandler(schedule.NewService(store.Schedules(), doctorSvc)),
		Appointment: appointmenthandler.NewHandler(appointmentSvc),
	}, m, RouterConfig{
		CORSConfig: middleware.DefaultCORSConfig(),
	})

	return &testAPI{t: t, engine: r.Engine(), store: store, metrics: m}
}

func (a *testAPI) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	a.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func (a *testAPI) register(username, role string) (string, int64) {
	a.t.Helper()
	w, env := a.do(http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"username":         username,
		"password":         "secret-password",
		"first_name":       username,
		"paternal_surname": "Test",
		"email":            username + "@example.com",
		"phone":            "5550000",
		"role":             role,
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var tokens model.TokenResponse
	require.NoError(a.t, json.Unmarshal(env.Data, &tokens))
	return tokens.AccessToken, tokens.User.ID
}

func (a *testAPI) createDoctor(token string) int64 {
	a.t.Helper()
	w, env := a.do(http.MethodPost, "/api/v1/doctors", token, gin.H{
		"first_name": "Gregory",
		"last_name":  "House",
		"specialty":  "Diagnostics",
	})
	require.Equal(a.t, http.StatusCreated, w.Code, w.Body.String())

	var d model.Doctor
	require.NoError(a.t, json.Unmarshal(env.Data, &d))
	return d.ID
}

func (a *testAPI) createSchedule(token string, doctorID int64, start, end string) *httptest.ResponseRecorder {
	a.t.Helper()
	w, _ := a.do(http.MethodPost, "/api/v1/schedules", token, gin.H{
		"doctor_id":  doctorID,
		"date":       bookingDate,
		"start_time": start,
		"end_time":   end,
	})
	return w
}

func (a *testAPI) slots(token string, doctorID int64) []string {
	a.t.Helper()
	w, env := a.do(http.MethodGet, "/api/v1/doctors/"+itoa(doctorID)+"/available-slots?date="+bookingDate, token, nil)
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var slots model.AvailableSlots
	require.NoError(a.t, json.Unmarshal(env.Data, &slots))
	return slots.Times
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}

func TestHealthAndMetrics(t *testing.T) {
	api := newTestAPI(t)

	w, _ := api.do(http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(http.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "test_http_requests_total")
}

func TestAvailableSlotsFlow(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.register("admin", model.RoleAdmin)
	patientToken, _ := api.register("ana", model.RolePatient)
	doctorID := api.createDoctor(adminToken)

	// Unknown schedule: empty list rather than an error.
	assert.Empty(t, api.slots(patientToken, doctorID))

	require.Equal(t, http.StatusCreated, api.createSchedule(adminToken, doctorID, "09:00", "11:00").Code)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, api.slots(patientToken, doctorID))

	w, _ := api.do(http.MethodPost, "/api/v1/appointments", patientToken, gin.H{
		"doctor_id": doctorID,
		"date":      bookingDate,
		"time":      "09:30",
		"service":   "Checkup",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, []string{"09:00", "10:00", "10:30"}, api.slots(patientToken, doctorID))

	assert.Equal(t, float64(1), testutil.ToFloat64(api.metrics.AppointmentsCreated))
}

func TestCreateAppointmentRejections(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.register("admin", model.RoleAdmin)
	patientToken, _ := api.register("ana", model.RolePatient)
	doctorID := api.createDoctor(adminToken)

	book := func(at string) (*httptest.ResponseRecorder, envelope) {
		return api.do(http.MethodPost, "/api/v1/appointments", patientToken, gin.H{
			"doctor_id": doctorID,
			"date":      bookingDate,
			"time":      at,
			"service":   "Checkup",
		})
	}

	w, env := book("09:00")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "doctor has no schedule configured for this date", env.Message)

	require.Equal(t, http.StatusCreated, api.createSchedule(adminToken, doctorID, "09:00", "17:00").Code)

	w, env = book("08:00")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "requested time is outside the doctor's working hours", env.Message)

	w, env = book("09:15")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "appointments must start on a 30 minute boundary", env.Message)

	w, _ = book("10:00")
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = book("10:00")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "this time slot is already booked", env.Message)

	w, env = book("25:00")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "time must be a time in HH:MM format", env.Message)
}

func TestAppointmentOwnership(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.register("admin", model.RoleAdmin)
	anaToken, _ := api.register("ana", model.RolePatient)
	luisToken, _ := api.register("luis", model.RolePatient)
	doctorID := api.createDoctor(adminToken)
	require.Equal(t, http.StatusCreated, api.createSchedule(adminToken, doctorID, "09:00", "12:00").Code)

	w, env := api.do(http.MethodPost, "/api/v1/appointments", anaToken, gin.H{
		"doctor_id": doctorID,
		"date":      bookingDate,
		"time":      "09:00",
		"service":   "Checkup",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.AppointmentDetail
	require.NoError(t, json.Unmarshal(env.Data, &created))
	path := "/api/v1/appointments/" + itoa(created.ID)

	w, _ = api.do(http.MethodGet, path, luisToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(http.MethodPut, path, luisToken, gin.H{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(http.MethodDelete, path, luisToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Rescheduling off the half hour is accepted on update.
	w, env = api.do(http.MethodPut, path, anaToken, gin.H{"time": "10:15"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var updated model.AppointmentDetail
	require.NoError(t, json.Unmarshal(env.Data, &updated))
	assert.Equal(t, "10:15", updated.Time.String())

	w, env = api.do(http.MethodGet, "/api/v1/appointments", luisToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(env.Data))

	w, _ = api.do(http.MethodDelete, path, adminToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = api.do(http.MethodGet, path, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	api := newTestAPI(t)
	patientToken, _ := api.register("ana", model.RolePatient)

	w, _ := api.do(http.MethodPost, "/api/v1/doctors", "", gin.H{"first_name": "A", "last_name": "B", "specialty": "C"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.do(http.MethodPost, "/api/v1/doctors", patientToken, gin.H{"first_name": "A", "last_name": "B", "specialty": "C"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(http.MethodGet, "/api/v1/doctors", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, APIVersion, w.Header().Get(middleware.HeaderAPIVersion))

	w, _ = api.do(http.MethodGet, "/api/v1/users", patientToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = api.do(http.MethodGet, "/api/v1/users/me", patientToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestScheduleOverlapAndDoctorDelete(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.register("admin", model.RoleAdmin)
	patientToken, _ := api.register("ana", model.RolePatient)
	doctorID := api.createDoctor(adminToken)

	require.Equal(t, http.StatusCreated, api.createSchedule(adminToken, doctorID, "09:00", "12:00").Code)
	assert.Equal(t, http.StatusConflict, api.createSchedule(adminToken, doctorID, "11:00", "13:00").Code)
	assert.Equal(t, http.StatusBadRequest, api.createSchedule(adminToken, doctorID, "14:00", "13:00").Code)
	assert.Equal(t, http.StatusNotFound, api.createSchedule(adminToken, 9999, "09:00", "10:00").Code)

	w, _ := api.do(http.MethodPost, "/api/v1/appointments", patientToken, gin.H{
		"doctor_id": doctorID,
		"date":      bookingDate,
		"time":      "09:00",
		"service":   "Checkup",
	})
	require.Equal(t, http.StatusCreated, w.Code)

	w, _ = api.do(http.MethodDelete, "/api/v1/doctors/"+itoa(doctorID), adminToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestScheduleListingIsNotCached(t *testing.T) {
	api := newTestAPI(t)
	adminToken, _ := api.register("admin", model.RoleAdmin)
	doctorID := api.createDoctor(adminToken)
	require.Equal(t, http.StatusCreated, api.createSchedule(adminToken, doctorID, "09:00", "12:00").Code)

	w, _ := api.do(http.MethodGet, "/api/v1/doctors/"+itoa(doctorID)+"/schedules?date="+bookingDate, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w, _ = api.do(http.MethodGet, "/api/v1/doctors/"+itoa(doctorID), "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "public, max-age=60", w.Header().Get("Cache-Control"))
}

func TestLoginAndBadToken(t *testing.T) {
	api := newTestAPI(t)
	api.register("ana", model.RolePatient)

	w, env := api.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "ana", "password": "secret-password"})
	require.Equal(t, http.StatusOK, w.Code)
	var tokens model.TokenResponse
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	assert.NotEmpty(t, tokens.AccessToken)

	w, _ = api.do(http.MethodPost, "/api/v1/auth/login", "", gin.H{"username": "ana", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w, _ = api.do(http.MethodGet, "/api/v1/appointments", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
