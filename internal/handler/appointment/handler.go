package appointment

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointments-api/internal/handler"
	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/service/appointment"
	apperrors "github.com/jwalitptl/appointments-api/pkg/errors"
	"github.com/jwalitptl/appointments-api/pkg/httputil"
)

type Handler struct {
	service appointment.AppointmentServicer
}

func NewHandler(service appointment.AppointmentServicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the appointment and availability routes on a group
// that already requires authentication.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/doctors/:id/available-slots", h.AvailableSlots)

	appointments := r.Group("/appointments")
	{
		appointments.GET("", h.ListAppointments)
		appointments.POST("", h.CreateAppointment)
		appointments.GET("/doctor/:doctorId", h.ListDoctorAppointments)
		appointments.GET("/:id", h.GetAppointment)
		appointments.PUT("/:id", h.UpdateAppointment)
		appointments.DELETE("/:id", h.DeleteAppointment)
	}
}

func (h *Handler) AvailableSlots(c *gin.Context) {
	doctorID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	date, ok := handler.QueryDate(c, "date")
	if !ok {
		return
	}
	if date == nil {
		httputil.RespondWithError(c, apperrors.BadRequest("date is required", nil))
		return
	}

	slots, err := h.service.AvailableSlots(c.Request.Context(), doctorID, *date)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, slots)
}

func (h *Handler) ListAppointments(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	appointments, err := h.service.ListAppointments(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) ListDoctorAppointments(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	doctorID, ok := handler.ParseID(c, "doctorId")
	if !ok {
		return
	}
	date, ok := handler.QueryDate(c, "date")
	if !ok {
		return
	}

	appointments, err := h.service.ListDoctorAppointments(c.Request.Context(), actor, doctorID, date)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, appointments)
}

func (h *Handler) GetAppointment(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	a, err := h.service.GetAppointment(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, a)
}

func (h *Handler) CreateAppointment(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	var req model.CreateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	a, err := h.service.CreateAppointment(c.Request.Context(), actor, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithCreated(c, a)
}

func (h *Handler) UpdateAppointment(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateAppointmentRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	a, err := h.service.UpdateAppointment(c.Request.Context(), actor, id, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, a)
}

func (h *Handler) DeleteAppointment(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteAppointment(c.Request.Context(), actor, id); err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "appointment deleted")
}
