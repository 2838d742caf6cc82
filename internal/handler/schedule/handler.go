package schedule

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointments-api/internal/handler"
	"github.com/jwalitptl/appointments-api/internal/middleware"
	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/service/schedule"
	"github.com/jwalitptl/appointments-api/pkg/httputil"
)

type Handler struct {
	service schedule.ScheduleServicer
}

func NewHandler(service schedule.ScheduleServicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the schedule listing on public and schedule
// maintenance on admin. Listings are never cached since admins edit them.
func (h *Handler) RegisterRoutes(public, admin *gin.RouterGroup) {
	public.GET("/doctors/:id/schedules", middleware.NoStore(), h.ListSchedules)

	admin.POST("/schedules", h.CreateSchedule)
	admin.PUT("/schedules/:id", h.UpdateSchedule)
	admin.DELETE("/schedules/:id", h.DeleteSchedule)
}

// ListSchedules returns a doctor's working windows, optionally for one date.
func (h *Handler) ListSchedules(c *gin.Context) {
	doctorID, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}
	date, ok := handler.QueryDate(c, "date")
	if !ok {
		return
	}

	schedules, err := h.service.ListSchedules(c.Request.Context(), doctorID, date)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, schedules)
}

func (h *Handler) CreateSchedule(c *gin.Context) {
	var req model.CreateScheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	s, err := h.service.CreateSchedule(c.Request.Context(), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithCreated(c, s)
}

func (h *Handler) UpdateSchedule(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateScheduleRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	s, err := h.service.UpdateSchedule(c.Request.Context(), id, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, s)
}

func (h *Handler) DeleteSchedule(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteSchedule(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "schedule deleted")
}
