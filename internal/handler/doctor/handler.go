package doctor

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointments-api/internal/handler"
	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/service/doctor"
	"github.com/jwalitptl/appointments-api/pkg/httputil"
)

type Handler struct {
	service doctor.DoctorServicer
}

func NewHandler(service doctor.DoctorServicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts read routes on public and write routes on admin.
func (h *Handler) RegisterRoutes(public, admin *gin.RouterGroup) {
	public.GET("/doctors", h.ListDoctors)
	public.GET("/doctors/:id", h.GetDoctor)

	admin.POST("/doctors", h.CreateDoctor)
	admin.PUT("/doctors/:id", h.UpdateDoctor)
	admin.DELETE("/doctors/:id", h.DeleteDoctor)
}

func (h *Handler) ListDoctors(c *gin.Context) {
	doctors, err := h.service.ListDoctors(c.Request.Context())
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, doctors)
}

func (h *Handler) GetDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	d, err := h.service.GetDoctor(c.Request.Context(), id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

func (h *Handler) CreateDoctor(c *gin.Context) {
	var req model.CreateDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	d, err := h.service.CreateDoctor(c.Request.Context(), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithCreated(c, d)
}

func (h *Handler) UpdateDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateDoctorRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	d, err := h.service.UpdateDoctor(c.Request.Context(), id, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, d)
}

func (h *Handler) DeleteDoctor(c *gin.Context) {
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	if err := h.service.DeleteDoctor(c.Request.Context(), id); err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithMessage(c, "doctor deleted")
}
