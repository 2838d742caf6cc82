package user

import (
	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointments-api/internal/handler"
	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/internal/service/user"
	"github.com/jwalitptl/appointments-api/pkg/httputil"
)

type Handler struct {
	service user.UserServicer
}

func NewHandler(service user.UserServicer) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes mounts the user routes on a group that already requires
// authentication. Ownership rules are enforced by the service.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	users := r.Group("/users")
	{
		users.GET("/me", h.Me)
		users.GET("", h.ListUsers)
		users.GET("/:id", h.GetUser)
		users.PUT("/:id", h.UpdateUser)
	}
}

func (h *Handler) Me(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	u, err := h.service.Me(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u)
}

func (h *Handler) ListUsers(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}

	users, err := h.service.ListUsers(c.Request.Context(), actor)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, users)
}

func (h *Handler) GetUser(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	u, err := h.service.GetUser(c.Request.Context(), actor, id)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u)
}

func (h *Handler) UpdateUser(c *gin.Context) {
	actor, ok := handler.Actor(c)
	if !ok {
		return
	}
	id, ok := handler.ParseID(c, "id")
	if !ok {
		return
	}

	var req model.UpdateUserRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	u, err := h.service.UpdateUser(c.Request.Context(), actor, id, req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}
	httputil.RespondWithSuccess(c, u)
}
