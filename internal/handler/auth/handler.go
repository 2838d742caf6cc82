package auth

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointments-api/internal/handler"
	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/pkg/httputil"
)

type AuthServicer interface {
	Register(ctx context.Context, req model.RegisterRequest) (*model.TokenResponse, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.TokenResponse, error)
}

type Handler struct {
	svc AuthServicer
}

func NewHandler(svc AuthServicer) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	auth := r.Group("/auth")
	{
		auth.POST("/register", h.Register)
		auth.POST("/login", h.Login)
	}
}

func (h *Handler) Register(c *gin.Context) {
	var req model.RegisterRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.Register(c.Request.Context(), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	httputil.RespondWithCreated(c, tokens)
}

func (h *Handler) Login(c *gin.Context) {
	var req model.LoginRequest
	if !handler.BindJSON(c, &req) {
		return
	}

	tokens, err := h.svc.Login(c.Request.Context(), req)
	if err != nil {
		handler.RespondError(c, err)
		return
	}

	httputil.RespondWithSuccess(c, tokens)
}
