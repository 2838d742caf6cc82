package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointments-api/internal/middleware"
	"github.com/jwalitptl/appointments-api/internal/model"
	apperrors "github.com/jwalitptl/appointments-api/pkg/errors"
	"github.com/jwalitptl/appointments-api/pkg/httputil"
	"github.com/jwalitptl/appointments-api/pkg/validator"
)

// BindJSON decodes the request body into req. On failure it writes a 400
// response and returns false.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(validator.Message(err), err))
		return false
	}
	return true
}

// ParseID reads a positive integer path parameter. On failure it writes a
// 400 response and returns false.
func ParseID(c *gin.Context, param string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(param), 10, 64)
	if err != nil || id <= 0 {
		httputil.RespondWithError(c, apperrors.BadRequest(fmt.Sprintf("invalid %s", param), err))
		return 0, false
	}
	return id, true
}

// QueryDate reads an optional YYYY-MM-DD query parameter.
func QueryDate(c *gin.Context, name string) (*model.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, true
	}
	d, err := model.ParseDate(raw)
	if err != nil {
		httputil.RespondWithError(c, apperrors.BadRequest(fmt.Sprintf("%s must be a date in YYYY-MM-DD format", name), err))
		return nil, false
	}
	return &d, true
}

// Actor returns the authenticated caller. It writes a 401 response and
// returns false when the auth middleware did not run.
func Actor(c *gin.Context) (model.Actor, bool) {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		httputil.RespondWithError(c, apperrors.Unauthorized("authentication required", nil))
		return model.Actor{}, false
	}
	return actor, true
}
