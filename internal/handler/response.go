package handler

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointments-api/internal/repository"
	"github.com/jwalitptl/appointments-api/internal/scheduling"
	apperrors "github.com/jwalitptl/appointments-api/pkg/errors"
	"github.com/jwalitptl/appointments-api/pkg/httputil"
)

// RespondError translates service and scheduling errors into the API
// error envelope.
func RespondError(c *gin.Context, err error) {
	httputil.RespondWithError(c, toAppError(err))
}

func toAppError(err error) error {
	if _, ok := apperrors.As(err); ok {
		return err
	}

	var ve *scheduling.ValidationError
	if errors.As(err, &ve) {
		if ve.Kind == scheduling.KindSlotAlreadyBooked {
			return apperrors.Conflict(ve.Error(), err)
		}
		return apperrors.BadRequest(ve.Error(), err)
	}

	if scheduling.IsStoreError(err) {
		return apperrors.Unavailable(err)
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("resource", err)
	}
	return err
}
