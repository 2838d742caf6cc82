package middleware

import (
	"errors"
	"net/http"
	"runtime/debug"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/appointments-api/pkg/httputil"
)

// Recovery turns a handler panic into a 500 response. A panic caused by the
// client hanging up is logged without writing anything back.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			logger := zerolog.Ctx(c.Request.Context())
			if err, ok := rec.(error); ok && isBrokenPipe(err) {
				logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("client connection closed")
				c.Abort()
				return
			}

			logger.Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Str("client_ip", c.ClientIP()).
				Msg("request panic recovered")

			c.AbortWithStatusJSON(http.StatusInternalServerError, httputil.NewErrorResponse("internal server error"))
		}()
		c.Next()
	}
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
