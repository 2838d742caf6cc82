package middleware

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointments-api/pkg/httputil"
)

const (
	HeaderAPIVersion    = "X-API-Version"
	HeaderAcceptVersion = "Accept-Version"
)

// Version stamps responses with the API version and refuses requests that
// ask for a different one through Accept-Version.
func Version(current string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header(HeaderAPIVersion, current)

		if requested := c.GetHeader(HeaderAcceptVersion); requested != "" && requested != current {
			c.AbortWithStatusJSON(http.StatusNotAcceptable, httputil.NewErrorResponse(
				fmt.Sprintf("API version %s not supported", requested)))
			return
		}
		c.Next()
	}
}
