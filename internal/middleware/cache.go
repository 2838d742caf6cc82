package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CacheConfig represents cache control configuration
type CacheConfig struct {
	MaxAge  int
	Private bool
	Vary    []string
}

// NoStore marks responses as uncacheable. Availability and booking data
// change with every appointment, so authenticated routes use it.
func NoStore() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Cache-Control", "no-store")
		c.Next()
	}
}

// Cache lets clients cache successful GET responses for MaxAge seconds.
// Other methods get no-store.
func Cache(config CacheConfig) gin.HandlerFunc {
	scope := "public"
	if config.Private {
		scope = "private"
	}
	directive := scope + ", max-age=" + strconv.Itoa(config.MaxAge)
	vary := strings.Join(config.Vary, ", ")

	return func(c *gin.Context) {
		if c.Request.Method != http.MethodGet {
			c.Header("Cache-Control", "no-store")
			c.Next()
			return
		}

		c.Header("Cache-Control", directive)
		if vary != "" {
			c.Header("Vary", vary)
		}
		c.Next()
	}
}
