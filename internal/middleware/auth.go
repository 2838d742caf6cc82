package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/pkg/httputil"
)

const ContextActor = "actor"

// TokenAuthenticator resolves a bearer token to the calling actor.
type TokenAuthenticator interface {
	Authenticate(token string) (model.Actor, error)
}

type AuthMiddleware struct {
	authService TokenAuthenticator
}

func NewAuthMiddleware(authService TokenAuthenticator) *AuthMiddleware {
	return &AuthMiddleware{authService: authService}
}

// Authenticate verifies the JWT token and sets the actor in context
func (m *AuthMiddleware) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse("missing authorization header"))
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse("invalid authorization format"))
			return
		}

		actor, err := m.authService.Authenticate(parts[1])
		if err != nil {
			zerolog.Ctx(c.Request.Context()).Debug().Err(err).Msg("token rejected")
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse("invalid or expired token"))
			return
		}

		SetActor(c, actor)
		c.Next()
	}
}

// RequireRole only lets actors with one of roles through. It must run
// after Authenticate.
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor, ok := ActorFrom(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, httputil.NewErrorResponse("authentication required"))
			return
		}

		for _, role := range roles {
			if actor.Role == role {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, httputil.NewErrorResponse("permission denied"))
	}
}

func SetActor(c *gin.Context, actor model.Actor) {
	c.Set(ContextActor, actor)
}

// ActorFrom returns the authenticated actor of the request, if any.
func ActorFrom(c *gin.Context) (model.Actor, bool) {
	v, ok := c.Get(ContextActor)
	if !ok {
		return model.Actor{}, false
	}
	actor, ok := v.(model.Actor)
	return actor, ok
}
