package router

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jwalitptl/appointments-api/internal/handler"
	"github.com/jwalitptl/appointments-api/internal/middleware"
	"github.com/jwalitptl/appointments-api/internal/model"
	"github.com/jwalitptl/appointments-api/pkg/metrics"
)

const APIVersion = "1.0"

// Handler registers routes that all share one access level.
type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

// SplitHandler registers public reads and admin-only writes.
type SplitHandler interface {
	RegisterRoutes(public, admin *gin.RouterGroup)
}

type Handlers struct {
	Health      *handler.Handler
	Auth        Handler
	User        Handler
	Doctor      SplitHandler
	Schedule    SplitHandler
	Appointment Handler
}

type RouterConfig struct {
	Mode           string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
	CORSConfig     middleware.CORSConfig
	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
}

type Router struct {
	engine   *gin.Engine
	auth     *middleware.AuthMiddleware
	handlers Handlers
	metrics  *metrics.Metrics
}

func NewRouter(auth *middleware.AuthMiddleware, handlers Handlers, m *metrics.Metrics, config RouterConfig) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}

	engine := gin.New()

	r := &Router{
		engine:   engine,
		auth:     auth,
		handlers: handlers,
		metrics:  m,
	}

	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
		r.metricsMiddleware(),
		middleware.ErrorHandler(),
		middleware.Timeout(middleware.TimeoutConfig{Duration: config.RequestTimeout}),
		middleware.CORS(config.CORSConfig),
		middleware.SecurityHeaders(middleware.DefaultSecurityConfig()),
		middleware.SizeLimit(middleware.SizeLimitConfig{MaxBodySize: config.MaxBodyBytes}),
	)

	if config.RateLimiter != nil {
		engine.Use(config.RateLimiter.RateLimit())
	}

	r.setup()
	return r
}

func (r *Router) setup() {
	if r.handlers.Health != nil {
		r.handlers.Health.RegisterRoutes(r.engine)
	}

	api := r.engine.Group("/api/v1")
	api.Use(middleware.Version(APIVersion))

	public := api.Group("")
	public.Use(middleware.Cache(middleware.CacheConfig{MaxAge: 60}))
	r.handlers.Auth.RegisterRoutes(public)

	protected := api.Group("")
	protected.Use(middleware.NoStore(), r.auth.Authenticate())

	admin := protected.Group("")
	admin.Use(r.auth.RequireRole(model.RoleAdmin))

	r.handlers.Doctor.RegisterRoutes(public, admin)
	r.handlers.Schedule.RegisterRoutes(public, admin)
	r.handlers.User.RegisterRoutes(protected)
	r.handlers.Appointment.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())

		r.metrics.HTTPLatency.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
		r.metrics.HTTPRequests.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
