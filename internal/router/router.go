package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/iliyamo/runly/internal/handler"
	"github.com/iliyamo/runly/internal/middleware"
	"github.com/iliyamo/runly/internal/ratelimit"
)

// New builds the echo instance with the global middleware chain and every
// route group registered. db backs the readiness check.
func New(d *handler.Deps, db handler.Pinger, limiter ratelimit.Limiter) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = handler.NewValidator()

	// RequestLog sits outside Recover so panics are rendered and counted.
	e.Use(
		echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}),
		middleware.RequestLog(d.Metrics),
		echomw.Recover(),
		middleware.SecurityHeaders(),
		middleware.CORS(d.Cfg.CORSOrigin),
	)

	RegisterRoutes(e, db, d)

	api := e.Group("/api", middleware.CSRF(d.Cfg.CORSOrigin), middleware.Session(d.Sessions))
	RegisterAuth(api, handler.NewAuthHandler(d), d, limiter)
	RegisterRuns(api, d)
	RegisterAdmin(api, handler.NewAdminHandler(d))
	return e
}

// RegisterRoutes registers the unauthenticated operational endpoints.
func RegisterRoutes(e *echo.Echo, db handler.Pinger, d *handler.Deps) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
	if d.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(d.Metrics.Handler()))
	}
}

// RegisterAuth registers /api/auth and /api/profile. Register, login and
// logout work without a session; login is rate limited per client IP.
func RegisterAuth(api *echo.Group, a *handler.AuthHandler, d *handler.Deps, limiter ratelimit.Limiter) {
	g := api.Group("/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login, middleware.RateLimit(d.Cfg.LoginRateLimit, "login", limiter, d.Metrics))
	g.POST("/logout", a.Logout)
	g.GET("/me", a.Me, middleware.RequireSession())

	p := handler.NewProfileHandler(d)
	prof := api.Group("/profile", middleware.RequireSession())
	prof.GET("/me", p.Get)
	prof.PATCH("/me", p.Update)
}
