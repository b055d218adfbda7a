package router // package router registers HTTP routes and their middleware chains

import (
    "database/sql"

    "github.com/google/uuid"
    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/workbook-assignment/internal/config"
    "github.com/iliyamo/workbook-assignment/internal/handler"
    "github.com/iliyamo/workbook-assignment/internal/logger"
    "github.com/iliyamo/workbook-assignment/internal/middleware"
    "github.com/iliyamo/workbook-assignment/internal/ratelimit"
)

// Limits binds a limiter to the per-class policies.  A nil Limiter
// disables rate limiting.
type Limits struct {
    Limiter  *ratelimit.Limiter
    Policies map[string]ratelimit.Policy
}

// For returns the rate limit middleware for class.  Unknown classes are
// not limited.
func (l Limits) For(class string) echo.MiddlewareFunc {
    p, ok := l.Policies[class]
    if !ok || l.Limiter == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    if p.Name == "" {
        p.Name = class
    }
    return middleware.RateLimit(l.Limiter, p)
}

// Setup installs the middleware shared by every route: panic recovery,
// request ids and structured request logging.
func Setup(e *echo.Echo, log *logger.Logger) {
    e.HideBanner = true
    e.Use(echomw.Recover())
    e.Use(echomw.RequestIDWithConfig(echomw.RequestIDConfig{Generator: uuid.NewString}))
    e.Use(middleware.RequestLogger(log))
}

// RegisterRoutes registers unauthenticated infrastructure routes.
func RegisterRoutes(e *echo.Echo, db *sql.DB) {
    e.GET("/healthz", handler.Health(db))
}

// RegisterAdmin registers the /v1/admin group.  Every route requires an
// ADMIN token and counts against the admin policy.  templateCache wraps
// template reads only.
func RegisterAdmin(e *echo.Echo, a *handler.AdminHandler, w *handler.WorkbookHandler, jwtSecret string, limits Limits, templateCache echo.MiddlewareFunc) {
    if templateCache == nil {
        templateCache = func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    g := e.Group(
        "/v1/admin",
        limits.For(config.PolicyAdmin),
        middleware.JWTAuth(jwtSecret),
        middleware.RequireRole(middleware.RoleAdmin),
    )

    // ---- Assignment ----
    g.POST("/assign", w.Assign)
    g.DELETE("/assign", w.Unassign)
    g.PUT("/instances/:id/review", w.Review)

    // ---- Templates ----
    g.POST("/templates", a.CreateTemplate)
    g.GET("/templates", a.ListTemplates, templateCache)
    g.GET("/templates/:id", a.GetTemplate, templateCache)

    // ---- Users ----
    g.POST("/users", a.CreateUser)
    g.GET("/users/:id/workbooks", a.ListUserWorkbooks)
}

// RegisterPublic registers the link-authorised routes used by clients.
// Ownership is checked by the services against the user id in the link.
func RegisterPublic(e *echo.Echo, a *handler.AdminHandler, w *handler.WorkbookHandler, limits Limits) {
    public := limits.For(config.PolicyPublic)
    e.GET("/v1/instances/:id", w.GetInstance, public)
    e.PUT("/v1/instances/:id", w.UpdateInstance, public)
    e.PUT("/v1/submit-all", w.SubmitAll, limits.For(config.PolicyNotification))
    e.GET("/v1/users/:id/access", a.Access, limits.For(config.PolicyAuth))
}
