package handler

import (
    "context"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/workbook-assignment/internal/logger"
    "github.com/iliyamo/workbook-assignment/internal/service"
)

// AdminHandler serves template and user administration plus the user
// access summary.
type AdminHandler struct {
    Catalog *service.CatalogService
    // OnTemplatesChanged runs after a template is created, typically to
    // purge cached template reads.  Optional.
    OnTemplatesChanged func(ctx context.Context) error
    Log                *logger.Logger
}

// NewAdminHandler panics if catalog is nil.  A nil log discards output.
func NewAdminHandler(catalog *service.CatalogService, log *logger.Logger) *AdminHandler {
    if catalog == nil {
        panic("nil service passed to NewAdminHandler")
    }
    if log == nil {
        log = logger.Nop()
    }
    return &AdminHandler{Catalog: catalog, Log: log}
}

// CreateTemplate handles POST /v1/admin/templates.
func (h *AdminHandler) CreateTemplate(c echo.Context) error {
    var body service.NewTemplate
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    t, err := h.Catalog.CreateTemplate(c.Request().Context(), body)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    if h.OnTemplatesChanged != nil {
        if err := h.OnTemplatesChanged(c.Request().Context()); err != nil {
            h.Log.Warn("template cache purge failed", "error", err)
        }
    }
    return c.JSON(http.StatusCreated, t)
}

// ListTemplates handles GET /v1/admin/templates.
func (h *AdminHandler) ListTemplates(c echo.Context) error {
    ts, err := h.Catalog.ListTemplates(c.Request().Context())
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, ts)
}

// GetTemplate handles GET /v1/admin/templates/:id.
func (h *AdminHandler) GetTemplate(c echo.Context) error {
    t, err := h.Catalog.GetTemplate(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, t)
}

// CreateUser handles POST /v1/admin/users.
func (h *AdminHandler) CreateUser(c echo.Context) error {
    var body service.NewUser
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    u, err := h.Catalog.CreateUser(c.Request().Context(), body)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, u)
}

// ListUserWorkbooks handles GET /v1/admin/users/:id/workbooks.
func (h *AdminHandler) ListUserWorkbooks(c echo.Context) error {
    list, err := h.Catalog.ListUserWorkbooks(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, list)
}

// Access handles GET /v1/users/:id/access.
func (h *AdminHandler) Access(c echo.Context) error {
    s, err := h.Catalog.Access(c.Request().Context(), c.Param("id"))
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, s)
}
