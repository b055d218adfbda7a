package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/workbook-assignment/internal/logger"
    "github.com/iliyamo/workbook-assignment/internal/model"
    "github.com/iliyamo/workbook-assignment/internal/service"
)

// WorkbookHandler serves the assignment, instance and submission routes.
// Admin routes rely on JWTAuth and RequireRole upstream; instance routes
// are authorised by the ?user= id carried in the shareable link.
type WorkbookHandler struct {
    Assignments *service.AssignmentService
    Instances   *service.InstanceService
    Submissions *service.SubmissionService
    Log         *logger.Logger
}

// NewWorkbookHandler panics if a service is missing.  A nil log discards
// output.
func NewWorkbookHandler(a *service.AssignmentService, i *service.InstanceService, s *service.SubmissionService, log *logger.Logger) *WorkbookHandler {
    if a == nil || i == nil || s == nil {
        panic("nil service passed to NewWorkbookHandler")
    }
    if log == nil {
        log = logger.Nop()
    }
    return &WorkbookHandler{Assignments: a, Instances: i, Submissions: s, Log: log}
}

// Assign handles POST /v1/admin/assign.
func (h *WorkbookHandler) Assign(c echo.Context) error {
    var body struct {
        TemplateID string `json:"templateId"`
        UserID     string `json:"userId"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    inst, err := h.Assignments.Assign(c.Request().Context(), body.TemplateID, body.UserID)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusCreated, echo.Map{
        "instanceId":    inst.ID,
        "shareableLink": inst.ShareableLink,
    })
}

// Unassign handles DELETE /v1/admin/assign.  The ids may come in a JSON
// body or as query parameters.
func (h *WorkbookHandler) Unassign(c echo.Context) error {
    var body struct {
        InstanceID string `json:"instanceId" query:"instanceId"`
        UserID     string `json:"userId" query:"userId"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    if err := h.Assignments.Unassign(c.Request().Context(), body.InstanceID, body.UserID); err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "workbook unassigned", "instanceId": body.InstanceID})
}

// GetInstance handles GET /v1/instances/:id?user=.
func (h *WorkbookHandler) GetInstance(c echo.Context) error {
    inst, err := h.Instances.Get(c.Request().Context(), c.Param("id"), c.QueryParam("user"))
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, inst)
}

// UpdateInstance handles PUT /v1/instances/:id?user=.  The status is
// recomputed from the answers unless "submitted" is requested.
func (h *WorkbookHandler) UpdateInstance(c echo.Context) error {
    var body struct {
        Answers []model.Answer `json:"answers"`
        Status  model.Status   `json:"status"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    inst, err := h.Instances.Update(c.Request().Context(), c.Param("id"), c.QueryParam("user"), body.Answers, body.Status)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, inst)
}

// SubmitAll handles PUT /v1/submit-all.
func (h *WorkbookHandler) SubmitAll(c echo.Context) error {
    var body struct {
        UserID    string               `json:"userId"`
        Instances []service.SubmitItem `json:"instances"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    res, err := h.Submissions.SubmitAll(c.Request().Context(), body.UserID, body.Instances)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, res)
}

// Review handles PUT /v1/admin/instances/:id/review.
func (h *WorkbookHandler) Review(c echo.Context) error {
    var body struct {
        Feedback string `json:"feedback"`
    }
    if err := c.Bind(&body); err != nil {
        return badRequest(c, "invalid request body")
    }
    inst, err := h.Instances.Review(c.Request().Context(), c.Param("id"), body.Feedback)
    if err != nil {
        return writeError(c, h.Log, err)
    }
    return c.JSON(http.StatusOK, inst)
}
