package handler

import (
    "errors"
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/workbook-assignment/internal/logger"
    "github.com/iliyamo/workbook-assignment/internal/service"
)

// statusFor maps a service error kind to its HTTP status.
func statusFor(k service.Kind) int {
    switch k {
    case service.KindValidation, service.KindIncompleteWorkbook:
        return http.StatusBadRequest
    case service.KindNotFound:
        return http.StatusNotFound
    case service.KindConflict:
        return http.StatusConflict
    case service.KindAccessExpired:
        return http.StatusForbidden
    default:
        return http.StatusInternalServerError
    }
}

// writeError renders err as {"error", "message", "ids"?}.  Errors that are
// not service errors become an opaque 500 and are logged.
func writeError(c echo.Context, log *logger.Logger, err error) error {
    var se *service.Error
    if !errors.As(err, &se) {
        log.Error("unhandled error", "method", c.Request().Method, "path", c.Path(),
            "request_id", c.Response().Header().Get(echo.HeaderXRequestID), "error", err)
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "InternalError", "message": "internal server error"})
    }
    body := echo.Map{"error": se.Code, "message": se.Message}
    if len(se.IDs) > 0 {
        body["ids"] = se.IDs
    }
    if se.Retryable() {
        body["retryable"] = true
        log.Warn("transaction failed", "path", c.Path(), "code", se.Code, "error", se.Err)
    }
    return c.JSON(statusFor(se.Kind), body)
}

func badRequest(c echo.Context, msg string) error {
    return c.JSON(http.StatusBadRequest, echo.Map{"error": service.CodeInvalidRequest, "message": msg})
}
