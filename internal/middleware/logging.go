package middleware

import (
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/workbook-assignment/internal/logger"
)

// RequestLogger writes one structured line per request.  Server errors log
// at error level, client errors at warn.
func RequestLogger(log *logger.Logger) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                c.Error(err)
            }

            res := c.Response()
            kv := []interface{}{
                "method", c.Request().Method,
                "path", c.Path(),
                "status", res.Status,
                "latency_ms", time.Since(start).Milliseconds(),
                "ip", c.RealIP(),
                "request_id", res.Header().Get(echo.HeaderXRequestID),
            }
            if id := adminID(c); id != "" {
                kv = append(kv, "admin_id", id)
            }
            switch {
            case res.Status >= 500:
                log.Error("request", append(kv, "error", err)...)
            case res.Status >= 400:
                log.Warn("request", kv...)
            default:
                log.Info("request", kv...)
            }
            return nil
        }
    }
}
