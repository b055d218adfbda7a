package middleware

import (
    "net/http"
    "strconv"
    "time"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/workbook-assignment/internal/ratelimit"
)

// RateLimit counts every request against policy p, keyed by ClientKey.
// Denied requests get 429 with the retry timing in both headers and body.
// A nil limiter disables limiting.
func RateLimit(l *ratelimit.Limiter, p ratelimit.Policy) echo.MiddlewareFunc {
    if l == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            d := l.Check(c.Request().Context(), p, ClientKey(c))

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
            h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
            if !d.ResetTime.IsZero() {
                h.Set("X-RateLimit-Reset", strconv.FormatInt(d.ResetTime.Unix(), 10))
            }
            if d.Allowed {
                return next(c)
            }

            h.Set("Retry-After", strconv.Itoa(d.RetryAfterSeconds))
            return c.JSON(http.StatusTooManyRequests, map[string]any{
                "error":             "TooManyRequests",
                "message":           "rate limit exceeded for " + p.Name + " requests",
                "limit":             d.Limit,
                "remaining":         d.Remaining,
                "resetTime":         d.ResetTime.UTC().Format(time.RFC3339),
                "retryAfterSeconds": d.RetryAfterSeconds,
            })
        }
    }
}
