package middleware

import (
    "crypto/sha1"
    "encoding/hex"

    "github.com/labstack/echo/v4"
)

// ClientKey identifies the caller for rate limiting: the real client IP plus
// a short digest of the User-Agent, so clients sharing a NAT address with
// different agents get separate counters.
func ClientKey(c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    sum := sha1.Sum([]byte(c.Request().UserAgent()))
    return ip + ":" + hex.EncodeToString(sum[:4])
}

// adminID returns the subject of the verified admin token, or "" when the
// request is not authenticated.
func adminID(c echo.Context) string {
    if v, ok := c.Get("user_id").(string); ok {
        return v
    }
    return ""
}
