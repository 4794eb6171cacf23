package middleware

import (
	"strings"

	"github.com/labstack/echo/v4"
)

func SecurityHeaders() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			h := c.Response().Header()

			// Prevent MIME type sniffing
			h.Set("X-Content-Type-Options", "nosniff")

			// Prevent clickjacking
			h.Set("X-Frame-Options", "SAMEORIGIN")

			// Control referrer information
			h.Set("Referrer-Policy", "strict-origin-when-cross-origin")

			// Disable caching for API responses except the download stream,
			// which carries its own framing.
			path := c.Request().URL.Path
			if strings.HasPrefix(path, "/api") && path != "/api/download" {
				h.Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
			}

			return next(c)
		}
	}
}
