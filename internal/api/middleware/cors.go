package middleware

import (
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// loopbackOrigin matches any localhost/127.0.0.1 origin regardless of port,
// so a UI served from an ephemeral dev port can always reach the API.
var loopbackOrigin = regexp.MustCompile(`^http://(localhost|127\.0\.0\.1)(:\d+)?$`)

// CORS builds the CORS middleware from an immutable allow-list. Empty and
// "null" origins (same-origin requests and file:// shells) are accepted,
// then the static list, then the loopback pattern. No shared mutable state
// is involved; the policy is fixed at construction.
func CORS(allowedOrigins []string) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		allowed[origin] = struct{}{}
	}

	return middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOriginFunc: func(origin string) (bool, error) {
			if origin == "" || origin == "null" {
				return true, nil
			}
			if _, ok := allowed[origin]; ok {
				return true, nil
			}
			return loopbackOrigin.MatchString(origin), nil
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	})
}
