package middleware

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"authmedia/internal/auth"
	apperrors "authmedia/internal/errors"
)

// RateLimit counts requests per client IP within scope and rejects the
// excess with 429.
func RateLimit(limiter auth.Limiter, scope string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			d := limiter.Allow(c.Request().Context(), scope, c.RealIP())
			if !d.Allowed {
				secs := int(math.Ceil(d.RetryAfter.Seconds()))
				c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
				return apperrors.ErrRateLimited
			}
			c.Response().Header().Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			return next(c)
		}
	}
}
