package httpapi

import (
	"github.com/labstack/echo/v4"

	"horse.fit/slanglab/internal/auth"
)

// requireAdmin checks the bearer token against the configured hash. With no
// hash configured the route is open. reject writes the route's own 401 shape.
func (s *Server) requireAdmin(reject func(echo.Context) error) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if s.opts.AdminTokenHash == "" {
				return next(c)
			}

			token, ok := auth.BearerToken(c.Request().Header.Get(echo.HeaderAuthorization))
			if !ok || !auth.VerifyToken(token, s.opts.AdminTokenHash) {
				s.logger.Warn().
					Str("path", c.Path()).
					Str("remote_ip", c.RealIP()).
					Msg("rejected unauthenticated admin request")
				return reject(c)
			}
			return next(c)
		}
	}
}
