package auth

import (
	"fmt"

	"github.com/labstack/echo/v4"
)

const principalKey = "principal"

// Middleware rejects requests whose Authorization header does not carry a
// registered token. The resolved principal is stored on the echo context.
func Middleware(reg *Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token, err := ParseAuthorization(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return err
			}

			principal, ok := reg.Lookup(token)
			if !ok {
				c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
				return fmt.Errorf("%w: invalid token", ErrUnauthorized)
			}

			c.Set(principalKey, principal)
			return next(c)
		}
	}
}

// PrincipalFrom returns the principal set by Middleware, or "".
func PrincipalFrom(c echo.Context) string {
	p, _ := c.Get(principalKey).(string)
	return p
}
