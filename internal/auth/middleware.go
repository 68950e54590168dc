package auth

import (
	"strings"

	"github.com/labstack/echo/v4"
)

const principalKey = "principal_id"

// NewMiddleware authenticates requests from the session cookie or a bearer
// token and stores the principal's user id in the request context. Core
// operations receive that id explicitly; nothing downstream reads ambient
// session state.
func NewMiddleware(auther *Authenticator) echo.MiddlewareFunc {
	type authStrategy func(c echo.Context) (string, bool)
	strategies := []authStrategy{
		auther.authWithCookie,
		auther.authWithBearer,
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			for _, strategy := range strategies {
				if userID, ok := strategy(c); ok {
					c.Set(principalKey, userID)
					return next(c)
				}
			}
			return echo.ErrUnauthorized
		}
	}
}

// PrincipalID returns the authenticated user id, or "" outside the
// authenticated group.
func PrincipalID(c echo.Context) string {
	id, _ := c.Get(principalKey).(string)
	return id
}

func (a *Authenticator) authWithCookie(c echo.Context) (string, bool) {
	cookie, err := c.Cookie(cookieName)
	if err != nil || cookie == nil || cookie.Value == "" {
		return "", false
	}

	claims, err := a.checkJWT(cookie.Value)
	if err != nil {
		return "", false
	}

	// Sliding expiry: a valid cookie gets reissued on every request.
	if refreshed, err := a.generateCookie(claims.Subject); err == nil {
		c.SetCookie(refreshed)
	}

	return claims.Subject, true
}

func (a *Authenticator) authWithBearer(c echo.Context) (string, bool) {
	header := c.Request().Header.Get(echo.HeaderAuthorization)
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return "", false
	}

	claims, err := a.checkJWT(token)
	if err != nil {
		return "", false
	}

	return claims.Subject, true
}
