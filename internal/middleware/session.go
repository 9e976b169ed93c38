// Package middleware provides HTTP middleware for the auth and media service.
package middleware

import (
	"context"
	"errors"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	apperrors "authmedia/internal/errors"
	"authmedia/internal/model"
)

const (
	// SessionCookie carries the session token for browser clients.
	SessionCookie = "session_token"

	sessionKeyLookup = "header:" + echo.HeaderAuthorization + ":Bearer ,cookie:" + SessionCookie

	contextUserKey    = "auth.user"
	contextSessionKey = "auth.session"
)

// Authenticator resolves a session token.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, *model.Session, error)
}

// SessionAuth requires a valid session from the Authorization bearer header
// or the session cookie. The user and session are stored on the context.
func SessionAuth(a Authenticator) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup: sessionKeyLookup,
		Validator: validator(a),
		ErrorHandler: func(err error, c echo.Context) error {
			var appErr *apperrors.Error
			if errors.As(err, &appErr) {
				return appErr
			}
			return apperrors.ErrUnauthenticated
		},
	})
}

// OptionalSession loads the session when one is presented and valid, and
// otherwise lets the request through anonymously.
func OptionalSession(a Authenticator) echo.MiddlewareFunc {
	return middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
		KeyLookup:              sessionKeyLookup,
		Validator:              validator(a),
		ContinueOnIgnoredError: true,
		ErrorHandler: func(err error, c echo.Context) error {
			return nil
		},
	})
}

func validator(a Authenticator) middleware.KeyAuthValidator {
	return func(key string, c echo.Context) (bool, error) {
		user, session, err := a.Authenticate(c.Request().Context(), key)
		if err != nil {
			return false, err
		}
		c.Set(contextUserKey, user)
		c.Set(contextSessionKey, session)
		return true, nil
	}
}

// RequireAdmin rejects callers without the admin role. It must run after
// SessionAuth.
func RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		user := CurrentUser(c)
		if user == nil {
			return apperrors.ErrUnauthenticated
		}
		if !user.IsAdmin() {
			return apperrors.ErrForbidden
		}
		return next(c)
	}
}

// CurrentUser returns the authenticated user, or nil.
func CurrentUser(c echo.Context) *model.User {
	u, _ := c.Get(contextUserKey).(*model.User)
	return u
}

// CurrentSession returns the authenticated session, or nil.
func CurrentSession(c echo.Context) *model.Session {
	s, _ := c.Get(contextSessionKey).(*model.Session)
	return s
}
