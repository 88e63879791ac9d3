package middleware

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/runly/internal/apperr"
    "github.com/iliyamo/runly/internal/service"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "runly_session"

// Session resolves the session cookie on every request and stores the
// identity in the context. Anonymous requests pass through; use
// RequireSession on routes that need a signed-in user.
func Session(sm *service.SessionManager) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            ck, err := c.Cookie(SessionCookieName)
            if err != nil || ck.Value == "" {
                return next(c)
            }
            id, err := sm.Resolve(c.Request().Context(), ck.Value)
            if err != nil {
                return apperr.Internal(err)
            }
            if id != nil {
                setIdentity(c, id)
            }
            return next(c)
        }
    }
}

// RequireSession rejects requests without a resolved identity with 401.
func RequireSession() echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if CurrentIdentity(c) == nil {
                return apperr.Unauthorized("Not signed in.")
            }
            return next(c)
        }
    }
}
