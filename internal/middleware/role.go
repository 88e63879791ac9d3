package middleware

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/runly/internal/apperr"
)

// RequireRole returns a middleware that enforces that the signed-in user
// has one of the given roles. It must run after Session; a missing
// identity is 401, a wrong role 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            if CurrentIdentity(c) == nil {
                return apperr.Unauthorized("Not signed in.")
            }
            role, ok := c.Get(ctxRole).(string)
            if !ok || !allowed[role] {
                return apperr.Forbidden("Insufficient role.")
            }
            return next(c)
        }
    }
}
