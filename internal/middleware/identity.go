package middleware

// identity.go holds the context helpers shared by middleware and handlers.
// Session stores the resolved identity under "identity" and mirrors the
// id and role under "user_id" and "role" for middleware that only needs
// those.

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/runly/internal/model"
)

const (
    ctxIdentity = "identity"
    ctxUserID   = "user_id"
    ctxRole     = "role"
)

// CurrentIdentity returns the identity resolved for this request, or nil.
func CurrentIdentity(c echo.Context) *model.Identity {
    id, _ := c.Get(ctxIdentity).(*model.Identity)
    return id
}

func setIdentity(c echo.Context, id *model.Identity) {
    c.Set(ctxIdentity, id)
    c.Set(ctxUserID, id.UserID)
    c.Set(ctxRole, string(id.Role))
}
