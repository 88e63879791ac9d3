package router

import (
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/runly/internal/handler"
    "github.com/iliyamo/runly/internal/middleware"
)

// RegisterRuns registers the signed-in user's endpoints: runs, chat,
// ratings and the dashboard. Ownership and membership rules are checked
// inside the handlers once the target has been loaded.
func RegisterRuns(api *echo.Group, d *handler.Deps) {
    g := api.Group("", middleware.RequireSession())

    // ---- Runs ----
    r := handler.NewRunHandler(d)
    g.GET("/runs", r.List)
    g.POST("/runs", r.Create)
    g.PATCH("/runs/:id", r.Update)
    g.DELETE("/runs/:id", r.Delete)
    g.POST("/runs/:id/join", r.Join)

    // ---- Chat ----
    ch := handler.NewChatHandler(d)
    g.GET("/chat/:runId/messages", ch.List)
    g.POST("/chat/:runId/messages", ch.Post)
    g.PATCH("/chat/:runId/messages/:messageId", ch.Update)
    g.DELETE("/chat/:runId/messages/:messageId", ch.Delete)

    // ---- Ratings ----
    rt := handler.NewRatingHandler(d)
    g.POST("/ratings", rt.Create)
    g.PATCH("/ratings/:id", rt.Update)
    g.DELETE("/ratings/:id", rt.Delete)
    g.GET("/users/:id/ratings", rt.ForUser)

    g.GET("/dashboard/me", handler.NewDashboardHandler(d).Me)
}

// RegisterAdmin registers /api/admin. Every route requires a session and
// the admin role.
func RegisterAdmin(api *echo.Group, a *handler.AdminHandler) {
    g := api.Group("/admin", middleware.RequireSession(), middleware.RequireRole("admin"))
    g.GET("/users", a.ListUsers)
    g.DELETE("/users/:id", a.DeleteUser)
    g.GET("/runs", a.ListRuns)
    g.DELETE("/runs/:id", a.DeleteRun)
}
