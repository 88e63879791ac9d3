package handler

import (
    "strconv"

    "github.com/labstack/echo/v4"
    "github.com/samber/lo"

    "github.com/iliyamo/runly/internal/apperr"
    "github.com/iliyamo/runly/internal/queue"
    "github.com/iliyamo/runly/internal/repository"
    "github.com/iliyamo/runly/internal/service"
)

// AdminHandler serves the /api/admin group. The router already requires
// the admin role; the guard is applied again per action.
type AdminHandler struct {
    *Deps
}

func NewAdminHandler(d *Deps) *AdminHandler { return &AdminHandler{Deps: d} }

type adminUserItem struct {
    UserID          uint64 `json:"userId"`
    Email           string `json:"email"`
    Username        string `json:"username"`
    Role            string `json:"role"`
    CreatedAtIso    string `json:"createdAtIso"`
    HostedRunsCount int    `json:"hostedRunsCount"`
    JoinedRunsCount int    `json:"joinedRunsCount"`
    IsCurrentAdmin  bool   `json:"isCurrentAdmin"`
}

type adminRunItem struct {
    RunID             uint64 `json:"runId"`
    Title             string `json:"title"`
    StartsAtIso       string `json:"startsAtIso"`
    HostUserID        uint64 `json:"hostUserId"`
    HostUsername      string `json:"hostUsername"`
    City              string `json:"city"`
    Municipality      string `json:"municipality"`
    ParticipantsCount int    `json:"participantsCount"`
}

// ListUsers handles GET /api/admin/users.
func (h *AdminHandler) ListUsers(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    if err := service.RequireAdmin(id); err != nil {
        return err
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    rows, err := h.Users.ListWithCounts(ctx)
    if err != nil {
        return apperr.Internal(err)
    }
    return ok(c, echo.Map{"users": lo.Map(rows, func(r repository.AdminUserRow, _ int) adminUserItem {
        return adminUserItem{
            UserID:          r.ID,
            Email:           r.Email,
            Username:        r.Username,
            Role:            string(r.Role),
            CreatedAtIso:    isoTime(r.CreatedAt),
            HostedRunsCount: r.HostedRuns,
            JoinedRunsCount: r.JoinedRuns,
            IsCurrentAdmin:  r.ID == id.UserID,
        }
    })})
}

// DeleteUser handles DELETE /api/admin/users/:id. Deleting yourself is
// refused before the target is looked up.
func (h *AdminHandler) DeleteUser(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    userID, err := pathID(c, "id")
    if err != nil {
        return err
    }
    if err := service.CanDeleteUser(id, userID); err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    hosted, err := h.Cascade.DeleteUser(ctx, userID)
    if err != nil {
        return storeErr(err, "User")
    }
    h.countCascade("user")
    h.audit(queue.KindUserDeleted, id.UserID, userID, map[string]string{
        "hosted_runs": strconv.Itoa(hosted),
    })
    return ok(c, echo.Map{"deleted": true})
}

// ListRuns handles GET /api/admin/runs.
func (h *AdminHandler) ListRuns(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    if err := service.RequireAdmin(id); err != nil {
        return err
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    rows, err := h.Runs.ListForAdmin(ctx)
    if err != nil {
        return apperr.Internal(err)
    }
    return ok(c, echo.Map{"runs": lo.Map(rows, func(r repository.AdminRunRow, _ int) adminRunItem {
        return adminRunItem{
            RunID:             r.ID,
            Title:             r.Title,
            StartsAtIso:       isoTime(r.StartsAt),
            HostUserID:        r.HostUserID,
            HostUsername:      r.HostUsername,
            City:              r.City,
            Municipality:      r.Municipality,
            ParticipantsCount: r.ParticipantsCount,
        }
    })})
}

// DeleteRun handles DELETE /api/admin/runs/:id.
func (h *AdminHandler) DeleteRun(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    if err := service.RequireAdmin(id); err != nil {
        return err
    }
    runID, err := pathID(c, "id")
    if err != nil {
        return err
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    run, err := h.Runs.GetByID(ctx, runID)
    if err != nil {
        return storeErr(err, "Run")
    }
    return h.deleteRun(c, id, run)
}
