package handler

import (
    "github.com/labstack/echo/v4"
    "github.com/samber/lo"
    "golang.org/x/sync/errgroup"

    "github.com/iliyamo/runly/internal/apperr"
    "github.com/iliyamo/runly/internal/repository"
)

const (
    dashboardUpcoming = 5
    dashboardMessages = 8
)

// DashboardHandler serves the signed-in user's overview.
type DashboardHandler struct {
    *Deps
}

func NewDashboardHandler(d *Deps) *DashboardHandler { return &DashboardHandler{Deps: d} }

type upcomingItem struct {
    RunID       uint64            `json:"runId"`
    Title       string            `json:"title"`
    StartsAtIso string            `json:"startsAtIso"`
    Location    map[string]string `json:"location"`
}

type recentMessageItem struct {
    MessageID    uint64 `json:"messageId"`
    Content      string `json:"content"`
    SentAtIso    string `json:"sentAtIso"`
    RunID        uint64 `json:"runId"`
    RunTitle     string `json:"runTitle"`
    FromUserID   uint64 `json:"fromUserId"`
    FromUsername string `json:"fromUsername"`
}

// Me handles GET /api/dashboard/me. The three reads are independent and
// run concurrently.
func (h *DashboardHandler) Me(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    var (
        joined   int
        upcoming []repository.UpcomingRunRow
        recent   []repository.MessageRow
    )
    now := h.now()
    g, gctx := errgroup.WithContext(ctx)
    g.Go(func() (err error) {
        joined, err = h.Members.CountForUser(gctx, id.UserID)
        return err
    })
    g.Go(func() (err error) {
        upcoming, err = h.Runs.UpcomingForUser(gctx, id.UserID, now, dashboardUpcoming)
        return err
    })
    g.Go(func() (err error) {
        recent, err = h.Messages.RecentForUser(gctx, id.UserID, dashboardMessages)
        return err
    })
    if err := g.Wait(); err != nil {
        return apperr.Internal(err)
    }

    return ok(c, echo.Map{
        "stats": echo.Map{
            "joinedRunsCount":   joined,
            "upcomingRunsCount": len(upcoming),
        },
        "upcomingRuns": lo.Map(upcoming, func(r repository.UpcomingRunRow, _ int) upcomingItem {
            return upcomingItem{
                RunID:       r.ID,
                Title:       r.Title,
                StartsAtIso: isoTime(r.StartsAt),
                Location:    map[string]string{"city": r.City, "municipality": r.Municipality},
            }
        }),
        "recentMessages": lo.Map(recent, func(r repository.MessageRow, _ int) recentMessageItem {
            return recentMessageItem{
                MessageID:    r.Message.ID,
                Content:      r.Message.Content,
                SentAtIso:    isoTime(r.Message.SentAt),
                RunID:        r.Message.RunID,
                RunTitle:     r.RunTitle,
                FromUserID:   r.Message.FromUserID,
                FromUsername: r.FromUsername,
            }
        }),
    })
}
