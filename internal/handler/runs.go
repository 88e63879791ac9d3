package handler

import (
    "strconv"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "github.com/mergestat/timediff"
    "github.com/samber/lo"

    "github.com/iliyamo/runly/internal/apperr"
    "github.com/iliyamo/runly/internal/model"
    "github.com/iliyamo/runly/internal/queue"
    "github.com/iliyamo/runly/internal/repository"
    "github.com/iliyamo/runly/internal/service"
)

// RunHandler serves run listing, creation, updates, deletion and joining.
type RunHandler struct {
    *Deps
}

func NewRunHandler(d *Deps) *RunHandler { return &RunHandler{Deps: d} }

// runFields are shared by create and update.
type runFields struct {
    Title        string  `json:"title" validate:"required,min=3,max=120"`
    Route        string  `json:"route" validate:"required,min=3"`
    StartsAtIso  string  `json:"startsAtIso" validate:"required"`
    DistanceKm   float64 `json:"distanceKm" validate:"required,gt=0"`
    PaceMinPerKm float64 `json:"paceMinPerKm" validate:"required,gt=0"`
    City         string  `json:"city" validate:"required,min=2,max=100"`
    Municipality string  `json:"municipality" validate:"required,min=2,max=100"`
}

func (f *runFields) trim() {
    f.Title = strings.TrimSpace(f.Title)
    f.Route = strings.TrimSpace(f.Route)
    f.City = strings.TrimSpace(f.City)
    f.Municipality = strings.TrimSpace(f.Municipality)
}

type createRunReq struct {
    runFields
    Lat *float64 `json:"lat" validate:"required,gte=-90,lte=90"`
    Lng *float64 `json:"lng" validate:"required,gte=-180,lte=180"`
}

type updateRunReq struct {
    runFields
}

// parseStart parses an RFC 3339 start time. When future is set the start
// must lie strictly after now.
func parseStart(raw string, now time.Time, future bool) (time.Time, error) {
    t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
    if err != nil {
        return time.Time{}, apperr.Validation("Invalid start time.", map[string][]string{
            "startsAtIso": {"Must be an ISO 8601 date-time."},
        })
    }
    if future && !t.After(now) {
        return time.Time{}, apperr.Validation("Start time must be in the future.", map[string][]string{
            "startsAtIso": {"Start time must be in the future."},
        })
    }
    return t.UTC(), nil
}

type runLocation struct {
    LocationID   uint64   `json:"locationId"`
    City         string   `json:"city"`
    Municipality string   `json:"municipality"`
    Lat          *float64 `json:"lat"`
    Lng          *float64 `json:"lng"`
}

type runHost struct {
    UserID   uint64 `json:"userId"`
    Username string `json:"username"`
}

type currentRating struct {
    RatingID uint64 `json:"ratingId"`
    Score    int    `json:"score"`
    Comment  string `json:"comment"`
}

type runItem struct {
    RunID              uint64         `json:"runId"`
    Title              string         `json:"title"`
    Route              string         `json:"route"`
    StartsAtIso        string         `json:"startsAtIso"`
    StartsIn           string         `json:"startsIn"`
    DistanceKm         float64        `json:"distanceKm"`
    PaceMinPerKm       float64        `json:"paceMinPerKm"`
    Location           runLocation    `json:"location"`
    Host               runHost        `json:"host"`
    ParticipantUserIDs []uint64       `json:"participantUserIds"`
    RatedByCurrentUser bool           `json:"ratedByCurrentUser"`
    CurrentUserRating  *currentRating `json:"currentUserRating"`
}

// List handles GET /api/runs?q=&maxPace=.
func (h *RunHandler) List(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    filter := repository.RunFilter{Query: strings.TrimSpace(c.QueryParam("q"))}
    if raw := strings.TrimSpace(c.QueryParam("maxPace")); raw != "" {
        pace, err := strconv.ParseFloat(raw, 64)
        if err != nil || pace <= 0 {
            return apperr.Validation("Invalid runs query.", map[string][]string{
                "maxPace": {"maxPace must be a positive number."},
            })
        }
        filter.MaxPace = &pace
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    rows, err := h.Runs.List(ctx, filter)
    if err != nil {
        return apperr.Internal(err)
    }
    runIDs := lo.Map(rows, func(r repository.RunListRow, _ int) uint64 { return r.Run.ID })
    mine, err := h.Ratings.ByRaterForRuns(ctx, id.UserID, runIDs)
    if err != nil {
        return apperr.Internal(err)
    }

    now := h.now()
    items := lo.Map(rows, func(r repository.RunListRow, _ int) runItem {
        item := runItem{
            RunID:        r.Run.ID,
            Title:        r.Run.Title,
            Route:        r.Run.Route,
            StartsAtIso:  isoTime(r.Run.StartsAt),
            StartsIn:     timediff.TimeDiff(r.Run.StartsAt, timediff.WithStartTime(now)),
            DistanceKm:   r.Run.DistanceKm,
            PaceMinPerKm: r.Run.PaceMinPerKm,
            Location: runLocation{
                LocationID:   r.Location.ID,
                City:         r.Location.City,
                Municipality: r.Location.Municipality,
                Lat:          r.Location.Lat,
                Lng:          r.Location.Lng,
            },
            Host:               runHost{UserID: r.Run.HostUserID, Username: r.HostUsername},
            ParticipantUserIDs: r.ParticipantIDs,
        }
        if rt, ok := mine[r.Run.ID]; ok {
            item.RatedByCurrentUser = true
            item.CurrentUserRating = &currentRating{RatingID: rt.ID, Score: rt.Score, Comment: rt.Comment}
        }
        return item
    })
    return ok(c, echo.Map{"runs": items, "currentUserId": id.UserID})
}

// Create handles POST /api/runs. The caller becomes the host and its first
// participant.
func (h *RunHandler) Create(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    var req createRunReq
    if err := bindAndValidate(c, &req, req.trim); err != nil {
        return err
    }
    startsAt, err := parseStart(req.StartsAtIso, h.now(), true)
    if err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    run := &model.Run{
        Title:        req.Title,
        Route:        req.Route,
        StartsAt:     startsAt,
        DistanceKm:   req.DistanceKm,
        PaceMinPerKm: req.PaceMinPerKm,
        HostUserID:   id.UserID,
    }
    loc := repository.LocationInput{City: req.City, Municipality: req.Municipality, Lat: req.Lat, Lng: req.Lng}
    if err := h.Runs.Create(ctx, run, loc); err != nil {
        return storeErr(err, "User")
    }

    h.audit(queue.KindRunCreated, id.UserID, run.ID, map[string]string{"title": run.Title})
    return created(c, echo.Map{"run": echo.Map{"runId": run.ID, "title": run.Title}})
}

// loadRun parses :id and loads the run.
func (h *RunHandler) loadRun(c echo.Context) (*model.Run, error) {
    runID, err := pathID(c, "id")
    if err != nil {
        return nil, err
    }
    ctx, cancel := reqCtx(c)
    defer cancel()
    run, err := h.Runs.GetByID(ctx, runID)
    if err != nil {
        return nil, storeErr(err, "Run")
    }
    return run, nil
}

// Update handles PATCH /api/runs/:id (host only). The start time is not
// required to be in the future here.
func (h *RunHandler) Update(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    run, err := h.loadRun(c)
    if err != nil {
        return err
    }
    if err := service.CanModifyRun(id, run); err != nil {
        return err
    }
    var req updateRunReq
    if err := bindAndValidate(c, &req, req.trim); err != nil {
        return err
    }
    startsAt, err := parseStart(req.StartsAtIso, h.now(), false)
    if err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    run.Title = req.Title
    run.Route = req.Route
    run.StartsAt = startsAt
    run.DistanceKm = req.DistanceKm
    run.PaceMinPerKm = req.PaceMinPerKm
    loc := repository.LocationInput{City: req.City, Municipality: req.Municipality}
    if err := h.Runs.Update(ctx, run, loc); err != nil {
        return storeErr(err, "Run")
    }
    return ok(c, echo.Map{"run": echo.Map{"runId": run.ID, "title": run.Title}})
}

// Delete handles DELETE /api/runs/:id (host only).
func (h *RunHandler) Delete(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    run, err := h.loadRun(c)
    if err != nil {
        return err
    }
    if err := service.CanModifyRun(id, run); err != nil {
        return err
    }
    return h.deleteRun(c, id, run)
}

// deleteRun runs the cascade and reports it. Shared with the admin route.
func (d *Deps) deleteRun(c echo.Context, id *model.Identity, run *model.Run) error {
    ctx, cancel := reqCtx(c)
    defer cancel()
    if err := d.Cascade.DeleteRun(ctx, run.ID); err != nil {
        return storeErr(err, "Run")
    }
    d.countCascade("run")
    d.audit(queue.KindRunDeleted, id.UserID, run.ID, map[string]string{"title": run.Title})
    return ok(c, echo.Map{"deleted": true})
}

// Join handles POST /api/runs/:id/join. Joining twice succeeds and reports
// alreadyJoined.
func (h *RunHandler) Join(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    run, err := h.loadRun(c)
    if err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    already, err := h.Members.Join(ctx, run.ID, id.UserID)
    if err != nil {
        return storeErr(err, "Run")
    }
    if already {
        return ok(c, echo.Map{"joined": true, "alreadyJoined": true})
    }
    return ok(c, echo.Map{"joined": true})
}
