// Package handler contains the echo handlers of the /api surface. Every
// handler follows the same order: the router has already resolved the
// session, then path ids are validated, the target is loaded (404), the
// authorization rule is applied (403), the body is validated (400), the
// mutation runs and the response is shaped.
package handler

import (
    "context"
    "errors"
    "strconv"
    "time"

    "github.com/charmbracelet/log"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/runly/internal/apperr"
    "github.com/iliyamo/runly/internal/config"
    "github.com/iliyamo/runly/internal/metrics"
    "github.com/iliyamo/runly/internal/middleware"
    "github.com/iliyamo/runly/internal/model"
    "github.com/iliyamo/runly/internal/queue"
    "github.com/iliyamo/runly/internal/repository"
    "github.com/iliyamo/runly/internal/service"
)

// Deps bundles what the handlers need. It is built once in the serve
// command and shared by every handler group.
type Deps struct {
    Cfg      config.Config
    Users    *repository.UserRepo
    Runs     *repository.RunRepo
    Members  *repository.MembershipRepo
    Messages *repository.MessageRepo
    Ratings  *repository.RatingRepo
    Cascade  *repository.CascadeRepo
    Sessions *service.SessionManager
    Captcha  service.CaptchaVerifier
    Audit    queue.Publisher
    Metrics  *metrics.Metrics
    Now      func() time.Time
}

func (d *Deps) now() time.Time {
    if d.Now != nil {
        return d.Now()
    }
    return time.Now()
}

func (d *Deps) audit(kind string, actorID, subjectID uint64, attrs map[string]string) {
    if d.Audit == nil {
        return
    }
    ev := queue.NewAuditEvent(kind, actorID, subjectID, attrs)
    if err := d.Audit.Publish(context.Background(), ev); err != nil {
        log.Warn("audit event dropped", "kind", kind, "subject_id", subjectID, "err", err)
    }
}

func (d *Deps) countCascade(kind string) {
    if d.Metrics != nil {
        d.Metrics.CascadeDeletes.WithLabelValues(kind).Inc()
    }
}

const requestTimeout = 5 * time.Second

func reqCtx(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), requestTimeout)
}

// actor returns the signed-in identity. Routes are registered behind
// RequireSession, so a nil identity here is still answered with 401.
func actor(c echo.Context) (*model.Identity, error) {
    id := middleware.CurrentIdentity(c)
    if id == nil {
        return nil, apperr.Unauthorized("Not signed in.")
    }
    return id, nil
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        return 0, apperr.Validation("Invalid id.", map[string][]string{
            name: {"Must be a positive integer."},
        })
    }
    return id, nil
}

// storeErr maps repository errors onto API errors. what names the missing
// resource in NOT_FOUND messages.
func storeErr(err error, what string) error {
    switch {
    case errors.Is(err, repository.ErrNotFound):
        return apperr.NotFound(what + " not found.")
    case errors.Is(err, repository.ErrEmailExists):
        return apperr.New(apperr.CodeEmailTaken, "Email is already registered.")
    case errors.Is(err, repository.ErrUsernameExists):
        return apperr.New(apperr.CodeUsernameTaken, "Username is already taken.")
    case errors.Is(err, repository.ErrRatingExists):
        return apperr.Conflict("You already rated this run.")
    case errors.Is(err, repository.ErrConflict):
        return apperr.Conflict("Conflicting update.")
    }
    return apperr.Internal(err)
}

const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// isoTime formats t like JavaScript's toISOString.
func isoTime(t time.Time) string { return t.UTC().Format(isoLayout) }
