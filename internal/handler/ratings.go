package handler

import (
    "math"
    "strconv"
    "strings"

    "github.com/labstack/echo/v4"
    "github.com/samber/lo"

    "github.com/iliyamo/runly/internal/apperr"
    "github.com/iliyamo/runly/internal/model"
    "github.com/iliyamo/runly/internal/queue"
    "github.com/iliyamo/runly/internal/repository"
    "github.com/iliyamo/runly/internal/service"
)

// RatingHandler serves host ratings.
type RatingHandler struct {
    *Deps
}

func NewRatingHandler(d *Deps) *RatingHandler { return &RatingHandler{Deps: d} }

type createRatingReq struct {
    RunID   uint64 `json:"runId" validate:"required,gt=0"`
    Score   int    `json:"score" validate:"required,min=1,max=5"`
    Comment string `json:"comment" validate:"required,min=1,max=1000"`
}

type updateRatingReq struct {
    Score   int    `json:"score" validate:"required,min=1,max=5"`
    Comment string `json:"comment" validate:"required,min=1,max=1000"`
}

type ratingItem struct {
    RatingID   uint64 `json:"ratingId"`
    RunID      uint64 `json:"runId"`
    Score      int    `json:"score"`
    Comment    string `json:"comment"`
    FromUserID uint64 `json:"fromUserId"`
    ToUserID   uint64 `json:"toUserId"`
}

func ratingOf(rt *model.Rating) ratingItem {
    return ratingItem{
        RatingID:   rt.ID,
        RunID:      rt.RunID,
        Score:      rt.Score,
        Comment:    rt.Comment,
        FromUserID: rt.FromUserID,
        ToUserID:   rt.ToUserID,
    }
}

// Create handles POST /api/ratings. Only participants other than the host
// may rate, once per run.
func (h *RatingHandler) Create(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    var req createRatingReq
    if err := bindAndValidate(c, &req, func() { req.Comment = strings.TrimSpace(req.Comment) }); err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    run, err := h.Runs.GetByID(ctx, req.RunID)
    if err != nil {
        return storeErr(err, "Run")
    }
    member, err := h.Members.IsMember(ctx, run.ID, id.UserID)
    if err != nil {
        return apperr.Internal(err)
    }
    rated, err := h.Ratings.HasRated(ctx, run.ID, id.UserID)
    if err != nil {
        return apperr.Internal(err)
    }
    if err := service.CanRate(id, run, member, rated); err != nil {
        return err
    }

    rt := &model.Rating{
        RunID:      run.ID,
        FromUserID: id.UserID,
        ToUserID:   run.HostUserID,
        Score:      req.Score,
        Comment:    req.Comment,
    }
    // A concurrent duplicate surfaces here as ErrRatingExists.
    if err := h.Ratings.Create(ctx, rt); err != nil {
        return storeErr(err, "Run")
    }

    h.audit(queue.KindRatingCreated, id.UserID, rt.ID, map[string]string{
        "run_id": strconv.FormatUint(rt.RunID, 10),
        "score":  strconv.Itoa(rt.Score),
    })
    return created(c, echo.Map{"rating": ratingOf(rt)})
}

// ownRating loads :id and checks author-or-admin.
func (h *RatingHandler) ownRating(c echo.Context, id *model.Identity) (*model.Rating, error) {
    ratingID, err := pathID(c, "id")
    if err != nil {
        return nil, err
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    rt, err := h.Ratings.GetByID(ctx, ratingID)
    if err != nil {
        return nil, storeErr(err, "Rating")
    }
    if err := service.CanModifyRating(id, rt); err != nil {
        return nil, err
    }
    return rt, nil
}

// Update handles PATCH /api/ratings/:id.
func (h *RatingHandler) Update(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    rt, err := h.ownRating(c, id)
    if err != nil {
        return err
    }
    var req updateRatingReq
    if err := bindAndValidate(c, &req, func() { req.Comment = strings.TrimSpace(req.Comment) }); err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    if err := h.Ratings.Update(ctx, rt.ID, req.Score, req.Comment); err != nil {
        return storeErr(err, "Rating")
    }
    rt.Score = req.Score
    rt.Comment = req.Comment
    return ok(c, echo.Map{"rating": ratingOf(rt)})
}

// Delete handles DELETE /api/ratings/:id.
func (h *RatingHandler) Delete(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    rt, err := h.ownRating(c, id)
    if err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    if err := h.Ratings.Delete(ctx, rt.ID); err != nil {
        return apperr.Internal(err)
    }
    h.audit(queue.KindRatingDeleted, id.UserID, rt.ID, map[string]string{
        "run_id": strconv.FormatUint(rt.RunID, 10),
    })
    return ok(c, echo.Map{"deleted": true})
}

type receivedItem struct {
    RatingID     uint64 `json:"ratingId"`
    RunID        uint64 `json:"runId"`
    RunTitle     string `json:"runTitle"`
    Score        int    `json:"score"`
    Comment      string `json:"comment"`
    FromUserID   uint64 `json:"fromUserId"`
    FromUsername string `json:"fromUsername"`
}

// averageScore returns the mean rounded to two decimals, or nil when there
// are no ratings.
func averageScore(rows []repository.ReceivedRatingRow) *float64 {
    if len(rows) == 0 {
        return nil
    }
    sum := lo.SumBy(rows, func(r repository.ReceivedRatingRow) int { return r.Rating.Score })
    avg := math.Round(float64(sum)/float64(len(rows))*100) / 100
    return &avg
}

// ForUser handles GET /api/users/:id/ratings.
func (h *RatingHandler) ForUser(c echo.Context) error {
    if _, err := actor(c); err != nil {
        return err
    }
    userID, err := pathID(c, "id")
    if err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    exists, err := h.Users.Exists(ctx, userID)
    if err != nil {
        return apperr.Internal(err)
    }
    if !exists {
        return apperr.NotFound("User not found.")
    }
    rows, err := h.Ratings.ReceivedBy(ctx, userID)
    if err != nil {
        return apperr.Internal(err)
    }
    return ok(c, echo.Map{
        "toUserId":     userID,
        "averageScore": averageScore(rows),
        "totalRatings": len(rows),
        "ratings": lo.Map(rows, func(r repository.ReceivedRatingRow, _ int) receivedItem {
            return receivedItem{
                RatingID:     r.Rating.ID,
                RunID:        r.Rating.RunID,
                RunTitle:     r.RunTitle,
                Score:        r.Rating.Score,
                Comment:      r.Rating.Comment,
                FromUserID:   r.Rating.FromUserID,
                FromUsername: r.FromUsername,
            }
        }),
    })
}
