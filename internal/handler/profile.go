package handler

import (
    "errors"
    "strings"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/runly/internal/apperr"
    "github.com/iliyamo/runly/internal/repository"
)

// ProfileHandler serves the signed-in user's own profile.
type ProfileHandler struct {
    *AuthHandler
}

func NewProfileHandler(d *Deps) *ProfileHandler { return &ProfileHandler{AuthHandler: NewAuthHandler(d)} }

type profilePatchReq struct {
    Username     string  `json:"username" validate:"required,min=3,max=100"`
    AvatarURL    *string `json:"avatarUrl" validate:"omitempty,url,max=500"`
    Age          int     `json:"age" validate:"required,min=10,max=120"`
    Gender       string  `json:"gender" validate:"required,oneof=muski zenski drugo"`
    FitnessLevel string  `json:"fitnessLevel" validate:"required,oneof=pocetni srednji napredni"`
    PaceMinPerKm float64 `json:"paceMinPerKm" validate:"required,gt=0"`
}

// Get handles GET /api/profile/me.
func (h *ProfileHandler) Get(c echo.Context) error { return h.Me(c) }

// Update handles PATCH /api/profile/me. An empty avatarUrl clears the
// avatar.
func (h *ProfileHandler) Update(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    var req profilePatchReq
    if err := bindAndValidate(c, &req, func() {
        req.Username = strings.TrimSpace(req.Username)
        req.AvatarURL = emptyToNil(req.AvatarURL)
    }); err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    u, err := h.Users.GetByID(ctx, id.UserID)
    if errors.Is(err, repository.ErrNotFound) {
        return apperr.NotFound("User not found.")
    }
    if err != nil {
        return apperr.Internal(err)
    }
    taken, err := h.Users.UsernameTaken(ctx, req.Username, u.ID)
    if err != nil {
        return apperr.Internal(err)
    }
    if taken {
        return apperr.New(apperr.CodeUsernameTaken, "Username is already taken.")
    }

    u.Username = req.Username
    u.AvatarURL = req.AvatarURL
    u.Age = req.Age
    u.Gender = req.Gender
    u.FitnessLevel = req.FitnessLevel
    u.PaceMinPerKm = req.PaceMinPerKm
    if err := h.Users.UpdateProfile(ctx, u); err != nil {
        return storeErr(err, "User")
    }
    return ok(c, echo.Map{"user": h.profileOf(u)})
}
