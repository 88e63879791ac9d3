package handler

import (
    "errors"
    "net/http"
    "strings"

    "github.com/charmbracelet/log"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/runly/internal/apperr"
    "github.com/iliyamo/runly/internal/gravatar"
    "github.com/iliyamo/runly/internal/middleware"
    "github.com/iliyamo/runly/internal/model"
    "github.com/iliyamo/runly/internal/queue"
    "github.com/iliyamo/runly/internal/repository"
    "github.com/iliyamo/runly/internal/utils"
)

// AuthHandler serves registration, login, logout and the current user.
type AuthHandler struct {
    *Deps
}

func NewAuthHandler(d *Deps) *AuthHandler { return &AuthHandler{Deps: d} }

// ----- DTOs -----

type registerReq struct {
    Email        string  `json:"email" validate:"required,email,max=255"`
    Password     string  `json:"password" validate:"required,min=6,maxbytes=72"`
    Username     string  `json:"username" validate:"required,min=3,max=100"`
    AvatarURL    *string `json:"avatarUrl" validate:"omitempty,url,max=500"`
    Age          int     `json:"age" validate:"required,min=10,max=120"`
    Gender       string  `json:"gender" validate:"required,oneof=muski zenski drugo"`
    FitnessLevel string  `json:"fitnessLevel" validate:"required,oneof=pocetni srednji napredni"`
    PaceMinPerKm float64 `json:"paceMinPerKm" validate:"required,gt=0"`
    Role         string  `json:"role" validate:"omitempty,oneof=admin coach runner"`
}

type loginReq struct {
    Email        string `json:"email" validate:"required,email"`
    Password     string `json:"password" validate:"required"`
    CaptchaToken string `json:"captchaToken"`
}

type userPart struct {
    UserID   uint64 `json:"userId"`
    Email    string `json:"email"`
    Username string `json:"username"`
    Role     string `json:"role"`
}

type profilePart struct {
    UserID       uint64  `json:"userId"`
    Email        string  `json:"email"`
    Username     string  `json:"username"`
    Role         string  `json:"role"`
    Age          int     `json:"age"`
    Gender       string  `json:"gender"`
    FitnessLevel string  `json:"fitnessLevel"`
    PaceMinPerKm float64 `json:"paceMinPerKm"`
    AvatarURL    *string `json:"avatarUrl"`
}

func (h *AuthHandler) profileOf(u *model.User) profilePart {
    return profilePart{
        UserID:       u.ID,
        Email:        u.Email,
        Username:     u.Username,
        Role:         string(u.Role),
        Age:          u.Age,
        Gender:       u.Gender,
        FitnessLevel: u.FitnessLevel,
        PaceMinPerKm: u.PaceMinPerKm,
        AvatarURL:    gravatar.Avatar(u.AvatarURL, u.Email, &h.Cfg.Gravatar),
    }
}

// emptyToNil trims s and turns an empty value into nil.
func emptyToNil(s *string) *string {
    if s == nil {
        return nil
    }
    v := strings.TrimSpace(*s)
    if v == "" {
        return nil
    }
    return &v
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := bindAndValidate(c, &req, func() {
        req.Email = repository.NormalizeEmail(req.Email)
        req.Username = strings.TrimSpace(req.Username)
        req.AvatarURL = emptyToNil(req.AvatarURL)
    }); err != nil {
        return err
    }

    role := model.Role(req.Role)
    if role == "" || !h.Cfg.AllowRoleSelfAssign {
        role = model.RoleRunner
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    if _, err := h.Users.GetByEmail(ctx, req.Email); err == nil {
        return apperr.New(apperr.CodeEmailTaken, "Email is already registered.")
    } else if !errors.Is(err, repository.ErrNotFound) {
        return apperr.Internal(err)
    }
    taken, err := h.Users.UsernameTaken(ctx, req.Username, 0)
    if err != nil {
        return apperr.Internal(err)
    }
    if taken {
        return apperr.New(apperr.CodeUsernameTaken, "Username is already taken.")
    }

    hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost)
    if err != nil {
        return apperr.Internal(err)
    }
    u := &model.User{
        Email:        req.Email,
        Username:     req.Username,
        PasswordHash: hash,
        AvatarURL:    req.AvatarURL,
        Age:          req.Age,
        Gender:       req.Gender,
        FitnessLevel: req.FitnessLevel,
        PaceMinPerKm: req.PaceMinPerKm,
        Role:         role,
    }
    if err := h.Users.Create(ctx, u); err != nil {
        return storeErr(err, "User")
    }

    h.audit(queue.KindUserRegistered, u.ID, u.ID, map[string]string{"role": string(u.Role)})
    return created(c, userPart{UserID: u.ID, Email: u.Email, Username: u.Username, Role: string(u.Role)})
}

// Login handles POST /api/auth/login. The rate limiter runs as route
// middleware before this handler; the captcha is checked before the
// credentials.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := bindAndValidate(c, &req, func() {
        req.Email = repository.NormalizeEmail(req.Email)
    }); err != nil {
        return err
    }

    ctx, cancel := reqCtx(c)
    defer cancel()

    passed, err := h.Captcha.Verify(ctx, req.CaptchaToken, c.RealIP())
    if err != nil {
        log.Warn("captcha verification failed", "err", err)
    }
    if err != nil || !passed {
        return apperr.New(apperr.CodeCaptchaFailed, "Captcha verification failed.")
    }

    u, err := h.Users.GetByEmail(ctx, req.Email)
    if errors.Is(err, repository.ErrNotFound) {
        return apperr.New(apperr.CodeInvalidCredentials, "Invalid email or password.")
    }
    if err != nil {
        return apperr.Internal(err)
    }
    if !utils.VerifyPassword(u.PasswordHash, req.Password) {
        return apperr.New(apperr.CodeInvalidCredentials, "Invalid email or password.")
    }
    if utils.NeedsRehash(u.PasswordHash, h.Cfg.BcryptCost) {
        if hash, err := utils.HashPassword(req.Password, h.Cfg.BcryptCost); err == nil {
            if err := h.Users.UpdatePasswordHash(ctx, u.ID, hash); err != nil {
                log.Warn("password rehash not stored", "user_id", u.ID, "err", err)
            }
        }
    }

    token, _, err := h.Sessions.Create(ctx, u.ID)
    if err != nil {
        return apperr.Internal(err)
    }
    h.setSessionCookie(c, token, int(h.Sessions.TTL().Seconds()))

    return ok(c, echo.Map{"user": userPart{UserID: u.ID, Email: u.Email, Username: u.Username, Role: string(u.Role)}})
}

// Logout handles POST /api/auth/logout. It always succeeds: the session is
// deleted when present and the cookie is cleared either way.
func (h *AuthHandler) Logout(c echo.Context) error {
    if ck, err := c.Cookie(middleware.SessionCookieName); err == nil && ck.Value != "" {
        ctx, cancel := reqCtx(c)
        defer cancel()
        if err := h.Sessions.Invalidate(ctx, ck.Value); err != nil {
            log.Warn("logout: session not deleted", "err", err)
        }
    }
    h.setSessionCookie(c, "", -1)
    return ok(c, echo.Map{"loggedOut": true})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(c echo.Context) error {
    id, err := actor(c)
    if err != nil {
        return err
    }
    ctx, cancel := reqCtx(c)
    defer cancel()

    u, err := h.Users.GetByID(ctx, id.UserID)
    if errors.Is(err, repository.ErrNotFound) {
        return apperr.Unauthorized("User not found for session.")
    }
    if err != nil {
        return apperr.Internal(err)
    }
    return ok(c, echo.Map{"user": h.profileOf(u)})
}

func (h *AuthHandler) setSessionCookie(c echo.Context, token string, maxAge int) {
    c.SetCookie(&http.Cookie{
        Name:     middleware.SessionCookieName,
        Value:    token,
        Path:     "/",
        MaxAge:   maxAge,
        HttpOnly: true,
        Secure:   h.Cfg.CookieSecure,
        SameSite: http.SameSiteLaxMode,
    })
}
