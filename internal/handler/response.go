package handler

import (
    "net/http"

    "github.com/charmbracelet/log"
    "github.com/labstack/echo/v4"
    "github.com/samber/oops"

    "github.com/iliyamo/runly/internal/apperr"
)

// envelope is the body of every API response.
type envelope struct {
    Success bool       `json:"success"`
    Data    any        `json:"data,omitempty"`
    Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
    Code    string `json:"code"`
    Message string `json:"message"`
    Details any    `json:"details,omitempty"`
}

func success(c echo.Context, status int, data any) error {
    return c.JSON(status, envelope{Success: true, Data: data})
}

func ok(c echo.Context, data any) error { return success(c, http.StatusOK, data) }

func created(c echo.Context, data any) error { return success(c, http.StatusCreated, data) }

// ErrorHandler renders every error returned by handlers and middleware in
// the response envelope. Coded errors keep their code; echo's own errors
// (unknown route, bad method, panics recovered by middleware) are mapped
// onto the closest code; anything else becomes INTERNAL_ERROR and is
// logged with its oops context.
func ErrorHandler(err error, c echo.Context) {
    if c.Response().Committed {
        return
    }

    var pub apperr.Public
    if he, ok := err.(*echo.HTTPError); ok {
        pub = fromHTTPError(he)
        if pub.Status >= http.StatusInternalServerError {
            log.Error("unhandled echo error", "path", c.Request().URL.Path, "err", he)
        }
    } else {
        pub = apperr.Resolve(err)
        if pub.Status >= http.StatusInternalServerError {
            fields := []any{"method", c.Request().Method, "path", c.Request().URL.Path, "err", err}
            if oe, ok := oops.AsOops(err); ok {
                fields = append(fields, "code", oe.Code(), "context", oe.Context())
            }
            log.Error("request failed", fields...)
        }
    }

    if c.Request().Method == http.MethodHead {
        _ = c.NoContent(pub.Status)
        return
    }
    _ = c.JSON(pub.Status, envelope{
        Success: false,
        Error:   &errorBody{Code: pub.Code, Message: pub.Message, Details: pub.Details},
    })
}

func fromHTTPError(he *echo.HTTPError) apperr.Public {
    code := apperr.CodeInternal
    msg := "Unexpected server error."
    switch he.Code {
    case http.StatusNotFound, http.StatusMethodNotAllowed:
        code, msg = apperr.CodeNotFound, "Route not found."
    case http.StatusBadRequest, http.StatusUnsupportedMediaType, http.StatusRequestEntityTooLarge:
        code, msg = apperr.CodeValidation, "Invalid request body."
    case http.StatusUnauthorized:
        code, msg = apperr.CodeUnauthorized, "Not signed in."
    case http.StatusForbidden:
        code, msg = apperr.CodeForbidden, "Forbidden."
    case http.StatusTooManyRequests:
        code, msg = apperr.CodeRateLimited, "Too many requests."
    }
    status := apperr.StatusFor(code)
    if code == apperr.CodeNotFound && he.Code == http.StatusMethodNotAllowed {
        status = http.StatusMethodNotAllowed
    }
    return apperr.Public{Status: status, Code: code, Message: msg}
}
