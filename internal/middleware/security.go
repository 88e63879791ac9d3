package middleware

import (
    "net/http"
    "net/url"
    "strings"

    "github.com/labstack/echo/v4"
    echomw "github.com/labstack/echo/v4/middleware"

    "github.com/iliyamo/runly/internal/apperr"
)

// SecurityHeaders sets the hardening headers on every response. echo's
// Secure middleware covers all but Permissions-Policy.
func SecurityHeaders() echo.MiddlewareFunc {
    secure := echomw.SecureWithConfig(echomw.SecureConfig{
        XSSProtection:         "0",
        ContentTypeNosniff:    "nosniff",
        XFrameOptions:         "DENY",
        ReferrerPolicy:        "strict-origin-when-cross-origin",
        ContentSecurityPolicy: "default-src 'self'; frame-ancestors 'none'",
    })
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        h := secure(next)
        return func(c echo.Context) error {
            c.Response().Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")
            return h(c)
        }
    }
}

// CORS allows allowedOrigin, with credentials, to call the API from the
// browser. An empty allowedOrigin means same origin only.
func CORS(allowedOrigin string) echo.MiddlewareFunc {
    return echomw.CORSWithConfig(echomw.CORSConfig{
        AllowOriginFunc: func(origin string) (bool, error) {
            return allowedOrigin != "" && strings.EqualFold(origin, allowedOrigin), nil
        },
        AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
        AllowHeaders:     []string{echo.HeaderContentType},
        AllowCredentials: true,
        MaxAge:           600,
    })
}

// CSRF rejects mutating requests whose Origin (or, lacking it, Referer)
// is neither the request's own origin nor allowedOrigin. Requests carrying
// neither header pass.
func CSRF(allowedOrigin string) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            req := c.Request()
            switch req.Method {
            case http.MethodGet, http.MethodHead, http.MethodOptions:
                return next(c)
            }
            origin := req.Header.Get(echo.HeaderOrigin)
            if origin == "" {
                if ref := req.Header.Get("Referer"); ref != "" {
                    origin = originOf(ref)
                }
            }
            if origin == "" {
                return next(c)
            }
            self := c.Scheme() + "://" + req.Host
            if strings.EqualFold(origin, self) || (allowedOrigin != "" && strings.EqualFold(origin, allowedOrigin)) {
                return next(c)
            }
            return apperr.New(apperr.CodeCSRFBlocked, "Cross-site request blocked.")
        }
    }
}

func originOf(raw string) string {
    u, err := url.Parse(raw)
    if err != nil || u.Scheme == "" || u.Host == "" {
        return "null"
    }
    return u.Scheme + "://" + u.Host
}
