package middleware

import (
    "math"
    "strconv"

    "github.com/charmbracelet/log"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/runly/internal/apperr"
    "github.com/iliyamo/runly/internal/config"
    "github.com/iliyamo/runly/internal/metrics"
    "github.com/iliyamo/runly/internal/ratelimit"
)

// RateLimit counts every request to the wrapped route per (endpoint,
// client address) and rejects the ones over the limit with 429 before the
// handler runs. Limiter failures are logged and the request is let
// through.
func RateLimit(cfg config.RateLimitConfig, endpoint string, l ratelimit.Limiter, m *metrics.Metrics) echo.MiddlewareFunc {
    if !cfg.Enabled || l == nil {
        return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            key := buildRateKey(endpoint, c)
            res, err := l.Allow(c.Request().Context(), key)
            if err != nil {
                log.Warn("ratelimit: backend error", "key", key, "err", err)
                return next(c)
            }

            h := c.Response().Header()
            h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
            h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))

            if !res.Allowed {
                secs := int(math.Ceil(res.RetryAfter.Seconds()))
                if secs < 1 {
                    secs = 1
                }
                h.Set("Retry-After", strconv.Itoa(secs))
                if cfg.Debug {
                    log.Info("ratelimit: block", "key", key, "retry_after", secs)
                }
                if m != nil {
                    m.LoginRateLimited.Inc()
                }
                return apperr.WithDetails(apperr.CodeRateLimited, "Too many attempts. Try again later.",
                    map[string]any{"retryAfterSeconds": secs})
            }
            if cfg.Debug {
                h.Set("X-RateLimit-Key", key)
            }
            return next(c)
        }
    }
}

func buildRateKey(endpoint string, c echo.Context) string {
    ip := c.RealIP()
    if ip == "" {
        ip = "unknown"
    }
    return endpoint + ":" + ip
}
