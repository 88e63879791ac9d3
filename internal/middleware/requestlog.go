package middleware

import (
    "strconv"
    "time"

    "github.com/charmbracelet/log"
    "github.com/labstack/echo/v4"

    "github.com/iliyamo/runly/internal/metrics"
)

// RequestLog logs one line per request and counts it in
// runly_http_requests_total. The route label is the registered path
// pattern, so ids do not explode the label set.
func RequestLog(m *metrics.Metrics) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            start := time.Now()
            err := next(c)
            if err != nil {
                // Render now so the status below is the one the client sees.
                c.Error(err)
            }
            req, res := c.Request(), c.Response()
            route := c.Path()
            if route == "" {
                route = "unmatched"
            }
            if m != nil {
                m.RequestsTotal.WithLabelValues(req.Method, route, strconv.Itoa(res.Status)).Inc()
            }
            log.Debug("request",
                "method", req.Method,
                "path", req.URL.Path,
                "status", res.Status,
                "latency", time.Since(start),
                "request_id", res.Header().Get(echo.HeaderXRequestID),
            )
            return nil
        }
    }
}
