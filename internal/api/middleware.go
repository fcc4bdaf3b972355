package api

import (
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/yourusername/research-lab/internal/metrics"
)

// requestLogging logs each request and counts it by route and status.
func requestLogging(logger *logrus.Logger, reg *metrics.Registry) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}

			res := c.Response()
			status := res.Status
			reg.RecordHTTPRequest(c.Request().Method, c.Path(), strconv.Itoa(status), time.Since(start))

			entry := logger.WithFields(logrus.Fields{
				"method":     c.Request().Method,
				"route":      c.Path(),
				"status":     status,
				"latency_ms": float64(time.Since(start).Microseconds()) / 1000,
				"request_id": res.Header().Get(echo.HeaderXRequestID),
			})
			switch {
			case status >= 500:
				entry.Error("HTTP request")
			case status >= 400:
				entry.Warn("HTTP request")
			default:
				entry.Debug("HTTP request")
			}
			return nil
		}
	}
}
