package middleware

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/example/pianostore/internal/metrics"
)

// Metrics records count, errors and latency of every request by route pattern.
func Metrics(m *metrics.AppMetrics) fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			status = fiber.StatusInternalServerError
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
		}

		route := "unknown"
		if r := c.Route(); r != nil && r.Path != "" {
			route = r.Path
		}

		m.RecordHTTP(c.UserContext(), c.Method(), route, status, time.Since(start))
		return err
	}
}
