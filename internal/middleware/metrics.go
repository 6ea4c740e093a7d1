package middleware

import (
	"strconv"
	"time"

	"github.com/arnold/achievements-api/internal/metrics"
	"github.com/gofiber/fiber/v2"
)

// Metrics records the duration of every request by route pattern.
func Metrics() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}
		metrics.RecordHTTPRequestDuration(c.Method(), c.Route().Path, strconv.Itoa(status), time.Since(start))
		return err
	}
}
