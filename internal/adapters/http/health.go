package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
)

// HealthHandler returns a basic liveness check.
func HealthHandler(deps *Dependencies) fiber.Handler {
	startedAt := time.Now()

	return func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"uptime":  time.Since(startedAt).String(),
			"version": "dev",
		})
	}
}

var errDisconnected = errors.New("disconnected")

type readinessCheck struct {
	name     string
	required bool
	// nil when the backing service is not configured
	probe func(ctx context.Context) error
}

// ReadyHandler probes the catalogue store, NATS and the cache. Only a
// failing catalogue store makes the service unready; the others degrade
// caching and events but plans are still served.
func ReadyHandler(deps *Dependencies) fiber.Handler {
	checks := []readinessCheck{
		{name: "database", required: true},
		{name: "nats"},
		{name: "cache"},
	}
	if deps.DB != nil {
		checks[0].probe = deps.DB.Ping
	}
	if deps.NATS != nil {
		checks[1].probe = func(context.Context) error {
			if !deps.NATS.IsConnected() {
				return errDisconnected
			}
			return nil
		}
	}
	if deps.Cache != nil {
		checks[2].probe = deps.Cache.Ping
	}

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 3*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		status, code := "ready", fiber.StatusOK

		for _, chk := range checks {
			if chk.probe == nil {
				results[chk.name] = "not configured"
				continue
			}
			err := chk.probe(ctx)
			if err == nil {
				results[chk.name] = "ok"
				continue
			}
			results[chk.name] = "error: " + err.Error()
			if chk.required {
				status, code = "not ready", fiber.StatusServiceUnavailable
			} else if code == fiber.StatusOK {
				status = "degraded"
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	}
}
