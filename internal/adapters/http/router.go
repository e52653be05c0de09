package http

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/compress"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/gofiber/fiber/v2/middleware/timeout"
	"github.com/gofiber/websocket/v2"

	"github.com/samirrijal/fuelroute/internal/pkg/metrics"
)

// SetupRoutes registers all REST, GraphQL, and WebSocket routes.
func SetupRoutes(app *fiber.App, deps *Dependencies) {
	// Prometheus metrics
	app.Use(metrics.Middleware())
	app.Get("/metrics", metrics.Handler())

	app.Use(compress.New(compress.Config{
		Level: compress.LevelBestSpeed,
	}))

	app.Use(requestid.New())
	app.Use(RequestIDLogMiddleware())
	app.Use(AccessLogMiddleware())

	// Every plan costs a billable route provider call.
	if deps.RateLimitPerMinute > 0 {
		app.Use(limiter.New(limiter.Config{
			Max:        deps.RateLimitPerMinute,
			Expiration: time.Minute,
			Next: func(c *fiber.Ctx) bool {
				return isProbe(c.Path())
			},
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return newError(c, fiber.StatusTooManyRequests, "rate_limited", "too many requests, please try again later")
			},
		}))
	}

	app.Use(securityHeaders)

	app.Use(ETagMiddleware())
	app.Use(CachingMiddleware())

	// Health & readiness (no timeout)
	app.Get("/v1/health", HealthHandler(deps))
	app.Get("/v1/ready", ReadyHandler(deps))

	d := deps.requestTimeout()
	optimalRoute := timeout.NewWithContext(OptimalRouteHandler(deps), d)

	v1 := app.Group("/v1")
	v1.Post("/optimal-route", optimalRoute)
	v1.Get("/stations/nearby", timeout.NewWithContext(NearbyStationsHandler(deps), d))
	v1.Get("/stations/:id", timeout.NewWithContext(GetStationHandler(deps), d))

	// Path used by the original web client.
	app.Post("/api/optimal-route", optimalRoute)

	app.Post("/graphql", timeout.NewWithContext(GraphQLHandler(deps), d))

	// API documentation (Swagger UI)
	SetupDocs(app, deps.OpenAPIPath)

	// WebSocket
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws", websocket.New(WebSocketHandler(deps.NATS)))
}

func securityHeaders(c *fiber.Ctx) error {
	c.Set(fiber.HeaderXContentTypeOptions, "nosniff")
	c.Set(fiber.HeaderXFrameOptions, "DENY")
	c.Set(fiber.HeaderReferrerPolicy, "strict-origin-when-cross-origin")
	c.Set("X-API-Version", "1.0.0")
	return c.Next()
}

func isProbe(path string) bool {
	return path == "/v1/health" || path == "/v1/ready" || path == "/metrics"
}
