package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// cachePolicies maps GET path prefixes to Cache-Control values, most
// specific first. Station data only changes on a catalogue refresh.
var cachePolicies = []struct {
	prefix string
	value  string
}{
	{"/v1/stations/nearby", "public, max-age=300"},
	{"/v1/stations/", "public, max-age=600"},
	{"/docs", "public, max-age=3600"},
}

// CachingMiddleware sets Cache-Control on GET responses. Handlers that set
// their own header win.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		if c.Method() != fiber.MethodGet || c.GetRespHeader(fiber.HeaderCacheControl) != "" {
			return err
		}

		path := c.Path()
		if isProbe(path) {
			c.Set(fiber.HeaderCacheControl, "no-cache")
			return err
		}
		for _, p := range cachePolicies {
			if strings.HasPrefix(path, p.prefix) {
				c.Set(fiber.HeaderCacheControl, p.value)
				break
			}
		}
		return err
	}
}
