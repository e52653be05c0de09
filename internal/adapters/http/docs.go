package http

import (
	"log/slog"
	"os"

	"github.com/gofiber/fiber/v2"
)

// DefaultOpenAPIPath is where the API document lives relative to the repo root.
const DefaultOpenAPIPath = "api/openapi.yaml"

const swaggerUIHTML = `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Fuel Route API</title>
  <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui.css">
</head>
<body style="margin:0">
  <div id="swagger-ui"></div>
  <script src="https://cdn.jsdelivr.net/npm/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    SwaggerUIBundle({url: '/docs/openapi.yaml', dom_id: '#swagger-ui', deepLinking: true});
  </script>
</body>
</html>`

// SetupDocs serves Swagger UI at /docs and the OpenAPI document at
// /docs/openapi.yaml. The document is read once; when it is missing only
// the raw document route answers 404.
func SetupDocs(app *fiber.App, path string) {
	if path == "" {
		path = DefaultOpenAPIPath
	}
	doc, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("openapi document unavailable", "path", path, "error", err)
	}

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
		return c.SendString(swaggerUIHTML)
	})

	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		if doc == nil {
			return errNotFound(c, "openapi document not found")
		}
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(doc)
	})
}
