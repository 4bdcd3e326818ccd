package handler

import (
	"database/sql"

	"github.com/gofiber/fiber/v2"

	"meterapi/internal/service"
)

// RegisterRoutes attaches HTTP routes to the provided Fiber app. Static
// routes are registered before the /:customerCode wildcard so /health and
// friends never match as customer codes.
func RegisterRoutes(app *fiber.App, db *sql.DB, svc service.MeasurementService) {
	// Serve OpenAPI spec and Swagger UI
	app.Get("/openapi.yaml", func(c *fiber.Ctx) error {
		c.Type("yaml")
		return c.SendFile("openapi.yaml")
	})
	app.Get("/docs", func(c *fiber.Ctx) error {
		html := `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <title>API Docs</title>
  <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
</head>
<body>
  <div id="swagger-ui"></div>
  <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
  <script>
    window.ui = SwaggerUIBundle({
      url: '/openapi.yaml',
      dom_id: '#swagger-ui',
      presets: [SwaggerUIBundle.presets.apis],
      layout: 'BaseLayout'
    });
  </script>
</body>
</html>`
		return c.Type("html").SendString(html)
	})

	// Health endpoint: checks DB connectivity only
	app.Get("/health", HealthCheck(db))

	// Simple liveness probe
	app.Get("/healthz", LivenessProbe())

	app.Post("/upload", UploadMeasure(svc))
	app.Patch("/confirm", ConfirmMeasure(svc))
	app.Get("/measures/:uuid/image", GetMeasureImage(svc))
	app.Get("/:customerCode/list", ListMeasures(svc))
}
