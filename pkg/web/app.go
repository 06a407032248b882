package web

import (
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

// NewApp builds the fiber application serving the workflow front door.
func NewApp(handlers *APIHandlers) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:     "journey-worker",
		JSONEncoder: json.Marshal,
		JSONDecoder: json.Unmarshal,
	})
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Journey Worker")
	})

	w := app.Group("/workflows")
	w.Post("/", handlers.ProcessWorkflows)
	w.Post("/cron", handlers.ProcessCronWorkflow)
	w.Get("/job/:jobId", handlers.GetJobStatus)
	w.Get("/:id", handlers.ProcessWorkflow)

	app.Get("/nodes", handlers.GetNodeTypes)
	app.Get("/health", handlers.HealthCheck)

	return app
}
