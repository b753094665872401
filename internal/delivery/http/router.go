package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fleetview/backend/internal/service"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, tracking *service.TrackingService) {
	handler := NewHandler(tracking)

	// Health check
	app.Get("/health", handler.HealthCheck)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// API v1 routes
	api := app.Group("/api/v1")
	{
		// Map sessions
		sessions := api.Group("/sessions")
		sessions.Post("/", handler.CreateSession)
		sessions.Get("/", handler.ListSessions)
		sessions.Get("/:id/frame", handler.GetFrame)
		sessions.Put("/:id/vehicle", handler.SelectVehicle)
		sessions.Delete("/:id/vehicle", handler.ClearVehicle)
		sessions.Post("/:id/positions", handler.PushPosition)
		sessions.Post("/:id/zoom", handler.UserZoom)
		sessions.Post("/:id/pan", handler.UserPan)
		sessions.Delete("/:id", handler.CloseSession)

		// Transport push
		api.Post("/positions", handler.PublishPosition)

		// Persisted trails
		api.Get("/trails/:vehicle", handler.GetTrail)
		api.Delete("/trails/:vehicle", handler.DeleteTrail)
	}
}

// ErrorHandler renders errors in the API's error envelope
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
