package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
)

func RegisterRoutes(app *fiber.App, handler *Handler) {
	app.Use(handler.RequestMetrics)

	app.Get("/healthz", handler.Health)
	app.Get("/metrics", adaptor.HTTPHandler(handler.metrics.Handler()))

	api := app.Group("/api")

	auth := api.Group("/auth")
	auth.Post("/register", handler.Register)
	auth.Post("/login", handler.Login)
	auth.Post("/change-password", handler.ChangePassword)

	medications := api.Group("/medications", handler.AuthRequired)
	medications.Get("", handler.ListMedications)
	medications.Post("", handler.AddMedication)
	medications.Delete("/:id", handler.DeleteMedication)

	logs := api.Group("/logs", handler.AuthRequired)
	logs.Get("", handler.ListLogs)
	logs.Post("/:type", handler.CreateLog)

	export := api.Group("/export", handler.AuthRequired)
	export.Get("/summary", handler.ExportSummary)
	export.Get("/csv", handler.ExportCSV)

	app.Use(handler.NotFound)
}
