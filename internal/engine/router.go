package engine

import "github.com/gofiber/fiber/v2"

func RegisterReaderRoutes(app *fiber.App, h *Handler) {
	app.Get("/reader/:module", h.Read)
	app.Get("/reader/:module/:item", h.Read)
}

func RegisterFileRoutes(app *fiber.App, h *FileHandler, middleware ...fiber.Handler) {
	app.Get("/files/:id", h.Serve)

	files := app.Group("/api/files", middleware...)
	files.Get("/", h.List)
	files.Post("/", h.Upload)
	files.Delete("/:id", h.Delete)
}
