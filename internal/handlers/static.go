package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/filesystem"

	"github.com/aira-metrics/dashboard/internal/assets"
)

// ServeStatic serves the embedded stylesheet and scripts. Mount it under
// /static.
func ServeStatic() fiber.Handler {
	return filesystem.New(filesystem.Config{
		Root:   http.FS(assets.Static()),
		Browse: false,
		MaxAge: 3600,
	})
}
