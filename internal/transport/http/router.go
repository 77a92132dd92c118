package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/sakashimaa/go-marketplace/internal/transport/http/handler"
)

type Handlers struct {
	Customer *handler.CustomerHandler
	Product  *handler.ProductHandler
	Order    *handler.OrderHandler
}

func RegisterRoutes(app *fiber.App, h *Handlers) {
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api")

	customers := api.Group("/customers")
	customers.Post("", h.Customer.Create)
	customers.Get("/:id", h.Customer.FindByID)

	products := api.Group("/products")
	products.Post("", h.Product.Create)
	products.Get("/:id", h.Product.FindByID)
	products.Get("", h.Product.List)

	orders := api.Group("/orders")
	orders.Post("", h.Order.Create)
	orders.Get("/:id", h.Order.FindByID)
}
