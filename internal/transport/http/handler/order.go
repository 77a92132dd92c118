package handler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/internal/service"
	"github.com/sakashimaa/go-marketplace/pkg/mylogger"
	"github.com/sakashimaa/go-marketplace/pkg/utils"
)

type OrderHandler struct {
	service  service.OrderService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewOrderHandler(service service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

type OrderItemInput struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int64  `json:"quantity" validate:"required,gt=0"`
}

type CreateOrderInput struct {
	CustomerID string           `json:"customer_id" validate:"required,uuid"`
	Items      []OrderItemInput `json:"items" validate:"required,min=1,dive"`
}

func (h *OrderHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := contextWithTimeout(c, 5*time.Second)
	defer cancel()

	input := new(CreateOrderInput)

	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(
			ctx,
			h.logger,
			"failed to parse body in create order",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "error parsing body",
		})
	}

	if err := h.validate.Struct(input); err != nil {
		mylogger.Warn(
			ctx,
			h.logger,
			"failed to validate input",
			zap.Error(err),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": utils.FormatValidationError(err),
		})
	}

	items := make([]service.OrderItemInput, 0, len(input.Items))
	for _, item := range input.Items {
		items = append(items, service.OrderItemInput{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
		})
	}

	order, err := h.service.CreateOrder(ctx, input.CustomerID, items)
	if err != nil {
		return writeError(ctx, c, h.logger, "create order failed", err)
	}

	mylogger.Info(
		ctx,
		h.logger,
		"create order succeeded",
		zap.String("order_id", order.ID),
		zap.Int64("total_price", order.TotalPrice),
	)

	return c.Status(fiber.StatusCreated).JSON(order)
}

func (h *OrderHandler) FindByID(c *fiber.Ctx) error {
	ctx, cancel := contextWithTimeout(c, time.Second)
	defer cancel()

	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id is required",
		})
	}

	order, err := h.service.GetOrder(ctx, id)
	if err != nil {
		return writeError(ctx, c, h.logger, "find order failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(order)
}
