package handler

import (
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/internal/service"
	"github.com/sakashimaa/go-marketplace/pkg/mylogger"
	"github.com/sakashimaa/go-marketplace/pkg/utils"
)

type ProductHandler struct {
	service  service.ProductService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewProductHandler(service service.ProductService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

type CreateProductInput struct {
	Name          string `json:"name" validate:"required,min=3,max=100"`
	Price         int64  `json:"price" validate:"required,gt=0"`
	StockQuantity int64  `json:"stock_quantity" validate:"gte=0"`
}

func (h *ProductHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := contextWithTimeout(c, time.Second)
	defer cancel()

	input := new(CreateProductInput)

	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(
			ctx,
			h.logger,
			"failed to parse body in create product",
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

	product, err := h.service.Create(ctx, input.Name, input.Price, input.StockQuantity)
	if err != nil {
		return writeError(ctx, c, h.logger, "create product failed", err)
	}

	mylogger.Info(
		ctx,
		h.logger,
		"create product succeeded",
		zap.String("product_id", product.ID),
	)

	return c.Status(fiber.StatusCreated).JSON(product)
}

func (h *ProductHandler) FindByID(c *fiber.Ctx) error {
	ctx, cancel := contextWithTimeout(c, time.Second)
	defer cancel()

	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id is required",
		})
	}

	product, err := h.service.FindByID(ctx, id)
	if err != nil {
		return writeError(ctx, c, h.logger, "find product failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(product)
}

func (h *ProductHandler) List(c *fiber.Ctx) error {
	ctx, cancel := contextWithTimeout(c, time.Second)
	defer cancel()

	limit, err := strconv.ParseInt(c.Query("limit", "20"), 10, 64)
	if err != nil || limit <= 0 || limit > 100 {
		mylogger.Warn(
			ctx,
			h.logger,
			"limit is invalid",
			zap.String("limit", c.Query("limit")),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "limit is invalid",
		})
	}

	offset, err := strconv.ParseInt(c.Query("offset", "0"), 10, 64)
	if err != nil || offset < 0 {
		mylogger.Warn(
			ctx,
			h.logger,
			"offset is invalid",
			zap.String("offset", c.Query("offset")),
		)

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "offset is invalid",
		})
	}

	search := c.Query("search")

	products, total, err := h.service.List(ctx, limit, offset, search)
	if err != nil {
		return writeError(ctx, c, h.logger, "list products failed", err)
	}

	mylogger.Info(
		ctx,
		h.logger,
		"list products succeeded",
		zap.Int64("limit", limit),
		zap.Int64("offset", offset),
		zap.String("search", search),
		zap.Int64("total", total),
	)

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"products":    products,
		"total_count": total,
	})
}
