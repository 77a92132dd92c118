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

type CustomerHandler struct {
	service  service.CustomerService
	validate *validator.Validate
	logger   *zap.Logger
}

func NewCustomerHandler(service service.CustomerService, logger *zap.Logger) *CustomerHandler {
	return &CustomerHandler{
		service:  service,
		validate: validator.New(),
		logger:   logger,
	}
}

type CreateCustomerInput struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Email string `json:"email" validate:"required,email"`
}

func (h *CustomerHandler) Create(c *fiber.Ctx) error {
	ctx, cancel := contextWithTimeout(c, time.Second)
	defer cancel()

	input := new(CreateCustomerInput)

	if err := c.BodyParser(input); err != nil {
		mylogger.Warn(
			ctx,
			h.logger,
			"failed to parse body in create customer",
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

	customer, err := h.service.Create(ctx, input.Name, input.Email)
	if err != nil {
		return writeError(ctx, c, h.logger, "create customer failed", err)
	}

	mylogger.Info(
		ctx,
		h.logger,
		"create customer succeeded",
		zap.String("customer_id", customer.ID),
	)

	return c.Status(fiber.StatusCreated).JSON(customer)
}

func (h *CustomerHandler) FindByID(c *fiber.Ctx) error {
	ctx, cancel := contextWithTimeout(c, time.Second)
	defer cancel()

	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "id is required",
		})
	}

	customer, err := h.service.FindByID(ctx, id)
	if err != nil {
		return writeError(ctx, c, h.logger, "find customer failed", err)
	}

	return c.Status(fiber.StatusOK).JSON(customer)
}
