package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/internal/repository"
	"github.com/sakashimaa/go-marketplace/internal/service"
	"github.com/sakashimaa/go-marketplace/pkg/mylogger"
)

func contextWithTimeout(c *fiber.Ctx, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.UserContext(), d)
}

func mapErrorStatus(err error) int {
	switch {
	case errors.Is(err, repository.ErrCustomerNotFound),
		errors.Is(err, repository.ErrProductNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrNoProductsFound):
		return fiber.StatusNotFound
	case errors.Is(err, repository.ErrCustomerExists),
		errors.Is(err, repository.ErrProductExists):
		return fiber.StatusConflict
	case errors.Is(err, repository.ErrInsufficientStock):
		return fiber.StatusConflict
	case errors.Is(err, service.ErrEmptyOrder),
		errors.Is(err, service.ErrInvalidQuantity):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

// errorBody attaches structured detail for errors that carry it so clients
// can tell which products were the problem.
func errorBody(err error) fiber.Map {
	body := fiber.Map{"error": err.Error()}

	var missing *service.MissingProductsError
	if errors.As(err, &missing) {
		body["missing_product_ids"] = missing.ProductIDs
	}

	var insufficient *service.InsufficientStockError
	if errors.As(err, &insufficient) {
		shortages := make([]fiber.Map, 0, len(insufficient.Shortages))
		for _, s := range insufficient.Shortages {
			shortages = append(shortages, fiber.Map{
				"product_id": s.ProductID,
				"requested":  s.Requested,
				"available":  s.Available,
			})
		}
		body["shortages"] = shortages
	}

	return body
}

func writeError(ctx context.Context, c *fiber.Ctx, logger *zap.Logger, msg string, err error) error {
	httpCode := mapErrorStatus(err)

	mylogger.Warn(
		ctx,
		logger,
		msg,
		zap.Int("http_code", httpCode),
		zap.Error(err),
	)

	return c.Status(httpCode).JSON(errorBody(err))
}
