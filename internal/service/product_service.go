package service

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sakashimaa/go-marketplace/internal/domain"
	"github.com/sakashimaa/go-marketplace/internal/repository"
	"github.com/sakashimaa/go-marketplace/pkg/mylogger"
)

type ProductService interface {
	Create(ctx context.Context, name string, price, quantity int64) (*domain.Product, error)
	FindByID(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error)
}

type productService struct {
	products repository.ProductStore
	logger   *zap.Logger
	tracer   trace.Tracer
}

func NewProductService(products repository.ProductStore, logger *zap.Logger) ProductService {
	return &productService{
		products: products,
		logger:   logger,
		tracer:   otel.Tracer("service/product"),
	}
}

func (s *productService) Create(ctx context.Context, name string, price, quantity int64) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("name", name),
	)

	if _, err := s.products.FindByName(ctx, name); err == nil {
		mylogger.Warn(ctx, s.logger, "Product name already taken", zap.String("name", name))
		return nil, repository.ErrProductExists
	} else if !errors.Is(err, repository.ErrProductNotFound) {
		return nil, fmt.Errorf("error checking product name: %w", err)
	}

	product := &domain.Product{
		Name:          name,
		Price:         price,
		StockQuantity: quantity,
	}

	if err := s.products.Create(ctx, product); err != nil {
		if errors.Is(err, repository.ErrProductExists) {
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "Error creating product", zap.Error(err))
		return nil, fmt.Errorf("error creating product: %w", err)
	}

	return product, nil
}

func (s *productService) FindByID(ctx context.Context, id string) (*domain.Product, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.FindByID")
	defer span.End()

	products, err := s.products.FindAllByIDs(ctx, []string{id})
	if err != nil {
		mylogger.Error(ctx, s.logger, "Error getting product", zap.Error(err))
		return nil, fmt.Errorf("error getting product: %w", err)
	}

	if len(products) == 0 {
		return nil, repository.ErrProductNotFound
	}

	return &products[0], nil
}

func (s *productService) List(ctx context.Context, limit, offset int64, search string) ([]domain.Product, int64, error) {
	ctx, span := s.tracer.Start(ctx, "ProductService.List")
	defer span.End()

	products, total, err := s.products.List(ctx, limit, offset, search)
	if err != nil {
		mylogger.Error(ctx, s.logger, "Error listing products", zap.Error(err))
		return nil, 0, fmt.Errorf("error listing products: %w", err)
	}

	return products, total, nil
}
