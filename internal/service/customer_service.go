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

type CustomerService interface {
	Create(ctx context.Context, name, email string) (*domain.Customer, error)
	FindByID(ctx context.Context, id string) (*domain.Customer, error)
}

type customerService struct {
	customers repository.CustomerStore
	logger    *zap.Logger
	tracer    trace.Tracer
}

func NewCustomerService(customers repository.CustomerStore, logger *zap.Logger) CustomerService {
	return &customerService{
		customers: customers,
		logger:    logger,
		tracer:    otel.Tracer("service/customer"),
	}
}

func (s *customerService) Create(ctx context.Context, name, email string) (*domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "CustomerService.Create")
	defer span.End()

	span.SetAttributes(
		attribute.String("email", email),
	)

	if _, err := s.customers.FindByEmail(ctx, email); err == nil {
		mylogger.Warn(ctx, s.logger, "Customer email already taken", zap.String("email", email))
		return nil, repository.ErrCustomerExists
	} else if !errors.Is(err, repository.ErrCustomerNotFound) {
		return nil, fmt.Errorf("error checking customer email: %w", err)
	}

	customer := &domain.Customer{
		Name:  name,
		Email: email,
	}

	if err := s.customers.Create(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrCustomerExists) {
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "Error creating customer", zap.Error(err))
		return nil, fmt.Errorf("error creating customer: %w", err)
	}

	return customer, nil
}

func (s *customerService) FindByID(ctx context.Context, id string) (*domain.Customer, error) {
	ctx, span := s.tracer.Start(ctx, "CustomerService.FindByID")
	defer span.End()

	customer, err := s.customers.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			mylogger.Warn(ctx, s.logger, "Customer not found", zap.String("id", id))
			return nil, err
		}

		mylogger.Error(ctx, s.logger, "Error getting customer", zap.Error(err))
		return nil, fmt.Errorf("error getting customer: %w", err)
	}

	return customer, nil
}
