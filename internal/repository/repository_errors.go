package repository

import "errors"

var (
	ErrCustomerNotFound = errors.New("customer not found")
	ErrCustomerExists   = errors.New("customer already exists")

	ErrProductNotFound   = errors.New("product not found")
	ErrProductExists     = errors.New("product already exists")
	ErrNoProductsFound   = errors.New("no products found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrStockUpdateFailed = errors.New("stock update failed")

	ErrOrderNotFound = errors.New("order not found")
)
