package domain

import "time"

// Product price is stored in the smallest currency unit.
type Product struct {
	ID            string `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	Price         int64  `db:"price" json:"price"`
	StockQuantity int64  `db:"stock_quantity" json:"stock_quantity"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
