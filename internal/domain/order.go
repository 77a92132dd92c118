package domain

import "time"

type Order struct {
	ID         string      `db:"id" json:"id"`
	CustomerID string      `db:"customer_id" json:"customer_id"`
	Customer   *Customer   `json:"customer,omitempty"`
	Items      []OrderItem `json:"items"`
	TotalPrice int64       `db:"total_price" json:"total_price"`

	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// OrderItem carries the unit price as it was at order time. It is a
// snapshot, never recomputed from the product's current price.
type OrderItem struct {
	ID        string `db:"id" json:"id"`
	OrderID   string `db:"order_id" json:"order_id"`
	ProductID string `db:"product_id" json:"product_id"`
	Price     int64  `db:"price" json:"price"`
	Quantity  int64  `db:"quantity" json:"quantity"`
}

func (o *Order) CalculateTotal() {
	var total int64
	for _, item := range o.Items {
		total += item.Price * item.Quantity
	}
	o.TotalPrice = total
}
