package domain

import "time"

type OrderCreatedEvent struct {
	OrderID    string                  `json:"order_id"`
	CustomerID string                  `json:"customer_id"`
	Items      []OrderCreatedEventItem `json:"items"`
	TotalPrice int64                   `json:"total_price"`
	CreatedAt  time.Time               `json:"created_at"`
}

type OrderCreatedEventItem struct {
	ProductID string `json:"product_id"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
}
