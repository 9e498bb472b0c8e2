// Package contracts holds the wire shapes exchanged with the orders
// service. Bodies are flat UTF-8 JSON, no envelope; keep fields tolerant so
// producers can add fields without breaking this consumer.
package contracts

const (
	EventTypeOrderCreated   = "order.created"
	EventTypeOrderProcessed = "order.processed"
)

type ProductLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderCreatedEvent is consumed from the orders service outbox.
type OrderCreatedEvent struct {
	OrderID   string        `json:"order_id"`
	UserID    string        `json:"user_id"`
	Products  []ProductLine `json:"products"`
	Amount    float64       `json:"amount"`
	CreatedAt string        `json:"created_at"` // RFC3339
}

// OrderProcessedEvent is published by this service once a processing run
// reaches a terminal state. ErrorMessage is null on success.
type OrderProcessedEvent struct {
	OrderID      string  `json:"order_id"`
	Status       string  `json:"status"`
	ErrorMessage *string `json:"error_message"`
	ProcessedAt  string  `json:"processed_at"`
}
