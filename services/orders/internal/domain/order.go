package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	StatusCreated    OrderStatus = "CREATED"
	StatusInProgress OrderStatus = "IN_PROGRESS"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusFailed     OrderStatus = "FAILED"
	StatusCancelled  OrderStatus = "CANCELLED"
)

// IsTerminal reports whether no further transition is allowed from s.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

type OrderItem struct {
	ProductID string
	Quantity  int
	Price     string // decimal, "0.00" when the processor has not priced it
}

type Order struct {
	ID         uuid.UUID
	CustomerID string
	Amount     string // decimal as text; the DB column is numeric(10,2)
	Status     OrderStatus
	Items      []OrderItem
	CreatedAt  time.Time
}

// NewOrder validates the create payload and builds an Order in StatusCreated.
// The ID and CreatedAt here are provisional; the repository overwrites them
// with the server-assigned values on insert.
func NewOrder(customerID, amount string, items []OrderItem) (*Order, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, ErrValidation("user_id is required")
	}
	if len(items) == 0 {
		return nil, ErrValidation("products must not be empty")
	}
	for i, it := range items {
		if strings.TrimSpace(it.ProductID) == "" {
			return nil, ErrValidationMeta("product_id is required", map[string]string{
				"index": strconv.Itoa(i),
			})
		}
		if it.Quantity <= 0 {
			return nil, ErrValidationMeta("quantity must be > 0", map[string]string{
				"product_id": it.ProductID,
			})
		}
	}
	amt, err := parseAmount(amount)
	if err != nil {
		return nil, err
	}

	norm := make([]OrderItem, len(items))
	for i, it := range items {
		price := strings.TrimSpace(it.Price)
		if price == "" {
			price = "0.00"
		}
		norm[i] = OrderItem{
			ProductID: strings.TrimSpace(it.ProductID),
			Quantity:  it.Quantity,
			Price:     price,
		}
	}

	return &Order{
		ID:         uuid.New(),
		CustomerID: customerID,
		Amount:     amt,
		Status:     StatusCreated,
		Items:      norm,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func parseAmount(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrValidation("amount is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return "", ErrValidationMeta("amount must be a decimal number", map[string]string{
			"amount": raw,
		})
	}
	if v < 0 {
		return "", ErrValidation("amount must be >= 0")
	}
	return raw, nil
}

// AmountFloat renders the stored decimal for the wire, where amount is a
// JSON number.
func (o *Order) AmountFloat() float64 {
	v, _ := strconv.ParseFloat(o.Amount, 64)
	return v
}

// StatusFromProcessor maps a processor outcome onto an order status. Unknown
// outcomes mean the processor is still working on the order.
func StatusFromProcessor(external string) OrderStatus {
	switch external {
	case "SUCCESS":
		return StatusCompleted
	case "FAILED":
		return StatusFailed
	default:
		return StatusInProgress
	}
}
