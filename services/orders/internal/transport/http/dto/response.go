package dto

import "time"

// OrderResp is the stable API response model.
type OrderResp struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
