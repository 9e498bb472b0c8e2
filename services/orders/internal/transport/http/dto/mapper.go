package dto

import "github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"

func ToOrderResp(o *domain.Order) OrderResp {
	return OrderResp{
		ID:        o.ID.String(),
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt.UTC(),
	}
}

// ToOrderItems converts request lines into domain items. Price is unknown at
// submit time; the processor prices lines later.
func ToOrderItems(lines []ProductLineReq) []domain.OrderItem {
	items := make([]domain.OrderItem, len(lines))
	for i, p := range lines {
		items[i] = domain.OrderItem{
			ProductID: p.ProductID,
			Quantity:  p.Quantity,
		}
	}
	return items
}
