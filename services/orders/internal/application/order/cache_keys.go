package order

import "github.com/google/uuid"

func cacheKeyOrder(id uuid.UUID) string {
	return "order:status:" + id.String()
}
