package dto

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
)

func validReq() CreateOrderReq {
	return CreateOrderReq{
		UserID: "u1",
		Products: []ProductLineReq{
			{ProductID: "p1", Quantity: 2},
		},
		Amount: "10.00",
	}
}

func TestCreateOrderReq_Validate(t *testing.T) {
	t.Run("accepts_valid_request", func(t *testing.T) {
		assert.NoError(t, validReq().Validate())
	})

	t.Run("rejects_missing_user_id", func(t *testing.T) {
		req := validReq()
		req.UserID = ""

		err := req.Validate()

		require.Error(t, err)
		assert.True(t, domain.IsValidation(err))
		assert.Contains(t, err.Error(), "user_id")
	})

	t.Run("rejects_empty_products", func(t *testing.T) {
		req := validReq()
		req.Products = nil

		err := req.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "products")
	})

	t.Run("rejects_zero_quantity_with_indexed_field", func(t *testing.T) {
		req := validReq()
		req.Products = append(req.Products, ProductLineReq{ProductID: "p2", Quantity: 0})

		err := req.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "products[1].quantity")
	})

	t.Run("rejects_missing_product_id", func(t *testing.T) {
		req := validReq()
		req.Products[0].ProductID = ""

		err := req.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "product_id")
	})

	t.Run("rejects_non_decimal_amount", func(t *testing.T) {
		req := validReq()
		req.Amount = "ten dollars"

		err := req.Validate()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "amount")
	})
}
