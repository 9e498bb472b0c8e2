package dto

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Report field names the way clients sent them.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	validate.RegisterValidation("decimal", validateDecimal)
}

type CreateOrderReq struct {
	UserID   string           `json:"user_id" validate:"required"`
	Products []ProductLineReq `json:"products" validate:"required,min=1,dive"`
	Amount   string           `json:"amount" validate:"required,decimal"`
}

type ProductLineReq struct {
	ProductID string `json:"product_id" validate:"required"`
	Quantity  int    `json:"quantity" validate:"required,gt=0"`
}

// Validate checks request shape. Semantic rules (amount >= 0, duplicate
// products) stay in the domain layer.
func (r CreateOrderReq) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return domain.ErrValidation(err.Error())
	}

	meta := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		meta[fieldPath(fe)] = messageForTag(fe)
	}
	return domain.ErrValidationMeta("invalid request body", meta)
}

func validateDecimal(fl validator.FieldLevel) bool {
	_, err := strconv.ParseFloat(strings.TrimSpace(fl.Field().String()), 64)
	return err == nil
}

// fieldPath strips the struct type prefix: "CreateOrderReq.products[0].quantity"
// becomes "products[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must have at least %s items", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "decimal":
		return "must be a decimal number"
	default:
		return "is invalid"
	}
}
