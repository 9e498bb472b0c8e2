package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/google/uuid"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/application/order"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/metrics"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/transport/http/dto"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/transport/http/response"
)

type OrdersHandler struct {
	svc *order.Service
}

func NewOrdersHandler(svc *order.Service) *OrdersHandler {
	return &OrdersHandler{svc: svc}
}

func (h *OrdersHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateOrderReq
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		response.Err(w, r, domain.ErrValidationMeta("invalid json body", map[string]string{
			"body": "malformed JSON",
		}))
		return
	}
	if err := req.Validate(); err != nil {
		response.Err(w, r, err)
		return
	}

	o, err := h.svc.Create(r.Context(), order.CreateCmd{
		UserID:   req.UserID,
		Amount:   req.Amount,
		Products: dto.ToOrderItems(req.Products),
	})
	if err != nil {
		response.Err(w, r, err)
		return
	}

	metrics.RecordOrderCreated()
	response.Data(w, http.StatusCreated, dto.ToOrderResp(o))
}

func (h *OrdersHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "order_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		response.Err(w, r, domain.ErrValidationMeta("invalid path param", map[string]string{
			"order_id": "must be uuid",
		}))
		return
	}

	o, err := h.svc.GetStatus(r.Context(), id)
	if err != nil {
		response.Err(w, r, err)
		return
	}

	response.Data(w, http.StatusOK, dto.ToOrderResp(o))
}
