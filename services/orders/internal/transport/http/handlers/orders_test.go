package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/application/order"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
)

type mockClock struct{ t time.Time }

func (m mockClock) Now() time.Time { return m.t }

// mockRepo keeps orders in memory and records outbox inserts so tests can
// assert the same-transaction contract without a database.
type mockRepo struct {
	orders map[uuid.UUID]*domain.Order
	outbox []order.OutboxMessage
}

func newMockRepo() *mockRepo {
	return &mockRepo{orders: make(map[uuid.UUID]*domain.Order)}
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(tr order.TxRepos) error) error {
	return fn(&mockTxRepos{repo: m})
}

func (m *mockRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFoundMeta("order not found", map[string]string{"order_id": id.String()})
	}
	return o, nil
}

type mockTxRepos struct {
	repo *mockRepo
}

func (t *mockTxRepos) CreateOrder(ctx context.Context, o *domain.Order) error {
	o.ID = uuid.New()
	o.CreatedAt = time.Now().UTC()
	t.repo.orders[o.ID] = o
	return nil
}

func (t *mockTxRepos) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	o, ok := t.repo.orders[id]
	if !ok {
		return nil, domain.ErrNotFoundMeta("order not found", map[string]string{"order_id": id.String()})
	}
	o.Status = status
	return o, nil
}

func (t *mockTxRepos) InsertOutbox(ctx context.Context, msg order.OutboxMessage) error {
	t.repo.outbox = append(t.repo.outbox, msg)
	return nil
}

func newTestHandler(repo *mockRepo) *OrdersHandler {
	svc := order.New(repo, nil, mockClock{t: time.Now().UTC()}, "order.created", "order.created", 0, zerolog.Nop())
	return NewOrdersHandler(svc)
}

func TestOrdersHandler_Create(t *testing.T) {
	t.Run("should_create_order_and_schedule_event", func(t *testing.T) {
		repo := newMockRepo()
		h := newTestHandler(repo)

		body := `{"user_id":"u1","products":[{"product_id":"p1","quantity":2}],"amount":"10.00"}`
		req := httptest.NewRequest("POST", "/api/v1/orders/new/", strings.NewReader(body))
		rr := httptest.NewRecorder()

		h.Create(rr, req)

		require.Equal(t, http.StatusCreated, rr.Code)

		var resp struct {
			Data struct {
				ID     string `json:"id"`
				Status string `json:"status"`
			} `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
		assert.Equal(t, "CREATED", resp.Data.Status)
		assert.NotEmpty(t, resp.Data.ID)

		require.Len(t, repo.outbox, 1)
		assert.Equal(t, "order.created", repo.outbox[0].EventType)
		assert.Contains(t, string(repo.outbox[0].Payload), resp.Data.ID)
	})

	t.Run("should_reject_malformed_json", func(t *testing.T) {
		h := newTestHandler(newMockRepo())

		req := httptest.NewRequest("POST", "/api/v1/orders/new/", strings.NewReader(`{"user_id":`))
		rr := httptest.NewRecorder()

		h.Create(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "validation_error")
	})

	t.Run("should_tolerate_unknown_fields", func(t *testing.T) {
		h := newTestHandler(newMockRepo())

		body := `{"user_id":"u1","products":[{"product_id":"p1","quantity":1}],"amount":"1.00","surprise":true}`
		req := httptest.NewRequest("POST", "/api/v1/orders/new/", strings.NewReader(body))
		rr := httptest.NewRecorder()

		h.Create(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("should_reject_missing_user_id", func(t *testing.T) {
		h := newTestHandler(newMockRepo())

		body := `{"products":[{"product_id":"p1","quantity":1}],"amount":"1.00"}`
		req := httptest.NewRequest("POST", "/api/v1/orders/new/", strings.NewReader(body))
		rr := httptest.NewRecorder()

		h.Create(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "user_id")
	})

	t.Run("should_reject_zero_quantity", func(t *testing.T) {
		h := newTestHandler(newMockRepo())

		body := `{"user_id":"u1","products":[{"product_id":"p1","quantity":0}],"amount":"1.00"}`
		req := httptest.NewRequest("POST", "/api/v1/orders/new/", strings.NewReader(body))
		rr := httptest.NewRecorder()

		h.Create(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "quantity")
	})

	t.Run("should_reject_non_decimal_amount", func(t *testing.T) {
		h := newTestHandler(newMockRepo())

		body := `{"user_id":"u1","products":[{"product_id":"p1","quantity":1}],"amount":"ten"}`
		req := httptest.NewRequest("POST", "/api/v1/orders/new/", strings.NewReader(body))
		rr := httptest.NewRecorder()

		h.Create(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "amount")
	})
}

func TestOrdersHandler_GetStatus(t *testing.T) {
	withURLParam := func(req *http.Request, key, val string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add(key, val)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	t.Run("return_400_on_invalid_uuid", func(t *testing.T) {
		h := newTestHandler(newMockRepo())

		req := httptest.NewRequest("GET", "/api/v1/orders/invalid-uuid/status", nil)
		req = withURLParam(req, "order_id", "invalid-uuid")
		rr := httptest.NewRecorder()

		h.GetStatus(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "validation_error")
	})

	t.Run("return_404_when_missing", func(t *testing.T) {
		h := newTestHandler(newMockRepo())
		id := uuid.NewString()

		req := httptest.NewRequest("GET", "/api/v1/orders/"+id+"/status", nil)
		req = withURLParam(req, "order_id", id)
		rr := httptest.NewRecorder()

		h.GetStatus(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Contains(t, rr.Body.String(), "not_found")
	})

	t.Run("return_200_with_status", func(t *testing.T) {
		repo := newMockRepo()
		id := uuid.New()
		repo.orders[id] = &domain.Order{
			ID:         id,
			CustomerID: "u1",
			Status:     domain.StatusCompleted,
			CreatedAt:  time.Now().UTC(),
		}
		h := newTestHandler(repo)

		req := httptest.NewRequest("GET", "/api/v1/orders/"+id.String()+"/status", nil)
		req = withURLParam(req, "order_id", id.String())
		rr := httptest.NewRecorder()

		h.GetStatus(rr, req)

		require.Equal(t, http.StatusOK, rr.Code)
		assert.Contains(t, rr.Body.String(), "COMPLETED")
	})
}
