package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/application/order"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/config"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/transport/http/handlers"
)

type stubClock struct{}

func (stubClock) Now() time.Time { return time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC) }

type stubRepo struct{}

func (s *stubRepo) WithTx(ctx context.Context, fn func(tr order.TxRepos) error) error {
	return fn(&stubTxRepos{})
}

func (s *stubRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return &domain.Order{ID: id, Status: domain.StatusCreated, CreatedAt: stubClock{}.Now()}, nil
}

type stubTxRepos struct{}

func (s *stubTxRepos) CreateOrder(ctx context.Context, o *domain.Order) error { return nil }
func (s *stubTxRepos) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	return &domain.Order{ID: id, Status: status}, nil
}
func (s *stubTxRepos) InsertOutbox(ctx context.Context, msg order.OutboxMessage) error { return nil }

type stubBroker struct{ ready bool }

func (s stubBroker) Ready() bool { return s.ready }

func newTestRouter(rlEnabled bool) http.Handler {
	svc := order.New(&stubRepo{}, nil, stubClock{}, "order.created", "order.created", 0, zerolog.Nop())
	h := handlers.NewOrdersHandler(svc)
	z := handlers.NewHealthHandler(nil, stubBroker{ready: true})

	cfg := &config.Config{
		RLEnabled: rlEnabled,
		RLLimit:   2,
		RLWindow:  time.Minute,
	}
	return New(h, z, cfg)
}

func TestRouter_Routing(t *testing.T) {
	r := newTestRouter(false)

	t.Run("healthz_returns_200", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("readyz_returns_200", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/readyz", nil)
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("metrics_exposed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/metrics", nil)
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("create_route_matches_trailing_slash", func(t *testing.T) {
		body := `{"user_id":"u1","products":[{"product_id":"p1","quantity":1}],"amount":"5.00"}`
		req := httptest.NewRequest("POST", "/api/v1/orders/new/", strings.NewReader(body))
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)
	})

	t.Run("status_route_returns_200", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/api/v1/orders/"+uuid.NewString()+"/status", nil)
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("request_id_echoed", func(t *testing.T) {
		req := httptest.NewRequest("GET", "/healthz", nil)
		req.Header.Set("X-Request-Id", "rid-123")
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, "rid-123", rr.Header().Get("X-Request-Id"))
	})
}

func TestRouter_RateLimit(t *testing.T) {
	r := newTestRouter(true)

	var last int
	for i := 0; i < 5; i++ {
		req := httptest.NewRequest("GET", "/healthz", nil)
		req.RemoteAddr = "10.1.2.3:5555"
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		last = rr.Code
	}

	assert.Equal(t, http.StatusTooManyRequests, last)
}
