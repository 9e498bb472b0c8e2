package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/transport/http/response"
)

type DBPinger interface {
	PingContext(ctx context.Context) error
}

type BrokerCheck interface {
	Ready() bool
}

type HealthHandler struct {
	db     DBPinger
	broker BrokerCheck
}

func NewHealthHandler(db DBPinger, broker BrokerCheck) *HealthHandler {
	return &HealthHandler{db: db, broker: broker}
}

func (h *HealthHandler) Healthz(w http.ResponseWriter, r *http.Request) {
	response.Data(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz checks the dependencies a request actually needs: the DB answers a
// ping and the broker connection is open.
func (h *HealthHandler) Readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			response.Fail(w, http.StatusServiceUnavailable, "not_ready", "database unreachable", nil, "")
			return
		}
	}
	if h.broker != nil && !h.broker.Ready() {
		response.Fail(w, http.StatusServiceUnavailable, "not_ready", "broker connection down", nil, "")
		return
	}

	response.Data(w, http.StatusOK, map[string]string{"status": "ready"})
}
