package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/domain"
	appCtx "github.com/GrommashPRD/asyncOrderProcessorServices/services/orders/internal/pkg/context"
)

func TestErr(t *testing.T) {
	t.Run("maps_domain_error_to_correct_status", func(t *testing.T) {
		tests := []struct {
			name       string
			err        error
			wantStatus int
			wantCode   string
		}{
			{
				name:       "not_found",
				err:        domain.ErrNotFound("order missing"),
				wantStatus: http.StatusNotFound,
				wantCode:   "not_found",
			},
			{
				name:       "validation",
				err:        domain.ErrValidation("invalid amount"),
				wantStatus: http.StatusBadRequest,
				wantCode:   "validation_error",
			},
			{
				name:       "invalid_state",
				err:        domain.ErrInvalidState("order already terminal"),
				wantStatus: http.StatusConflict,
				wantCode:   "invalid_state",
			},
			{
				name:       "generic_error",
				err:        errors.New("db crash"),
				wantStatus: http.StatusInternalServerError,
				wantCode:   "internal_error",
			},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rr := httptest.NewRecorder()
				req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
				Err(rr, req, tt.err)

				assert.Equal(t, tt.wantStatus, rr.Code)

				var body ErrorBody
				err := json.Unmarshal(rr.Body.Bytes(), &body)
				assert.NoError(t, err)
				assert.Equal(t, tt.wantCode, body.Error.Code)
			})
		}
	})

	t.Run("carries_request_id_from_context", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
		req = req.WithContext(appCtx.WithRequestID(req.Context(), "rid-42"))

		Err(rr, req, domain.ErrNotFound("order missing"))

		var body ErrorBody
		assert.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		assert.Equal(t, "rid-42", body.Error.RequestID)
	})

	t.Run("does_not_leak_internal_error_text", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "http://example.com", nil)

		Err(rr, req, errors.New("pq: password authentication failed"))

		assert.NotContains(t, rr.Body.String(), "password")
	})
}

func TestData(t *testing.T) {
	t.Run("wraps_payload_in_data_envelope", func(t *testing.T) {
		rr := httptest.NewRecorder()
		payload := map[string]string{"id": "123"}

		Data(rr, http.StatusOK, payload)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))

		var env Envelope
		err := json.Unmarshal(rr.Body.Bytes(), &env)
		assert.NoError(t, err)

		dataMap := env.Data.(map[string]any)
		assert.Equal(t, "123", dataMap["id"])
	})
}
