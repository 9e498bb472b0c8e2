package e2e

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Runs against a live docker-compose stack. Set E2E_ORDERS_URL (e.g.
// http://localhost:8000) to enable; unset skips the suite.
func baseURL(t *testing.T) string {
	t.Helper()
	u := os.Getenv("E2E_ORDERS_URL")
	if u == "" {
		t.Skip("E2E_ORDERS_URL not set; skipping e2e suite")
	}
	return u
}

type Client struct {
	t      *testing.T
	base   string
	client *http.Client
}

func NewClient(t *testing.T) *Client {
	return &Client{
		t:      t,
		base:   baseURL(t),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Post(path string, body any) (int, map[string]any) {
	b, err := json.Marshal(body)
	require.NoError(c.t, err)

	req, err := http.NewRequest("POST", c.base+path, bytes.NewBuffer(b))
	require.NoError(c.t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var resMap map[string]any
	// ignore decode error for empty bodies
	_ = json.NewDecoder(resp.Body).Decode(&resMap)

	return resp.StatusCode, resMap
}

func (c *Client) Get(path string) (int, map[string]any) {
	req, err := http.NewRequest("GET", c.base+path, nil)
	require.NoError(c.t, err)

	resp, err := c.client.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var resMap map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&resMap)

	return resp.StatusCode, resMap
}

func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "expected data envelope, got %v", body)
	return d
}

func TestE2E_OrderPipeline(t *testing.T) {
	c := NewClient(t)

	// 1. Create an order
	t.Log("Creating order...")
	status, body := c.Post("/api/v1/orders/new/", map[string]any{
		"user_id": "e2e-user",
		"products": []map[string]any{
			{"product_id": "p-100", "quantity": 2},
			{"product_id": "p-200", "quantity": 1},
		},
		"amount": "149.90",
	})
	require.Equal(t, http.StatusCreated, status, "create failed: %v", body)

	created := data(t, body)
	orderID, _ := created["id"].(string)
	require.NotEmpty(t, orderID)
	assert.Equal(t, "CREATED", created["status"])

	// 2. Poll until the processor's outcome lands back on the order.
	// Outbox poll (5s) + simulated work (<=2s) + consume hops fit well
	// inside the deadline unless the stack is broken.
	t.Log("Waiting for terminal status...")
	deadline := time.Now().Add(60 * time.Second)
	var last string
	for time.Now().Before(deadline) {
		status, body = c.Get("/api/v1/orders/" + orderID + "/status")
		require.Equal(t, http.StatusOK, status)

		last, _ = data(t, body)["status"].(string)
		if last == "COMPLETED" || last == "FAILED" {
			break
		}
		time.Sleep(2 * time.Second)
	}
	assert.Contains(t, []string{"COMPLETED", "FAILED"}, last,
		"order %s never reached a terminal status (last=%q)", orderID, last)
	t.Logf("order %s finished as %s", orderID, last)
}

func TestE2E_Validation(t *testing.T) {
	c := NewClient(t)

	t.Run("rejects_empty_products", func(t *testing.T) {
		status, body := c.Post("/api/v1/orders/new/", map[string]any{
			"user_id":  "e2e-user",
			"products": []map[string]any{},
			"amount":   "10.00",
		})
		assert.Equal(t, http.StatusBadRequest, status, "body: %v", body)
	})

	t.Run("rejects_malformed_amount", func(t *testing.T) {
		status, _ := c.Post("/api/v1/orders/new/", map[string]any{
			"user_id":  "e2e-user",
			"products": []map[string]any{{"product_id": "p-1", "quantity": 1}},
			"amount":   "ten dollars",
		})
		assert.Equal(t, http.StatusBadRequest, status)
	})

	t.Run("unknown_order_is_404", func(t *testing.T) {
		status, _ := c.Get("/api/v1/orders/00000000-0000-0000-0000-000000000000/status")
		assert.Equal(t, http.StatusNotFound, status)
	})
}

func TestE2E_Health(t *testing.T) {
	c := NewClient(t)

	status, _ := c.Get("/healthz")
	assert.Equal(t, http.StatusOK, status)

	status, _ = c.Get("/readyz")
	assert.Equal(t, http.StatusOK, status)
}
