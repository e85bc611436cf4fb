package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRazorpay(t *testing.T, h http.HandlerFunc) *RazorpayGateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewRazorpayGateway(RazorpayConfig{
		KeyID:     "rzp_test_key",
		KeySecret: "rzp_secret",
		BaseURL:   srv.URL,
		Timeout:   2 * time.Second,
	})
}

func TestRazorpayCreateOrder(t *testing.T) {
	g := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_test_key", user)
		assert.Equal(t, "rzp_secret", pass)

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.EqualValues(t, 39920, body["amount"])
		assert.Equal(t, "INR", body["currency"])

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_abc","amount":39920,"currency":"INR","status":"created","notes":{"plan":"Pro","identity_key":"u1"},"created_at":1700000000}`))
	})

	order, err := g.CreateOrder(context.Background(), OrderRequest{
		Amount:   39920,
		Currency: "INR",
		Receipt:  "rcpt_1",
		Notes:    map[string]string{NotePlan: "Pro", NoteIdentityKey: "u1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "order_abc", order.ID)
	assert.Equal(t, int64(39920), order.Amount)
	assert.Equal(t, OrderCreated, order.Status)
	assert.Equal(t, "Pro", order.Notes[NotePlan])
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), order.CreatedAt)
	assert.Equal(t, "rzp_test_key", g.PublicKey())
}

func TestRazorpayCreateOrderGatewayError(t *testing.T) {
	g := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"code":"SERVER_ERROR","description":"boom"}}`))
	})

	_, err := g.CreateOrder(context.Background(), OrderRequest{Amount: 100, Currency: "INR"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SERVER_ERROR")
}

func TestRazorpayFetchPaidOrderResolvesPayment(t *testing.T) {
	g := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/orders/order_abc":
			_, _ = w.Write([]byte(`{"id":"order_abc","amount":49900,"currency":"INR","status":"paid","notes":[],"created_at":1700000000}`))
		case "/v1/orders/order_abc/payments":
			_, _ = w.Write([]byte(`{"count":2,"items":[{"id":"pay_failed","status":"failed"},{"id":"pay_ok","status":"captured"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	order, err := g.FetchOrder(context.Background(), "order_abc")
	require.NoError(t, err)
	assert.Equal(t, OrderPaid, order.Status)
	assert.Equal(t, "pay_ok", order.PaymentID)
	assert.Empty(t, order.Notes)
}

func TestRazorpayFetchMissingOrder(t *testing.T) {
	g := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"The id provided does not exist"}}`))
	})

	_, err := g.FetchOrder(context.Background(), "order_missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestRazorpayListOrdersPaginates(t *testing.T) {
	calls := 0
	g := newTestRazorpay(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "1700000000", r.URL.Query().Get("from"))
		if r.URL.Query().Get("skip") == "0" {
			items := make([]map[string]any, razorpayPageSize)
			for i := range items {
				items[i] = map[string]any{"id": "order_page1", "amount": 1, "currency": "INR", "status": "created", "created_at": 1700000001}
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"count": len(items), "items": items})
			return
		}
		_, _ = w.Write([]byte(`{"count":1,"items":[{"id":"order_last","amount":1,"currency":"INR","status":"attempted","created_at":1700000002}]}`))
	})

	orders, err := g.ListOrders(context.Background(), time.Unix(1700000000, 0))
	require.NoError(t, err)
	assert.Len(t, orders, razorpayPageSize+1)
	assert.Equal(t, 2, calls)
	assert.Equal(t, OrderAttempted, orders[len(orders)-1].Status)
}

func TestRazorpayMissingCredentials(t *testing.T) {
	g := NewRazorpayGateway(RazorpayConfig{})
	_, err := g.CreateOrder(context.Background(), OrderRequest{Amount: 1, Currency: "INR"})
	assert.Error(t, err)
}
