package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	razorpayDefaultBaseURL = "https://api.razorpay.com"
	razorpayPageSize       = 100
)

type RazorpayConfig struct {
	KeyID     string
	KeySecret string
	BaseURL   string
	Timeout   time.Duration
}

type RazorpayGateway struct {
	keyID      string
	keySecret  string
	baseURL    string
	httpClient *http.Client
}

func NewRazorpayGateway(cfg RazorpayConfig) *RazorpayGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = razorpayDefaultBaseURL
	}
	return &RazorpayGateway{
		keyID:      cfg.KeyID,
		keySecret:  cfg.KeySecret,
		baseURL:    base,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (g *RazorpayGateway) Name() string { return "razorpay" }

func (g *RazorpayGateway) PublicKey() string { return g.keyID }

type razorpayOrder struct {
	ID         string          `json:"id"`
	Amount     int64           `json:"amount"`
	AmountPaid int64           `json:"amount_paid"`
	Currency   string          `json:"currency"`
	Receipt    string          `json:"receipt"`
	Status     string          `json:"status"`
	Notes      json.RawMessage `json:"notes"`
	CreatedAt  int64           `json:"created_at"`
}

type razorpayPayment struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type razorpayCollection[T any] struct {
	Count int `json:"count"`
	Items []T `json:"items"`
}

type razorpayError struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

func (g *RazorpayGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	if g.keyID == "" || g.keySecret == "" {
		return nil, fmt.Errorf("razorpay credentials are not configured")
	}

	payload := map[string]any{
		"amount":   req.Amount,
		"currency": req.Currency,
		"receipt":  req.Receipt,
		"notes":    req.Notes,
	}

	var out razorpayOrder
	if err := g.do(ctx, http.MethodPost, "/v1/orders", payload, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, fmt.Errorf("invalid razorpay response (missing order id)")
	}
	return out.toOrder(), nil
}

// FetchOrder also looks up the captured payment so a paid order carries its
// payment id.
func (g *RazorpayGateway) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	var out razorpayOrder
	if err := g.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID), nil, &out); err != nil {
		return nil, err
	}
	order := out.toOrder()

	if order.Status == OrderPaid {
		var payments razorpayCollection[razorpayPayment]
		if err := g.do(ctx, http.MethodGet, "/v1/orders/"+url.PathEscape(orderID)+"/payments", nil, &payments); err != nil {
			return nil, err
		}
		for _, p := range payments.Items {
			if p.Status == "captured" {
				order.PaymentID = p.ID
				break
			}
		}
	}
	return order, nil
}

func (g *RazorpayGateway) ListOrders(ctx context.Context, since time.Time) ([]Order, error) {
	var orders []Order
	for skip := 0; ; skip += razorpayPageSize {
		q := url.Values{}
		q.Set("from", strconv.FormatInt(since.Unix(), 10))
		q.Set("count", strconv.Itoa(razorpayPageSize))
		q.Set("skip", strconv.Itoa(skip))

		var page razorpayCollection[razorpayOrder]
		if err := g.do(ctx, http.MethodGet, "/v1/orders?"+q.Encode(), nil, &page); err != nil {
			return nil, err
		}
		for _, o := range page.Items {
			orders = append(orders, *o.toOrder())
		}
		if len(page.Items) < razorpayPageSize {
			return orders, nil
		}
	}
}

func (g *RazorpayGateway) do(ctx context.Context, method, path string, payload any, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal razorpay payload: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build razorpay request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.SetBasicAuth(g.keyID, g.keySecret)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read razorpay response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrOrderNotFound
	}
	if resp.StatusCode >= 300 {
		var apiErr razorpayError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Description != "" {
			if resp.StatusCode == http.StatusBadRequest && strings.Contains(strings.ToLower(apiErr.Error.Description), "does not exist") {
				return ErrOrderNotFound
			}
			return fmt.Errorf("razorpay error: status=%d code=%s description=%s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
		}
		return fmt.Errorf("razorpay error: status=%d", resp.StatusCode)
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode razorpay response: %w", err)
	}
	return nil
}

func (o razorpayOrder) toOrder() *Order {
	status := OrderStatus(o.Status)
	switch status {
	case OrderCreated, OrderAttempted, OrderPaid:
	default:
		status = OrderCreated
	}
	return &Order{
		ID:        o.ID,
		Amount:    o.Amount,
		Currency:  o.Currency,
		Status:    status,
		Notes:     decodeNotes(o.Notes),
		CreatedAt: time.Unix(o.CreatedAt, 0).UTC(),
	}
}

// Razorpay returns an empty array instead of an object when no notes were set.
func decodeNotes(raw json.RawMessage) map[string]string {
	notes := map[string]string{}
	if len(raw) == 0 {
		return notes
	}
	var generic map[string]any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return notes
	}
	for k, v := range generic {
		switch val := v.(type) {
		case string:
			notes[k] = val
		case nil:
		default:
			notes[k] = fmt.Sprint(val)
		}
	}
	return notes
}
