package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"
)

type StripeConfig struct {
	SecretKey      string
	PublishableKey string
	WebhookSecret  string
	SuccessURL     string
	CancelURL      string
	Timeout        time.Duration
}

// StripeGateway maps orders onto Checkout Sessions. The session id is the
// order id, and completion arrives by webhook instead of client verification.
type StripeGateway struct {
	api            *client.API
	publishableKey string
	webhookSecret  string
	successURL     string
	cancelURL      string
}

func NewStripeGateway(cfg StripeConfig) *StripeGateway {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &StripeGateway{
		api:            client.New(cfg.SecretKey, stripe.NewBackends(&http.Client{Timeout: timeout})),
		publishableKey: cfg.PublishableKey,
		webhookSecret:  cfg.WebhookSecret,
		successURL:     cfg.SuccessURL,
		cancelURL:      cfg.CancelURL,
	}
}

func (g *StripeGateway) Name() string { return "stripe" }

func (g *StripeGateway) PublicKey() string { return g.publishableKey }

func (g *StripeGateway) CreateOrder(ctx context.Context, req OrderRequest) (*Order, error) {
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(req.Description),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(req.Receipt),
		SuccessURL:        stripe.String(g.successURL),
		CancelURL:         stripe.String(g.cancelURL),
	}
	if req.CustomerEmail != "" {
		params.CustomerEmail = stripe.String(req.CustomerEmail)
	}
	for k, v := range req.Notes {
		params.AddMetadata(k, v)
	}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	return sessionToOrder(s), nil
}

func (g *StripeGateway) FetchOrder(ctx context.Context, orderID string) (*Order, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.Get(orderID, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return sessionToOrder(s), nil
}

func (g *StripeGateway) ListOrders(ctx context.Context, since time.Time) ([]Order, error) {
	params := &stripe.CheckoutSessionListParams{}
	params.Context = ctx
	params.Filters.AddFilter("created", "gte", strconv.FormatInt(since.Unix(), 10))

	var orders []Order
	it := g.api.CheckoutSessions.List(params)
	for it.Next() {
		orders = append(orders, *sessionToOrder(it.CheckoutSession()))
	}
	if err := it.Err(); err != nil {
		return nil, fmt.Errorf("list checkout sessions: %w", err)
	}
	return orders, nil
}

// CheckoutEvent is the part of a Stripe webhook the confirm flow consumes.
type CheckoutEvent struct {
	Type      string
	OrderID   string
	PaymentID string
	Paid      bool
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout
// session events. Other event types come back with only Type set.
func (g *StripeGateway) ParseWebhook(payload []byte, signatureHeader string) (*CheckoutEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook: %w", err)
	}

	out := &CheckoutEvent{Type: string(event.Type)}
	if !strings.HasPrefix(out.Type, "checkout.session.") {
		return out, nil
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return nil, fmt.Errorf("decode checkout session: %w", err)
	}
	out.OrderID = s.ID
	out.Paid = s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid
	if s.PaymentIntent != nil {
		out.PaymentID = s.PaymentIntent.ID
	}
	return out, nil
}

func sessionToOrder(s *stripe.CheckoutSession) *Order {
	status := OrderCreated
	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid:
		status = OrderPaid
	case s.Status == stripe.CheckoutSessionStatusExpired:
		status = OrderExpired
	}

	order := &Order{
		ID:          s.ID,
		Amount:      s.AmountTotal,
		Currency:    strings.ToUpper(string(s.Currency)),
		Status:      status,
		Notes:       map[string]string{},
		CreatedAt:   time.Unix(s.Created, 0).UTC(),
		CheckoutURL: s.URL,
	}
	for k, v := range s.Metadata {
		order.Notes[k] = v
	}
	if s.PaymentIntent != nil {
		order.PaymentID = s.PaymentIntent.ID
	}
	return order
}
