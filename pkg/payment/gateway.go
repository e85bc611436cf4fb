package payment

import (
	"context"
	"errors"
	"time"
)

var ErrOrderNotFound = errors.New("gateway order not found")

type OrderStatus string

const (
	OrderCreated   OrderStatus = "created"
	OrderAttempted OrderStatus = "attempted"
	OrderPaid      OrderStatus = "paid"
	OrderExpired   OrderStatus = "expired"
)

// Note keys written on every order so the reconciler can rebuild a lost
// pending record from the gateway alone.
const (
	NoteIdentityKey    = "identity_key"
	NoteIdentitySource = "identity_source"
	NoteEmail          = "email"
	NotePlan           = "plan"
	NoteDiscountCode   = "discount_code"
)

type OrderRequest struct {
	Amount        int64
	Currency      string
	Receipt       string
	Description   string
	CustomerEmail string
	Notes         map[string]string
}

type Order struct {
	ID          string
	Amount      int64
	Currency    string
	Status      OrderStatus
	PaymentID   string
	Notes       map[string]string
	CreatedAt   time.Time
	CheckoutURL string
}

// Gateway is the slice of a payment provider the order and reconcile flows
// need. Implementations must be safe for concurrent use.
type Gateway interface {
	Name() string
	// PublicKey is the client-side identifier. Never the secret.
	PublicKey() string
	CreateOrder(ctx context.Context, req OrderRequest) (*Order, error)
	FetchOrder(ctx context.Context, orderID string) (*Order, error)
	ListOrders(ctx context.Context, since time.Time) ([]Order, error)
}
