package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/repository"
	"github.com/sefazor/resumeforge-backend/internal/testutil"
	"github.com/sefazor/resumeforge-backend/pkg/clock"
	"github.com/sefazor/resumeforge-backend/pkg/metrics"
	"github.com/sefazor/resumeforge-backend/pkg/payment"
)

const testSecret = "rzp_test_secret"

var (
	start       = time.Date(2026, 1, 10, 9, 0, 0, 0, time.UTC)
	primaryUser = models.Identity{Key: "64b7f0c2a1d3e4f5a6b7c8d9", Email: "ada@example.com", Name: "Ada", Source: models.SourcePrimary}
	legacyUser  = models.Identity{Key: "1042", Email: "old@example.com", Name: "Old Timer", Source: models.SourceLegacy}
)

type fixture struct {
	primary   *gorm.DB
	legacy    *gorm.DB
	clock     *clock.Fake
	stores    *repository.Stores
	resolver  *IdentityResolver
	credits   *CreditService
	discounts *DiscountService
	gateway   *fakeGateway
	receipts  *recordingNotifier
	payments  *PaymentService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	primary := testutil.OpenSQLite(t, "primary")
	legacy := testutil.OpenSQLite(t, "legacy")
	require.NoError(t, repository.MigratePrimary(primary))
	require.NoError(t, repository.MigrateLegacy(legacy))

	f := &fixture{
		primary:  primary,
		legacy:   legacy,
		clock:    clock.NewFake(start),
		stores:   repository.NewStores(primary, legacy),
		gateway:  newFakeGateway(),
		receipts: &recordingNotifier{},
	}
	log := zap.NewNop()
	m := metrics.New()
	f.resolver = NewIdentityResolver(log)
	f.credits = NewCreditService(f.stores, f.resolver, f.clock, m, log)
	f.discounts = NewDiscountService(repository.NewDiscountRepository(primary), f.clock, log)
	f.payments = NewPaymentService(PaymentServiceParams{
		Stores:          f.stores,
		Resolver:        f.resolver,
		Credits:         f.credits,
		Discounts:       f.discounts,
		Gateway:         f.gateway,
		Plans:           models.DefaultPlans(),
		Currency:        "INR",
		SignatureSecret: testSecret,
		GatewayTimeout:  time.Second,
		Clock:           f.clock,
		Metrics:         m,
		Notifier:        f.receipts,
		Logger:          log,
	})
	return f
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []models.PendingPayment
}

func (n *recordingNotifier) PaymentConfirmed(p models.PendingPayment, _ models.CreditRecord, _ models.PlanDefinition) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, p)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.calls)
}

// fakeGateway keeps orders in memory and mimics a hosted order API.
type fakeGateway struct {
	mu       sync.Mutex
	seq      int
	orders   map[string]*payment.Order
	failNext error
	requests []payment.OrderRequest
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{orders: map[string]*payment.Order{}}
}

func (g *fakeGateway) Name() string      { return "fake" }
func (g *fakeGateway) PublicKey() string { return "key_public" }

func (g *fakeGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failNext != nil {
		err := g.failNext
		g.failNext = nil
		return nil, err
	}
	g.seq++
	g.requests = append(g.requests, req)
	o := &payment.Order{
		ID:        "order_" + string(rune('A'-1+g.seq)),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Status:    payment.OrderCreated,
		Notes:     req.Notes,
		CreatedAt: start,
	}
	g.orders[o.ID] = o
	cp := *o
	return &cp, nil
}

func (g *fakeGateway) FetchOrder(ctx context.Context, id string) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	o, ok := g.orders[id]
	if !ok {
		return nil, payment.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (g *fakeGateway) ListOrders(ctx context.Context, since time.Time) ([]payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []payment.Order
	for _, o := range g.orders {
		if !o.CreatedAt.Before(since) {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (g *fakeGateway) markPaid(id, paymentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.orders[id].Status = payment.OrderPaid
	g.orders[id].PaymentID = paymentID
}
