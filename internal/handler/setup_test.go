package handler

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/middleware"
	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/repository"
	"github.com/sefazor/resumeforge-backend/internal/service"
	"github.com/sefazor/resumeforge-backend/internal/testutil"
	"github.com/sefazor/resumeforge-backend/pkg/ai"
	"github.com/sefazor/resumeforge-backend/pkg/bcrypt"
	"github.com/sefazor/resumeforge-backend/pkg/clock"
	jwtPkg "github.com/sefazor/resumeforge-backend/pkg/jwt"
	"github.com/sefazor/resumeforge-backend/pkg/metrics"
	"github.com/sefazor/resumeforge-backend/pkg/payment"
	"github.com/sefazor/resumeforge-backend/pkg/utils"
)

const (
	jwtSecret       = "handler-test-jwt"
	signatureSecret = "rzp_handler_secret"
	adminPassword   = "campaign-admin"
)

var (
	start = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)
	ada   = models.Identity{Key: "64b7f0c2a1d3e4f5a6b7c8d9", Email: "ada@example.com", Name: "Ada", Source: models.SourcePrimary}
)

type testApp struct {
	app     *fiber.App
	clock   *clock.Fake
	gateway *stubGateway
	token   string
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	primary := testutil.OpenSQLite(t, "primary")
	legacy := testutil.OpenSQLite(t, "legacy")
	require.NoError(t, repository.MigratePrimary(primary))
	require.NoError(t, repository.MigrateLegacy(legacy))

	log := zap.NewNop()
	m := metrics.New()
	clk := clock.NewFake(start)
	stores := repository.NewStores(primary, legacy)
	gateway := &stubGateway{orders: map[string]*payment.Order{}}

	resolver := service.NewIdentityResolver(log)
	credits := service.NewCreditService(stores, resolver, clk, m, log)
	discounts := service.NewDiscountService(repository.NewDiscountRepository(primary), clk, log)
	payments := service.NewPaymentService(service.PaymentServiceParams{
		Stores:          stores,
		Resolver:        resolver,
		Credits:         credits,
		Discounts:       discounts,
		Gateway:         gateway,
		Plans:           models.DefaultPlans(),
		Currency:        "INR",
		SignatureSecret: signatureSecret,
		GatewayTimeout:  time.Second,
		Clock:           clk,
		Metrics:         m,
		Logger:          log,
	})
	generation := service.NewGenerationService(credits, echoCompleter{}, log)

	validator := utils.NewValidator()
	hash, err := bcrypt.HashPassword(adminPassword)
	require.NoError(t, err)

	app := fiber.New()
	Handlers{
		Credits:  NewCreditHandler(credits, log),
		Payments: NewPaymentHandler(payments, discounts, validator, log),
		Admin:    NewAdminHandler(discounts, validator, log),
		AI:       NewAIHandler(generation, validator, log),
	}.Register(app.Group("/api"), middleware.AuthMiddleware(jwtSecret, log), middleware.AdminMiddleware("admin", hash))

	token, err := jwtPkg.GenerateToken(jwtSecret, ada.Key, ada.Email, ada.Name, string(ada.Source), time.Now())
	require.NoError(t, err)

	return &testApp{app: app, clock: clk, gateway: gateway, token: token}
}

type result struct {
	status int
	body   map[string]any
}

func (a *testApp) call(t *testing.T, method, path string, body any, headers map[string]string) result {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := result{status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && raw[0] == '{' {
		require.NoError(t, json.Unmarshal(raw, &out.body))
	}
	return out
}

func (a *testApp) user(t *testing.T, method, path string, body any) result {
	return a.call(t, method, path, body, map[string]string{"Authorization": "Bearer " + a.token})
}

func (a *testApp) admin(t *testing.T, method, path string, body any) result {
	auth := base64.StdEncoding.EncodeToString([]byte("admin:" + adminPassword))
	return a.call(t, method, path, body, map[string]string{"Authorization": "Basic " + auth})
}

type echoCompleter struct{}

func (echoCompleter) Complete(ctx context.Context, req ai.Request) (*ai.Completion, error) {
	if req.Prompt == "fail" {
		return nil, errors.New("upstream error")
	}
	return &ai.Completion{Text: "draft: " + req.Prompt, Model: "echo"}, nil
}

type stubGateway struct {
	mu     sync.Mutex
	seq    int
	down   bool
	orders map[string]*payment.Order
}

func (g *stubGateway) Name() string      { return "razorpay" }
func (g *stubGateway) PublicKey() string { return "rzp_test_key" }

func (g *stubGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.down {
		return nil, errors.New("razorpay: 503 service unavailable")
	}
	g.seq++
	o := &payment.Order{ID: fmt.Sprintf("order_%03d", g.seq), Amount: req.Amount, Currency: req.Currency, Status: payment.OrderCreated, Notes: req.Notes, CreatedAt: start}
	g.orders[o.ID] = o
	return o, nil
}

func (g *stubGateway) FetchOrder(ctx context.Context, id string) (*payment.Order, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if o, ok := g.orders[id]; ok {
		return o, nil
	}
	return nil, payment.ErrOrderNotFound
}

func (g *stubGateway) ListOrders(ctx context.Context, since time.Time) ([]payment.Order, error) {
	return nil, nil
}
