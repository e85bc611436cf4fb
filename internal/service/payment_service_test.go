package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/internal/repository"
	"github.com/sefazor/resumeforge-backend/pkg/payment"
)

func seedCampaign(t *testing.T, f *fixture, code string, pct int, from, to string) {
	t.Helper()
	_, err := f.discounts.CreateCampaign(context.Background(), models.CreateCampaignRequest{
		Name:      "Promo " + code,
		StartDate: from,
		EndDate:   to,
		Codes:     []models.DiscountCodeRequest{{Code: code, Percentage: pct}},
	})
	require.NoError(t, err)
}

func TestPurchaseProEndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.payments.CreateOrder(ctx, primaryUser, "pro", "")
	require.NoError(t, err)
	assert.Equal(t, int64(49900), order.Amount)
	assert.Equal(t, "INR", order.Currency)
	assert.Equal(t, "key_public", order.KeyID)
	assert.Equal(t, "Pro Plan", order.PlanName)
	assert.Equal(t, "ada@example.com", order.UserEmail)
	assert.Equal(t, "Ada", order.UserName)

	sig := payment.Sign(testSecret, order.OrderID, "pay_001")
	res, err := f.payments.Verify(ctx, order.OrderID, "pay_001", sig)
	require.NoError(t, err)
	assert.False(t, res.Replayed)
	assert.Equal(t, models.PaymentStatusPaid, res.Payment.Status)

	rec, err := f.credits.GetOrCreate(ctx, primaryUser)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, rec.PlanTier)
	assert.GreaterOrEqual(t, rec.TotalCredits, 5)
	assert.Equal(t, 0, rec.UsedCredits)
	assert.True(t, rec.ExpiresAt.Equal(start.AddDate(0, 3, 0)))
	assert.Equal(t, "pay_001", rec.LastPaymentRef)
	assert.Equal(t, 1, f.receipts.count())
}

func TestVerifyIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.payments.CreateOrder(ctx, legacyUser, "Ultimate", "")
	require.NoError(t, err)
	sig := payment.Sign(testSecret, order.OrderID, "pay_x")

	first, err := f.payments.Verify(ctx, order.OrderID, "pay_x", sig)
	require.NoError(t, err)
	second, err := f.payments.Verify(ctx, order.OrderID, "pay_x", sig)
	require.NoError(t, err)

	assert.False(t, first.Replayed)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Credit.TotalCredits, second.Credit.TotalCredits)
	assert.Equal(t, 2+12, second.Credit.TotalCredits)
	assert.Equal(t, 1, f.receipts.count())
}

func TestGrantRollsOverAfterUsage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.credits.Deduct(ctx, primaryUser)
		require.NoError(t, err)
	}
	order, err := f.payments.CreateOrder(ctx, primaryUser, "Pro", "")
	require.NoError(t, err)
	_, err = f.payments.Verify(ctx, order.OrderID, "pay_1", payment.Sign(testSecret, order.OrderID, "pay_1"))
	require.NoError(t, err)

	rec, err := f.credits.GetOrCreate(ctx, primaryUser)
	require.NoError(t, err)
	assert.Equal(t, 5, rec.TotalCredits)
	assert.Equal(t, 0, rec.UsedCredits)
}

func TestTamperedPaymentIDRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.payments.CreateOrder(ctx, primaryUser, "Pro", "")
	require.NoError(t, err)
	sig := payment.Sign(testSecret, order.OrderID, "pay_abc")

	_, err = f.payments.Verify(ctx, order.OrderID, "pay_abd", sig)
	assert.ErrorIs(t, err, ErrSignatureInvalid)

	p, err := f.stores.Primary.Payments.GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusCreated, p.Status)

	rec, err := f.credits.GetOrCreate(ctx, primaryUser)
	require.NoError(t, err)
	assert.Equal(t, models.PlanFree, rec.PlanTier)
	assert.Equal(t, 0, f.receipts.count())
}

func TestVerifyUnknownOrder(t *testing.T) {
	f := newFixture(t)
	sig := payment.Sign(testSecret, "order_missing", "pay_1")

	_, err := f.payments.Verify(context.Background(), "order_missing", "pay_1", sig)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestDiscountAppliedToOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	seedCampaign(t, f, "SAVE20", 20, "2026-01-01", "2026-03-31")

	order, err := f.payments.CreateOrder(ctx, primaryUser, "Pro", "SAVE20")
	require.NoError(t, err)
	assert.Equal(t, int64(39920), order.Amount)

	p, err := f.stores.Primary.Payments.GetByOrderID(ctx, order.OrderID)
	require.NoError(t, err)
	require.NotNil(t, p.DiscountCode)
	assert.Equal(t, "SAVE20", *p.DiscountCode)
	require.NotNil(t, p.DiscountedAmount)
	assert.Equal(t, int64(39920), *p.DiscountedAmount)
	assert.Equal(t, "SAVE20", f.gateway.requests[0].Notes[payment.NoteDiscountCode])
}

func TestInvalidDiscountCodeFailsWithoutOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.payments.CreateOrder(ctx, primaryUser, "Pro", "NOPE")
	assert.ErrorIs(t, err, ErrInvalidDiscountCode)
	assert.Empty(t, f.gateway.requests)
}

func TestInvalidPlanRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, plan := range []string{"Free", "Gold", ""} {
		_, err := f.payments.CreateOrder(ctx, primaryUser, plan, "")
		assert.ErrorIs(t, err, ErrInvalidPlan, plan)
	}
	assert.Empty(t, f.gateway.requests)
}

func TestGatewayFailurePersistsNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.gateway.failNext = errors.New("connection reset")

	_, err := f.payments.CreateOrder(ctx, primaryUser, "Pro", "")
	assert.ErrorIs(t, err, ErrGatewayUnavailable)

	history, err := f.payments.History(ctx, primaryUser)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestOrdersRouteToIdentityStore(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	order, err := f.payments.CreateOrder(ctx, legacyUser, "Pro", "")
	require.NoError(t, err)

	_, err = f.stores.Legacy.Payments.GetByOrderID(ctx, order.OrderID)
	assert.NoError(t, err)
	_, err = f.stores.Primary.Payments.GetByOrderID(ctx, order.OrderID)
	assert.Error(t, err)

	notes := f.gateway.requests[0].Notes
	assert.Equal(t, "1042", notes[payment.NoteIdentityKey])
	assert.Equal(t, "legacy", notes[payment.NoteIdentitySource])

	_, err = f.payments.Verify(ctx, order.OrderID, "pay_l", payment.Sign(testSecret, order.OrderID, "pay_l"))
	require.NoError(t, err)
	rec, err := f.stores.Legacy.Credits.Get(ctx, legacyUser.Key)
	require.NoError(t, err)
	assert.Equal(t, models.PlanPro, rec.PlanTier)
}

func TestHistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.payments.CreateOrder(ctx, primaryUser, "Pro", "")
	require.NoError(t, err)
	f.clock.Advance(time.Minute)
	second, err := f.payments.CreateOrder(ctx, primaryUser, "Ultimate", "")
	require.NoError(t, err)

	history, err := f.payments.History(ctx, primaryUser)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.OrderID, history[0].OrderID)
	assert.Equal(t, first.OrderID, history[1].OrderID)
}

func TestStripeWebhookNeedsWebhookGateway(t *testing.T) {
	f := newFixture(t)
	err := f.payments.HandleStripeWebhook(context.Background(), []byte(`{}`), "t=1,v1=abc")
	assert.ErrorIs(t, err, ErrWebhookUnsupported)
}

func TestPlansSortedByPrice(t *testing.T) {
	f := newFixture(t)
	plans := f.payments.Plans()
	require.Len(t, plans, 2)
	assert.Equal(t, models.PlanPro, plans[0].Tier)
	assert.Equal(t, models.PlanUltimate, plans[1].Tier)
}

func TestCreateOrderRefusesZeroAmount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Rows written before the percentage cap existed.
	require.NoError(t, repository.NewDiscountRepository(f.primary).CreateCampaign(ctx, &models.DiscountCampaign{
		Name:      "Old giveaway",
		StartDate: start.Add(-time.Hour),
		EndDate:   start.Add(time.Hour),
		Codes:     []models.DiscountCode{{Code: "FREE100", Percentage: 100}},
	}))

	_, err := f.payments.CreateOrder(ctx, primaryUser, "Pro", "FREE100")
	assert.ErrorIs(t, err, ErrInvalidDiscountCode)
	assert.Empty(t, f.gateway.requests)
}
