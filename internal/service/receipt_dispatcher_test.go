package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/pkg/email"
)

type stubSender struct {
	mu       sync.Mutex
	receipts []email.Receipt
	err      error
}

func (s *stubSender) SendPaymentReceipt(r email.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, r)
	return s.err
}

type stubArchive struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (a *stubArchive) Upload(ctx context.Context, key string, r io.Reader, contentType string) error {
	body, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.objects[key] = body
	return nil
}

func TestReceiptDispatcherSendsAndArchives(t *testing.T) {
	sender := &stubSender{}
	archive := &stubArchive{objects: map[string][]byte{}}
	d := NewReceiptDispatcher(sender, archive, time.Second, zap.NewNop())

	paidAt := start
	d.PaymentConfirmed(models.PendingPayment{
		OrderID:          "order_1",
		PaymentID:        "pay_1",
		AmountMinorUnits: 49900,
		Currency:         "INR",
		IdentityEmail:    "ada@example.com",
		PlanTier:         models.PlanPro,
		PaidAt:           &paidAt,
		CreatedAt:        start,
	}, models.CreditRecord{TotalCredits: 7, ExpiresAt: start.AddDate(0, 3, 0)}, models.DefaultPlans()[models.PlanPro])
	d.Wait()

	require.Len(t, sender.receipts, 1)
	assert.Equal(t, "ada@example.com", sender.receipts[0].To)
	assert.Equal(t, 7, sender.receipts[0].Credits)

	raw, ok := archive.objects["receipts/2026/01/order_1.json"]
	require.True(t, ok)
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "pay_1", doc["paymentId"])
}

func TestReceiptDispatcherSwallowsFailures(t *testing.T) {
	sender := &stubSender{err: errors.New("smtp down")}
	d := NewReceiptDispatcher(sender, nil, time.Second, zap.NewNop())

	assert.NotPanics(t, func() {
		d.PaymentConfirmed(models.PendingPayment{OrderID: "o", IdentityEmail: "x@example.com"}, models.CreditRecord{}, models.PlanDefinition{})
		d.Wait()
	})
	assert.Len(t, sender.receipts, 1)
}
