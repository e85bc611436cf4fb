package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sefazor/resumeforge-backend/internal/models"
	"github.com/sefazor/resumeforge-backend/pkg/email"
)

type ReceiptSender interface {
	SendPaymentReceipt(r email.Receipt) error
}

type ReceiptArchive interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
}

// ReceiptDispatcher sends the receipt e-mail and archives a JSON copy after a
// payment commits. Failures are logged and never reach the payer.
type ReceiptDispatcher struct {
	sender  ReceiptSender
	archive ReceiptArchive
	timeout time.Duration
	logger  *zap.Logger
	wg      sync.WaitGroup
}

// Either dependency may be nil.
func NewReceiptDispatcher(sender ReceiptSender, archive ReceiptArchive, timeout time.Duration, logger *zap.Logger) *ReceiptDispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &ReceiptDispatcher{
		sender:  sender,
		archive: archive,
		timeout: timeout,
		logger:  logger.Named("receipts"),
	}
}

func (d *ReceiptDispatcher) PaymentConfirmed(p models.PendingPayment, credit models.CreditRecord, plan models.PlanDefinition) {
	if d.sender == nil && d.archive == nil {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		d.dispatch(ctx, p, credit, plan)
	}()
}

// Wait blocks until in-flight dispatches finish.
func (d *ReceiptDispatcher) Wait() {
	d.wg.Wait()
}

func (d *ReceiptDispatcher) dispatch(ctx context.Context, p models.PendingPayment, credit models.CreditRecord, plan models.PlanDefinition) {
	if d.sender != nil && p.IdentityEmail != "" {
		err := d.sender.SendPaymentReceipt(email.Receipt{
			To:         p.IdentityEmail,
			PlanName:   plan.DisplayName,
			OrderID:    p.OrderID,
			PaymentID:  p.PaymentID,
			Amount:     p.AmountMinorUnits,
			Currency:   p.Currency,
			Credits:    credit.Remaining(),
			ValidUntil: credit.ExpiresAt,
		})
		if err != nil {
			d.logger.Warn("receipt email failed", zap.String("order_id", p.OrderID), zap.Error(err))
		}
	}

	if d.archive != nil {
		body, err := json.Marshal(map[string]interface{}{
			"orderId":      p.OrderID,
			"paymentId":    p.PaymentID,
			"provider":     p.Provider,
			"amount":       p.AmountMinorUnits,
			"currency":     p.Currency,
			"plan":         p.PlanTier,
			"discountCode": p.DiscountCode,
			"identityKey":  p.IdentityKey,
			"paidAt":       p.PaidAt,
		})
		if err != nil {
			d.logger.Warn("receipt encode failed", zap.String("order_id", p.OrderID), zap.Error(err))
			return
		}
		key := fmt.Sprintf("receipts/%s/%s.json", p.CreatedAt.Format("2006/01"), p.OrderID)
		if err := d.archive.Upload(ctx, key, bytes.NewReader(body), "application/json"); err != nil {
			d.logger.Warn("receipt archive failed", zap.String("order_id", p.OrderID), zap.Error(err))
		}
	}
}
