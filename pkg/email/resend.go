package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/resendlabs/resend-go"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

type Receipt struct {
	To         string
	Name       string
	PlanName   string
	OrderID    string
	PaymentID  string
	Amount     int64
	Currency   string
	Credits    int
	ValidUntil time.Time
}

type sender interface {
	Send(params *resend.SendEmailRequest) (resend.SendEmailResponse, error)
}

type EmailService struct {
	emails   sender
	from     string
	fromName string
	tmpl     *template.Template
	logger   *zap.Logger
}

// NewEmailService returns nil when no API key is configured; callers treat a
// nil service as "receipts disabled".
func NewEmailService(apiKey, from, fromName string, logger *zap.Logger) (*EmailService, error) {
	if apiKey == "" || from == "" {
		return nil, nil
	}
	client := resend.NewClient(apiKey)
	return newEmailService(client.Emails, from, fromName, logger)
}

func newEmailService(emails sender, from, fromName string, logger *zap.Logger) (*EmailService, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse email templates: %w", err)
	}
	return &EmailService{
		emails:   emails,
		from:     from,
		fromName: fromName,
		tmpl:     tmpl,
		logger:   logger.Named("email"),
	}, nil
}

func (s *EmailService) SendPaymentReceipt(r Receipt) error {
	if r.To == "" {
		return fmt.Errorf("receipt has no recipient")
	}

	var body bytes.Buffer
	err := s.tmpl.ExecuteTemplate(&body, "receipt.html", map[string]interface{}{
		"Name":       r.Name,
		"PlanName":   r.PlanName,
		"OrderID":    r.OrderID,
		"PaymentID":  r.PaymentID,
		"Amount":     fmt.Sprintf("%d.%02d", r.Amount/100, r.Amount%100),
		"Currency":   r.Currency,
		"Credits":    r.Credits,
		"ValidUntil": r.ValidUntil.Format("2 Jan 2006"),
		"Year":       time.Now().Year(),
	})
	if err != nil {
		return fmt.Errorf("render receipt: %w", err)
	}

	params := &resend.SendEmailRequest{
		From:    s.fromName + " <" + s.from + ">",
		To:      []string{r.To},
		Subject: "Your " + r.PlanName + " receipt - ResumeForge",
		Html:    body.String(),
	}

	resp, err := s.emails.Send(params)
	if err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}

	s.logger.Info("receipt sent", zap.String("order_id", r.OrderID), zap.String("email_id", resp.Id))
	return nil
}
