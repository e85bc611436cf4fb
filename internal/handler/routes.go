package handler

import "github.com/gofiber/fiber/v2"

type Handlers struct {
	Credits  *CreditHandler
	Payments *PaymentHandler
	Admin    *AdminHandler
	AI       *AIHandler
}

// Register mounts every API route on router. auth guards user routes and
// admin guards campaign administration.
func (h Handlers) Register(router fiber.Router, auth, admin fiber.Handler) {
	// Public
	payment := router.Group("/payment")
	payment.Get("/plans", h.Payments.GetPlans)
	payment.Post("/validate-discount", h.Payments.ValidateDiscount)
	payment.Post("/webhook/stripe", h.Payments.HandleStripeWebhook)

	// Authenticated
	payment.Post("/create-order", auth, h.Payments.CreateOrder)
	payment.Post("/verify-payment", auth, h.Payments.VerifyPayment)
	payment.Get("/history", auth, h.Payments.GetPaymentHistory)

	credits := router.Group("/credits", auth)
	credits.Get("/check", h.Credits.CheckCredits)
	credits.Post("/deduct", h.Credits.DeductCredit)

	if h.AI != nil {
		router.Post("/ai/generate", auth, h.AI.Generate)
	}

	adminGroup := router.Group("/admin", admin)
	adminGroup.Post("/discount-campaigns", h.Admin.CreateCampaign)
	adminGroup.Get("/discount-campaigns", h.Admin.ListCampaigns)
}
