package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sefazor/resumeforge-backend/internal/models"
)

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

func (c R2Config) Enabled() bool {
	return c.AccountID != "" && c.Bucket != ""
}

type PaymentConfig struct {
	Provider             string // razorpay | stripe
	Currency             string
	RazorpayKeyID        string
	RazorpayKeySecret    string
	RazorpayBaseURL      string
	SignatureSecret      string
	StripeSecretKey      string
	StripePublishableKey string
	StripeWebhookSecret  string
	SuccessURL           string
	CancelURL            string
	GatewayTimeout       time.Duration
}

type ReconcileConfig struct {
	Enabled    bool
	Interval   time.Duration
	StaleAfter time.Duration
	OrderTTL   time.Duration
	Lookback   time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AIConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type EmailConfig struct {
	ResendAPIKey string
	From         string
	FromName     string
}

type AdminConfig struct {
	Username     string
	PasswordHash string
}

type Config struct {
	Port               string
	Environment        string
	JWTSecret          string
	AllowOrigins       string
	PrimaryDatabaseURL string
	LegacyDatabaseURL  string
	Redis              RedisConfig
	Payment            PaymentConfig
	Reconcile          ReconcileConfig
	AI                 AIConfig
	Email              EmailConfig
	Admin              AdminConfig
	R2                 R2Config
	Plans              models.PlanCatalog
}

// LoadConfig reads .env when present and then the process environment.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		Environment:        getEnv("ENVIRONMENT", "production"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		AllowOrigins:       getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173"),
		PrimaryDatabaseURL: os.Getenv("DATABASE_URL"),
		LegacyDatabaseURL:  os.Getenv("LEGACY_DATABASE_URL"),
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       getInt("REDIS_DB", 0),
		},
		Payment: PaymentConfig{
			Provider:             strings.ToLower(getEnv("PAYMENT_PROVIDER", "razorpay")),
			Currency:             strings.ToUpper(getEnv("PAYMENT_CURRENCY", "INR")),
			RazorpayKeyID:        os.Getenv("RAZORPAY_KEY_ID"),
			RazorpayKeySecret:    os.Getenv("RAZORPAY_KEY_SECRET"),
			RazorpayBaseURL:      getEnv("RAZORPAY_BASE_URL", "https://api.razorpay.com"),
			SignatureSecret:      os.Getenv("PAYMENT_SIGNATURE_SECRET"),
			StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
			StripePublishableKey: os.Getenv("STRIPE_PUBLISHABLE_KEY"),
			StripeWebhookSecret:  os.Getenv("STRIPE_WEBHOOK_SECRET"),
			SuccessURL:           getEnv("PAYMENT_SUCCESS_URL", "http://localhost:5173/payment/success?order_id={CHECKOUT_SESSION_ID}"),
			CancelURL:            getEnv("PAYMENT_CANCEL_URL", "http://localhost:5173/pricing"),
			GatewayTimeout:       getDuration("PAYMENT_GATEWAY_TIMEOUT", 10*time.Second),
		},
		Reconcile: ReconcileConfig{
			Enabled:    getBool("RECONCILE_ENABLED", true),
			Interval:   getDuration("RECONCILE_INTERVAL", 5*time.Minute),
			StaleAfter: getDuration("RECONCILE_STALE_AFTER", 15*time.Minute),
			OrderTTL:   getDuration("RECONCILE_ORDER_TTL", 24*time.Hour),
			Lookback:   getDuration("RECONCILE_LOOKBACK", 48*time.Hour),
		},
		AI: AIConfig{
			BaseURL: os.Getenv("AI_BASE_URL"),
			APIKey:  os.Getenv("AI_API_KEY"),
			Model:   getEnv("AI_MODEL", "gpt-4o-mini"),
			Timeout: getDuration("AI_TIMEOUT", 60*time.Second),
		},
		Email: EmailConfig{
			ResendAPIKey: os.Getenv("RESEND_API_KEY"),
			From:         os.Getenv("EMAIL_FROM_ADDRESS"),
			FromName:     getEnv("EMAIL_FROM_NAME", "ResumeForge"),
		},
		Admin: AdminConfig{
			Username:     getEnv("ADMIN_USERNAME", "admin"),
			PasswordHash: os.Getenv("ADMIN_PASSWORD_HASH"),
		},
		R2: R2Config{
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			Bucket:          os.Getenv("R2_BUCKET"),
		},
		Plans: loadPlans(),
	}

	if cfg.Payment.SignatureSecret == "" {
		cfg.Payment.SignatureSecret = cfg.Payment.RazorpayKeySecret
	}

	var missing []string
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if cfg.PrimaryDatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	switch cfg.Payment.Provider {
	case "razorpay":
		if cfg.Payment.RazorpayKeyID == "" {
			missing = append(missing, "RAZORPAY_KEY_ID")
		}
		if cfg.Payment.RazorpayKeySecret == "" {
			missing = append(missing, "RAZORPAY_KEY_SECRET")
		}
	case "stripe":
		if cfg.Payment.StripeSecretKey == "" {
			missing = append(missing, "STRIPE_SECRET_KEY")
		}
		if cfg.Payment.StripeWebhookSecret == "" {
			missing = append(missing, "STRIPE_WEBHOOK_SECRET")
		}
	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", cfg.Payment.Provider)
	}
	if cfg.Payment.SignatureSecret == "" {
		missing = append(missing, "PAYMENT_SIGNATURE_SECRET")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missing)
	}

	return cfg, nil
}

func loadPlans() models.PlanCatalog {
	plans := models.DefaultPlans()
	for tier, def := range plans {
		prefix := "PLAN_" + strings.ToUpper(string(tier)) + "_"
		def.AmountMinorUnits = getInt64(prefix+"AMOUNT", def.AmountMinorUnits)
		def.CreditsGranted = getInt(prefix+"CREDITS", def.CreditsGranted)
		def.ValidityMonths = getInt(prefix+"VALIDITY_MONTHS", def.ValidityMonths)
		def.DisplayName = getEnv(prefix+"NAME", def.DisplayName)
		plans[tier] = def
	}
	return plans
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func getInt64(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func getBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
