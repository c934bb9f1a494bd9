package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`
	APIPort     int    `env:"API_PORT,default=8080"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	NotifyMaxAttempts  int           `env:"NOTIFY_MAX_ATTEMPTS,required=true"`
	NotifyCooldownDays int           `env:"NOTIFY_COOLDOWN_DAYS,required=true"`
	NotifyCron         string        `env:"NOTIFY_CRON"`
	NotifyRunTimeout   time.Duration `env:"NOTIFY_RUN_TIMEOUT,default=30m"`

	AllowedCompanies     string `env:"ALLOWED_COMPANIES,required=true"`
	ExcludedBranchCode   string `env:"EXCLUDED_BRANCH_CODE,default=HCM"`
	PendingReceiptStatus string `env:"PENDING_RECEIPT_STATUS,default=Pendiente"`
	WindowDaysBefore     int    `env:"WINDOW_DAYS_BEFORE,default=5"`
	WindowDaysAfter      int    `env:"WINDOW_DAYS_AFTER,default=15"`
	Timezone             string `env:"TIMEZONE,default=America/Caracas"`

	DispatchConcurrency int `env:"DISPATCH_CONCURRENCY,default=8"`
	RateLimitPerSec     int `env:"RATE_LIMIT_PER_SEC,default=10"`
	WhatsAppRatePerSec  int `env:"WHATSAPP_RATE_PER_SEC"`
	EmailRatePerSec     int `env:"EMAIL_RATE_PER_SEC"`

	TwilioBaseURL    string        `env:"TWILIO_BASE_URL"`
	TwilioAccountSID string        `env:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken  string        `env:"TWILIO_AUTH_TOKEN"`
	TwilioFrom       string        `env:"TWILIO_WHATSAPP_FROM"`
	TwilioTimeout    time.Duration `env:"TWILIO_TIMEOUT,default=10s"`

	SendGridBaseURL  string        `env:"SENDGRID_BASE_URL"`
	SendGridAPIKey   string        `env:"SENDGRID_API_KEY"`
	SendGridFrom     string        `env:"SENDGRID_FROM_EMAIL"`
	SendGridFromName string        `env:"SENDGRID_FROM_NAME"`
	SendGridTimeout  time.Duration `env:"SENDGRID_TIMEOUT,default=10s"`

	PayPalBaseURL      string        `env:"PAYPAL_BASE_URL,default=https://api-m.sandbox.paypal.com"`
	PayPalClientID     string        `env:"PAYPAL_CLIENT_ID"`
	PayPalClientSecret string        `env:"PAYPAL_CLIENT_SECRET"`
	PayPalWebhookID    string        `env:"PAYPAL_WEBHOOK_ID"`
	PayPalBrandName    string        `env:"PAYPAL_BRAND_NAME"`
	PayPalTimeout      time.Duration `env:"PAYPAL_TIMEOUT,default=15s"`

	OutreachQuoteURL string `env:"OUTREACH_QUOTE_URL"`
}

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.NotifyMaxAttempts < 1 {
		return fmt.Errorf("NOTIFY_MAX_ATTEMPTS must be >= 1")
	}
	if c.NotifyCooldownDays < 0 {
		return fmt.Errorf("NOTIFY_COOLDOWN_DAYS must be >= 0")
	}
	if len(c.AllowedCompanyList()) == 0 {
		return fmt.Errorf("ALLOWED_COMPANIES must list at least one company")
	}
	if c.WindowDaysBefore < 0 || c.WindowDaysAfter < 0 {
		return fmt.Errorf("WINDOW_DAYS_BEFORE and WINDOW_DAYS_AFTER must be >= 0")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// AllowedCompanyList splits ALLOWED_COMPANIES on commas, dropping blanks.
func (c *Config) AllowedCompanyList() []string {
	parts := strings.Split(c.AllowedCompanies, ",")
	companies := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			companies = append(companies, p)
		}
	}
	return companies
}

func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(strings.TrimSpace(c.Timezone))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

func (c *Config) TwilioConfigured() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioFrom != ""
}

func (c *Config) SendGridConfigured() bool {
	return c.SendGridAPIKey != "" && c.SendGridFrom != ""
}

func (c *Config) PayPalConfigured() bool {
	return c.PayPalClientID != "" && c.PayPalClientSecret != ""
}
