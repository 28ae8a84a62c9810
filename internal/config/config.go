package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/factura/internal/money"
)

type Config struct {
	App struct {
		Name     string `envconfig:"APP_NAME" default:"Factura"`
		Port     int    `envconfig:"PORT" default:"8080"`
		LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
		LogFile  string `envconfig:"LOG_FILE" default:"output/factura.log"`
	}

	History struct {
		// Empty means go straight to the file store.
		DatabaseURL    string        `envconfig:"DATABASE_URL"`
		ConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"5s"`
		LockTimeout    time.Duration `envconfig:"DB_LOCK_TIMEOUT" default:"5s"`
		File           string        `envconfig:"HISTORY_FILE" default:"output/history/history.json"`
	}

	Invoice struct {
		Cap     money.Cents     `envconfig:"INVOICE_CAP" default:"500"`
		TaxRate decimal.Decimal `envconfig:"INVOICE_TAX_RATE" default:"0.21"`
		// Last number already used per year, e.g. "2025:263".
		Seeds     map[int]int `envconfig:"INVOICE_COUNTER_SEEDS"`
		OutputDir string      `envconfig:"OUTPUT_DIR" default:"output/invoices"`
	}

	Commit struct {
		Attempts uint          `envconfig:"COMMIT_ATTEMPTS" default:"3"`
		Backoff  time.Duration `envconfig:"COMMIT_BACKOFF" default:"200ms"`
	}

	Company struct {
		Name     string `envconfig:"COMPANY_NAME"`
		Address  string `envconfig:"COMPANY_ADDRESS"`
		TaxID    string `envconfig:"COMPANY_TAX_ID"`
		Phone    string `envconfig:"COMPANY_PHONE"`
		Email    string `envconfig:"COMPANY_EMAIL"`
		Registry string `envconfig:"COMPANY_REGISTRY"`
		Tagline  string `envconfig:"COMPANY_TAGLINE"`
		Concept  string `envconfig:"COMPANY_CONCEPT"`
	}

	Auth struct {
		// Bearer tokens are required when set.
		Secret string `envconfig:"AUTH_SECRET"`
	}

	Server struct {
		Timeout        time.Duration `envconfig:"SERVER_TIMEOUT" default:"30s"`
		AllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
	}
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if cfg.Invoice.Cap <= 0 {
		return nil, fmt.Errorf("INVOICE_CAP must be positive, got %s", cfg.Invoice.Cap)
	}

	if cfg.Invoice.TaxRate.IsNegative() {
		return nil, fmt.Errorf("INVOICE_TAX_RATE must not be negative, got %s", cfg.Invoice.TaxRate)
	}

	for year, last := range cfg.Invoice.Seeds {
		if year <= 0 || last < 0 {
			return nil, fmt.Errorf("invalid INVOICE_COUNTER_SEEDS entry %d:%d", year, last)
		}
	}

	return &cfg, nil
}
