// Package config содержит логику чтения конфигурации кассы.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"golang.org/x/text/currency"
)

// Драйверы хранилища чеков.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverDocstore = "docstore"
)

const (
	defaultRunAddress  = "localhost:8080"
	defaultDriver      = DriverPostgres
	defaultPrinterType = "none"
	defaultSQLitePath  = "billing.db"
)

// Config содержит параметры конфигурации кассы.
type Config struct {
	RunAddress  string `env:"RUN_ADDRESS"`
	DatabaseURI string `env:"DATABASE_URI"`
	StoreDriver string `env:"STORE_DRIVER"`

	DocstoreURL        string `env:"DOCSTORE_URL" envDefault:"https://firestore.googleapis.com/v1"`
	DocstoreProjectID  string `env:"DOCSTORE_PROJECT_ID"`
	DocstoreAPIKey     string `env:"DOCSTORE_API_KEY"`
	ReceiptsCollection string `env:"RECEIPTS_COLLECTION" envDefault:"receipts"`

	Username      string `env:"BILLING_USERNAME" envDefault:"admin"`
	Password      string `env:"BILLING_PASSWORD"`
	SessionSecret string `env:"SESSION_SECRET"`

	PrinterType     string `env:"PRINTER_TYPE"`
	PrinterAddress  string `env:"PRINTER_ADDRESS"`
	PrinterSpoolDir string `env:"PRINTER_SPOOL_DIR"`
	PrinterCommand  string `env:"PRINTER_COMMAND" envDefault:"lp"`

	StoreName     string `env:"STORE_NAME" envDefault:"Arab Times"`
	ReceiptTitle  string `env:"RECEIPT_TITLE" envDefault:"Cash Receipt"`
	ReceiptFooter string `env:"RECEIPT_FOOTER" envDefault:"Thank you for shopping with us!"`
	ReceiptPrefix string `env:"RECEIPT_PREFIX" envDefault:"AT"`

	Currency       string `env:"CURRENCY" envDefault:"INR"`
	CurrencySymbol string `env:"CURRENCY_SYMBOL" envDefault:"₹"`
	Timezone       string `env:"TIMEZONE" envDefault:"Asia/Kolkata"`

	location *time.Location
}

// Location возвращает часовой пояс для отображения дат чеков.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

// Parse считывает конфигурацию из файла .env, флагов командной строки и переменных окружения.
// Переменные окружения имеют приоритет над флагами.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envStoreDriver := cfg.StoreDriver
	envPrinterType := cfg.PrinterType

	flag.StringVar(&cfg.RunAddress, "a", defaultRunAddress, "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.StoreDriver, "s", defaultDriver, "receipt store driver (postgres, sqlite or docstore)")
	flag.StringVar(&cfg.PrinterType, "p", defaultPrinterType, "printer type (none, spool, command or network)")

	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envStoreDriver != "" {
		cfg.StoreDriver = envStoreDriver
	}
	if envPrinterType != "" {
		cfg.PrinterType = envPrinterType
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = defaultRunAddress
	}
	if cfg.StoreDriver == DriverSQLite && cfg.DatabaseURI == "" {
		cfg.DatabaseURI = defaultSQLitePath
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Password == "" {
		return errors.New("BILLING_PASSWORD is required")
	}

	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURI == "" {
			return errors.New("database URI is required for the postgres store")
		}
	case DriverSQLite:
	case DriverDocstore:
		if c.DocstoreProjectID == "" {
			return errors.New("DOCSTORE_PROJECT_ID is required for the docstore store")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}

	unit, err := currency.ParseISO(c.Currency)
	if err != nil {
		return fmt.Errorf("invalid currency %q: %w", c.Currency, err)
	}
	c.Currency = unit.String()

	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	c.location = loc

	return nil
}
