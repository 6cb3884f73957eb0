/*
Package config loads runtime configuration from the environment.

PURPOSE:
  One place reads every environment variable the server and CLI use.
  A .env file in the working directory is loaded first if present;
  variables already set in the environment win.

VARIABLES:
  PORT             HTTP port (8080)
  DB_PATH          SQLite file (ledger.db)
  REDIS_ADDRESS    host:port; empty disables Redis locks and cache
  REDIS_PASSWORD   optional
  CACHE_TTL        reconciliation cache lifetime (5m)
  LOCK_TTL         Redis stock lock lifetime (10s)
  CORS_ORIGINS     comma separated allowed origins (*)
  LOG_LEVEL        info
  LOG_FORMAT       console | json
  LOG_OUTPUT       stdout | stderr | file path
  ACCOUNT_*        account id per role, see accountVars
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/warp/invoice-ledger/ledger"
	"github.com/warp/invoice-ledger/logger"
)

type Config struct {
	Port        string
	DBPath      string
	CORSOrigins []string

	RedisAddress  string
	RedisPassword string
	CacheTTL      time.Duration
	LockTTL       time.Duration

	Accounts ledger.Accounts

	LogLevel  string
	LogFormat string
	LogOutput string
}

// accountVars maps each ACCOUNT_* variable to the role it overrides.
var accountVars = []struct {
	name  string
	field func(*ledger.Accounts) *ledger.AccountID
}{
	{"ACCOUNT_CASH", func(a *ledger.Accounts) *ledger.AccountID { return &a.Cash }},
	{"ACCOUNT_BANK", func(a *ledger.Accounts) *ledger.AccountID { return &a.Bank }},
	{"ACCOUNT_INVENTORY", func(a *ledger.Accounts) *ledger.AccountID { return &a.Inventory }},
	{"ACCOUNT_RECEIVABLE", func(a *ledger.Accounts) *ledger.AccountID { return &a.AccountsReceivable }},
	{"ACCOUNT_PAYABLE", func(a *ledger.Accounts) *ledger.AccountID { return &a.AccountsPayable }},
	{"ACCOUNT_SALES", func(a *ledger.Accounts) *ledger.AccountID { return &a.Sales }},
	{"ACCOUNT_COST_OF_SALES", func(a *ledger.Accounts) *ledger.AccountID { return &a.CostOfSales }},
	{"ACCOUNT_DISCOUNT_EARNED", func(a *ledger.Accounts) *ledger.AccountID { return &a.DiscountEarned }},
	{"ACCOUNT_DISCOUNT_GIVEN", func(a *ledger.Accounts) *ledger.AccountID { return &a.DiscountGiven }},
}

func Load() (*Config, error) {
	// Missing .env is fine
	_ = godotenv.Load()

	config := &Config{
		Port:          getEnv("PORT", "8080"),
		DBPath:        getEnv("DB_PATH", "ledger.db"),
		CORSOrigins:   splitList(getEnv("CORS_ORIGINS", "*")),
		RedisAddress:  getEnv("REDIS_ADDRESS", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogFormat:     getEnv("LOG_FORMAT", "console"),
		LogOutput:     getEnv("LOG_OUTPUT", "stdout"),
		Accounts:      ledger.DefaultAccounts(),
	}

	var err error
	if config.CacheTTL, err = getDuration("CACHE_TTL", 5*time.Minute); err != nil {
		return nil, err
	}
	if config.LockTTL, err = getDuration("LOCK_TTL", 10*time.Second); err != nil {
		return nil, err
	}
	for _, v := range accountVars {
		raw := os.Getenv(v.name)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: %q is not an account id", v.name, raw)
		}
		*v.field(&config.Accounts) = ledger.AccountID(id)
	}

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return config, nil
}

func (c *Config) validate() error {
	if _, err := strconv.Atoi(c.Port); err != nil {
		return fmt.Errorf("PORT must be a number, got %q", c.Port)
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.CacheTTL < 0 || c.LockTTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be >= 0 and LOCK_TTL > 0")
	}
	return c.Accounts.Validate()
}

// RedisEnabled reports whether Redis-backed locks and cache should be used.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddress != ""
}

// LoggerConfig returns a logger configuration from the main config
func (c *Config) LoggerConfig() logger.LogConfig {
	lc := logger.DefaultConfig()
	lc.Level = c.LogLevel
	lc.Format = c.LogFormat
	lc.Output = c.LogOutput
	return lc
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
