/*
main.go - Application entry point

PURPOSE:
  The ledger command: serves the HTTP API and offers a few operator
  subcommands that work directly against the database.

COMMANDS:
  serve                 Start the HTTP server (graceful shutdown)
  reconcile <id>        Print one invoice's reconciliation
  list                  Print one page of invoices with its summary
  seed <scenario>       Reset the database and load a demo scenario

CONFIGURATION:
  Environment variables (and .env), see config/config.go. The --db flag
  overrides DB_PATH for every command.

EXAMPLES:
  # Run with file database
  ledger serve --db ./data/ledger.db

  # Run with in-memory database and demo data
  ledger serve --db :memory: --scenario trading-month

  # Inspect an invoice
  ledger reconcile 3

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment variables
*/
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/invoice-ledger/api"
	"github.com/warp/invoice-ledger/config"
	"github.com/warp/invoice-ledger/invoice"
	"github.com/warp/invoice-ledger/logger"
	"github.com/warp/invoice-ledger/store/sqlite"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:     "ledger",
	Short:   "Invoice ledger with reconciliation",
	Version: version,
	Long: `Records purchase and sale invoices as double-entry postings, keeps
product stock in step with them and reconciles each invoice's due amount
from its postings and returns.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfg, err = config.Load(); err != nil {
			return err
		}
		if dbPath != "" {
			cfg.DBPath = dbPath
		}
		return logger.Setup(cfg.LoggerConfig())
	},
}

var (
	cfg    *config.Config
	dbPath string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DB_PATH, \":memory:\" for in-memory)")
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log := logger.WithComponent("cmd")
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// =============================================================================
// WIRING
// =============================================================================

const redisConnectTimeout = 30 * time.Second

// app holds what every command needs. close releases the store and Redis.
type app struct {
	store   *sqlite.Store
	handler *api.Handler
	close   func()
}

// newApp opens the store and wires the invoice components. With Redis
// configured, stock locks and the reconciliation cache are shared through
// it; otherwise both are in-process.
func newApp(ctx context.Context) (*app, error) {
	log := logger.WithComponent("app")

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps := invoice.Deps{
		Accounts: cfg.Accounts,
		Cache:    invoice.NewMemoryCache(cfg.CacheTTL),
		Logger:   logger.Get(),
	}
	closers := []func() error{store.Close}

	if cfg.RedisEnabled() {
		rctx, cancel := context.WithTimeout(ctx, redisConnectTimeout)
		r, err := config.ConnectRedis(rctx, cfg, log)
		cancel()
		if err != nil {
			store.Close()
			return nil, err
		}
		deps.Locker = invoice.NewRedisLocker(r.Locker, cfg.LockTTL)
		deps.Cache = invoice.NewRedisCache(r.Client, cfg.CacheTTL)
		closers = append(closers, r.Close)
	}

	log.Info().
		Str("db", cfg.DBPath).
		Bool("redis", cfg.RedisEnabled()).
		Msg("store opened")

	return &app{
		store:   store,
		handler: api.NewHandler(store, deps),
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i](); err != nil {
					log.Warn().Err(err).Msg("close failed")
				}
			}
		},
	}, nil
}
