package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/invoice-ledger/api"
	"github.com/warp/invoice-ledger/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Starts the HTTP API on PORT. On SIGINT/SIGTERM the server stops
accepting connections, waits up to 30s for active requests, then closes
the database.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("port", "", "HTTP port (overrides PORT)")
	serveCmd.Flags().String("scenario", "", "Load a demo scenario on startup (resets the database)")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("server")

	port, _ := cmd.Flags().GetString("port")
	if port == "" {
		port = cfg.Port
	}
	scenario, _ := cmd.Flags().GetString("scenario")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if scenario != "" {
		if err := a.handler.Load(ctx, scenario); err != nil {
			return err
		}
	}

	server := &http.Server{
		Addr:         net.JoinHostPort("", port),
		Handler:      api.NewRouter(a.handler, cfg.CORSOrigins),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info().Msg("server stopped")
	return nil
}
