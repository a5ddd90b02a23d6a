package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/koopa0/kennis/internal/api"
	"github.com/koopa0/kennis/internal/app"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 2 * time.Minute // answer generation can take a while
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start de HTTP API server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (host:port, default from config)")
	rootCmd.AddCommand(serveCmd)
}

// parseRateBurst reads KENNIS_RATE_BURST from the environment.
// Returns 0 (use default) if unset or invalid.
func parseRateBurst() int {
	v := os.Getenv("KENNIS_RATE_BURST")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App) error {
		addr := a.Config.ServerAddr
		if serveAddr != "" {
			addr = serveAddr
		}
		if err := validateAddr(addr); err != nil {
			return fmt.Errorf("invalid address %q: %w", addr, err)
		}

		logger := slog.Default()
		logger.Info("starting HTTP API server", "version", Version)

		apiServer, err := api.NewServer(api.ServerConfig{
			Logger:      logger,
			Notes:       a.Notes,
			Relations:   a.Notes,
			Searcher:    a.Searcher,
			Answerer:    a.Generator,
			Enricher:    a.Enricher,
			Fetcher:     a.Fetcher,
			Pool:        a.Pool,
			CORSOrigins: a.Config.CORSOrigins,
			IsDev:       a.Config.PostgresSSLMode == "disable",
			TrustProxy:  a.Config.TrustProxy,
			RateBurst:   parseRateBurst(),
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}

		srv := &http.Server{
			Addr:              addr,
			Handler:           apiServer.Handler(),
			ReadHeaderTimeout: readHeaderTimeout,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
		}

		logger.Info("HTTP server ready",
			"addr", addr,
			"api", "/api/v1/*",
			"health", "/healthz, /readyz",
		)

		errCh := make(chan error, 1)
		go func() {
			errCh <- srv.ListenAndServe()
		}()

		select {
		case <-ctx.Done():
			logger.Info("shutting down HTTP server")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("shutting down server: %w", err)
			}
			<-errCh
			return nil
		case err := <-errCh:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return fmt.Errorf("HTTP server: %w", err)
		}
	})
}
