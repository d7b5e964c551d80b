package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	httpadapter "github.com/aretw0/automata/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Starts the HTTP API described by /openapi.yaml. Sessions, history and locks use
the store selected in the config; Prometheus metrics are exposed on /metrics.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.HTTP.Addr = addr
		}

		app, err := newApp()
		if err != nil {
			return err
		}
		defer app.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := app.Ping(ctx); err != nil {
			return err
		}

		srv, err := httpadapter.NewServer(app.Engine, app.Sessions,
			httpadapter.WithLogger(logger),
			httpadapter.WithStreams(app.Streams),
			httpadapter.WithGatherer(app.Gatherer()),
			httpadapter.WithMaxInputSize(cfg.Input.MaxSize),
		)
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		if app.Catalog != nil {
			changes, err := app.Catalog.Watch(ctx)
			if err != nil {
				logger.Warn("catalog watch disabled", "error", err)
			} else {
				go func() {
					for name := range changes {
						logger.Info("catalog reloaded", "entry", name)
					}
				}()
			}
		}

		httpServer := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("HTTP server listening", "address", cfg.HTTP.Addr, "store", cfg.Store.Kind)
			serverErrors <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-serverErrors:
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		case <-ctx.Done():
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			logger.Info("shutting down HTTP server")
			return httpServer.Shutdown(shutdownCtx)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address (overrides http.addr)")
}
