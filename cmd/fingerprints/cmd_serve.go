package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/utndatasystems/string-fingerprints/api"
	"github.com/utndatasystems/string-fingerprints/internal/engine"
)

const shutdownTimeout = 10 * time.Second

func (c *cli) newServeCmd() *cobra.Command {
	var (
		port    string
		dataDir string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve runs, jobs and fingerprinting over HTTP",
		Example: `  fingerprints serve                          # Start server on default port 8080
  fingerprints serve --port 9000              # Start server on port 9000
  fingerprints serve --data-dir /tmp/runs     # Use custom data directory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return c.serve(ctx, ":"+port, dataDir)
		},
	}

	cmd.Flags().StringVar(&port, "port", "8080", "Port to run the server on")
	cmd.Flags().StringVar(&dataDir, "data-dir", "./fingerprint_runs", "Directory to store runs; empty keeps them in memory")
	return cmd
}

func (c *cli) serve(ctx context.Context, addr, dataDir string) error {
	c.logger.Info("Using data directory", "data_dir", dataDir)
	runEngine := engine.NewEngine(dataDir, c.logger)
	defer runEngine.Stop()

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	api.SetupRoutes(router, runEngine, c.logger)

	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		c.logger.Info("Starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	c.logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
