package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kailas-cloud/tenderdex/internal/domain"
	chiTransport "github.com/kailas-cloud/tenderdex/internal/transport/chi"
	healthuc "github.com/kailas-cloud/tenderdex/internal/usecase/health"
	"github.com/kailas-cloud/tenderdex/internal/usecase/ingest"
	"github.com/kailas-cloud/tenderdex/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serve search, stats and health over HTTP. When input.path is configured,
POST /api/ingest starts a background ingestion run (one at a time).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withApp(cmd.Context(), func(a *app) error {
			return serve(cmd.Context(), a)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(ctx context.Context, a *app) error {
	cfg := a.cfg
	a.logger.Info("Starting tenderdex API server",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", a.env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.String("model", cfg.Embedding.Vectorizer.Model),
	)

	engine, err := a.searchEngine()
	if err != nil {
		return err
	}

	var runner *ingest.Runner
	deps := chiTransport.Deps{
		Search:  engine,
		Stats:   a.repo,
		APIKeys: cfg.Auth.APIKeys,
	}
	if cfg.Input.Path != "" {
		orch, err := a.orchestrator()
		if err != nil {
			return err
		}
		if runner, err = ingest.NewRunner(orch, a.logger); err != nil {
			return err
		}
		deps.Ingest = runner
	}

	classifierCompleter, err := a.completer(cfg.Classifier.Model)
	if err != nil {
		return err
	}
	if a.docBase == nil {
		a.docBase = a.baseEmbedder()
	}
	deps.Health = healthuc.New(a.store, a.docBase, newProviderChecker("classifier", classifierCompleter))

	a.watchTaxonomy(ctx)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      chiTransport.NewServer(deps, a.logger).Router(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	}

	timeout := time.Duration(cfg.HTTP.ShutdownSec) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
	}
	if runner != nil {
		if err := runner.Close(timeout); err != nil {
			a.logger.Warn("Ingestion job did not stop in time", zap.Error(err))
		}
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}

// providerChecker adapts a completion client to health.ProviderChecker.
// Clients without a health check report healthy.
type providerChecker struct {
	name   string
	client any
}

func newProviderChecker(name string, client any) *providerChecker {
	return &providerChecker{name: name, client: client}
}

func (p *providerChecker) HealthCheck(ctx context.Context) error {
	if hc, ok := p.client.(domain.HealthChecker); ok {
		if err := hc.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s health check: %w", p.name, err)
		}
	}
	return nil
}
