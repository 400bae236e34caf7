package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/riskmatrix/pkg/cli/config"
	httpctrl "github.com/secmon-lab/riskmatrix/pkg/controller/http"
	"github.com/secmon-lab/riskmatrix/pkg/service/metrics"
	"github.com/secmon-lab/riskmatrix/pkg/service/worker"
	"github.com/secmon-lab/riskmatrix/pkg/usecase"
	"github.com/secmon-lab/riskmatrix/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var refreshInterval time.Duration
	var appCfg config.AppConfig
	var repoCfg config.Repository
	var slackCfg config.Slack

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8000",
			Sources:     cli.EnvVars("RISKMATRIX_ADDR"),
			Destination: &addr,
		},
		&cli.DurationFlag{
			Name:        "refresh-interval",
			Usage:       "Periodic register refresh in addition to refreshes after each assessment (0 disables)",
			Value:       5 * time.Minute,
			Sources:     cli.EnvVars("RISKMATRIX_REFRESH_INTERVAL"),
			Destination: &refreshInterval,
		},
	}

	// Add shared config flags
	flags = append(flags, appCfg.Flags()...)
	flags = append(flags, repoCfg.Flags()...)
	flags = append(flags, slackCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			if err := appCfg.Configure(); err != nil {
				return goerr.Wrap(err, "failed to load configuration")
			}
			logging.Default().Info("Configuration loaded", "app", appCfg, "repository", repoCfg, "slack", slackCfg)

			repo, err := repoCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to initialize repository")
			}
			defer func() {
				if err := repo.Close(); err != nil {
					logging.Default().Error("failed to close repository", "error", err.Error())
				}
			}()

			recorder := metrics.New()

			// The refresher reads through its own use case so it can be registered as a listener below.
			refresher := worker.NewRegisterRefresher(
				usecase.NewRiskUseCase(repo, appCfg.Policy()),
				worker.WithInterval(refreshInterval),
				worker.WithMatrixPolicy(appCfg.Policy()),
				worker.WithOnUpdate(func(s *worker.Snapshot) {
					logging.Default().Info("Register refreshed",
						"seq", s.Seq,
						"risks", len(s.Risks),
						"matrix_total", s.Matrix.Total(),
						"excluded", len(s.Matrix.Excluded),
					)
				}),
			)

			ucOpts := []usecase.Option{
				usecase.WithCorruptRiskPolicy(appCfg.Policy()),
				usecase.WithExportPrefix(appCfg.ExportPrefixOrDefault()),
				usecase.WithListener(recorder),
				usecase.WithListener(refresher),
			}

			notifier, err := slackCfg.Configure(appCfg.Notify)
			if err != nil {
				return goerr.Wrap(err, "failed to configure Slack notifier")
			}
			if notifier != nil {
				ucOpts = append(ucOpts, usecase.WithListener(notifier))
				logging.Default().Info("Slack notification enabled")
			} else {
				logging.Default().Info("Slack Bot Token not configured, notifications disabled")
			}

			uc := usecase.New(repo, ucOpts...)

			if err := refresher.Start(ctx); err != nil {
				return goerr.Wrap(err, "failed to start register refresher")
			}

			httpHandler := httpctrl.New(uc,
				httpctrl.WithMetrics(recorder),
				httpctrl.WithSnapshot(refresher),
				httpctrl.WithAllowedOrigins(appCfg.AllowedOrigins),
			)
			server := &http.Server{
				Addr:              addr,
				Handler:           httpHandler,
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				refresher.Stop()
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				refresher.Stop()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
