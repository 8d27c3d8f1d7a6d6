package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/inboxintake/internal/config"
	"github.com/teemow/inboxintake/internal/instrumentation"
	"github.com/teemow/inboxintake/internal/server"
)

// MetricsConfig holds configuration for the metrics server
type MetricsConfig struct {
	// Enabled determines whether to start the metrics server (default: true)
	Enabled bool
	// Addr is the address for the metrics server (e.g., ":9090")
	Addr string
}

func newServeCmd() *cobra.Command {
	var (
		httpAddr       string
		corsOrigins    []string
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		Long: `Start the document intake HTTP API.

Endpoints:
  POST /api/analyze-document   classify an uploaded image or PDF
  GET  /api/gmail/auth-url     start the Gmail consent flow
  GET  /api/gmail/callback     OAuth redirect target
  POST /api/gmail/import       import attachments for an authorized state
  POST /api/gmail/test-search  run diagnostic mailbox searches
  GET  /api/documents          list imported documents

Gmail import needs an OAuth client (GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET
or GMAIL_CLIENT_SECRETS_FILE) and storage (DATABASE_URL and STORAGE_BUCKET).
Without them the corresponding endpoints answer 503.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			applyServeFlags(cmd, cfg, httpAddr, corsOrigins, metricsAddr)
			if err := cfg.Validate(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("metrics-enabled") && os.Getenv("METRICS_ENABLED") == "false" {
				metricsEnabled = false
			}
			return runServe(cfg, MetricsConfig{Enabled: metricsEnabled, Addr: cfg.HTTP.MetricsAddr})
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http-addr", "", "HTTP API address (default :5000). Can also use HTTP_ADDR env var.")
	cmd.Flags().StringSliceVar(&corsOrigins, "cors-origins", nil, "Allowed CORS origins, comma-separated (default *). Can also use CORS_ORIGINS env var.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Metrics server address (default :9090). Can also use METRICS_ADDR env var.")

	return cmd
}

// applyServeFlags overrides c with flags the user set explicitly.
func applyServeFlags(cmd *cobra.Command, c *config.Config, httpAddr string, corsOrigins []string, metricsAddr string) {
	if cmd.Flags().Changed("http-addr") {
		c.HTTP.Addr = httpAddr
	}
	if cmd.Flags().Changed("cors-origins") {
		c.HTTP.CORSOrigins = corsOrigins
	}
	if cmd.Flags().Changed("metrics-addr") {
		c.HTTP.MetricsAddr = metricsAddr
	}
}

func runServe(c *config.Config, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(ctx); err != nil {
			logger.Warn("error during instrumentation shutdown", "error", err)
		}
	}()

	serverContext := server.NewServerContext(shutdownCtx)
	defer func() { _ = serverContext.Shutdown() }()

	comps, err := buildComponents(serverContext.Context(), c, provider.Metrics(), serverContext.OnShutdown)
	if err != nil {
		return err
	}

	health := server.NewHealthChecker(serverContext)
	for name, check := range comps.Checks {
		health.AddCheck(name, check)
	}

	srvCfg := server.Config{
		Classifier:  comps.Classifier,
		Sessions:    comps.Sessions,
		Health:      health,
		Metrics:     provider.Metrics(),
		Audit:       instrumentation.NewAuditLogger(logger, instrConfig.AuditLogging),
		Logger:      logger,
		CORSOrigins: c.HTTP.CORSOrigins,
	}
	// Assign only non-nil collaborators so the interfaces stay nil.
	if comps.OAuth != nil {
		srvCfg.OAuth = comps.OAuth
	}
	if comps.Importer != nil {
		srvCfg.Importer = comps.Importer
	}
	if comps.Metadata != nil {
		srvCfg.Documents = comps.Metadata
	}

	apiServer, err := server.New(srvCfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var metricsServer *server.MetricsServer
	if metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			InstrumentationProvider: provider,
		})
		if err != nil {
			logger.Warn("metrics server disabled", "error", err)
			metricsServer = nil
		} else {
			logger.Info("metrics server starting", "addr", metricsServer.Addr())
			go func() {
				if err := metricsServer.Start(); err != nil {
					logger.Error("metrics server error", "error", err)
				}
			}()
		}
	}

	serverDone := make(chan error, 1)
	go func() { serverDone <- apiServer.Start(c.HTTP.Addr) }()

	select {
	case <-shutdownCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
	}

	health.SetReady(false)
	ctx, cancelShutdown := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancelShutdown()

	if metricsServer != nil {
		if err := metricsServer.Shutdown(ctx); err != nil {
			logger.Warn("error shutting down metrics server", "error", err)
		}
	}
	if err := apiServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("error shutting down HTTP server: %w", err)
	}

	logger.Info("HTTP server gracefully stopped")
	return nil
}
