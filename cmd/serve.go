package cmd

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/meetbridge/meetbridge/internal/config"
	"github.com/meetbridge/meetbridge/internal/instrumentation"
	"github.com/meetbridge/meetbridge/internal/server"
	"github.com/meetbridge/meetbridge/internal/tools/common"
	"github.com/meetbridge/meetbridge/internal/tools/meeting_tools"
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
		debugMode      bool
		transport      string
		listenAddr     string
		storeType      string
		natsURL        string
		retentionDays  int
		metricsEnabled bool
		metricsAddr    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook ingestor, content API and MCP server",
		Long: `Start the meetbridge server.

In http mode (the default) a single listener serves:
  - POST /webhooks/zoom       signed platform webhooks
  - POST /api/meetings/*      access-controlled content endpoints
  - POST /api/admin/grants    manual access grants (admin)
  - POST /api/retention/sweep scheduler-triggered retention sweep
  - /mcp                      streamable HTTP MCP transport
  - /healthz, /readyz         health endpoints

In stdio mode only the MCP tools are served, over standard input/output.
Webhook ingestion needs a reachable HTTP listener and is not available
over stdio.

Credentials are taken from the environment: ZOOM_ACCOUNT_ID,
ZOOM_CLIENT_ID, ZOOM_CLIENT_SECRET for the admin client and
ZOOM_WEBHOOK_SECRET for webhook signature validation.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			if cmd.Flags().Changed("listen-addr") {
				cfg.ListenAddr = listenAddr
			}
			if cmd.Flags().Changed("store") {
				cfg.Store = storeType
			}
			if cmd.Flags().Changed("nats-url") {
				cfg.NATSURL = natsURL
			}
			if cmd.Flags().Changed("retention-days") {
				cfg.RetentionDays = retentionDays
			}
			if cmd.Flags().Changed("metrics-addr") {
				cfg.MetricsAddr = metricsAddr
			}

			metricsConfig := MetricsConfig{
				Enabled: metricsEnabled,
				Addr:    cfg.MetricsAddr,
			}

			return runServe(cfg, transport, debugMode, metricsConfig)
		},
	}

	cmd.Flags().BoolVar(&debugMode, "debug", false, "Enable debug logging")
	cmd.Flags().StringVar(&transport, "transport", "http", "Transport type: http or stdio")
	cmd.Flags().StringVar(&listenAddr, "listen-addr", config.DefaultListenAddr, "HTTP server address. Can also use MEETBRIDGE_LISTEN_ADDR env var.")
	cmd.Flags().StringVar(&storeType, "store", config.StoreNATS, "Ledger store backend: nats or memory. Can also use MEETBRIDGE_STORE env var.")
	cmd.Flags().StringVar(&natsURL, "nats-url", config.DefaultNATSURL, "NATS server URL for the durable ledger. Can also use NATS_URL env var.")
	cmd.Flags().IntVar(&retentionDays, "retention-days", config.DefaultRetentionDays, "Ledger retention window in days. Can also use MEETBRIDGE_RETENTION_DAYS env var.")
	cmd.Flags().BoolVar(&metricsEnabled, "metrics-enabled", true, "Enable the metrics server on a dedicated port. Can also use METRICS_ENABLED env var.")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", config.DefaultMetricsAddr, "Metrics server address. Can also use METRICS_ADDR env var.")

	return cmd
}

func runServe(cfg config.Config, transport string, debugMode bool, metricsConfig MetricsConfig) error {
	// Setup graceful shutdown
	shutdownCtx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Webhook ingestion only runs over HTTP, so stdio mode does not need
	// the webhook secret.
	var err error
	if transport == "stdio" {
		err = cfg.Validate()
	} else {
		err = cfg.ValidateServe()
	}
	if err != nil {
		return err
	}

	logger := newLogger(debugMode)
	slog.SetDefault(logger)

	// Load metrics config from environment if not set via flags
	if !metricsConfig.Enabled {
		if os.Getenv("METRICS_ENABLED") == "true" {
			metricsConfig.Enabled = true
		}
	}
	if metricsConfig.Addr == "" || metricsConfig.Addr == config.DefaultMetricsAddr {
		if addr := os.Getenv("METRICS_ADDR"); addr != "" {
			metricsConfig.Addr = addr
		}
	}

	// Initialize instrumentation provider
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(shutdownCtx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(shutdownCtx); err != nil {
			if transport != "stdio" {
				log.Printf("Error during instrumentation shutdown: %v", err)
			}
		}
	}()

	// Start metrics server if enabled and not in stdio mode
	var metricsServer *server.MetricsServer
	if transport != "stdio" && metricsConfig.Enabled && provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    metricsConfig.Addr,
			Enabled:                 true,
			InstrumentationProvider: provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}

		// Use ready channel to confirm metrics server started successfully
		metricsReady := make(chan struct{})
		metricsErr := make(chan error, 1)
		go func() {
			if err := metricsServer.StartWithReadySignal(metricsReady); err != nil && err != http.ErrServerClosed {
				metricsErr <- err
			}
			close(metricsErr)
		}()

		select {
		case <-metricsReady:
			log.Printf("Metrics server started on %s", metricsServer.Addr())
		case err := <-metricsErr:
			return fmt.Errorf("metrics server failed to start: %w", err)
		case <-time.After(5 * time.Second):
			return fmt.Errorf("metrics server startup timed out")
		}
	}

	serverContext, err := server.NewServerContext(shutdownCtx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create server context: %w", err)
	}

	// Set metrics and audit logger on server context for tool instrumentation
	if provider.Enabled() {
		serverContext.SetMetrics(provider.Metrics())
		serverContext.SetAuditLogger(instrumentation.NewAuditLoggerWithConfig(nil, instrConfig.AuditLogging))
	}
	defer func() {
		// Shutdown metrics server first
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				log.Printf("Error during metrics server shutdown: %v", err)
			}
		}
		if err := serverContext.Shutdown(); err != nil {
			if transport != "stdio" {
				log.Printf("Error during server context shutdown: %v", err)
			}
		}
	}()

	// Create MCP server
	mcpSrv := mcpserver.NewMCPServer("meetbridge", version,
		mcpserver.WithToolCapabilities(true),
	)

	if err := meeting_tools.RegisterMeetingTools(mcpSrv, serverContext); err != nil {
		return fmt.Errorf("failed to register meeting tools: %w", err)
	}

	switch transport {
	case "stdio":
		return runStdioServer(mcpSrv)
	case "http":
		return runHTTPServer(shutdownCtx, cfg, serverContext, mcpSrv, provider, metricsConfig)
	default:
		return fmt.Errorf("unsupported transport type: %s (supported: http, stdio)", transport)
	}
}

// newLogger builds the process logger. Logs go to stderr so stdio MCP
// framing on stdout stays clean.
func newLogger(debugMode bool) *slog.Logger {
	level := slog.LevelInfo
	if debugMode {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func runStdioServer(mcpSrv *mcpserver.MCPServer) error {
	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := mcpserver.ServeStdio(mcpSrv); err != nil {
			serverDone <- err
		}
	}()

	err := <-serverDone
	if err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runHTTPServer(ctx context.Context, cfg config.Config, serverContext *server.ServerContext, mcpSrv *mcpserver.MCPServer, provider *instrumentation.Provider, metricsConfig MetricsConfig) error {
	healthChecker := server.NewHealthChecker(serverContext)
	if probe, ok := serverContext.Store().(interface {
		IsReady(ctx context.Context) error
	}); ok {
		healthChecker.SetStoreProbe(probe.IsReady)
	}

	// The MCP transport forwards the Authorization header into the tool
	// context, so assistants can authenticate without passing tokens as
	// tool arguments.
	streamableServer := mcpserver.NewStreamableHTTPServer(mcpSrv,
		mcpserver.WithEndpointPath("/mcp"),
		mcpserver.WithHTTPContextFunc(common.HTTPContextFunc),
	)

	mux := http.NewServeMux()
	mux.Handle("/mcp", streamableServer)
	mux.Handle("/", serverContext.Handler(healthChecker))

	var handler http.Handler = mux
	if provider != nil && provider.Enabled() {
		handler = server.MetricsMiddleware(provider.Metrics(), handler)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	fmt.Printf("meetbridge server starting on %s\n", cfg.ListenAddr)
	fmt.Printf("  Webhook endpoint: /webhooks/zoom\n")
	fmt.Printf("  Content endpoints: /api/meetings/{list,summary,transcript}\n")
	fmt.Printf("  MCP endpoint: /mcp\n")
	fmt.Printf("  Health endpoints: /healthz, /readyz\n")
	if metricsConfig.Enabled {
		fmt.Printf("  Metrics endpoint: %s/metrics\n", metricsConfig.Addr)
	}

	serverDone := make(chan error, 1)
	go func() {
		defer close(serverDone)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverDone <- err
		}
	}()

	select {
	case <-ctx.Done():
		fmt.Println("Shutdown signal received, stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("error shutting down HTTP server: %w", err)
		}
	case err := <-serverDone:
		if err != nil {
			return fmt.Errorf("HTTP server stopped with error: %w", err)
		}
		fmt.Println("HTTP server stopped normally")
	}

	fmt.Println("HTTP server gracefully stopped")
	return nil
}
