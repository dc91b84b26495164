package server

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/meetbridge/meetbridge/internal/config"
	"github.com/meetbridge/meetbridge/internal/instrumentation"
	"github.com/meetbridge/meetbridge/internal/ledger"
	"github.com/meetbridge/meetbridge/internal/logging"
	"github.com/meetbridge/meetbridge/internal/proxy"
	"github.com/meetbridge/meetbridge/internal/sweeper"
	"github.com/meetbridge/meetbridge/internal/webhook"
	"github.com/meetbridge/meetbridge/internal/zoom"
)

// ServerContext wires the serving shell together: the ledger store, the
// admin-credential client, the webhook ingestor, the proxy service and the
// retention sweeper. It owns their lifecycle and the shutdown signal.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc
	cfg    config.Config
	logger *slog.Logger

	store      ledger.Store
	storeClose func() error

	zoomClient     *zoom.Client
	webhookHandler *webhook.Handler
	proxyService   *proxy.Service
	proxyHandler   *proxy.Handler
	sweeper        *sweeper.Sweeper

	metrics     *instrumentation.Metrics
	auditLogger *instrumentation.AuditLogger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext builds the full serving shell from validated
// configuration. The caller is expected to have run cfg.ValidateServe.
func NewServerContext(ctx context.Context, cfg config.Config, logger *slog.Logger) (*ServerContext, error) {
	if logger == nil {
		logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	zoomClient, err := zoom.NewClient(zoom.Config{
		BaseURL:  cfg.ZoomBaseURL,
		TokenURL: cfg.ZoomTokenURL,
		Credentials: zoom.Credentials{
			AccountID:    cfg.ZoomAccountID,
			ClientID:     cfg.ZoomClientID,
			ClientSecret: cfg.ZoomClientSecret,
		},
		RequestsPerSecond: cfg.RequestsPerSecond,
	})
	if err != nil {
		cancel()
		return nil, err
	}

	var (
		store      ledger.Store
		storeClose func() error
	)
	switch cfg.Store {
	case config.StoreMemory:
		store = ledger.NewMemStore()
	default:
		natsStore, err := ledger.NewNATSStore(shutdownCtx, ledger.NATSStoreConfig{
			URL:     cfg.NATSURL,
			Timeout: cfg.NATSTimeout,
		})
		if err != nil {
			cancel()
			return nil, err
		}
		store = natsStore
		storeClose = natsStore.Close
	}

	// Webhook ingestion is only wired when a secret is configured; CLI
	// commands and stdio mode run without it.
	var webhookHandler *webhook.Handler
	if cfg.WebhookSecret != "" {
		validator, err := webhook.NewValidator(cfg.WebhookSecret)
		if err != nil {
			cancel()
			if storeClose != nil {
				_ = storeClose()
			}
			return nil, err
		}
		webhookHandler = webhook.NewHandler(validator, store, zoomClient, logger)
	}

	proxyService := proxy.NewService(store, zoomClient, zoomClient, logger)
	retentionSweeper := sweeper.New(store, zoomClient, cfg.Retention(), logger)

	return &ServerContext{
		ctx:            shutdownCtx,
		cancel:         cancel,
		cfg:            cfg,
		logger:         logging.WithComponent(logger, "server"),
		store:          store,
		storeClose:     storeClose,
		zoomClient:     zoomClient,
		webhookHandler: webhookHandler,
		proxyService:   proxyService,
		proxyHandler:   proxy.NewHandler(proxyService, retentionSweeper, cfg.SchedulerToken, logger),
		sweeper:        retentionSweeper,
	}, nil
}

// Context returns the server lifecycle context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Config returns the configuration the context was built from.
func (sc *ServerContext) Config() config.Config {
	return sc.cfg
}

// Store returns the participation ledger.
func (sc *ServerContext) Store() ledger.Store {
	return sc.store
}

// ZoomClient returns the admin-credential platform client.
func (sc *ServerContext) ZoomClient() *zoom.Client {
	return sc.zoomClient
}

// ProxyService returns the access-controlled content service.
func (sc *ServerContext) ProxyService() *proxy.Service {
	return sc.proxyService
}

// Sweeper returns the retention sweeper.
func (sc *ServerContext) Sweeper() *sweeper.Sweeper {
	return sc.sweeper
}

// Handler builds the main HTTP surface: webhook ingestion, proxy endpoints,
// the retention endpoint and health probes. The metrics server runs
// separately on its own port.
func (sc *ServerContext) Handler(health *HealthChecker) http.Handler {
	mux := http.NewServeMux()
	if sc.webhookHandler != nil {
		mux.Handle("POST /webhooks/zoom", sc.webhookHandler)
	}
	sc.proxyHandler.Register(mux)
	if health != nil {
		health.RegisterHealthEndpoints(mux)
	}
	return mux
}

// SetMetrics sets the metrics recorder used by instrumented tool handlers.
func (sc *ServerContext) SetMetrics(metrics *instrumentation.Metrics) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.metrics = metrics
}

// Metrics returns the metrics recorder, or nil when instrumentation is off.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.metrics
}

// SetAuditLogger sets the access-decision audit logger.
func (sc *ServerContext) SetAuditLogger(auditLogger *instrumentation.AuditLogger) {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	sc.auditLogger = auditLogger
}

// AuditLogger returns the audit logger, or nil when not configured.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.auditLogger
}

// IsShutdown returns whether the server has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the lifecycle context and releases held connections.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()

	if sc.storeClose != nil {
		return sc.storeClose()
	}
	return nil
}
