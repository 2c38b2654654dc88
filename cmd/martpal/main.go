package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asherv/martpal-go/internal/bus"
	"github.com/asherv/martpal-go/internal/config"
	"github.com/asherv/martpal-go/internal/domain"
	"github.com/asherv/martpal-go/internal/handler"
	"github.com/asherv/martpal-go/internal/infra/cache"
	"github.com/asherv/martpal-go/internal/infra/channel"
	"github.com/asherv/martpal-go/internal/infra/credstore"
	"github.com/asherv/martpal-go/internal/infra/firestore"
	"github.com/asherv/martpal-go/internal/infra/observability"
	"github.com/asherv/martpal-go/internal/infra/resilience"
	"github.com/asherv/martpal-go/internal/port"
	"github.com/asherv/martpal-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("firestore_project", cfg.FirestoreProjectID),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
		zap.Duration("session_inactivity_timeout", cfg.InactivityTimeout),
		zap.Bool("dedup_case_insensitive", cfg.DedupFold),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "martpal")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	profileCache := cache.New[*domain.User](cfg.CacheTTL)

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	if cfg.FirestoreProjectID == "" {
		logger.Fatal("FIRESTORE_PROJECT_ID is required")
	}
	store := firestore.NewClient(
		httpClient,
		cfg.FirestoreBaseURL,
		cfg.FirestoreProjectID,
		cfg.FirestoreAPIKey,
		resilience.NewCircuitBreaker("firestore"),
		resilienceCfg,
		logger,
	)

	connector := firestore.NewManager(httpClient, cfg.FirestoreBaseURL, resilienceCfg, logger)
	creds := credstore.NewFileStore(cfg.CredentialFile, logger)

	// --- Event bus ---
	events := bus.New()

	// --- Message channels ---
	senders := map[string]port.ChannelSender{}
	if cfg.SMTPHost != "" {
		senders[domain.PlatformEmail] = channel.NewEmailSender(
			cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom, logger,
		)
		logger.Info("email channel enabled", zap.String("smtp_host", cfg.SMTPHost))
	} else {
		logger.Warn("email channel: SMTP not configured, email dispatch unavailable")
	}
	if cfg.UltraMsgInstanceID != "" {
		senders[domain.PlatformWhatsApp] = channel.NewWhatsAppSender(
			httpClient,
			cfg.UltraMsgBaseURL,
			cfg.UltraMsgInstanceID,
			cfg.UltraMsgToken,
			resilience.NewCircuitBreaker("ultramsg"),
			resilienceCfg,
			logger,
		)
		logger.Info("whatsapp channel enabled", zap.String("instance", cfg.UltraMsgInstanceID))
	} else {
		logger.Warn("whatsapp channel: UltraMsg not configured, whatsapp dispatch unavailable")
	}

	// --- Services ---
	sessionSvc := service.NewSessionService(
		store, profileCache, metrics,
		cfg.JWTSecret, cfg.JWTAccessTTL, cfg.InactivityTimeout,
		logger,
	)
	defer sessionSvc.Close()

	sourceSvc := service.NewSourceService(connector, creds, store, events, logger)
	importSvc := service.NewImportService(sourceSvc, store, events, metrics, cfg.DedupFold, logger)
	leadSvc := service.NewLeadService(store, events, metrics, logger)
	messageSvc := service.NewMessageService(
		store, store, senders,
		resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics, logger,
	)
	templateSvc := service.NewTemplateService(store, logger)

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Sessions:      sessionSvc,
		Sources:       sourceSvc,
		Imports:       importSvc,
		Leads:         leadSvc,
		Messages:      messageSvc,
		Templates:     templateSvc,
		Metrics:       metrics,
		Store:         store,
		WatchInterval: cfg.WatchInterval,
		Logger:        logger,
	})

	// --- Server ---
	// WriteTimeout stays unset: the /v1/leads/watch stream holds its
	// response open past any fixed write deadline.
	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
