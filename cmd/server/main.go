package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	dispensingapp "github.com/erp/dispensing/internal/application/dispensing"
	"github.com/erp/dispensing/internal/infrastructure/auth"
	"github.com/erp/dispensing/internal/infrastructure/backend"
	"github.com/erp/dispensing/internal/infrastructure/cache"
	"github.com/erp/dispensing/internal/infrastructure/config"
	"github.com/erp/dispensing/internal/infrastructure/event"
	"github.com/erp/dispensing/internal/infrastructure/export"
	"github.com/erp/dispensing/internal/infrastructure/logger"
	"github.com/erp/dispensing/internal/infrastructure/printing"
	"github.com/erp/dispensing/internal/infrastructure/storage"
	"github.com/erp/dispensing/internal/infrastructure/strategy"
	"github.com/erp/dispensing/internal/infrastructure/telemetry"
	"github.com/erp/dispensing/internal/interfaces/http/handler"
	"github.com/erp/dispensing/internal/interfaces/http/middleware"
	"github.com/erp/dispensing/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Service:    cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	log.Info("Starting dispensing service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	rootCtx := context.Background()

	// OpenTelemetry
	providers, err := telemetry.NewProviders(rootCtx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		if err := providers.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down telemetry", zap.Error(err))
		}
	}()
	metrics, err := telemetry.NewDispensingMetrics(providers.Meter("dispensing"))
	if err != nil {
		log.Fatal("Failed to create dispensing metrics", zap.Error(err))
	}

	// Idempotency and privilege caches
	stores, err := cache.NewStores(cfg.Redis, cache.WithLogger(log), cache.WithInMemoryFallback(true))
	if err != nil {
		log.Fatal("Failed to initialize caches", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing caches", zap.Error(err))
		}
	}()

	// Backend collaborator and dispensing services
	client := backend.NewClient(cfg.Backend, log)
	reconciler := dispensingapp.NewReconciler(client, dispensingapp.ReconcilerConfig{
		Cause:          cfg.Dispensing.HistoricalCause,
		PageSize:       cfg.Backend.PageSize,
		MaxConcurrency: cfg.Backend.MaxConcurrency,
	}, log).WithMetrics(metrics)
	privileges := dispensingapp.NewPrivilegeResolver(client, stores.Privileges, dispensingapp.PrivilegeConfig{
		SuperRole:    cfg.Dispensing.SuperRole,
		Threshold:    cfg.Dispensing.PrivilegeThreshold,
		AccessModule: cfg.Dispensing.AccessModule,
		CacheTTL:     cfg.Dispensing.PrivilegeCacheTTL,
	}, log)
	pickers, err := strategy.NewDefaultPickerRegistry(cfg.Dispensing.LotStrategy)
	if err != nil {
		log.Fatal("Invalid lot strategy", zap.String("strategy", cfg.Dispensing.LotStrategy), zap.Error(err))
	}

	eventBus := event.NewInMemoryEventBus(log)

	sessions := dispensingapp.NewSessionManager(dispensingapp.Dependencies{
		Backend:     client,
		Reconciler:  reconciler,
		Privileges:  privileges,
		Pickers:     pickers,
		Idempotency: stores.Idempotency,
		Events:      eventBus,
		Metrics:     metrics,
	}, dispensingapp.SessionConfig{
		Tolerance:      cfg.Dispensing.Tolerance,
		LotStrategy:    cfg.Dispensing.LotStrategy,
		IdempotencyTTL: cfg.Dispensing.SubmitIdempotencyTTL,
	}, cfg.Dispensing.SessionTTL, log)
	sessions.Start(0)
	defer sessions.Close()

	// An accepted submission refreshes the historical totals of the submitting session
	refreshHandler := dispensingapp.NewHistoricalRefreshHandler(sessions, log)
	eventBus.Subscribe(refreshHandler, refreshHandler.EventTypes()...)
	if err := eventBus.Start(rootCtx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	documents := newDocumentService(rootCtx, cfg, log)
	if documents != nil {
		defer documents.close()
	}

	// HTTP
	middleware.SetupValidator()
	jwtService := auth.NewJWTService(cfg.JWT)

	engineCfg := router.EngineConfig{
		Logger:    log,
		Validator: jwtService,
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		},
		AllowOrigins:   cfg.HTTP.AllowOrigins,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		System: handler.NewSystemHandler(handler.SystemInfo{
			Name:         cfg.App.Name,
			Version:      version,
			Env:          cfg.App.Env,
			CacheBackend: stores.Backend,
		}, sessions),
	}
	if documents != nil {
		engineCfg.Dispensing = handler.NewDispensingHandler(sessions, documents.service)
	} else {
		engineCfg.Dispensing = handler.NewDispensingHandler(sessions, nil)
	}
	engine, err := router.NewEngine(engineCfg)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := eventBus.Stop(ctx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

type documentService struct {
	service  *dispensingapp.DocumentService
	renderer printing.PDFRenderer
}

func (d *documentService) close() {
	_ = d.renderer.Close()
}

// newDocumentService wires rendering and storage for document export.
// It returns nil when no storage is usable, which disables the endpoint.
func newDocumentService(ctx context.Context, cfg *config.Config, log *zap.Logger) *documentService {
	var store dispensingapp.DocumentStore
	switch cfg.Storage.Provider {
	case "s3":
		s3Store, err := storage.NewS3DocumentStore(ctx, cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Error("Document storage unavailable, export disabled", zap.Error(err))
			return nil
		}
		if err := s3Store.EnsureBucket(ctx); err != nil {
			log.Error("Document bucket unavailable, export disabled", zap.String("bucket", cfg.Storage.Bucket), zap.Error(err))
			return nil
		}
		store = s3Store
	case "local":
		localStore, err := storage.NewLocalDocumentStore(cfg.Storage.LocalDir, cfg.Storage.LocalBaseURL)
		if err != nil {
			log.Error("Document directory unavailable, export disabled", zap.Error(err))
			return nil
		}
		store = localStore
	default:
		log.Info("Document export disabled", zap.String("provider", cfg.Storage.Provider))
		return nil
	}

	templates, err := printing.NewTemplateEngine()
	if err != nil {
		log.Error("Failed to parse document templates, export disabled", zap.Error(err))
		return nil
	}

	var renderer printing.PDFRenderer = printing.DisabledRenderer{}
	if cfg.Printing.Enabled {
		renderer = printing.NewChromedpRenderer(printing.ChromedpConfig{
			DefaultTimeout: cfg.Printing.Timeout,
			RemoteURL:      cfg.Printing.RemoteURL,
			ExecPath:       cfg.Printing.ChromePath,
			NoSandbox:      true,
			Logger:         log,
		})
	}

	return &documentService{
		service:  dispensingapp.NewDocumentService(templates, renderer, export.NewXLSXWriter(), store, cfg.Storage.PresignExpiration, log),
		renderer: renderer,
	}
}
