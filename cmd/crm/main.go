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

	"github.com/boddenberg/travel-crm-go/internal/config"
	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/handler"
	"github.com/boddenberg/travel-crm-go/internal/infra/cache"
	"github.com/boddenberg/travel-crm-go/internal/infra/mail"
	"github.com/boddenberg/travel-crm-go/internal/infra/memory"
	"github.com/boddenberg/travel-crm-go/internal/infra/observability"
	"github.com/boddenberg/travel-crm-go/internal/infra/postgres"
	"github.com/boddenberg/travel-crm-go/internal/infra/queue"
	"github.com/boddenberg/travel-crm-go/internal/infra/resilience"
	"github.com/boddenberg/travel-crm-go/internal/infra/storage"
	"github.com/boddenberg/travel-crm-go/internal/infra/supabase"
	"github.com/boddenberg/travel-crm-go/internal/port"
	"github.com/boddenberg/travel-crm-go/internal/service"

	"go.uber.org/zap"
)

const devProfileID = "00000000-0000-0000-0000-000000000001"

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, "travel-crm")
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("timezone", cfg.Timezone),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Int("document_warning_days", cfg.DocumentWarningDays),
		zap.Bool("amqp", cfg.AMQPURL != ""),
		zap.Bool("smtp", cfg.SMTPHost != ""),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "travel-crm")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Cache ---
	profileCache := cache.New[*domain.Profile](cfg.CacheTTL)
	defer profileCache.Close()

	// --- Record store & file storage ---
	var (
		store    port.RecordStore
		files    port.FileStorage
		filesDir string
	)

	switch cfg.StoreBackend {
	case config.BackendSupabase:
		logger.Info("using Supabase as data backend", zap.String("supabase_url", cfg.SupabaseURL))
		resilienceCfg := resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}
		client := supabase.NewClient(
			&http.Client{Timeout: cfg.HTTPTimeout},
			cfg.SupabaseURL,
			cfg.SupabaseAnonKey,
			cfg.SupabaseServiceKey,
			cfg.StorageBucket,
			resilience.NewCircuitBreaker("supabase"),
			resilienceCfg,
			logger,
		)
		store = client
		files = supabase.NewStorage(client)

	case config.BackendPostgres:
		logger.Info("using Postgres as data backend")
		pool, err := postgres.NewPool(ctx, cfg.DatabaseDSN, cfg.DatabaseMaxConns)
		if err != nil {
			logger.Fatal("failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		if cfg.DatabaseMigrate {
			if err := postgres.Migrate(ctx, pool); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		store = postgres.NewStore(pool)
		files, filesDir = mustLocalStorage(cfg.UploadDir, logger)

	case config.BackendMemory:
		logger.Warn("using in-memory data backend, records are lost on restart")
		mem := memory.New()
		mem.PutProfile(domain.Profile{
			ID:       devProfileID,
			Email:    "dev@travel-crm.local",
			FullName: "Developer",
			Role:     domain.RoleDeveloper,
			Status:   domain.ProfileApproved,
			IsActive: true,
		})
		store = mem
		files, filesDir = mustLocalStorage(cfg.UploadDir, logger)
	}

	// --- Notification delivery ---
	var dispatcher port.NotificationDispatcher = queue.LogDispatcher{Logger: logger}
	if cfg.AMQPURL != "" {
		rmq, err := queue.NewRabbitMQ(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			logger.Fatal("failed to connect to rabbitmq", zap.Error(err))
		}
		defer rmq.Close()
		dispatcher = queue.NewProducer(rmq.Ch, logger)
		logger.Info("notification events published to rabbitmq", zap.String("queue", cfg.AMQPQueue))

		if cfg.SMTPHost != "" {
			consumerCh, err := rmq.Conn.Channel()
			if err != nil {
				logger.Fatal("failed to open consumer channel", zap.Error(err))
			}
			mailer := mail.NewEmailSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.MailFrom)
			delivery := service.NewDeliveryService(store, mailer, logger)
			worker := queue.NewWorker(consumerCh, delivery.Deliver, logger)
			go func() {
				if err := worker.Run(ctx, cfg.AMQPQueue); err != nil {
					logger.Error("delivery worker stopped", zap.Error(err))
				}
			}()
		} else {
			logger.Warn("SMTP not configured, notification events stay queued")
		}
	}

	// --- Services ---
	loc := cfg.Location()
	notifier := service.NewNotifier(store, dispatcher, logger)
	authSvc := service.NewAuthService(store, store, notifier, profileCache, cfg.SupabaseJWTSecret, metrics, logger)
	leadSvc := service.NewLeadService(store, store, files, logger)
	docSvc := service.NewDocumentService(store, leadSvc, files, service.DocumentConfig{
		Location:       loc,
		WarningDays:    cfg.DocumentWarningDays,
		UpcomingDays:   cfg.DocumentUpcomingDays,
		MaxConcurrency: cfg.MaxConcurrency,
	}, logger)

	svcs := handler.Services{
		Auth:          authSvc,
		Leads:         leadSvc,
		Transitions:   service.NewTransitionService(store, metrics, logger),
		Documents:     docSvc,
		Notifications: service.NewNotificationService(store, store, notifier, logger),
		Generator: service.NewNotificationGenerator(store, notifier, service.GeneratorConfig{
			Location:       loc,
			NotifyDays:     cfg.DocumentNotifyDays,
			MaxConcurrency: cfg.MaxConcurrency,
		}, metrics, logger),
		Dashboard: service.NewDashboardService(leadSvc, store, store, docSvc, cfg.MaxConcurrency, metrics, logger),
	}

	if cfg.StoreBackend == config.BackendMemory {
		tok, err := authSvc.SignAccessToken(devProfileID, "dev@travel-crm.local", 24*time.Hour)
		if err != nil {
			logger.Fatal("failed to sign dev token", zap.Error(err))
		}
		logger.Info("development token issued", zap.String("profile_id", devProfileID), zap.String("token", tok))
	}

	// --- Router ---
	router := handler.NewRouter(svcs, handler.Options{
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		MaxUploadBytes:     cfg.MaxUploadBytes,
		FilesDir:           filesDir,
		Store:              store,
	}, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}

func mustLocalStorage(dir string, logger *zap.Logger) (*storage.Local, string) {
	local, err := storage.NewLocal(dir, "/files")
	if err != nil {
		logger.Fatal("failed to prepare upload dir", zap.Error(err), zap.String("dir", dir))
	}
	return local, local.Root()
}
