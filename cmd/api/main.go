package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"renit/internal/api"
	"renit/internal/auth"
	"renit/internal/chat"
	"renit/internal/config"
	"renit/internal/database"
	"renit/internal/database/postgres"
	"renit/internal/domain"
	"renit/internal/events"
	"renit/internal/export"
	"renit/internal/google"
	"renit/internal/logging"
	"renit/internal/metrics"
	"renit/internal/models"
	"renit/internal/notification"
	"renit/internal/payment"
	"renit/internal/repository"
	"renit/internal/scheduler"
	"renit/internal/service"
	"renit/internal/worker"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const healthProbeInterval = 15 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	cfg, logger, closer, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	if closer != nil {
		defer (func() { _ = closer.Close() })()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, sqliteDB, err := initDatabase(ctx, cfg, &logger)
	if err != nil {
		return err
	}
	defer repo.Close()

	redisClient := initRedis(ctx, cfg, &logger)
	if redisClient != nil {
		defer redisClient.Close()
	}

	limiter := initRateLimiter(ctx, redisClient, &logger)
	relay := initRelay(redisClient, &logger)

	bus := events.NewEventBus()
	bus.OnError(func(event *events.Event, err error) {
		logger.Error().Err(err).Str("event_type", event.Type).Msg("event handler error")
	})

	if forwarder := initAMQP(cfg, bus, &logger); forwarder != nil {
		defer forwarder.Close()
	}
	if notifier := initTelegram(cfg, repo, bus, &logger); notifier != nil {
		go notifier.Run(ctx)
	}

	var syncWorker domain.SyncWorker
	if sheetsWorker := initSheetsWorker(ctx, cfg, repo, redisClient, &logger); sheetsWorker != nil {
		go sheetsWorker.Start(ctx)
		syncWorker = sheetsWorker
	}

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, cfg.Auth.Issuer)
	bookings := service.NewBookingService(repo, repo, bus, syncWorker, &logger)

	services := api.Services{
		Users:    service.NewUserService(repo, auth.NewPasswordHasher(cfg.Auth.BcryptCost), tokens, &logger),
		Catalog:  service.NewCatalogService(repo, repo, repo, &logger),
		Bookings: bookings,
		Reviews:  service.NewReviewService(repo, repo),
		Messages: service.NewMessageService(repo, repo, repo, relay, &logger),
		Exporter: export.NewExporter(repo, cfg.Exports.Path, &logger),
		Tokens:   tokens,
		Limiter:  limiter,
		Store:    repo,
	}
	if cfg.Payment.Provider != "" {
		provider := payment.NewStripeProvider(cfg.Payment)
		services.Checkout = service.NewCheckoutService(repo, repo, provider, bookings, &logger)
	}

	var backup scheduler.BackupRunner
	if sqliteDB != nil && cfg.Backup.Enabled {
		backup = database.NewBackupService(sqliteDB, cfg.Backup, &logger)
	}
	sched, err := scheduler.NewScheduler(cfg, bookings, backup, &logger)
	if err != nil {
		return fmt.Errorf("init scheduler: %w", err)
	}
	sched.Start()
	defer sched.Stop()

	startMetrics(ctx, cfg, &logger)

	httpServer := api.NewHTTPServer(cfg, services, &logger)

	var grpcServer *api.GRPCServer
	if cfg.API.GRPC.Enabled {
		grpcServer, err = api.NewGRPCServer(&cfg.API, repo, &logger)
		if err != nil {
			logger.Error().Err(err).Msg("create grpc server")
			return err
		}
		go grpcServer.RunProbes(ctx, healthProbeInterval)
	}

	return startServers(ctx, grpcServer, httpServer, cfg, &logger)
}

func loadConfigAndLogger() (*config.Config, zerolog.Logger, io.Closer, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return nil, zerolog.Logger{}, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, *logging.Component(baseLogger, "api-main"), closer, nil
}

// initDatabase opens the configured store. The SQLite handle is returned
// separately because only file backups need it.
func initDatabase(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (domain.Repository, *database.DB, error) {
	switch cfg.Database.Driver {
	case config.DriverPostgres:
		store, err := postgres.Open(ctx, cfg.Database.Postgres, logger)
		if err != nil {
			logger.Error().Err(err).Str("host", cfg.Database.Postgres.Host).Msg("init postgres")
			return nil, nil, err
		}
		return store, nil, nil
	default:
		db, err := database.NewDB(cfg.Database.Path, logger)
		if err != nil {
			logger.Error().Err(err).Str("db_path", cfg.Database.Path).Msg("init database")
			return nil, nil, err
		}
		return db, db, nil
	}
}

func initRedis(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) *redis.Client {
	if cfg.Redis.Address == "" {
		return nil
	}

	redisClient := repository.NewRedisClient(cfg.Redis)
	if err := repository.Ping(ctx, redisClient); err != nil {
		logger.Warn().Err(err).Msg("redis connection failed, continuing without redis")
		_ = redisClient.Close()
		return nil
	}

	logger.Info().Str("addr", cfg.Redis.Address).Msg("redis connected")
	return redisClient
}

func initRateLimiter(ctx context.Context, redisClient *redis.Client, logger *zerolog.Logger) domain.RateLimiter {
	memory := repository.NewMemoryRateLimiter()
	go sweepLimiter(ctx, memory)

	if redisClient == nil {
		return memory
	}
	return repository.NewFailoverRateLimiter(repository.NewRedisRateLimiter(redisClient), memory, logger)
}

func sweepLimiter(ctx context.Context, limiter *repository.MemoryRateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Sweep()
		}
	}
}

func initRelay(redisClient *redis.Client, logger *zerolog.Logger) domain.MessageRelay {
	if redisClient == nil {
		return chat.NewMemoryRelay(models.SubscriberBuffer)
	}
	return chat.NewRedisRelay(redisClient, models.SubscriberBuffer, logger)
}

func initAMQP(cfg *config.Config, bus *events.EventBus, logger *zerolog.Logger) *events.AMQPForwarder {
	if cfg.Messaging.AMQPURL == "" {
		return nil
	}

	forwarder, err := events.NewAMQPForwarder(cfg.Messaging.AMQPURL, cfg.Messaging.Exchange, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("amqp init failed, continuing without event forwarding")
		return nil
	}
	forwarder.Attach(bus)

	logger.Info().Str("exchange", cfg.Messaging.Exchange).Msg("amqp forwarder attached")
	return forwarder
}

func initTelegram(cfg *config.Config, repo domain.Repository, bus *events.EventBus, logger *zerolog.Logger) *notification.TelegramNotifier {
	if cfg.Telegram.BotToken == "" {
		return nil
	}

	bot, err := notification.NewBotSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
	if err != nil {
		logger.Warn().Err(err).Msg("telegram init failed, continuing without notifications")
		return nil
	}

	notifier := notification.NewTelegramNotifier(bot, repo, repo, logger)
	notifier.Attach(bus)

	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier attached")
	return notifier
}

func initSheetsWorker(
	ctx context.Context,
	cfg *config.Config,
	repo domain.Repository,
	redisClient *redis.Client,
	logger *zerolog.Logger,
) *worker.SheetsWorker {
	if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.BookingSpreadSheetID == "" {
		return nil
	}

	sheets, err := google.NewSheetsService(ctx, cfg.Google.GoogleCredentialsFile, cfg.Google.BookingSpreadSheetID)
	if err != nil {
		logger.Warn().Err(err).Msg("google sheets init failed, continuing without sheets")
		return nil
	}
	if err := sheets.TestConnection(ctx); err != nil {
		ev := logger.Warn().Err(err)
		if email, emailErr := google.ServiceAccountEmail(cfg.Google.GoogleCredentialsFile); emailErr == nil {
			// usually the sheet was never shared with the service account
			ev = ev.Str("share_with", email)
		}
		ev.Msg("google sheets unreachable, continuing without sheets")
		return nil
	}
	if err := sheets.WarmUpCache(ctx); err != nil {
		logger.Warn().Err(err).Msg("google sheets cache warm-up failed")
	}

	logger.Info().Msg("google sheets connected")
	return worker.NewSheetsWorker(repo, sheets, redisClient, worker.RetryPolicy{}, logger)
}

func startMetrics(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) {
	if !cfg.Monitoring.PrometheusEnabled {
		return
	}

	metrics.Register()
	port := cfg.Monitoring.PrometheusPort
	if port == 0 {
		port = 9090
	}
	go startMetricsServer(ctx, port, logger)
}

func startServers(
	ctx context.Context,
	grpcServer *api.GRPCServer,
	httpServer *api.HTTPServer,
	cfg *config.Config,
	logger *zerolog.Logger,
) error {
	if grpcServer != nil {
		go func() {
			if err := grpcServer.Serve(); err != nil {
				logger.Error().Err(err).Msg("grpc server stopped")
			}
		}()
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start()
	}()

	logger.Info().Int("http_port", cfg.API.HTTP.Port).Bool("grpc", grpcServer != nil).Msg("API server started")

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("shutdown signal received")
	case runErr = <-errCh:
		logger.Error().Err(runErr).Msg("http server stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if grpcServer != nil {
		grpcServer.Shutdown(shutdownCtx)
	}
	_ = httpServer.Shutdown(shutdownCtx)

	logger.Info().Msg("API server stopped")
	return runErr
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
