// Package app holds the Wire providers that assemble the replay service
// from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/navid-fn/tradereplay/configs"
	"github.com/navid-fn/tradereplay/internal/calendar"
	"github.com/navid-fn/tradereplay/internal/events"
	"github.com/navid-fn/tradereplay/internal/fetcher"
	"github.com/navid-fn/tradereplay/internal/handler"
	"github.com/navid-fn/tradereplay/internal/logging"
	"github.com/navid-fn/tradereplay/internal/provider"
	"github.com/navid-fn/tradereplay/internal/replay"
	"github.com/navid-fn/tradereplay/internal/replaycache"
	"github.com/navid-fn/tradereplay/internal/repository"
	"github.com/navid-fn/tradereplay/internal/router"
	"github.com/navid-fn/tradereplay/internal/service"
	"github.com/navid-fn/tradereplay/internal/storage"
)

// ProvideConfig loads and validates the configuration.
func ProvideConfig() (*configs.AppConfig, error) {
	return configs.AppLoad()
}

func ProvideLogger(cfg *configs.AppConfig) *logrus.Logger {
	return logging.New(cfg.LogLevel)
}

// ProvideDB opens the postgres connection when any store needs it.
// It returns a nil *gorm.DB when both stores are configured elsewhere.
func ProvideDB(cfg *configs.AppConfig, logger logrus.FieldLogger) (*gorm.DB, func(), error) {
	if cfg.BarStore != "postgres" && cfg.SessionStore != "postgres" {
		return nil, func() {}, nil
	}
	db, err := gorm.Open(postgres.Open(cfg.PostgresDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, fmt.Errorf("get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	cleanup := func() {
		if err := sqlDB.Close(); err != nil {
			logger.WithError(err).Warn("failed to close postgres connection")
		}
	}
	return db, cleanup, nil
}

// ProvideBarStore selects the bar cache backend.
func ProvideBarStore(cfg *configs.AppConfig, db *gorm.DB, logger logrus.FieldLogger) (storage.BarStore, func(), error) {
	var (
		store storage.BarStore
		err   error
	)
	switch cfg.BarStore {
	case "postgres":
		store = storage.NewGormBarStore(db)
	case "clickhouse":
		store, err = storage.NewClickHouseBarStore(cfg.ClickHouseDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("connect clickhouse: %w", err)
		}
	case "memory":
		store = storage.NewMemoryStore()
	default:
		return nil, nil, fmt.Errorf("unsupported bar store %q", cfg.BarStore)
	}
	logger.WithField("bar_store", cfg.BarStore).Info("bar store ready")

	cleanup := func() {
		if err := store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close bar store")
		}
	}
	return store, cleanup, nil
}

// ProvideSessionRepository selects the session and trade backend.
func ProvideSessionRepository(cfg *configs.AppConfig, db *gorm.DB) (repository.SessionRepository, error) {
	switch cfg.SessionStore {
	case "postgres":
		return repository.NewGormSessionRepository(db), nil
	case "memory":
		return repository.NewMemoryRepository(), nil
	default:
		return nil, fmt.Errorf("unsupported session store %q", cfg.SessionStore)
	}
}

func ProvideFetcher(cfg *configs.AppConfig, store storage.BarStore, logger logrus.FieldLogger) (*fetcher.Fetcher, error) {
	source, symbol, err := provider.New(cfg.Provider)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"provider": cfg.Provider.Name,
		"symbol":   symbol,
	}).Info("market data provider ready")

	return fetcher.New(store, source, fetcher.Config{
		Symbol: symbol,
		Policy: fetcher.DefaultIntervalPolicy(),
	}, logger), nil
}

func ProvideCalendar(cfg *configs.AppConfig, logger logrus.FieldLogger) (*calendar.Calendar, error) {
	return calendar.NewFromConfig(cfg.Trading, logger)
}

// ProvideSliceCache connects the Redis replay cache. An empty address or an
// unreachable server disables it.
func ProvideSliceCache(cfg *configs.AppConfig, logger logrus.FieldLogger) (replay.SliceCache, func()) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}
	}
	cache, err := replaycache.New(cfg.Redis, logger)
	if err != nil {
		logger.WithError(err).WithField("addr", cfg.Redis.Addr).Warn("replay cache disabled")
		return nil, func() {}
	}
	return cache, func() {
		if err := cache.Close(); err != nil {
			logger.WithError(err).Warn("failed to close replay cache")
		}
	}
}

func ProvidePreparer(
	cfg *configs.AppConfig,
	f *fetcher.Fetcher,
	cal *calendar.Calendar,
	cache replay.SliceCache,
	logger logrus.FieldLogger,
) *replay.Preparer {
	return replay.NewPreparer(f, cal, replay.Config{
		ContextDaysBefore: cfg.Trading.ContextDaysBefore,
		ContextDaysAfter:  cfg.Trading.ContextDaysAfter,
	}, cache, logger)
}

// ProvidePublisher returns a Kafka publisher, or a no-op one when no broker is set.
func ProvidePublisher(cfg *configs.AppConfig, logger logrus.FieldLogger) (events.Publisher, func()) {
	if cfg.Kafka.Broker == "" {
		logger.Info("kafka broker not configured, trade events disabled")
		return events.Noop{}, func() {}
	}
	pub := events.NewKafkaPublisher(events.NewKafkaWriter(cfg.Kafka.Broker, cfg.Kafka.Topic))
	return pub, func() {
		if err := pub.Close(); err != nil {
			logger.WithError(err).Warn("failed to close kafka writer")
		}
	}
}

func ProvideService(
	cfg *configs.AppConfig,
	repo repository.SessionRepository,
	cal *calendar.Calendar,
	src service.ReplaySource,
	pub events.Publisher,
	logger logrus.FieldLogger,
) *service.Service {
	return service.New(repo, cal, src, pub, service.NewConfig(cfg.Trading), logger)
}

func ProvideStreamer(cfg *configs.AppConfig, logger logrus.FieldLogger) *replay.Streamer {
	return replay.NewStreamer(replay.StreamConfig{
		Initial:  cfg.Trading.DefaultInitialCandles,
		Interval: time.Second,
		Speeds:   cfg.Trading.ReplaySpeeds,
	}, logger)
}

func ProvideRouter(
	cfg *configs.AppConfig,
	market *handler.MarketHandler,
	sessions *handler.SessionHandler,
	trades *handler.TradeHandler,
	logger logrus.FieldLogger,
) *gin.Engine {
	gin.SetMode(cfg.Server.GinMode)
	return router.NewRouter(&router.Config{
		MarketHandler:  market,
		SessionHandler: sessions,
		TradeHandler:   trades,
		Logger:         logger,
	})
}

// Server is the assembled HTTP application.
type Server struct {
	Config *configs.AppConfig
	Router *gin.Engine
	Logger *logrus.Logger
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + s.Config.Server.Port,
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.Logger.WithField("port", s.Config.Server.Port).Info("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.Logger.Warn("shutdown signal received, stopping http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
