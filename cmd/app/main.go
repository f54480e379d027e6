package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Domenick1991/slotbooking/api"
	"github.com/Domenick1991/slotbooking/config"
	"github.com/Domenick1991/slotbooking/internal/bootstrap"
	"github.com/Domenick1991/slotbooking/internal/cache"
	"github.com/Domenick1991/slotbooking/internal/kafka"
	"github.com/Domenick1991/slotbooking/internal/logging"
	"github.com/Domenick1991/slotbooking/internal/repository"
	"github.com/Domenick1991/slotbooking/internal/service/booking"
	"github.com/Domenick1991/slotbooking/internal/telemetry"
	"github.com/Domenick1991/slotbooking/internal/validation"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}

	logger := logging.NewLogger(cfg.App.Name, cfg.Log.Level)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, cfg.App.Name, cfg.Telemetry)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracer shutdown", "err", err)
		}
	}()

	loc, err := cfg.App.Location()
	if err != nil {
		return err
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return err
	}
	defer pool.Close()

	if cfg.Database.AutoMigrate {
		if err := repository.Migrate(ctx, pool); err != nil {
			return err
		}
		logger.Info("database schema is up to date")
	}

	redisCache := cache.NewRedisCache(cfg.Redis)
	defer redisCache.Close()

	checks := map[string]api.Check{
		"database": pool.Ping,
		"redis":    redisCache.Ping,
	}
	opts := []booking.BookingServiceOption{
		booking.WithCache(redisCache),
		booking.WithLogger(logger),
	}
	if len(cfg.Kafka.Brokers) > 0 {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, logger)
		defer producer.Close()
		opts = append(opts, booking.WithProducer(producer, cfg.Kafka.BookingEventsTopic))
		checks["kafka"] = producer.CheckConnection
	}

	validator := validation.NewValidator(loc, cfg.App.MinSlotDurationMinutes)
	bookingService := booking.NewBookingService(repository.NewBookingRepository(pool), validator, opts...)

	gin.SetMode(gin.ReleaseMode)
	router := api.NewRouter(api.RouterDeps{
		Bookings: bookingService,
		Users:    repository.NewUserRepository(pool),
		Checks:   checks,
		Logger:   logger,
	})

	return bootstrap.Run(ctx, cfg, otelhttp.NewHandler(router, cfg.App.Name), logger)
}
