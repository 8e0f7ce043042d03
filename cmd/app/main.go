package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/jmorenov/plazacore/config"
	"github.com/jmorenov/plazacore/internal/bootstrap"
	"github.com/jmorenov/plazacore/internal/cache"
	"github.com/jmorenov/plazacore/internal/clock"
	"github.com/jmorenov/plazacore/internal/kafka"
	"github.com/jmorenov/plazacore/internal/repository"
	"github.com/jmorenov/plazacore/internal/service/coordinator"
	"github.com/jmorenov/plazacore/internal/service/movement"
	"github.com/jmorenov/plazacore/internal/service/occupancy"
	"github.com/jmorenov/plazacore/internal/service/registry"
	"github.com/jmorenov/plazacore/internal/service/reservation"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatal("connect postgres", zap.Error(err))
	}
	defer pool.Close()

	facilityClock, err := clock.NewFacilityClock(cfg.Parking.Timezone)
	if err != nil {
		logger.Fatal("init facility clock", zap.Error(err))
	}

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Parking.BoardCacheSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	spotRepo := repository.NewSpotRepository(pool)
	occupancyRepo := repository.NewOccupancyRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	movementRepo := repository.NewMovementRepository(pool)

	coord := coordinator.New(
		spotRepo,
		occupancyRepo,
		reservationRepo,
		redisCache,
		producer,
		cfg.Kafka.SpotEventsTopic,
		facilityClock,
		logger,
		coordinator.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	svc := bootstrap.Services{
		Registry: registry.NewService(spotRepo, redisCache, logger),
		Ledger:   occupancy.NewService(coord, occupancyRepo, facilityClock, logger),
		Manager: reservation.NewService(
			coord,
			reservationRepo,
			redisCache,
			facilityClock,
			time.Duration(cfg.Parking.BookingHoldMinutes)*time.Minute,
			cfg.Parking.DefaultGraceMinutes,
			logger,
		),
		Recorder:    movement.NewService(movementRepo, facilityClock, logger),
		Coordinator: coord,
		Clock:       facilityClock,
	}

	if err := bootstrap.Run(ctx, cfg, svc); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
