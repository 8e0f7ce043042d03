package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jmorenov/plazacore/config"
	"github.com/jmorenov/plazacore/internal/cache"
	"github.com/jmorenov/plazacore/internal/clock"
	"github.com/jmorenov/plazacore/internal/kafka"
	"github.com/jmorenov/plazacore/internal/notify"
	"github.com/jmorenov/plazacore/internal/repository"
	"github.com/jmorenov/plazacore/internal/service/coordinator"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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

	consumer := kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers:           cfg.Kafka.Brokers,
		GroupID:           cfg.Kafka.GroupID,
		Topic:             cfg.Kafka.NotificationsTopic,
		HeartbeatInterval: time.Duration(cfg.Kafka.HeartbeatSeconds) * time.Second,
		SessionTimeout:    time.Duration(cfg.Kafka.SessionSeconds) * time.Second,
	})
	defer consumer.Close()

	forwarder := notify.NewForwarder(cfg.Worker.NotifyWebhookURL)

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.SpotEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				logger.Warn("decode spot event", zap.Error(err))
				return nil
			}
			return forwarder.Send(ctx, event)
		}); err != nil {
			logger.Warn("consumer stopped", zap.Error(err))
		}
	}()

	expireTicker := time.NewTicker(time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute)
	defer expireTicker.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-expireTicker.C:
			expired, err := coord.ExpireDueReservations(ctx, facilityClock.Now())
			if err != nil {
				logger.Error("expire reservations", zap.Error(err))
				continue
			}
			if expired > 0 {
				logger.Info("expired reservations", zap.Int("count", expired))
			}
		case s := <-sig:
			logger.Info("shutting down", zap.String("signal", s.String()))
			return
		}
	}
}
