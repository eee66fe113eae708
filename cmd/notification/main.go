package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/logging"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/metrics"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/notification"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/protocol"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/queue"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/reminder"
	"github.com/jpedrorock/cultivo-standalone-sub001/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "cultivo-notification")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting notification service")

	notifier := notification.NewEmailNotifier(&cfg.SMTP, logger)
	if err := notifier.TestConnection(); err != nil {
		logger.Warn("notifications will be logged only", zap.Error(err))
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New("cultivo-notification")
	m.Serve(ctx, cfg.Metrics.Addr, logger)

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}
	configStore := reminder.NewConfigStore(redisClient, cfg.Reminder.ConfigKey, logger)

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts, "notification-group")
	defer consumer.Close()

	handle := func(ctx context.Context, msg kafka.Message) error {
		alert, err := protocol.DecodeAlertNotification(msg.Value)
		if err != nil {
			return fmt.Errorf("failed to decode notification: %w", err)
		}

		// The user's reminder config decides whether environment alerts
		// are delivered at all.
		rc, err := configStore.Load(ctx)
		if err != nil {
			return fmt.Errorf("%w: failed to load reminder config: %v", queue.ErrRetry, err)
		}
		if !rc.Enabled(reminder.CategoryEnvironmentAlert) {
			logger.Debug("environment alerts disabled, dropping notification",
				zap.String("alert_id", alert.AlertID))
			return nil
		}

		err = notifier.SendAlertNotification(ctx, alert)
		m.ObserveNotification(string(reminder.CategoryEnvironmentAlert), err)
		if err != nil {
			return fmt.Errorf("%w: %v", queue.ErrRetry, err)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		queue.Run(ctx, consumer, handle, logger)
	}()

	logger.Info("notification service is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
	cancel()
	<-done
}
