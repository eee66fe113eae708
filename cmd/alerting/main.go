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

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/alerting"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/database"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/logging"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/metrics"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/protocol"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/queue"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/targets"
	"github.com/jpedrorock/cultivo-standalone-sub001/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "cultivo-alerting")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting alerting service")

	db, err := database.Connect(cfg.Database.ConnectionString(), logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}

	m := metrics.New("cultivo-alerting")
	m.Serve(ctx, cfg.Metrics.Addr, logger)

	alertProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicAlerts)
	defer alertProducer.Close()

	resolver := targets.NewResolver(targets.NewCachedSource(db, cfg.Alerting.TargetCacheTTL))
	history := alerting.NewHistoryStore(redisClient, cfg.Alerting.HistoryTTL)
	service := alerting.NewService(db, resolver, history, alerting.NewKafkaSink(alertProducer), logger)

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicDailyLogs, "alerting-group")
	defer consumer.Close()

	handle := func(ctx context.Context, msg kafka.Message) error {
		logMsg, err := protocol.DecodeDailyLogMessage(msg.Value)
		if err != nil {
			return fmt.Errorf("failed to decode message: %w", err)
		}

		dailyLog, err := logMsg.Data.Parse(logMsg.TentID)
		if err != nil {
			return fmt.Errorf("failed to parse reading of tent %d: %w", logMsg.TentID, err)
		}

		raised, err := service.EvaluateLog(ctx, dailyLog)
		m.ObserveEvaluation(err)
		for _, a := range raised {
			m.ObserveAlert(string(a.Metric), string(a.Severity))
		}
		if err != nil {
			return fmt.Errorf("failed to evaluate daily log of tent %d: %w", dailyLog.TentID, err)
		}
		return nil
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		queue.Run(ctx, consumer, handle, logger)
	}()

	logger.Info("alerting service is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
	cancel()
	<-done
}
