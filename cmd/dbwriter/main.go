package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/database"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/logging"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/metrics"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/queue"
	"github.com/jpedrorock/cultivo-standalone-sub001/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "cultivo-dbwriter")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting database writer")

	db, err := database.Connect(cfg.Database.ConnectionString(), logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := db.RunMigrations(cfg.Database.MigrationsDir); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	consumer := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicDailyLogs, "dbwriter-group")
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New("cultivo-dbwriter")
	m.Serve(ctx, cfg.Metrics.Addr, logger)

	store := &countingStore{db, m}
	batchWriter := queue.NewBatchWriter(consumer, store, cfg.Writer.BatchSize, cfg.Writer.FlushInterval, logger)
	if err := batchWriter.Start(ctx); err != nil {
		logger.Fatal("failed to start batch writer", zap.Error(err))
	}

	go func() {
		ticker := time.NewTicker(60 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := consumer.Stats()
			logger.Info("consumer statistics",
				zap.String("topic", stats.Topic),
				zap.Int64("messages", stats.Messages),
				zap.Int64("lag", stats.Lag),
				zap.Int64("bytes", stats.Bytes),
				zap.Int64("errors", stats.Errors))
		}
	}()

	logger.Info("database writer is running",
		zap.Int("batch_size", cfg.Writer.BatchSize),
		zap.Duration("flush_interval", cfg.Writer.FlushInterval))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
	batchWriter.Stop()
}

// countingStore records every daily log the writer stores
type countingStore struct {
	next    queue.LogStore
	metrics *metrics.Metrics
}

func (s *countingStore) UpsertDailyLog(ctx context.Context, l *cultivation.DailyLog) error {
	if err := s.next.UpsertDailyLog(ctx, l); err != nil {
		return err
	}
	s.metrics.ObserveLogsWritten(1)
	return nil
}
