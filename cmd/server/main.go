package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/connection"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/logging"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/metrics"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/queue"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/server"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/timer"
	"github.com/jpedrorock/cultivo-standalone-sub001/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "cultivo-server")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting ingest server")

	// Readings are keyed by tent, so the daily-log topic is partitioned.
	topics := []kafka.TopicConfig{
		{Topic: cfg.Kafka.TopicDailyLogs, NumPartitions: cfg.Kafka.NumPartitions, ReplicationFactor: 1},
		{Topic: cfg.Kafka.TopicAlerts, NumPartitions: 1, ReplicationFactor: 1},
	}
	if err := queue.EnsureTopics(cfg.Kafka.Brokers, topics, logger); err != nil {
		logger.Warn("failed to ensure kafka topics", zap.Error(err))
	}

	producer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicDailyLogs)
	defer producer.Close()

	connManager := connection.NewManager(cfg.TCPServer.MaxConnections)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := metrics.New("cultivo-server")
	m.GaugeFunc("tcp_connections", "Connected tent controllers.", func() float64 {
		return float64(connManager.Count())
	})
	m.GaugeFunc("reporting_tents", "Tents with at least one connected controller.", func() float64 {
		return float64(connManager.Stats().ReportingTents)
	})
	m.Serve(ctx, cfg.Metrics.Addr, logger)

	timerManager := timer.NewTimerManager()
	timerManager.Start()
	defer timerManager.Stop()

	tcpServer := server.NewTCPServer(&cfg.TCPServer, connManager, timerManager, &countingPublisher{producer, m}, logger)
	if err := tcpServer.Start(); err != nil {
		logger.Fatal("failed to start TCP server", zap.Error(err))
	}
	defer tcpServer.Stop()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for range ticker.C {
			stats := connManager.Stats()
			logger.Info("server statistics",
				zap.Int("connections", stats.TotalConnections),
				zap.Int("max_connections", stats.MaxConnections),
				zap.Int("reporting_tents", stats.ReportingTents),
				zap.Int("scheduled_timers", timerManager.Stats().ScheduledTasks))
			for _, tent := range connManager.Tents() {
				logger.Debug("tent reporting",
					zap.Int64("tent_id", tent.TentID),
					zap.Strings("controllers", tent.Controllers),
					zap.Int("readings", tent.Readings),
					zap.Time("last_heard_from", tent.LastHeardFrom))
			}
		}
	}()

	logger.Info("ingest server is running", zap.Int("port", cfg.TCPServer.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down gracefully")
}

// countingPublisher records every publish attempt of the ingest path
type countingPublisher struct {
	next    server.Publisher
	metrics *metrics.Metrics
}

func (p *countingPublisher) Publish(ctx context.Context, key string, value []byte) error {
	err := p.next.Publish(ctx, key, value)
	p.metrics.ObservePublish(err)
	return err
}
