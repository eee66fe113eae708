package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/database"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/logging"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/metrics"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/notification"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/reminder"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/timer"
	"github.com/jpedrorock/cultivo-standalone-sub001/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := logging.NewLogger(cfg.Log.Level, cfg.Log.Format, "cultivo-reminders")
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting reminder service")

	taskCheck, err := reminder.ParseTimeOfDay(cfg.Reminder.TaskCheckTime)
	if err != nil {
		logger.Fatal("invalid task check time", zap.Error(err))
	}

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

	m := metrics.New("cultivo-reminders")
	m.Serve(ctx, cfg.Metrics.Addr, logger)

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal("failed to connect to Redis", zap.Error(err))
	}

	timerManager := timer.NewTimerManager()
	timerManager.Start()
	defer timerManager.Stop()

	notifier := &countingNotifier{next: notification.NewEmailNotifier(&cfg.SMTP, logger), metrics: m}
	store := reminder.NewConfigStore(redisClient, cfg.Reminder.ConfigKey, logger)
	scheduler := reminder.NewScheduler(timerManager, notifier, db, logger, reminder.WithTaskCheckTime(taskCheck))
	defer scheduler.Stop()

	initial, err := store.Load(ctx)
	if err != nil {
		logger.Fatal("failed to load reminder config", zap.Error(err))
	}
	if err := scheduler.Reschedule(initial); err != nil {
		logger.Fatal("failed to schedule reminders", zap.Error(err))
	}

	// The config is edited from growctl; pick changes up on SIGHUP or on the
	// next refresh tick.
	refresh := func(force bool) {
		next, err := store.Load(ctx)
		if err != nil {
			logger.Error("failed to reload reminder config", zap.Error(err))
			return
		}
		if !force && next.Equal(scheduler.Config()) {
			return
		}
		if err := scheduler.Reschedule(next); err != nil {
			logger.Error("failed to reschedule reminders", zap.Error(err))
		}
	}

	hupCh := make(chan os.Signal, 1)
	signal.Notify(hupCh, syscall.SIGHUP)
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(cfg.Reminder.RefreshInterval)
	defer ticker.Stop()

	logger.Info("reminder service is running",
		zap.Strings("armed", scheduler.Armed()),
		zap.String("task_check_time", taskCheck.String()))

	for {
		select {
		case <-ticker.C:
			refresh(false)
		case <-hupCh:
			logger.Info("SIGHUP received, reloading reminder config")
			refresh(true)
		case <-sigCh:
			logger.Info("shutting down gracefully")
			return
		}
	}
}

// countingNotifier records the outcome of every delivered reminder
type countingNotifier struct {
	next    reminder.Notifier
	metrics *metrics.Metrics
}

func (c *countingNotifier) ShowNotification(ctx context.Context, n reminder.Notification) error {
	err := c.next.ShowNotification(ctx, n)
	c.metrics.ObserveNotification(string(n.Category), err)
	return err
}
