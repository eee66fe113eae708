package reminder

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/timer"
)

// Notifier shows a notification to the user
type Notifier interface {
	ShowNotification(ctx context.Context, n Notification) error
}

// TaskCounter reports the incomplete task instances of a week
type TaskCounter interface {
	PendingTasks(ctx context.Context, weekStart time.Time) (int, error)
}

// Timers is the part of the timer manager the scheduler arms slots on
type Timers interface {
	Schedule(id string, expiryAt time.Time, callback func()) (timer.Handle, error)
}

// DefaultTaskCheckTime is when the weekly task reminder is evaluated each day
const DefaultTaskCheckTime = "10:00"

type slot struct {
	category Category
	at       TimeOfDay
}

func (s slot) key() string {
	return fmt.Sprintf("%s:%s", s.category, s.at)
}

// Scheduler owns one timer per (category, time) slot. Every fire re-derives
// the next occurrence from the wall clock instead of repeating on a fixed
// period.
type Scheduler struct {
	timers   Timers
	notifier Notifier
	tasks    TaskCounter
	logger   *zap.Logger
	now      func() time.Time

	taskCheck TimeOfDay

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	cfg     Config
	slots   map[string]timer.Handle
	stopped bool
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithTaskCheckTime sets when the task reminder is evaluated each day
func WithTaskCheckTime(t TimeOfDay) Option {
	return func(s *Scheduler) { s.taskCheck = t }
}

// NewScheduler creates a scheduler. Nothing is armed until Reschedule.
func NewScheduler(timers Timers, notifier Notifier, tasks TaskCounter, logger *zap.Logger, opts ...Option) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	check, _ := ParseTimeOfDay(DefaultTaskCheckTime)

	s := &Scheduler{
		timers:    timers,
		notifier:  notifier,
		tasks:     tasks,
		logger:    logger,
		now:       time.Now,
		taskCheck: check,
		ctx:       ctx,
		cancel:    cancel,
		slots:     make(map[string]timer.Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Reschedule makes the armed slots match cfg. Slots no longer configured are
// cancelled and every configured slot is re-armed for its next occurrence,
// all under one lock.
func (s *Scheduler) Reschedule(cfg Config) error {
	cfg, err := cfg.Normalize()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return fmt.Errorf("reminder scheduler is stopped")
	}
	s.cfg = cfg

	desired := s.desiredSlots(cfg)
	for key, handle := range s.slots {
		if _, ok := desired[key]; !ok {
			handle.Cancel()
			delete(s.slots, key)
		}
	}

	now := s.now()
	for key, sl := range desired {
		if err := s.armLocked(key, sl, now); err != nil {
			return err
		}
	}

	s.logger.Info("reminders rescheduled",
		zap.Bool("daily_enabled", cfg.DailyReminderEnabled),
		zap.Strings("times", cfg.ReminderTimes),
		zap.Bool("tasks_enabled", cfg.TaskRemindersEnabled),
		zap.Int("armed", len(s.slots)))
	return nil
}

func (s *Scheduler) desiredSlots(cfg Config) map[string]slot {
	desired := make(map[string]slot)
	if cfg.DailyReminderEnabled {
		for _, raw := range cfg.ReminderTimes {
			tod, err := ParseTimeOfDay(raw)
			if err != nil {
				continue
			}
			sl := slot{category: CategoryDailyReminder, at: tod}
			desired[sl.key()] = sl
		}
	}
	if cfg.TaskRemindersEnabled && s.tasks != nil {
		sl := slot{category: CategoryTaskReminder, at: s.taskCheck}
		desired[sl.key()] = sl
	}
	return desired
}

// armLocked schedules the next occurrence of a slot. Scheduling under an
// existing key replaces the old timer atomically.
func (s *Scheduler) armLocked(key string, sl slot, now time.Time) error {
	next := sl.at.NextOccurrence(now)
	handle, err := s.timers.Schedule(key, next, func() { s.fire(key, sl) })
	if err != nil {
		return fmt.Errorf("failed to arm %s: %w", key, err)
	}
	s.slots[key] = handle

	s.logger.Debug("reminder armed", zap.String("slot", key), zap.Time("next", next))
	return nil
}

// fire runs when a slot's timer expires. The slot is re-armed first so a
// failing notifier cannot break the daily repetition.
func (s *Scheduler) fire(key string, sl slot) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	if _, ok := s.slots[key]; !ok {
		s.mu.Unlock()
		return
	}
	now := s.now()
	if err := s.armLocked(key, sl, now); err != nil {
		s.logger.Error("failed to re-arm reminder", zap.String("slot", key), zap.Error(err))
	}
	s.mu.Unlock()

	switch sl.category {
	case CategoryDailyReminder:
		s.show(DailyReminder(sl.at.String()))
	case CategoryTaskReminder:
		s.checkTasks(now)
	}
}

func (s *Scheduler) checkTasks(now time.Time) {
	daysLeft := DaysUntilSunday(now)
	if daysLeft > 2 {
		return
	}

	pending, err := s.tasks.PendingTasks(s.ctx, WeekStart(now))
	if err != nil {
		s.logger.Error("failed to count pending tasks", zap.Error(err))
		return
	}

	n, ok := TaskReminder(pending, daysLeft)
	if !ok {
		return
	}
	s.show(n)
}

// show delivers a notification. Failures are logged and never propagate.
func (s *Scheduler) show(n Notification) {
	if err := s.notifier.ShowNotification(s.ctx, n); err != nil {
		s.logger.Warn("failed to show notification",
			zap.String("category", string(n.Category)),
			zap.String("tag", n.Tag),
			zap.Error(err))
		return
	}
	s.logger.Info("notification shown",
		zap.String("category", string(n.Category)),
		zap.String("tag", n.Tag))
}

// Config returns the configuration currently applied
func (s *Scheduler) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// Armed returns the keys of the armed slots
func (s *Scheduler) Armed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	keys := make([]string, 0, len(s.slots))
	for key := range s.slots {
		keys = append(keys, key)
	}
	return keys
}

// Stop cancels every armed slot. The scheduler cannot be restarted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	s.stopped = true
	for key, handle := range s.slots {
		handle.Cancel()
		delete(s.slots, key)
	}
	s.cancel()
}
