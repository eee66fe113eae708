// Package reminder schedules daily log reminders and weekly task reminders.
package reminder

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ConfigVersion is the current shape of the persisted reminder config
const ConfigVersion = 2

// DefaultReminderTime is used when neither format carries a time
const DefaultReminderTime = "08:00"

// Category names a kind of notification that can be switched on or off
type Category string

const (
	CategoryDailyReminder    Category = "daily_reminder"
	CategoryEnvironmentAlert Category = "environment_alert"
	CategoryTaskReminder     Category = "task_reminder"
)

// Config is the persisted notification configuration
type Config struct {
	Version              int      `json:"version"`
	DailyReminderEnabled bool     `json:"dailyReminderEnabled"`
	ReminderTimes        []string `json:"reminderTimes"`
	AlertsEnabled        bool     `json:"alertsEnabled"`
	TaskRemindersEnabled bool     `json:"taskRemindersEnabled"`
}

// DefaultConfig is used when nothing has been persisted yet
func DefaultConfig() Config {
	return Config{
		Version:              ConfigVersion,
		DailyReminderEnabled: false,
		ReminderTimes:        []string{DefaultReminderTime},
		AlertsEnabled:        true,
		TaskRemindersEnabled: true,
	}
}

// Enabled reports whether a category is switched on
func (c Config) Enabled(cat Category) bool {
	switch cat {
	case CategoryDailyReminder:
		return c.DailyReminderEnabled
	case CategoryEnvironmentAlert:
		return c.AlertsEnabled
	case CategoryTaskReminder:
		return c.TaskRemindersEnabled
	default:
		return false
	}
}

// Equal reports whether two configs would arm the same reminders
func (c Config) Equal(o Config) bool {
	if c.DailyReminderEnabled != o.DailyReminderEnabled ||
		c.AlertsEnabled != o.AlertsEnabled ||
		c.TaskRemindersEnabled != o.TaskRemindersEnabled ||
		len(c.ReminderTimes) != len(o.ReminderTimes) {
		return false
	}
	for i := range c.ReminderTimes {
		if c.ReminderTimes[i] != o.ReminderTimes[i] {
			return false
		}
	}
	return true
}

// Normalize validates the reminder times and returns them de-duplicated,
// canonically formatted and sorted
func (c Config) Normalize() (Config, error) {
	seen := make(map[string]bool, len(c.ReminderTimes))
	times := make([]string, 0, len(c.ReminderTimes))
	for _, raw := range c.ReminderTimes {
		tod, err := ParseTimeOfDay(raw)
		if err != nil {
			return Config{}, err
		}
		s := tod.String()
		if seen[s] {
			continue
		}
		seen[s] = true
		times = append(times, s)
	}
	sort.Strings(times)

	c.ReminderTimes = times
	c.Version = ConfigVersion
	return c, nil
}

// legacyConfig accepts both the old single-time shape and partially
// migrated documents
type legacyConfig struct {
	Version              int      `json:"version"`
	DailyReminderEnabled *bool    `json:"dailyReminderEnabled"`
	ReminderTime         string   `json:"reminderTime"`
	ReminderTimes        []string `json:"reminderTimes"`
	AlertsEnabled        *bool    `json:"alertsEnabled"`
	TaskRemindersEnabled *bool    `json:"taskRemindersEnabled"`
}

// MigrateReminderConfig decodes a persisted config. Documents older than
// ConfigVersion are converted: the legacy reminderTime field becomes the
// single entry of reminderTimes. The second result reports whether a
// conversion happened so the caller can write the new shape back once.
func MigrateReminderConfig(raw []byte) (Config, bool, error) {
	var old legacyConfig
	if err := json.Unmarshal(raw, &old); err != nil {
		return Config{}, false, fmt.Errorf("failed to decode reminder config: %w", err)
	}

	cfg := DefaultConfig()
	if old.DailyReminderEnabled != nil {
		cfg.DailyReminderEnabled = *old.DailyReminderEnabled
	}
	if old.AlertsEnabled != nil {
		cfg.AlertsEnabled = *old.AlertsEnabled
	}
	if old.TaskRemindersEnabled != nil {
		cfg.TaskRemindersEnabled = *old.TaskRemindersEnabled
	}

	migrated := old.Version < ConfigVersion
	switch {
	case old.ReminderTimes != nil:
		cfg.ReminderTimes = append([]string(nil), old.ReminderTimes...)
		if old.ReminderTime != "" {
			cfg.ReminderTimes = append(cfg.ReminderTimes, old.ReminderTime)
		}
	case old.ReminderTime != "":
		cfg.ReminderTimes = []string{old.ReminderTime}
	}

	cfg, err := cfg.Normalize()
	if err != nil {
		return Config{}, false, err
	}
	return cfg, migrated, nil
}
