package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/reminder"
)

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Show and change the reminder configuration",
}

var remindersShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the reminder configuration and the next reminder times",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		rdb, err := openRedis(ctx)
		if err != nil {
			return err
		}
		defer rdb.Close()

		rc, err := reminder.NewConfigStore(rdb, cfg.Reminder.ConfigKey, logger).Load(ctx)
		if err != nil {
			return err
		}
		printReminderConfig(rc)
		return nil
	},
}

var remindersSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change the reminder configuration",
	Long: `Each flag changes one setting and keeps the others. Reminder times are
HH:MM; duplicates are dropped and the list is stored sorted. The reminders
service picks the change up on its next refresh or on SIGHUP.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		rdb, err := openRedis(ctx)
		if err != nil {
			return err
		}
		defer rdb.Close()

		store := reminder.NewConfigStore(rdb, cfg.Reminder.ConfigKey, logger)
		rc, err := store.Load(ctx)
		if err != nil {
			return err
		}

		flags := cmd.Flags()
		if flags.Changed("daily") {
			rc.DailyReminderEnabled, _ = flags.GetBool("daily")
		}
		if flags.Changed("alerts") {
			rc.AlertsEnabled, _ = flags.GetBool("alerts")
		}
		if flags.Changed("tasks") {
			rc.TaskRemindersEnabled, _ = flags.GetBool("tasks")
		}
		if flags.Changed("times") {
			rc.ReminderTimes, _ = flags.GetStringSlice("times")
		}

		if err := store.Save(ctx, rc); err != nil {
			return err
		}
		// Show what was stored, not what was typed
		rc, err = store.Load(ctx)
		if err != nil {
			return err
		}
		printReminderConfig(rc)
		return nil
	},
}

func init() {
	remindersSetCmd.Flags().Bool("daily", false, "Daily log reminders")
	remindersSetCmd.Flags().Bool("alerts", true, "Environment alert notifications")
	remindersSetCmd.Flags().Bool("tasks", true, "Weekly task reminders")
	remindersSetCmd.Flags().StringSlice("times", nil, "Daily reminder times (HH:MM)")

	remindersCmd.AddCommand(remindersShowCmd)
	remindersCmd.AddCommand(remindersSetCmd)
}

func printReminderConfig(rc reminder.Config) {
	fmt.Printf("Daily reminders:  %s at %s\n", onOff(rc.DailyReminderEnabled), strings.Join(rc.ReminderTimes, ", "))
	fmt.Printf("Alerts:           %s\n", onOff(rc.AlertsEnabled))
	fmt.Printf("Task reminders:   %s\n", onOff(rc.TaskRemindersEnabled))

	if !rc.DailyReminderEnabled {
		return
	}
	fires, err := reminder.NextFires(rc.ReminderTimes, time.Now())
	if err != nil {
		fmt.Printf("Invalid reminder times: %v\n", err)
		return
	}
	for _, f := range fires {
		fmt.Printf("  next %s: %s\n", f.Time, f.At.Format("2006-01-02 15:04"))
	}
}
