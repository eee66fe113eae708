package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/alerting"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/targets"
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Manage alert switches and outstanding alerts",
}

var alertsSettingsCmd = &cobra.Command{
	Use:   "settings <tent-id>",
	Short: "Show or change the alert switches of a tent",
	Long: `Without flags the current switches are printed. Each of --enabled, --temp,
--rh, --ppfd and --ph changes one switch and keeps the others.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tentID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid tent id %q: %w", args[0], err)
		}

		ctx, cancel := commandContext()
		defer cancel()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		s, err := db.GetAlertSettings(ctx, tentID)
		if err != nil {
			return fmt.Errorf("failed to get alert settings: %w", err)
		}

		changed := false
		for flag, dst := range map[string]*bool{
			"enabled": &s.AlertsEnabled,
			"temp":    &s.TempEnabled,
			"rh":      &s.RHEnabled,
			"ppfd":    &s.PPFDEnabled,
			"ph":      &s.PHEnabled,
		} {
			if !cmd.Flags().Changed(flag) {
				continue
			}
			v, err := cmd.Flags().GetBool(flag)
			if err != nil {
				return err
			}
			*dst = v
			changed = true
		}

		if changed {
			if err := db.UpsertAlertSettings(ctx, tentID, s); err != nil {
				return fmt.Errorf("failed to store alert settings: %w", err)
			}
		}

		fmt.Printf("Tent %d alerts: %s\n", tentID, onOff(s.AlertsEnabled))
		for _, m := range []cultivation.Metric{cultivation.MetricTemp, cultivation.MetricRH, cultivation.MetricPPFD, cultivation.MetricPH} {
			fmt.Printf("  %-12s %s\n", m.Label(), onOff(s.MetricEnabled(m)))
		}
		return nil
	},
}

var alertsOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "List outstanding alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		rdb, err := openRedis(ctx)
		if err != nil {
			return err
		}
		defer rdb.Close()

		states, err := alerting.NewHistoryStore(rdb, cfg.Alerting.HistoryTTL).Open(ctx)
		if err != nil {
			return fmt.Errorf("failed to list alert states: %w", err)
		}

		keys := make([]string, 0, len(states))
		for k := range states {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSTATUS\tVALUE\tSINCE\tALERT")
		for _, k := range keys {
			st := states[k]
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				k, st.Status, strconv.FormatFloat(st.Value, 'f', -1, 64), st.FirstSeen.Format("2006-01-02 15:04"), st.AlertID)
		}
		return w.Flush()
	},
}

var alertsAckCmd = &cobra.Command{
	Use:   "ack <tent-id> <metric>",
	Short: "Acknowledge the active alert of a tent metric",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		tentID, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid tent id %q: %w", args[0], err)
		}
		metric := cultivation.Metric(args[1])

		ctx, cancel := commandContext()
		defer cancel()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		rdb, err := openRedis(ctx)
		if err != nil {
			return err
		}
		defer rdb.Close()

		history := alerting.NewHistoryStore(rdb, cfg.Alerting.HistoryTTL)
		service := alerting.NewService(db, targets.NewResolver(db), history, nil, logger)
		if err := service.Acknowledge(ctx, tentID, metric); err != nil {
			return err
		}
		fmt.Printf("Tent %d %s alert acknowledged\n", tentID, metric.Label())
		return nil
	},
}

func init() {
	alertsSettingsCmd.Flags().Bool("enabled", true, "Master alert switch")
	alertsSettingsCmd.Flags().Bool("temp", true, "Temperature alerts")
	alertsSettingsCmd.Flags().Bool("rh", true, "Humidity alerts")
	alertsSettingsCmd.Flags().Bool("ppfd", true, "PPFD alerts")
	alertsSettingsCmd.Flags().Bool("ph", true, "pH alerts")

	alertsCmd.AddCommand(alertsSettingsCmd)
	alertsCmd.AddCommand(alertsOpenCmd)
	alertsCmd.AddCommand(alertsAckCmd)
}

func onOff(v bool) string {
	if v {
		return "on"
	}
	return "off"
}
