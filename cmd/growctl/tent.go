package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/deviation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/phase"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/targets"
)

var (
	tentName     string
	tentCategory string
	tentWidth    float64
	tentDepth    float64
	tentHeight   float64
)

var tentCmd = &cobra.Command{
	Use:   "tent",
	Short: "Create, inspect and delete tents",
}

var tentCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Register a new tent",
	RunE: func(cmd *cobra.Command, args []string) error {
		category := cultivation.TentCategory(tentCategory)
		switch category {
		case cultivation.CategoryMaintenance, cultivation.CategoryVega, cultivation.CategoryFlora:
		default:
			return fmt.Errorf("unknown tent category: %q", tentCategory)
		}

		ctx, cancel := commandContext()
		defer cancel()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		t := cultivation.Tent{
			Name:     tentName,
			Category: category,
			Width:    tentWidth,
			Depth:    tentDepth,
			Height:   tentHeight,
		}
		if err := db.InsertTent(ctx, &t); err != nil {
			return fmt.Errorf("failed to insert tent: %w", err)
		}
		fmt.Printf("Tent %d (%s) created\n", t.ID, t.Name)
		return nil
	},
}

var tentStatusCmd = &cobra.Command{
	Use:   "status <tent-id>",
	Short: "Show the phase, week, targets and latest readings of a tent",
	Args:  cobra.ExactArgs(1),
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

		tent, err := db.GetTent(ctx, tentID)
		if err != nil {
			return fmt.Errorf("failed to get tent: %w", err)
		}
		if tent == nil {
			return fmt.Errorf("tent %d not found", tentID)
		}

		cycle, err := db.GetActiveCycle(ctx, tentID)
		if err != nil {
			return fmt.Errorf("failed to get active cycle: %w", err)
		}
		if cycle == nil {
			info := cultivation.Info(cultivation.PhaseInactive)
			fmt.Printf("%s (%s): %s\n", tent.Name, tent.Category, info.Label)
			return nil
		}

		pos, err := phase.Current(*cycle, time.Now())
		if err != nil {
			return err
		}
		strains, err := db.GetStrains(ctx, cycle.StrainIDs)
		if err != nil {
			return fmt.Errorf("failed to get strains: %w", err)
		}
		pos = phase.ClampWeek(pos, strains...)

		target, err := targets.NewResolver(db).Resolve(ctx, cycle.StrainIDs, pos.Phase, pos.Week)
		if err != nil {
			return err
		}
		latest, err := db.LatestDailyLog(ctx, tentID)
		if err != nil {
			return fmt.Errorf("failed to get latest log: %w", err)
		}

		info := cultivation.Info(pos.Phase)
		fmt.Printf("%s (%s): %s [%s], week %d, cycle %d\n",
			tent.Name, tent.Category, info.Label, info.Color, pos.Week, cycle.ID)

		switch {
		case !target.Found:
			fmt.Println("No target configured for this week")
		case target.IsAverage:
			fmt.Printf("Target averaged over %d strains\n", target.StrainCount)
		}
		if target.Photoperiod != "" {
			approx := ""
			if target.PhotoperiodApproximate {
				approx = " (approximate)"
			}
			fmt.Printf("Photoperiod: %s%s\n", target.Photoperiod, approx)
		}
		if latest != nil {
			fmt.Printf("Latest log: %s %s\n", latest.LogDate.Format("2006-01-02"), latest.Turn)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "METRIC\tMIN\tMAX\tREADING\tSTATUS")
		for _, m := range cultivation.AllMetrics {
			r := target.RangeFor(m)
			var value *float64
			if latest != nil {
				value = latest.Reading(m)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				m.Label(), formatBound(r.Min), formatBound(r.Max), formatBound(value), deviation.Classify(value, r))
		}
		return w.Flush()
	},
}

var tentDeleteCmd = &cobra.Command{
	Use:   "delete <tent-id>",
	Short: "Delete a tent with no active cycle and no plants",
	Args:  cobra.ExactArgs(1),
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

		err = db.DeleteTent(ctx, tentID)
		var blocked *cultivation.DeletionBlockedError
		if errors.As(err, &blocked) {
			fmt.Fprintf(os.Stderr, "Tent %d cannot be deleted:\n", tentID)
			for _, b := range blocked.Blockers {
				fmt.Fprintf(os.Stderr, "  - %s: %s\n", b.Detail, b.Remediation)
			}
			return err
		}
		if err != nil {
			return err
		}
		fmt.Printf("Tent %d deleted\n", tentID)
		return nil
	},
}

func init() {
	tentCreateCmd.Flags().StringVar(&tentName, "name", "", "Tent name")
	tentCreateCmd.Flags().StringVar(&tentCategory, "category", string(cultivation.CategoryVega), "MAINTENANCE, VEGA or FLORA")
	tentCreateCmd.Flags().Float64Var(&tentWidth, "width", 0, "Width in cm")
	tentCreateCmd.Flags().Float64Var(&tentDepth, "depth", 0, "Depth in cm")
	tentCreateCmd.Flags().Float64Var(&tentHeight, "height", 0, "Height in cm")
	tentCreateCmd.MarkFlagRequired("name")

	tentCmd.AddCommand(tentCreateCmd)
	tentCmd.AddCommand(tentStatusCmd)
	tentCmd.AddCommand(tentDeleteCmd)
}

func formatBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
