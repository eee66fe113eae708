package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/strainfile"
)

var strainCmd = &cobra.Command{
	Use:   "strain",
	Short: "Import, inspect and duplicate strains",
}

var strainImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Create or update strains and their weekly targets from a YAML file",
	Long: `Reads a strain document and upserts every strain by name along with its
weekly targets. The whole file is validated first; nothing is written if any
strain or target is invalid.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read strain file: %w", err)
		}
		file, err := strainfile.Parse(data)
		if err != nil {
			return err
		}

		ctx, cancel := commandContext()
		defer cancel()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		for _, entry := range file.Strains {
			strain := entry.Strain()
			if err := db.UpsertStrain(ctx, &strain); err != nil {
				return fmt.Errorf("failed to upsert strain %q: %w", strain.Name, err)
			}
			for _, ts := range entry.Targets {
				t, err := ts.WeeklyTarget()
				if err != nil {
					return err
				}
				if err := db.UpsertWeeklyTarget(ctx, strain, t); err != nil {
					return fmt.Errorf("strain %q: %w", strain.Name, err)
				}
			}
			logger.Info("strain imported",
				zap.Int64("strain_id", strain.ID),
				zap.String("name", strain.Name),
				zap.Int("targets", len(entry.Targets)))
			fmt.Printf("Strain %d %q: %d targets\n", strain.ID, strain.Name, len(entry.Targets))
		}
		return nil
	},
}

var strainShowCmd = &cobra.Command{
	Use:   "show <strain-id|name>",
	Short: "Print a strain and its weekly target table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		var strain *cultivation.Strain
		if id, perr := strconv.ParseInt(args[0], 10, 64); perr == nil {
			strain, err = db.GetStrain(ctx, id)
		} else {
			strain, err = db.GetStrainByName(ctx, args[0])
		}
		if err != nil {
			return fmt.Errorf("failed to get strain: %w", err)
		}
		if strain == nil {
			return fmt.Errorf("strain %q not found", args[0])
		}
		id := strain.ID
		rows, err := db.ListWeeklyTargets(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to list weekly targets: %w", err)
		}

		fmt.Printf("%s: %d weeks vega, %d weeks flora\n", strain.Name, strain.VegaWeeks, strain.FloraWeeks)
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PHASE\tWEEK\tTEMP\tRH\tPPFD\tPH\tEC\tLIGHT")
		for _, t := range rows {
			fmt.Fprintf(w, "%s\t%d\t%s-%s\t%s-%s\t%s-%s\t%s-%s\t%s-%s\t%s\n",
				t.Phase, t.Week,
				formatBound(t.Temp.Min), formatBound(t.Temp.Max),
				formatBound(t.RH.Min), formatBound(t.RH.Max),
				formatBound(t.PPFD.Min), formatBound(t.PPFD.Max),
				formatBound(t.PH.Min), formatBound(t.PH.Max),
				formatBound(t.EC.Min), formatBound(t.EC.Max),
				t.Photoperiod)
		}
		return w.Flush()
	},
}

var strainDuplicateCmd = &cobra.Command{
	Use:   "duplicate <strain-id> <new-name>",
	Short: "Copy a strain and all of its weekly targets under a new name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid strain id %q: %w", args[0], err)
		}

		ctx, cancel := commandContext()
		defer cancel()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		dup, err := db.DuplicateStrain(ctx, id, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("Strain %d %q created from strain %d\n", dup.ID, dup.Name, id)
		return nil
	},
}

func init() {
	strainCmd.AddCommand(strainImportCmd)
	strainCmd.AddCommand(strainShowCmd)
	strainCmd.AddCommand(strainDuplicateCmd)
}
