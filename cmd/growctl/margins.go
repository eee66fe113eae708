package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

var marginsCmd = &cobra.Command{
	Use:   "margins",
	Short: "Show and edit the per-phase alert margins",
}

var marginsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the alert margin of every phase",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := commandContext()
		defer cancel()

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		margins, err := db.GetPhaseMargins(ctx)
		if err != nil {
			return fmt.Errorf("failed to get phase margins: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "PHASE\tTEMP\tRH\tPPFD\tPH")
		for _, m := range margins {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				m.Phase, formatBound(m.Temp), formatBound(m.RH), formatBound(m.PPFD), formatBound(m.PH))
		}
		return w.Flush()
	},
}

var marginsSetCmd = &cobra.Command{
	Use:   "set <phase>",
	Short: "Change the alert margins of a phase",
	Long: `Updates the margins given as flags and keeps the others. DRYING accepts
only temperature and humidity margins.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := cultivation.ParsePhase(args[0])
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

		margins, err := db.GetPhaseMargins(ctx)
		if err != nil {
			return fmt.Errorf("failed to get phase margins: %w", err)
		}
		m := cultivation.PhaseMargin{Phase: p}
		for _, existing := range margins {
			if existing.Phase == p {
				m = existing
			}
		}

		for flag, dst := range map[string]**float64{
			"temp": &m.Temp,
			"rh":   &m.RH,
			"ppfd": &m.PPFD,
			"ph":   &m.PH,
		} {
			v, err := floatFlag(cmd, flag)
			if err != nil {
				return err
			}
			if v != nil {
				*dst = v
			}
		}

		if err := db.UpdatePhaseMargin(ctx, m); err != nil {
			return err
		}
		fmt.Printf("%s margins: temp %s, rh %s, ppfd %s, ph %s\n",
			p, formatBound(m.Temp), formatBound(m.RH), formatBound(m.PPFD), formatBound(m.PH))
		return nil
	},
}

func init() {
	marginsSetCmd.Flags().Float64("temp", 0, "Temperature margin in °C")
	marginsSetCmd.Flags().Float64("rh", 0, "Humidity margin in %")
	marginsSetCmd.Flags().Float64("ppfd", 0, "PPFD margin in µmol/m²/s")
	marginsSetCmd.Flags().Float64("ph", 0, "pH margin")

	marginsCmd.AddCommand(marginsListCmd)
	marginsCmd.AddCommand(marginsSetCmd)
}
