package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/database"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/phase"
)

var (
	cycleTentID      int64
	cycleStrainIDs   []int64
	cycleMaintenance bool
	cycleAt          string
	cloneTargetTent  int64
	clonesProduced   int
	finishConfirmed  bool
)

var cycleCmd = &cobra.Command{
	Use:   "cycle",
	Short: "Start cycles and move them between phases",
}

var cycleStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Open a new VEGA cycle, or a MAINTENANCE cycle with --maintenance",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(cycleStrainIDs) == 0 {
			return fmt.Errorf("at least one --strain is required")
		}
		at, err := transitionTime()
		if err != nil {
			return err
		}

		return withTent(func(ctx context.Context, db *database.DB, tent cultivation.Tent, active *cultivation.Cycle) error {
			open := phase.InitiateCycle
			if cycleMaintenance {
				open = phase.StartMaintenance
			}
			c, err := open(tent, active, cycleStrainIDs, at)
			if err != nil {
				return err
			}
			if err := db.InsertCycle(ctx, &c); err != nil {
				return fmt.Errorf("failed to insert cycle: %w", err)
			}
			fmt.Printf("Tent %d: cycle %d started in %s\n", tent.ID, c.ID, c.StartPhase)
			return nil
		})
	},
}

var cycleCloneCmd = &cobra.Command{
	Use:   "clone",
	Short: "Start taking clones from the mother plants of a MAINTENANCE cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := transitionTime()
		if err != nil {
			return err
		}
		return withTent(func(ctx context.Context, db *database.DB, tent cultivation.Tent, active *cultivation.Cycle) error {
			c, err := requireActive(tent, active)
			if err != nil {
				return err
			}
			target, err := db.GetTent(ctx, cloneTargetTent)
			if err != nil {
				return fmt.Errorf("failed to get target tent: %w", err)
			}
			if target == nil {
				return fmt.Errorf("target tent %d not found", cloneTargetTent)
			}
			next, err := phase.StartCloning(c, *target, at)
			if err != nil {
				return err
			}
			return saveCycle(ctx, db, next)
		})
	},
}

var cycleEndCloningCmd = &cobra.Command{
	Use:   "end-cloning",
	Short: "Return a CLONING cycle to MAINTENANCE and record the clones produced",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := transitionTime()
		if err != nil {
			return err
		}
		return withTent(func(ctx context.Context, db *database.DB, tent cultivation.Tent, active *cultivation.Cycle) error {
			c, err := requireActive(tent, active)
			if err != nil {
				return err
			}
			next, err := phase.EndCloning(c, clonesProduced, at)
			if err != nil {
				return err
			}
			return saveCycle(ctx, db, next)
		})
	},
}

// simpleTransition builds a command for a move that needs only the cycle and
// the transition instant
func simpleTransition(use, short string, move func(cultivation.Cycle, time.Time) (cultivation.Cycle, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := transitionTime()
			if err != nil {
				return err
			}
			return withTent(func(ctx context.Context, db *database.DB, tent cultivation.Tent, active *cultivation.Cycle) error {
				c, err := requireActive(tent, active)
				if err != nil {
					return err
				}
				next, err := move(c, at)
				if err != nil {
					return err
				}
				return saveCycle(ctx, db, next)
			})
		},
	}
}

var cycleMaintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Finish a DRYING cycle and open a MAINTENANCE cycle in the same tent",
	RunE: func(cmd *cobra.Command, args []string) error {
		at, err := transitionTime()
		if err != nil {
			return err
		}
		return withTent(func(ctx context.Context, db *database.DB, tent cultivation.Tent, active *cultivation.Cycle) error {
			c, err := requireActive(tent, active)
			if err != nil {
				return err
			}
			finished, next, err := phase.ReturnToMaintenance(c, at)
			if err != nil {
				return err
			}
			if err := db.ReplaceCycle(ctx, finished, &next); err != nil {
				return err
			}
			logger.Info("cycle returned to maintenance",
				zap.Int64("tent_id", tent.ID),
				zap.Int64("finished_cycle", finished.ID),
				zap.Int64("new_cycle", next.ID))
			fmt.Printf("Tent %d: cycle %d finished, cycle %d started in MAINTENANCE\n", tent.ID, finished.ID, next.ID)
			return nil
		})
	},
}

var cycleFinishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Mark the active cycle of a tent as finished",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withTent(func(ctx context.Context, db *database.DB, tent cultivation.Tent, active *cultivation.Cycle) error {
			c, err := requireActive(tent, active)
			if err != nil {
				return err
			}
			next, err := phase.Finish(c, finishConfirmed)
			if err != nil {
				if errors.Is(err, cultivation.ErrConfirmationRequired) {
					return fmt.Errorf("%w: pass --yes to finish cycle %d", err, c.ID)
				}
				return err
			}
			if err := db.UpdateCycle(ctx, next); err != nil {
				return err
			}
			fmt.Printf("Tent %d: cycle %d finished\n", tent.ID, next.ID)
			return nil
		})
	},
}

func init() {
	cycleCmd.PersistentFlags().Int64Var(&cycleTentID, "tent", 0, "Tent ID")
	cycleCmd.PersistentFlags().StringVar(&cycleAt, "at", "", "Transition instant (RFC3339, defaults to now)")
	cycleCmd.MarkPersistentFlagRequired("tent")

	cycleStartCmd.Flags().Int64SliceVar(&cycleStrainIDs, "strain", nil, "Strain IDs growing in the tent")
	cycleStartCmd.Flags().BoolVar(&cycleMaintenance, "maintenance", false, "Start in MAINTENANCE for mother plants")

	cycleCloneCmd.Flags().Int64Var(&cloneTargetTent, "target-tent", 0, "Tent the clones are rooted in")
	cycleCloneCmd.MarkFlagRequired("target-tent")

	cycleEndCloningCmd.Flags().IntVar(&clonesProduced, "clones", 0, "Number of clones produced")

	cycleFinishCmd.Flags().BoolVar(&finishConfirmed, "yes", false, "Confirm finishing the cycle")

	cycleCmd.AddCommand(cycleStartCmd)
	cycleCmd.AddCommand(cycleCloneCmd)
	cycleCmd.AddCommand(cycleEndCloningCmd)
	cycleCmd.AddCommand(simpleTransition("promote", "Promote a MAINTENANCE or CLONING cycle to VEGA", phase.Promote))
	cycleCmd.AddCommand(simpleTransition("flora", "Move a VEGA cycle to FLORA", phase.StartFlora))
	cycleCmd.AddCommand(simpleTransition("dry", "Move a FLORA cycle to DRYING", phase.StartDrying))
	cycleCmd.AddCommand(cycleMaintenanceCmd)
	cycleCmd.AddCommand(cycleFinishCmd)
}

func transitionTime() (time.Time, error) {
	if cycleAt == "" {
		return time.Now(), nil
	}
	at, err := time.Parse(time.RFC3339, cycleAt)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at: %w", err)
	}
	return at, nil
}

// withTent loads the tent selected by --tent and its active cycle
func withTent(fn func(ctx context.Context, db *database.DB, tent cultivation.Tent, active *cultivation.Cycle) error) error {
	ctx, cancel := commandContext()
	defer cancel()

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	tent, err := db.GetTent(ctx, cycleTentID)
	if err != nil {
		return fmt.Errorf("failed to get tent: %w", err)
	}
	if tent == nil {
		return fmt.Errorf("tent %d not found", cycleTentID)
	}

	active, err := db.GetActiveCycle(ctx, tent.ID)
	if err != nil {
		return fmt.Errorf("failed to get active cycle: %w", err)
	}
	return fn(ctx, db, *tent, active)
}

func requireActive(tent cultivation.Tent, active *cultivation.Cycle) (cultivation.Cycle, error) {
	if active == nil {
		return cultivation.Cycle{}, fmt.Errorf("%w: tent %d has no active cycle", cultivation.ErrCycleNotActive, tent.ID)
	}
	return *active, nil
}

func saveCycle(ctx context.Context, db *database.DB, c cultivation.Cycle) error {
	if err := db.UpdateCycle(ctx, c); err != nil {
		return err
	}
	pos, err := phase.Current(c, time.Now())
	if err != nil {
		// A future --at leaves the cycle not yet in its new phase
		fmt.Printf("Tent %d: cycle %d updated\n", c.TentID, c.ID)
		return nil
	}
	fmt.Printf("Tent %d: cycle %d is now in %s (week %d)\n", c.TentID, c.ID, pos.Phase, pos.Week)
	return nil
}
