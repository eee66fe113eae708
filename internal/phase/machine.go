package phase

import (
	"fmt"
	"time"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

// transitions is the table of legal phase moves. Finishing a cycle is legal
// from every phase and is handled by Finish.
var transitions = map[cultivation.Phase][]cultivation.Phase{
	cultivation.PhaseMaintenance: {cultivation.PhaseCloning, cultivation.PhaseVega},
	cultivation.PhaseCloning:     {cultivation.PhaseMaintenance, cultivation.PhaseVega},
	cultivation.PhaseVega:        {cultivation.PhaseFlora},
	cultivation.PhaseFlora:       {cultivation.PhaseDrying},
	cultivation.PhaseDrying:      {cultivation.PhaseMaintenance},
}

// Allowed returns the phases reachable from p
func Allowed(p cultivation.Phase) []cultivation.Phase {
	return append([]cultivation.Phase(nil), transitions[p]...)
}

// CanTransition reports whether from -> to is a legal move
func CanTransition(from, to cultivation.Phase) bool {
	for _, p := range transitions[from] {
		if p == to {
			return true
		}
	}
	return false
}

// Outcome is the result of a transition. Next is set when the move closes the
// cycle and opens a new one (DRYING -> MAINTENANCE).
type Outcome struct {
	Cycle cultivation.Cycle
	Next  *cultivation.Cycle
}

// transition moves an active cycle to the given phase at the given instant.
// The input cycle is never modified.
func transition(c cultivation.Cycle, to cultivation.Phase, at time.Time) (Outcome, error) {
	if !c.IsActive() {
		return Outcome{}, fmt.Errorf("%w: cycle %d is %s", cultivation.ErrCycleNotActive, c.ID, c.Status)
	}

	anchors := c.Anchors()
	last := anchors[len(anchors)-1]
	if !at.After(last.At) {
		return Outcome{}, fmt.Errorf("%w: transition at %s does not follow %s start (%s)",
			cultivation.ErrInvalidCycleState, at.Format(time.RFC3339), last.Phase, last.At.Format(time.RFC3339))
	}

	pos, err := Current(c, at)
	if err != nil {
		return Outcome{}, err
	}
	if !CanTransition(pos.Phase, to) {
		return Outcome{}, &cultivation.IllegalTransitionError{
			From:    pos.Phase,
			To:      to,
			Allowed: Allowed(pos.Phase),
		}
	}

	next := c.Clone()
	stamp := at

	switch {
	case to == cultivation.PhaseCloning:
		next.CloningStartDate = &stamp

	case pos.Phase == cultivation.PhaseCloning && to == cultivation.PhaseMaintenance:
		next.CloningStartDate = nil
		next.CloningTentID = nil

	case to == cultivation.PhaseVega:
		next.VegaStartDate = &stamp

	case to == cultivation.PhaseFlora:
		next.FloraStartDate = &stamp

	case to == cultivation.PhaseDrying:
		next.DryingStartDate = &stamp

	case pos.Phase == cultivation.PhaseDrying && to == cultivation.PhaseMaintenance:
		next.Status = cultivation.CycleFinished
		mother := cultivation.Cycle{
			TentID:     c.TentID,
			StrainIDs:  append([]int64(nil), c.StrainIDs...),
			StartPhase: cultivation.PhaseMaintenance,
			StartDate:  at,
			Status:     cultivation.CycleActive,
		}
		return Outcome{Cycle: next, Next: &mother}, nil
	}

	return Outcome{Cycle: next}, nil
}

// StartCloning moves a MAINTENANCE cycle to CLONING, rooting clones in target
func StartCloning(c cultivation.Cycle, target cultivation.Tent, at time.Time) (cultivation.Cycle, error) {
	if !target.Category.AllowsCloning() {
		return cultivation.Cycle{}, fmt.Errorf("%w: tent %d is %s", cultivation.ErrCloningNotAllowed, target.ID, target.Category)
	}
	out, err := transition(c, cultivation.PhaseCloning, at)
	if err != nil {
		return cultivation.Cycle{}, err
	}
	id := target.ID
	out.Cycle.CloningTentID = &id
	return out.Cycle, nil
}

// EndCloning returns a CLONING cycle to MAINTENANCE and records the clones
func EndCloning(c cultivation.Cycle, clonesProduced int, at time.Time) (cultivation.Cycle, error) {
	if clonesProduced < 0 {
		return cultivation.Cycle{}, fmt.Errorf("clones produced must not be negative, got %d", clonesProduced)
	}
	pos, err := Current(c, at)
	if err == nil && pos.Phase != cultivation.PhaseCloning && c.IsActive() {
		return cultivation.Cycle{}, &cultivation.IllegalTransitionError{
			From:    pos.Phase,
			To:      cultivation.PhaseMaintenance,
			Allowed: Allowed(pos.Phase),
		}
	}
	out, err := transition(c, cultivation.PhaseMaintenance, at)
	if err != nil {
		return cultivation.Cycle{}, err
	}
	out.Cycle.ClonesProduced += clonesProduced
	return out.Cycle, nil
}

// Promote moves a MAINTENANCE or CLONING cycle to VEGA in place
func Promote(c cultivation.Cycle, at time.Time) (cultivation.Cycle, error) {
	out, err := transition(c, cultivation.PhaseVega, at)
	return out.Cycle, err
}

// StartFlora moves a VEGA cycle to FLORA. There is no way back.
func StartFlora(c cultivation.Cycle, at time.Time) (cultivation.Cycle, error) {
	out, err := transition(c, cultivation.PhaseFlora, at)
	return out.Cycle, err
}

// StartDrying moves a FLORA cycle to DRYING
func StartDrying(c cultivation.Cycle, at time.Time) (cultivation.Cycle, error) {
	out, err := transition(c, cultivation.PhaseDrying, at)
	return out.Cycle, err
}

// ReturnToMaintenance finishes a DRYING cycle and opens a new MAINTENANCE
// cycle in the same tent for mother-plant duty
func ReturnToMaintenance(c cultivation.Cycle, at time.Time) (finished, next cultivation.Cycle, err error) {
	pos, perr := Current(c, at)
	if perr == nil && pos.Phase != cultivation.PhaseDrying && c.IsActive() {
		return cultivation.Cycle{}, cultivation.Cycle{}, &cultivation.IllegalTransitionError{
			From:    pos.Phase,
			To:      cultivation.PhaseMaintenance,
			Allowed: Allowed(pos.Phase),
		}
	}
	out, err := transition(c, cultivation.PhaseMaintenance, at)
	if err != nil {
		return cultivation.Cycle{}, cultivation.Cycle{}, err
	}
	return out.Cycle, *out.Next, nil
}

// Finish flips an active cycle to FINISHED. Phase dates are left untouched.
func Finish(c cultivation.Cycle, confirmed bool) (cultivation.Cycle, error) {
	if !c.IsActive() {
		return cultivation.Cycle{}, fmt.Errorf("%w: cycle %d is %s", cultivation.ErrCycleNotActive, c.ID, c.Status)
	}
	if !confirmed {
		return cultivation.Cycle{}, cultivation.ErrConfirmationRequired
	}
	out := c.Clone()
	out.Status = cultivation.CycleFinished
	return out, nil
}

// InitiateCycle opens a new VEGA cycle in a tent
func InitiateCycle(tent cultivation.Tent, active *cultivation.Cycle, strainIDs []int64, at time.Time) (cultivation.Cycle, error) {
	return open(tent, active, strainIDs, cultivation.PhaseVega, at)
}

// StartMaintenance opens a new MAINTENANCE cycle for mother plants
func StartMaintenance(tent cultivation.Tent, active *cultivation.Cycle, strainIDs []int64, at time.Time) (cultivation.Cycle, error) {
	return open(tent, active, strainIDs, cultivation.PhaseMaintenance, at)
}

func open(tent cultivation.Tent, active *cultivation.Cycle, strainIDs []int64, start cultivation.Phase, at time.Time) (cultivation.Cycle, error) {
	if active != nil && active.IsActive() {
		return cultivation.Cycle{}, fmt.Errorf("%w: tent %d runs cycle %d", cultivation.ErrTentBusy, tent.ID, active.ID)
	}
	return cultivation.Cycle{
		TentID:     tent.ID,
		StrainIDs:  append([]int64(nil), strainIDs...),
		StartPhase: start,
		StartDate:  at,
		Status:     cultivation.CycleActive,
	}, nil
}

// CheckTentDeletion reports every precondition that blocks deleting a tent
func CheckTentDeletion(tent cultivation.Tent, active *cultivation.Cycle, plants int) error {
	var blockers []cultivation.Blocker

	if active != nil && active.IsActive() {
		blockers = append(blockers, cultivation.Blocker{
			Kind:        cultivation.BlockerActiveCycle,
			Detail:      fmt.Sprintf("cycle %d is still active", active.ID),
			Remediation: "finish the cycle first",
		})
	}
	if plants > 0 {
		blockers = append(blockers, cultivation.Blocker{
			Kind:        cultivation.BlockerAssignedPlant,
			Detail:      fmt.Sprintf("%d plants are assigned to the tent", plants),
			Remediation: "move the plants to another tent first",
		})
	}

	if len(blockers) == 0 {
		return nil
	}
	return &cultivation.DeletionBlockedError{TentID: tent.ID, Blockers: blockers}
}
