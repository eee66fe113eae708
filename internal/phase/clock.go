package phase

import (
	"fmt"
	"time"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

const week = 7 * 24 * time.Hour

// Position is where a cycle stands at a given instant
type Position struct {
	Phase      cultivation.Phase
	Week       int
	PhaseStart time.Time
}

// Current derives the phase and the week within that phase at now.
// The week is not clamped to the strain's declared duration.
func Current(c cultivation.Cycle, now time.Time) (Position, error) {
	if err := c.Validate(); err != nil {
		return Position{}, err
	}

	anchors := c.Anchors()
	for i := len(anchors) - 1; i >= 0; i-- {
		a := anchors[i]
		if a.At.After(now) {
			continue
		}
		return Position{
			Phase:      a.Phase,
			Week:       weekNumber(a.At, now),
			PhaseStart: a.At,
		}, nil
	}

	return Position{}, fmt.Errorf("%w: cycle %d has not started at %s",
		cultivation.ErrInvalidCycleState, c.ID, now.Format(time.RFC3339))
}

func weekNumber(start, now time.Time) int {
	n := int(now.Sub(start)/week) + 1
	if n < 1 {
		return 1
	}
	return n
}

// ClampWeek limits a VEGA or FLORA week to the shortest declared duration of
// the given strains so that target lookups do not miss. Other phases are
// returned unchanged.
func ClampWeek(pos Position, strains ...cultivation.Strain) Position {
	for _, s := range strains {
		max, ok := s.WeeksFor(pos.Phase)
		if ok && max >= 1 && pos.Week > max {
			pos.Week = max
		}
	}
	return pos
}
