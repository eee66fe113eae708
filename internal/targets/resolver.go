package targets

import (
	"context"
	"fmt"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

// Source provides weekly target rows. A nil target with a nil error means the
// row does not exist.
type Source interface {
	GetWeeklyTarget(ctx context.Context, strainID int64, phase cultivation.Phase, week int) (*cultivation.WeeklyTarget, error)
}

// Resolved is the target a tent is evaluated against
type Resolved struct {
	Phase cultivation.Phase
	Week  int

	// Found is false for the distinguished "no target" result: every metric
	// is then treated as unmeasured.
	Found bool

	Temp        cultivation.Range
	RH          cultivation.Range
	PPFD        cultivation.Range
	PH          cultivation.Range
	EC          cultivation.Range
	Photoperiod string

	IsAverage   bool
	StrainCount int

	// PhotoperiodApproximate is set when contributing strains disagree on
	// the photoperiod and the first one was used.
	PhotoperiodApproximate bool
}

// NoTarget returns the "no check" result for (phase, week)
func NoTarget(phase cultivation.Phase, week int) Resolved {
	return Resolved{Phase: phase, Week: week}
}

// RangeFor returns the resolved range of a metric
func (r Resolved) RangeFor(m cultivation.Metric) cultivation.Range {
	if !r.Found {
		return cultivation.Range{}
	}
	switch m {
	case cultivation.MetricTemp:
		return r.Temp
	case cultivation.MetricRH:
		return r.RH
	case cultivation.MetricPPFD:
		return r.PPFD
	case cultivation.MetricPH:
		return r.PH
	case cultivation.MetricEC:
		return r.EC
	default:
		return cultivation.Range{}
	}
}

func (r *Resolved) setRange(m cultivation.Metric, rg cultivation.Range) {
	switch m {
	case cultivation.MetricTemp:
		r.Temp = rg
	case cultivation.MetricRH:
		r.RH = rg
	case cultivation.MetricPPFD:
		r.PPFD = rg
	case cultivation.MetricPH:
		r.PH = rg
	case cultivation.MetricEC:
		r.EC = rg
	}
}

// Resolver looks up and combines the targets of the strains in a tent
type Resolver struct {
	source Source
}

// NewResolver creates a resolver over a target source
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// Resolve returns the target for (phase, week). With several strains the
// bounds are averaged. A strain without a row for the week yields NoTarget;
// weeks are never extrapolated.
func (r *Resolver) Resolve(ctx context.Context, strainIDs []int64, phase cultivation.Phase, week int) (Resolved, error) {
	if len(strainIDs) == 0 {
		return NoTarget(phase, week), nil
	}

	rows := make([]cultivation.WeeklyTarget, 0, len(strainIDs))
	for _, id := range strainIDs {
		t, err := r.source.GetWeeklyTarget(ctx, id, phase, week)
		if err != nil {
			return Resolved{}, fmt.Errorf("failed to get target for strain %d %s week %d: %w", id, phase, week, err)
		}
		if t == nil {
			return NoTarget(phase, week), nil
		}
		rows = append(rows, *t)
	}

	res := Combine(rows)
	res.Phase = phase
	res.Week = week
	return res, nil
}

// Combine merges the weekly targets of several strains for the same
// (phase, week). It does not modify its input.
func Combine(rows []cultivation.WeeklyTarget) Resolved {
	if len(rows) == 0 {
		return Resolved{}
	}

	res := Resolved{
		Phase:       rows[0].Phase,
		Week:        rows[0].Week,
		Found:       true,
		StrainCount: len(rows),
		IsAverage:   len(rows) > 1,
	}

	ranges := make([]cultivation.Range, len(rows))
	for _, m := range cultivation.AllMetrics {
		for i, row := range rows {
			ranges[i] = row.RangeFor(m)
		}
		res.setRange(m, averageRanges(ranges))
	}

	res.Photoperiod, res.PhotoperiodApproximate = pickPhotoperiod(rows)
	return res
}

// averageRanges is the arithmetic mean of mins and of maxes. A bound missing
// on any operand drops the metric entirely.
func averageRanges(ranges []cultivation.Range) cultivation.Range {
	if len(ranges) == 1 {
		return ranges[0].Clone()
	}

	var sumMin, sumMax float64
	for _, r := range ranges {
		if !r.Complete() {
			return cultivation.Range{}
		}
		sumMin += *r.Min
		sumMax += *r.Max
	}
	n := float64(len(ranges))
	return cultivation.NewRange(sumMin/n, sumMax/n)
}

// pickPhotoperiod takes the first non-empty photoperiod. It is flagged as
// approximate when another strain declares a different one.
func pickPhotoperiod(rows []cultivation.WeeklyTarget) (string, bool) {
	chosen := ""
	approximate := false
	for _, row := range rows {
		if row.Photoperiod == "" {
			continue
		}
		if chosen == "" {
			chosen = row.Photoperiod
			continue
		}
		if row.Photoperiod != chosen {
			approximate = true
		}
	}
	return chosen, approximate
}
