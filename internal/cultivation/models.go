package cultivation

import (
	"fmt"
	"time"
)

// Phase is a cultivation stage of a cycle
type Phase string

const (
	PhaseMaintenance Phase = "MAINTENANCE"
	PhaseCloning     Phase = "CLONING"
	PhaseVega        Phase = "VEGA"
	PhaseFlora       Phase = "FLORA"
	PhaseDrying      Phase = "DRYING"

	// PhaseInactive is used for display only: a tent with no active cycle
	PhaseInactive Phase = "INACTIVE"
)

// CyclePhases lists the cycle phases in their fixed order
var CyclePhases = []Phase{PhaseMaintenance, PhaseCloning, PhaseVega, PhaseFlora, PhaseDrying}

// Order returns the position of the phase in the cycle order, or -1
func (p Phase) Order() int {
	for i, cp := range CyclePhases {
		if cp == p {
			return i
		}
	}
	return -1
}

// Valid reports whether p is one of the cycle phases
func (p Phase) Valid() bool {
	return p.Order() >= 0
}

// ParsePhase parses a phase name
func ParsePhase(s string) (Phase, error) {
	p := Phase(s)
	if !p.Valid() {
		return "", fmt.Errorf("unknown phase: %q", s)
	}
	return p, nil
}

// CycleStatus is the lifecycle flag of a cycle
type CycleStatus string

const (
	CycleActive   CycleStatus = "ACTIVE"
	CycleFinished CycleStatus = "FINISHED"
)

// TentCategory is the informational role of a tent
type TentCategory string

const (
	CategoryMaintenance TentCategory = "MAINTENANCE"
	CategoryVega        TentCategory = "VEGA"
	CategoryFlora       TentCategory = "FLORA"
)

// AllowsCloning reports whether clones can be rooted in a tent of this category
func (c TentCategory) AllowsCloning() bool {
	return c == CategoryMaintenance || c == CategoryVega
}

// Strain is a plant genetic with its declared phase durations
type Strain struct {
	ID         int64
	Name       string
	VegaWeeks  int
	FloraWeeks int
}

// Validate checks the declared week counts
func (s Strain) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("strain name is required")
	}
	if s.VegaWeeks < 1 {
		return fmt.Errorf("strain %q: vega weeks must be at least 1, got %d", s.Name, s.VegaWeeks)
	}
	if s.FloraWeeks < 1 {
		return fmt.Errorf("strain %q: flora weeks must be at least 1, got %d", s.Name, s.FloraWeeks)
	}
	return nil
}

// WeeksFor returns the declared number of weeks for a strain-durated phase.
// The second result is false for phases that are not strain-durated.
func (s Strain) WeeksFor(p Phase) (int, bool) {
	switch p {
	case PhaseVega:
		return s.VegaWeeks, true
	case PhaseFlora:
		return s.FloraWeeks, true
	default:
		return 0, false
	}
}

// Range is an optional [Min, Max] pair. A nil bound means "not configured".
type Range struct {
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// NewRange builds a complete range
func NewRange(min, max float64) Range {
	return Range{Min: &min, Max: &max}
}

// Complete reports whether both bounds are present
func (r Range) Complete() bool {
	return r.Min != nil && r.Max != nil
}

// Midpoint returns the ideal value of a complete range
func (r Range) Midpoint() (float64, bool) {
	if !r.Complete() {
		return 0, false
	}
	return (*r.Min + *r.Max) / 2, true
}

// Clone returns a copy that shares no pointers with r
func (r Range) Clone() Range {
	var out Range
	if r.Min != nil {
		v := *r.Min
		out.Min = &v
	}
	if r.Max != nil {
		v := *r.Max
		out.Max = &v
	}
	return out
}

// WeeklyTarget is the ideal environment for a strain at (phase, week)
type WeeklyTarget struct {
	ID          int64
	StrainID    int64
	Phase       Phase
	Week        int
	Temp        Range
	RH          Range
	PPFD        Range
	PH          Range
	EC          Range
	Photoperiod string
	Notes       string
}

// RangeFor returns the range configured for a metric
func (w WeeklyTarget) RangeFor(m Metric) Range {
	switch m {
	case MetricTemp:
		return w.Temp
	case MetricRH:
		return w.RH
	case MetricPPFD:
		return w.PPFD
	case MetricPH:
		return w.PH
	case MetricEC:
		return w.EC
	default:
		return Range{}
	}
}

// SetRange replaces the range configured for a metric
func (w *WeeklyTarget) SetRange(m Metric, r Range) {
	switch m {
	case MetricTemp:
		w.Temp = r
	case MetricRH:
		w.RH = r
	case MetricPPFD:
		w.PPFD = r
	case MetricPH:
		w.PH = r
	case MetricEC:
		w.EC = r
	}
}

// ValidateWeek checks the week number against the strain's declared duration.
// Out-of-range weeks are a data-entry error and are never clamped.
func (w WeeklyTarget) ValidateWeek(s Strain) error {
	if !w.Phase.Valid() {
		return fmt.Errorf("weekly target: unknown phase %q", w.Phase)
	}
	if w.Week < 1 {
		return fmt.Errorf("weekly target: week must be at least 1, got %d", w.Week)
	}
	if max, ok := s.WeeksFor(w.Phase); ok && w.Week > max {
		return fmt.Errorf("%w: %s week %d exceeds %d declared weeks for strain %q",
			ErrWeekOutOfRange, w.Phase, w.Week, max, s.Name)
	}
	return nil
}

// DuplicateStrain copies a strain and every one of its weekly targets under a
// new name. The returned targets share no memory with the originals and have
// their IDs reset so they can be inserted as new rows.
func DuplicateStrain(s Strain, targets []WeeklyTarget, newName string) (Strain, []WeeklyTarget) {
	dup := Strain{
		Name:       newName,
		VegaWeeks:  s.VegaWeeks,
		FloraWeeks: s.FloraWeeks,
	}

	copies := make([]WeeklyTarget, 0, len(targets))
	for _, t := range targets {
		c := t
		c.ID = 0
		c.StrainID = 0
		for _, m := range AllMetrics {
			c.SetRange(m, t.RangeFor(m).Clone())
		}
		copies = append(copies, c)
	}
	return dup, copies
}

// PhaseMargin is the tolerance around the ideal value used for alerting
type PhaseMargin struct {
	Phase Phase
	Temp  *float64
	RH    *float64
	PPFD  *float64
	PH    *float64
}

// MarginFor returns the margin configured for a metric
func (m PhaseMargin) MarginFor(metric Metric) *float64 {
	switch metric {
	case MetricTemp:
		return m.Temp
	case MetricRH:
		return m.RH
	case MetricPPFD:
		return m.PPFD
	case MetricPH:
		return m.PH
	default:
		return nil
	}
}

func ptr(v float64) *float64 { return &v }

// DefaultPhaseMargins returns the margins seeded for a new installation
func DefaultPhaseMargins() []PhaseMargin {
	return []PhaseMargin{
		{Phase: PhaseMaintenance, Temp: ptr(2), RH: ptr(5), PPFD: ptr(100), PH: ptr(0.3)},
		{Phase: PhaseCloning, Temp: ptr(1.5), RH: ptr(5), PPFD: ptr(50), PH: ptr(0.2)},
		{Phase: PhaseVega, Temp: ptr(2), RH: ptr(5), PPFD: ptr(100), PH: ptr(0.3)},
		{Phase: PhaseFlora, Temp: ptr(2), RH: ptr(5), PPFD: ptr(150), PH: ptr(0.3)},
		{Phase: PhaseDrying, Temp: ptr(1), RH: ptr(3)},
	}
}

// Tent is a physical growing chamber
type Tent struct {
	ID       int64
	Name     string
	Category TentCategory
	Width    float64
	Depth    float64
	Height   float64
}

// Cycle is one cultivation run of a tent. StartDate anchors StartPhase; the
// optional dates anchor the later phases. VegaStartDate is only set when a
// MAINTENANCE or CLONING cycle is promoted in place.
type Cycle struct {
	ID               int64
	TentID           int64
	StrainIDs        []int64
	StartPhase       Phase
	StartDate        time.Time
	CloningStartDate *time.Time
	VegaStartDate    *time.Time
	FloraStartDate   *time.Time
	DryingStartDate  *time.Time
	CloningTentID    *int64
	ClonesProduced   int
	Status           CycleStatus
}

// Anchor is a phase start recorded on a cycle
type Anchor struct {
	Phase Phase
	At    time.Time
}

// Anchors returns the recorded phase starts in phase order
func (c Cycle) Anchors() []Anchor {
	start := c.StartPhase
	if start == "" {
		start = PhaseVega
	}
	anchors := []Anchor{{Phase: start, At: c.StartDate}}
	optional := []struct {
		phase Phase
		at    *time.Time
	}{
		{PhaseCloning, c.CloningStartDate},
		{PhaseVega, c.VegaStartDate},
		{PhaseFlora, c.FloraStartDate},
		{PhaseDrying, c.DryingStartDate},
	}
	for _, o := range optional {
		if o.at != nil {
			anchors = append(anchors, Anchor{Phase: o.phase, At: *o.at})
		}
	}
	return anchors
}

// Validate enforces strictly increasing phase anchors
func (c Cycle) Validate() error {
	if c.StartPhase != "" && c.StartPhase != PhaseMaintenance && c.StartPhase != PhaseVega {
		return fmt.Errorf("%w: cycle %d cannot start in %s", ErrInvalidCycleState, c.ID, c.StartPhase)
	}
	anchors := c.Anchors()
	for i := 1; i < len(anchors); i++ {
		prev, cur := anchors[i-1], anchors[i]
		if cur.Phase.Order() <= prev.Phase.Order() {
			return fmt.Errorf("%w: cycle %d records %s after %s", ErrInvalidCycleState, c.ID, cur.Phase, prev.Phase)
		}
		if !cur.At.After(prev.At) {
			return fmt.Errorf("%w: cycle %d %s start (%s) is not after %s start (%s)",
				ErrInvalidCycleState, c.ID, cur.Phase, cur.At.Format(time.RFC3339), prev.Phase, prev.At.Format(time.RFC3339))
		}
	}
	return nil
}

// IsActive reports whether the cycle is still running
func (c Cycle) IsActive() bool {
	return c.Status == CycleActive
}

// Clone returns a deep copy of the cycle
func (c Cycle) Clone() Cycle {
	out := c
	out.StrainIDs = append([]int64(nil), c.StrainIDs...)
	out.CloningStartDate = cloneTime(c.CloningStartDate)
	out.VegaStartDate = cloneTime(c.VegaStartDate)
	out.FloraStartDate = cloneTime(c.FloraStartDate)
	out.DryingStartDate = cloneTime(c.DryingStartDate)
	if c.CloningTentID != nil {
		id := *c.CloningTentID
		out.CloningTentID = &id
	}
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Turn is the AM/PM observation slot of a daily log
type Turn string

const (
	TurnAM Turn = "AM"
	TurnPM Turn = "PM"
)

// Valid reports whether t is AM or PM
func (t Turn) Valid() bool {
	return t == TurnAM || t == TurnPM
}

// DailyLog is one observation of a tent. Nil readings were not measured.
type DailyLog struct {
	ID      int64
	TentID  int64
	LogDate time.Time
	Turn    Turn
	Temp    *float64
	RH      *float64
	PPFD    *float64
	PH      *float64
	EC      *float64
	Notes   string
}

// Reading returns the observed value of a metric
func (l DailyLog) Reading(m Metric) *float64 {
	switch m {
	case MetricTemp:
		return l.Temp
	case MetricRH:
		return l.RH
	case MetricPPFD:
		return l.PPFD
	case MetricPH:
		return l.PH
	case MetricEC:
		return l.EC
	default:
		return nil
	}
}

// AlertSettings are the per-tent alert switches
type AlertSettings struct {
	AlertsEnabled bool
	TempEnabled   bool
	RHEnabled     bool
	PPFDEnabled   bool
	PHEnabled     bool
}

// DefaultAlertSettings enables everything
func DefaultAlertSettings() AlertSettings {
	return AlertSettings{
		AlertsEnabled: true,
		TempEnabled:   true,
		RHEnabled:     true,
		PPFDEnabled:   true,
		PHEnabled:     true,
	}
}

// MetricEnabled reports whether alerts for a metric are switched on
func (s AlertSettings) MetricEnabled(m Metric) bool {
	if !s.AlertsEnabled {
		return false
	}
	switch m {
	case MetricTemp:
		return s.TempEnabled
	case MetricRH:
		return s.RHEnabled
	case MetricPPFD:
		return s.PPFDEnabled
	case MetricPH:
		return s.PHEnabled
	default:
		return false
	}
}
