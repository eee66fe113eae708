package alerting

import (
	"fmt"
	"math"
	"strconv"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/deviation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/phase"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/targets"
)

// alertMetrics are the metrics that carry a phase margin. EC has none.
var alertMetrics = []cultivation.Metric{
	cultivation.MetricTemp,
	cultivation.MetricRH,
	cultivation.MetricPPFD,
	cultivation.MetricPH,
}

// criticalFactor grades an alert CRITICAL once the deviation exceeds this
// multiple of the margin
const criticalFactor = 2.0

// Engine turns a daily log into alerts. It holds no state.
type Engine struct{}

// NewEngine creates an alert engine
func NewEngine() *Engine {
	return &Engine{}
}

// Evaluation is the outcome of checking one daily log
type Evaluation struct {
	// Alerts holds at most one alert per metric outside its margin
	Alerts []cultivation.Alert
	// InRange lists the metrics that were checked and found inside their
	// margin. Metrics that were skipped or unmeasured appear in neither list.
	InRange []cultivation.Metric
}

// Check evaluates every enabled metric of the log that has a reading, a
// target range and a phase margin
func (e *Engine) Check(
	log cultivation.DailyLog,
	pos phase.Position,
	target targets.Resolved,
	margin cultivation.PhaseMargin,
	settings cultivation.AlertSettings,
) Evaluation {
	var out Evaluation
	if !settings.AlertsEnabled || !target.Found {
		return out
	}

	for _, metric := range alertMetrics {
		if excludedInPhase(pos.Phase, metric) {
			continue
		}
		if !settings.MetricEnabled(metric) {
			continue
		}

		rg := target.RangeFor(metric)
		value := log.Reading(metric)
		result := deviation.CheckMargin(value, rg, margin.MarginFor(metric))
		if !result.Measured {
			continue
		}
		if !result.Exceeded {
			out.InRange = append(out.InRange, metric)
			continue
		}

		out.Alerts = append(out.Alerts, cultivation.Alert{
			TentID:   log.TentID,
			LogID:    log.ID,
			Metric:   metric,
			Severity: severityFor(result),
			Message:  Message(metric, *value, rg),
			Value:    *value,
			Ideal:    result.Ideal,
			Margin:   result.Margin,
			Phase:    pos.Phase,
			Week:     pos.Week,
			Status:   cultivation.AlertActive,
		})
	}

	return out
}

// Evaluate returns the alerts of Check
func (e *Engine) Evaluate(
	log cultivation.DailyLog,
	pos phase.Position,
	target targets.Resolved,
	margin cultivation.PhaseMargin,
	settings cultivation.AlertSettings,
) []cultivation.Alert {
	return e.Check(log, pos, target, margin, settings).Alerts
}

// excludedInPhase reports metrics that are never evaluated in a phase.
// Lights are off and there is no nutrient solution while drying.
func excludedInPhase(p cultivation.Phase, m cultivation.Metric) bool {
	return p == cultivation.PhaseDrying && (m == cultivation.MetricPPFD || m == cultivation.MetricPH)
}

func severityFor(r deviation.MarginResult) cultivation.Severity {
	if r.Deviation > criticalFactor*r.Margin {
		return cultivation.SeverityCritical
	}
	return cultivation.SeverityWarning
}

// Message renders the contextual alert text, e.g.
// "Temperatura: 27.5°C está fora da faixa ideal (22–26°C)"
func Message(m cultivation.Metric, value float64, r cultivation.Range) string {
	unit := m.Unit()
	if !r.Complete() {
		return fmt.Sprintf("%s: %s%s está fora da faixa ideal", m.Label(), formatNumber(value), unit)
	}
	return fmt.Sprintf("%s: %s%s está fora da faixa ideal (%s–%s%s)",
		m.Label(), formatNumber(value), unit, formatNumber(*r.Min), formatNumber(*r.Max), unit)
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(math.Round(v*100)/100, 'f', -1, 64)
}
