package alerting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/phase"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/targets"
)

func f(v float64) *float64 { return &v }

func floraTarget() targets.Resolved {
	return targets.Resolved{
		Phase: cultivation.PhaseFlora,
		Week:  3,
		Found: true,
		Temp:  cultivation.NewRange(22, 26),
		RH:    cultivation.NewRange(40, 50),
		PPFD:  cultivation.NewRange(600, 900),
		PH:    cultivation.NewRange(5.8, 6.2),
		EC:    cultivation.NewRange(1.2, 1.8),
	}
}

func floraMargin() cultivation.PhaseMargin {
	return cultivation.PhaseMargin{Phase: cultivation.PhaseFlora, Temp: f(2), RH: f(5), PPFD: f(150), PH: f(0.3)}
}

func TestEngine_RaisesOutsideMargin(t *testing.T) {
	log := cultivation.DailyLog{ID: 11, TentID: 2, Temp: f(27.5), RH: f(47), EC: f(5)}
	pos := phase.Position{Phase: cultivation.PhaseFlora, Week: 3}

	alerts := NewEngine().Evaluate(log, pos, floraTarget(), floraMargin(), cultivation.DefaultAlertSettings())
	require.Len(t, alerts, 1)

	a := alerts[0]
	assert.Equal(t, cultivation.MetricTemp, a.Metric)
	assert.Equal(t, int64(11), a.LogID)
	assert.Equal(t, 24.0, a.Ideal)
	assert.Equal(t, 2.0, a.Margin)
	assert.Equal(t, cultivation.SeverityWarning, a.Severity)
	assert.Equal(t, cultivation.AlertActive, a.Status)
	assert.Equal(t, 3, a.Week)
	assert.Equal(t, "Temperatura: 27.5°C está fora da faixa ideal (22–26°C)", a.Message)
}

func TestEngine_Critical(t *testing.T) {
	log := cultivation.DailyLog{TentID: 2, Temp: f(30)}
	pos := phase.Position{Phase: cultivation.PhaseFlora, Week: 3}

	alerts := NewEngine().Evaluate(log, pos, floraTarget(), floraMargin(), cultivation.DefaultAlertSettings())
	require.Len(t, alerts, 1)
	assert.Equal(t, cultivation.SeverityCritical, alerts[0].Severity)
}

func TestEngine_DryingSkipsLightAndPH(t *testing.T) {
	target := floraTarget()
	target.Phase = cultivation.PhaseDrying
	margin := cultivation.PhaseMargin{Phase: cultivation.PhaseDrying, Temp: f(1), RH: f(3), PPFD: f(1), PH: f(0.1)}
	log := cultivation.DailyLog{TentID: 2, PPFD: f(0), PH: f(9), RH: f(60)}
	pos := phase.Position{Phase: cultivation.PhaseDrying, Week: 1}

	alerts := NewEngine().Evaluate(log, pos, target, margin, cultivation.DefaultAlertSettings())
	require.Len(t, alerts, 1)
	assert.Equal(t, cultivation.MetricRH, alerts[0].Metric)
}

func TestEngine_Switches(t *testing.T) {
	log := cultivation.DailyLog{TentID: 2, Temp: f(35), RH: f(80)}
	pos := phase.Position{Phase: cultivation.PhaseFlora, Week: 3}

	settings := cultivation.DefaultAlertSettings()
	settings.TempEnabled = false
	alerts := NewEngine().Evaluate(log, pos, floraTarget(), floraMargin(), settings)
	require.Len(t, alerts, 1)
	assert.Equal(t, cultivation.MetricRH, alerts[0].Metric)

	settings.AlertsEnabled = false
	assert.Empty(t, NewEngine().Evaluate(log, pos, floraTarget(), floraMargin(), settings))
}

func TestEngine_NoTargetOrMargin(t *testing.T) {
	log := cultivation.DailyLog{TentID: 2, Temp: f(35)}
	pos := phase.Position{Phase: cultivation.PhaseFlora, Week: 3}

	assert.Empty(t, NewEngine().Evaluate(log, pos, targets.NoTarget(cultivation.PhaseFlora, 3), floraMargin(), cultivation.DefaultAlertSettings()))
	assert.Empty(t, NewEngine().Evaluate(log, pos, floraTarget(), cultivation.PhaseMargin{Phase: cultivation.PhaseFlora}, cultivation.DefaultAlertSettings()))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "pH: 6.75 está fora da faixa ideal (5.8–6.2)", Message(cultivation.MetricPH, 6.75, cultivation.NewRange(5.8, 6.2)))
	assert.Equal(t, "Umidade: 71.33% está fora da faixa ideal", Message(cultivation.MetricRH, 71.333, cultivation.Range{}))
}

func TestEngine_CheckReportsInRangeOnly(t *testing.T) {
	log := cultivation.DailyLog{TentID: 2, Temp: f(27.5), RH: f(47), PPFD: f(700), PH: f(6)}
	flora := phase.Position{Phase: cultivation.PhaseFlora, Week: 3}

	eval := NewEngine().Check(log, flora, floraTarget(), floraMargin(), cultivation.DefaultAlertSettings())
	require.Len(t, eval.Alerts, 1)
	assert.Equal(t, []cultivation.Metric{cultivation.MetricRH, cultivation.MetricPPFD, cultivation.MetricPH}, eval.InRange)

	drying := phase.Position{Phase: cultivation.PhaseDrying, Week: 1}
	eval = NewEngine().Check(log, drying, floraTarget(), floraMargin(), cultivation.DefaultAlertSettings())
	assert.NotContains(t, eval.InRange, cultivation.MetricPPFD)
	assert.NotContains(t, eval.InRange, cultivation.MetricPH)

	noRH := floraMargin()
	noRH.RH = nil
	eval = NewEngine().Check(log, flora, floraTarget(), noRH, cultivation.DefaultAlertSettings())
	assert.NotContains(t, eval.InRange, cultivation.MetricRH)

	off := cultivation.DefaultAlertSettings()
	off.AlertsEnabled = false
	assert.Empty(t, NewEngine().Check(log, flora, floraTarget(), floraMargin(), off).InRange)

	assert.Empty(t, NewEngine().Check(log, flora, targets.Resolved{}, floraMargin(), cultivation.DefaultAlertSettings()).InRange)
}
