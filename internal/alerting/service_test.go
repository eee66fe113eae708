package alerting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/protocol"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/targets"
)

type statusUpdate struct {
	id     string
	status cultivation.AlertStatus
}

type memStore struct {
	cycle    *cultivation.Cycle
	strains  []cultivation.Strain
	margins  []cultivation.PhaseMargin
	settings cultivation.AlertSettings
	rows     map[cultivation.Phase]cultivation.WeeklyTarget

	inserted []cultivation.Alert
	updates  []statusUpdate
}

func (m *memStore) GetActiveCycle(ctx context.Context, tentID int64) (*cultivation.Cycle, error) {
	return m.cycle, nil
}

func (m *memStore) GetStrains(ctx context.Context, ids []int64) ([]cultivation.Strain, error) {
	return m.strains, nil
}

func (m *memStore) GetPhaseMargins(ctx context.Context) ([]cultivation.PhaseMargin, error) {
	return m.margins, nil
}

func (m *memStore) GetAlertSettings(ctx context.Context, tentID int64) (cultivation.AlertSettings, error) {
	return m.settings, nil
}

func (m *memStore) InsertAlert(ctx context.Context, alert *cultivation.Alert) error {
	m.inserted = append(m.inserted, *alert)
	return nil
}

func (m *memStore) UpdateAlertStatus(ctx context.Context, alertID string, status cultivation.AlertStatus, at time.Time) error {
	m.updates = append(m.updates, statusUpdate{id: alertID, status: status})
	return nil
}

// GetWeeklyTarget serves the rows of strain 1 by phase, for any week
func (m *memStore) GetWeeklyTarget(ctx context.Context, strainID int64, phase cultivation.Phase, week int) (*cultivation.WeeklyTarget, error) {
	t, ok := m.rows[phase]
	if !ok {
		return nil, nil
	}
	t.Week = week
	return &t, nil
}

type memSink struct {
	mu   sync.Mutex
	sent []*protocol.AlertNotification
	err  error
}

func (s *memSink) Emit(ctx context.Context, n *protocol.AlertNotification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, n)
	return nil
}

var serviceNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func setupService(t *testing.T) (*Service, *memStore, *memSink, *HistoryStore) {
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { redisClient.Close() })

	store := &memStore{
		cycle: &cultivation.Cycle{
			ID:         1,
			TentID:     2,
			StrainIDs:  []int64{1},
			StartPhase: cultivation.PhaseVega,
			StartDate:  serviceNow.AddDate(0, 0, -40),
			// Flora week 3
			FloraStartDate: timePtr(serviceNow.AddDate(0, 0, -15)),
			Status:         cultivation.CycleActive,
		},
		strains:  []cultivation.Strain{{ID: 1, Name: "OG", VegaWeeks: 4, FloraWeeks: 8}},
		margins:  cultivation.DefaultPhaseMargins(),
		settings: cultivation.DefaultAlertSettings(),
		rows: map[cultivation.Phase]cultivation.WeeklyTarget{
			cultivation.PhaseFlora: {
				StrainID: 1,
				Phase:    cultivation.PhaseFlora,
				Temp:     cultivation.NewRange(22, 26),
				RH:       cultivation.NewRange(40, 50),
			},
		},
	}

	sink := &memSink{}
	history := NewHistoryStore(redisClient, time.Hour)
	svc := NewService(store, targets.NewResolver(store), history, sink, zap.NewNop())
	svc.now = func() time.Time { return serviceNow }

	return svc, store, sink, history
}

func timePtr(t time.Time) *time.Time { return &t }

func TestService_RaisesOnce(t *testing.T) {
	svc, store, sink, history := setupService(t)
	ctx := context.Background()

	hot := cultivation.DailyLog{TentID: 2, Turn: cultivation.TurnAM, Temp: f(29)}

	raised, err := svc.EvaluateLog(ctx, hot)
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.NotEmpty(t, raised[0].ID)
	assert.Equal(t, cultivation.PhaseFlora, raised[0].Phase)
	assert.Equal(t, 3, raised[0].Week)

	require.Len(t, store.inserted, 1)
	require.Len(t, sink.sent, 1)
	assert.Equal(t, protocol.AlertTypeRaised, sink.sent[0].Type)

	// The same deviation on the next log does not raise again
	hot.Temp = f(29.5)
	raised, err = svc.EvaluateLog(ctx, hot)
	require.NoError(t, err)
	assert.Empty(t, raised)
	assert.Len(t, store.inserted, 1)
	assert.Len(t, sink.sent, 1)

	state, err := history.Get(ctx, 2, cultivation.MetricTemp)
	require.NoError(t, err)
	assert.Equal(t, 29.5, state.Value)
}

func TestService_ResolvesWhenBackInside(t *testing.T) {
	svc, store, sink, history := setupService(t)
	ctx := context.Background()

	raised, err := svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, Temp: f(29)})
	require.NoError(t, err)
	require.Len(t, raised, 1)

	// A log without a temperature reading leaves the alert open
	_, err = svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, RH: f(45)})
	require.NoError(t, err)
	assert.Len(t, sink.sent, 1)

	_, err = svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, Temp: f(24.5)})
	require.NoError(t, err)

	require.Len(t, sink.sent, 2)
	assert.Equal(t, protocol.AlertTypeResolved, sink.sent[1].Type)
	assert.Equal(t, raised[0].ID, sink.sent[1].AlertID)
	require.Len(t, store.updates, 1)
	assert.Equal(t, cultivation.AlertResolved, store.updates[0].status)

	state, err := history.Get(ctx, 2, cultivation.MetricTemp)
	require.NoError(t, err)
	assert.False(t, state.Open())
}

func TestService_Acknowledge(t *testing.T) {
	svc, store, sink, history := setupService(t)
	ctx := context.Background()

	assert.Error(t, svc.Acknowledge(ctx, 2, cultivation.MetricTemp))

	_, err := svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, Temp: f(29)})
	require.NoError(t, err)

	require.NoError(t, svc.Acknowledge(ctx, 2, cultivation.MetricTemp))
	require.Len(t, store.updates, 1)
	assert.Equal(t, cultivation.AlertAcknowledged, store.updates[0].status)

	state, err := history.Get(ctx, 2, cultivation.MetricTemp)
	require.NoError(t, err)
	assert.Equal(t, cultivation.AlertAcknowledged, state.Status)
	assert.True(t, state.Open())

	// An acknowledged alert is not raised again
	raised, err := svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, Temp: f(30)})
	require.NoError(t, err)
	assert.Empty(t, raised)
	assert.Len(t, sink.sent, 1)

	open, err := history.Open(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestService_NoActiveCycle(t *testing.T) {
	svc, store, sink, _ := setupService(t)
	store.cycle = nil

	raised, err := svc.EvaluateLog(context.Background(), cultivation.DailyLog{TentID: 2, Temp: f(40)})
	require.NoError(t, err)
	assert.Empty(t, raised)
	assert.Empty(t, sink.sent)
}

func TestService_NoTargetForWeek(t *testing.T) {
	svc, store, sink, _ := setupService(t)
	delete(store.rows, cultivation.PhaseFlora)

	raised, err := svc.EvaluateLog(context.Background(), cultivation.DailyLog{TentID: 2, Temp: f(40)})
	require.NoError(t, err)
	assert.Empty(t, raised)
	assert.Empty(t, sink.sent)
}

func TestService_KeepsAlertOpenWhenMetricNotChecked(t *testing.T) {
	tests := []struct {
		name  string
		apply func(store *memStore)
	}{
		{"alerts disabled", func(store *memStore) { store.settings.AlertsEnabled = false }},
		{"metric disabled", func(store *memStore) { store.settings.TempEnabled = false }},
		{"no target for week", func(store *memStore) { delete(store.rows, cultivation.PhaseFlora) }},
		{"no margin for metric", func(store *memStore) {
			for i := range store.margins {
				if store.margins[i].Phase == cultivation.PhaseFlora {
					store.margins[i].Temp = nil
				}
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, sink, history := setupService(t)
			ctx := context.Background()

			raised, err := svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, Temp: f(29)})
			require.NoError(t, err)
			require.Len(t, raised, 1)

			tt.apply(store)
			_, err = svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, Temp: f(24)})
			require.NoError(t, err)

			assert.Len(t, sink.sent, 1)
			assert.Empty(t, store.updates)
			state, err := history.Get(ctx, 2, cultivation.MetricTemp)
			require.NoError(t, err)
			assert.True(t, state.Open())
		})
	}
}

func TestService_DryingKeepsLightAlertOpen(t *testing.T) {
	svc, store, sink, history := setupService(t)
	ctx := context.Background()

	flora := store.rows[cultivation.PhaseFlora]
	flora.PPFD = cultivation.NewRange(600, 900)
	store.rows[cultivation.PhaseFlora] = flora

	raised, err := svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, PPFD: f(1200)})
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, cultivation.MetricPPFD, raised[0].Metric)

	store.cycle.DryingStartDate = timePtr(serviceNow.AddDate(0, 0, -2))
	store.rows[cultivation.PhaseDrying] = cultivation.WeeklyTarget{
		StrainID: 1,
		Phase:    cultivation.PhaseDrying,
		Temp:     cultivation.NewRange(18, 21),
		PPFD:     cultivation.NewRange(600, 900),
	}

	raised, err = svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, PPFD: f(750)})
	require.NoError(t, err)
	assert.Empty(t, raised)
	assert.Len(t, sink.sent, 1)
	assert.Empty(t, store.updates)

	state, err := history.Get(ctx, 2, cultivation.MetricPPFD)
	require.NoError(t, err)
	assert.True(t, state.Open())
}

func TestService_RetriesFailedNotification(t *testing.T) {
	svc, store, sink, history := setupService(t)
	ctx := context.Background()

	sink.err = errors.New("broker unavailable")
	raised, err := svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, Temp: f(29)})
	require.NoError(t, err)
	assert.Empty(t, raised)
	require.Len(t, store.inserted, 1)

	state, err := history.Get(ctx, 2, cultivation.MetricTemp)
	require.NoError(t, err)
	assert.True(t, state.Open())
	assert.True(t, state.Pending)

	sink.err = nil
	raised, err = svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, Temp: f(29.5)})
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, store.inserted[0].ID, raised[0].ID)
	assert.Len(t, store.inserted, 1)

	require.Len(t, sink.sent, 1)
	assert.Equal(t, protocol.AlertTypeRaised, sink.sent[0].Type)
	assert.Equal(t, store.inserted[0].ID, sink.sent[0].AlertID)

	state, err = history.Get(ctx, 2, cultivation.MetricTemp)
	require.NoError(t, err)
	assert.False(t, state.Pending)

	// Delivered once, not again
	_, err = svc.EvaluateLog(ctx, cultivation.DailyLog{TentID: 2, Temp: f(30)})
	require.NoError(t, err)
	assert.Len(t, sink.sent, 1)
}
