package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/phase"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/protocol"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/targets"
)

// Store is the persistence the service reads cycles and settings from and
// writes alerts to
type Store interface {
	GetActiveCycle(ctx context.Context, tentID int64) (*cultivation.Cycle, error)
	GetStrains(ctx context.Context, ids []int64) ([]cultivation.Strain, error)
	GetPhaseMargins(ctx context.Context) ([]cultivation.PhaseMargin, error)
	GetAlertSettings(ctx context.Context, tentID int64) (cultivation.AlertSettings, error)
	InsertAlert(ctx context.Context, alert *cultivation.Alert) error
	UpdateAlertStatus(ctx context.Context, alertID string, status cultivation.AlertStatus, at time.Time) error
}

// Sink receives emitted alert notifications
type Sink interface {
	Emit(ctx context.Context, notification *protocol.AlertNotification) error
}

// Service evaluates incoming daily logs for the tent's current phase and week
type Service struct {
	store    Store
	resolver *targets.Resolver
	engine   *Engine
	history  *HistoryStore
	sink     Sink
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates an alerting service
func NewService(store Store, resolver *targets.Resolver, history *HistoryStore, sink Sink, logger *zap.Logger) *Service {
	return &Service{
		store:    store,
		resolver: resolver,
		engine:   NewEngine(),
		history:  history,
		sink:     sink,
		logger:   logger,
		now:      time.Now,
	}
}

// EvaluateLog runs the alert engine over a daily log and returns the alerts
// that were newly raised
func (s *Service) EvaluateLog(ctx context.Context, log cultivation.DailyLog) ([]cultivation.Alert, error) {
	now := s.now()

	cycle, err := s.store.GetActiveCycle(ctx, log.TentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get active cycle: %w", err)
	}
	if cycle == nil {
		s.logger.Debug("no active cycle, skipping log", zap.Int64("tent_id", log.TentID))
		return nil, nil
	}

	pos, err := phase.Current(*cycle, now)
	if err != nil {
		return nil, err
	}

	strains, err := s.store.GetStrains(ctx, cycle.StrainIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to get strains: %w", err)
	}
	pos = phase.ClampWeek(pos, strains...)

	target, err := s.resolver.Resolve(ctx, cycle.StrainIDs, pos.Phase, pos.Week)
	if err != nil {
		return nil, err
	}
	if !target.Found {
		s.logger.Debug("no target configured",
			zap.Int64("tent_id", log.TentID),
			zap.String("phase", string(pos.Phase)),
			zap.Int("week", pos.Week))
	}
	if target.PhotoperiodApproximate {
		s.logger.Warn("strains disagree on photoperiod",
			zap.Int64("tent_id", log.TentID),
			zap.String("photoperiod", target.Photoperiod))
	}

	margin, err := s.marginFor(ctx, pos.Phase)
	if err != nil {
		return nil, err
	}

	settings, err := s.store.GetAlertSettings(ctx, log.TentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get alert settings: %w", err)
	}

	eval := s.engine.Check(log, pos, target, margin, settings)

	var emitted []cultivation.Alert
	for _, alert := range eval.Alerts {
		ok, err := s.raise(ctx, &alert, now)
		if err != nil {
			s.logger.Error("failed to raise alert",
				zap.Int64("tent_id", alert.TentID),
				zap.String("metric", string(alert.Metric)),
				zap.Error(err))
			continue
		}
		if ok {
			emitted = append(emitted, alert)
		}
	}

	// Only metrics checked against a target and margin can clear an alert.
	for _, metric := range eval.InRange {
		if err := s.resolve(ctx, log.TentID, metric, now); err != nil {
			s.logger.Error("failed to resolve alert",
				zap.Int64("tent_id", log.TentID),
				zap.String("metric", string(metric)),
				zap.Error(err))
		}
	}

	return emitted, nil
}

func (s *Service) marginFor(ctx context.Context, p cultivation.Phase) (cultivation.PhaseMargin, error) {
	margins, err := s.store.GetPhaseMargins(ctx)
	if err != nil {
		return cultivation.PhaseMargin{}, fmt.Errorf("failed to get phase margins: %w", err)
	}
	for _, m := range margins {
		if m.Phase == p {
			return m, nil
		}
	}
	return cultivation.PhaseMargin{Phase: p}, nil
}

// raise stores and emits an alert unless one is already outstanding. An
// outstanding alert whose notification never reached the sink is emitted
// again.
func (s *Service) raise(ctx context.Context, alert *cultivation.Alert, now time.Time) (bool, error) {
	state, err := s.history.Get(ctx, alert.TentID, alert.Metric)
	if err != nil {
		return false, err
	}

	if state.Open() {
		state.LastSeen = now
		state.Value = alert.Value
		if !state.Pending {
			return false, s.history.Set(ctx, alert.TentID, alert.Metric, state)
		}
		alert.ID = state.AlertID
		alert.CreatedAt = state.FirstSeen
		s.logger.Info("retrying alert notification",
			zap.String("alert_id", alert.ID),
			zap.Int64("tent_id", alert.TentID),
			zap.String("metric", string(alert.Metric)))
		return s.notify(ctx, alert, state)
	}

	alert.ID = uuid.New().String()
	alert.CreatedAt = now
	if err := s.store.InsertAlert(ctx, alert); err != nil {
		return false, fmt.Errorf("failed to insert alert: %w", err)
	}

	state = &HistoryState{
		Status:    cultivation.AlertActive,
		AlertID:   alert.ID,
		FirstSeen: now,
		LastSeen:  now,
		Value:     alert.Value,
		Pending:   true,
	}
	if err := s.history.Set(ctx, alert.TentID, alert.Metric, state); err != nil {
		return false, err
	}

	s.logger.Info("alert raised",
		zap.String("alert_id", alert.ID),
		zap.Int64("tent_id", alert.TentID),
		zap.String("metric", string(alert.Metric)),
		zap.String("severity", string(alert.Severity)),
		zap.String("message", alert.Message))

	return s.notify(ctx, alert, state)
}

// notify emits the raised notification and clears the pending mark. On
// failure the mark stays so the next log of the tent retries.
func (s *Service) notify(ctx context.Context, alert *cultivation.Alert, state *HistoryState) (bool, error) {
	if err := s.sink.Emit(ctx, protocol.NewAlertNotification(protocol.AlertTypeRaised, *alert)); err != nil {
		if setErr := s.history.Set(ctx, alert.TentID, alert.Metric, state); setErr != nil {
			s.logger.Error("failed to store alert state", zap.Error(setErr))
		}
		return false, fmt.Errorf("failed to emit alert: %w", err)
	}

	state.Pending = false
	if err := s.history.Set(ctx, alert.TentID, alert.Metric, state); err != nil {
		return true, err
	}
	return true, nil
}

func (s *Service) resolve(ctx context.Context, tentID int64, metric cultivation.Metric, now time.Time) error {
	state, err := s.history.Get(ctx, tentID, metric)
	if err != nil {
		return err
	}
	if !state.Open() {
		return nil
	}

	if state.AlertID != "" {
		if err := s.store.UpdateAlertStatus(ctx, state.AlertID, cultivation.AlertResolved, now); err != nil {
			return fmt.Errorf("failed to update alert: %w", err)
		}
	}
	if err := s.history.Delete(ctx, tentID, metric); err != nil {
		return err
	}

	s.logger.Info("alert resolved",
		zap.String("alert_id", state.AlertID),
		zap.Int64("tent_id", tentID),
		zap.String("metric", string(metric)))

	return s.sink.Emit(ctx, &protocol.AlertNotification{
		Type:     protocol.AlertTypeResolved,
		AlertID:  state.AlertID,
		TentID:   tentID,
		Metric:   string(metric),
		Value:    state.Value,
		RaisedAt: state.FirstSeen,
	})
}

// Acknowledge marks the outstanding alert of a tent metric as seen. It stays
// open until the reading returns inside its margin.
func (s *Service) Acknowledge(ctx context.Context, tentID int64, metric cultivation.Metric) error {
	state, err := s.history.Get(ctx, tentID, metric)
	if err != nil {
		return err
	}
	if state.Status != cultivation.AlertActive {
		return fmt.Errorf("no active alert for tent %d metric %s", tentID, metric)
	}

	state.Status = cultivation.AlertAcknowledged
	if err := s.store.UpdateAlertStatus(ctx, state.AlertID, cultivation.AlertAcknowledged, s.now()); err != nil {
		return fmt.Errorf("failed to update alert: %w", err)
	}
	return s.history.Set(ctx, tentID, metric, state)
}
