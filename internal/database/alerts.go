package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

// GetPhaseMargins returns the margin row of every phase
func (db *DB) GetPhaseMargins(ctx context.Context) ([]cultivation.PhaseMargin, error) {
	query := `
		SELECT phase, temp_margin, rh_margin, ppfd_margin, ph_margin
		FROM phase_margins
		ORDER BY phase
	`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var margins []cultivation.PhaseMargin
	for rows.Next() {
		var m cultivation.PhaseMargin
		if err := rows.Scan(&m.Phase, &m.Temp, &m.RH, &m.PPFD, &m.PH); err != nil {
			return nil, err
		}
		margins = append(margins, m)
	}
	return margins, rows.Err()
}

// UpdatePhaseMargin stores the margins of one phase. DRYING takes no PPFD or
// pH margin.
func (db *DB) UpdatePhaseMargin(ctx context.Context, m cultivation.PhaseMargin) error {
	if !m.Phase.Valid() {
		return fmt.Errorf("unknown phase %q", m.Phase)
	}
	if m.Phase == cultivation.PhaseDrying && (m.PPFD != nil || m.PH != nil) {
		return fmt.Errorf("DRYING phase takes no PPFD or pH margin")
	}
	for _, v := range []*float64{m.Temp, m.RH, m.PPFD, m.PH} {
		if v != nil && *v < 0 {
			return fmt.Errorf("margins must not be negative")
		}
	}

	query := `
		INSERT INTO phase_margins (phase, temp_margin, rh_margin, ppfd_margin, ph_margin)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (phase) DO UPDATE
		SET temp_margin = EXCLUDED.temp_margin,
		    rh_margin = EXCLUDED.rh_margin,
		    ppfd_margin = EXCLUDED.ppfd_margin,
		    ph_margin = EXCLUDED.ph_margin
	`
	_, err := db.ExecContext(ctx, query, m.Phase, m.Temp, m.RH, m.PPFD, m.PH)
	return err
}

// GetAlertSettings returns the alert switches of a tent. Tents without a row
// get the defaults.
func (db *DB) GetAlertSettings(ctx context.Context, tentID int64) (cultivation.AlertSettings, error) {
	query := `
		SELECT alerts_enabled, temp_enabled, rh_enabled, ppfd_enabled, ph_enabled
		FROM alert_settings
		WHERE tent_id = $1
	`

	var s cultivation.AlertSettings
	err := db.QueryRowContext(ctx, query, tentID).Scan(
		&s.AlertsEnabled,
		&s.TempEnabled,
		&s.RHEnabled,
		&s.PPFDEnabled,
		&s.PHEnabled,
	)
	if err == sql.ErrNoRows {
		return cultivation.DefaultAlertSettings(), nil
	}
	if err != nil {
		return cultivation.AlertSettings{}, err
	}
	return s, nil
}

// UpsertAlertSettings stores the alert switches of a tent
func (db *DB) UpsertAlertSettings(ctx context.Context, tentID int64, s cultivation.AlertSettings) error {
	query := `
		INSERT INTO alert_settings (tent_id, alerts_enabled, temp_enabled, rh_enabled, ppfd_enabled, ph_enabled)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (tent_id) DO UPDATE
		SET alerts_enabled = EXCLUDED.alerts_enabled,
		    temp_enabled = EXCLUDED.temp_enabled,
		    rh_enabled = EXCLUDED.rh_enabled,
		    ppfd_enabled = EXCLUDED.ppfd_enabled,
		    ph_enabled = EXCLUDED.ph_enabled
	`
	_, err := db.ExecContext(ctx, query, tentID, s.AlertsEnabled, s.TempEnabled, s.RHEnabled, s.PPFDEnabled, s.PHEnabled)
	return err
}

// UpsertDailyLog inserts a log or replaces the readings of the existing
// (tent, date, turn) entry, and fills its ID
func (db *DB) UpsertDailyLog(ctx context.Context, l *cultivation.DailyLog) error {
	if !l.Turn.Valid() {
		return fmt.Errorf("turn must be AM or PM, got %q", l.Turn)
	}

	query := `
		INSERT INTO daily_logs (tent_id, log_date, turn, temp, rh, ppfd, ph, ec, notes)
		VALUES ($1, $2::date, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (tent_id, log_date, turn) DO UPDATE
		SET temp = EXCLUDED.temp,
		    rh = EXCLUDED.rh,
		    ppfd = EXCLUDED.ppfd,
		    ph = EXCLUDED.ph,
		    ec = EXCLUDED.ec,
		    notes = EXCLUDED.notes
		RETURNING id
	`
	return db.QueryRowContext(ctx, query,
		l.TentID,
		l.LogDate,
		l.Turn,
		l.Temp,
		l.RH,
		l.PPFD,
		l.PH,
		l.EC,
		l.Notes,
	).Scan(&l.ID)
}

// LatestDailyLog returns the most recent log of a tent, or nil if there is none
func (db *DB) LatestDailyLog(ctx context.Context, tentID int64) (*cultivation.DailyLog, error) {
	query := `
		SELECT id, tent_id, log_date, turn, temp, rh, ppfd, ph, ec, notes
		FROM daily_logs
		WHERE tent_id = $1
		ORDER BY log_date DESC, turn DESC
		LIMIT 1
	`

	var l cultivation.DailyLog
	err := db.QueryRowContext(ctx, query, tentID).Scan(
		&l.ID,
		&l.TentID,
		&l.LogDate,
		&l.Turn,
		&l.Temp,
		&l.RH,
		&l.PPFD,
		&l.PH,
		&l.EC,
		&l.Notes,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// InsertAlert stores a raised alert
func (db *DB) InsertAlert(ctx context.Context, a *cultivation.Alert) error {
	query := `
		INSERT INTO alerts (
			id, tent_id, log_id, metric, severity, message,
			value, ideal, margin, phase, week, status, created_at
		) VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := db.ExecContext(ctx, query,
		a.ID,
		a.TentID,
		a.LogID,
		a.Metric,
		a.Severity,
		a.Message,
		a.Value,
		a.Ideal,
		a.Margin,
		a.Phase,
		a.Week,
		a.Status,
		a.CreatedAt,
	)
	return err
}

// UpdateAlertStatus moves a stored alert along its lifecycle
func (db *DB) UpdateAlertStatus(ctx context.Context, alertID string, status cultivation.AlertStatus, at time.Time) error {
	query := `
		UPDATE alerts
		SET status = $1, updated_at = $2
		WHERE id = $3
	`
	_, err := db.ExecContext(ctx, query, status, at, alertID)
	return err
}
