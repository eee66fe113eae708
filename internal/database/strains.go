package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

const targetColumns = `
	id, strain_id, phase, week_number,
	temp_min, temp_max, rh_min, rh_max, ppfd_min, ppfd_max,
	ph_min, ph_max, ec_min, ec_max, photoperiod, notes
`

func scanTarget(row rowScanner) (*cultivation.WeeklyTarget, error) {
	var t cultivation.WeeklyTarget
	err := row.Scan(
		&t.ID,
		&t.StrainID,
		&t.Phase,
		&t.Week,
		&t.Temp.Min, &t.Temp.Max,
		&t.RH.Min, &t.RH.Max,
		&t.PPFD.Min, &t.PPFD.Max,
		&t.PH.Min, &t.PH.Max,
		&t.EC.Min, &t.EC.Max,
		&t.Photoperiod,
		&t.Notes,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetStrain retrieves a strain by ID
func (db *DB) GetStrain(ctx context.Context, id int64) (*cultivation.Strain, error) {
	query := `
		SELECT id, name, vega_weeks, flora_weeks
		FROM strains
		WHERE id = $1
	`

	var s cultivation.Strain
	err := db.QueryRowContext(ctx, query, id).Scan(&s.ID, &s.Name, &s.VegaWeeks, &s.FloraWeeks)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetStrainByName retrieves a strain by its unique name
func (db *DB) GetStrainByName(ctx context.Context, name string) (*cultivation.Strain, error) {
	query := `
		SELECT id, name, vega_weeks, flora_weeks
		FROM strains
		WHERE name = $1
	`

	var s cultivation.Strain
	err := db.QueryRowContext(ctx, query, name).Scan(&s.ID, &s.Name, &s.VegaWeeks, &s.FloraWeeks)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// UpsertStrain inserts or updates a strain by name and fills its ID
func (db *DB) UpsertStrain(ctx context.Context, s *cultivation.Strain) error {
	if err := s.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO strains (name, vega_weeks, flora_weeks)
		VALUES ($1, $2, $3)
		ON CONFLICT (name) DO UPDATE
		SET vega_weeks = EXCLUDED.vega_weeks,
		    flora_weeks = EXCLUDED.flora_weeks
		RETURNING id
	`
	return db.QueryRowContext(ctx, query, s.Name, s.VegaWeeks, s.FloraWeeks).Scan(&s.ID)
}

// GetWeeklyTarget returns the target row of (strain, phase, week), or nil if
// none is configured
func (db *DB) GetWeeklyTarget(ctx context.Context, strainID int64, phase cultivation.Phase, week int) (*cultivation.WeeklyTarget, error) {
	query := `SELECT ` + targetColumns + `
		FROM weekly_targets
		WHERE strain_id = $1 AND phase = $2 AND week_number = $3
	`

	t, err := scanTarget(db.QueryRowContext(ctx, query, strainID, phase, week))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// ListWeeklyTargets returns every target row of a strain
func (db *DB) ListWeeklyTargets(ctx context.Context, strainID int64) ([]cultivation.WeeklyTarget, error) {
	query := `SELECT ` + targetColumns + `
		FROM weekly_targets
		WHERE strain_id = $1
		ORDER BY phase, week_number
	`

	rows, err := db.QueryContext(ctx, query, strainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []cultivation.WeeklyTarget
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, *t)
	}
	return targets, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func upsertTarget(ctx context.Context, ex execer, t cultivation.WeeklyTarget) error {
	query := `
		INSERT INTO weekly_targets (
			strain_id, phase, week_number,
			temp_min, temp_max, rh_min, rh_max, ppfd_min, ppfd_max,
			ph_min, ph_max, ec_min, ec_max, photoperiod, notes
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (strain_id, phase, week_number) DO UPDATE
		SET temp_min = EXCLUDED.temp_min, temp_max = EXCLUDED.temp_max,
		    rh_min = EXCLUDED.rh_min, rh_max = EXCLUDED.rh_max,
		    ppfd_min = EXCLUDED.ppfd_min, ppfd_max = EXCLUDED.ppfd_max,
		    ph_min = EXCLUDED.ph_min, ph_max = EXCLUDED.ph_max,
		    ec_min = EXCLUDED.ec_min, ec_max = EXCLUDED.ec_max,
		    photoperiod = EXCLUDED.photoperiod,
		    notes = EXCLUDED.notes
	`
	_, err := ex.ExecContext(ctx, query,
		t.StrainID, t.Phase, t.Week,
		t.Temp.Min, t.Temp.Max,
		t.RH.Min, t.RH.Max,
		t.PPFD.Min, t.PPFD.Max,
		t.PH.Min, t.PH.Max,
		t.EC.Min, t.EC.Max,
		t.Photoperiod,
		t.Notes,
	)
	return err
}

// UpsertWeeklyTarget stores a target row after checking its week against the
// strain's declared duration
func (db *DB) UpsertWeeklyTarget(ctx context.Context, strain cultivation.Strain, t cultivation.WeeklyTarget) error {
	if err := t.ValidateWeek(strain); err != nil {
		return err
	}
	t.StrainID = strain.ID
	if err := upsertTarget(ctx, db, t); err != nil {
		return fmt.Errorf("failed to upsert weekly target: %w", err)
	}
	return nil
}

// DuplicateStrain copies a strain and all of its weekly targets in one
// transaction and returns the new strain
func (db *DB) DuplicateStrain(ctx context.Context, strainID int64, newName string) (*cultivation.Strain, error) {
	src, err := db.GetStrain(ctx, strainID)
	if err != nil {
		return nil, fmt.Errorf("failed to get strain: %w", err)
	}
	if src == nil {
		return nil, fmt.Errorf("strain %d not found", strainID)
	}

	targets, err := db.ListWeeklyTargets(ctx, strainID)
	if err != nil {
		return nil, fmt.Errorf("failed to list weekly targets: %w", err)
	}

	dup, copies := cultivation.DuplicateStrain(*src, targets, newName)
	if err := dup.Validate(); err != nil {
		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := tx.QueryRowContext(ctx,
		`INSERT INTO strains (name, vega_weeks, flora_weeks) VALUES ($1, $2, $3) RETURNING id`,
		dup.Name, dup.VegaWeeks, dup.FloraWeeks,
	).Scan(&dup.ID); err != nil {
		return nil, fmt.Errorf("failed to insert strain: %w", err)
	}

	for _, t := range copies {
		t.StrainID = dup.ID
		if err := upsertTarget(ctx, tx, t); err != nil {
			return nil, fmt.Errorf("failed to copy %s week %d: %w", t.Phase, t.Week, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	db.logger.Info("strain duplicated",
		zap.Int64("source_id", strainID),
		zap.Int64("strain_id", dup.ID),
		zap.Int("targets", len(copies)))
	return &dup, nil
}
