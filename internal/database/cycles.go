package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
)

const cycleColumns = `
	id, tent_id, start_phase, start_date, cloning_start_date, vega_start_date,
	flora_start_date, drying_start_date, cloning_tent_id, clones_produced, status
`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func scanCycle(row rowScanner) (*cultivation.Cycle, error) {
	var c cultivation.Cycle
	err := row.Scan(
		&c.ID,
		&c.TentID,
		&c.StartPhase,
		&c.StartDate,
		&c.CloningStartDate,
		&c.VegaStartDate,
		&c.FloraStartDate,
		&c.DryingStartDate,
		&c.CloningTentID,
		&c.ClonesProduced,
		&c.Status,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetActiveCycle returns the active cycle of a tent, or nil if there is none
func (db *DB) GetActiveCycle(ctx context.Context, tentID int64) (*cultivation.Cycle, error) {
	return activeCycle(ctx, db, tentID)
}

func activeCycle(ctx context.Context, q querier, tentID int64) (*cultivation.Cycle, error) {
	query := `SELECT ` + cycleColumns + `
		FROM cycles
		WHERE tent_id = $1 AND status = 'ACTIVE'
	`

	c, err := scanCycle(q.QueryRowContext(ctx, query, tentID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if c.StrainIDs, err = cycleStrains(ctx, q, c.ID); err != nil {
		return nil, err
	}
	return c, nil
}

func cycleStrains(ctx context.Context, q querier, cycleID int64) ([]int64, error) {
	rows, err := q.QueryContext(ctx, `SELECT strain_id FROM cycle_strains WHERE cycle_id = $1 ORDER BY strain_id`, cycleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertCycle inserts a cycle with its strains and fills its ID
func (db *DB) InsertCycle(ctx context.Context, c *cultivation.Cycle) error {
	if err := c.Validate(); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertCycle(ctx, tx, c); err != nil {
		return err
	}
	return tx.Commit()
}

// ReplaceCycle stores a finished cycle and inserts its successor in one
// transaction, so the tent is never left without an active cycle
func (db *DB) ReplaceCycle(ctx context.Context, finished cultivation.Cycle, next *cultivation.Cycle) error {
	if err := finished.Validate(); err != nil {
		return err
	}
	if err := next.Validate(); err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := updateCycle(ctx, tx, finished); err != nil {
		return err
	}
	if err := insertCycle(ctx, tx, next); err != nil {
		return err
	}
	return tx.Commit()
}

func insertCycle(ctx context.Context, tx *sql.Tx, c *cultivation.Cycle) error {
	query := `
		INSERT INTO cycles (
			tent_id, start_phase, start_date, cloning_start_date, vega_start_date,
			flora_start_date, drying_start_date, cloning_tent_id, clones_produced, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	if err := tx.QueryRowContext(ctx, query,
		c.TentID,
		c.StartPhase,
		c.StartDate,
		c.CloningStartDate,
		c.VegaStartDate,
		c.FloraStartDate,
		c.DryingStartDate,
		c.CloningTentID,
		c.ClonesProduced,
		c.Status,
	).Scan(&c.ID); err != nil {
		return fmt.Errorf("failed to insert cycle: %w", err)
	}

	for _, strainID := range c.StrainIDs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cycle_strains (cycle_id, strain_id) VALUES ($1, $2)`,
			c.ID, strainID,
		); err != nil {
			return fmt.Errorf("failed to link strain %d: %w", strainID, err)
		}
	}
	return nil
}

// UpdateCycle stores the phase dates, cloning details and status of a cycle
func (db *DB) UpdateCycle(ctx context.Context, c cultivation.Cycle) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return updateCycle(ctx, db, c)
}

func updateCycle(ctx context.Context, ex execer, c cultivation.Cycle) error {
	query := `
		UPDATE cycles
		SET cloning_start_date = $1,
		    vega_start_date = $2,
		    flora_start_date = $3,
		    drying_start_date = $4,
		    cloning_tent_id = $5,
		    clones_produced = $6,
		    status = $7,
		    updated_at = CURRENT_TIMESTAMP
		WHERE id = $8
	`
	res, err := ex.ExecContext(ctx, query,
		c.CloningStartDate,
		c.VegaStartDate,
		c.FloraStartDate,
		c.DryingStartDate,
		c.CloningTentID,
		c.ClonesProduced,
		c.Status,
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update cycle: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("cycle %d not found", c.ID)
	}
	return nil
}

// GetStrains retrieves the strains with the given IDs
func (db *DB) GetStrains(ctx context.Context, ids []int64) ([]cultivation.Strain, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, vega_weeks, flora_weeks
		FROM strains
		WHERE id = ANY($1)
		ORDER BY id
	`
	rows, err := db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var strains []cultivation.Strain
	for rows.Next() {
		var s cultivation.Strain
		if err := rows.Scan(&s.ID, &s.Name, &s.VegaWeeks, &s.FloraWeeks); err != nil {
			return nil, err
		}
		strains = append(strains, s)
	}
	return strains, rows.Err()
}
