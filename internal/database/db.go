package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/jpedrorock/cultivo-standalone-sub001/internal/cultivation"
	"github.com/jpedrorock/cultivo-standalone-sub001/internal/phase"
)

// DB wraps the database connection
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// Connect establishes a connection to the database
func Connect(connectionString string, logger *zap.Logger) (*DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return New(db, logger), nil
}

// New wraps an open *sql.DB
func New(db *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

// RunMigrations executes all SQL migration files in order
func (db *DB) RunMigrations(migrationsDir string) error {
	files, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var sqlFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), ".sql") {
			sqlFiles = append(sqlFiles, file.Name())
		}
	}
	sort.Strings(sqlFiles)

	for _, filename := range sqlFiles {
		db.logger.Info("running migration", zap.String("file", filename))

		content, err := os.ReadFile(filepath.Join(migrationsDir, filename))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", filename, err)
		}

		if _, err := db.Exec(string(content)); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", filename, err)
		}
	}

	db.logger.Info("all migrations completed", zap.Int("files", len(sqlFiles)))
	return nil
}

// GetTent retrieves a tent by ID
func (db *DB) GetTent(ctx context.Context, id int64) (*cultivation.Tent, error) {
	query := `
		SELECT id, name, category, width, depth, height
		FROM tents
		WHERE id = $1
	`

	var t cultivation.Tent
	err := db.QueryRowContext(ctx, query, id).Scan(
		&t.ID,
		&t.Name,
		&t.Category,
		&t.Width,
		&t.Depth,
		&t.Height,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// InsertTent inserts a tent and fills its ID
func (db *DB) InsertTent(ctx context.Context, t *cultivation.Tent) error {
	query := `
		INSERT INTO tents (name, category, width, depth, height)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`
	return db.QueryRowContext(ctx, query, t.Name, t.Category, t.Width, t.Depth, t.Height).Scan(&t.ID)
}

// CountPlants returns the number of plants assigned to a tent
func (db *DB) CountPlants(ctx context.Context, tentID int64) (int, error) {
	return countPlants(ctx, db, tentID)
}

func countPlants(ctx context.Context, q querier, tentID int64) (int, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM plants WHERE tent_id = $1`, tentID).Scan(&n)
	return n, err
}

// DeleteTent deletes a tent. It is refused with a *DeletionBlockedError while
// the tent has an active cycle or assigned plants. The tent row stays locked
// from the check to the delete, so a cycle or plant added concurrently waits
// on its foreign key until the deletion is decided.
func (db *DB) DeleteTent(ctx context.Context, tentID int64) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var t cultivation.Tent
	err = tx.QueryRowContext(ctx, `
		SELECT id, name, category, width, depth, height
		FROM tents
		WHERE id = $1
		FOR UPDATE
	`, tentID).Scan(&t.ID, &t.Name, &t.Category, &t.Width, &t.Depth, &t.Height)
	if err == sql.ErrNoRows {
		return fmt.Errorf("tent %d not found", tentID)
	}
	if err != nil {
		return fmt.Errorf("failed to get tent: %w", err)
	}

	active, err := activeCycle(ctx, tx, tentID)
	if err != nil {
		return fmt.Errorf("failed to get active cycle: %w", err)
	}
	plants, err := countPlants(ctx, tx, tentID)
	if err != nil {
		return fmt.Errorf("failed to count plants: %w", err)
	}

	if err := phase.CheckTentDeletion(t, active, plants); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM tents WHERE id = $1`, tentID); err != nil {
		return fmt.Errorf("failed to delete tent: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit tent deletion: %w", err)
	}
	return nil
}

// PendingTasks counts the incomplete task instances of the week starting at
// weekStart
func (db *DB) PendingTasks(ctx context.Context, weekStart time.Time) (int, error) {
	query := `
		SELECT COUNT(*)
		FROM weekly_tasks
		WHERE week_start = $1::date AND done = false
	`

	var n int
	if err := db.QueryRowContext(ctx, query, weekStart).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count pending tasks: %w", err)
	}
	return n, nil
}
