// Package history persists the lifecycle run log in SQLite. Rows are
// append-only; retention trims the oldest rows past the configured cap.
package history

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"recipe-lab/models"
)

const DefaultDBName = "recipe-lab.db"

const schema = `
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA foreign_keys = ON;
PRAGMA temp_store = MEMORY;

CREATE TABLE IF NOT EXISTS runs (
    run_id TEXT PRIMARY KEY,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    timestamp TEXT NOT NULL,
    action TEXT NOT NULL,
    dataset_dir TEXT,
    model_path TEXT,
    success BOOLEAN NOT NULL,
    rolled_back BOOLEAN DEFAULT 0,
    reloaded BOOLEAN DEFAULT 0,
    stages TEXT,
    thresholds TEXT
);

CREATE INDEX IF NOT EXISTS idx_runs_action ON runs(action);
`

// History wraps the run-log database.
type History struct {
	*sql.DB
	path    string
	maxRuns int
}

// openDB opens a SQLite database at the given path
func openDB(dbPath string) (*sql.DB, error) {
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return sqlDB, nil
}

// Open opens or creates the run history database. maxRuns bounds retention;
// values below 1 fall back to the config default.
func Open(dbPath string, maxRuns int) (*History, error) {
	if dbPath == "" {
		dbPath = DefaultDBName
	}
	if maxRuns < 1 {
		maxRuns = models.DefaultConfig().HistoryMaxRuns
	}

	sqlDB, err := openDB(dbPath)
	if err != nil {
		return nil, err
	}

	h := &History{DB: sqlDB, path: dbPath, maxRuns: maxRuns}
	if err := h.ensureSchemaExists(); err != nil {
		_ = h.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return h, nil
}

// ensureSchemaExists checks if the schema exists and initializes it if not
func (h *History) ensureSchemaExists() error {
	var tableName string
	err := h.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='runs'").Scan(&tableName)
	if err == sql.ErrNoRows {
		return h.InitSchema()
	}
	if err != nil {
		return fmt.Errorf("failed to check schema: %w", err)
	}
	return nil
}

// Path returns the database file path
func (h *History) Path() string {
	return h.path
}

// InitSchema initializes the database schema
func (h *History) InitSchema() error {
	_, err := h.Exec(schema)
	return err
}

// Append records one run and trims rows beyond the retention cap, oldest
// first.
func (h *History) Append(entry models.RunEntry) error {
	stages, err := json.Marshal(entry.Stages)
	if err != nil {
		return fmt.Errorf("failed to encode stages: %w", err)
	}
	var thresholds []byte
	if entry.Thresholds != nil {
		thresholds, err = json.Marshal(entry.Thresholds)
		if err != nil {
			return fmt.Errorf("failed to encode thresholds: %w", err)
		}
	}

	_, err = h.Exec(`
		INSERT INTO runs (run_id, timestamp, action, dataset_dir, model_path, success, rolled_back, reloaded, stages, thresholds)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.ID, entry.Timestamp, entry.Action, entry.DatasetDir, entry.ModelPath,
		entry.Success, entry.RolledBack, entry.Reloaded, string(stages), string(thresholds))
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	_, err = h.Exec(`
		DELETE FROM runs WHERE run_id NOT IN (
			SELECT run_id FROM runs ORDER BY rowid DESC LIMIT ?
		)
	`, h.maxRuns)
	if err != nil {
		return fmt.Errorf("failed to trim run history: %w", err)
	}
	return nil
}

// Recent returns the most recent runs, newest first.
func (h *History) Recent(limit int) ([]models.RunEntry, error) {
	if limit < 1 || limit > h.maxRuns {
		limit = h.maxRuns
	}

	rows, err := h.Query(`
		SELECT run_id, timestamp, action, dataset_dir, model_path, success, rolled_back, reloaded, stages, thresholds
		FROM runs ORDER BY rowid DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var entries []models.RunEntry
	for rows.Next() {
		var entry models.RunEntry
		var stages, thresholds sql.NullString
		if err := rows.Scan(&entry.ID, &entry.Timestamp, &entry.Action, &entry.DatasetDir,
			&entry.ModelPath, &entry.Success, &entry.RolledBack, &entry.Reloaded, &stages, &thresholds); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if stages.Valid && stages.String != "" {
			if err := json.Unmarshal([]byte(stages.String), &entry.Stages); err != nil {
				return nil, fmt.Errorf("failed to decode stages for run %s: %w", entry.ID, err)
			}
		}
		if thresholds.Valid && thresholds.String != "" {
			var report models.ThresholdReport
			if err := json.Unmarshal([]byte(thresholds.String), &report); err != nil {
				return nil, fmt.Errorf("failed to decode thresholds for run %s: %w", entry.ID, err)
			}
			entry.Thresholds = &report
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
