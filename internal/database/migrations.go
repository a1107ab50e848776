package database

import "database/sql"

// Migration represents a single schema migration step.
type Migration struct {
	Version     int
	Description string
	Up          func(tx *sql.Tx) error
}

// migrations is the ordered list of all schema migrations.
// Append new migrations to the end with incrementing Version numbers.
var migrations = []Migration{
	{
		Version:     1,
		Description: "run history",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT UNIQUE NOT NULL,
    reference_date TEXT,
    collected_at TEXT NOT NULL,
    total_count INTEGER DEFAULT 0,
    source_stats TEXT,
    artifact_path TEXT,
    recorded_at TEXT DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_posts (
    run_id TEXT NOT NULL REFERENCES runs(run_id),
    url TEXT NOT NULL,
    title TEXT NOT NULL,
    data_source TEXT,
    published TEXT,
    category TEXT,
    PRIMARY KEY (run_id, url)
);

CREATE INDEX IF NOT EXISTS idx_runs_collected ON runs(collected_at);
CREATE INDEX IF NOT EXISTS idx_run_posts_category ON run_posts(category);
`)
			return err
		},
	},
	{
		Version:     2,
		Description: "generated reports",
		Up: func(tx *sql.Tx) error {
			_, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS reports (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT REFERENCES runs(run_id),
    path TEXT NOT NULL,
    report_date TEXT NOT NULL,
    post_count INTEGER DEFAULT 0,
    category_count INTEGER DEFAULT 0,
    generated_at TEXT DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_reports_date ON reports(report_date);
`)
			return err
		},
	},
}

// latestVersion returns the highest migration version number.
func latestVersion() int {
	if len(migrations) == 0 {
		return 0
	}
	return migrations[len(migrations)-1].Version
}
