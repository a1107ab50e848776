package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var runColumns = []string{
	"id", "run_id", "reference_date", "collected_at", "total_count",
	"source_stats", "artifact_path", "recorded_at",
}

// RecordRun stores a run and its posts in one transaction. Posts repeating
// a URL within the run are stored once.
func (db *DB) RecordRun(run Run, posts []RunPost) (int64, error) {
	stats, err := json.Marshal(run.SourceStats)
	if err != nil {
		return 0, fmt.Errorf("encoding source stats: %w", err)
	}

	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin run insert: %w", err)
	}
	defer tx.Rollback()

	result, err := sq.Insert("runs").
		Columns("run_id", "reference_date", "collected_at", "total_count", "source_stats", "artifact_path").
		Values(run.RunID, run.ReferenceDate, run.CollectedAt, run.TotalCount, string(stats), run.ArtifactPath).
		RunWith(tx).
		Exec()
	if err != nil {
		return 0, fmt.Errorf("inserting run %s: %w", run.RunID, err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, p := range posts {
		_, err := sq.Insert("run_posts").
			Options("OR IGNORE").
			Columns("run_id", "url", "title", "data_source", "published", "category").
			Values(run.RunID, p.URL, p.Title, p.Source, p.Published, p.Category).
			RunWith(tx).
			Exec()
		if err != nil {
			return 0, fmt.Errorf("inserting post %s: %w", p.URL, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit run %s: %w", run.RunID, err)
	}
	return id, nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (db *DB) ListRuns(limit int) ([]Run, error) {
	q := db.builder().Select(runColumns...).From("runs").OrderBy("collected_at DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	rows, err := q.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// GetRun returns a run by its run id, or nil if it does not exist.
func (db *DB) GetRun(runID string) (*Run, error) {
	row := db.builder().Select(runColumns...).From("runs").Where(sq.Eq{"run_id": runID}).QueryRow()
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, err
}

// GetRunPosts returns the posts of a run in insertion order, optionally
// limited to one category.
func (db *DB) GetRunPosts(runID, category string) ([]RunPost, error) {
	q := db.builder().
		Select("run_id", "url", "title", "data_source", "published", "category").
		From("run_posts").
		Where(sq.Eq{"run_id": runID}).
		OrderBy("rowid")
	if category != "" {
		q = q.Where(sq.Eq{"category": category})
	}
	rows, err := q.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []RunPost
	for rows.Next() {
		var p RunPost
		var source, published, category sql.NullString
		if err := rows.Scan(&p.RunID, &p.URL, &p.Title, &source, &published, &category); err != nil {
			return nil, err
		}
		p.Source, p.Published, p.Category = source.String, published.String, category.String
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var stats sql.NullString
	if err := row.Scan(&r.ID, &r.RunID, &r.ReferenceDate, &r.CollectedAt, &r.TotalCount,
		&stats, &r.ArtifactPath, &r.RecordedAt); err != nil {
		return nil, err
	}
	r.SourceStats = map[string]int{}
	if stats.Valid && stats.String != "" {
		if err := json.Unmarshal([]byte(stats.String), &r.SourceStats); err != nil {
			return nil, fmt.Errorf("decoding source stats of run %s: %w", r.RunID, err)
		}
	}
	return &r, nil
}
