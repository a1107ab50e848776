package database

import (
	"database/sql"
)

// InsertReport records a generated report file.
func (db *DB) InsertReport(rep Report) (int64, error) {
	result, err := db.builder().Insert("reports").
		Columns("run_id", "path", "report_date", "post_count", "category_count").
		Values(rep.RunID, rep.Path, rep.ReportDate, rep.PostCount, rep.CategoryCount).
		Exec()
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// ListReports returns generated reports, newest first. limit <= 0 returns
// all.
func (db *DB) ListReports(limit int) ([]Report, error) {
	q := db.builder().
		Select("id", "run_id", "path", "report_date", "post_count", "category_count", "generated_at").
		From("reports").
		OrderBy("id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	rows, err := q.Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []Report
	for rows.Next() {
		var r Report
		if err := rows.Scan(&r.ID, &r.RunID, &r.Path, &r.ReportDate, &r.PostCount,
			&r.CategoryCount, &r.GeneratedAt); err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// GetStats returns aggregate history statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{PerCategory: map[string]int{}}

	counts := []struct {
		table string
		dest  *int
	}{
		{"runs", &s.Runs},
		{"run_posts", &s.Posts},
		{"reports", &s.Reports},
	}
	for _, c := range counts {
		if err := db.builder().Select("COUNT(*)").From(c.table).QueryRow().Scan(c.dest); err != nil {
			return nil, err
		}
	}

	var lastRun, lastReport sql.NullString
	if err := db.builder().Select("MAX(collected_at)").From("runs").QueryRow().Scan(&lastRun); err != nil {
		return nil, err
	}
	if err := db.builder().Select("MAX(report_date)").From("reports").QueryRow().Scan(&lastReport); err != nil {
		return nil, err
	}
	if lastRun.Valid {
		s.LastRunAt = &lastRun.String
	}
	if lastReport.Valid {
		s.LastReport = &lastReport.String
	}

	rows, err := db.builder().
		Select("COALESCE(category, '')", "COUNT(*)").
		From("run_posts").
		GroupBy("category").
		Query()
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var n int
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, err
		}
		s.PerCategory[cat] = n
	}
	return s, rows.Err()
}
