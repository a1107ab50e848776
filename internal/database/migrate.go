package database

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// getSchemaVersion reads PRAGMA user_version from the database.
func getSchemaVersion(conn *sql.DB) (int, error) {
	var version int
	if err := conn.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return version, nil
}

// pending returns the migrations newer than version, oldest first.
func pending(version int) []Migration {
	var out []Migration
	for _, m := range migrations {
		if m.Version > version {
			out = append(out, m)
		}
	}
	return out
}

// migrate brings the history schema up to date.
func migrate(conn *sql.DB, logger *slog.Logger) error {
	current, err := getSchemaVersion(conn)
	if err != nil {
		return err
	}

	todo := pending(current)
	if len(todo) == 0 {
		logger.Debug("history schema up to date", "version", current)
		return nil
	}

	logger.Info("upgrading history schema", "from", current, "to", latestVersion(), "steps", len(todo))
	for _, m := range todo {
		if err := apply(conn, m); err != nil {
			return err
		}
		logger.Info("history migration applied", "version", m.Version, "description", m.Description)
	}
	return nil
}

// apply runs one migration in a transaction, then stamps user_version.
// modernc/sqlite does not accept the stamp inside the transaction; the
// DDL uses IF NOT EXISTS so an unstamped migration can run again.
func apply(conn *sql.DB, m Migration) error {
	tx, err := conn.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", m.Version, err)
	}
	if err := m.Up(tx); err != nil {
		tx.Rollback()
		return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", m.Version, err)
	}

	if _, err := conn.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
		return fmt.Errorf("setting version %d: %w", m.Version, err)
	}
	return nil
}
