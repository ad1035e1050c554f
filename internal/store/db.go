// Package store persists messages and conversation summaries in SQLite or
// Postgres and exposes an in-process change feed over message inserts.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // Postgres driver
	_ "modernc.org/sqlite" // Pure-Go SQLite driver

	"github.com/expansionAgency/whatshub/internal/logging"
)

// timeLayout is a fixed-width UTC format so stored timestamps sort
// lexicographically across both drivers.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

// DB wraps a database connection with migration support and a change feed.
type DB struct {
	sqlx   *sqlx.DB
	driver string
	log    *logging.Logger
	feed   *Feed
}

// Open connects to the configured database and runs migrations. For the
// sqlite driver, dsn is a file path (":memory:" for tests); for postgres
// it is a connection URL.
func Open(driver, dsn string, log *logging.Logger) (*DB, error) {
	switch driver {
	case "sqlite":
		if dsn == "" {
			return nil, fmt.Errorf("sqlite: empty database path")
		}
		if dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0o700); err != nil {
				return nil, fmt.Errorf("creating db directory: %w", err)
			}
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	conn, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", driver, err)
	}

	if driver == "sqlite" {
		// WAL mode for better concurrent read performance
		if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("setting WAL mode: %w", err)
		}
		if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
			conn.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	db := &DB{
		sqlx:   conn,
		driver: driver,
		log:    log.Sub("store"),
		feed:   newFeed(log),
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	db.log.Info().Str("driver", driver).Msg("database opened")
	return db, nil
}

// Close closes the database connection and the change feed.
func (db *DB) Close() error {
	db.log.Info().Msg("closing database")
	db.feed.close()
	return db.sqlx.Close()
}

// Feed returns the change feed fired on every message insert.
func (db *DB) Feed() *Feed {
	return db.feed
}

// rebind translates "?" placeholders into the driver's bindvar style.
func (db *DB) rebind(query string) string {
	return db.sqlx.Rebind(query)
}

// migrate runs all pending migrations.
func (db *DB) migrate() error {
	if _, err := db.sqlx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TEXT NOT NULL DEFAULT ''
		)
	`); err != nil {
		return fmt.Errorf("creating migrations table: %w", err)
	}

	for _, m := range migrations {
		applied, err := db.isMigrationApplied(m.Version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}

		db.log.Info().Int("version", m.Version).Str("name", m.Name).Msg("applying migration")

		tx, err := db.sqlx.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			tx.Rollback()
			return fmt.Errorf("migration %d (%s): %w", m.Version, m.Name, err)
		}

		if _, err := tx.Exec(
			db.rebind("INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)"),
			m.Version, formatTime(time.Now()),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

func (db *DB) isMigrationApplied(version int) (bool, error) {
	var count int
	err := db.sqlx.Get(&count,
		db.rebind("SELECT COUNT(*) FROM schema_migrations WHERE version = ?"), version)
	if err != nil {
		return false, fmt.Errorf("checking migration %d: %w", version, err)
	}
	return count > 0, nil
}
