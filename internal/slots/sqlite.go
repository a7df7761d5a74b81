package slots

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/slotpaste/agent/internal/keys"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLite persists slots in a single upsert-only table keyed by slot label.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (or creates) the database at path and applies migrations.
func OpenSQLite(path string) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetMaxOpenConns(1) // sqlite
	db.SetConnMaxLifetime(0)

	if err := migrateUp(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate db: %w", err)
	}

	return &SQLite{db: db, path: path}, nil
}

func migrateUp(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return err
	}
	// m.Close is not called: the sqlite3 driver would close db with it.
	defer src.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (s *SQLite) Name() string { return "sqlite" }

// Path returns the database file location.
func (s *SQLite) Path() string { return s.path }

// LoadAll returns every persisted slot. Rows with unknown labels are skipped.
func (s *SQLite) LoadAll(ctx context.Context) (map[keys.SlotId]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT slot_key, content FROM slots`)
	if err != nil {
		return nil, fmt.Errorf("query slots: %w", err)
	}
	defer rows.Close()

	out := make(map[keys.SlotId]string)
	for rows.Next() {
		var label, content string
		if err := rows.Scan(&label, &content); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slot, ok := keys.SlotFromLabel(label)
		if !ok {
			log.Debug("skipping unknown slot row", "slotKey", label)
			continue
		}
		out[slot] = content
	}
	return out, rows.Err()
}

// Upsert writes content for slot; updated_at is stored as unix seconds.
func (s *SQLite) Upsert(ctx context.Context, slot keys.SlotId, content string, updatedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO slots(slot_key, content, updated_at)
	VALUES (?, ?, ?)
	ON CONFLICT(slot_key) DO UPDATE SET
	 content=excluded.content,
	 updated_at=excluded.updated_at;
	`, slot.Label(), content, updatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert slot %s: %w", slot.Label(), err)
	}
	return nil
}

var _ Timestamped = (*SQLite)(nil)

// UpdatedAt returns the last write time of slot, or the zero time if unset.
func (s *SQLite) UpdatedAt(ctx context.Context, slot keys.SlotId) (time.Time, error) {
	var secs int64
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM slots WHERE slot_key = ?`, slot.Label()).Scan(&secs)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(secs, 0), nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
