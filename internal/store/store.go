// Package store persists a build manifest: one row per model per
// build, recording what was compiled and the checksum of the emitted
// descriptor. The manifest is optional; builds work without it.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for build manifests.
// Uses SQLite with WAL mode.
type Store struct {
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path and applies
// pragmas and the schema. Idempotent.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY under concurrent use.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// BuildRecord is one model's row in the manifest.
type BuildRecord struct {
	BuildID        string    `json:"build_id"`
	Repository     string    `json:"repository"`
	Model          string    `json:"model"`
	Engine         string    `json:"engine"`
	ConfigChecksum string    `json:"config_checksum"`
	BuiltAt        time.Time `json:"built_at"`
}

// RecordBuild inserts one manifest row. Duplicate (build_id, model)
// pairs are silently ignored so re-recording a build is idempotent.
func (s *Store) RecordBuild(ctx context.Context, rec BuildRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO builds
		(build_id, repository, model, engine, config_checksum, built_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(build_id, model) DO NOTHING
	`,
		rec.BuildID,
		rec.Repository,
		rec.Model,
		rec.Engine,
		rec.ConfigChecksum,
		rec.BuiltAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record build: %w", err)
	}
	return nil
}

// ListBuilds returns manifest rows for a repository, newest first with
// model name as a deterministic tiebreaker.
func (s *Store) ListBuilds(ctx context.Context, repository string) ([]BuildRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT build_id, repository, model, engine, config_checksum, built_at
		FROM builds
		WHERE repository = ?
		ORDER BY built_at DESC, model ASC
	`, repository)
	if err != nil {
		return nil, fmt.Errorf("list builds: %w", err)
	}
	defer rows.Close()

	var records []BuildRecord
	for rows.Next() {
		var rec BuildRecord
		var builtAt string
		if err := rows.Scan(&rec.BuildID, &rec.Repository, &rec.Model, &rec.Engine, &rec.ConfigChecksum, &builtAt); err != nil {
			return nil, fmt.Errorf("list builds: %w", err)
		}
		t, err := time.Parse(time.RFC3339Nano, builtAt)
		if err != nil {
			return nil, fmt.Errorf("list builds: parsing built_at %q: %w", builtAt, err)
		}
		rec.BuiltAt = t
		records = append(records, rec)
	}
	return records, rows.Err()
}
