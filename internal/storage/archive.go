// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage archives completed diagnostic results locally.
//
// Results are medical data, so payloads are encrypted at rest; metadata
// (call id, test type, timestamp) stays queryable in the clear. The chat
// transcript itself is never persisted anywhere.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound indicates no archived result for the requested call id.
var ErrNotFound = errors.New("no archived result for call id")

// Record is one archived diagnostic result.
type Record struct {
	CallID    string
	TestType  string
	Data      []byte
	CreatedAt time.Time
}

// Archive is the SQLite-backed result store.
type Archive struct {
	db     *sql.DB
	sealer *sealer
}

// Open opens (or creates) the archive at path, deriving the payload key
// from passphrase. The KDF salt is created on first open and kept in the
// meta table.
func Open(path, passphrase string) (*Archive, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("create archive directory: %w", err)
	}

	dsn := path + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping archive: %w", err)
	}

	a := &Archive{db: db}
	if err := a.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize archive schema: %w", err)
	}

	salt, err := a.loadOrCreateSalt()
	if err != nil {
		db.Close()
		return nil, err
	}
	a.sealer, err = newSealer(passphrase, salt)
	if err != nil {
		db.Close()
		return nil, err
	}
	return a, nil
}

// Close releases the database handle.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS meta (
		key   TEXT PRIMARY KEY,
		value BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS results (
		call_id    TEXT PRIMARY KEY,
		test_type  TEXT NOT NULL,
		payload    BLOB NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_results_created ON results(created_at);
	`
	_, err := a.db.Exec(schema)
	return err
}

func (a *Archive) loadOrCreateSalt() ([]byte, error) {
	var salt []byte
	err := a.db.QueryRow(`SELECT value FROM meta WHERE key = 'kdf_salt'`).Scan(&salt)
	switch {
	case err == nil:
		return salt, nil
	case errors.Is(err, sql.ErrNoRows):
		salt, err = newSalt()
		if err != nil {
			return nil, err
		}
		if _, err := a.db.Exec(`INSERT INTO meta (key, value) VALUES ('kdf_salt', ?)`, salt); err != nil {
			return nil, fmt.Errorf("store kdf salt: %w", err)
		}
		return salt, nil
	default:
		return nil, fmt.Errorf("load kdf salt: %w", err)
	}
}

// SaveResult archives one completed result. A repeated call id replaces
// the earlier record: the backend reports one result per capture session.
func (a *Archive) SaveResult(ctx context.Context, callID, testType string, data []byte) error {
	if callID == "" {
		return errors.New("archive record needs a call id")
	}

	sealed, err := a.sealer.seal(data, callID)
	if err != nil {
		return fmt.Errorf("seal payload: %w", err)
	}

	_, err = a.db.ExecContext(ctx, `
		INSERT INTO results (call_id, test_type, payload, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(call_id) DO UPDATE SET
			test_type = excluded.test_type,
			payload = excluded.payload,
			created_at = excluded.created_at`,
		callID, testType, sealed, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("write archive record: %w", err)
	}
	return nil
}

// Result fetches and decrypts one archived result.
func (a *Archive) Result(ctx context.Context, callID string) (*Record, error) {
	var (
		rec     Record
		sealed  []byte
		created int64
	)
	err := a.db.QueryRowContext(ctx, `
		SELECT call_id, test_type, payload, created_at
		FROM results WHERE call_id = ?`, callID).
		Scan(&rec.CallID, &rec.TestType, &sealed, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read archive record: %w", err)
	}

	rec.Data, err = a.sealer.open(sealed, rec.CallID)
	if err != nil {
		return nil, err
	}
	rec.CreatedAt = time.Unix(created, 0)
	return &rec, nil
}

// List returns the newest archived results, payloads decrypted, most
// recent first.
func (a *Archive) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := a.db.QueryContext(ctx, `
		SELECT call_id, test_type, payload, created_at
		FROM results ORDER BY created_at DESC, call_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list archive records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec     Record
			sealed  []byte
			created int64
		)
		if err := rows.Scan(&rec.CallID, &rec.TestType, &sealed, &created); err != nil {
			return nil, err
		}
		rec.Data, err = a.sealer.open(sealed, rec.CallID)
		if err != nil {
			return nil, err
		}
		rec.CreatedAt = time.Unix(created, 0)
		out = append(out, rec)
	}
	return out, rows.Err()
}
