// Package vault keeps backup generations of persisted artifacts: raw prior
// bytes on disk, one file per generation, with a SQLite catalog for
// generation allocation and newest-first scans.
package vault

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

// ErrNoValidBackup means no generation of the artifact passed verification.
var ErrNoValidBackup = errors.New("no valid backup generation")

const catalogFile = "backups.db"

// Entry is one catalog row: a single backup generation of one artifact.
type Entry struct {
	Artifact   string    `json:"artifact"`
	Generation int64     `json:"generation"`
	Digest     string    `json:"digest"`
	Size       int64     `json:"size"`
	CreatedAt  time.Time `json:"created_at"`
}

// Vault owns the backup files and their catalog for one data directory.
type Vault struct {
	dir    string
	db     *sql.DB
	digest func([]byte) string
}

// Open opens or creates the vault catalog under dir. digest computes the
// content digest recorded with each generation.
func Open(dir string, digest func([]byte) string) (*Vault, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create vault dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dir, catalogFile)+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)")
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}

	v := &Vault{dir: dir, db: db, digest: digest}
	if err := v.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog: %w", err)
	}
	return v, nil
}

func (v *Vault) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS backups (
		artifact   TEXT NOT NULL,
		generation INTEGER NOT NULL,
		digest     TEXT NOT NULL,
		size       INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (artifact, generation)
	);
	CREATE INDEX IF NOT EXISTS idx_backups_artifact ON backups(artifact, generation DESC);
	`
	_, err := v.db.Exec(schema)
	return err
}

// Snapshot stores data as a new generation of the artifact, strictly greater
// than any previous generation, and returns the generation number. The
// backup file is flushed to disk before the catalog row becomes visible.
func (v *Vault) Snapshot(ctx context.Context, artifact string, data []byte) (int64, error) {
	tx, err := v.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var gen int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(generation), 0) + 1 FROM backups WHERE artifact = ?`,
		artifact).Scan(&gen)
	if err != nil {
		return 0, fmt.Errorf("allocate generation: %w", err)
	}

	if err := writeDurable(v.backupPath(artifact, gen), data); err != nil {
		return 0, fmt.Errorf("write backup %s.%d: %w", artifact, gen, err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO backups (artifact, generation, digest, size, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		artifact, gen, v.digest(data), int64(len(data)),
		time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return 0, fmt.Errorf("record backup: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return gen, nil
}

// LatestValid scans generations newest to oldest and returns the bytes and
// generation of the first one whose file still matches its recorded digest.
// Returns ErrNoValidBackup if nothing survives.
func (v *Vault) LatestValid(ctx context.Context, artifact string, verify func(data []byte, digest string) bool) ([]byte, int64, error) {
	rows, err := v.db.QueryContext(ctx,
		`SELECT generation, digest FROM backups WHERE artifact = ? ORDER BY generation DESC`,
		artifact)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		var gen int64
		var digest string
		if err := rows.Scan(&gen, &digest); err != nil {
			return nil, 0, err
		}
		data, err := os.ReadFile(v.backupPath(artifact, gen))
		if err != nil {
			continue // missing or unreadable generation, keep scanning
		}
		if verify(data, digest) {
			return data, gen, nil
		}
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return nil, 0, ErrNoValidBackup
}

// List returns the catalog rows for an artifact, newest first. An empty
// artifact lists everything.
func (v *Vault) List(ctx context.Context, artifact string) ([]Entry, error) {
	query := `SELECT artifact, generation, digest, size, created_at FROM backups`
	var args []interface{}
	if artifact != "" {
		query += ` WHERE artifact = ?`
		args = append(args, artifact)
	}
	query += ` ORDER BY artifact, generation DESC`

	rows, err := v.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt string
		if err := rows.Scan(&e.Artifact, &e.Generation, &e.Digest, &e.Size, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the catalog.
func (v *Vault) Close() error {
	return v.db.Close()
}

func (v *Vault) backupPath(artifact string, gen int64) string {
	return filepath.Join(v.dir, fmt.Sprintf("%s.backup.%d", artifact, gen))
}

// writeDurable writes data and syncs it, closing the handle on every path.
func writeDurable(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if _, err = f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
