package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Backup errors.
var (
	ErrBackupCorrupted = errors.New("backup integrity check failed")
	ErrInvalidBackup   = errors.New("invalid backup path")
)

// BackupInfo describes one database snapshot written by Backup.
type BackupInfo struct {
	CreatedAt     time.Time
	Path          string
	Size          int64
	SchemaVersion int
}

// Backup writes a consistent snapshot of the database to dir and verifies it.
// The snapshot is named after the current schema version and time.
func (s *SQLiteStorage) Backup(ctx context.Context, dir string) (*BackupInfo, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if s.dbPath == ":memory:" {
		return nil, fmt.Errorf("%w: in-memory databases cannot be backed up", ErrInvalidBackup)
	}
	if dir == "" {
		dir = filepath.Join(filepath.Dir(s.dbPath), "backups")
	}

	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve backup directory: %w", err)
	}
	if err := os.MkdirAll(absDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	dest := filepath.Join(absDir, fmt.Sprintf("tracker-v%d-%s.db", version, now.Format("20060102-150405")))
	if strings.ContainsAny(dest, `'";`) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidBackup, dest)
	}

	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return nil, fmt.Errorf("failed to checkpoint WAL: %w", err)
	}

	// #nosec G201 - dest is built from a cleaned absolute path without quote characters
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("VACUUM INTO '%s'", dest)); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}

	if err := verifyIntegrity(dest); err != nil {
		_ = os.Remove(dest)
		return nil, err
	}

	stat, err := os.Stat(dest)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	slog.Info("Database backup written", "path", dest, "schema_version", version, "size", stat.Size())

	return &BackupInfo{
		Path:          dest,
		CreatedAt:     now,
		Size:          stat.Size(),
		SchemaVersion: version,
	}, nil
}

func verifyIntegrity(path string) error {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			slog.Error("failed to close backup database", "error", err)
		}
	}()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("failed to check backup integrity: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("%w: %s", ErrBackupCorrupted, result)
	}
	return nil
}
