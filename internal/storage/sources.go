package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Source types.
const (
	SourceLocal = "local"
	SourceGit   = "git"
)

// Source represents a note source, either a local path or a Git URL.
type Source struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	LastScanned *time.Time `json:"last_scanned,omitempty"`
}

type sourceRow struct {
	ID          int64         `db:"id"`
	Path        string        `db:"path"`
	Type        string        `db:"type"`
	LastScanned sql.NullInt64 `db:"last_scanned"`
}

func (r sourceRow) source() Source {
	s := Source{ID: r.ID, Path: r.Path, Type: r.Type}
	if r.LastScanned.Valid {
		t := fromMillis(r.LastScanned.Int64)
		s.LastScanned = &t
	}
	return s
}

// InsertSource inserts a new source path into the database and returns its ID.
func (db *DB) InsertSource(ctx context.Context, path, sourceType string) (int64, error) {
	res, err := db.conn.ExecContext(ctx, `
		INSERT INTO sources (path, type)
		VALUES (?, ?)
	`, path, sourceType)
	if err != nil {
		return 0, fmt.Errorf("failed to insert source %s: %w", path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for source %s: %w", path, err)
	}
	return id, nil
}

// FindSourceByPath retrieves a source from the database by its path.
func (db *DB) FindSourceByPath(ctx context.Context, path string) (*Source, error) {
	var r sourceRow
	err := db.conn.GetContext(ctx, &r, `
		SELECT id, path, type, last_scanned
		FROM sources WHERE path = ?
	`, path)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Source not found
		}
		return nil, fmt.Errorf("failed to find source by path %s: %w", path, err)
	}
	s := r.source()
	return &s, nil
}

// GetAllSources retrieves all stored sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	var rows []sourceRow
	if err := db.conn.SelectContext(ctx, &rows, `
		SELECT id, path, type, last_scanned
		FROM sources ORDER BY id
	`); err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}

	sources := make([]Source, len(rows))
	for i, r := range rows {
		sources[i] = r.source()
	}
	return sources, nil
}

// UpdateSourceLastScanned updates the last_scanned timestamp for a source.
func (db *DB) UpdateSourceLastScanned(ctx context.Context, sourceID int64, now time.Time) error {
	_, err := db.conn.ExecContext(ctx, `
		UPDATE sources
		SET last_scanned = ?
		WHERE id = ?
	`, now.UnixMilli(), sourceID)
	if err != nil {
		return fmt.Errorf("failed to update last scanned for source ID %d: %w", sourceID, err)
	}
	return nil
}

// DeleteSource removes a source and soft-deletes the items imported from it.
func (db *DB) DeleteSource(ctx context.Context, sourceID int64, now time.Time) error {
	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for source ID %d: %w", sourceID, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM sources WHERE id = ?`, sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete source ID %d: %w", sourceID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to delete source ID %d: %w", sourceID, ErrNotFound)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE items SET deleted_at = ?
		WHERE source_id = ? AND deleted_at IS NULL
	`, now.UnixMilli(), sourceID); err != nil {
		return fmt.Errorf("failed to delete items for source ID %d: %w", sourceID, err)
	}

	return tx.Commit()
}
