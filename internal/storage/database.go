package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/conorfennell/memoryflow/internal/domain"
	"github.com/conorfennell/memoryflow/internal/review"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sqlx.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite allows one writer; a single connection keeps transactions from hitting SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// itemRow is the column layout of the items table.
type itemRow struct {
	ID           string         `db:"id"`
	Title        string         `db:"title"`
	Body         string         `db:"body"`
	ImageURL     string         `db:"image_url"`
	Mask         []byte         `db:"mask"`
	ReviewStage  int            `db:"review_stage"`
	NextReviewAt int64          `db:"next_review_at"`
	CreatedAt    int64          `db:"created_at"`
	DeletedAt    sql.NullInt64  `db:"deleted_at"`
	SourceID     sql.NullInt64  `db:"source_id"`
	ContentHash  sql.NullString `db:"content_hash"`
}

const itemColumns = `id, title, body, image_url, mask, review_stage, next_review_at, created_at, deleted_at, source_id, content_hash`

func toRow(it domain.Item) itemRow {
	r := itemRow{
		ID:           it.ID,
		Title:        it.Title,
		Body:         it.Body,
		ImageURL:     it.ImageURL,
		Mask:         it.Mask,
		ReviewStage:  it.ReviewStage,
		NextReviewAt: it.NextReviewAt.UnixMilli(),
		CreatedAt:    it.CreatedAt.UnixMilli(),
		SourceID:     sql.NullInt64{Int64: it.SourceID, Valid: it.SourceID != 0},
		ContentHash:  sql.NullString{String: it.ContentHash, Valid: it.ContentHash != ""},
	}
	if it.DeletedAt != nil {
		r.DeletedAt = sql.NullInt64{Int64: it.DeletedAt.UnixMilli(), Valid: true}
	}
	return r
}

func (r itemRow) item() domain.Item {
	it := domain.Item{
		ID:           r.ID,
		Title:        r.Title,
		Body:         r.Body,
		ImageURL:     r.ImageURL,
		Mask:         r.Mask,
		ReviewStage:  r.ReviewStage,
		NextReviewAt: fromMillis(r.NextReviewAt),
		CreatedAt:    fromMillis(r.CreatedAt),
		SourceID:     r.SourceID.Int64,
		ContentHash:  r.ContentHash.String,
	}
	if r.DeletedAt.Valid {
		t := fromMillis(r.DeletedAt.Int64)
		it.DeletedAt = &t
	}
	return it
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

const upsertItem = `
	INSERT INTO items (` + itemColumns + `)
	VALUES (:id, :title, :body, :image_url, :mask, :review_stage, :next_review_at, :created_at, :deleted_at, :source_id, :content_hash)
	ON CONFLICT(id) DO UPDATE SET
		title = excluded.title,
		body = excluded.body,
		image_url = excluded.image_url,
		mask = excluded.mask,
		review_stage = excluded.review_stage,
		next_review_at = excluded.next_review_at,
		deleted_at = excluded.deleted_at,
		source_id = excluded.source_id,
		content_hash = excluded.content_hash
`

const insertLog = `INSERT INTO study_logs (item_id, reviewed_at) VALUES (?, ?)`

// SaveItem inserts the item or updates the stored copy. created_at is never rewritten.
func (db *DB) SaveItem(ctx context.Context, it domain.Item) error {
	if _, err := db.conn.NamedExecContext(ctx, upsertItem, toRow(it)); err != nil {
		return fmt.Errorf("failed to save item %s: %w", it.ID, err)
	}
	return nil
}

// LoadItems returns every item that has not been deleted.
func (db *DB) LoadItems(ctx context.Context) ([]domain.Item, error) {
	var rows []itemRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT `+itemColumns+`
		FROM items WHERE deleted_at IS NULL
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to load items: %w", err)
	}
	return toItems(rows), nil
}

// LoadCreationTimes returns the creation time of every item, deleted ones included.
func (db *DB) LoadCreationTimes(ctx context.Context) ([]time.Time, error) {
	var ms []int64
	if err := db.conn.SelectContext(ctx, &ms, `SELECT created_at FROM items ORDER BY created_at`); err != nil {
		return nil, fmt.Errorf("failed to load creation times: %w", err)
	}
	times := make([]time.Time, len(ms))
	for i, v := range ms {
		times[i] = fromMillis(v)
	}
	return times, nil
}

// FindItem retrieves an item by ID, including deleted ones.
func (db *DB) FindItem(ctx context.Context, id string) (*domain.Item, error) {
	var r itemRow
	err := db.conn.GetContext(ctx, &r, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Item not found
		}
		return nil, fmt.Errorf("failed to find item %s: %w", id, err)
	}
	it := r.item()
	return &it, nil
}

// FindItemByHash retrieves a live item imported from a source by its content hash.
func (db *DB) FindItemByHash(ctx context.Context, sourceID int64, hash string) (*domain.Item, error) {
	var r itemRow
	err := db.conn.GetContext(ctx, &r, `
		SELECT `+itemColumns+`
		FROM items WHERE source_id = ? AND content_hash = ? AND deleted_at IS NULL
	`, sourceID, hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find item by hash %s: %w", hash, err)
	}
	it := r.item()
	return &it, nil
}

// GetItemsBySourceID retrieves all live items imported from a source.
func (db *DB) GetItemsBySourceID(ctx context.Context, sourceID int64) ([]domain.Item, error) {
	var rows []itemRow
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT `+itemColumns+`
		FROM items WHERE source_id = ? AND deleted_at IS NULL
	`, sourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items for source ID %d: %w", sourceID, err)
	}
	return toItems(rows), nil
}

// DeleteItem soft-deletes an item. Its study logs are kept.
func (db *DB) DeleteItem(ctx context.Context, id string, now time.Time) error {
	res, err := db.conn.ExecContext(ctx, `
		UPDATE items SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`, now.UnixMilli(), id)
	if err != nil {
		return fmt.Errorf("failed to delete item %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to delete item %s: %w", id, ErrNotFound)
	}
	return nil
}

// AppendLog records a completed review.
func (db *DB) AppendLog(ctx context.Context, entry domain.StudyLogEntry) error {
	if _, err := db.conn.ExecContext(ctx, insertLog, entry.ItemID, entry.Timestamp.UnixMilli()); err != nil {
		return fmt.Errorf("failed to append study log for item %s: %w", entry.ItemID, err)
	}
	return nil
}

// ApplyTransition commits the item update and its study log, if any, in one transaction.
// Unchanged transitions are not written.
func (db *DB) ApplyTransition(ctx context.Context, tr review.Transition) error {
	if !tr.Changed {
		return nil
	}

	tx, err := db.conn.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction for item %s: %w", tr.Item.ID, err)
	}
	defer tx.Rollback()

	if _, err := tx.NamedExecContext(ctx, upsertItem, toRow(tr.Item)); err != nil {
		return fmt.Errorf("failed to save item %s: %w", tr.Item.ID, err)
	}
	if tr.Log != nil {
		if _, err := tx.ExecContext(ctx, insertLog, tr.Log.ItemID, tr.Log.Timestamp.UnixMilli()); err != nil {
			return fmt.Errorf("failed to append study log for item %s: %w", tr.Log.ItemID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transition for item %s: %w", tr.Item.ID, err)
	}
	return nil
}

// LoadLogs returns study logs with from <= timestamp < to, oldest first.
func (db *DB) LoadLogs(ctx context.Context, from, to time.Time) ([]domain.StudyLogEntry, error) {
	var rows []struct {
		ItemID     string `db:"item_id"`
		ReviewedAt int64  `db:"reviewed_at"`
	}
	err := db.conn.SelectContext(ctx, &rows, `
		SELECT item_id, reviewed_at
		FROM study_logs WHERE reviewed_at >= ? AND reviewed_at < ?
		ORDER BY reviewed_at, id
	`, from.UnixMilli(), to.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("failed to load study logs: %w", err)
	}

	entries := make([]domain.StudyLogEntry, len(rows))
	for i, r := range rows {
		entries[i] = domain.StudyLogEntry{ItemID: r.ItemID, Timestamp: fromMillis(r.ReviewedAt)}
	}
	return entries, nil
}

func toItems(rows []itemRow) []domain.Item {
	items := make([]domain.Item, len(rows))
	for i, r := range rows {
		items[i] = r.item()
	}
	return items
}
