package domain

import (
	"encoding/json"
	"time"
)

// Item is a single note under spaced-repetition review.
// Title, Body, ImageURL and Mask are payload; the scheduler never reads them.
type Item struct {
	ID           string          `json:"id" validate:"required"`
	Title        string          `json:"title"`
	Body         string          `json:"body"`
	ImageURL     string          `json:"image_url,omitempty"`
	Mask         json.RawMessage `json:"mask,omitempty"` // opaque mask geometry
	ReviewStage  int             `json:"review_stage" validate:"gte=0"`
	NextReviewAt time.Time       `json:"next_review_at" validate:"required"`
	CreatedAt    time.Time       `json:"created_at" validate:"required"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty"`

	// Provenance for notes imported from a source. Zero for notes created directly.
	SourceID    int64  `json:"source_id,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
}

// NewItem returns a fresh item that is due immediately.
func NewItem(id, title, body string, now time.Time) Item {
	return Item{
		ID:           id,
		Title:        title,
		Body:         body,
		ReviewStage:  0,
		NextReviewAt: now,
		CreatedAt:    now,
	}
}

// Deleted reports whether the item has been soft-deleted.
func (i Item) Deleted() bool {
	return i.DeletedAt != nil
}

// StudyLogEntry records a single completed review.
// Entries are append-only.
type StudyLogEntry struct {
	ItemID    string    `json:"item_id"`
	Timestamp time.Time `json:"timestamp"`
}

// Note is a note as read from a markdown source file, before it becomes an Item.
type Note struct {
	Title    string
	Body     string
	ImageURL string
	Hash     string
}
