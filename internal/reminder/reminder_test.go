package reminder

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/conorfennell/memoryflow/internal/domain"
	"github.com/conorfennell/memoryflow/internal/review"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type fakeStore struct {
	items []domain.Item
	err   error
}

func (f fakeStore) LoadItems(context.Context) ([]domain.Item, error) {
	return f.items, f.err
}

func item(id string, stage int, next time.Time) domain.Item {
	return domain.Item{ID: id, ReviewStage: stage, NextReviewAt: next, CreatedAt: t0.AddDate(-1, 0, 0)}
}

func newTestReminder(t *testing.T, store ItemLoader) *Reminder {
	t.Helper()
	rs, err := review.NewScheduler(review.Config{})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	r := New(store, rs, time.UTC, slog.New(slog.NewTextHandler(io.Discard, nil)))
	r.now = func() time.Time { return t0 }
	return r
}

func TestCheck(t *testing.T) {
	store := fakeStore{items: []domain.Item{
		item("new", 0, t0),
		item("due", 2, t0.Add(-time.Hour)),
		item("expired", 1, t0.AddDate(0, 0, -10)),
		item("soon", 1, t0.Add(time.Hour)),
		item("done", 7, t0.AddDate(100, 0, 0)),
		{ID: "bad", ReviewStage: -1, NextReviewAt: t0, CreatedAt: t0},
	}}

	sum, err := newTestReminder(t, store).Check(context.Background())
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	want := Summary{Due: 3, New: 1, Expired: 1, Upcoming: 1, Mastered: 1}
	if sum != want {
		t.Errorf("Check() = %+v, want %+v", sum, want)
	}
}

func TestCheckStoreError(t *testing.T) {
	boom := errors.New("boom")
	_, err := newTestReminder(t, fakeStore{err: boom}).Check(context.Background())
	if !errors.Is(err, boom) {
		t.Errorf("Check() error = %v, want wrapped boom", err)
	}
}

func TestStartStop(t *testing.T) {
	r := newTestReminder(t, fakeStore{})
	if err := r.Start(time.Hour); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.Stop()
}
