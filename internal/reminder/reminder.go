package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/conorfennell/memoryflow/internal/domain"
	"github.com/conorfennell/memoryflow/internal/review"
)

// ItemLoader loads the current set of items.
type ItemLoader interface {
	LoadItems(ctx context.Context) ([]domain.Item, error)
}

// Summary is the outcome of a single reminder check.
type Summary struct {
	Due      int
	New      int
	Expired  int
	Upcoming int
	Mastered int
}

// Reminder periodically logs how many items are waiting for review.
type Reminder struct {
	scheduler *gocron.Scheduler
	store     ItemLoader
	review    *review.Scheduler
	now       func() time.Time
	logger    *slog.Logger
}

// New creates a reminder that runs in loc.
func New(store ItemLoader, rs *review.Scheduler, loc *time.Location, logger *slog.Logger) *Reminder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reminder{
		scheduler: gocron.NewScheduler(loc),
		store:     store,
		review:    rs,
		now:       time.Now,
		logger:    logger,
	}
}

// Start schedules the check every interval and starts the scheduler in a
// non-blocking manner.
func (r *Reminder) Start(every time.Duration) error {
	_, err := r.scheduler.Every(every).Do(func() {
		if _, err := r.Check(context.Background()); err != nil {
			r.logger.Error("Reminder check failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reminder: %w", err)
	}
	r.scheduler.StartAsync()
	return nil
}

// Stop terminates the scheduled check.
func (r *Reminder) Stop() {
	r.scheduler.Stop()
}

// Check counts items by status and logs the result.
func (r *Reminder) Check(ctx context.Context) (Summary, error) {
	items, err := r.store.LoadItems(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to load items: %w", err)
	}

	var sum Summary
	now := r.now()
	for _, it := range items {
		if it.Deleted() {
			continue
		}
		c, err := r.review.Classify(it, now)
		if err != nil {
			r.logger.Warn("Skipping invalid item", "id", it.ID, "error", err)
			continue
		}
		switch c.Status {
		case review.New:
			sum.New++
		case review.Expired:
			sum.Expired++
		case review.Upcoming:
			sum.Upcoming++
		case review.Mastered:
			sum.Mastered++
		}
		if c.Status.IsDue() {
			sum.Due++
		}
	}

	if sum.Due > 0 {
		r.logger.Info("Items waiting for review", "due", sum.Due, "new", sum.New, "expired", sum.Expired)
	} else {
		r.logger.Debug("Nothing due", "upcoming", sum.Upcoming, "mastered", sum.Mastered)
	}
	return sum, nil
}
