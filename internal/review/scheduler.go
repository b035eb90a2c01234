package review

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/memoryflow/internal/domain"
)

const (
	day        = 24 * time.Hour
	secondsDay = 24 * 60 * 60
)

// MaxIntervalDays bounds a single interval so scheduled dates stay below the
// mastered horizon.
const MaxIntervalDays = 36500

// DefaultIntervals are the review intervals in days, indexed by stage.
var DefaultIntervals = []int{1, 2, 4, 7, 15, 30}

// masteredHorizon is how far out a mastered item's NextReviewAt is pushed.
const masteredHorizon = 100 // years

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config configures a Scheduler.
type Config struct {
	Intervals []int `json:"intervals"` // days; nil means DefaultIntervals

	// StrictTransitions makes Remember on an Upcoming or Mastered item, and
	// Forget on a Mastered item, fail with ErrIllegalTransition. When false
	// those calls return the item unchanged.
	StrictTransitions bool `json:"strict_transitions"`
}

// Scheduler decides review transitions for memory items.
// It holds no mutable state and is safe for concurrent use.
type Scheduler struct {
	intervals []int
	strict    bool
}

// Transition is the outcome of Remember or Forget. The caller persists Item
// and, when non-nil, appends Log, ideally in one transaction.
type Transition struct {
	Item    domain.Item
	Log     *domain.StudyLogEntry
	Changed bool
}

// NewScheduler creates a Scheduler from the given config.
func NewScheduler(cfg Config) (*Scheduler, error) {
	ivl := cfg.Intervals
	if ivl == nil {
		ivl = DefaultIntervals
	}
	if len(ivl) == 0 {
		return nil, fmt.Errorf("%w: interval table is empty", ErrInvalidConfig)
	}
	for i, d := range ivl {
		if d <= 0 {
			return nil, fmt.Errorf("%w: interval %d is %d days, must be positive", ErrInvalidConfig, i, d)
		}
		if d > MaxIntervalDays {
			return nil, fmt.Errorf("%w: interval %d is %d days, must be at most %d", ErrInvalidConfig, i, d, MaxIntervalDays)
		}
		if i > 0 && d < ivl[i-1] {
			return nil, fmt.Errorf("%w: interval %d (%d days) is shorter than the one before it", ErrInvalidConfig, i, d)
		}
	}

	own := make([]int, len(ivl))
	copy(own, ivl)
	return &Scheduler{intervals: own, strict: cfg.StrictTransitions}, nil
}

// MasteredStage is the stage at which an item graduates.
func (s *Scheduler) MasteredStage() int {
	return len(s.intervals) + 1
}

// Intervals returns a copy of the interval table in days.
func (s *Scheduler) Intervals() []int {
	out := make([]int, len(s.intervals))
	copy(out, s.intervals)
	return out
}

// Validate checks that the item is well formed for this scheduler.
func (s *Scheduler) Validate(item domain.Item) error {
	if err := validate.Struct(item); err != nil {
		return fmt.Errorf("%w: item %q: %v", ErrInvalidItemState, item.ID, err)
	}
	if item.ReviewStage > s.MasteredStage() {
		return fmt.Errorf("%w: item %q: stage %d is beyond mastered stage %d",
			ErrInvalidItemState, item.ID, item.ReviewStage, s.MasteredStage())
	}
	return nil
}

// Classify reports the status of the item at now. It never mutates item.
func (s *Scheduler) Classify(item domain.Item, now time.Time) (Classification, error) {
	if err := s.Validate(item); err != nil {
		return Classification{}, err
	}

	if item.ReviewStage >= s.MasteredStage() {
		return Classification{Status: Mastered}, nil
	}

	if item.NextReviewAt.After(now) {
		return Classification{Status: Upcoming, DaysUntil: ceilDays(now, item.NextReviewAt)}, nil
	}

	overdue := floorDays(item.NextReviewAt, now)
	c := Classification{Status: Due, OverdueDays: overdue}
	switch {
	case item.ReviewStage == 0:
		c.Status = New
	case overdue > 2*s.intervals[item.ReviewStage-1]:
		c.Status = Expired
	}
	return c, nil
}

// Remember credits a successful review of a due item.
// An Expired item restarts its curve, so it lands on stage 1.
func (s *Scheduler) Remember(item domain.Item, now time.Time) (Transition, error) {
	c, err := s.Classify(item, now)
	if err != nil {
		return Transition{}, err
	}
	if !c.Status.IsDue() {
		return s.refuse("remember", item, c.Status)
	}

	prior := item.ReviewStage
	if c.Status == Expired {
		prior = 0
	}
	stage := prior + 1

	out := item
	if stage >= s.MasteredStage() {
		out.ReviewStage = s.MasteredStage()
		out.NextReviewAt = now.AddDate(masteredHorizon, 0, 0)
	} else {
		out.ReviewStage = stage
		out.NextReviewAt = startOfDay(now).AddDate(0, 0, s.intervals[stage-1])
	}

	return Transition{
		Item:    out,
		Log:     &domain.StudyLogEntry{ItemID: item.ID, Timestamp: now},
		Changed: true,
	}, nil
}

// Forget records a lapse. An Upcoming item drops one stage; a due item
// restarts at stage 0. Either way it becomes due at now. No log is produced.
func (s *Scheduler) Forget(item domain.Item, now time.Time) (Transition, error) {
	c, err := s.Classify(item, now)
	if err != nil {
		return Transition{}, err
	}

	out := item
	switch c.Status {
	case Mastered:
		return s.refuse("forget", item, c.Status)
	case Upcoming:
		out.ReviewStage = max(0, item.ReviewStage-1)
	default:
		out.ReviewStage = 0
	}
	out.NextReviewAt = now

	return Transition{Item: out, Changed: true}, nil
}

func (s *Scheduler) refuse(op string, item domain.Item, st Status) (Transition, error) {
	if s.strict {
		return Transition{}, fmt.Errorf("%w: %s on %s item %q", ErrIllegalTransition, op, st, item.ID)
	}
	return Transition{Item: item}, nil
}

// span returns whole seconds and leftover nanoseconds from a to b, for a <= b.
// time.Duration saturates near 292 years, so the span is taken from Unix seconds.
func span(a, b time.Time) (secs int64, nsec int) {
	secs = b.Unix() - a.Unix()
	nsec = b.Nanosecond() - a.Nanosecond()
	if nsec < 0 {
		secs--
		nsec += 1e9
	}
	return secs, nsec
}

// ceilDays counts started 24h periods from a to b.
func ceilDays(a, b time.Time) int {
	secs, nsec := span(a, b)
	n := secs / secondsDay
	if secs%secondsDay != 0 || nsec != 0 {
		n++
	}
	return int(n)
}

// floorDays counts whole 24h periods from a to b.
func floorDays(a, b time.Time) int {
	secs, _ := span(a, b)
	return int(secs / secondsDay)
}

// startOfDay truncates t to midnight in t's own location.
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
