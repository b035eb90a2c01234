package review

import (
	"cmp"
	"slices"
	"time"

	"github.com/conorfennell/memoryflow/internal/domain"
)

// Buckets is a collection of items split for display.
type Buckets struct {
	Due      []domain.Item         // New, Due and Expired; most overdue first
	Upcoming map[int][]domain.Item // keyed by days until due
	Mastered []domain.Item
}

// GroupKey names one of the fixed display groups.
type GroupKey string

const (
	GroupDue      GroupKey = "due"
	GroupOneDay   GroupKey = "1 day"
	GroupTwoDays  GroupKey = "2 days"
	GroupLater    GroupKey = "3+ days"
	GroupMastered GroupKey = "mastered"
)

// Group is one display group of Buckets.Groups.
type Group struct {
	Key   GroupKey      `json:"key"`
	Items []domain.Item `json:"items"`
}

// Partition classifies every non-deleted item and sorts it into buckets.
// Items are returned as copies; the input slice is not modified.
func (s *Scheduler) Partition(items []domain.Item, now time.Time) (Buckets, error) {
	b := Buckets{Upcoming: make(map[int][]domain.Item)}
	for _, it := range items {
		if it.Deleted() {
			continue
		}
		c, err := s.Classify(it, now)
		if err != nil {
			return Buckets{}, err
		}
		switch c.Status {
		case Mastered:
			b.Mastered = append(b.Mastered, it)
		case Upcoming:
			b.Upcoming[c.DaysUntil] = append(b.Upcoming[c.DaysUntil], it)
		default:
			b.Due = append(b.Due, it)
		}
	}

	slices.SortFunc(b.Due, compareItems)
	slices.SortFunc(b.Mastered, compareItems)
	for _, list := range b.Upcoming {
		slices.SortFunc(list, compareItems)
	}
	return b, nil
}

// UpcomingDays returns the keys of Upcoming in ascending order.
func (b Buckets) UpcomingDays() []int {
	days := make([]int, 0, len(b.Upcoming))
	for d := range b.Upcoming {
		days = append(days, d)
	}
	slices.Sort(days)
	return days
}

// Groups returns the five display groups in fixed order. Every Upcoming
// list of three days or more is merged into GroupLater.
func (b Buckets) Groups() []Group {
	var later []domain.Item
	for _, d := range b.UpcomingDays() {
		if d >= 3 {
			later = append(later, b.Upcoming[d]...)
		}
	}
	slices.SortFunc(later, compareItems)

	return []Group{
		{Key: GroupDue, Items: b.Due},
		{Key: GroupOneDay, Items: b.Upcoming[1]},
		{Key: GroupTwoDays, Items: b.Upcoming[2]},
		{Key: GroupLater, Items: later},
		{Key: GroupMastered, Items: b.Mastered},
	}
}

// compareItems orders by NextReviewAt, then ID.
func compareItems(a, b domain.Item) int {
	if c := a.NextReviewAt.Compare(b.NextReviewAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
