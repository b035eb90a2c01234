// Package activity derives study-calendar views from note creation times
// and study log timestamps.
package activity

import (
	"slices"
	"time"

	"github.com/conorfennell/memoryflow/internal/domain"
)

// Day is one calendar day of a month summary.
type Day struct {
	Date   time.Time `json:"date"` // midnight in the summary's location
	Active bool      `json:"active"`
}

// MonthSummary is the activity calendar for one month.
type MonthSummary struct {
	Year        int        `json:"year"`
	Month       time.Month `json:"month"`
	Days        []Day      `json:"days"`
	ActiveDays  int        `json:"active_days"`
	ElapsedDays int        `json:"elapsed_days"` // denominator for progress display
	Streak      int        `json:"streak"`
}

type dayKey struct {
	y int
	m time.Month
	d int
}

func keyOf(t time.Time, loc *time.Location) dayKey {
	y, m, d := t.In(loc).Date()
	return dayKey{y, m, d}
}

// activeSet buckets every timestamp into its calendar day in loc.
func activeSet(loc *time.Location, stamps ...[]time.Time) map[dayKey]bool {
	set := make(map[dayKey]bool)
	for _, list := range stamps {
		for _, t := range list {
			set[keyOf(t, loc)] = true
		}
	}
	return set
}

// Month builds the calendar for year/month in loc. A day is active when a
// note was created or a review was logged on it.
//
// ElapsedDays is 0 for a month that lies in the future, the current day of
// the month for the current month, and the month length for past months.
func Month(year int, month time.Month, loc *time.Location, now time.Time, created, studied []time.Time) MonthSummary {
	if loc == nil {
		loc = time.Local
	}
	set := activeSet(loc, created, studied)

	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	length := first.AddDate(0, 1, -1).Day()

	s := MonthSummary{Year: year, Month: month}
	for d := 1; d <= length; d++ {
		active := set[dayKey{year, month, d}]
		s.Days = append(s.Days, Day{Date: time.Date(year, month, d, 0, 0, 0, 0, loc), Active: active})
		if active {
			s.ActiveDays++
		}
	}

	ny, nm, nd := now.In(loc).Date()
	switch {
	case ny == year && nm == month:
		s.ElapsedDays = nd
	case first.After(now):
		s.ElapsedDays = 0
	default:
		s.ElapsedDays = length
	}

	s.Streak = Streak(now, loc, created, studied)
	return s
}

// Streak counts consecutive active days ending today. A streak that ended
// yesterday still counts, since today may not have been studied yet.
func Streak(now time.Time, loc *time.Location, stamps ...[]time.Time) int {
	if loc == nil {
		loc = time.Local
	}
	set := activeSet(loc, stamps...)

	y, m, d := now.In(loc).Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, loc)
	if !set[keyOf(day, loc)] {
		day = day.AddDate(0, 0, -1)
	}

	n := 0
	for set[keyOf(day, loc)] {
		n++
		day = day.AddDate(0, 0, -1)
	}
	return n
}

// CreatedOn returns the items created on date's calendar day in loc, oldest first.
func CreatedOn(items []domain.Item, date time.Time, loc *time.Location) []domain.Item {
	if loc == nil {
		loc = time.Local
	}
	want := keyOf(date, loc)
	var out []domain.Item
	for _, it := range items {
		if keyOf(it.CreatedAt, loc) == want {
			out = append(out, it)
		}
	}
	slices.SortFunc(out, func(a, b domain.Item) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out
}
