package review

import (
	"encoding/json"
	"slices"
	"testing"
	"time"

	"github.com/conorfennell/memoryflow/internal/domain"
)

func ids(items []domain.Item) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func sampleItems() []domain.Item {
	deleted := t0.Add(-time.Hour)
	gone := itemAt("gone", 0, t0.Add(-48*time.Hour))
	gone.DeletedAt = &deleted

	return []domain.Item{
		itemAt("later-b", 2, t0.Add(5*day)),
		itemAt("due-recent", 1, t0.Add(-time.Hour)),
		itemAt("master", 7, t0.AddDate(100, 0, 0)),
		itemAt("tomorrow", 1, t0.Add(20*time.Hour)),
		itemAt("expired", 3, t0.AddDate(0, 0, -20)),
		itemAt("new-b", 0, t0.Add(-2*day)),
		itemAt("new-a", 0, t0.Add(-2*day)),
		itemAt("later-a", 2, t0.Add(3*day)),
		itemAt("two", 1, t0.Add(36*time.Hour)),
		gone,
	}
}

func TestPartition(t *testing.T) {
	s := mustScheduler(t, Config{})
	b, err := s.Partition(sampleItems(), t0)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}

	t.Run("due is most overdue first with id tie-break", func(t *testing.T) {
		want := []string{"expired", "new-a", "new-b", "due-recent"}
		if got := ids(b.Due); !slices.Equal(got, want) {
			t.Errorf("Due = %v, want %v", got, want)
		}
	})

	t.Run("upcoming keyed by days until", func(t *testing.T) {
		if got := b.UpcomingDays(); !slices.Equal(got, []int{1, 2, 3, 5}) {
			t.Errorf("UpcomingDays() = %v, want [1 2 3 5]", got)
		}
		if got := ids(b.Upcoming[1]); !slices.Equal(got, []string{"tomorrow"}) {
			t.Errorf("Upcoming[1] = %v", got)
		}
	})

	t.Run("mastered last", func(t *testing.T) {
		if got := ids(b.Mastered); !slices.Equal(got, []string{"master"}) {
			t.Errorf("Mastered = %v", got)
		}
	})

	t.Run("deleted items are skipped", func(t *testing.T) {
		for _, g := range b.Groups() {
			if slices.Contains(ids(g.Items), "gone") {
				t.Errorf("deleted item found in group %q", g.Key)
			}
		}
	})

	t.Run("groups are in fixed order", func(t *testing.T) {
		groups := b.Groups()
		keys := make([]GroupKey, len(groups))
		for i, g := range groups {
			keys[i] = g.Key
		}
		want := []GroupKey{GroupDue, GroupOneDay, GroupTwoDays, GroupLater, GroupMastered}
		if !slices.Equal(keys, want) {
			t.Errorf("group keys = %v, want %v", keys, want)
		}
		if got := ids(groups[3].Items); !slices.Equal(got, []string{"later-a", "later-b"}) {
			t.Errorf("3+ days group = %v, want [later-a later-b]", got)
		}
	})
}

func TestPartitionDeterministic(t *testing.T) {
	s := mustScheduler(t, Config{})
	items := sampleItems()
	reversed := slices.Clone(items)
	slices.Reverse(reversed)

	first, err := s.Partition(items, t0)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	second, err := s.Partition(reversed, t0)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}

	a, b := first.Groups(), second.Groups()
	for i := range a {
		if !slices.Equal(ids(a[i].Items), ids(b[i].Items)) {
			t.Errorf("group %q differs: %v vs %v", a[i].Key, ids(a[i].Items), ids(b[i].Items))
		}
	}
}

func TestPartitionDoesNotMutate(t *testing.T) {
	s := mustScheduler(t, Config{})
	items := sampleItems()
	before := ids(items)
	if _, err := s.Partition(items, t0); err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if !slices.Equal(ids(items), before) {
		t.Errorf("input reordered: %v, want %v", ids(items), before)
	}
}

func TestPartitionFarFutureItem(t *testing.T) {
	s := mustScheduler(t, Config{})
	far := itemAt("far", 2, t0.AddDate(300, 0, 0))
	b, err := s.Partition([]domain.Item{far}, t0)
	if err != nil {
		t.Fatalf("Partition: %v", err)
	}
	if got := b.UpcomingDays(); len(got) != 1 || got[0] <= 0 {
		t.Errorf("UpcomingDays() = %v, want one positive key", got)
	}
	groups := b.Groups()
	if got := ids(groups[3].Items); groups[3].Key != GroupLater || !slices.Equal(got, []string{"far"}) {
		t.Errorf("group %q = %v, want [far]", groups[3].Key, got)
	}
}

func TestPartitionInvalidItem(t *testing.T) {
	s := mustScheduler(t, Config{})
	items := append(sampleItems(), domain.Item{ID: "bad", ReviewStage: -2, NextReviewAt: t0, CreatedAt: t0})
	if _, err := s.Partition(items, t0); err == nil {
		t.Error("Partition should reject an invalid item")
	}
}

func TestStatusJSON(t *testing.T) {
	data, err := json.Marshal(Classification{Status: Expired, OverdueDays: 12})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"status":"expired","overdue_days":12}` {
		t.Errorf("Marshal = %s", data)
	}

	var st Status
	if err := json.Unmarshal([]byte(`"upcoming"`), &st); err != nil || st != Upcoming {
		t.Errorf("Unmarshal = %v, %v; want Upcoming", st, err)
	}
	if err := json.Unmarshal([]byte(`"later"`), &st); err == nil {
		t.Error("Unmarshal should reject unknown status")
	}
	if Status(42).String() != "Status(42)" {
		t.Errorf("String() = %q", Status(42).String())
	}
}
