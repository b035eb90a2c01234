package review

import (
	"encoding"
	"encoding/json"
	"fmt"
)

// Status is the display classification of an item at a given instant.
type Status int

const (
	New      Status = iota + 1 // Due, never successfully reviewed.
	Due                        // Due, stage > 0.
	Expired                    // Due and overdue by more than twice its last interval.
	Upcoming                   // Scheduled in the future.
	Mastered                   // Graduated; never scheduled again.
)

var (
	statusNames  = [...]string{New: "new", Due: "due", Expired: "expired", Upcoming: "upcoming", Mastered: "mastered"}
	statusByName = map[string]Status{
		"new":      New,
		"due":      Due,
		"expired":  Expired,
		"upcoming": Upcoming,
		"mastered": Mastered,
	}
)

var (
	_ fmt.Stringer             = Status(0)
	_ json.Marshaler           = Status(0)
	_ json.Unmarshaler         = (*Status)(nil)
	_ encoding.TextMarshaler   = Status(0)
	_ encoding.TextUnmarshaler = (*Status)(nil)
)

func (s Status) isValid() bool {
	return s >= New && s <= Mastered
}

// IsDue reports whether an item with this status may be reviewed now.
func (s Status) IsDue() bool {
	return s == New || s == Due || s == Expired
}

// String returns the lowercase status name, or "Status(n)" for invalid values.
func (s Status) String() string {
	if s.isValid() {
		return statusNames[s]
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	if !s.isValid() {
		return nil, fmt.Errorf("review: invalid status: %d", int(s))
	}
	return []byte(statusNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Status) UnmarshalText(text []byte) error {
	v, ok := statusByName[string(text)]
	if !ok {
		return fmt.Errorf("review: invalid status: %q", text)
	}
	*s = v
	return nil
}

// MarshalJSON implements json.Marshaler. Status serializes as a JSON string.
func (s Status) MarshalJSON() ([]byte, error) {
	text, err := s.MarshalText()
	if err != nil {
		return nil, err
	}
	return json.Marshal(string(text))
}

// UnmarshalJSON implements json.Unmarshaler. Expects a JSON string.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return fmt.Errorf("review: invalid status: %s", data)
	}
	return s.UnmarshalText([]byte(str))
}

// Classification is the result of Classify.
type Classification struct {
	Status      Status `json:"status"`
	DaysUntil   int    `json:"days_until,omitempty"`   // set for Upcoming
	OverdueDays int    `json:"overdue_days,omitempty"` // whole days past NextReviewAt, for due statuses
}
