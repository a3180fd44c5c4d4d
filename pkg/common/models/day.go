package models

import (
	"encoding/json"
	"fmt"
	"time"
)

const dayLayout = "2006-01-02"

// Day is a calendar date at UTC midnight.
type Day struct {
	time.Time
}

func NewDay(year int, month time.Month, day int) Day {
	return Day{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDay truncates an ISO date or timestamp to its date part.
func ParseDay(raw string) (Day, error) {
	if len(raw) < len(dayLayout) {
		return Day{}, fmt.Errorf("invalid report date %q", raw)
	}
	t, err := time.Parse(dayLayout, raw[:len(dayLayout)])
	if err != nil {
		return Day{}, fmt.Errorf("invalid report date %q: %w", raw, err)
	}
	return Day{t}, nil
}

func (d Day) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dayLayout)
}

// DaysSince returns the signed number of days from other to d.
func (d Day) DaysSince(other Day) float64 {
	return d.Sub(other.Time).Hours() / 24
}

func (d Day) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Day) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("report date must be a string: %w", err)
	}
	parsed, err := ParseDay(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
