// Package scheduling holds teacher availability and the private lesson
// booking flow: the slot cache, the month calendar grid, the offerable slot
// filter and the booking orchestrator.
package scheduling

import (
	"fmt"
	"time"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Slot is one availability interval. ID is empty until the server confirms it.
type Slot struct {
	ID        string `json:"id,omitempty"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type DayAvailability struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

var timeOptions = buildTimeOptions()

func buildTimeOptions() []string {
	out := make([]string, 0, 48)
	for h := 0; h < 24; h++ {
		out = append(out, fmt.Sprintf("%02d:00", h), fmt.Sprintf("%02d:30", h))
	}
	return out
}

// TimeOptions returns the 48 half-hour times a slot may start or end on.
func TimeOptions() []string {
	return append([]string(nil), timeOptions...)
}

func ValidTime(hhmm string) bool {
	for _, t := range timeOptions {
		if t == hhmm {
			return true
		}
	}
	return false
}

func ValidDate(date string) bool {
	_, err := time.Parse(DateLayout, date)
	return err == nil
}

// Combine resolves a local date and HH:MM in loc to an instant.
func Combine(date, hhmm string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	t, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+hhmm, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("combine %s %s: %w", date, hhmm, err)
	}
	return t, nil
}

// DateKey formats t as the YYYY-MM-DD key in its own location.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}
