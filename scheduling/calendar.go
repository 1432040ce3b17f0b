package scheduling

import "time"

// GridCells is the fixed six week size of a month grid.
const GridCells = 42

type CalendarDay struct {
	Date            string `json:"date"`
	Day             int    `json:"day"`
	Weekday         string `json:"weekday"`
	IsCurrentMonth  bool   `json:"isCurrentMonth"`
	IsToday         bool   `json:"isToday"`
	IsPast          bool   `json:"isPast"`
	HasAvailability bool   `json:"hasAvailability"`
}

type Grid struct {
	Year  int                    `json:"year"`
	Month time.Month             `json:"month"`
	Days  [GridCells]CalendarDay `json:"days"`
}

type AvailabilityLookup interface {
	HasAvailability(date string) bool
}

type DaySlots interface {
	Day(date string) []Slot
}

// BuildGrid lays out six weeks starting on the Sunday on or before the
// first of the month. today's location decides what "today" and "past" mean.
func BuildGrid(year int, month time.Month, today time.Time, lookup AvailabilityLookup) Grid {
	loc := today.Location()
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)
	first := time.Date(year, month, 1, 0, 0, 0, 0, loc)
	start := first.AddDate(0, 0, -int(first.Weekday()))

	g := Grid{Year: first.Year(), Month: first.Month()}
	for i := 0; i < GridCells; i++ {
		d := start.AddDate(0, 0, i)
		key := DateKey(d)
		g.Days[i] = CalendarDay{
			Date:           key,
			Day:            d.Day(),
			Weekday:        d.Weekday().String(),
			IsCurrentMonth: d.Month() == first.Month(),
			IsToday:        d.Equal(midnight),
			IsPast:         d.Before(midnight),
		}
		if lookup != nil {
			g.Days[i].HasAvailability = lookup.HasAvailability(key)
		}
	}
	return g
}

// Open returns the slots of cell i. Past cells and out of range indexes are
// a no-op and report false.
func (g Grid) Open(i int, store DaySlots) ([]Slot, bool) {
	if i < 0 || i >= GridCells || g.Days[i].IsPast {
		return nil, false
	}
	if store == nil {
		return []Slot{}, true
	}
	return store.Day(g.Days[i].Date), true
}

// Index finds the cell for a date key.
func (g Grid) Index(date string) int {
	for i, d := range g.Days {
		if d.Date == date {
			return i
		}
	}
	return -1
}
