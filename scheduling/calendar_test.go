package scheduling

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lookupSet map[string]bool

func (l lookupSet) HasAvailability(date string) bool { return l[date] }

func TestBuildGrid_AlwaysSixWeeksFromSunday(t *testing.T) {
	today := time.Date(2024, time.June, 15, 13, 45, 0, 0, time.UTC)
	for year := 2023; year <= 2026; year++ {
		for m := time.January; m <= time.December; m++ {
			g := BuildGrid(year, m, today, nil)
			require.Len(t, g.Days, 42)

			first, err := time.Parse(DateLayout, g.Days[0].Date)
			require.NoError(t, err)
			assert.Equal(t, time.Sunday, first.Weekday(), "%d-%02d", year, m)
			assert.False(t, first.After(time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)))
			assert.Equal(t, 1, g.Days[g.Index(time.Date(year, m, 1, 0, 0, 0, 0, time.UTC).Format(DateLayout))].Day)
		}
	}
}

func TestBuildGrid_Flags(t *testing.T) {
	today := time.Date(2024, time.June, 15, 13, 45, 0, 0, time.UTC)
	g := BuildGrid(2024, time.June, today, lookupSet{"2024-06-20": true, "2024-06-10": true})

	// June 2024 starts on a Saturday
	assert.Equal(t, "2024-05-26", g.Days[0].Date)
	assert.False(t, g.Days[0].IsCurrentMonth)
	assert.True(t, g.Days[0].IsPast)

	i := g.Index("2024-06-15")
	assert.True(t, g.Days[i].IsToday)
	assert.False(t, g.Days[i].IsPast, "today is not past regardless of time of day")
	assert.True(t, g.Days[i].IsCurrentMonth)
	assert.True(t, g.Days[g.Index("2024-06-14")].IsPast)
	assert.True(t, g.Days[g.Index("2024-06-20")].HasAvailability)
	assert.False(t, g.Days[g.Index("2024-06-21")].HasAvailability)
	assert.Equal(t, "2024-07-06", g.Days[41].Date)
}

func TestGrid_OpenSkipsPastCells(t *testing.T) {
	today := time.Date(2024, time.June, 15, 8, 0, 0, 0, time.UTC)
	api := new(mockAvailabilityAPI)
	store := loadedStore(t, api)
	g := BuildGrid(2024, time.June, today, store)

	slots, ok := g.Open(g.Index("2024-06-03"), store)
	assert.False(t, ok)
	assert.Nil(t, slots)

	_, ok = g.Open(g.Index("2024-06-15"), store)
	assert.True(t, ok)

	_, ok = g.Open(99, store)
	assert.False(t, ok)
}

func TestGrid_OpenReturnsDaySlots(t *testing.T) {
	today := time.Date(2024, time.June, 1, 8, 0, 0, 0, time.UTC)
	store := loadedStore(t, new(mockAvailabilityAPI))
	g := BuildGrid(2024, time.June, today, store)

	slots, ok := g.Open(g.Index("2024-06-03"), store)
	require.True(t, ok)
	assert.Len(t, slots, 2)
	assert.True(t, g.Days[g.Index("2024-06-05")].HasAvailability)
}
