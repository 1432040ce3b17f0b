package scheduling

import (
	"sort"
	"time"
)

// Offerable keeps the slots whose start is strictly after now, in now's
// location, ordered chronologically. Slots already in progress are dropped.
func Offerable(slots []Slot, now time.Time) []Slot {
	type timed struct {
		slot  Slot
		start time.Time
	}
	kept := make([]timed, 0, len(slots))
	for _, sl := range slots {
		start, err := Combine(sl.Date, sl.StartTime, now.Location())
		if err != nil || !start.After(now) {
			continue
		}
		kept = append(kept, timed{slot: sl, start: start})
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].start.Before(kept[j].start) })

	out := make([]Slot, len(kept))
	for i, k := range kept {
		out[i] = k.slot
	}
	return out
}
