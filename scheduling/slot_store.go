package scheduling

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Logan-Myn/dancehub-v3-sub000/apperrors"
	"github.com/Logan-Myn/dancehub-v3-sub000/metrics"
)

// AvailabilityAPI is the server side of a teacher's availability.
type AvailabilityAPI interface {
	ListAvailability(ctx context.Context, teacherID, startDate, endDate string) ([]Slot, error)
	AddSlot(ctx context.Context, teacherID string, slot Slot) (Slot, error)
	DeleteSlot(ctx context.Context, teacherID, slotID string) error
}

// Confirmer gates irreversible actions behind an explicit yes.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Confirmed is a Confirmer with a fixed answer, e.g. from a request flag.
type Confirmed bool

func (c Confirmed) Confirm(context.Context, string) bool { return bool(c) }

// SlotStore caches one teacher's availability grouped by day. Entries only
// appear after the server has confirmed them.
type SlotStore struct {
	mu        sync.RWMutex
	teacherID string
	api       AvailabilityAPI
	days      map[string][]Slot
}

func NewSlotStore(teacherID string, api AvailabilityAPI) *SlotStore {
	return &SlotStore{teacherID: teacherID, api: api, days: map[string][]Slot{}}
}

// Load replaces the cache with the server's slots in [startDate, endDate].
func (s *SlotStore) Load(ctx context.Context, startDate, endDate string) ([]DayAvailability, error) {
	slots, err := s.api.ListAvailability(ctx, s.teacherID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("load availability: %w", err)
	}
	days := map[string][]Slot{}
	for _, sl := range slots {
		if sl.ID == "" {
			continue
		}
		days[sl.Date] = append(days[sl.Date], sl)
	}
	for d := range days {
		sortSlots(days[d])
	}

	s.mu.Lock()
	s.days = days
	s.mu.Unlock()
	return s.Days(), nil
}

// Add checks the range locally, then creates the slot on the server and
// merges the confirmed slot into its day.
func (s *SlotStore) Add(ctx context.Context, date, start, end string) (Slot, error) {
	if err := CheckRange(date, start, end); err != nil {
		metrics.AvailabilityOperations.WithLabelValues("add", "invalid").Inc()
		return Slot{}, err
	}

	created, err := s.api.AddSlot(ctx, s.teacherID, Slot{Date: date, StartTime: start, EndTime: end})
	if err == nil && created.ID == "" {
		err = errors.New("server did not return a slot id")
	}
	metrics.AvailabilityOperations.WithLabelValues("add", metrics.Result(err)).Inc()
	if err != nil {
		return Slot{}, fmt.Errorf("add availability slot: %w", err)
	}

	s.mu.Lock()
	day := append(s.days[created.Date], created)
	sortSlots(day)
	s.days[created.Date] = day
	s.mu.Unlock()
	return created, nil
}

// CheckRange validates a slot before it is sent anywhere.
func CheckRange(date, start, end string) error {
	if !ValidDate(date) {
		return apperrors.NewAvailabilityInputError("Date must be in YYYY-MM-DD format")
	}
	if !ValidTime(start) || !ValidTime(end) {
		return apperrors.NewAvailabilityInputError("Times must be on the half hour, e.g. 09:00 or 09:30")
	}
	if start >= end {
		return apperrors.NewAvailabilityInputError("End time must be after start time")
	}
	return nil
}

// Remove deletes a slot after an explicit confirmation. The day entry is
// dropped once its last slot is gone.
func (s *SlotStore) Remove(ctx context.Context, slotID string, confirm Confirmer) error {
	s.mu.RLock()
	slot, ok := s.find(slotID)
	s.mu.RUnlock()
	if !ok {
		return apperrors.NewNotFoundError("Availability slot")
	}

	prompt := fmt.Sprintf("remove the %s-%s slot on %s", slot.StartTime, slot.EndTime, slot.Date)
	if confirm == nil || !confirm.Confirm(ctx, prompt) {
		metrics.AvailabilityOperations.WithLabelValues("remove", "unconfirmed").Inc()
		return apperrors.NewConfirmationRequiredError(prompt)
	}

	err := s.api.DeleteSlot(ctx, s.teacherID, slotID)
	metrics.AvailabilityOperations.WithLabelValues("remove", metrics.Result(err)).Inc()
	if err != nil {
		return fmt.Errorf("remove availability slot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	day := s.days[slot.Date]
	kept := day[:0:0]
	for _, sl := range day {
		if sl.ID != slotID {
			kept = append(kept, sl)
		}
	}
	if len(kept) == 0 {
		delete(s.days, slot.Date)
	} else {
		s.days[slot.Date] = kept
	}
	return nil
}

func (s *SlotStore) find(slotID string) (Slot, bool) {
	for _, day := range s.days {
		for _, sl := range day {
			if sl.ID == slotID {
				return sl, true
			}
		}
	}
	return Slot{}, false
}

// Days returns a copy of the cache ordered by date.
func (s *SlotStore) Days() []DayAvailability {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]DayAvailability, 0, len(s.days))
	for d, slots := range s.days {
		out = append(out, DayAvailability{Date: d, Slots: append([]Slot(nil), slots...)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (s *SlotStore) Day(date string) []Slot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Slot(nil), s.days[date]...)
}

func (s *SlotStore) HasAvailability(date string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.days[date]) > 0
}

// Slots flattens the cache.
func (s *SlotStore) Slots() []Slot {
	var out []Slot
	for _, d := range s.Days() {
		out = append(out, d.Slots...)
	}
	return out
}

// GroupByDay groups slots by date, dropping unconfirmed ones.
func GroupByDay(slots []Slot) []DayAvailability {
	byDay := map[string][]Slot{}
	for _, sl := range slots {
		if sl.ID != "" {
			byDay[sl.Date] = append(byDay[sl.Date], sl)
		}
	}
	out := make([]DayAvailability, 0, len(byDay))
	for d, day := range byDay {
		sortSlots(day)
		out = append(out, DayAvailability{Date: d, Slots: day})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func sortSlots(slots []Slot) {
	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime < slots[j].StartTime })
}
