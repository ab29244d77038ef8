// Package availability implements the slot calculus used by the scheduling
// flow: expanding a date range into fixed-width business-hour slots, marking
// them against busy intervals, and intersecting per-person availability.
//
// Slots are transient values: they are generated fresh on every query and
// never persisted. The generator is time-aware (past slots are excluded), so
// results must not be cached across calls that straddle "now".
package availability

import (
	"sort"
	"time"
)

// Business hours are a fixed 09:00–17:00 Monday–Friday window. This is a
// hardcoded policy, not configurable per tenant.
const (
	BusinessOpenHour  = 9
	BusinessCloseHour = 17
)

// Interval is a half-open busy range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Slot is one fixed-width candidate window. Available is false when the slot
// overlaps at least one busy interval.
type Slot struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Available bool      `json:"available"`
}

// Overlaps reports whether the half-open ranges [s.Start, s.End) and
// [b.Start, b.End) intersect.
func (s Slot) Overlaps(b Interval) bool {
	return s.Start.Before(b.End) && s.End.After(b.Start)
}

// Generate expands [rangeStart, rangeEnd) into whole-hour-anchored slots of
// the given duration and marks each against busy.
//
// Rules:
//   - Slot starts are anchored to whole hours inside business hours
//     (09:00, 10:00, … 16:00) in rangeStart's location.
//   - Weekend days are skipped entirely.
//   - A slot whose end exceeds the 17:00 close, or falls outside
//     [rangeStart, rangeEnd), is excluded rather than truncated.
//   - Slots starting at or before now are excluded.
//   - Output is ordered ascending by start time.
func Generate(rangeStart, rangeEnd time.Time, busy []Interval, duration time.Duration, now time.Time) []Slot {
	if duration <= 0 || !rangeEnd.After(rangeStart) {
		return nil
	}

	loc := rangeStart.Location()
	slots := make([]Slot, 0, 8)

	day := time.Date(rangeStart.Year(), rangeStart.Month(), rangeStart.Day(), 0, 0, 0, 0, loc)
	for !day.After(rangeEnd) {
		if wd := day.Weekday(); wd != time.Saturday && wd != time.Sunday {
			close := day.Add(time.Duration(BusinessCloseHour) * time.Hour)
			for hour := BusinessOpenHour; hour < BusinessCloseHour; hour++ {
				start := day.Add(time.Duration(hour) * time.Hour)
				end := start.Add(duration)
				if end.After(close) {
					continue // would spill past business close
				}
				if start.Before(rangeStart) || end.After(rangeEnd) {
					continue
				}
				if !start.After(now) {
					continue
				}
				s := Slot{Start: start, End: end, Available: true}
				for _, b := range busy {
					if s.Overlaps(b) {
						s.Available = false
						break
					}
				}
				slots = append(slots, s)
			}
		}
		day = day.AddDate(0, 0, 1)
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].Start.Before(slots[j].Start) })
	return slots
}

// Free filters a slot sequence down to the available entries.
func Free(slots []Slot) []Slot {
	out := make([]Slot, 0, len(slots))
	for _, s := range slots {
		if s.Available {
			out = append(out, s)
		}
	}
	return out
}
