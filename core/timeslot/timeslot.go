// Package timeslot derives the 30-minute grid labels a schedule board renders for a day.
// Slots are never stored; they are recomputed from whatever sessions are on hand.
package timeslot

import (
	"sort"

	"github.com/trezcool/ratiba/core/wallclock"
)

// SlotMinutes is the grid granularity.
const SlotMinutes = 30

// Span is the wall-clock extent of one session on a given day.
type Span struct {
	Start wallclock.Clock
	End   wallclock.Clock
}

// Floor rounds c down to the nearest slot boundary.
func Floor(c wallclock.Clock) wallclock.Clock {
	return c - c%SlotMinutes
}

// Bounds returns the earliest start and latest end over spans; ok is false for no spans.
func Bounds(spans []Span) (earliest, latest wallclock.Clock, ok bool) {
	for i, s := range spans {
		if i == 0 || s.Start < earliest {
			earliest = s.Start
		}
		if i == 0 || s.End > latest {
			latest = s.End
		}
		// a start later than every end still bounds the grid
		if s.Start > latest {
			latest = s.Start
		}
	}
	return earliest, latest, len(spans) > 0
}

// Derive returns ascending HH:MM labels from the earliest start (floored) while the label is <= latest.
// An empty input gives an empty, non-nil result.
func Derive(spans []Span) []string {
	clocks := Clocks(spans)
	labels := make([]string, 0, len(clocks))
	for _, c := range clocks {
		labels = append(labels, c.String())
	}
	return labels
}

// Clocks is Derive without the string formatting.
func Clocks(spans []Span) []wallclock.Clock {
	earliest, latest, ok := Bounds(spans)
	if !ok {
		return []wallclock.Clock{}
	}
	slots := make([]wallclock.Clock, 0, int(latest-earliest)/SlotMinutes+2)
	for current := Floor(earliest); current <= latest; current += SlotMinutes {
		slots = append(slots, current)
	}
	return slots
}

// Earliest returns the first derived slot, the origin of a day column.
func Earliest(spans []Span) (wallclock.Clock, bool) {
	earliest, _, ok := Bounds(spans)
	return Floor(earliest), ok
}

// DeriveByDay applies Derive to every day key and drops days with no spans.
func DeriveByDay(days map[string][]Span) map[string][]string {
	out := make(map[string][]string, len(days))
	for day, spans := range days {
		if len(spans) == 0 {
			continue
		}
		out[day] = Derive(spans)
	}
	return out
}

// Days returns the sorted keys of days that have at least one span.
func Days(days map[string][]Span) []string {
	keys := make([]string, 0, len(days))
	for day, spans := range days {
		if len(spans) > 0 {
			keys = append(keys, day)
		}
	}
	sort.Strings(keys)
	return keys
}

// Index returns the slot index c falls into relative to origin.
func Index(origin, c wallclock.Clock) int {
	return int(Floor(c)-origin) / SlotMinutes
}
