package timeslot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/ratiba/core/wallclock"
)

func span(start, end string) Span {
	return Span{Start: wallclock.MustParseClock(start), End: wallclock.MustParseClock(end)}
}

func TestDerive(t *testing.T) {
	tests := []struct {
		name  string
		spans []Span
		want  []string
	}{
		{name: "empty", spans: nil, want: []string{}},
		{
			name:  "two sessions with a gap",
			spans: []Span{span("09:00", "10:30"), span("11:15", "12:00")},
			want:  []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30", "12:00"},
		},
		{
			name:  "unordered input, start rounded down",
			spans: []Span{span("13:10", "13:40"), span("12:45", "13:00")},
			want:  []string{"12:30", "13:00", "13:30"},
		},
		{
			name:  "latest on a boundary is included",
			spans: []Span{span("08:00", "09:00")},
			want:  []string{"08:00", "08:30", "09:00"},
		},
		{
			name:  "latest off a boundary stops at the last label not after it",
			spans: []Span{span("08:00", "08:50")},
			want:  []string{"08:00", "08:30"},
		},
		{
			name:  "single instant",
			spans: []Span{span("07:20", "07:20")},
			want:  []string{"07:00"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Derive(tt.spans))
		})
	}
}

func TestDeriveByDay(t *testing.T) {
	days := map[string][]Span{
		"2026-10-13": {span("09:00", "09:45")},
		"2026-10-12": {span("14:00", "14:30")},
		"2026-10-14": nil,
	}
	got := DeriveByDay(days)
	assert.Equal(t, map[string][]string{
		"2026-10-13": {"09:00", "09:30"},
		"2026-10-12": {"14:00", "14:30"},
	}, got)
	assert.Equal(t, []string{"2026-10-12", "2026-10-13"}, Days(days))
}

func TestIndex(t *testing.T) {
	origin := wallclock.MustParseClock("09:00")
	assert.Equal(t, 0, Index(origin, wallclock.MustParseClock("09:29")))
	assert.Equal(t, 3, Index(origin, wallclock.MustParseClock("10:30")))

	first, ok := Earliest([]Span{span("10:10", "11:00"), span("09:40", "10:00")})
	assert.True(t, ok)
	assert.Equal(t, "09:30", first.String())
}
