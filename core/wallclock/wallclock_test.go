package wallclock

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		want    Clock
		wantErr bool
	}{
		{in: "09:00", want: 540},
		{in: "9:05", want: 545},
		{in: "23:59:59", want: 1439},
		{in: "24:00", want: MinutesPerDay},
		{in: "24:30", wantErr: true},
		{in: "12:5", wantErr: true},
		{in: "noon", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.True(t, errors.Cause(err) == ErrInvalidClock, "err = %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInstant(t *testing.T) {
	hcm, err := LoadZone("")
	require.NoError(t, err)
	assert.Equal(t, DefaultZone, hcm.String())

	got, err := ParseInstant("2026-10-15", "09:30", hcm)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 15, 2, 30, 0, 0, time.UTC), got)
	assert.Equal(t, time.UTC, got.Location())

	// round trip back through the same zone
	assert.Equal(t, "09:30", ClockIn(got, hcm).String())
	assert.Equal(t, "2026-10-15", DateIn(got, hcm))

	// early morning local time is the previous UTC day
	got, err = ParseInstant("2026-10-15", "06:00", hcm)
	require.NoError(t, err)
	assert.Equal(t, "2026-10-14", got.Format(DateLayout))

	paris, err := LoadZone("Europe/Paris")
	require.NoError(t, err)
	assert.Equal(t, "04:30 - 05:30", FormatRange(got.Add(3*time.Hour+30*time.Minute), got.Add(4*time.Hour+30*time.Minute), paris))
}

func TestInstant_dst(t *testing.T) {
	tests := []struct {
		name  string
		zone  string
		date  string
		clock string
		want  time.Time
	}{
		{name: "before spring forward", zone: "America/New_York", date: "2024-03-10", clock: "01:00", want: time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)},
		{name: "after spring forward", zone: "America/New_York", date: "2024-03-10", clock: "10:00", want: time.Date(2024, 3, 10, 14, 0, 0, 0, time.UTC)},
		{name: "after fall back", zone: "America/New_York", date: "2024-11-03", clock: "10:00", want: time.Date(2024, 11, 3, 15, 0, 0, 0, time.UTC)},
		{name: "end of day", zone: "America/New_York", date: "2024-03-10", clock: "24:00", want: time.Date(2024, 3, 11, 4, 0, 0, 0, time.UTC)},
		{name: "europe summer time", zone: "Europe/Paris", date: "2024-03-31", clock: "10:00", want: time.Date(2024, 3, 31, 8, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := LoadZone(tt.zone)
			require.NoError(t, err)
			got, err := ParseInstant(tt.date, tt.clock, loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			if tt.clock != "24:00" {
				assert.Equal(t, tt.clock, ClockIn(got, loc).String())
				assert.Equal(t, tt.date, DateIn(got, loc))
			}
		})
	}
}

func TestLoadZoneUnknown(t *testing.T) {
	_, err := LoadZone("Mars/Olympus_Mons")
	assert.True(t, errors.Cause(err) == ErrUnknownZone)
}

func TestWeekStart(t *testing.T) {
	thu, _ := ParseDate("2026-10-15")
	assert.Equal(t, "2026-10-12", WeekStart(thu).Format(DateLayout))
	sun, _ := ParseDate("2026-10-18")
	assert.Equal(t, "2026-10-12", WeekStart(sun).Format(DateLayout))
}

func TestMinutes(t *testing.T) {
	start := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, 45, Minutes(start, start.Add(45*time.Minute)))
	assert.Equal(t, 0, Minutes(start, start))
	assert.Equal(t, 0, Minutes(start, start.Add(-time.Hour)))
}
