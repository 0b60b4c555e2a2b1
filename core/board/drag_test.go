package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/wallclock"
)

func TestDrag(t *testing.T) {
	c := Card{SessionID: "s1", DurationMinutes: 45, Start: wallclock.MustParseClock("09:00")}
	monday := Day{Date: "2024-05-13", earliest: wallclock.MustParseClock("08:30")}
	tuesday := Day{Date: "2024-05-14", earliest: wallclock.MustParseClock("13:00")}

	t.Run("drop on another day", func(t *testing.T) {
		d := NewDrag(DefaultGeometry)
		assert.Equal(t, StateIdle, d.State())

		require.NoError(t, d.Start(c, monday.Date))
		assert.Equal(t, StateDragging, d.State())

		p, err := d.Over(monday, 50)
		require.NoError(t, err)
		assert.Equal(t, StateOverTarget, d.State())
		assert.Equal(t, "09:00 - 09:45", p.TimeRange)
		assert.False(t, p.DateChanged)

		p, err = d.Over(tuesday, 100)
		require.NoError(t, err)
		assert.Equal(t, "14:00 - 14:45", p.TimeRange)
		assert.True(t, p.DateChanged)

		dropped, err := d.Drop()
		require.NoError(t, err)
		assert.Equal(t, p, dropped)
		assert.Equal(t, StateDropped, d.State())

		us := dropped.Update("Asia/Ho_Chi_Minh")
		assert.Equal(t, "14:00", *us.StartTime)
		assert.Equal(t, "14:45", *us.EndTime)
		require.NotNil(t, us.Date)
		assert.Equal(t, "2024-05-14", *us.Date)

		require.NoError(t, d.Done())
		assert.Equal(t, StateIdle, d.State())
	})

	t.Run("same day drop keeps the date", func(t *testing.T) {
		d := NewDrag(DefaultGeometry)
		require.NoError(t, d.Start(c, monday.Date))
		_, err := d.Over(monday, 0)
		require.NoError(t, err)
		p, err := d.Drop()
		require.NoError(t, err)
		assert.False(t, p.DateChanged)
		us := p.Update("")
		require.NotNil(t, us.Date)
		assert.Equal(t, monday.Date, *us.Date)
	})

	t.Run("cancel", func(t *testing.T) {
		d := NewDrag(DefaultGeometry)
		require.NoError(t, d.Start(c, monday.Date))
		require.NoError(t, d.Cancel())
		assert.Equal(t, StateIdle, d.State())

		require.NoError(t, d.Start(c, monday.Date))
		_, err := d.Over(monday, 10)
		require.NoError(t, err)
		require.NoError(t, d.Cancel())
		assert.Equal(t, StateIdle, d.State())
	})

	t.Run("past midnight keeps dragging", func(t *testing.T) {
		late := Day{Date: "2024-05-15", earliest: wallclock.MustParseClock("23:30")}
		d := NewDrag(DefaultGeometry)
		require.NoError(t, d.Start(c, monday.Date))
		_, err := d.Over(late, 0)
		assert.ErrorIs(t, err, ErrPastMidnight)
		assert.Equal(t, StateDragging, d.State())
	})

	t.Run("invalid transitions", func(t *testing.T) {
		tests := []struct {
			name string
			run  func(d *Drag) error
		}{
			{name: "drop while idle", run: func(d *Drag) error { _, err := d.Drop(); return err }},
			{name: "over while idle", run: func(d *Drag) error { _, err := d.Over(monday, 0); return err }},
			{name: "cancel while idle", run: func(d *Drag) error { return d.Cancel() }},
			{name: "done while idle", run: func(d *Drag) error { return d.Done() }},
			{name: "drop without target", run: func(d *Drag) error {
				_ = d.Start(c, monday.Date)
				_, err := d.Drop()
				return err
			}},
			{name: "start twice", run: func(d *Drag) error {
				_ = d.Start(c, monday.Date)
				return d.Start(c, monday.Date)
			}},
			{name: "cancel after drop", run: func(d *Drag) error {
				_ = d.Start(c, monday.Date)
				_, _ = d.Over(monday, 0)
				_, _ = d.Drop()
				return d.Cancel()
			}},
		}
		for _, tc := range tests {
			t.Run(tc.name, func(t *testing.T) {
				assert.ErrorIs(t, tc.run(NewDrag(DefaultGeometry)), ErrInvalidTransition)
			})
		}
	})
}
