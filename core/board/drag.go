package board

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/session"
	"github.com/trezcool/ratiba/core/wallclock"
)

type State int

const (
	StateIdle State = iota
	StateDragging
	StateOverTarget
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDragging:
		return "dragging"
	case StateOverTarget:
		return "over-target"
	case StateDropped:
		return "dropped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var ErrInvalidTransition = errors.New("invalid drag transition")

// Preview is the candidate placement shown while a card hovers over a column.
type Preview struct {
	SessionID     string          `json:"session_id"`
	Date          string          `json:"date"`
	Start         wallclock.Clock `json:"-"`
	End           wallclock.Clock `json:"-"`
	StartTime     string          `json:"start_time"`
	EndTime       string          `json:"end_time"`
	TimeRange     string          `json:"time_range"`
	OffsetMinutes int             `json:"offset_minutes"`
	DateChanged   bool            `json:"date_changed"`
}

// Update is the session change a drop issues. The column date is always sent so the
// start and end land on the day the card was dropped on in the board's zone.
func (p Preview) Update(timezone string) session.UpdateSession {
	start, end, date := p.Start.String(), p.End.String(), p.Date
	return session.UpdateSession{Date: &date, StartTime: &start, EndTime: &end, Timezone: timezone}
}

// Drag tracks one card through idle -> dragging -> over-target -> dropped -> idle.
// Cancel returns to idle from dragging or over-target. A Drag is not safe for concurrent use.
type Drag struct {
	geom     Geometry
	state    State
	card     Card
	fromDate string
	preview  Preview
}

func NewDrag(g Geometry) *Drag {
	return &Drag{geom: g}
}

func (d *Drag) State() State { return d.state }

func (d *Drag) transition(to State, allowed ...State) error {
	for _, from := range allowed {
		if d.state == from {
			d.state = to
			return nil
		}
	}
	return errors.Wrapf(ErrInvalidTransition, "%s -> %s", d.state, to)
}

// Start captures card, sitting in the column of fromDate.
func (d *Drag) Start(card Card, fromDate string) error {
	if err := d.transition(StateDragging, StateIdle); err != nil {
		return err
	}
	d.card, d.fromDate, d.preview = card, fromDate, Preview{}
	return nil
}

// Over computes the preview for the pointer at y over the column of target.
func (d *Drag) Over(target Day, y float64) (Preview, error) {
	if d.state != StateDragging && d.state != StateOverTarget {
		return Preview{}, errors.Wrapf(ErrInvalidTransition, "%s -> %s", d.state, StateOverTarget)
	}
	start, end, err := d.geom.Candidate(target.EarliestSlot(), y, d.card.DurationMinutes)
	if err != nil {
		return Preview{}, err
	}
	d.state = StateOverTarget
	d.preview = Preview{
		SessionID:     d.card.SessionID,
		Date:          target.Date,
		Start:         start,
		End:           end,
		StartTime:     start.String(),
		EndTime:       end.String(),
		TimeRange:     start.String() + " - " + end.String(),
		OffsetMinutes: d.geom.PointerToOffset(y),
		DateChanged:   target.Date != d.fromDate,
	}
	return d.preview, nil
}

// Drop fixes the last preview as the move to issue.
func (d *Drag) Drop() (Preview, error) {
	if err := d.transition(StateDropped, StateOverTarget); err != nil {
		return Preview{}, err
	}
	return d.preview, nil
}

// Done returns to idle once the dropped update has been issued.
func (d *Drag) Done() error {
	if err := d.transition(StateIdle, StateDropped); err != nil {
		return err
	}
	d.card, d.preview = Card{}, Preview{}
	return nil
}

func (d *Drag) Cancel() error {
	if err := d.transition(StateIdle, StateDragging, StateOverTarget); err != nil {
		return err
	}
	d.card, d.preview = Card{}, Preview{}
	return nil
}
