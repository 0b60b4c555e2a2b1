// Package board lays sessions out on a day or week schedule board and turns pointer drags into reschedules.
package board

import (
	"math"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/session"
	"github.com/trezcool/ratiba/core/timeslot"
	"github.com/trezcool/ratiba/core/wallclock"
)

type View string

const (
	ViewDay  View = "day"
	ViewWeek View = "week"
)

var (
	ErrInvalidView  = errors.New("invalid view; expected day or week")
	ErrPastMidnight = errors.New("session would end after midnight")
)

func (v View) Valid() bool { return v == ViewDay || v == ViewWeek }

// Geometry maps board pixels to minutes: one slot of SlotHeightPx pixels spans SlotMinutes,
// and pointer offsets snap to SnapMinutes.
type Geometry struct {
	SlotMinutes  int
	SlotHeightPx int
	SnapMinutes  int
}

var DefaultGeometry = Geometry{SlotMinutes: timeslot.SlotMinutes, SlotHeightPx: 50, SnapMinutes: 5}

func GeometryFromConfig(conf core.ScheduleConfig) Geometry {
	g := DefaultGeometry
	if conf.SlotMinutes > 0 {
		g.SlotMinutes = conf.SlotMinutes
	}
	if conf.SlotHeightPx > 0 {
		g.SlotHeightPx = conf.SlotHeightPx
	}
	if conf.SnapMinutes > 0 {
		g.SnapMinutes = conf.SnapMinutes
	}
	return g
}

// PointerToOffset converts a pointer y relative to the column top into minutes,
// rounded to the nearest snap. Pointers above the column count as 0.
func (g Geometry) PointerToOffset(y float64) int {
	if y <= 0 {
		return 0
	}
	minutes := y * float64(g.SlotMinutes) / float64(g.SlotHeightPx)
	snap := float64(g.SnapMinutes)
	return int(math.Round(minutes/snap) * snap)
}

// CandidateStart adds the pointer offset to the day's earliest slot.
func (g Geometry) CandidateStart(earliestSlot wallclock.Clock, y float64) wallclock.Clock {
	return earliestSlot.Add(g.PointerToOffset(y))
}

// Candidate is CandidateStart plus the end keeping durationMinutes.
func (g Geometry) Candidate(earliestSlot wallclock.Clock, y float64, durationMinutes int) (start, end wallclock.Clock, err error) {
	start = g.CandidateStart(earliestSlot, y)
	end = start.Add(durationMinutes)
	if !end.Valid() {
		return 0, 0, errors.Wrapf(ErrPastMidnight, "%s + %dm", start, durationMinutes)
	}
	return start, end, nil
}

func (g Geometry) pixels(minutes int) int {
	return minutes * g.SlotHeightPx / g.SlotMinutes
}

// Card is one session as placed in a day column.
type Card struct {
	SessionID             string              `json:"session_id"`
	MainSessionID         string              `json:"main_session_id"`
	MainSessionName       string              `json:"main_session_name"`
	LessonID              *string             `json:"lesson_id"`
	ClassID               string              `json:"class_id"`
	ClassName             string              `json:"class_name"`
	SubjectType           session.SubjectType `json:"subject_type"`
	TeacherID             *string             `json:"teacher_id"`
	TeacherName           string              `json:"teacher_name"`
	TeachingAssistantID   *string             `json:"teaching_assistant_id"`
	TeachingAssistantName string              `json:"teaching_assistant_name"`
	LocationName          string              `json:"location_name"`
	Start                 wallclock.Clock     `json:"-"`
	End                   wallclock.Clock     `json:"-"`
	TimeRange             string              `json:"time_range"`
	DurationMinutes       int                 `json:"duration_minutes"`
	SlotIndex             int                 `json:"slot_index"`
	TopPx                 int                 `json:"top_px"`
	HeightPx              int                 `json:"height_px"`
}

type Day struct {
	Date  string   `json:"date"`
	Slots []string `json:"slots"`
	Cards []Card   `json:"cards"`

	earliest wallclock.Clock
}

// EarliestSlot is the wall-clock time at the top of the column.
func (d Day) EarliestSlot() wallclock.Clock { return d.earliest }

// Card returns the card of sessionID in d.
func (d Day) Card(sessionID string) (Card, bool) {
	for _, c := range d.Cards {
		if c.SessionID == sessionID {
			return c, true
		}
	}
	return Card{}, false
}

type Board struct {
	View      View   `json:"view"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Timezone  string `json:"timezone"`
	Days      []Day  `json:"days"`
}

// Day returns the column for date; only dates with sessions have one.
func (b Board) Day(date string) (Day, bool) {
	for _, d := range b.Days {
		if d.Date == date {
			return d, true
		}
	}
	return Day{}, false
}

// Range returns the dates a view anchored on date covers: the date itself, or its Monday-to-Sunday week.
func Range(view View, date string) (start, end string, err error) {
	if !view.Valid() {
		return "", "", ErrInvalidView
	}
	d, err := wallclock.ParseDate(date)
	if err != nil {
		return "", "", err
	}
	if view == ViewDay {
		return date, date, nil
	}
	monday := wallclock.WeekStart(d)
	return monday.Format(wallclock.DateLayout), monday.AddDate(0, 0, 6).Format(wallclock.DateLayout), nil
}

// Build places views on a board covering [start, end] in loc. Days without sessions are left out,
// and each day's slots come from the sessions it holds.
func Build(view View, start, end string, loc *time.Location, views []session.SessionView, g Geometry) Board {
	b := Board{View: view, StartDate: start, EndDate: end, Timezone: loc.String(), Days: []Day{}}

	byDay := make(map[string][]session.SessionView)
	spans := make(map[string][]timeslot.Span)
	for _, v := range views {
		date := wallclock.DateIn(v.StartTime, loc)
		if date < start || date > end {
			continue
		}
		byDay[date] = append(byDay[date], v)
		spans[date] = append(spans[date], span(v.Session, loc))
	}

	for _, date := range timeslot.Days(spans) {
		earliest, _ := timeslot.Earliest(spans[date])
		day := Day{Date: date, Slots: timeslot.Derive(spans[date]), earliest: earliest}

		sessions := byDay[date]
		sort.SliceStable(sessions, func(i, j int) bool { return sessions[i].StartTime.Before(sessions[j].StartTime) })
		for _, v := range sessions {
			day.Cards = append(day.Cards, card(v, loc, earliest, g))
		}
		b.Days = append(b.Days, day)
	}
	return b
}

func span(s session.Session, loc *time.Location) timeslot.Span {
	start := wallclock.ClockIn(s.StartTime, loc)
	return timeslot.Span{Start: start, End: start.Add(s.DurationMinutes())}
}

func card(v session.SessionView, loc *time.Location, earliest wallclock.Clock, g Geometry) Card {
	sp := span(v.Session, loc)
	duration := v.DurationMinutes()
	return Card{
		SessionID:             v.ID,
		MainSessionID:         v.MainSessionID,
		MainSessionName:       v.MainSessionName,
		LessonID:              v.LessonID,
		ClassID:               v.ClassID,
		ClassName:             v.ClassName,
		SubjectType:           v.SubjectType,
		TeacherID:             v.TeacherID,
		TeacherName:           v.TeacherName,
		TeachingAssistantID:   v.TeachingAssistantID,
		TeachingAssistantName: v.TeachingAssistantName,
		LocationName:          v.LocationName,
		Start:                 sp.Start,
		End:                   sp.End,
		TimeRange:             sp.Start.String() + " - " + sp.End.String(),
		DurationMinutes:       duration,
		SlotIndex:             timeslot.Index(earliest, sp.Start),
		TopPx:                 g.pixels(int(sp.Start - earliest)),
		HeightPx:              g.pixels(duration),
	}
}
