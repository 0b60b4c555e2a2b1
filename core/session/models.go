package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/wallclock"
)

// SubjectType tags what a sub-session teaches. Values outside the known set are accepted as free text.
type SubjectType string

const (
	SubjectTSI SubjectType = "TSI"
	SubjectREP SubjectType = "REP"
	SubjectGRA SubjectType = "GRA"
	SubjectVOC SubjectType = "VOC"
	SubjectLIS SubjectType = "LIS"
	SubjectREA SubjectType = "REA"
)

var SubjectTypes = []SubjectType{SubjectTSI, SubjectREP, SubjectGRA, SubjectVOC, SubjectLIS, SubjectREA}

func (st SubjectType) Known() bool {
	for _, known := range SubjectTypes {
		if st == known {
			return true
		}
	}
	return false
}

// metadata keys written on main sessions created through the form
const (
	metaStartTime      = "start_time"
	metaEndTime        = "end_time"
	metaTotalDuration  = "total_duration_minutes"
	metaStartTimestamp = "start_timestamp"
	metaEndTimestamp   = "end_timestamp"
	metaCreatedByForm  = "created_by_form"
	metaCreatedBy      = "created_by"
	metaTimezone       = "timezone"
)

// MainSession is one scheduled lesson occurrence for a class.
// StartTime/EndTime span its sub-sessions; TotalDurationMinutes is the sum of their durations.
type MainSession struct {
	ID                   string        `json:"id"`
	Name                 string        `json:"name"`
	ClassID              string        `json:"class_id"`
	ScheduledDate        string        `json:"scheduled_date"`
	LessonID             *string       `json:"lesson_id"`
	StartTime            time.Time     `json:"start_time"` // UTC
	EndTime              time.Time     `json:"end_time"`   // UTC
	TotalDurationMinutes int           `json:"total_duration_minutes"`
	Metadata             core.Metadata `json:"metadata"`
	CreatedAt            time.Time     `json:"created_at"` // UTC
	UpdatedAt            time.Time     `json:"updated_at"` // UTC
	Sessions             []Session     `json:"sessions,omitempty"`
}

// Session is one timed block of a main session.
type Session struct {
	ID                  string        `json:"id"`
	MainSessionID       string        `json:"main_session_id"`
	SubjectType         SubjectType   `json:"subject_type"`
	TeacherID           *string       `json:"teacher_id"`
	TeachingAssistantID *string       `json:"teaching_assistant_id"`
	LocationID          *string       `json:"location_id"`
	StartTime           time.Time     `json:"start_time"` // UTC
	EndTime             time.Time     `json:"end_time"`   // UTC
	Date                string        `json:"date"`
	Metadata            core.Metadata `json:"metadata"`
	CreatedAt           time.Time     `json:"created_at"` // UTC
	UpdatedAt           time.Time     `json:"updated_at"` // UTC
}

// DurationMinutes is end - start, 0 when the interval is empty or inverted.
func (s Session) DurationMinutes() int {
	return wallclock.Minutes(s.StartTime, s.EndTime)
}

// Overlaps reports whether [s.StartTime, s.EndTime) intersects [start, end). Touching intervals do not overlap.
func (s Session) Overlaps(start, end time.Time) bool {
	return s.StartTime.Before(end) && s.EndTime.After(start)
}

func (s Session) HasTeacher() bool { return s.TeacherID != nil && *s.TeacherID != "" }

// SessionView is a session joined with its main session, class and roster display names.
type SessionView struct {
	Session
	MainSessionName       string  `json:"main_session_name"`
	LessonID              *string `json:"lesson_id"`
	ClassID               string  `json:"class_id"`
	ClassName             string  `json:"class_name"`
	TeacherName           string  `json:"teacher_name"`
	TeachingAssistantName string  `json:"teaching_assistant_name"`
	LocationName          string  `json:"location_name"`
}

// Envelope computes the span and the summed duration of sessions; ok is false for no sessions.
func Envelope(sessions []Session) (start, end time.Time, total int, ok bool) {
	for i, s := range sessions {
		if i == 0 || s.StartTime.Before(start) {
			start = s.StartTime
		}
		if i == 0 || s.EndTime.After(end) {
			end = s.EndTime
		}
		total += s.DurationMinutes()
	}
	return start, end, total, len(sessions) > 0
}

// NewSession is one sub-session of a create request. Times are wall-clock in the request timezone.
type NewSession struct {
	SubjectType         string `json:"subject_type" validate:"required,notblank"`
	TeacherID           string `json:"teacher_id"`
	TeachingAssistantID string `json:"teaching_assistant_id"`
	LocationID          string `json:"location_id"`
	StartTime           string `json:"start_time" validate:"required,hhmm"`
	EndTime             string `json:"end_time" validate:"required,hhmm"`
	DurationMinutes     *int   `json:"duration_minutes,omitempty" validate:"omitempty,min=0"`
}

// NewMainSession contains the information needed to create a main session with its sub-sessions.
// StartTime, EndTime and TotalDurationMinutes are informative; the server derives them from Sessions.
type NewMainSession struct {
	MainSessionName      string       `json:"main_session_name" validate:"required,notblank"`
	ScheduledDate        string       `json:"scheduled_date" validate:"required,isodate"`
	StartTime            string       `json:"start_time,omitempty" validate:"omitempty,hhmm"`
	EndTime              string       `json:"end_time,omitempty" validate:"omitempty,hhmm"`
	TotalDurationMinutes *int         `json:"total_duration_minutes,omitempty" validate:"omitempty,min=0"`
	ClassID              string       `json:"class_id" validate:"required,notblank"`
	Sessions             []NewSession `json:"sessions" validate:"required,min=1,dive"`
	LessonNumber         string       `json:"lesson_number,omitempty"`
	Timezone             string       `json:"timezone,omitempty" validate:"omitempty,timezone_id"`
}

func (nm *NewMainSession) Clean() {
	nm.MainSessionName = core.CleanString(nm.MainSessionName)
	nm.ScheduledDate = core.CleanString(nm.ScheduledDate)
	nm.StartTime = core.CleanString(nm.StartTime)
	nm.EndTime = core.CleanString(nm.EndTime)
	nm.ClassID = core.CleanString(nm.ClassID)
	nm.LessonNumber = core.CleanString(nm.LessonNumber)
	nm.Timezone = core.CleanString(nm.Timezone)
	for i := range nm.Sessions {
		s := &nm.Sessions[i]
		s.SubjectType = core.CleanString(s.SubjectType)
		s.TeacherID = core.CleanString(s.TeacherID)
		s.TeachingAssistantID = core.CleanString(s.TeachingAssistantID)
		s.LocationID = core.CleanString(s.LocationID)
		s.StartTime = core.CleanString(s.StartTime)
		s.EndTime = core.CleanString(s.EndTime)
	}
}

func (nm *NewMainSession) Validate(validate *validator.Validate) error {
	nm.Clean()
	if err := validate.Struct(nm); err != nil {
		return err
	}
	for i, s := range nm.Sessions {
		start, _ := wallclock.ParseClock(s.StartTime)
		end, _ := wallclock.ParseClock(s.EndTime)
		if end <= start {
			return core.NewValidationError(nil, core.FieldError{
				Field: fmt.Sprintf("sessions[%d].end_time", i),
				Error: "end time must be after start time",
			})
		}
	}
	return nil
}

// UpdateSession holds the optional changes to one session; nil fields are left alone.
// An empty teacher or assistant id clears the reference.
// StartTime/EndTime accept RFC3339 instants or HH:MM on Date (or the stored date) in Timezone.
type UpdateSession struct {
	TeacherID           *string `json:"teacher_id"`
	TeachingAssistantID *string `json:"teaching_assistant_id"`
	LocationID          *string `json:"location_id"`
	StartTime           *string `json:"start_time"`
	EndTime             *string `json:"end_time"`
	Date                *string `json:"date" validate:"omitempty,isodate"`
	Timezone            string  `json:"timezone" validate:"omitempty,timezone_id"`
}

func (us *UpdateSession) IsEmpty() bool {
	return us.TeacherID == nil && us.TeachingAssistantID == nil && us.LocationID == nil &&
		us.StartTime == nil && us.EndTime == nil && us.Date == nil
}

func (us *UpdateSession) Validate(validate *validator.Validate) error {
	us.Timezone = core.CleanString(us.Timezone)
	for _, p := range []*string{us.TeacherID, us.TeachingAssistantID, us.LocationID, us.StartTime, us.EndTime, us.Date} {
		if p != nil {
			*p = core.CleanString(*p)
		}
	}
	if us.Date != nil && *us.Date == "" {
		us.Date = nil
	}
	if err := validate.Struct(us); err != nil {
		return err
	}
	if us.IsEmpty() {
		return core.NewValidationError(nil, core.FieldError{Field: "non_field_errors", Error: "nothing to update"})
	}
	return nil
}

// UpdateMainSession renames or reschedules a main session. Rescheduling moves every sub-session
// to the new date at the same wall-clock times. Nothing is re-validated against other bookings.
type UpdateMainSession struct {
	Name          *string `json:"name"`
	ScheduledDate *string `json:"scheduled_date" validate:"omitempty,isodate"`
	LessonID      *string `json:"lesson_id"`
	Timezone      string  `json:"timezone" validate:"omitempty,timezone_id"`
}

func (um *UpdateMainSession) Validate(validate *validator.Validate) error {
	um.Timezone = core.CleanString(um.Timezone)
	if um.Name != nil {
		*um.Name = core.CleanString(*um.Name)
		if *um.Name == "" {
			return core.NewValidationError(nil, core.FieldError{Field: "name", Error: "this field cannot be blank"})
		}
	}
	if um.ScheduledDate != nil {
		*um.ScheduledDate = core.CleanString(*um.ScheduledDate)
	}
	if um.LessonID != nil {
		*um.LessonID = core.CleanString(*um.LessonID)
	}
	return validate.Struct(um)
}

// Window selects the sessions listed on a calendar: Date in [StartDate, EndDate], optionally one class.
type Window struct {
	StartDate string `query:"start_date" validate:"required,isodate"`
	EndDate   string `query:"end_date" validate:"required,isodate"`
	ClassID   string `query:"class_id"`
}

func (w *Window) Validate(validate *validator.Validate) error {
	w.StartDate = core.CleanString(w.StartDate)
	w.EndDate = core.CleanString(w.EndDate)
	w.ClassID = core.CleanString(w.ClassID)
	if err := validate.Struct(w); err != nil {
		return err
	}
	if w.EndDate < w.StartDate {
		return core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "must not be before start_date"})
	}
	return nil
}

// Contains reports whether date (YYYY-MM-DD) falls in the window.
func (w Window) Contains(date string) bool {
	return date >= w.StartDate && date <= w.EndDate
}

type QueryFilter struct {
	ClassID  string `query:"class_id"`
	DateFrom string `query:"date_from"`
	DateTo   string `query:"date_to"`
	Search   string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.ClassID = core.CleanString(qf.ClassID)
	qf.DateFrom = core.CleanString(qf.DateFrom)
	qf.DateTo = core.CleanString(qf.DateTo)
	qf.Search = strings.ToLower(core.CleanString(qf.Search))
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf == nil || (qf.ClassID == "" && qf.DateFrom == "" && qf.DateTo == "" && qf.Search == "")
}
