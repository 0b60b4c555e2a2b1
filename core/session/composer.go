package session

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/curriculum"
	"github.com/trezcool/ratiba/core/wallclock"
)

var (
	ErrDraftIndex = errors.New("no sub-session at this position")

	errNoClass      = errors.New("please select a class")
	errNoLessonName = errors.New("please select a lesson or enter a lesson name")
	errNoDate       = errors.New("please select a date")
	errNoDrafts     = errors.New("please add at least one session")
	errNoEnvelope   = errors.New("could not determine the start and end time of the main session")
)

// Draft is a sub-session being edited in the main session form. Times are HH:MM.
type Draft struct {
	SubjectType         string `json:"subject_type"`
	TeacherID           string `json:"teacher_id"`
	TeachingAssistantID string `json:"teaching_assistant_id"`
	LocationID          string `json:"location_id"`
	StartTime           string `json:"start_time"`
	EndTime             string `json:"end_time"`
}

func (d Draft) clocks() (start, end wallclock.Clock, ok bool) {
	start, err := wallclock.ParseClock(d.StartTime)
	if err != nil {
		return 0, 0, false
	}
	end, err = wallclock.ParseClock(d.EndTime)
	if err != nil {
		return 0, 0, false
	}
	return start, end, true
}

// DurationMinutes is end - start, clamped to 0 when either time is missing or end <= start.
func (d Draft) DurationMinutes() int {
	start, end, ok := d.clocks()
	if !ok || end <= start {
		return 0
	}
	return int(end - start)
}

// Composer assembles sub-session drafts into a main session create request.
// It is the form-side counterpart of Service.CreateMainSession and never touches storage.
type Composer struct {
	ClassID     string
	ClassName   string
	ProgramType string
	CurrentUnit string

	LessonIndex   string // curriculum classes
	ManualName    string // everything else, or to override
	ScheduledDate string
	Timezone      string

	drafts []Draft
}

func NewComposer() *Composer {
	return &Composer{drafts: make([]Draft, 0, 4)}
}

// SetClass selects the class the lesson belongs to.
func (c *Composer) SetClass(cls class.Class) {
	c.ClassID = cls.ID
	c.ClassName = cls.Name
	c.ProgramType = cls.ProgramType
	c.CurrentUnit = cls.CurrentUnit
}

// Add appends a draft and returns its position.
func (c *Composer) Add(d Draft) int {
	c.drafts = append(c.drafts, d)
	return len(c.drafts) - 1
}

func (c *Composer) Update(i int, d Draft) error {
	if i < 0 || i >= len(c.drafts) {
		return ErrDraftIndex
	}
	c.drafts[i] = d
	return nil
}

func (c *Composer) Remove(i int) error {
	if i < 0 || i >= len(c.drafts) {
		return ErrDraftIndex
	}
	c.drafts = append(c.drafts[:i], c.drafts[i+1:]...)
	return nil
}

// Drafts returns a copy of the drafts in form order.
func (c *Composer) Drafts() []Draft {
	return append([]Draft(nil), c.drafts...)
}

// Envelope is the earliest start and latest end among drafts that have both times set.
func (c *Composer) Envelope() (start, end wallclock.Clock, ok bool) {
	for _, d := range c.drafts {
		s, e, valid := d.clocks()
		if !valid {
			continue
		}
		if !ok || s < start {
			start = s
		}
		if !ok || e > end {
			end = e
		}
		ok = true
	}
	return start, end, ok
}

// TotalDuration sums the draft durations; gaps between drafts are not counted.
func (c *Composer) TotalDuration() int {
	var total int
	for _, d := range c.drafts {
		total += d.DurationMinutes()
	}
	return total
}

// LessonName is the curriculum name when it resolves, the manual name otherwise.
func (c *Composer) LessonName() string {
	if name := curriculum.LessonName(c.ClassName, c.ProgramType, c.CurrentUnit, c.LessonIndex); name != "" {
		return name
	}
	return core.CleanString(c.ManualName)
}

// Validate checks the form before submission and reports the first problem found.
func (c *Composer) Validate() error {
	fail := func(field string, err error) error {
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}

	if core.CleanString(c.ClassID) == "" {
		return fail("class_id", errNoClass)
	}
	if c.LessonName() == "" {
		return fail("main_session_name", errNoLessonName)
	}
	if _, err := wallclock.ParseDate(c.ScheduledDate); err != nil {
		return fail("scheduled_date", errNoDate)
	}
	if len(c.drafts) == 0 {
		return fail("sessions", errNoDrafts)
	}
	for i, d := range c.drafts {
		if err := validateDraft(d); err != nil {
			return fail(fmt.Sprintf("sessions[%d]", i), errors.Errorf("session %d: %v", i+1, err))
		}
	}
	if _, _, ok := c.Envelope(); !ok {
		return fail("sessions", errNoEnvelope)
	}
	return nil
}

func validateDraft(d Draft) error {
	switch {
	case core.CleanString(d.SubjectType) == "":
		return errors.New("subject type is required")
	case core.CleanString(d.TeacherID) == "":
		return errors.New("teacher is required")
	case core.CleanString(d.LocationID) == "":
		return errors.New("room is required")
	case core.CleanString(d.StartTime) == "":
		return errors.New("start time is required")
	case core.CleanString(d.EndTime) == "":
		return errors.New("end time is required")
	}
	if _, _, ok := d.clocks(); !ok {
		return errors.New("times must be formatted as HH:MM")
	}
	if d.DurationMinutes() <= 0 {
		return errors.New("end time must be after start time")
	}
	return nil
}

// Build validates the form and returns the create request it describes.
func (c *Composer) Build() (NewMainSession, error) {
	if err := c.Validate(); err != nil {
		return NewMainSession{}, err
	}
	start, end, _ := c.Envelope()
	total := c.TotalDuration()

	nm := NewMainSession{
		MainSessionName:      c.LessonName(),
		ScheduledDate:        core.CleanString(c.ScheduledDate),
		StartTime:            start.String(),
		EndTime:              end.String(),
		TotalDurationMinutes: &total,
		ClassID:              core.CleanString(c.ClassID),
		Sessions:             make([]NewSession, 0, len(c.drafts)),
		Timezone:             core.CleanString(c.Timezone),
	}
	if curriculum.LessonName(c.ClassName, c.ProgramType, c.CurrentUnit, c.LessonIndex) != "" {
		nm.LessonNumber = c.LessonIndex
	}
	for _, d := range c.drafts {
		dur := d.DurationMinutes()
		nm.Sessions = append(nm.Sessions, NewSession{
			SubjectType:         core.CleanString(d.SubjectType),
			TeacherID:           core.CleanString(d.TeacherID),
			TeachingAssistantID: core.CleanString(d.TeachingAssistantID),
			LocationID:          core.CleanString(d.LocationID),
			StartTime:           core.CleanString(d.StartTime),
			EndTime:             core.CleanString(d.EndTime),
			DurationMinutes:     &dur,
		})
	}
	return nm, nil
}
