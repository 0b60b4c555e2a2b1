package session

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/roster"
	"github.com/trezcool/ratiba/core/wallclock"
)

// ConflictDetails is the client-facing description of a teacher double-booking.
type ConflictDetails struct {
	TeacherName   string `json:"teacher_name"`
	ConflictTime  string `json:"conflict_time"`
	ConflictDate  string `json:"conflict_date"`
	SessionType   string `json:"session_type"`
	RequestedTime string `json:"requested_time"`
}

// ConflictError reports the first sub-session of a batch whose teacher is already booked.
type ConflictError struct {
	Position          int // index of the offending sub-session in the request
	TeacherID         string
	ExistingSessionID string
	Details           ConflictDetails
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf(
		"teacher %s already has a session at %s on %s (requested %s for %s)",
		e.Details.TeacherName, e.Details.ConflictTime, e.Details.ConflictDate, e.Details.RequestedTime, e.Details.SessionType,
	)
}

// IsConflict reports whether the cause of err is a *ConflictError.
func IsConflict(err error) (*ConflictError, bool) {
	cErr, ok := errors.Cause(err).(*ConflictError)
	return cErr, ok
}

// ConflictFinder looks up stored sessions of a teacher on a date that overlap [start, end).
type ConflictFinder interface {
	FindTeacherConflicts(ctx context.Context, teacherID, date string, start, end time.Time) ([]Session, error)
}

// Detector protects the teacher dimension against double-booking.
// Assistants and rooms are not checked.
type Detector struct {
	finder ConflictFinder
	roster roster.Roster
}

func NewDetector(finder ConflictFinder, rost roster.Roster) *Detector {
	return &Detector{finder: finder, roster: rost}
}

// Check walks planned in order and returns a *ConflictError for the first sub-session that overlaps
// a stored session of its teacher on date. Sub-sessions without a teacher are skipped.
// Planned sub-sessions are not checked against each other.
func (d *Detector) Check(ctx context.Context, date string, loc *time.Location, planned []Session) error {
	for i, s := range planned {
		if !s.HasTeacher() {
			continue
		}
		existing, err := d.finder.FindTeacherConflicts(ctx, *s.TeacherID, date, s.StartTime, s.EndTime)
		if err != nil {
			return errors.Wrapf(err, "checking conflicts of session %d", i+1)
		}
		if len(existing) == 0 {
			continue
		}
		return d.conflict(ctx, i, s, earliest(existing), date, loc)
	}
	return nil
}

func (d *Detector) conflict(ctx context.Context, pos int, s Session, existing Session, date string, loc *time.Location) error {
	teacherName := *s.TeacherID
	emp, err := d.roster.GetEmployee(ctx, *s.TeacherID)
	switch {
	case err == nil:
		teacherName = emp.Name
	case errors.Cause(err) != roster.ErrEmployeeNotFound:
		return errors.Wrap(err, "getting conflicting teacher")
	}
	return &ConflictError{
		Position:          pos,
		TeacherID:         *s.TeacherID,
		ExistingSessionID: existing.ID,
		Details: ConflictDetails{
			TeacherName:   teacherName,
			ConflictTime:  wallclock.FormatRange(existing.StartTime, existing.EndTime, loc),
			ConflictDate:  date,
			SessionType:   string(s.SubjectType),
			RequestedTime: wallclock.FormatRange(s.StartTime, s.EndTime, loc),
		},
	}
}

func earliest(sessions []Session) Session {
	first := sessions[0]
	for _, s := range sessions[1:] {
		if s.StartTime.Before(first.StartTime) {
			first = s
		}
	}
	return first
}
