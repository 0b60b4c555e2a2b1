// Package session schedules main sessions and their timed sub-sessions, guarding teachers against double-booking.
package session

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/curriculum"
	"github.com/trezcool/ratiba/core/roster"
	"github.com/trezcool/ratiba/core/wallclock"
)

var (
	ErrNotFound        = errors.New("main session not found")
	ErrSessionNotFound = errors.New("session not found")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		CreateMainSession(ctx context.Context, ms MainSession, exec ...core.DBExecutor) (MainSession, error)
		GetMainSession(ctx context.Context, id string, exec ...core.DBExecutor) (MainSession, error)
		QueryMainSessions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]MainSession, error)
		UpdateMainSession(ctx context.Context, ms MainSession, exec ...core.DBExecutor) (MainSession, error)
		DeleteMainSession(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateSession(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)
		GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		UpdateSession(ctx context.Context, s Session, exec ...core.DBExecutor) (Session, error)
		// QuerySessionsByMainSession returns the sub-sessions of a main session ordered by start time.
		QuerySessionsByMainSession(ctx context.Context, mainSessionID string, exec ...core.DBExecutor) ([]Session, error)
		DeleteSessionsByMainSession(ctx context.Context, mainSessionID string, exec ...core.DBExecutor) error
		// FindTeacherConflicts returns the sessions of teacherID on date with start < end' and end > start'.
		FindTeacherConflicts(ctx context.Context, teacherID, date string, start, end time.Time, exec ...core.DBExecutor) ([]Session, error)
		// ListSessionViews returns the sessions in w joined with display names, in creation order.
		ListSessionViews(ctx context.Context, w Window, exec ...core.DBExecutor) ([]SessionView, error)
	}

	// Locker serializes conflict checks and inserts of competing requests for the same keys.
	Locker interface {
		// Acquire blocks until every key is held and returns the func releasing them.
		Acquire(ctx context.Context, keys ...string) (release func(), err error)
	}

	// ClassFinder is the part of the class service the scheduler needs.
	ClassFinder interface {
		Get(ctx context.Context, id string) (class.Class, error)
	}

	ServiceInterface interface {
		CreateMainSession(ctx context.Context, actor core.Actor, nm NewMainSession) (MainSession, error)
		GetMainSession(ctx context.Context, id string) (MainSession, error)
		QueryMainSessions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]MainSession, error)
		UpdateMainSession(ctx context.Context, actor core.Actor, id string, um UpdateMainSession) (MainSession, error)
		DeleteMainSession(ctx context.Context, actor core.Actor, id string) error

		GetSession(ctx context.Context, id string) (Session, error)
		UpdateSession(ctx context.Context, actor core.Actor, id string, us UpdateSession) (Session, error)
		ListSessions(ctx context.Context, w Window) ([]SessionView, error)
		DefaultLocation() *time.Location
	}

	Service struct {
		repo       Repository
		classes    ClassFinder
		roster     roster.Roster
		locker     Locker
		mailSvc    core.EmailService
		logger     core.Logger
		detector   *Detector
		defaultLoc *time.Location
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(
	repo Repository,
	classes ClassFinder,
	rost roster.Roster,
	locker Locker,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) (*Service, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(classes, "classes"),
		vala.IsNotNil(rost, "roster"),
		vala.IsNotNil(locker, "locker"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).Check(); err != nil {
		return nil, err
	}
	loc, err := wallclock.LoadZone(conf.Schedule.DefaultTimezone)
	if err != nil {
		return nil, errors.Wrap(err, "loading default timezone")
	}
	return &Service{
		repo:       repo,
		classes:    classes,
		roster:     rost,
		locker:     locker,
		mailSvc:    mailSvc,
		logger:     logger,
		detector:   NewDetector(repoFinder{repo}, rost),
		defaultLoc: loc,
	}, nil
}

func (svc *Service) DefaultLocation() *time.Location { return svc.defaultLoc }

// Location resolves a request timezone, falling back to the configured default.
func (svc *Service) Location(name string) (*time.Location, error) {
	if core.CleanString(name) == "" {
		return svc.defaultLoc, nil
	}
	loc, err := wallclock.LoadZone(name)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "timezone", Error: "unknown timezone"})
	}
	return loc, nil
}

// LockKey is the advisory lock key guarding one teacher's bookings on one date.
func LockKey(teacherID, date string) string {
	return "teacher:" + teacherID + ":" + date
}

func lockKeys(date string, planned []Session) []string {
	seen := make(map[string]struct{}, len(planned))
	keys := make([]string, 0, len(planned))
	for _, s := range planned {
		if !s.HasTeacher() {
			continue
		}
		k := LockKey(*s.TeacherID, date)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	sort.Strings(keys) // fixed acquisition order
	return keys
}

// plan converts the wall-clock sub-sessions of nm into UTC sessions, in request order.
func plan(nm NewMainSession, loc *time.Location) ([]Session, error) {
	planned := make([]Session, 0, len(nm.Sessions))
	for i, ns := range nm.Sessions {
		start, err := wallclock.ParseInstant(nm.ScheduledDate, ns.StartTime, loc)
		if err != nil {
			return nil, core.NewValidationError(nil, core.FieldError{Field: fmt.Sprintf("sessions[%d].start_time", i), Error: err.Error()})
		}
		end, err := wallclock.ParseInstant(nm.ScheduledDate, ns.EndTime, loc)
		if err != nil {
			return nil, core.NewValidationError(nil, core.FieldError{Field: fmt.Sprintf("sessions[%d].end_time", i), Error: err.Error()})
		}
		if !start.Before(end) {
			return nil, core.NewValidationError(nil, core.FieldError{Field: fmt.Sprintf("sessions[%d].end_time", i), Error: "end time must be after start time"})
		}
		planned = append(planned, Session{
			SubjectType:         SubjectType(ns.SubjectType),
			TeacherID:           core.StringPtr(ns.TeacherID),
			TeachingAssistantID: core.StringPtr(ns.TeachingAssistantID),
			LocationID:          core.StringPtr(ns.LocationID),
			StartTime:           start,
			EndTime:             end,
			Date:                nm.ScheduledDate,
			Metadata:            core.Metadata{"position": i + 1},
		})
	}
	return planned, nil
}

// CreateMainSession checks the requested sub-sessions against the teachers' existing bookings and
// stores the main session with all of its sub-sessions, or nothing.
//
// The main session is inserted first (provisional). Any conflict or failed sub-session insert then
// deletes what was written for it (aborted). The compensation is best effort: its own failures are
// logged, not returned.
func (svc *Service) CreateMainSession(ctx context.Context, actor core.Actor, nm NewMainSession) (MainSession, error) {
	loc, err := svc.Location(nm.Timezone)
	if err != nil {
		return MainSession{}, err
	}

	cls, err := svc.classes.Get(ctx, nm.ClassID)
	if err != nil {
		if errors.Cause(err) == class.ErrNotFound {
			return MainSession{}, core.NewValidationError(nil, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return MainSession{}, errors.Wrap(err, "getting class")
	}

	planned, err := plan(nm, loc)
	if err != nil {
		return MainSession{}, err
	}
	start, end, total, _ := Envelope(planned)

	now := nowFunc().UTC()
	ms := MainSession{
		ID:                   uuid.New().String(),
		Name:                 nm.MainSessionName,
		ClassID:              cls.ID,
		ScheduledDate:        nm.ScheduledDate,
		LessonID:             core.StringPtr(curriculum.LessonID(nm.MainSessionName, nm.LessonNumber, cls.CurrentUnit)),
		StartTime:            start,
		EndTime:              end,
		TotalDurationMinutes: total,
		Metadata: core.Metadata{
			metaStartTime:      wallclock.ClockIn(start, loc).String(),
			metaEndTime:        wallclock.ClockIn(end, loc).String(),
			metaTotalDuration:  total,
			metaStartTimestamp: start.Format(time.RFC3339),
			metaEndTimestamp:   end.Format(time.RFC3339),
			metaCreatedByForm:  true,
			metaTimezone:       loc.String(),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !actor.IsZero() {
		ms.Metadata[metaCreatedBy] = actor.EmployeeID
	}

	release, err := svc.locker.Acquire(ctx, lockKeys(nm.ScheduledDate, planned)...)
	if err != nil {
		return MainSession{}, errors.Wrap(err, "acquiring teacher locks")
	}
	defer release()

	cr := &creation{svc: svc, actor: actor}
	if err = cr.begin(ctx, ms); err != nil {
		return MainSession{}, err
	}

	if err = svc.detector.Check(ctx, nm.ScheduledDate, loc, planned); err != nil {
		cr.abort(ctx, err)
		if _, ok := IsConflict(err); ok {
			return MainSession{}, err
		}
		return MainSession{}, errors.Wrap(err, "detecting conflicts")
	}

	for i, s := range planned {
		s.ID = uuid.New().String()
		s.MainSessionID = cr.main.ID
		s.CreatedAt = now
		s.UpdatedAt = now
		if err = cr.add(ctx, s); err != nil {
			cr.abort(ctx, err)
			return MainSession{}, errors.Wrapf(err, "creating session %d", i+1)
		}
	}

	ms = cr.commit()
	svc.notifyAssignments(ctx, cls, ms, loc)
	return ms, nil
}

func (svc *Service) GetMainSession(ctx context.Context, id string) (MainSession, error) {
	ms, err := svc.repo.GetMainSession(ctx, core.CleanString(id))
	if err != nil {
		return MainSession{}, err
	}
	if ms.Sessions, err = svc.repo.QuerySessionsByMainSession(ctx, ms.ID); err != nil {
		return MainSession{}, errors.Wrap(err, "querying sessions")
	}
	return ms, nil
}

func (svc *Service) QueryMainSessions(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]MainSession, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryMainSessions(ctx, filter, ordering)
}

// UpdateMainSession renames and/or reschedules a main session without any conflict check.
func (svc *Service) UpdateMainSession(ctx context.Context, actor core.Actor, id string, um UpdateMainSession) (MainSession, error) {
	ms, err := svc.GetMainSession(ctx, id)
	if err != nil {
		return MainSession{}, err
	}
	loc, err := svc.Location(um.Timezone)
	if err != nil {
		return MainSession{}, err
	}
	now := nowFunc().UTC()

	if um.Name != nil {
		ms.Name = *um.Name
	}
	if um.LessonID != nil {
		ms.LessonID = core.StringPtr(*um.LessonID)
	}
	if um.ScheduledDate != nil && *um.ScheduledDate != ms.ScheduledDate {
		newDate := *um.ScheduledDate
		for i, s := range ms.Sessions {
			moved, err := moveToDate(s, newDate, loc)
			if err != nil {
				return MainSession{}, err
			}
			moved.UpdatedAt = now
			if ms.Sessions[i], err = svc.repo.UpdateSession(ctx, moved); err != nil {
				return MainSession{}, errors.Wrap(err, "moving session")
			}
		}
		ms.ScheduledDate = newDate
		if start, end, total, ok := Envelope(ms.Sessions); ok {
			ms.StartTime, ms.EndTime, ms.TotalDurationMinutes = start, end, total
		} else {
			ms.StartTime, _ = wallclock.Instant(newDate, wallclock.ClockIn(ms.StartTime, loc), loc)
			ms.EndTime, _ = wallclock.Instant(newDate, wallclock.ClockIn(ms.EndTime, loc), loc)
		}
		ms.Metadata = ms.Metadata.Clone().Merge(core.Metadata{
			metaStartTimestamp: ms.StartTime.Format(time.RFC3339),
			metaEndTimestamp:   ms.EndTime.Format(time.RFC3339),
		})
	}
	ms.UpdatedAt = now

	sessions := ms.Sessions
	if ms, err = svc.repo.UpdateMainSession(ctx, ms); err != nil {
		return MainSession{}, errors.Wrap(err, "updating main session")
	}
	ms.Sessions = sessions
	svc.logger.Info("main session updated", map[string]interface{}{"main_session_id": ms.ID}, actor)
	return ms, nil
}

// DeleteMainSession removes a main session and its sub-sessions.
func (svc *Service) DeleteMainSession(ctx context.Context, actor core.Actor, id string) error {
	ms, err := svc.repo.GetMainSession(ctx, core.CleanString(id))
	if err != nil {
		return err
	}
	if err = svc.repo.DeleteSessionsByMainSession(ctx, ms.ID); err != nil {
		return errors.Wrap(err, "deleting sessions")
	}
	if err = svc.repo.DeleteMainSession(ctx, ms.ID); err != nil {
		return errors.Wrap(err, "deleting main session")
	}
	svc.logger.Info("main session deleted", map[string]interface{}{"main_session_id": ms.ID}, actor)
	return nil
}

func (svc *Service) GetSession(ctx context.Context, id string) (Session, error) {
	return svc.repo.GetSession(ctx, core.CleanString(id))
}

// UpdateSession applies us to one session. Other bookings are not re-checked: two sessions of the
// same teacher can be made to overlap through this path.
func (svc *Service) UpdateSession(ctx context.Context, actor core.Actor, id string, us UpdateSession) (Session, error) {
	s, err := svc.GetSession(ctx, id)
	if err != nil {
		return Session{}, err
	}
	loc, err := svc.Location(us.Timezone)
	if err != nil {
		return Session{}, err
	}

	if us.TeacherID != nil {
		s.TeacherID = core.StringPtr(*us.TeacherID)
	}
	if us.TeachingAssistantID != nil {
		s.TeachingAssistantID = core.StringPtr(*us.TeachingAssistantID)
	}
	if us.LocationID != nil {
		s.LocationID = core.StringPtr(*us.LocationID)
	}

	date := s.Date
	if us.Date != nil && *us.Date != s.Date {
		date = *us.Date
		if s, err = moveToDate(s, date, loc); err != nil {
			return Session{}, err
		}
	}
	if us.StartTime != nil && *us.StartTime != "" {
		if s.StartTime, err = parseTime(*us.StartTime, date, loc); err != nil {
			return Session{}, core.NewValidationError(nil, core.FieldError{Field: "start_time", Error: err.Error()})
		}
	}
	if us.EndTime != nil && *us.EndTime != "" {
		if s.EndTime, err = parseTime(*us.EndTime, date, loc); err != nil {
			return Session{}, core.NewValidationError(nil, core.FieldError{Field: "end_time", Error: err.Error()})
		}
	}
	if !s.StartTime.Before(s.EndTime) {
		return Session{}, core.NewValidationError(nil, core.FieldError{Field: "end_time", Error: "end time must be after start time"})
	}
	s.UpdatedAt = nowFunc().UTC()

	updated, err := svc.repo.UpdateSession(ctx, s)
	if err != nil {
		return Session{}, errors.Wrap(err, "updating session")
	}
	svc.logger.Info("session updated", map[string]interface{}{"session_id": updated.ID}, actor)
	return updated, nil
}

func (svc *Service) ListSessions(ctx context.Context, w Window) ([]SessionView, error) {
	views, err := svc.repo.ListSessionViews(ctx, w)
	if err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	if views == nil {
		views = []SessionView{}
	}
	return views, nil
}

// parseTime reads an RFC3339 instant, or an HH:MM wall-clock time on date in loc.
func parseTime(value, date string, loc *time.Location) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	return wallclock.ParseInstant(date, value, loc)
}

// moveToDate keeps the wall-clock times of s in loc and puts them on date.
func moveToDate(s Session, date string, loc *time.Location) (Session, error) {
	start, err := wallclock.Instant(date, wallclock.ClockIn(s.StartTime, loc), loc)
	if err != nil {
		return Session{}, core.NewValidationError(nil, core.FieldError{Field: "date", Error: err.Error()})
	}
	dur := s.EndTime.Sub(s.StartTime)
	s.StartTime = start
	s.EndTime = start.Add(dur)
	s.Date = date
	return s, nil
}

// repoFinder adapts Repository to ConflictFinder.
type repoFinder struct {
	repo Repository
}

func (f repoFinder) FindTeacherConflicts(ctx context.Context, teacherID, date string, start, end time.Time) ([]Session, error) {
	return f.repo.FindTeacherConflicts(ctx, teacherID, date, start, end)
}
