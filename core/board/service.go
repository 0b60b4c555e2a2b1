package board

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/session"
	"github.com/trezcool/ratiba/core/wallclock"
)

var ErrCardNotOnBoard = errors.New("session is not on the board")

// Sessions is the part of the session service the board drives.
type Sessions interface {
	GetSession(ctx context.Context, id string) (session.Session, error)
	UpdateSession(ctx context.Context, actor core.Actor, id string, us session.UpdateSession) (session.Session, error)
	ListSessions(ctx context.Context, w session.Window) ([]session.SessionView, error)
	DefaultLocation() *time.Location
}

type (
	Query struct {
		View     View   `query:"view" validate:"omitempty,oneof=day week"`
		Date     string `query:"date" validate:"required,isodate"`
		Timezone string `query:"timezone" validate:"omitempty,timezone_id"`
		ClassID  string `query:"class_id"`
	}

	// DropRequest locates a drag on the board it was made on: the card, the target column and the
	// pointer y relative to that column's top.
	DropRequest struct {
		SessionID  string  `json:"session_id" validate:"required,notblank"`
		TargetDate string  `json:"target_date" validate:"required,isodate"`
		PointerY   float64 `json:"pointer_y"`
		View       View    `json:"view" validate:"omitempty,oneof=day week"`
		Timezone   string  `json:"timezone" validate:"omitempty,timezone_id"`
		ClassID    string  `json:"class_id"`
	}

	// Edit is the inline popover; every non-nil field is sent as its own update.
	Edit struct {
		TeacherID           *string `json:"teacher_id"`
		TeachingAssistantID *string `json:"teaching_assistant_id"`
		StartTime           *string `json:"start_time" validate:"omitempty,hhmm"`
		EndTime             *string `json:"end_time" validate:"omitempty,hhmm"`
		Timezone            string  `json:"timezone" validate:"omitempty,timezone_id"`
	}

	ServiceInterface interface {
		Board(ctx context.Context, q Query) (Board, error)
		Preview(ctx context.Context, req DropRequest) (Preview, error)
		Drop(ctx context.Context, actor core.Actor, req DropRequest) (session.Session, error)
		Edit(ctx context.Context, actor core.Actor, id string, e Edit) (session.Session, error)
	}

	Service struct {
		sessions Sessions
		logger   core.Logger
		geom     Geometry
	}
)

var _ ServiceInterface = (*Service)(nil)

func (q *Query) Clean() {
	q.View = View(core.CleanString(string(q.View), true))
	if q.View == "" {
		q.View = ViewWeek
	}
	q.Date = core.CleanString(q.Date)
	q.Timezone = core.CleanString(q.Timezone)
	q.ClassID = core.CleanString(q.ClassID)
}

func (req *DropRequest) Clean() {
	req.SessionID = core.CleanString(req.SessionID)
	req.TargetDate = core.CleanString(req.TargetDate)
	req.View = View(core.CleanString(string(req.View), true))
	if req.View == "" {
		req.View = ViewWeek
	}
	req.Timezone = core.CleanString(req.Timezone)
	req.ClassID = core.CleanString(req.ClassID)
}

func (e *Edit) IsEmpty() bool {
	return e.TeacherID == nil && e.TeachingAssistantID == nil && e.StartTime == nil && e.EndTime == nil
}

func NewService(sessions Sessions, logger core.Logger, conf *core.Config) (*Service, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(sessions, "sessions"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).Check(); err != nil {
		return nil, err
	}
	return &Service{sessions: sessions, logger: logger, geom: GeometryFromConfig(conf.Schedule)}, nil
}

func (svc *Service) location(name string) (*time.Location, error) {
	if name == "" {
		return svc.sessions.DefaultLocation(), nil
	}
	loc, err := wallclock.LoadZone(name)
	if err != nil {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "timezone", Error: "unknown timezone"})
	}
	return loc, nil
}

func (svc *Service) Board(ctx context.Context, q Query) (Board, error) {
	q.Clean()
	loc, err := svc.location(q.Timezone)
	if err != nil {
		return Board{}, err
	}
	start, end, err := Range(q.View, q.Date)
	if err != nil {
		return Board{}, core.NewValidationError(nil, core.FieldError{Field: "view", Error: err.Error()})
	}
	views, err := svc.sessions.ListSessions(ctx, session.Window{StartDate: start, EndDate: end, ClassID: q.ClassID})
	if err != nil {
		return Board{}, err
	}
	return Build(q.View, start, end, loc, views, svc.geom), nil
}

// drag rebuilds the board the request was made on and replays the drag up to the hover.
func (svc *Service) drag(ctx context.Context, req DropRequest) (*Drag, error) {
	b, err := svc.Board(ctx, Query{View: req.View, Date: req.TargetDate, Timezone: req.Timezone, ClassID: req.ClassID})
	if err != nil {
		return nil, err
	}

	var (
		from Day
		c    Card
		ok   bool
	)
	for _, day := range b.Days {
		if c, ok = day.Card(req.SessionID); ok {
			from = day
			break
		}
	}
	if !ok {
		// the card may sit on another day or week than the target
		s, err := svc.sessions.GetSession(ctx, req.SessionID)
		if err != nil {
			return nil, err
		}
		loc, _ := svc.location(req.Timezone)
		c = Card{SessionID: s.ID, DurationMinutes: s.DurationMinutes(), Start: wallclock.ClockIn(s.StartTime, loc)}
		from = Day{Date: wallclock.DateIn(s.StartTime, loc)}
	}

	target, ok := b.Day(req.TargetDate)
	if !ok {
		return nil, core.NewValidationError(ErrCardNotOnBoard, core.FieldError{Field: "target_date", Error: "no column for this date"})
	}

	d := NewDrag(svc.geom)
	if err = d.Start(c, from.Date); err != nil {
		return nil, err
	}
	if _, err = d.Over(target, req.PointerY); err != nil {
		if errors.Cause(err) == ErrPastMidnight {
			return nil, core.NewValidationError(err, core.FieldError{Field: "pointer_y", Error: err.Error()})
		}
		return nil, err
	}
	return d, nil
}

// Preview computes where a drop at req would place the session, without changing anything.
func (svc *Service) Preview(ctx context.Context, req DropRequest) (Preview, error) {
	req.Clean()
	d, err := svc.drag(ctx, req)
	if err != nil {
		return Preview{}, err
	}
	p := d.preview
	return p, d.Cancel()
}

// Drop moves the session to the previewed start/end on the target column's date.
// Other bookings of the teacher are not re-checked.
func (svc *Service) Drop(ctx context.Context, actor core.Actor, req DropRequest) (session.Session, error) {
	req.Clean()
	d, err := svc.drag(ctx, req)
	if err != nil {
		return session.Session{}, err
	}
	p, err := d.Drop()
	if err != nil {
		return session.Session{}, err
	}
	loc, _ := svc.location(req.Timezone)
	s, err := svc.sessions.UpdateSession(ctx, actor, p.SessionID, p.Update(loc.String()))
	if err != nil {
		return session.Session{}, err
	}
	svc.logger.Info("session dropped", map[string]interface{}{"session_id": s.ID, "date": p.Date, "time": p.TimeRange}, actor)
	return s, d.Done()
}

// Edit issues one update per changed field, in the order teacher, assistant, start, end,
// and stops at the first failure.
func (svc *Service) Edit(ctx context.Context, actor core.Actor, id string, e Edit) (session.Session, error) {
	if e.IsEmpty() {
		return session.Session{}, core.NewValidationError(nil, core.FieldError{Field: "non_field_errors", Error: "nothing to update"})
	}
	loc, err := svc.location(core.CleanString(e.Timezone))
	if err != nil {
		return session.Session{}, err
	}
	tz := loc.String()

	updates := make([]session.UpdateSession, 0, 4)
	if e.TeacherID != nil {
		updates = append(updates, session.UpdateSession{TeacherID: e.TeacherID, Timezone: tz})
	}
	if e.TeachingAssistantID != nil {
		updates = append(updates, session.UpdateSession{TeachingAssistantID: e.TeachingAssistantID, Timezone: tz})
	}
	if e.StartTime != nil {
		updates = append(updates, session.UpdateSession{StartTime: e.StartTime, Timezone: tz})
	}
	if e.EndTime != nil {
		updates = append(updates, session.UpdateSession{EndTime: e.EndTime, Timezone: tz})
	}

	var s session.Session
	for _, us := range updates {
		if s, err = svc.sessions.UpdateSession(ctx, actor, id, us); err != nil {
			return session.Session{}, err
		}
	}
	return s, nil
}
