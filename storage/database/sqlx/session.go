package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/session"
	"github.com/trezcool/ratiba/storage/database"
)

const (
	mainSessionColumns = `ms.id, ms.name, ms.class_id, ms.scheduled_date::text AS scheduled_date, ms.lesson_id,
		ms.start_time, ms.end_time, ms.total_duration_minutes, ms.metadata, ms.created_at, ms.updated_at`

	sessionColumns = `s.id, s.main_session_id, s.subject_type, s.teacher_id, s.teaching_assistant_id, s.location_id,
		s.start_time, s.end_time, s.date::text AS date, s.metadata, s.created_at, s.updated_at`
)

type (
	mainSessionRow struct {
		ID                   string         `db:"id"`
		Name                 string         `db:"name"`
		ClassID              string         `db:"class_id"`
		ScheduledDate        string         `db:"scheduled_date"`
		LessonID             null.String    `db:"lesson_id"`
		StartTime            time.Time      `db:"start_time"`
		EndTime              time.Time      `db:"end_time"`
		TotalDurationMinutes int            `db:"total_duration_minutes"`
		Metadata             types.JSONText `db:"metadata"`
		CreatedAt            time.Time      `db:"created_at"`
		UpdatedAt            time.Time      `db:"updated_at"`
	}

	sessionRow struct {
		ID                  string         `db:"id"`
		MainSessionID       string         `db:"main_session_id"`
		SubjectType         string         `db:"subject_type"`
		TeacherID           null.String    `db:"teacher_id"`
		TeachingAssistantID null.String    `db:"teaching_assistant_id"`
		LocationID          null.String    `db:"location_id"`
		StartTime           time.Time      `db:"start_time"`
		EndTime             time.Time      `db:"end_time"`
		Date                string         `db:"date"`
		Metadata            types.JSONText `db:"metadata"`
		CreatedAt           time.Time      `db:"created_at"`
		UpdatedAt           time.Time      `db:"updated_at"`
	}

	sessionViewRow struct {
		sessionRow
		MainSessionName       string      `db:"main_session_name"`
		LessonID              null.String `db:"lesson_id"`
		ClassID               string      `db:"class_id"`
		ClassName             string      `db:"class_name"`
		TeacherName           null.String `db:"teacher_name"`
		TeachingAssistantName null.String `db:"teaching_assistant_name"`
		LocationName          null.String `db:"location_name"`
	}

	sessionRepository struct {
		base
	}
)

var (
	_ session.Repository = (*sessionRepository)(nil) // interface compliance check

	mainSessionOrderings = map[string]string{
		"name":           "ms.name",
		"scheduled_date": "ms.scheduled_date",
		"start_time":     "ms.start_time",
		"created_at":     "ms.created_at",
		"updated_at":     "ms.updated_at",
	}
)

func NewSessionRepository(exec core.DBExecutor) *sessionRepository {
	return &sessionRepository{base{exec: exec}}
}

// mapping

func (repo sessionRepository) mapMain(ms session.MainSession) (mainSessionRow, error) {
	meta, err := ms.Metadata.JSONText()
	if err != nil {
		return mainSessionRow{}, err
	}
	return mainSessionRow{
		ID:                   ms.ID,
		Name:                 ms.Name,
		ClassID:              ms.ClassID,
		ScheduledDate:        ms.ScheduledDate,
		LessonID:             null.StringFromPtr(ms.LessonID),
		StartTime:            ms.StartTime.UTC(),
		EndTime:              ms.EndTime.UTC(),
		TotalDurationMinutes: ms.TotalDurationMinutes,
		Metadata:             meta,
		CreatedAt:            ms.CreatedAt.UTC(),
		UpdatedAt:            ms.UpdatedAt.UTC(),
	}, nil
}

func (repo sessionRepository) unmapMain(r mainSessionRow) (session.MainSession, error) {
	meta, err := core.MetadataFromJSON(r.Metadata)
	if err != nil {
		return session.MainSession{}, err
	}
	return session.MainSession{
		ID:                   r.ID,
		Name:                 r.Name,
		ClassID:              r.ClassID,
		ScheduledDate:        r.ScheduledDate,
		LessonID:             r.LessonID.Ptr(),
		StartTime:            r.StartTime.UTC(),
		EndTime:              r.EndTime.UTC(),
		TotalDurationMinutes: r.TotalDurationMinutes,
		Metadata:             meta,
		CreatedAt:            r.CreatedAt.UTC(),
		UpdatedAt:            r.UpdatedAt.UTC(),
	}, nil
}

func (repo sessionRepository) mapSession(s session.Session) (sessionRow, error) {
	meta, err := s.Metadata.JSONText()
	if err != nil {
		return sessionRow{}, err
	}
	return sessionRow{
		ID:                  s.ID,
		MainSessionID:       s.MainSessionID,
		SubjectType:         string(s.SubjectType),
		TeacherID:           null.StringFromPtr(s.TeacherID),
		TeachingAssistantID: null.StringFromPtr(s.TeachingAssistantID),
		LocationID:          null.StringFromPtr(s.LocationID),
		StartTime:           s.StartTime.UTC(),
		EndTime:             s.EndTime.UTC(),
		Date:                s.Date,
		Metadata:            meta,
		CreatedAt:           s.CreatedAt.UTC(),
		UpdatedAt:           s.UpdatedAt.UTC(),
	}, nil
}

func (repo sessionRepository) unmapSession(r sessionRow) (session.Session, error) {
	meta, err := core.MetadataFromJSON(r.Metadata)
	if err != nil {
		return session.Session{}, err
	}
	return session.Session{
		ID:                  r.ID,
		MainSessionID:       r.MainSessionID,
		SubjectType:         session.SubjectType(r.SubjectType),
		TeacherID:           r.TeacherID.Ptr(),
		TeachingAssistantID: r.TeachingAssistantID.Ptr(),
		LocationID:          r.LocationID.Ptr(),
		StartTime:           r.StartTime.UTC(),
		EndTime:             r.EndTime.UTC(),
		Date:                r.Date,
		Metadata:            meta,
		CreatedAt:           r.CreatedAt.UTC(),
		UpdatedAt:           r.UpdatedAt.UTC(),
	}, nil
}

func (repo sessionRepository) unmapSessions(rows []sessionRow) ([]session.Session, error) {
	sessions := make([]session.Session, 0, len(rows))
	for _, r := range rows {
		s, err := repo.unmapSession(r)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// main sessions

func (repo sessionRepository) CreateMainSession(ctx context.Context, ms session.MainSession, exec ...core.DBExecutor) (session.MainSession, error) {
	row, err := repo.mapMain(ms)
	if err != nil {
		return session.MainSession{}, err
	}
	_, err = execNamed(ctx, repo.getExec(exec), `
		INSERT INTO main_sessions (id, name, class_id, scheduled_date, lesson_id, start_time, end_time,
			total_duration_minutes, metadata, created_at, updated_at)
		VALUES (:id, :name, :class_id, :scheduled_date, :lesson_id, :start_time, :end_time,
			:total_duration_minutes, :metadata, :created_at, :updated_at)`, row)
	if err != nil {
		return session.MainSession{}, database.TrapError(err, "inserting main session")
	}
	return repo.unmapMain(row)
}

func (repo sessionRepository) GetMainSession(ctx context.Context, id string, exec ...core.DBExecutor) (session.MainSession, error) {
	var rows []mainSessionRow
	q := "SELECT " + mainSessionColumns + " FROM main_sessions ms WHERE ms.id::text = $1"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, id); err != nil {
		return session.MainSession{}, database.TrapError(err, "getting main session")
	}
	if len(rows) == 0 {
		return session.MainSession{}, session.ErrNotFound
	}
	return repo.unmapMain(rows[0])
}

func (repo sessionRepository) QueryMainSessions(ctx context.Context, filter *session.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]session.MainSession, error) {
	q := "SELECT " + mainSessionColumns + " FROM main_sessions ms WHERE TRUE"
	var args []interface{}
	if !filter.IsEmpty() {
		if filter.ClassID != "" {
			q += " AND ms.class_id::text = ?"
			args = append(args, filter.ClassID)
		}
		if filter.DateFrom != "" {
			q += " AND ms.scheduled_date >= ?::date"
			args = append(args, filter.DateFrom)
		}
		if filter.DateTo != "" {
			q += " AND ms.scheduled_date <= ?::date"
			args = append(args, filter.DateTo)
		}
		if filter.Search != "" {
			q += " AND (ms.name ILIKE ? OR ms.lesson_id ILIKE ?)"
			args = append(args, "%"+filter.Search+"%", "%"+filter.Search+"%")
		}
	}
	q += orderBy(ordering, mainSessionOrderings, "ms.scheduled_date ASC, ms.start_time ASC")

	var rows []mainSessionRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, database.TrapError(err, "querying main sessions")
	}
	out := make([]session.MainSession, 0, len(rows))
	for _, r := range rows {
		ms, err := repo.unmapMain(r)
		if err != nil {
			return nil, err
		}
		out = append(out, ms)
	}
	return out, nil
}

func (repo sessionRepository) UpdateMainSession(ctx context.Context, ms session.MainSession, exec ...core.DBExecutor) (session.MainSession, error) {
	row, err := repo.mapMain(ms)
	if err != nil {
		return session.MainSession{}, err
	}
	n, err := execNamed(ctx, repo.getExec(exec), `
		UPDATE main_sessions SET name = :name, scheduled_date = :scheduled_date, lesson_id = :lesson_id,
			start_time = :start_time, end_time = :end_time, total_duration_minutes = :total_duration_minutes,
			metadata = :metadata, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return session.MainSession{}, database.TrapError(err, "updating main session")
	}
	if n == 0 {
		return session.MainSession{}, session.ErrNotFound
	}
	return repo.GetMainSession(ctx, ms.ID, exec...)
}

func (repo sessionRepository) DeleteMainSession(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM main_sessions WHERE id::text = $1", id); err != nil {
		return database.TrapError(err, "deleting main session")
	}
	return nil
}

// sessions

func (repo sessionRepository) CreateSession(ctx context.Context, s session.Session, exec ...core.DBExecutor) (session.Session, error) {
	row, err := repo.mapSession(s)
	if err != nil {
		return session.Session{}, err
	}
	_, err = execNamed(ctx, repo.getExec(exec), `
		INSERT INTO sessions (id, main_session_id, subject_type, teacher_id, teaching_assistant_id, location_id,
			start_time, end_time, date, metadata, created_at, updated_at)
		VALUES (:id, :main_session_id, :subject_type, :teacher_id, :teaching_assistant_id, :location_id,
			:start_time, :end_time, :date, :metadata, :created_at, :updated_at)`, row)
	if err != nil {
		return session.Session{}, database.TrapError(err, "inserting session")
	}
	return repo.unmapSession(row)
}

func (repo sessionRepository) GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (session.Session, error) {
	var rows []sessionRow
	q := "SELECT " + sessionColumns + " FROM sessions s WHERE s.id::text = $1"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, id); err != nil {
		return session.Session{}, database.TrapError(err, "getting session")
	}
	if len(rows) == 0 {
		return session.Session{}, session.ErrSessionNotFound
	}
	return repo.unmapSession(rows[0])
}

func (repo sessionRepository) UpdateSession(ctx context.Context, s session.Session, exec ...core.DBExecutor) (session.Session, error) {
	row, err := repo.mapSession(s)
	if err != nil {
		return session.Session{}, err
	}
	n, err := execNamed(ctx, repo.getExec(exec), `
		UPDATE sessions SET teacher_id = :teacher_id, teaching_assistant_id = :teaching_assistant_id,
			location_id = :location_id, start_time = :start_time, end_time = :end_time, date = :date,
			metadata = :metadata, updated_at = :updated_at
		WHERE id = :id`, row)
	if err != nil {
		return session.Session{}, database.TrapError(err, "updating session")
	}
	if n == 0 {
		return session.Session{}, session.ErrSessionNotFound
	}
	return repo.GetSession(ctx, s.ID, exec...)
}

func (repo sessionRepository) QuerySessionsByMainSession(ctx context.Context, mainSessionID string, exec ...core.DBExecutor) ([]session.Session, error) {
	var rows []sessionRow
	q := "SELECT " + sessionColumns + " FROM sessions s WHERE s.main_session_id::text = $1 ORDER BY s.start_time ASC, s.created_at ASC"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, mainSessionID); err != nil {
		return nil, database.TrapError(err, "querying sessions")
	}
	return repo.unmapSessions(rows)
}

func (repo sessionRepository) DeleteSessionsByMainSession(ctx context.Context, mainSessionID string, exec ...core.DBExecutor) error {
	if _, err := repo.getExec(exec).ExecContext(ctx, "DELETE FROM sessions WHERE main_session_id::text = $1", mainSessionID); err != nil {
		return database.TrapError(err, "deleting sessions")
	}
	return nil
}

func (repo sessionRepository) FindTeacherConflicts(ctx context.Context, teacherID, date string, start, end time.Time, exec ...core.DBExecutor) ([]session.Session, error) {
	var rows []sessionRow
	q := "SELECT " + sessionColumns + ` FROM sessions s
		WHERE s.teacher_id::text = $1 AND s.date = $2::date AND s.start_time < $3 AND s.end_time > $4
		ORDER BY s.start_time ASC`
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, teacherID, date, end.UTC(), start.UTC()); err != nil {
		return nil, database.TrapError(err, "finding teacher conflicts")
	}
	return repo.unmapSessions(rows)
}

func (repo sessionRepository) ListSessionViews(ctx context.Context, w session.Window, exec ...core.DBExecutor) ([]session.SessionView, error) {
	q := "SELECT " + sessionColumns + `,
			ms.name AS main_session_name, ms.lesson_id, ms.class_id, c.name AS class_name,
			t.name AS teacher_name, ta.name AS teaching_assistant_name, r.name AS location_name
		FROM sessions s
		JOIN main_sessions ms ON ms.id = s.main_session_id
		JOIN classes c ON c.id = ms.class_id
		LEFT JOIN employees t ON t.id = s.teacher_id
		LEFT JOIN employees ta ON ta.id = s.teaching_assistant_id
		LEFT JOIN rooms r ON r.id = s.location_id
		WHERE s.date >= ?::date AND s.date <= ?::date`
	args := []interface{}{w.StartDate, w.EndDate}
	if w.ClassID != "" {
		q += " AND ms.class_id::text = ?"
		args = append(args, w.ClassID)
	}
	q += " ORDER BY s.created_at ASC, s.id ASC"

	var rows []sessionViewRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, database.TrapError(err, "listing sessions")
	}
	views := make([]session.SessionView, 0, len(rows))
	for _, r := range rows {
		s, err := repo.unmapSession(r.sessionRow)
		if err != nil {
			return nil, err
		}
		views = append(views, session.SessionView{
			Session:               s,
			MainSessionName:       r.MainSessionName,
			LessonID:              r.LessonID.Ptr(),
			ClassID:               r.ClassID,
			ClassName:             r.ClassName,
			TeacherName:           r.TeacherName.String,
			TeachingAssistantName: r.TeachingAssistantName.String,
			LocationName:          r.LocationName.String,
		})
	}
	return views, nil
}
