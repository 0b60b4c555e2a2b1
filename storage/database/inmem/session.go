package inmemdb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/session"
)

type sessionRepository struct {
	db *DB
}

var _ session.Repository = (*sessionRepository)(nil)

func NewSessionRepository(db *DB) session.Repository {
	return &sessionRepository{db: db}
}

func copyMain(ms session.MainSession) session.MainSession {
	ms.Metadata = ms.Metadata.Clone()
	ms.Sessions = nil
	return ms
}

func copySession(s session.Session) session.Session {
	s.Metadata = s.Metadata.Clone()
	return s
}

func (repo *sessionRepository) checkSessionRefs(s session.Session) error {
	if _, ok := repo.db.mainSessions[s.MainSessionID]; !ok {
		return fkError("main_session_id")
	}
	if s.TeacherID != nil {
		if _, ok := repo.db.employees[*s.TeacherID]; !ok {
			return fkError("teacher_id")
		}
	}
	if s.TeachingAssistantID != nil {
		if _, ok := repo.db.employees[*s.TeachingAssistantID]; !ok {
			return fkError("teaching_assistant_id")
		}
	}
	if s.LocationID != nil {
		if _, ok := repo.db.rooms[*s.LocationID]; !ok {
			return fkError("location_id")
		}
	}
	return nil
}

// main sessions

func (repo *sessionRepository) CreateMainSession(_ context.Context, ms session.MainSession, _ ...core.DBExecutor) (session.MainSession, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[ms.ClassID]; !ok {
		return session.MainSession{}, fkError("class_id")
	}
	ms = copyMain(ms)
	repo.db.mainSessions[ms.ID] = &mainSessionRecord{seq: repo.db.next(), ms: ms}
	return copyMain(ms), nil
}

func (repo *sessionRepository) GetMainSession(_ context.Context, id string, _ ...core.DBExecutor) (session.MainSession, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if rec, ok := repo.db.mainSessions[id]; ok {
		return copyMain(rec.ms), nil
	}
	return session.MainSession{}, session.ErrNotFound
}

func (repo *sessionRepository) QueryMainSessions(_ context.Context, filter *session.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]session.MainSession, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	out := make([]session.MainSession, 0, len(repo.db.mainSessions))
	for _, rec := range repo.db.mainSessions {
		ms := rec.ms
		if !filter.IsEmpty() {
			if filter.ClassID != "" && ms.ClassID != filter.ClassID {
				continue
			}
			if filter.DateFrom != "" && ms.ScheduledDate < filter.DateFrom {
				continue
			}
			if filter.DateTo != "" && ms.ScheduledDate > filter.DateTo {
				continue
			}
			if filter.Search != "" && !strings.Contains(strings.ToLower(ms.Name+" "+core.StringValue(ms.LessonID)), filter.Search) {
				continue
			}
		}
		out = append(out, copyMain(ms))
	}

	desc := len(ordering) > 0 && !ordering[0].Ascending
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if desc {
			a, b = b, a
		}
		if a.ScheduledDate != b.ScheduledDate {
			return a.ScheduledDate < b.ScheduledDate
		}
		return a.StartTime.Before(b.StartTime)
	})
	return out, nil
}

func (repo *sessionRepository) UpdateMainSession(_ context.Context, ms session.MainSession, _ ...core.DBExecutor) (session.MainSession, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec, ok := repo.db.mainSessions[ms.ID]
	if !ok {
		return session.MainSession{}, session.ErrNotFound
	}
	orig := rec.ms
	orig.Name = ms.Name
	orig.ScheduledDate = ms.ScheduledDate
	orig.LessonID = ms.LessonID
	orig.StartTime = ms.StartTime
	orig.EndTime = ms.EndTime
	orig.TotalDurationMinutes = ms.TotalDurationMinutes
	orig.Metadata = ms.Metadata.Clone()
	orig.UpdatedAt = ms.UpdatedAt
	rec.ms = orig
	return copyMain(orig), nil
}

func (repo *sessionRepository) DeleteMainSession(_ context.Context, id string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, rec := range repo.db.sessions {
		if rec.s.MainSessionID == id {
			return fkError("main_session_id")
		}
	}
	delete(repo.db.mainSessions, id)
	return nil
}

// sessions

func (repo *sessionRepository) CreateSession(_ context.Context, s session.Session, _ ...core.DBExecutor) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.checkSessionRefs(s); err != nil {
		return session.Session{}, err
	}
	s = copySession(s)
	repo.db.sessions[s.ID] = &sessionRecord{seq: repo.db.next(), s: s}
	return copySession(s), nil
}

func (repo *sessionRepository) GetSession(_ context.Context, id string, _ ...core.DBExecutor) (session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if rec, ok := repo.db.sessions[id]; ok {
		return copySession(rec.s), nil
	}
	return session.Session{}, session.ErrSessionNotFound
}

func (repo *sessionRepository) UpdateSession(_ context.Context, s session.Session, _ ...core.DBExecutor) (session.Session, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	rec, ok := repo.db.sessions[s.ID]
	if !ok {
		return session.Session{}, session.ErrSessionNotFound
	}
	if err := repo.checkSessionRefs(s); err != nil {
		return session.Session{}, err
	}
	orig := rec.s
	orig.TeacherID = s.TeacherID
	orig.TeachingAssistantID = s.TeachingAssistantID
	orig.LocationID = s.LocationID
	orig.StartTime = s.StartTime
	orig.EndTime = s.EndTime
	orig.Date = s.Date
	orig.Metadata = s.Metadata.Clone()
	orig.UpdatedAt = s.UpdatedAt
	rec.s = orig
	return copySession(orig), nil
}

func (repo *sessionRepository) sortedSessions(keep func(session.Session) bool) []*sessionRecord {
	recs := make([]*sessionRecord, 0)
	for _, rec := range repo.db.sessions {
		if keep(rec.s) {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	return recs
}

func (repo *sessionRepository) QuerySessionsByMainSession(_ context.Context, mainSessionID string, _ ...core.DBExecutor) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := repo.sortedSessions(func(s session.Session) bool { return s.MainSessionID == mainSessionID })
	out := make([]session.Session, 0, len(recs))
	for _, rec := range recs {
		out = append(out, copySession(rec.s))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (repo *sessionRepository) DeleteSessionsByMainSession(_ context.Context, mainSessionID string, _ ...core.DBExecutor) error {
	repo.db.Lock()
	defer repo.db.Unlock()
	for id, rec := range repo.db.sessions {
		if rec.s.MainSessionID == mainSessionID {
			delete(repo.db.sessions, id)
		}
	}
	return nil
}

func (repo *sessionRepository) FindTeacherConflicts(_ context.Context, teacherID, date string, start, end time.Time, _ ...core.DBExecutor) ([]session.Session, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := repo.sortedSessions(func(s session.Session) bool {
		return core.StringValue(s.TeacherID) == teacherID && s.Date == date && s.Overlaps(start, end)
	})
	out := make([]session.Session, 0, len(recs))
	for _, rec := range recs {
		out = append(out, copySession(rec.s))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

func (repo *sessionRepository) ListSessionViews(_ context.Context, w session.Window, _ ...core.DBExecutor) ([]session.SessionView, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	recs := repo.sortedSessions(func(s session.Session) bool {
		if !w.Contains(s.Date) {
			return false
		}
		if w.ClassID == "" {
			return true
		}
		parent, ok := repo.db.mainSessions[s.MainSessionID]
		return ok && parent.ms.ClassID == w.ClassID
	})

	views := make([]session.SessionView, 0, len(recs))
	for _, rec := range recs {
		s := rec.s
		parent, ok := repo.db.mainSessions[s.MainSessionID]
		if !ok {
			continue // inner join
		}
		cls, ok := repo.db.classes[parent.ms.ClassID]
		if !ok {
			continue
		}
		views = append(views, session.SessionView{
			Session:               copySession(s),
			MainSessionName:       parent.ms.Name,
			LessonID:              parent.ms.LessonID,
			ClassID:               cls.ID,
			ClassName:             cls.Name,
			TeacherName:           repo.db.employees[core.StringValue(s.TeacherID)].Name,
			TeachingAssistantName: repo.db.employees[core.StringValue(s.TeachingAssistantID)].Name,
			LocationName:          repo.db.rooms[core.StringValue(s.LocationID)].Name,
		})
	}
	return views, nil
}
