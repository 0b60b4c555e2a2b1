package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/roster"
	"github.com/trezcool/ratiba/core/session"
	"github.com/trezcool/ratiba/core/wallclock"
	"github.com/trezcool/ratiba/services/email"
	"github.com/trezcool/ratiba/services/lock"
	"github.com/trezcool/ratiba/storage/database/inmem"
	"github.com/trezcool/ratiba/tests"
)

type logEntry struct {
	level string
	msg   string
	args  []interface{}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []logEntry
}

func (l *recordingLogger) log(level, msg string, args []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...interface{}) { l.log("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...interface{})  { l.log("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...interface{})  { l.log("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...interface{}) { l.log("error", msg, args) }
func (l *recordingLogger) Fatal(msg string, args ...interface{}) { l.log("fatal", msg, args) }

func (l *recordingLogger) messages(level string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, e := range l.entries {
		if e.level == level {
			out = append(out, e.msg)
		}
	}
	return out
}

// faultyRepo fails selected writes of the wrapped repository.
type faultyRepo struct {
	session.Repository
	failSessionInsert  int // fail the n-th CreateSession call (1-based)
	failMainDelete     bool
	sessionInsertCalls int
}

var errStorage = errors.New("storage unavailable")

func (r *faultyRepo) CreateSession(ctx context.Context, s session.Session, exec ...core.DBExecutor) (session.Session, error) {
	r.sessionInsertCalls++
	if r.sessionInsertCalls == r.failSessionInsert {
		return session.Session{}, errStorage
	}
	return r.Repository.CreateSession(ctx, s, exec...)
}

func (r *faultyRepo) DeleteMainSession(ctx context.Context, id string, exec ...core.DBExecutor) error {
	if r.failMainDelete {
		return errStorage
	}
	return r.Repository.DeleteMainSession(ctx, id, exec...)
}

type fixture struct {
	db     *inmemdb.DB
	repo   session.Repository
	svc    *session.Service
	logger *recordingLogger

	lan, minh, assistant roster.Employee
	room                 roster.Room
	grade1, maths        class.Class
}

func setup(t *testing.T, wrap ...func(session.Repository) session.Repository) *fixture {
	t.Helper()
	conf := core.NewTestConfig()
	db := inmemdb.Open()

	f := &fixture{db: db, logger: new(recordingLogger)}
	f.lan = testutil.CreateEmployee(t, db, "Ms. Lan", "lan@school.test")
	f.minh = testutil.CreateEmployee(t, db, "Mr. Minh", "")
	f.assistant = testutil.CreateEmployee(t, db, "Ms. Hoa", "hoa@school.test")
	f.room = testutil.CreateRoom(t, db, "Room 101")
	f.grade1 = testutil.CreateClass(t, db, "Grade 1", "GrapeSEED", "U3")
	f.maths = testutil.CreateClass(t, db, "Maths 2", "Standard", "")

	f.repo = inmemdb.NewSessionRepository(db)
	for _, w := range wrap {
		f.repo = w(f.repo)
	}
	classSvc, err := class.NewService(inmemdb.NewClassRepository(db), f.logger, conf)
	require.NoError(t, err)
	rost := roster.NewService(inmemdb.NewRosterRepository(db))

	f.svc, err = session.NewService(f.repo, classSvc, rost, locksvc.NewMemoryLocker(), emailsvc.NewConsoleServiceMock(conf), f.logger, conf)
	require.NoError(t, err)
	return f
}

func (f *fixture) sub(subject, teacherID, start, end string) session.NewSession {
	return session.NewSession{SubjectType: subject, TeacherID: teacherID, LocationID: f.room.ID, StartTime: start, EndTime: end}
}

func (f *fixture) request(date string, subs ...session.NewSession) session.NewMainSession {
	return session.NewMainSession{
		MainSessionName: "Grade 1.U3.L2",
		ScheduledDate:   date,
		ClassID:         f.grade1.ID,
		Sessions:        subs,
		LessonNumber:    "L2",
	}
}

func (f *fixture) count(t *testing.T) (mains, subs int) {
	t.Helper()
	all, err := f.repo.QueryMainSessions(context.Background(), nil, nil)
	require.NoError(t, err)
	views, err := f.repo.ListSessionViews(context.Background(), session.Window{StartDate: "2000-01-01", EndDate: "2100-01-01"})
	require.NoError(t, err)
	return len(all), len(views)
}

var actor = core.Actor{EmployeeID: "admin-1", Name: "Admin"}

func TestService_CreateMainSession(t *testing.T) {
	emailsvc.ResetSentMessages()
	f := setup(t)
	ctx := context.Background()

	nm := f.request("2024-05-13",
		f.sub("TSI", f.lan.ID, "09:00", "09:30"),
		f.sub("REP", f.minh.ID, "09:45", "10:30"),
	)
	nm.Sessions[0].TeachingAssistantID = f.assistant.ID

	ms, err := f.svc.CreateMainSession(ctx, actor, nm)
	require.NoError(t, err)

	assert.NotEmpty(t, ms.ID)
	assert.Equal(t, f.grade1.ID, ms.ClassID)
	require.NotNil(t, ms.LessonID)
	assert.Equal(t, "U3.L2", *ms.LessonID)
	assert.Equal(t, time.Date(2024, 5, 13, 2, 0, 0, 0, time.UTC), ms.StartTime, "09:00 in Ho Chi Minh City")
	assert.Equal(t, time.Date(2024, 5, 13, 3, 30, 0, 0, time.UTC), ms.EndTime)
	assert.Equal(t, 30+45, ms.TotalDurationMinutes)
	assert.Equal(t, "09:00", ms.Metadata["start_time"])
	assert.Equal(t, "10:30", ms.Metadata["end_time"])
	assert.Equal(t, true, ms.Metadata["created_by_form"])
	assert.Equal(t, "2024-05-13T02:00:00Z", ms.Metadata["start_timestamp"])
	assert.Equal(t, actor.EmployeeID, ms.Metadata["created_by"])

	require.Len(t, ms.Sessions, 2)
	assert.Equal(t, session.SubjectTSI, ms.Sessions[0].SubjectType)
	assert.Equal(t, ms.ID, ms.Sessions[0].MainSessionID)
	assert.Equal(t, "2024-05-13", ms.Sessions[1].Date)

	got, err := f.svc.GetMainSession(ctx, ms.ID)
	require.NoError(t, err)
	assert.Len(t, got.Sessions, 2)

	// Mr. Minh has no email on file
	sent := emailsvc.Sent()
	require.Len(t, sent, 2)
	bodies := make(map[string]string, len(sent))
	for _, m := range sent {
		bodies[m.To[0].Address] = m.TextContent
	}
	assert.Contains(t, bodies["lan@school.test"], "TSI 09:00 - 09:30 as teacher in Room 101")
	assert.Contains(t, bodies["hoa@school.test"], "TSI 09:00 - 09:30 as teaching assistant in Room 101")
}

func TestService_CreateMainSession_timezone(t *testing.T) {
	f := setup(t)
	nm := f.request("2024-05-13", f.sub("TSI", f.lan.ID, "09:00", "09:30"))
	nm.Timezone = "UTC"

	ms, err := f.svc.CreateMainSession(context.Background(), actor, nm)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 13, 9, 0, 0, 0, time.UTC), ms.Sessions[0].StartTime)
	assert.Equal(t, "UTC", ms.Metadata["timezone"])

	nm.Timezone = "Mars/Olympus"
	_, err = f.svc.CreateMainSession(context.Background(), actor, nm)
	assert.True(t, core.IsValidationError(err))
}

func TestService_CreateMainSession_conflicts(t *testing.T) {
	ctx := context.Background()
	date := "2024-05-13"

	tests := []struct {
		name         string
		subs         func(f *fixture) []session.NewSession
		wantPosition int
		wantDetails  func(f *fixture) session.ConflictDetails
	}{
		{
			name: "touching sessions are allowed",
			subs: func(f *fixture) []session.NewSession {
				return []session.NewSession{f.sub("REP", f.lan.ID, "10:00", "10:30"), f.sub("GRA", f.lan.ID, "08:00", "09:00")}
			},
		},
		{
			name: "another teacher at the same time is allowed",
			subs: func(f *fixture) []session.NewSession {
				return []session.NewSession{f.sub("REP", f.minh.ID, "09:00", "10:00")}
			},
		},
		{
			name: "the assistant dimension is not checked",
			subs: func(f *fixture) []session.NewSession {
				s := f.sub("REP", f.minh.ID, "09:00", "10:00")
				s.TeachingAssistantID = f.lan.ID
				return []session.NewSession{s}
			},
		},
		{
			// known limitation: siblings of one request are only checked against stored sessions
			name: "overlapping siblings of one request are not checked against each other",
			subs: func(f *fixture) []session.NewSession {
				return []session.NewSession{f.sub("REP", f.minh.ID, "11:00", "12:00"), f.sub("GRA", f.minh.ID, "11:30", "12:30")}
			},
		},
		{
			name: "second sub-session overlaps",
			subs: func(f *fixture) []session.NewSession {
				return []session.NewSession{f.sub("TSI", f.minh.ID, "09:00", "09:30"), f.sub("VOC", f.lan.ID, "09:30", "10:15")}
			},
			wantPosition: 1,
			wantDetails: func(f *fixture) session.ConflictDetails {
				return session.ConflictDetails{
					TeacherName:   "Ms. Lan",
					ConflictTime:  "09:00 - 10:00",
					ConflictDate:  date,
					SessionType:   "VOC",
					RequestedTime: "09:30 - 10:15",
				}
			},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)
			_, err := f.svc.CreateMainSession(ctx, actor, f.request(date, f.sub("TSI", f.lan.ID, "09:00", "10:00")))
			require.NoError(t, err)

			_, err = f.svc.CreateMainSession(ctx, actor, f.request(date, tc.subs(f)...))
			if tc.wantDetails == nil {
				require.NoError(t, err)
				return
			}
			cErr, ok := session.IsConflict(err)
			require.True(t, ok, "got %v", err)
			assert.Equal(t, tc.wantPosition, cErr.Position)
			assert.Equal(t, tc.wantDetails(f), cErr.Details)

			mains, subs := f.count(t)
			assert.Equal(t, 1, mains, "the rejected main session is compensated")
			assert.Equal(t, 1, subs)
		})
	}
}

func TestService_CreateMainSession_rollback(t *testing.T) {
	ctx := context.Background()

	t.Run("failed sub-session insert removes everything", func(t *testing.T) {
		faulty := &faultyRepo{failSessionInsert: 2}
		f := setup(t, func(r session.Repository) session.Repository { faulty.Repository = r; return faulty })

		_, err := f.svc.CreateMainSession(ctx, actor, f.request("2024-05-13",
			f.sub("TSI", f.lan.ID, "09:00", "09:30"),
			f.sub("REP", f.lan.ID, "09:30", "10:00"),
		))
		assert.Equal(t, errStorage, errors.Cause(err))
		_, isConflict := session.IsConflict(err)
		assert.False(t, isConflict)

		mains, subs := f.count(t)
		assert.Zero(t, mains)
		assert.Zero(t, subs)
		assert.Contains(t, f.logger.messages("warn"), "main session creation rolled back")
	})

	t.Run("failed compensation is only logged", func(t *testing.T) {
		faulty := &faultyRepo{failSessionInsert: 1, failMainDelete: true}
		f := setup(t, func(r session.Repository) session.Repository { faulty.Repository = r; return faulty })

		_, err := f.svc.CreateMainSession(ctx, actor, f.request("2024-05-13", f.sub("TSI", f.lan.ID, "09:00", "09:30")))
		assert.Equal(t, errStorage, errors.Cause(err))
		assert.Contains(t, f.logger.messages("error"), "rolling back main session")

		mains, _ := f.count(t)
		assert.Equal(t, 1, mains, "an empty main session is left behind")
	})

	t.Run("unknown room is rejected and compensated", func(t *testing.T) {
		f := setup(t)
		sub := f.sub("TSI", f.lan.ID, "09:00", "09:30")
		sub.LocationID = "no-such-room"
		_, err := f.svc.CreateMainSession(ctx, actor, f.request("2024-05-13", sub))
		assert.True(t, core.IsValidationError(err))
		mains, _ := f.count(t)
		assert.Zero(t, mains)
	})

	t.Run("unknown class", func(t *testing.T) {
		f := setup(t)
		nm := f.request("2024-05-13", f.sub("TSI", f.lan.ID, "09:00", "09:30"))
		nm.ClassID = "nope"
		_, err := f.svc.CreateMainSession(ctx, actor, nm)
		assert.True(t, core.IsValidationError(err))
	})
}

func TestService_CreateMainSession_concurrent(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	const n = 6
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.CreateMainSession(ctx, actor, f.request("2024-05-13", f.sub("TSI", f.lan.ID, "09:00", "09:30")))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
			} else if _, ok := session.IsConflict(err); ok {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created, "only one booking of the same slot wins")
	assert.Equal(t, n-1, conflicts)
}

func TestService_UpdateSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	first, err := f.svc.CreateMainSession(ctx, actor, f.request("2024-05-13", f.sub("TSI", f.lan.ID, "09:00", "10:00")))
	require.NoError(t, err)
	second, err := f.svc.CreateMainSession(ctx, actor, f.request("2024-05-13", f.sub("REP", f.minh.ID, "13:00", "13:45")))
	require.NoError(t, err)
	target := second.Sessions[0]

	str := func(s string) *string { return &s }

	t.Run("reassigning into an overlap is not re-checked", func(t *testing.T) {
		s, err := f.svc.UpdateSession(ctx, actor, target.ID, session.UpdateSession{
			TeacherID: str(f.lan.ID),
			StartTime: str("09:30"),
			EndTime:   str("10:15"),
		})
		require.NoError(t, err)
		assert.Equal(t, f.lan.ID, *s.TeacherID)
		assert.True(t, s.Overlaps(first.Sessions[0].StartTime, first.Sessions[0].EndTime))
	})

	t.Run("rfc3339 instants", func(t *testing.T) {
		s, err := f.svc.UpdateSession(ctx, actor, target.ID, session.UpdateSession{
			StartTime: str("2024-05-13T07:00:00Z"),
			EndTime:   str("2024-05-13T07:45:00Z"),
		})
		require.NoError(t, err)
		assert.Equal(t, time.Date(2024, 5, 13, 7, 0, 0, 0, time.UTC), s.StartTime)
	})

	t.Run("date change keeps the wall-clock time", func(t *testing.T) {
		s, err := f.svc.UpdateSession(ctx, actor, target.ID, session.UpdateSession{Date: str("2024-05-15")})
		require.NoError(t, err)
		assert.Equal(t, "2024-05-15", s.Date)
		loc, _ := wallclock.LoadZone("")
		assert.Equal(t, "14:00 - 14:45", wallclock.FormatRange(s.StartTime, s.EndTime, loc))
	})

	t.Run("empty assistant clears it", func(t *testing.T) {
		_, err := f.svc.UpdateSession(ctx, actor, target.ID, session.UpdateSession{TeachingAssistantID: str(f.assistant.ID)})
		require.NoError(t, err)
		s, err := f.svc.UpdateSession(ctx, actor, target.ID, session.UpdateSession{TeachingAssistantID: str("")})
		require.NoError(t, err)
		assert.Nil(t, s.TeachingAssistantID)
	})

	t.Run("inverted times", func(t *testing.T) {
		_, err := f.svc.UpdateSession(ctx, actor, target.ID, session.UpdateSession{EndTime: str("06:00")})
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("unknown session", func(t *testing.T) {
		_, err := f.svc.UpdateSession(ctx, actor, "missing", session.UpdateSession{StartTime: str("09:00")})
		assert.Equal(t, session.ErrSessionNotFound, errors.Cause(err))
	})
}

func TestService_ListSessions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	late, err := f.svc.CreateMainSession(ctx, actor, f.request("2024-05-14", f.sub("REP", f.lan.ID, "15:00", "15:30")))
	require.NoError(t, err)
	early, err := f.svc.CreateMainSession(ctx, actor, f.request("2024-05-13", f.sub("TSI", f.lan.ID, "08:00", "08:30")))
	require.NoError(t, err)
	maths := f.request("2024-05-13", f.sub("GRA", f.minh.ID, "08:00", "08:30"))
	maths.ClassID = f.maths.ID
	maths.MainSessionName = "Fractions"
	maths.LessonNumber = ""
	_, err = f.svc.CreateMainSession(ctx, actor, maths)
	require.NoError(t, err)
	_, err = f.svc.CreateMainSession(ctx, actor, f.request("2024-05-20", f.sub("TSI", f.lan.ID, "08:00", "08:30")))
	require.NoError(t, err)

	views, err := f.svc.ListSessions(ctx, session.Window{StartDate: "2024-05-13", EndDate: "2024-05-19", ClassID: f.grade1.ID})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, late.Sessions[0].ID, views[0].ID, "creation order, not time order")
	assert.Equal(t, early.Sessions[0].ID, views[1].ID)
	assert.Equal(t, "Grade 1", views[0].ClassName)
	assert.Equal(t, "Ms. Lan", views[0].TeacherName)
	assert.Equal(t, "Room 101", views[0].LocationName)
	assert.Equal(t, "U3.L2", *views[0].LessonID)

	views, err = f.svc.ListSessions(ctx, session.Window{StartDate: "2024-05-13", EndDate: "2024-05-13"})
	require.NoError(t, err)
	assert.Len(t, views, 2)

	views, err = f.svc.ListSessions(ctx, session.Window{StartDate: "2025-01-01", EndDate: "2025-01-31"})
	require.NoError(t, err)
	assert.NotNil(t, views)
	assert.Empty(t, views)
}

func TestService_UpdateAndDeleteMainSession(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	str := func(s string) *string { return &s }

	ms, err := f.svc.CreateMainSession(ctx, actor, f.request("2024-05-13",
		f.sub("TSI", f.lan.ID, "09:00", "09:30"),
		f.sub("REP", f.lan.ID, "09:30", "10:15"),
	))
	require.NoError(t, err)

	moved, err := f.svc.UpdateMainSession(ctx, actor, ms.ID, session.UpdateMainSession{
		Name:          str("Grade 1.U3.L3"),
		ScheduledDate: str("2024-05-20"),
		LessonID:      str("U3.L3"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Grade 1.U3.L3", moved.Name)
	assert.Equal(t, "U3.L3", *moved.LessonID)
	assert.Equal(t, "2024-05-20", moved.ScheduledDate)
	assert.Equal(t, time.Date(2024, 5, 20, 2, 0, 0, 0, time.UTC), moved.StartTime)
	assert.Equal(t, 75, moved.TotalDurationMinutes)
	for _, s := range moved.Sessions {
		assert.Equal(t, "2024-05-20", s.Date)
	}

	require.NoError(t, f.svc.DeleteMainSession(ctx, actor, ms.ID))
	_, err = f.svc.GetMainSession(ctx, ms.ID)
	assert.Equal(t, session.ErrNotFound, errors.Cause(err))
	mains, subs := f.count(t)
	assert.Zero(t, mains)
	assert.Zero(t, subs)

	err = f.svc.DeleteMainSession(ctx, actor, ms.ID)
	assert.Equal(t, session.ErrNotFound, errors.Cause(err))
}

func TestService_QueryMainSessions(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	for _, date := range []string{"2024-05-15", "2024-05-13", "2024-05-14"} {
		_, err := f.svc.CreateMainSession(ctx, actor, f.request(date, f.sub("TSI", f.lan.ID, "09:00", "09:30")))
		require.NoError(t, err)
	}

	all, err := f.svc.QueryMainSessions(ctx, &session.QueryFilter{}, nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "2024-05-13", all[0].ScheduledDate)

	some, err := f.svc.QueryMainSessions(ctx, &session.QueryFilter{DateFrom: "2024-05-14", Search: " grade "}, []core.DBOrdering{{Field: "scheduled_date"}})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "2024-05-15", some[0].ScheduledDate, "descending")
}
