package board

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/session"
)

type updateCall struct {
	id string
	us session.UpdateSession
}

type fakeSessions struct {
	loc     *time.Location
	views   []session.SessionView
	calls   []updateCall
	failOn  int
	windows []session.Window
}

func (f *fakeSessions) GetSession(_ context.Context, id string) (session.Session, error) {
	for _, v := range f.views {
		if v.ID == id {
			return v.Session, nil
		}
	}
	return session.Session{}, session.ErrSessionNotFound
}

func (f *fakeSessions) UpdateSession(_ context.Context, _ core.Actor, id string, us session.UpdateSession) (session.Session, error) {
	f.calls = append(f.calls, updateCall{id: id, us: us})
	if f.failOn > 0 && len(f.calls) == f.failOn {
		return session.Session{}, errors.New("boom")
	}
	return session.Session{ID: id}, nil
}

func (f *fakeSessions) ListSessions(_ context.Context, w session.Window) ([]session.SessionView, error) {
	f.windows = append(f.windows, w)
	return f.views, nil
}

func (f *fakeSessions) DefaultLocation() *time.Location { return f.loc }

func newTestService(t *testing.T, views ...session.SessionView) (*Service, *fakeSessions) {
	fake := &fakeSessions{loc: hcm(t), views: views}
	svc, err := NewService(fake, &core.NopLogger{}, core.NewTestConfig())
	require.NoError(t, err)
	return svc, fake
}

func TestService_Board(t *testing.T) {
	svc, fake := newTestService(t,
		view(t, "a", "2024-05-13", "09:00", "10:30"),
		view(t, "b", "2024-05-15", "13:00", "13:45"),
	)

	b, err := svc.Board(context.Background(), Query{Date: "2024-05-15", ClassID: " c1 "})
	require.NoError(t, err)
	assert.Equal(t, ViewWeek, b.View)
	assert.Len(t, b.Days, 2)
	assert.Equal(t, session.Window{StartDate: "2024-05-13", EndDate: "2024-05-19", ClassID: "c1"}, fake.windows[0])

	_, err = svc.Board(context.Background(), Query{View: "year", Date: "2024-05-15"})
	assert.True(t, core.IsValidationError(err))
}

func TestService_Drop(t *testing.T) {
	actor := core.Actor{EmployeeID: "e1", Name: "Admin"}

	t.Run("moves to the target day without re-checking", func(t *testing.T) {
		svc, fake := newTestService(t,
			view(t, "a", "2024-05-13", "09:00", "10:30"),
			view(t, "b", "2024-05-15", "13:00", "13:45"),
		)
		req := DropRequest{SessionID: "a", TargetDate: "2024-05-15", PointerY: 50}

		p, err := svc.Preview(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, "13:30 - 15:00", p.TimeRange)
		assert.True(t, p.DateChanged)
		assert.Empty(t, fake.calls, "preview issues no update")

		s, err := svc.Drop(context.Background(), actor, req)
		require.NoError(t, err)
		assert.Equal(t, "a", s.ID)
		require.Len(t, fake.calls, 1)
		us := fake.calls[0].us
		assert.Equal(t, "13:30", *us.StartTime)
		assert.Equal(t, "15:00", *us.EndTime)
		assert.Equal(t, "2024-05-15", *us.Date)
		assert.Equal(t, "Asia/Ho_Chi_Minh", us.Timezone)
	})

	t.Run("same day", func(t *testing.T) {
		svc, fake := newTestService(t, view(t, "a", "2024-05-13", "09:00", "10:30"))
		_, err := svc.Drop(context.Background(), actor, DropRequest{SessionID: "a", TargetDate: "2024-05-13", PointerY: 125, View: ViewDay})
		require.NoError(t, err)
		require.Len(t, fake.calls, 1)
		require.NotNil(t, fake.calls[0].us.Date)
		assert.Equal(t, "2024-05-13", *fake.calls[0].us.Date)
		assert.Equal(t, "10:15", *fake.calls[0].us.StartTime)
	})

	t.Run("target day has no column", func(t *testing.T) {
		svc, fake := newTestService(t, view(t, "a", "2024-05-13", "09:00", "10:30"))
		_, err := svc.Drop(context.Background(), actor, DropRequest{SessionID: "a", TargetDate: "2024-05-14", PointerY: 0})
		assert.True(t, core.IsValidationError(err))
		assert.Empty(t, fake.calls)
	})

	t.Run("past midnight", func(t *testing.T) {
		svc, fake := newTestService(t, view(t, "a", "2024-05-13", "22:00", "23:30"))
		_, err := svc.Drop(context.Background(), actor, DropRequest{SessionID: "a", TargetDate: "2024-05-13", PointerY: 100})
		assert.True(t, core.IsValidationError(err))
		assert.Empty(t, fake.calls)
	})

	t.Run("unknown session", func(t *testing.T) {
		svc, _ := newTestService(t, view(t, "a", "2024-05-13", "09:00", "10:30"))
		_, err := svc.Drop(context.Background(), actor, DropRequest{SessionID: "zzz", TargetDate: "2024-05-13"})
		assert.Equal(t, session.ErrSessionNotFound, errors.Cause(err))
	})
}

func TestService_Edit(t *testing.T) {
	actor := core.Actor{EmployeeID: "e1"}
	teacher, start := "t2", "10:00"

	svc, fake := newTestService(t)
	_, err := svc.Edit(context.Background(), actor, "s1", Edit{TeacherID: &teacher, StartTime: &start})
	require.NoError(t, err)
	require.Len(t, fake.calls, 2, "one update per field")
	assert.Equal(t, &teacher, fake.calls[0].us.TeacherID)
	assert.Nil(t, fake.calls[0].us.StartTime)
	assert.Equal(t, &start, fake.calls[1].us.StartTime)
	assert.Nil(t, fake.calls[1].us.TeacherID)

	svc, fake = newTestService(t)
	fake.failOn = 1
	_, err = svc.Edit(context.Background(), actor, "s1", Edit{TeacherID: &teacher, StartTime: &start})
	assert.Error(t, err)
	assert.Len(t, fake.calls, 1, "stops at the first failure")

	_, err = svc.Edit(context.Background(), actor, "s1", Edit{})
	assert.True(t, core.IsValidationError(err))
}
