package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/board"
	"github.com/trezcool/ratiba/core/session"
	"github.com/trezcool/ratiba/core/wallclock"
)

func Test_sessionApi(t *testing.T) {
	f := setup(t)
	s := seedRosters(t, f)
	first := f.schedule(t, newMain(s, "2024-05-13", "L1", sub("TSI", s.lan.ID, s.room.ID, "09:00", "09:30")))
	f.schedule(t, newMain(s, "2024-05-14", "L2", sub("REP", s.minh.ID, s.room.ID, "13:00", "13:45")))
	subID := first.Sessions[0].ID

	t.Run("list window", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodGet, path: "/v1/sessions?start_date=2024-05-13&end_date=2024-05-13", token: s.token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var views []session.SessionView
		unmarshal(t, rec, &views)
		require.Len(t, views, 1)
		assert.Equal(t, "Ms. Lan", views[0].TeacherName)
		assert.Equal(t, "Room 101", views[0].LocationName)
		assert.Equal(t, "Grade 1", views[0].ClassName)
	})

	tests := []httpTest{
		{
			name:       "list without window",
			method:     http.MethodGet,
			path:       "/v1/sessions",
			token:      s.token,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"start_date", "end_date"},
		},
		{
			name:       "empty update",
			method:     http.MethodPut,
			path:       "/v1/sessions/" + subID,
			body:       []byte(`{}`),
			token:      s.token,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"non_field_errors"},
		},
		{
			name:     "unknown session",
			method:   http.MethodPut,
			path:     "/v1/sessions/nope",
			body:     []byte(`{"start_time": "10:00"}`),
			token:    s.token,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: session.ErrSessionNotFound.Error()}),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checkCodeAndData(t, tc, f.do(tc))
		})
	}

	t.Run("update is not re-checked for conflicts", func(t *testing.T) {
		// Mr. Minh teaches 13:00-13:45 on the 14th; moving Ms. Lan's session onto him there is accepted.
		body := []byte(`{"teacher_id": "` + s.minh.ID + `", "date": "2024-05-14", "start_time": "13:15", "end_time": "13:45"}`)
		rec := f.do(httpTest{method: http.MethodPut, path: "/v1/sessions/" + subID, body: body, token: s.token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got session.Session
		unmarshal(t, rec, &got)
		assert.Equal(t, "2024-05-14", got.Date)
		require.NotNil(t, got.TeacherID)
		assert.Equal(t, s.minh.ID, *got.TeacherID)
		loc, err := wallclock.LoadZone(f.conf.Schedule.DefaultTimezone)
		require.NoError(t, err)
		assert.Equal(t, "13:15 - 13:45", wallclock.FormatRange(got.StartTime, got.EndTime, loc))
	})
}

func Test_boardApi(t *testing.T) {
	f := setup(t)
	s := seedRosters(t, f)
	ms := f.schedule(t, newMain(s, "2024-05-13", "L1", sub("TSI", s.lan.ID, s.room.ID, "09:00", "10:30")))
	f.schedule(t, newMain(s, "2024-05-15", "L2", sub("REP", s.minh.ID, s.room.ID, "13:00", "13:45")))
	subID := ms.Sessions[0].ID

	t.Run("week board", func(t *testing.T) {
		rec := f.do(httpTest{method: http.MethodGet, path: "/v1/board?date=2024-05-15", token: s.token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var b board.Board
		unmarshal(t, rec, &b)
		assert.Equal(t, board.ViewWeek, b.View)
		assert.Equal(t, "2024-05-13", b.StartDate)
		assert.Equal(t, "2024-05-19", b.EndDate)
		require.Len(t, b.Days, 2, "only days with sessions get a column")
		assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, b.Days[0].Slots)
		require.Len(t, b.Days[0].Cards, 1)
		assert.Equal(t, "Ms. Lan", b.Days[0].Cards[0].TeacherName)
		assert.Equal(t, 150, b.Days[0].Cards[0].HeightPx)
	})

	tests := []httpTest{
		{
			name:       "bad view",
			method:     http.MethodGet,
			path:       "/v1/board?view=year&date=2024-05-15",
			token:      s.token,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"view"},
		},
		{
			name:       "drop on a day without column",
			method:     http.MethodPost,
			path:       "/v1/board/drop",
			body:       marchallObj(t, board.DropRequest{SessionID: subID, TargetDate: "2024-05-14"}),
			token:      s.token,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"target_date"},
		},
		{
			name:       "empty inline edit",
			method:     http.MethodPut,
			path:       "/v1/board/sessions/" + subID,
			body:       []byte(`{}`),
			token:      s.token,
			wantCode:   http.StatusBadRequest,
			wantFields: []string{"non_field_errors"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			checkCodeAndData(t, tc, f.do(tc))
		})
	}

	t.Run("preview then drop", func(t *testing.T) {
		req := board.DropRequest{SessionID: subID, TargetDate: "2024-05-15", PointerY: 50}

		rec := f.do(httpTest{method: http.MethodPost, path: "/v1/board/preview", body: marchallObj(t, req), token: s.token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var p board.Preview
		unmarshal(t, rec, &p)
		assert.Equal(t, "13:30 - 15:00", p.TimeRange)
		assert.True(t, p.DateChanged)

		rec = f.do(httpTest{method: http.MethodPost, path: "/v1/board/drop", body: marchallObj(t, req), token: s.token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got session.Session
		unmarshal(t, rec, &got)
		assert.Equal(t, "2024-05-15", got.Date)
	})

	t.Run("inline edit", func(t *testing.T) {
		body := []byte(`{"teaching_assistant_id": "` + s.minh.ID + `", "end_time": "15:30"}`)
		rec := f.do(httpTest{method: http.MethodPut, path: "/v1/board/sessions/" + subID, body: body, token: s.token})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got session.Session
		unmarshal(t, rec, &got)
		require.NotNil(t, got.TeachingAssistantID)
		assert.Equal(t, s.minh.ID, *got.TeachingAssistantID)
		assert.Equal(t, 120, got.DurationMinutes())
	})
}

func Test_boardApi_dropInOtherZone(t *testing.T) {
	f := setup(t)
	s := seedRosters(t, f)
	// 05:00 in Ho Chi Minh City is 22:00 UTC the day before
	ms := f.schedule(t, newMain(s, "2024-05-16", "L1", sub("TSI", s.lan.ID, s.room.ID, "05:00", "05:30")))
	req := board.DropRequest{SessionID: ms.Sessions[0].ID, TargetDate: "2024-05-15", PointerY: 50, Timezone: "UTC"}

	rec := f.do(httpTest{method: http.MethodPost, path: "/v1/board/preview", body: marchallObj(t, req), token: s.token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var p board.Preview
	unmarshal(t, rec, &p)
	assert.Equal(t, "22:30 - 23:00", p.TimeRange)
	assert.False(t, p.DateChanged)

	rec = f.do(httpTest{method: http.MethodPost, path: "/v1/board/drop", body: marchallObj(t, req), token: s.token})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var got session.Session
	unmarshal(t, rec, &got)
	assert.True(t, time.Date(2024, 5, 15, 22, 30, 0, 0, time.UTC).Equal(got.StartTime), "start = %s", got.StartTime)
	assert.True(t, time.Date(2024, 5, 15, 23, 0, 0, 0, time.UTC).Equal(got.EndTime), "end = %s", got.EndTime)
}
