package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/apps/api/echo"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/board"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/roster"
	"github.com/trezcool/ratiba/core/session"
	"github.com/trezcool/ratiba/services/email"
	"github.com/trezcool/ratiba/services/lock"
	"github.com/trezcool/ratiba/storage/database/inmem"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type fixture struct {
	conf       *core.Config
	db         *inmemdb.DB
	app        *echoapi.Server
	sessionSvc *session.Service
}

func setup(t *testing.T, configure ...func(conf *core.Config)) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	for _, fn := range configure {
		fn(conf)
	}
	db := inmemdb.Open()

	translator := core.NewTranslator()
	validate := core.NewValidate(translator)

	rost := roster.NewService(inmemdb.NewRosterRepository(db))
	classSvc, err := class.NewService(inmemdb.NewClassRepository(db), &core.NopLogger{}, conf)
	require.NoError(t, err)
	sessionSvc, err := session.NewService(
		inmemdb.NewSessionRepository(db),
		classSvc,
		rost,
		locksvc.NewMemoryLocker(),
		emailsvc.NewConsoleServiceMock(conf),
		&core.NopLogger{},
		conf,
	)
	require.NoError(t, err)
	boardSvc, err := board.NewService(sessionSvc, &core.NopLogger{}, conf)
	require.NoError(t, err)

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     &core.NopLogger{},
		SessionSvc: sessionSvc,
		ClassSvc:   classSvc,
		BoardSvc:   boardSvc,
		Roster:     rost,
		Validate:   validate,
		Translator: translator,
	})
	return fixture{conf: conf, db: db, app: app, sessionSvc: sessionSvc}
}

// schedule stores a main session straight through the service.
func (f fixture) schedule(t *testing.T, nm session.NewMainSession) session.MainSession {
	t.Helper()
	ms, err := f.sessionSvc.CreateMainSession(context.Background(), core.Actor{EmployeeID: "seed"}, nm)
	require.NoError(t, err)
	return ms
}

func (f fixture) do(tt httpTest) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
	f.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name       string
	method     string
	path       string
	body       []byte
	token      string
	wantCode   int
	wantData   []byte
	wantFields []string // for 400s: keys of the field error map
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func getToken(t *testing.T, conf *core.Config, actor core.Actor) string {
	token, err := echoapi.GenerateToken(echoapi.NewClaims(actor, conf), conf)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func unmarshal(t *testing.T, rec *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dest), rec.Body.String())
}

func jsonBytesEqual(t *testing.T, b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	if reflect.DeepEqual(j1, j2) {
		return true, nil
	}
	if _, ok := j1.([]interface{}); !ok {
		return false, nil
	}
	if _, ok := j2.([]interface{}); !ok {
		return false, nil
	}
	return assert.ElementsMatch(t, j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	t.Helper()
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, tt.wantCode, rec.Body.String())
	}
	if tt.wantFields != nil {
		var fields map[string]string
		unmarshal(t, rec, &fields)
		for _, f := range tt.wantFields {
			assert.Contains(t, fields, f)
		}
		return
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(t, rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
