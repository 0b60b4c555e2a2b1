package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/dgrijalva/jwt-go"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/curriculum"
	"github.com/trezcool/ratiba/core/roster"
	"github.com/trezcool/ratiba/core/session"
	"github.com/trezcool/ratiba/services/email"
	"github.com/trezcool/ratiba/services/lock"
	"github.com/trezcool/ratiba/storage/database/inmem"
	"github.com/trezcool/ratiba/tests"
)

type fixture struct {
	cli *commandLine
	db  *inmemdb.DB
	out *bytes.Buffer
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	db := inmemdb.Open()

	translator := core.NewTranslator()
	validate := core.NewValidate(translator)
	class.InitValidators(validate, translator)

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

	out := new(bytes.Buffer)
	return fixture{
		cli: &commandLine{
			conf:       conf,
			classSvc:   classSvc,
			sessionSvc: sessionSvc,
			validate:   validate,
			out:        out,
		},
		db:  db,
		out: out,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	wantOut    string // substring of the output
}

func (tt cliTest) check(t *testing.T, f fixture) {
	t.Helper()
	f.out.Reset()
	err := f.cli.run(append([]string{"admin"}, tt.args...))
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, err)
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.wantErrStr)
	default:
		require.NoError(t, err)
	}
	if tt.wantOut != "" {
		assert.Contains(t, f.out.String(), tt.wantOut)
	}
}

func Test_commandLine_root(t *testing.T) {
	f := setup(t)
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: `unknown command "lol"`},
		{name: "unit without subcommand", args: []string{"unit"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.check(t, f) })
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	t.Run("memory engine", func(t *testing.T) {
		cliTest{args: []string{"migrate", "up"}, wantErrStr: "postgres database engine"}.check(t, f)
	})

	// lib/pq only connects on first use; the mocked goose never uses it
	db, err := sql.Open("postgres", "postgres://localhost/ratiba_test?sslmode=disable")
	require.NoError(t, err)
	defer db.Close()
	f.cli.db = db

	origRun := gooseRunFunc
	defer func() { gooseRunFunc = origRun }()
	gooseRunFunc = func(command string, db *sql.DB, dir string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.check(t, f) })
	}
}

func Test_commandLine_token(t *testing.T) {
	f := setup(t)

	t.Run("no employee", func(t *testing.T) {
		cliTest{args: []string{"token"}, wantErr: errHelp}.check(t, f)
	})

	t.Run("issued", func(t *testing.T) {
		cliTest{args: []string{"token", "--employee", "emp-1", "--name", "Ms. Lan", "--role", "admin", "--role", "scheduler"}}.check(t, f)

		raw := strings.TrimSpace(f.out.String())
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
			return []byte(f.cli.conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, "emp-1", claims["sub"])
		assert.Equal(t, "Ms. Lan", claims["name"])
		assert.Equal(t, []interface{}{"admin", "scheduler"}, claims["roles"])
	})
}

func Test_commandLine_schedule(t *testing.T) {
	f := setup(t)
	lan := testutil.CreateEmployee(t, f.db, "Ms. Lan", "lan@test.vn")
	room := testutil.CreateRoom(t, f.db, "Room 101")
	grape := testutil.CreateClass(t, f.db, "Grade 1", curriculum.ProgramCurriculum, "U3")

	rep := fmt.Sprintf("REP,%s,,%s,09:00,09:30", lan.ID, room.ID)
	tests := []cliTest{
		{name: "no args", args: []string{"schedule"}, wantErr: errHelp},
		{name: "unknown class", args: []string{"schedule", "--class", "nope", "--session", rep}, wantErr: class.ErrNotFound},
		{name: "malformed session", args: []string{"schedule", "--class", grape.ID, "--date", "2024-05-13", "--lesson", "L2", "--session", "REP,09:00"}, wantErrStr: "invalid session"},
		{name: "no lesson", args: []string{"schedule", "--class", grape.ID, "--date", "2024-05-13", "--session", rep}, wantErrStr: "please select a lesson"},
		{
			name:    "created",
			args:    []string{"schedule", "--class", grape.ID, "--date", "2024-05-13", "--lesson", "L2", "--session", rep},
			wantOut: "Grade 1.U3.L2\t1 sessions",
		},
		{
			name:       "teacher double-booked",
			args:       []string{"schedule", "--class", grape.ID, "--date", "2024-05-13", "--lesson", "L3", "--session", fmt.Sprintf("TSI,%s,,%s,09:15,09:45", lan.ID, room.ID)},
			wantErrStr: "already has a session",
			wantOut:    "Ms. Lan already teaches at 09:00 - 09:30 on 2024-05-13; TSI requested 09:15 - 09:45",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.check(t, f) })
	}

	mains, err := f.cli.sessionSvc.QueryMainSessions(context.Background(), nil, nil)
	require.NoError(t, err)
	require.Len(t, mains, 1)
	assert.Equal(t, "admin-cli", mains[0].Metadata["created_by"])
}

func Test_commandLine_unit(t *testing.T) {
	f := setup(t)
	grape := testutil.CreateClass(t, f.db, "Grade 1", curriculum.ProgramCurriculum, "U3")

	tests := []cliTest{
		{name: "suggest: no class", args: []string{"unit", "suggest"}, wantErrStr: "accepts 1 arg(s)"},
		{name: "suggest: unknown class", args: []string{"unit", "suggest", "nope"}, wantErr: class.ErrNotFound},
		{name: "suggest", args: []string{"unit", "suggest", grape.ID}, wantOut: "current: U3\nnext: U4\ntransition: U5\n"},
		{name: "advance: bad unit", args: []string{"unit", "advance", grape.ID, "--to", "4"}, wantErrStr: "to_unit"},
		{name: "advance: same unit", args: []string{"unit", "advance", grape.ID, "--to", "U3"}, wantErrStr: class.ErrSameUnit.Error()},
		{name: "advance", args: []string{"unit", "advance", grape.ID, "--to", "U4", "--date", "2024-05-20"}, wantOut: "Grade 1 is now on U4"},
		{name: "advance by default", args: []string{"unit", "advance", grape.ID}, wantOut: "Grade 1 is now on U6"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) { tt.check(t, f) })
	}

	cls, err := f.cli.classSvc.Get(context.Background(), grape.ID)
	require.NoError(t, err)
	history := cls.Transitions()
	require.Len(t, history, 2)
	assert.Equal(t, "U3", history[0].FromUnit)
	assert.Equal(t, "2024-05-20", history[0].TransitionDate)
}
