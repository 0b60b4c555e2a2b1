// Package inmemdb is a process-local store used by tests and the "memory" database engine.
// Foreign keys are checked the way Postgres would, and reported as validation errors.
package inmemdb

import (
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/roster"
	"github.com/trezcool/ratiba/core/session"
)

type (
	DB struct {
		sync.RWMutex
		seq int64

		employees    map[string]roster.Employee
		rooms        map[string]roster.Room
		classes      map[string]class.Class
		mainSessions map[string]*mainSessionRecord
		sessions     map[string]*sessionRecord
	}

	mainSessionRecord struct {
		seq int64
		ms  session.MainSession
	}

	sessionRecord struct {
		seq int64
		s   session.Session
	}
)

func Open() *DB {
	db := new(DB)
	db.reset()
	return db
}

func (db *DB) reset() {
	db.seq = 0
	db.employees = make(map[string]roster.Employee)
	db.rooms = make(map[string]roster.Room)
	db.classes = make(map[string]class.Class)
	db.mainSessions = make(map[string]*mainSessionRecord)
	db.sessions = make(map[string]*sessionRecord)
}

// Reset empties every table.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.reset()
}

func (db *DB) next() int64 {
	db.seq++
	return db.seq
}

// AddEmployee stores e, generating an id when empty.
func (db *DB) AddEmployee(e roster.Employee) roster.Employee {
	db.Lock()
	defer db.Unlock()
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	db.employees[e.ID] = e
	return e
}

// AddRoom stores r, generating an id when empty.
func (db *DB) AddRoom(r roster.Room) roster.Room {
	db.Lock()
	defer db.Unlock()
	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	db.rooms[r.ID] = r
	return r
}

// AddClass stores c, generating an id and timestamps when empty.
func (db *DB) AddClass(c class.Class) class.Class {
	db.Lock()
	defer db.Unlock()
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if c.Metadata == nil {
		c.Metadata = core.Metadata{}
	}
	db.classes[c.ID] = c
	return c
}

func fkError(field string) error {
	return core.NewValidationError(nil, core.FieldError{Field: field, Error: "referenced record does not exist"})
}
