package testutil

import (
	"testing"
	"time"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/roster"
	"github.com/trezcool/ratiba/storage/database/inmem"
)

func CreateEmployee(t *testing.T, db *inmemdb.DB, name, email string) roster.Employee {
	t.Helper()
	return db.AddEmployee(roster.Employee{Name: name, Email: email})
}

func CreateRoom(t *testing.T, db *inmemdb.DB, name string) roster.Room {
	t.Helper()
	return db.AddRoom(roster.Room{Name: name})
}

func CreateClass(t *testing.T, db *inmemdb.DB, name, programType, currentUnit string, createdAt ...time.Time) class.Class {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	return db.AddClass(class.Class{
		Name:        name,
		ProgramType: programType,
		CurrentUnit: currentUnit,
		Metadata:    core.Metadata{},
		CreatedAt:   tstamp,
		UpdatedAt:   tstamp,
	})
}
