package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/roster"
)

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil)

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) GetEmployee(_ context.Context, id string, _ ...core.DBExecutor) (roster.Employee, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if e, ok := repo.db.employees[id]; ok {
		return e, nil
	}
	return roster.Employee{}, roster.ErrEmployeeNotFound
}

func (repo *rosterRepository) QueryEmployees(_ context.Context, filter *roster.QueryFilter, _ ...core.DBExecutor) ([]roster.Employee, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	out := make([]roster.Employee, 0, len(repo.db.employees))
	for _, e := range repo.db.employees {
		if matchRoster(filter, e.ID, e.Name, e.Email) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (repo *rosterRepository) GetRoom(_ context.Context, id string, _ ...core.DBExecutor) (roster.Room, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if r, ok := repo.db.rooms[id]; ok {
		return r, nil
	}
	return roster.Room{}, roster.ErrRoomNotFound
}

func (repo *rosterRepository) QueryRooms(_ context.Context, filter *roster.QueryFilter, _ ...core.DBExecutor) ([]roster.Room, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	out := make([]roster.Room, 0, len(repo.db.rooms))
	for _, r := range repo.db.rooms {
		if matchRoster(filter, r.ID, r.Name) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func matchRoster(filter *roster.QueryFilter, id string, fields ...string) bool {
	if filter.IsEmpty() {
		return true
	}
	if len(filter.IDs) > 0 {
		found := false
		for _, want := range filter.IDs {
			if want == id {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), search) {
				return true
			}
		}
		return false
	}
	return true
}
