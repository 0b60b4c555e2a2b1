package sqlxrepos

import (
	"context"
	"strings"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/roster"
	"github.com/trezcool/ratiba/storage/database"
)

type (
	employeeRow struct {
		ID    string `db:"id"`
		Name  string `db:"name"`
		Email string `db:"email"`
	}

	roomRow struct {
		ID   string `db:"id"`
		Name string `db:"name"`
	}

	rosterRepository struct {
		base
	}
)

var _ roster.Repository = (*rosterRepository)(nil) // interface compliance check

func NewRosterRepository(exec core.DBExecutor) *rosterRepository {
	return &rosterRepository{base{exec: exec}}
}

func (repo rosterRepository) GetEmployee(ctx context.Context, id string, exec ...core.DBExecutor) (roster.Employee, error) {
	var rows []employeeRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, "SELECT id, name, email FROM employees WHERE id::text = $1", id); err != nil {
		return roster.Employee{}, database.TrapError(err, "getting employee")
	}
	if len(rows) == 0 {
		return roster.Employee{}, roster.ErrEmployeeNotFound
	}
	return roster.Employee(rows[0]), nil
}

func (repo rosterRepository) QueryEmployees(ctx context.Context, filter *roster.QueryFilter, exec ...core.DBExecutor) ([]roster.Employee, error) {
	where, args := rosterWhere(filter, "name", "email")
	var rows []employeeRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, "SELECT id, name, email FROM employees"+where+" ORDER BY name ASC", args...); err != nil {
		return nil, database.TrapError(err, "querying employees")
	}
	emps := make([]roster.Employee, 0, len(rows))
	for _, r := range rows {
		emps = append(emps, roster.Employee(r))
	}
	return emps, nil
}

func (repo rosterRepository) GetRoom(ctx context.Context, id string, exec ...core.DBExecutor) (roster.Room, error) {
	var rows []roomRow
	if err := selectAll(ctx, repo.getExec(exec), &rows, "SELECT id, name FROM rooms WHERE id::text = $1", id); err != nil {
		return roster.Room{}, database.TrapError(err, "getting room")
	}
	if len(rows) == 0 {
		return roster.Room{}, roster.ErrRoomNotFound
	}
	return roster.Room(rows[0]), nil
}

func (repo rosterRepository) QueryRooms(ctx context.Context, filter *roster.QueryFilter, exec ...core.DBExecutor) ([]roster.Room, error) {
	where, args := rosterWhere(filter, "name")
	var rows []roomRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, "SELECT id, name FROM rooms"+where+" ORDER BY name ASC", args...); err != nil {
		return nil, database.TrapError(err, "querying rooms")
	}
	rooms := make([]roster.Room, 0, len(rows))
	for _, r := range rows {
		rooms = append(rooms, roster.Room(r))
	}
	return rooms, nil
}

// rosterWhere builds a ?-bindvar WHERE clause matching ids and a case-insensitive search over cols.
func rosterWhere(filter *roster.QueryFilter, cols ...string) (string, []interface{}) {
	if filter.IsEmpty() {
		return "", nil
	}
	var conds []string
	var args []interface{}
	if len(filter.IDs) > 0 {
		conds = append(conds, "id::text IN (?)")
		args = append(args, filter.IDs)
	}
	if filter.Search != "" {
		like := make([]string, 0, len(cols))
		for _, c := range cols {
			like = append(like, c+" ILIKE ?")
			args = append(args, "%"+filter.Search+"%")
		}
		conds = append(conds, "("+strings.Join(like, " OR ")+")")
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}
