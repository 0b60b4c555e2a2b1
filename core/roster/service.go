// Package roster gives read-only access to the employee and room rosters owned by the rest of the ERP.
package roster

import (
	"context"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
)

var (
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrRoomNotFound     = errors.New("room not found")
)

type (
	Repository interface {
		GetEmployee(ctx context.Context, id string, exec ...core.DBExecutor) (Employee, error)
		QueryEmployees(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Employee, error)
		GetRoom(ctx context.Context, id string, exec ...core.DBExecutor) (Room, error)
		QueryRooms(ctx context.Context, filter *QueryFilter, exec ...core.DBExecutor) ([]Room, error)
	}

	// Roster is what the scheduling services need from the rosters.
	Roster interface {
		GetEmployee(ctx context.Context, id string) (Employee, error)
		GetRoom(ctx context.Context, id string) (Room, error)
		QueryEmployees(ctx context.Context, filter *QueryFilter) ([]Employee, error)
		QueryRooms(ctx context.Context, filter *QueryFilter) ([]Room, error)
		// Employees returns the employees with the given ids keyed by id; unknown ids are left out.
		Employees(ctx context.Context, ids ...string) (map[string]Employee, error)
		// Rooms returns the rooms with the given ids keyed by id; unknown ids are left out.
		Rooms(ctx context.Context, ids ...string) (map[string]Room, error)
	}

	Service struct {
		repo Repository
	}
)

var _ Roster = (*Service)(nil)

func NewService(repo Repository) *Service {
	vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
	).CheckAndPanic()
	return &Service{repo: repo}
}

func (svc *Service) GetEmployee(ctx context.Context, id string) (Employee, error) {
	return svc.repo.GetEmployee(ctx, core.CleanString(id))
}

func (svc *Service) GetRoom(ctx context.Context, id string) (Room, error) {
	return svc.repo.GetRoom(ctx, core.CleanString(id))
}

func (svc *Service) QueryEmployees(ctx context.Context, filter *QueryFilter) ([]Employee, error) {
	if filter != nil {
		filter.Search = core.CleanString(filter.Search)
	}
	return svc.repo.QueryEmployees(ctx, filter)
}

func (svc *Service) QueryRooms(ctx context.Context, filter *QueryFilter) ([]Room, error) {
	if filter != nil {
		filter.Search = core.CleanString(filter.Search)
	}
	return svc.repo.QueryRooms(ctx, filter)
}

func (svc *Service) Employees(ctx context.Context, ids ...string) (map[string]Employee, error) {
	out := make(map[string]Employee, len(ids))
	ids = compact(ids)
	if len(ids) == 0 {
		return out, nil
	}
	emps, err := svc.repo.QueryEmployees(ctx, &QueryFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying employees")
	}
	for _, e := range emps {
		out[e.ID] = e
	}
	return out, nil
}

func (svc *Service) Rooms(ctx context.Context, ids ...string) (map[string]Room, error) {
	out := make(map[string]Room, len(ids))
	ids = compact(ids)
	if len(ids) == 0 {
		return out, nil
	}
	rooms, err := svc.repo.QueryRooms(ctx, &QueryFilter{IDs: ids})
	if err != nil {
		return nil, errors.Wrap(err, "querying rooms")
	}
	for _, r := range rooms {
		out[r.ID] = r
	}
	return out, nil
}

// compact drops blanks and duplicates, keeping first-seen order.
func compact(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
