package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/curriculum"
	"github.com/trezcool/ratiba/storage/database"
)

const classColumns = "id, name, program_type, current_unit, metadata, created_at, updated_at"

type (
	classRow struct {
		ID          string         `db:"id"`
		Name        string         `db:"name"`
		ProgramType string         `db:"program_type"`
		CurrentUnit string         `db:"current_unit"`
		Metadata    types.JSONText `db:"metadata"`
		CreatedAt   time.Time      `db:"created_at"`
		UpdatedAt   time.Time      `db:"updated_at"`
	}

	classRepository struct {
		base
	}

	transitionArg struct {
		ID        string         `db:"id"`
		FromUnit  string         `db:"from_unit"`
		ToUnit    string         `db:"to_unit"`
		Entry     types.JSONText `db:"entry"`
		UpdatedAt time.Time      `db:"updated_at"`
	}
)

var (
	_ class.Repository = (*classRepository)(nil) // interface compliance check

	classOrderings = map[string]string{
		"name":         "name",
		"program_type": "program_type",
		"current_unit": "current_unit",
		"created_at":   "created_at",
		"updated_at":   "updated_at",
	}
)

func NewClassRepository(exec core.DBExecutor) *classRepository {
	return &classRepository{base{exec: exec}}
}

func (repo classRepository) unmap(r classRow) (class.Class, error) {
	meta, err := core.MetadataFromJSON(r.Metadata)
	if err != nil {
		return class.Class{}, err
	}
	return class.Class{
		ID:          r.ID,
		Name:        r.Name,
		ProgramType: r.ProgramType,
		CurrentUnit: r.CurrentUnit,
		Metadata:    meta,
		CreatedAt:   r.CreatedAt.UTC(),
		UpdatedAt:   r.UpdatedAt.UTC(),
	}, nil
}

func (repo classRepository) GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (class.Class, error) {
	var rows []classRow
	q := "SELECT " + classColumns + " FROM classes WHERE id::text = $1"
	if err := selectAll(ctx, repo.getExec(exec), &rows, q, id); err != nil {
		return class.Class{}, database.TrapError(err, "getting class")
	}
	if len(rows) == 0 {
		return class.Class{}, class.ErrNotFound
	}
	return repo.unmap(rows[0])
}

func (repo classRepository) QueryClasses(ctx context.Context, filter *class.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]class.Class, error) {
	q := "SELECT " + classColumns + " FROM classes WHERE TRUE"
	var args []interface{}
	if !filter.IsEmpty() {
		if filter.Search != "" {
			q += " AND name ILIKE ?"
			args = append(args, "%"+filter.Search+"%")
		}
		if filter.ProgramType != "" {
			q += " AND program_type = ?"
			args = append(args, filter.ProgramType)
		}
	}
	q += orderBy(ordering, classOrderings, "name ASC")

	var rows []classRow
	if err := selectIn(ctx, repo.getExec(exec), &rows, q, args...); err != nil {
		return nil, database.TrapError(err, "querying classes")
	}
	classes := make([]class.Class, 0, len(rows))
	for _, r := range rows {
		cls, err := repo.unmap(r)
		if err != nil {
			return nil, err
		}
		classes = append(classes, cls)
	}
	return classes, nil
}

// AppendUnitTransition moves the unit and appends to the history in one statement,
// guarded by the expected current unit.
func (repo classRepository) AppendUnitTransition(ctx context.Context, id string, entry curriculum.UnitTransition, exec ...core.DBExecutor) (class.Class, error) {
	data, err := json.Marshal([]curriculum.UnitTransition{entry})
	if err != nil {
		return class.Class{}, errors.Wrap(err, "marshalling unit transition")
	}
	arg := transitionArg{
		ID:        id,
		FromUnit:  entry.FromUnit,
		ToUnit:    entry.ToUnit,
		Entry:     types.JSONText(data),
		UpdatedAt: entry.CreatedAt.UTC(),
	}
	n, err := execNamed(ctx, repo.getExec(exec), `UPDATE classes SET
		current_unit = :to_unit,
		metadata = jsonb_set(metadata, '{`+curriculum.TransitionsKey+`}',
			COALESCE(metadata->'`+curriculum.TransitionsKey+`', CAST('[]' AS jsonb)) || CAST(:entry AS jsonb)),
		updated_at = :updated_at
		WHERE CAST(id AS text) = :id AND current_unit = :from_unit`, arg)
	if err != nil {
		return class.Class{}, database.TrapError(err, "updating class unit")
	}
	if n == 0 {
		if _, err = repo.GetClass(ctx, id, exec...); err != nil {
			return class.Class{}, err
		}
		return class.Class{}, class.ErrUnitChanged
	}
	return repo.GetClass(ctx, id, exec...)
}
