package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
	"github.com/trezcool/ratiba/core/curriculum"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil)

func NewClassRepository(db *DB) class.Repository {
	return &classRepository{db: db}
}

func (repo *classRepository) GetClass(_ context.Context, id string, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if c, ok := repo.db.classes[id]; ok {
		c.Metadata = c.Metadata.Clone()
		return c, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) QueryClasses(_ context.Context, filter *class.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	out := make([]class.Class, 0, len(repo.db.classes))
	for _, c := range repo.db.classes {
		if !filter.IsEmpty() {
			if filter.Search != "" && !strings.Contains(strings.ToLower(c.Name), strings.ToLower(filter.Search)) {
				continue
			}
			if filter.ProgramType != "" && c.ProgramType != filter.ProgramType {
				continue
			}
		}
		c.Metadata = c.Metadata.Clone()
		out = append(out, c)
	}

	asc := true
	if len(ordering) > 0 && ordering[0].Field == "name" {
		asc = ordering[0].Ascending
	}
	sort.Slice(out, func(i, j int) bool {
		if asc {
			return out[i].Name < out[j].Name
		}
		return out[i].Name > out[j].Name
	})
	return out, nil
}

func (repo *classRepository) AppendUnitTransition(_ context.Context, id string, entry curriculum.UnitTransition, _ ...core.DBExecutor) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.classes[id]
	if !ok {
		return class.Class{}, class.ErrNotFound
	}
	if orig.CurrentUnit != entry.FromUnit {
		return class.Class{}, class.ErrUnitChanged
	}
	orig.CurrentUnit = entry.ToUnit
	orig.Metadata = curriculum.AppendTransition(orig.Metadata, entry)
	orig.UpdatedAt = entry.CreatedAt
	repo.db.classes[id] = orig

	orig.Metadata = orig.Metadata.Clone()
	return orig, nil
}
