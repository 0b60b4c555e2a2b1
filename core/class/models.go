package class

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/curriculum"
)

// Class is the read model of a class as needed for scheduling.
type Class struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	ProgramType string        `json:"program_type"`
	CurrentUnit string        `json:"current_unit"`
	Metadata    core.Metadata `json:"metadata"`
	CreatedAt   time.Time     `json:"created_at"` // UTC
	UpdatedAt   time.Time     `json:"updated_at"` // UTC
}

func (c Class) IsCurriculum() bool { return c.ProgramType == curriculum.ProgramCurriculum }

// Transitions returns the class's unit history, oldest first.
func (c Class) Transitions() []curriculum.UnitTransition {
	return curriculum.Transitions(c.Metadata)
}

// UnitSuggestions lists both unit policies side by side; callers pick one.
type UnitSuggestions struct {
	CurrentUnit    string `json:"current_unit"`
	NextUnit       string `json:"next_unit"`       // +1, capped at U30
	TransitionUnit string `json:"transition_unit"` // +2, uncapped
}

// TransitionRequest asks to move a class to another unit.
type TransitionRequest struct {
	ToUnit         string `json:"to_unit" validate:"omitempty,unit"`
	TransitionDate string `json:"transition_date" validate:"omitempty,isodate"`
}

func (tr *TransitionRequest) Validate(validate *validator.Validate) error {
	tr.ToUnit = core.CleanString(tr.ToUnit)
	tr.TransitionDate = core.CleanString(tr.TransitionDate)
	return validate.Struct(tr)
}

type QueryFilter struct {
	Search      string `query:"search"`
	ProgramType string `query:"program_type"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf == nil || (qf.Search == "" && qf.ProgramType == "")
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ProgramType = core.CleanString(qf.ProgramType)
}
