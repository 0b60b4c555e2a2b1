// Package class exposes the class roster to the scheduler and manages curriculum unit transitions.
package class

import (
	"context"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/curriculum"
	"github.com/trezcool/ratiba/core/wallclock"
)

var (
	ErrNotFound = errors.New("class not found")
	ErrSameUnit = errors.New("class is already on this unit")
	// ErrUnitChanged is returned by Repository.AppendUnitTransition when the class left entry.FromUnit.
	ErrUnitChanged = errors.New("class unit changed concurrently")

	nowFunc = time.Now // mockable

	maxTransitionAttempts = 5
)

type (
	Repository interface {
		GetClass(ctx context.Context, id string, exec ...core.DBExecutor) (Class, error)
		QueryClasses(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]Class, error)
		// AppendUnitTransition atomically moves the class from entry.FromUnit to entry.ToUnit and
		// appends entry to its unit history. It fails with ErrUnitChanged when the class is no longer
		// on entry.FromUnit.
		AppendUnitTransition(ctx context.Context, id string, entry curriculum.UnitTransition, exec ...core.DBExecutor) (Class, error)
	}

	ServiceInterface interface {
		Get(ctx context.Context, id string) (Class, error)
		Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error)
		SuggestUnits(ctx context.Context, id string) (UnitSuggestions, error)
		TransitionUnit(ctx context.Context, actor core.Actor, id string, tr TransitionRequest) (Class, error)
		SuggestLessonName(ctx context.Context, id, lessonIndex string) (string, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
		loc    *time.Location
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, logger core.Logger, conf *core.Config) (*Service, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(conf, "conf"),
	).Check(); err != nil {
		return nil, err
	}
	loc, err := wallclock.LoadZone(conf.Schedule.DefaultTimezone)
	if err != nil {
		return nil, errors.Wrap(err, "loading default timezone")
	}
	return &Service{repo: repo, logger: logger, loc: loc}, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Class, error) {
	return svc.repo.GetClass(ctx, core.CleanString(id))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Class, error) {
	if filter != nil {
		filter.Clean()
	}
	return svc.repo.QueryClasses(ctx, filter, ordering)
}

func (svc *Service) SuggestUnits(ctx context.Context, id string) (UnitSuggestions, error) {
	cls, err := svc.Get(ctx, id)
	if err != nil {
		return UnitSuggestions{}, err
	}
	return UnitSuggestions{
		CurrentUnit:    cls.CurrentUnit,
		NextUnit:       curriculum.NextUnit(cls.CurrentUnit),
		TransitionUnit: curriculum.SuggestTransitionUnit(cls.CurrentUnit),
	}, nil
}

// TransitionUnit moves a class to tr.ToUnit (the transition suggestion when empty)
// and appends the move to the class's unit history.
func (svc *Service) TransitionUnit(ctx context.Context, actor core.Actor, id string, tr TransitionRequest) (Class, error) {
	for attempt := 1; ; attempt++ {
		updated, entry, err := svc.transitionUnit(ctx, id, tr)
		if errors.Cause(err) == ErrUnitChanged && attempt < maxTransitionAttempts {
			continue
		}
		if err != nil {
			return Class{}, err
		}
		svc.logger.Info("class unit transitioned", map[string]interface{}{
			"class_id": updated.ID,
			"from":     entry.FromUnit,
			"to":       entry.ToUnit,
		}, actor)
		return updated, nil
	}
}

func (svc *Service) transitionUnit(ctx context.Context, id string, tr TransitionRequest) (Class, curriculum.UnitTransition, error) {
	cls, err := svc.Get(ctx, id)
	if err != nil {
		return Class{}, curriculum.UnitTransition{}, err
	}

	toUnit := tr.ToUnit
	if toUnit == "" {
		toUnit = curriculum.SuggestTransitionUnit(cls.CurrentUnit)
	}
	if toUnit == cls.CurrentUnit {
		return Class{}, curriculum.UnitTransition{}, core.NewValidationError(nil, core.FieldError{Field: "to_unit", Error: ErrSameUnit.Error()})
	}

	now := nowFunc().UTC()
	date := tr.TransitionDate
	if date == "" {
		date = wallclock.DateIn(now, svc.loc)
	}

	entry := curriculum.UnitTransition{
		FromUnit:       cls.CurrentUnit,
		ToUnit:         toUnit,
		TransitionDate: date,
		CreatedAt:      now,
	}
	updated, err := svc.repo.AppendUnitTransition(ctx, cls.ID, entry)
	if err != nil {
		return Class{}, entry, errors.Wrap(err, "updating class unit")
	}
	return updated, entry, nil
}

// SuggestLessonName applies the curriculum naming rule to a stored class.
// An empty name with a nil error means the lesson must be named by hand.
func (svc *Service) SuggestLessonName(ctx context.Context, id, lessonIndex string) (string, error) {
	cls, err := svc.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return curriculum.LessonName(cls.Name, cls.ProgramType, cls.CurrentUnit, core.CleanString(lessonIndex)), nil
}
