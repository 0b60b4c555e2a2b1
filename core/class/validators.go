package class

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/curriculum"
)

var (
	unitTag  = "unit"
	unitText = "must be a curriculum unit such as U10"

	lessonIndexTag  = "lesson_index"
	lessonIndexText = "must be a lesson index between L1 and L40"
)

// InitValidators registers the curriculum validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(unitTag, unitValidation)
	core.RegisterCustomTranslation(validate, translator, unitTag, unitText)

	_ = validate.RegisterValidation(lessonIndexTag, lessonIndexValidation)
	core.RegisterCustomTranslation(validate, translator, lessonIndexTag, lessonIndexText)
}

func unitValidation(fl validator.FieldLevel) bool {
	return curriculum.IsUnit(fl.Field().String())
}

func lessonIndexValidation(fl validator.FieldLevel) bool {
	return curriculum.IsLessonIndex(fl.Field().String())
}
