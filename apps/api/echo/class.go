package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/class"
)

type classApi struct {
	svc      class.ServiceInterface
	validate *validator.Validate
}

type lessonNameQuery struct {
	Lesson string `query:"lesson" validate:"required,lesson_index"`
}

type lessonNameResponse struct {
	LessonName string `json:"lesson_name"`
	// Manual is true when the class does not follow the curriculum: the lesson must be named by hand.
	Manual bool `json:"manual"`
}

func registerClassAPI(g *echo.Group, svc class.ServiceInterface, validate *validator.Validate) {
	api := classApi{svc: svc, validate: validate}

	cg := g.Group("/classes")
	cg.GET("", api.query)

	dg := cg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.GET("/unit-suggestions", api.unitSuggestions)
	dg.GET("/lesson-name", api.lessonName)
	dg.POST("/unit-transitions", api.transitionUnit, roleMiddleware(RoleAdmin, RoleScheduler))
}

// Handlers

func (api *classApi) query(ctx echo.Context) error {
	var filter class.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var ord Ordering
	ord.Bind(ctx)

	classes, err := api.svc.Query(ctx.Request().Context(), &filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying classes")
	}
	return ctx.JSON(http.StatusOK, classes)
}

func (api *classApi) retrieve(ctx echo.Context) error {
	cls, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting class")
	}
	return ctx.JSON(http.StatusOK, cls)
}

func (api *classApi) unitSuggestions(ctx echo.Context) error {
	sug, err := api.svc.SuggestUnits(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "suggesting units")
	}
	return ctx.JSON(http.StatusOK, sug)
}

func (api *classApi) lessonName(ctx echo.Context) error {
	q := lessonNameQuery{Lesson: core.CleanString(ctx.QueryParam("lesson"))}
	if err := api.validate.Struct(&q); err != nil {
		return err
	}

	name, err := api.svc.SuggestLessonName(ctx.Request().Context(), ctx.Param("id"), q.Lesson)
	if err != nil {
		return errors.Wrap(err, "suggesting lesson name")
	}
	return ctx.JSON(http.StatusOK, lessonNameResponse{LessonName: name, Manual: name == ""})
}

func (api *classApi) transitionUnit(ctx echo.Context) error {
	var data class.TransitionRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to TransitionRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	cls, err := api.svc.TransitionUnit(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "transitioning class unit")
	}
	return ctx.JSON(http.StatusOK, cls)
}
