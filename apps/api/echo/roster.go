package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/curriculum"
	"github.com/trezcool/ratiba/core/roster"
)

type rosterApi struct {
	roster roster.Roster
}

// registerRosterAPI serves the pickers of the scheduling form: teachers, rooms and lesson indexes.
func registerRosterAPI(g *echo.Group, rost roster.Roster) {
	api := rosterApi{roster: rost}

	rg := g.Group("/rosters")
	rg.GET("/employees", api.employees)
	rg.GET("/rooms", api.rooms)

	g.GET("/units/lessons", api.lessons)
}

func bindRosterFilter(ctx echo.Context) (*roster.QueryFilter, error) {
	var filter roster.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return nil, errors.Wrap(err, "binding to QueryFilter")
	}
	return &filter, nil
}

// Handlers

func (api *rosterApi) employees(ctx echo.Context) error {
	filter, err := bindRosterFilter(ctx)
	if err != nil {
		return err
	}
	emps, err := api.roster.QueryEmployees(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying employees")
	}
	return ctx.JSON(http.StatusOK, emps)
}

func (api *rosterApi) rooms(ctx echo.Context) error {
	filter, err := bindRosterFilter(ctx)
	if err != nil {
		return err
	}
	rooms, err := api.roster.QueryRooms(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying rooms")
	}
	return ctx.JSON(http.StatusOK, rooms)
}

func (api *rosterApi) lessons(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, curriculum.LessonIndexes())
}
