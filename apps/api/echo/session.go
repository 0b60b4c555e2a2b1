package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/session"
)

type sessionApi struct {
	svc      session.ServiceInterface
	validate *validator.Validate
}

func registerSessionAPI(g *echo.Group, svc session.ServiceInterface, validate *validator.Validate) {
	api := sessionApi{svc: svc, validate: validate}

	sg := g.Group("/sessions")
	sg.GET("", api.list)
	sg.PUT("/:id", api.update)
}

// Handlers

func (api *sessionApi) list(ctx echo.Context) error {
	var w session.Window
	if err := ctx.Bind(&w); err != nil {
		return errors.Wrap(err, "binding to Window")
	}
	if err := w.Validate(api.validate); err != nil {
		return err
	}

	views, err := api.svc.ListSessions(ctx.Request().Context(), w)
	if err != nil {
		return errors.Wrap(err, "listing sessions")
	}
	return ctx.JSON(http.StatusOK, views)
}

// update applies any subset of teacher, assistant, room, start, end and date.
// The new times are not checked against the teacher's other bookings.
func (api *sessionApi) update(ctx echo.Context) error {
	var data session.UpdateSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	s, err := api.svc.UpdateSession(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating session")
	}
	return ctx.JSON(http.StatusOK, s)
}
