package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/session"
)

type mainSessionApi struct {
	svc      session.ServiceInterface
	validate *validator.Validate
}

func registerMainSessionAPI(g *echo.Group, svc session.ServiceInterface, validate *validator.Validate) {
	api := mainSessionApi{svc: svc, validate: validate}

	mg := g.Group("/main-sessions")
	mg.POST("", api.create)
	mg.GET("", api.query)
	mg.GET("/:id", api.retrieve)
	mg.PUT("/:id", api.update)
	mg.DELETE("/:id", api.destroy)
}

// Handlers

func (api *mainSessionApi) create(ctx echo.Context) error {
	var data session.NewMainSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMainSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	ms, err := api.svc.CreateMainSession(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "creating main session")
	}
	return ctx.JSON(http.StatusCreated, ms)
}

func (api *mainSessionApi) query(ctx echo.Context) error {
	var filter session.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	var ord Ordering
	ord.Bind(ctx)

	mss, err := api.svc.QueryMainSessions(ctx.Request().Context(), &filter, ord.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying main sessions")
	}
	return ctx.JSON(http.StatusOK, mss)
}

func (api *mainSessionApi) retrieve(ctx echo.Context) error {
	ms, err := api.svc.GetMainSession(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "getting main session")
	}
	return ctx.JSON(http.StatusOK, ms)
}

func (api *mainSessionApi) update(ctx echo.Context) error {
	var data session.UpdateMainSession
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateMainSession")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	ms, err := api.svc.UpdateMainSession(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating main session")
	}
	return ctx.JSON(http.StatusOK, ms)
}

func (api *mainSessionApi) destroy(ctx echo.Context) error {
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.DeleteMainSession(ctx.Request().Context(), actor, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting main session")
	}
	return ctx.NoContent(http.StatusNoContent)
}
