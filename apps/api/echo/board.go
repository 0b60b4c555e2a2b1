package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/board"
)

type boardApi struct {
	svc      board.ServiceInterface
	validate *validator.Validate
}

func registerBoardAPI(g *echo.Group, svc board.ServiceInterface, validate *validator.Validate) {
	api := boardApi{svc: svc, validate: validate}

	bg := g.Group("/board")
	bg.GET("", api.retrieve)
	bg.POST("/preview", api.preview)
	bg.POST("/drop", api.drop)
	bg.PUT("/sessions/:id", api.edit)
}

func (api *boardApi) bindDrop(ctx echo.Context) (board.DropRequest, error) {
	var data board.DropRequest
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to DropRequest")
	}
	data.Clean()
	if err := api.validate.Struct(&data); err != nil {
		return data, err
	}
	return data, nil
}

// Handlers

func (api *boardApi) retrieve(ctx echo.Context) error {
	var q board.Query
	if err := ctx.Bind(&q); err != nil {
		return errors.Wrap(err, "binding to board Query")
	}
	q.Clean()
	if err := api.validate.Struct(&q); err != nil {
		return err
	}

	b, err := api.svc.Board(ctx.Request().Context(), q)
	if err != nil {
		return errors.Wrap(err, "building board")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *boardApi) preview(ctx echo.Context) error {
	data, err := api.bindDrop(ctx)
	if err != nil {
		return err
	}
	p, err := api.svc.Preview(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "previewing drop")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *boardApi) drop(ctx echo.Context) error {
	data, err := api.bindDrop(ctx)
	if err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}
	s, err := api.svc.Drop(ctx.Request().Context(), actor, data)
	if err != nil {
		return errors.Wrap(err, "dropping session")
	}
	return ctx.JSON(http.StatusOK, s)
}

func (api *boardApi) edit(ctx echo.Context) error {
	var data board.Edit
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Edit")
	}
	data.Timezone = core.CleanString(data.Timezone)
	if err := api.validate.Struct(&data); err != nil {
		return err
	}
	actor, err := getContextActor(ctx)
	if err != nil {
		return err
	}

	s, err := api.svc.Edit(ctx.Request().Context(), actor, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "editing session")
	}
	return ctx.JSON(http.StatusOK, s)
}
