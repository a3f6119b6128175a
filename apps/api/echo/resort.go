package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/resort"
)

type resortApi struct {
	svc      *resort.Service
	auth     *authenticator
	validate *validator.Validate
	trans    *core.Translators
}

func registerResortAPI(g *echo.Group, jwt, limit echo.MiddlewareFunc, s *server) {
	api := resortApi{
		svc:      s.deps.Resorts,
		auth:     s.auth,
		validate: s.deps.Validate,
		trans:    s.deps.Translators,
	}

	g.GET("/resorts", api.query)
	g.GET("/resorts/:id", api.retrieve)
	g.POST("/resort-requests", api.submitRequest, jwt, limit)
}

func (api *resortApi) query(ctx echo.Context) error {
	var filter resort.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return core.NewValidationError(errors.New("invalid resort filter"))
	}
	filter.ActiveOnly = true
	page := bindPage(ctx)

	resorts, total, err := api.svc.List(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "listing resorts")
	}
	if resorts == nil {
		resorts = []resort.Resort{}
	}
	return ctx.JSON(http.StatusOK, core.NewPage(resorts, total, page))
}

func (api *resortApi) retrieve(ctx echo.Context) error {
	rst, err := api.svc.Get(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding resort")
	}
	if !rst.Active {
		return resort.ErrNotFound
	}
	return ctx.JSON(http.StatusOK, rst)
}

func (api *resortApi) submitRequest(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data resort.NewRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	req, err := api.svc.SubmitRequest(ctx.Request().Context(), usr.ID, data)
	if err != nil {
		return errors.Wrap(err, "submitting resort request")
	}
	return ctx.JSON(http.StatusCreated, RequestResponse{
		Request: req,
		Success: api.trans.T(requestLocale(ctx), msgResortRequestQueued),
	})
}

type RequestResponse struct {
	Request resort.Request `json:"request"`
	Success string         `json:"success"`
}
