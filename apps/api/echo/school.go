package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/school"
	"github.com/trezcool/slopeside/core/user"
)

type schoolApi struct {
	svc      *school.Service
	auth     *authenticator
	validate *validator.Validate
	trans    *core.Translators
}

func registerSchoolAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := schoolApi{
		svc:      s.deps.Schools,
		auth:     s.auth,
		validate: s.deps.Validate,
		trans:    s.deps.Translators,
	}
	admins := s.auth.role(user.RoleSchoolAdmin)

	sg := g.Group("/schools")
	sg.GET("", api.query)
	sg.GET("/:id", api.retrieve)
	sg.GET("/:id/members", api.members)
	sg.POST("", api.create, jwt, admins)
	sg.PUT("/:id", api.update, jwt, admins)
	sg.DELETE("/:id/members/:instructorId", api.removeMember, jwt, admins)
	sg.POST("/:id/invitations", api.invite, jwt, admins)
	sg.GET("/:id/invitations", api.invitations, jwt, admins)
	sg.DELETE("/:id/invitations/:invId", api.revokeInvitation, jwt, admins)
	sg.POST("/:id/transfer", api.transfer, jwt, admins)

	ig := g.Group("/invitations", jwt)
	ig.POST("/:token/accept", api.acceptInvitation, s.auth.role(user.RoleInstructor))
	ig.POST("/:token/decline", api.declineInvitation)
}

func (api *schoolApi) query(ctx echo.Context) error {
	var filter school.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return core.NewValidationError(errors.New("invalid school filter"))
	}
	page := bindPage(ctx)

	schools, total, err := api.svc.Query(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying schools")
	}
	if schools == nil {
		schools = []school.School{}
	}
	return ctx.JSON(http.StatusOK, core.NewPage(schools, total, page))
}

// retrieve accepts either the school slug or its ID.
func (api *schoolApi) retrieve(ctx echo.Context) error {
	var (
		sch school.School
		err error
	)
	if _, uErr := uuid.Parse(ctx.Param("id")); uErr == nil {
		sch, err = api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
	} else {
		sch, err = api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("id"))
	}
	if err != nil {
		return errors.Wrap(err, "finding school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) members(ctx echo.Context) error {
	members, err := api.svc.Members(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing school members")
	}
	if members == nil {
		members = []instructor.Instructor{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *schoolApi) bindData(ctx echo.Context) (school.SchoolData, error) {
	var data school.SchoolData
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to SchoolData")
	}
	return data, data.Validate(api.validate)
}

func (api *schoolApi) create(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	data, err := api.bindData(ctx)
	if err != nil {
		return err
	}

	sch, err := api.svc.Create(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "creating school")
	}
	return ctx.JSON(http.StatusCreated, sch)
}

func (api *schoolApi) update(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	data, err := api.bindData(ctx)
	if err != nil {
		return err
	}

	sch, err := api.svc.Update(ctx.Request().Context(), usr.ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) removeMember(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.svc.RemoveInstructor(ctx.Request().Context(), usr.ID, ctx.Param("id"), ctx.Param("instructorId")); err != nil {
		return errors.Wrap(err, "removing school member")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *schoolApi) bindEmail(ctx echo.Context) (school.EmailRequest, error) {
	var data school.EmailRequest
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to EmailRequest")
	}
	return data, data.Validate(api.validate)
}

func (api *schoolApi) invite(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	data, err := api.bindEmail(ctx)
	if err != nil {
		return err
	}

	inv, err := api.svc.Invite(ctx.Request().Context(), usr, ctx.Param("id"), data.Email)
	if err != nil {
		return errors.Wrap(err, "inviting instructor")
	}
	return ctx.JSON(http.StatusCreated, inv)
}

func (api *schoolApi) invitations(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	invs, err := api.svc.ListInvitations(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "listing invitations")
	}
	if invs == nil {
		invs = []school.Invitation{}
	}
	return ctx.JSON(http.StatusOK, invs)
}

func (api *schoolApi) revokeInvitation(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if _, err = api.svc.RevokeInvitation(ctx.Request().Context(), usr.ID, ctx.Param("id"), ctx.Param("invId")); err != nil {
		return errors.Wrap(err, "revoking invitation")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: api.trans.T(requestLocale(ctx), msgInvitationRevoked)})
}

func (api *schoolApi) transfer(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	data, err := api.bindEmail(ctx)
	if err != nil {
		return err
	}

	sch, err := api.svc.TransferOwnership(ctx.Request().Context(), usr, ctx.Param("id"), data.Email)
	if err != nil {
		return errors.Wrap(err, "transferring ownership")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *schoolApi) acceptInvitation(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	inv, err := api.svc.AcceptInvitation(ctx.Request().Context(), usr, ctx.Param("token"))
	if err != nil {
		return errors.Wrap(err, "accepting invitation")
	}
	return ctx.JSON(http.StatusOK, inv)
}

func (api *schoolApi) declineInvitation(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if _, err = api.svc.DeclineInvitation(ctx.Request().Context(), usr, ctx.Param("token")); err != nil {
		return errors.Wrap(err, "declining invitation")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: api.trans.T(requestLocale(ctx), msgInvitationDeclined)})
}
