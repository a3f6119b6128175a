package echoapi

import (
	"net/http"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/transition"
	"github.com/trezcool/slopeside/core/user"
)

var (
	errUsrNotFoundInCtx  = errors.New("user object not found in echo.Context")
	errNoPermsToSetRoles = "not enough rights to set these roles"
)

const contextObjectKey = "object"

type userApi struct {
	svc         user.Service
	transitions *transition.Service
	auth        *authenticator
	validate    *validator.Validate
	trans       *core.Translators
	logger      core.Logger
}

func registerUserAPI(g *echo.Group, jwt, limit echo.MiddlewareFunc, s *server) {
	api := userApi{
		svc:         s.deps.UserSvc,
		transitions: s.deps.Transitions,
		auth:        s.auth,
		validate:    s.deps.Validate,
		trans:       s.deps.Translators,
		logger:      s.deps.Logger,
	}

	// un-authed endpoints
	ag := g.Group("/auth")
	ag.POST("/register", api.register, limit)
	ag.POST("/login", api.login, limit)
	ag.POST("/password-reset", api.resetPassword, limit)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset, limit)
	ag.POST("/token-refresh", api.refreshToken, jwt)

	// own account
	mg := g.Group("/me", jwt)
	mg.GET("", api.me)
	mg.PUT("", api.updateMe)
	mg.POST("/role", api.transitionMe)
	mg.GET("/transitions", api.myTransitions)

	// staff endpoints
	ug := g.Group("/admin/users", jwt, s.auth.staff())
	ug.GET("", api.query)
	ug.POST("", api.create, s.auth.staff(user.StaffRoleOwner))
	ug.DELETE("", api.destroyMultiple, s.auth.staff(user.StaffRoleOwner))
	ug.GET("/roles", api.queryRoles)

	// detail endpoints
	dg := ug.Group("/:id", api.objectMiddleware)
	dg.GET("", api.retrieve)
	dg.PUT("", api.update)
	dg.DELETE("", api.destroy, s.auth.staff(user.StaffRoleOwner))
	dg.POST("/active", api.setActive)
	dg.POST("/role", api.transitionRole)
}

// Handlers

func (api *userApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if data.Locale == "" {
		data.Locale = requestLocale(ctx)
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	usr, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	claims, err := api.auth.authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(api.auth.conf, claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refreshToken(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ctx.JSON(http.StatusOK, LoginResponse{Token: token})
}

func (api *userApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || core.IsNotFound(err)) {
		// do not return errors to attackers
		api.logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: api.trans.T(requestLocale(ctx), msgPasswordResetSent)})
}

func (api *userApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if _, err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: api.trans.T(requestLocale(ctx), msgPasswordResetDone)})
}

func (api *userApi) me(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) updateMe(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.UpdateUser
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	// account status & staff roles are managed by staff only
	if data.IsActive != nil || data.StaffRoles != nil {
		return errHttpForbidden
	}
	if err = data.Validate(ctx.Request().Context(), usr, api.validate, api.svc); err != nil {
		return err
	}

	if usr, err = api.svc.Update(ctx.Request().Context(), usr.ID, data); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) transitionMe(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return api.doTransition(ctx, usr.ID, usr.ID, true)
}

func (api *userApi) myTransitions(ctx echo.Context) error {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	transitions, err := api.svc.ListTransitions(ctx.Request().Context(), usr.ID)
	if err != nil {
		return errors.Wrap(err, "listing role transitions")
	}
	if transitions == nil {
		transitions = []user.RoleTransition{}
	}
	return ctx.JSON(http.StatusOK, transitions)
}

// doTransition switches userID's marketplace role; a fresh token is issued when users switch their own.
func (api *userApi) doTransition(ctx echo.Context, actorID, userID string, issueToken bool) error {
	var data RoleRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to RoleRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, rt, err := api.transitions.TransitionRole(ctx.Request().Context(), actorID, userID, data.Role)
	if err != nil {
		return errors.Wrap(err, "transitioning role")
	}

	resp := TransitionResponse{User: usr, Transition: rt}
	if issueToken {
		if resp.Token, err = GenerateToken(api.auth.conf, GetUserClaims(api.auth.conf, usr)); err != nil {
			return errors.Wrap(err, "generating token")
		}
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *userApi) create(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}
	if err := data.Validate(ctx.Request().Context(), api.validate, api.svc); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own max role
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if user.MaxRolePriority(data.StaffRoles) > user.MaxRolePriority(ctxUsr.StaffRoles) {
		return core.NewValidationError(nil, core.FieldError{Field: "staff_roles", Error: errNoPermsToSetRoles})
	}

	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (api *userApi) query(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, core.NewPage([]user.User{}, 0, core.PageRequest{}))
	}
	ordering := new(Ordering)
	ordering.Bind(ctx, "name", "email", "role", "created_at", "last_login")
	page := bindPage(ctx)

	users, total, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings, page)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, core.NewPage(users, total, page))
}

func (api *userApi) retrieve(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) update(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}
	// suspension goes through /active so that it is audited
	if data.IsActive != nil {
		return errHttpForbidden
	}
	if err := data.Validate(ctx.Request().Context(), usr, api.validate, api.svc); err != nil {
		return err
	}

	// ctxUser cannot set a role > their own max role
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if user.MaxRolePriority(data.StaffRoles) > user.MaxRolePriority(ctxUsr.StaffRoles) ||
		user.MaxRolePriority(usr.StaffRoles) > user.MaxRolePriority(ctxUsr.StaffRoles) {
		return core.NewValidationError(nil, core.FieldError{Field: "staff_roles", Error: errNoPermsToSetRoles})
	}

	if usr, err = api.svc.Update(ctx.Request().Context(), usr.ID, data); err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) setActive(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	var data ActiveRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ActiveRequest")
	}
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr, err = api.svc.SetActive(ctx.Request().Context(), ctxUsr, usr.ID, *data.Active); err != nil {
		return errors.Wrap(err, "setting user active")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (api *userApi) transitionRole(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	return api.doTransition(ctx, ctxUsr.ID, usr.ID, false)
}

func (api *userApi) destroy(ctx echo.Context) error {
	usr, ok := ctx.Get(contextObjectKey).(user.User)
	if !ok {
		return errors.Wrap(errUsrNotFoundInCtx, "retrieving object from context")
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if usr.ID == ctxUsr.ID {
		return errHttpForbidden
	}
	if user.MaxRolePriority(usr.StaffRoles) > user.MaxRolePriority(ctxUsr.StaffRoles) {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), usr.ID); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	ctxUsr, err := api.auth.contextUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	sort.Strings(query.IDs)
	if i := sort.SearchStrings(query.IDs, ctxUsr.ID); i < len(query.IDs) {
		if match := query.IDs[i]; ctxUsr.ID == match {
			return errHttpForbidden
		}
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting users")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *userApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, user.Roles)
}

// objectMiddleware loads the user named by `:id` into the context.
func (api *userApi) objectMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		usr, err := api.svc.GetByID(ctx.Request().Context(), ctx.Param("id"))
		if err != nil {
			if core.IsNotFound(err) {
				return errHttpNotFound
			}
			return errors.Wrap(err, "finding user by ID")
		}
		ctx.Set(contextObjectKey, usr)
		return next(ctx)
	}
}

type TransitionResponse struct {
	User       user.User           `json:"user"`
	Transition user.RoleTransition `json:"transition"`
	Token      string              `json:"token,omitempty"`
}
