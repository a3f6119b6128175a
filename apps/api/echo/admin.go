package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/admin"
	"github.com/trezcool/slopeside/core/audit"
	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/resort"
	"github.com/trezcool/slopeside/core/review"
	"github.com/trezcool/slopeside/core/school"
)

// adminApi serves the moderation dashboard. User management lives with the user API.
type adminApi struct {
	svc         *admin.Service
	audit       *audit.Service
	instructors *instructor.Service
	schools     *school.Service
	reviews     *review.Service
	resorts     *resort.Service
	bookings    *booking.Service
	auth        *authenticator
	validate    *validator.Validate
}

func registerAdminAPI(g *echo.Group, jwt echo.MiddlewareFunc, s *server) {
	api := adminApi{
		svc:         s.deps.Admin,
		audit:       s.deps.Audit,
		instructors: s.deps.Instructors,
		schools:     s.deps.Schools,
		reviews:     s.deps.Reviews,
		resorts:     s.deps.Resorts,
		bookings:    s.deps.Bookings,
		auth:        s.auth,
		validate:    s.deps.Validate,
	}

	ag := g.Group("/admin", jwt, s.auth.staff())
	ag.GET("/stats", api.stats)
	ag.GET("/audit", api.auditLog)
	ag.POST("/instructors/:id/verify", api.verifyInstructor)
	ag.POST("/schools/:id/verify", api.verifySchool)
	ag.POST("/reviews/:id/hidden", api.hideReview)
	ag.GET("/resort-requests", api.resortRequests)
	ag.POST("/resort-requests/:id/approve", api.approveResortRequest)
	ag.POST("/resort-requests/:id/reject", api.rejectResortRequest)
	ag.GET("/resorts", api.allResorts)
	ag.POST("/resorts", api.createResort)
	ag.POST("/resorts/:id/active", api.setResortActive)
	ag.POST("/deposits/:id/refund", api.refundDeposit)
}

func (api *adminApi) actorID(ctx echo.Context) (string, error) {
	usr, err := api.auth.contextUser(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	return usr.ID, nil
}

func (api *adminApi) stats(ctx echo.Context) error {
	stats, err := api.svc.Stats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *adminApi) auditLog(ctx echo.Context) error {
	var filter audit.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return core.NewValidationError(errors.New("invalid audit filter"))
	}
	page := bindPage(ctx)

	entries, total, err := api.audit.Query(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "querying audit log")
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	return ctx.JSON(http.StatusOK, core.NewPage(entries, total, page))
}

func (api *adminApi) verifyInstructor(ctx echo.Context) error {
	actorID, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	var data VerifiedRequest
	if err = api.bindFlag(ctx, &data); err != nil {
		return err
	}

	ins, err := api.instructors.SetVerified(ctx.Request().Context(), actorID, ctx.Param("id"), *data.Verified)
	if err != nil {
		return errors.Wrap(err, "verifying instructor")
	}
	return ctx.JSON(http.StatusOK, ins)
}

func (api *adminApi) verifySchool(ctx echo.Context) error {
	actorID, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	var data VerifiedRequest
	if err = api.bindFlag(ctx, &data); err != nil {
		return err
	}

	sch, err := api.schools.SetVerified(ctx.Request().Context(), actorID, ctx.Param("id"), *data.Verified)
	if err != nil {
		return errors.Wrap(err, "verifying school")
	}
	return ctx.JSON(http.StatusOK, sch)
}

func (api *adminApi) hideReview(ctx echo.Context) error {
	actorID, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	var data HiddenRequest
	if err = api.bindFlag(ctx, &data); err != nil {
		return err
	}

	rev, err := api.reviews.SetHidden(ctx.Request().Context(), actorID, ctx.Param("id"), *data.Hidden)
	if err != nil {
		return errors.Wrap(err, "hiding review")
	}
	return ctx.JSON(http.StatusOK, rev)
}

func (api *adminApi) resortRequests(ctx echo.Context) error {
	var filter resort.RequestFilter
	if err := ctx.Bind(&filter); err != nil {
		return core.NewValidationError(errors.New("invalid request filter"))
	}
	page := bindPage(ctx)

	reqs, total, err := api.resorts.ListRequests(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "listing resort requests")
	}
	if reqs == nil {
		reqs = []resort.Request{}
	}
	return ctx.JSON(http.StatusOK, core.NewPage(reqs, total, page))
}

func (api *adminApi) bindReview(ctx echo.Context) (resort.ReviewRequest, error) {
	var data resort.ReviewRequest
	if err := ctx.Bind(&data); err != nil {
		return data, errors.Wrap(err, "binding to ReviewRequest")
	}
	data.Note = core.CleanString(data.Note)
	return data, api.validate.Struct(data)
}

func (api *adminApi) approveResortRequest(ctx echo.Context) error {
	actorID, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	data, err := api.bindReview(ctx)
	if err != nil {
		return err
	}

	req, err := api.resorts.Approve(ctx.Request().Context(), actorID, ctx.Param("id"), data.Note)
	if err != nil {
		return errors.Wrap(err, "approving resort request")
	}
	return ctx.JSON(http.StatusOK, req)
}

func (api *adminApi) rejectResortRequest(ctx echo.Context) error {
	actorID, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	data, err := api.bindReview(ctx)
	if err != nil {
		return err
	}

	req, err := api.resorts.Reject(ctx.Request().Context(), actorID, ctx.Param("id"), data.Note)
	if err != nil {
		return errors.Wrap(err, "rejecting resort request")
	}
	return ctx.JSON(http.StatusOK, req)
}

// allResorts also lists deactivated resorts.
func (api *adminApi) allResorts(ctx echo.Context) error {
	var filter resort.QueryFilter
	if err := ctx.Bind(&filter); err != nil {
		return core.NewValidationError(errors.New("invalid resort filter"))
	}
	page := bindPage(ctx)

	resorts, total, err := api.resorts.List(ctx.Request().Context(), filter, page)
	if err != nil {
		return errors.Wrap(err, "listing resorts")
	}
	if resorts == nil {
		resorts = []resort.Resort{}
	}
	return ctx.JSON(http.StatusOK, core.NewPage(resorts, total, page))
}

func (api *adminApi) createResort(ctx echo.Context) error {
	actorID, err := api.actorID(ctx)
	if err != nil {
		return err
	}

	var data resort.NewResort
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewResort")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rst, err := api.resorts.Create(ctx.Request().Context(), actorID, data)
	if err != nil {
		return errors.Wrap(err, "creating resort")
	}
	return ctx.JSON(http.StatusCreated, rst)
}

func (api *adminApi) setResortActive(ctx echo.Context) error {
	actorID, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	var data ActiveRequest
	if err = api.bindFlag(ctx, &data); err != nil {
		return err
	}

	rst, err := api.resorts.SetActive(ctx.Request().Context(), actorID, ctx.Param("id"), *data.Active)
	if err != nil {
		return errors.Wrap(err, "setting resort active")
	}
	return ctx.JSON(http.StatusOK, rst)
}

func (api *adminApi) refundDeposit(ctx echo.Context) error {
	actorID, err := api.actorID(ctx)
	if err != nil {
		return err
	}
	dep, err := api.bookings.RefundDeposit(ctx.Request().Context(), actorID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "refunding deposit")
	}
	return ctx.JSON(http.StatusOK, dep)
}

// bindFlag binds and validates one of the {"flag": bool} requests.
func (api *adminApi) bindFlag(ctx echo.Context, data interface{}) error {
	if err := ctx.Bind(data); err != nil {
		return errors.Wrap(err, "binding flag request")
	}
	return api.validate.Struct(data)
}
