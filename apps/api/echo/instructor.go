package echoapi

import (
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/calendar"
	"github.com/trezcool/slopeside/core/instructor"
	"github.com/trezcool/slopeside/core/pricing"
	"github.com/trezcool/slopeside/core/review"
	"github.com/trezcool/slopeside/core/school"
	"github.com/trezcool/slopeside/core/user"
)

// calendars are shown two months ahead unless asked otherwise
const defaultCalendarDays = 60

type instructorApi struct {
	svc      *instructor.Service
	pricing  *pricing.Service
	calendar *calendar.Service
	reviews  *review.Service
	schools  *school.Service
	auth     *authenticator
	validate *validator.Validate
	trans    *core.Translators
}

func registerInstructorAPI(g *echo.Group, jwt, limit echo.MiddlewareFunc, s *server) {
	api := instructorApi{
		svc:      s.deps.Instructors,
		pricing:  s.deps.Pricing,
		calendar: s.deps.Calendar,
		reviews:  s.deps.Reviews,
		schools:  s.deps.Schools,
		auth:     s.auth,
		validate: s.deps.Validate,
		trans:    s.deps.Translators,
	}

	// public directory
	dg := g.Group("/instructors")
	dg.GET("", api.directory)
	dg.GET("/:id", api.retrieve)
	dg.GET("/:id/calendar", api.publicCalendar)
	dg.GET("/:id/reviews", api.publicReviews)
	dg.GET("/:id/pricing", api.publicRules)
	dg.POST("/:id/quote", api.quote, limit)

	// instructor self-service
	mg := g.Group("/me/instructor", jwt, s.auth.role(user.RoleInstructor))
	mg.GET("", api.ownProfile)
	mg.PUT("", api.updateProfile)
	mg.POST("/publish", api.publish)
	mg.POST("/unpublish", api.unpublish)
	mg.GET("/pricing", api.ownRules)
	mg.POST("/pricing", api.createRule)
	mg.PUT("/pricing/:ruleId", api.updateRule)
	mg.DELETE("/pricing/:ruleId", api.deleteRule)
	mg.GET("/calendar", api.ownCalendar)
	mg.POST("/calendar", api.addUnavailable)
	mg.DELETE("/calendar/:blockId", api.removeBlock)
	mg.POST("/leave-school", api.leaveSchool)
}

// Public handlers

func (api *instructorApi) directory(ctx echo.Context) error {
	var filter instructor.DirectoryFilter
	if err := ctx.Bind(&filter); err != nil {
		return core.NewValidationError(errors.New("invalid directory filter"))
	}
	page := bindPage(ctx)
	ordering := instructor.ParseOrdering(ctx.QueryParam(orderingParam))

	profiles, total, err := api.svc.Directory(ctx.Request().Context(), filter, ordering, page)
	if err != nil {
		return errors.Wrap(err, "querying directory")
	}
	if profiles == nil {
		profiles = []instructor.Instructor{}
	}
	return ctx.JSON(http.StatusOK, core.NewPage(profiles, total, page))
}

// retrieve accepts either the profile slug or its ID.
func (api *instructorApi) retrieve(ctx echo.Context) error {
	ins, err := api.svc.GetBySlug(ctx.Request().Context(), ctx.Param("id"))
	if core.IsNotFound(err) {
		if _, uErr := uuid.Parse(ctx.Param("id")); uErr == nil {
			ins, err = api.svc.GetPublic(ctx.Request().Context(), ctx.Param("id"))
		}
	}
	if err != nil {
		return errors.Wrap(err, "finding instructor")
	}
	return ctx.JSON(http.StatusOK, ins)
}

func (api *instructorApi) publicProfile(ctx echo.Context) (instructor.Instructor, error) {
	ins, err := api.svc.GetPublic(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return instructor.Instructor{}, errors.Wrap(err, "finding instructor")
	}
	return ins, nil
}

func (api *instructorApi) publicCalendar(ctx echo.Context) error {
	ins, err := api.publicProfile(ctx)
	if err != nil {
		return err
	}
	from, to, err := bindDateRange(ctx)
	if err != nil {
		return err
	}

	blocks, err := api.calendar.PublicRange(ctx.Request().Context(), ins.ID, from, to)
	if err != nil {
		return errors.Wrap(err, "reading calendar")
	}
	return ctx.JSON(http.StatusOK, blocks)
}

func (api *instructorApi) publicReviews(ctx echo.Context) error {
	ins, err := api.publicProfile(ctx)
	if err != nil {
		return err
	}
	page := bindPage(ctx)

	reviews, total, err := api.reviews.ListForInstructor(ctx.Request().Context(), ins.ID, page)
	if err != nil {
		return errors.Wrap(err, "listing reviews")
	}
	if reviews == nil {
		reviews = []review.Review{}
	}
	return ctx.JSON(http.StatusOK, core.NewPage(reviews, total, page))
}

func (api *instructorApi) publicRules(ctx echo.Context) error {
	ins, err := api.publicProfile(ctx)
	if err != nil {
		return err
	}
	rules, err := api.pricing.ListRules(ctx.Request().Context(), ins.ID)
	if err != nil {
		return errors.Wrap(err, "listing pricing rules")
	}
	return ctx.JSON(http.StatusOK, nonNilRules(rules))
}

func (api *instructorApi) quote(ctx echo.Context) error {
	ins, err := api.publicProfile(ctx)
	if err != nil {
		return err
	}

	var data pricing.QuoteRequest
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to QuoteRequest")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}
	data.InstructorID = ins.ID

	q, err := api.pricing.Quote(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "quoting lesson")
	}
	return ctx.JSON(http.StatusOK, q)
}

// Self-service handlers

func (api *instructorApi) ctxUserID(ctx echo.Context) (string, error) {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}
	return usr.ID, nil
}

func (api *instructorApi) ownProfile(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	ins, err := api.svc.GetByUserID(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "finding own profile")
	}
	return ctx.JSON(http.StatusOK, ins)
}

func (api *instructorApi) updateProfile(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}

	var data instructor.UpdateProfile
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	ins, err := api.svc.UpdateProfile(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, ins)
}

func (api *instructorApi) publish(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	ins, err := api.svc.Publish(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "publishing profile")
	}
	return ctx.JSON(http.StatusOK, ins)
}

func (api *instructorApi) unpublish(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	ins, err := api.svc.Unpublish(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "unpublishing profile")
	}
	return ctx.JSON(http.StatusOK, ins)
}

func (api *instructorApi) ownRules(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	rules, err := api.pricing.ListOwnRules(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "listing pricing rules")
	}
	return ctx.JSON(http.StatusOK, nonNilRules(rules))
}

func (api *instructorApi) createRule(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}

	var data pricing.NewRule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewRule")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rule, err := api.pricing.CreateRule(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "creating pricing rule")
	}
	return ctx.JSON(http.StatusCreated, rule)
}

func (api *instructorApi) updateRule(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}

	var data pricing.UpdateRule
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateRule")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rule, err := api.pricing.UpdateRule(ctx.Request().Context(), userID, ctx.Param("ruleId"), data)
	if err != nil {
		return errors.Wrap(err, "updating pricing rule")
	}
	return ctx.JSON(http.StatusOK, rule)
}

func (api *instructorApi) deleteRule(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	if err = api.pricing.DeleteRule(ctx.Request().Context(), userID, ctx.Param("ruleId")); err != nil {
		return errors.Wrap(err, "deleting pricing rule")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *instructorApi) ownCalendar(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	ins, err := api.svc.GetByUserID(ctx.Request().Context(), userID)
	if err != nil {
		return errors.Wrap(err, "finding own profile")
	}
	from, to, err := bindDateRange(ctx)
	if err != nil {
		return err
	}

	blocks, err := api.calendar.Range(ctx.Request().Context(), ins.ID, from, to)
	if err != nil {
		return errors.Wrap(err, "reading calendar")
	}
	if blocks == nil {
		blocks = []calendar.Block{}
	}
	return ctx.JSON(http.StatusOK, blocks)
}

func (api *instructorApi) addUnavailable(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}

	var data calendar.NewUnavailable
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUnavailable")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	blocks, err := api.calendar.AddUnavailable(ctx.Request().Context(), userID, data)
	if err != nil {
		return errors.Wrap(err, "adding unavailable days")
	}
	return ctx.JSON(http.StatusCreated, blocks)
}

func (api *instructorApi) removeBlock(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	if err = api.calendar.RemoveBlock(ctx.Request().Context(), userID, ctx.Param("blockId")); err != nil {
		return errors.Wrap(err, "removing calendar block")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *instructorApi) leaveSchool(ctx echo.Context) error {
	userID, err := api.ctxUserID(ctx)
	if err != nil {
		return err
	}
	if err = api.schools.LeaveSchool(ctx.Request().Context(), userID); err != nil {
		return errors.Wrap(err, "leaving school")
	}
	return ctx.JSON(http.StatusOK, SuccessResponse{Success: api.trans.T(requestLocale(ctx), msgLeftSchool)})
}

// bindDateRange reads `?from=&to=` (YYYY-MM-DD); from defaults to today, to to defaultCalendarDays later.
func bindDateRange(ctx echo.Context) (time.Time, time.Time, error) {
	var q DateRangeQuery
	if err := ctx.Bind(&q); err != nil {
		return time.Time{}, time.Time{}, errors.Wrap(err, "binding to DateRangeQuery")
	}

	from := core.Day(core.NowFunc())
	if q.From != "" {
		d, err := time.Parse(calendar.DateLayout, q.From)
		if err != nil {
			return time.Time{}, time.Time{}, core.NewFieldError("from", calendar.ErrInvalidDate)
		}
		from = d
	}
	to := from.AddDate(0, 0, defaultCalendarDays)
	if q.To != "" {
		d, err := time.Parse(calendar.DateLayout, q.To)
		if err != nil {
			return time.Time{}, time.Time{}, core.NewFieldError("to", calendar.ErrInvalidDate)
		}
		to = d
	}
	return from, to, nil
}

func nonNilRules(rules []pricing.Rule) []pricing.Rule {
	if rules == nil {
		return []pricing.Rule{}
	}
	return rules
}
