package echoapi

import (
	"crypto/subtle"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/booking"
	"github.com/trezcool/slopeside/core/review"
	"github.com/trezcool/slopeside/core/user"
)

const paymentsSecretHeader = "X-Payments-Secret"

type bookingApi struct {
	svc      *booking.Service
	reviews  *review.Service
	auth     *authenticator
	validate *validator.Validate
	secret   string
}

func registerBookingAPI(g *echo.Group, jwt, limit echo.MiddlewareFunc, s *server) {
	api := bookingApi{
		svc:      s.deps.Bookings,
		reviews:  s.deps.Reviews,
		auth:     s.auth,
		validate: s.deps.Validate,
		secret:   s.deps.Conf.Marketplace.PaymentsWebhookSecret,
	}

	bg := g.Group("/bookings", jwt)
	bg.POST("", api.create, limit, s.auth.role(user.RoleClient))
	bg.GET("", api.list)
	bg.GET("/:id", api.retrieve)
	bg.POST("/:id/accept", api.accept, s.auth.role(user.RoleInstructor))
	bg.POST("/:id/decline", api.decline, s.auth.role(user.RoleInstructor))
	bg.POST("/:id/cancel", api.cancel, s.auth.role(user.RoleClient))
	bg.POST("/:id/lead-fee", api.requestLeadFee, s.auth.role(user.RoleInstructor))
	bg.GET("/:id/contact", api.contact)
	bg.POST("/:id/review", api.review, s.auth.role(user.RoleClient))

	g.DELETE("/reviews/:id", api.deleteReview, jwt, s.auth.role(user.RoleClient))

	// called by the payments provider
	g.POST("/payments/webhook", api.paymentsWebhook, api.webhookSecretMiddleware)
}

func (api *bookingApi) create(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data booking.NewBooking
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewBooking")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	b, err := api.svc.Request(ctx.Request().Context(), usr, data)
	if err != nil {
		return errors.Wrap(err, "requesting booking")
	}
	return ctx.JSON(http.StatusCreated, b)
}

func (api *bookingApi) list(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var filter booking.ListFilter
	if err = ctx.Bind(&filter); err != nil {
		return errors.Wrap(err, "binding to ListFilter")
	}
	page := bindPage(ctx)

	bookings, total, err := api.svc.List(ctx.Request().Context(), usr, filter, page)
	if err != nil {
		return errors.Wrap(err, "listing bookings")
	}
	if bookings == nil {
		bookings = []booking.Booking{}
	}
	return ctx.JSON(http.StatusOK, core.NewPage(bookings, total, page))
}

func (api *bookingApi) retrieve(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	b, err := api.svc.Get(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding booking")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bookingApi) accept(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	b, err := api.svc.Accept(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "accepting booking")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bookingApi) decline(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data booking.Decline
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Decline")
	}
	data.Reason = core.CleanString(data.Reason)
	if err = api.validate.Struct(data); err != nil {
		return err
	}

	b, err := api.svc.Decline(ctx.Request().Context(), usr.ID, ctx.Param("id"), data.Reason)
	if err != nil {
		return errors.Wrap(err, "declining booking")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bookingApi) cancel(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	b, err := api.svc.Cancel(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "cancelling booking")
	}
	return ctx.JSON(http.StatusOK, b)
}

func (api *bookingApi) requestLeadFee(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	dep, err := api.svc.RequestLeadFee(ctx.Request().Context(), usr.ID, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "requesting lead fee")
	}
	return ctx.JSON(http.StatusCreated, dep)
}

func (api *bookingApi) contact(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	c, err := api.svc.Contact(ctx.Request().Context(), usr, ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "reading booking contact")
	}
	return ctx.JSON(http.StatusOK, c)
}

func (api *bookingApi) review(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data review.NewReview
	if err = ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewReview")
	}
	if err = data.Validate(api.validate); err != nil {
		return err
	}

	rev, err := api.reviews.Create(ctx.Request().Context(), usr.ID, ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "creating review")
	}
	return ctx.JSON(http.StatusCreated, rev)
}

func (api *bookingApi) deleteReview(ctx echo.Context) error {
	usr, err := api.auth.activeUser(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if err = api.reviews.Delete(ctx.Request().Context(), usr.ID, ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting review")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *bookingApi) paymentsWebhook(ctx echo.Context) error {
	var data booking.PaymentEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PaymentEvent")
	}
	data.ProviderRef = core.CleanString(data.ProviderRef)
	if err := api.validate.Struct(data); err != nil {
		return err
	}

	dep, err := api.svc.ConfirmDeposit(ctx.Request().Context(), data.DepositID, data.ProviderRef)
	if err != nil {
		return errors.Wrap(err, "confirming deposit")
	}
	return ctx.JSON(http.StatusOK, dep)
}

func (api *bookingApi) webhookSecretMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		got := ctx.Request().Header.Get(paymentsSecretHeader)
		if api.secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(api.secret)) != 1 {
			return errWebhookSecret
		}
		return next(ctx)
	}
}
