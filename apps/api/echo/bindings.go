package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/slopeside/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads `?ordering=field,-other`, dropping fields not in allowed.
func (ord *Ordering) Bind(ctx echo.Context, allowed ...string) {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return
	}
	ord.Orderings = core.ParseOrdering(val, allowed...)
}

// bindPage reads `?page=&page_size=` (GET handlers only); malformed values fall back to the defaults.
func bindPage(ctx echo.Context) core.PageRequest {
	var page core.PageRequest
	if err := ctx.Bind(&page); err != nil {
		return core.PageRequest{}.Normalize()
	}
	return page.Normalize()
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	SuccessResponse struct {
		Success string `json:"success"`
	}

	DestroyMultipleRequest struct {
		IDs []string `query:"id"`
	}

	RoleRequest struct {
		Role string `json:"role" validate:"required,role"`
	}

	ActiveRequest struct {
		Active *bool `json:"active" validate:"required"`
	}

	VerifiedRequest struct {
		Verified *bool `json:"verified" validate:"required"`
	}

	HiddenRequest struct {
		Hidden *bool `json:"hidden" validate:"required"`
	}

	DateRangeQuery struct {
		From string `query:"from"`
		To   string `query:"to"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}

func (rr *RoleRequest) Validate(validate *validator.Validate) error {
	rr.Role = core.CleanString(rr.Role, true /* lower */)
	return validate.Struct(rr)
}
