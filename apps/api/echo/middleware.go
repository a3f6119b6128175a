package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/slopeside/core"
	"github.com/trezcool/slopeside/core/user"
)

const (
	contextLocaleKey = "locale"
	localeParam      = "lang"
)

// localeMiddleware stores the locale explicitly requested through `?lang=` or Accept-Language.
// Without one, requestLocale falls back to the authenticated user's locale.
func localeMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		lang := ctx.QueryParam(localeParam)
		accept := ctx.Request().Header.Get("Accept-Language")
		if lang != "" || accept != "" {
			ctx.Set(contextLocaleKey, core.ResolveLocale(lang, accept))
		}
		return next(ctx)
	}
}

func requestLocale(ctx echo.Context) string {
	if locale, ok := ctx.Get(contextLocaleKey).(string); ok {
		return locale
	}
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok && usr.Locale != "" {
		return core.ResolveLocale(usr.Locale)
	}
	return core.DefaultLocale
}

// staff only lets active staff members through; with roles, one of them is required.
func (a *authenticator) staff(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := a.activeUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if usr.IsAdmin() && hasAnyRole(usr.StaffRoles, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

// role only lets active users holding one of the marketplace roles through.
func (a *authenticator) role(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			usr, err := a.activeUser(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context user")
			}
			if core.ContainsString(roles, usr.Role) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

func hasAnyRole(userRoles, roles []string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if core.ContainsString(userRoles, role) {
			return true
		}
	}
	return false
}
