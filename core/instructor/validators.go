package instructor

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/slopeside/core"
)

var (
	sportTag  = "sport"
	sportText = core.Texts{core.LocaleEN: "unknown sport", core.LocaleFR: "discipline inconnue"}
)

func InitValidators(validate *validator.Validate, trans *core.Translators) {
	_ = validate.RegisterValidation(sportTag, sportValidation)
	core.RegisterCustomTranslations(validate, trans, sportTag, sportText)
}

func sportValidation(fl validator.FieldLevel) bool {
	return IsSport(fl.Field().String())
}
