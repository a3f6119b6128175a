package pricing

import (
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/slopeside/core"
)

var (
	kindTag  = "pricingkind"
	kindText = core.Texts{core.LocaleEN: "unknown pricing rule kind", core.LocaleFR: "type de règle tarifaire inconnu"}
)

func InitValidators(validate *validator.Validate, trans *core.Translators) {
	_ = validate.RegisterValidation(kindTag, kindValidation)
	core.RegisterCustomTranslations(validate, trans, kindTag, kindText)
}

func kindValidation(fl validator.FieldLevel) bool {
	return core.ContainsString(Kinds, fl.Field().String())
}
