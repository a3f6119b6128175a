package core

import (
	"reflect"
	"regexp"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	fr_translations "github.com/go-playground/validator/v10/translations/fr"
)

// Texts maps a locale to a custom validation message.
type Texts map[string]string

var (
	// custom validation tags & texts
	alphaNumUnderTag   = "alphanum_"
	alphaNumUnderText  = Texts{LocaleEN: "only alphanumeric characters and underscores are allowed", LocaleFR: "seuls les caractères alphanumériques et les tirets bas sont autorisés"}
	alphaNumUnderRegex = regexp.MustCompile(`^[\w\s]+$`)

	notBlankTag  = "notblank"
	notBlankText = Texts{LocaleEN: "this field cannot be blank", LocaleFR: "ce champ ne peut pas être vide"}

	localeTag  = "locale"
	localeText = Texts{LocaleEN: "unsupported language", LocaleFR: "langue non prise en charge"}

	slugTag   = "slug"
	slugText  = Texts{LocaleEN: "only lowercase letters, digits and dashes are allowed", LocaleFR: "seuls les minuscules, chiffres et tirets sont autorisés"}
	slugRegex = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = Texts{LocaleEN: "this field is required", LocaleFR: "ce champ est obligatoire"}
)

// InitValidators registers translations and the global custom validators on validate.
func InitValidators(validate *validator.Validate, trans *Translators) {
	_ = en_translations.RegisterDefaultTranslations(validate, trans.Get(LocaleEN))
	_ = fr_translations.RegisterDefaultTranslations(validate, trans.Get(LocaleFR))

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(alphaNumUnderTag, alphaNumUnderValidation)
	RegisterCustomTranslations(validate, trans, alphaNumUnderTag, alphaNumUnderText)

	_ = validate.RegisterValidation(notBlankTag, notBlankValidation)
	RegisterCustomTranslations(validate, trans, notBlankTag, notBlankText)

	_ = validate.RegisterValidation(localeTag, localeValidation)
	RegisterCustomTranslations(validate, trans, localeTag, localeText)

	_ = validate.RegisterValidation(slugTag, slugValidation)
	RegisterCustomTranslations(validate, trans, slugTag, slugText)

	RegisterCustomTranslations(validate, trans, requiredTag, requiredText, true)
	RegisterCustomTranslations(validate, trans, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// RegisterCustomTranslations registers texts in every supported locale.
// A locale missing from texts gets the DefaultLocale text.
func RegisterCustomTranslations(validate *validator.Validate, trans *Translators, tag string, texts Texts, override ...bool) {
	for _, locale := range SupportedLocales {
		text, ok := texts[locale]
		if !ok {
			text = texts[DefaultLocale]
		}
		RegisterCustomTranslation(validate, trans.Get(locale), tag, text, override...)
	}
}

// TranslateValidationErrors returns {field: message} in trans' locale.
func TranslateValidationErrors(errs validator.ValidationErrors, trans ut.Translator) map[string]string {
	fldErrs := make(map[string]string, len(errs))
	for _, vErr := range errs {
		fldErrs[vErr.Field()] = vErr.Translate(trans)
	}
	return fldErrs
}

// Custom Global Validators

// alphaNumUnderValidation only allows alphanumeric characters and underscores.
func alphaNumUnderValidation(fl validator.FieldLevel) bool {
	return alphaNumUnderRegex.MatchString(fl.Field().String())
}

func notBlankValidation(fl validator.FieldLevel) bool {
	if str, ok := fl.Field().Interface().(string); ok {
		return strings.TrimSpace(str) != ""
	}
	return false
}

func localeValidation(fl validator.FieldLevel) bool {
	return IsSupportedLocale(fl.Field().String())
}

func slugValidation(fl validator.FieldLevel) bool {
	return slugRegex.MatchString(fl.Field().String())
}
