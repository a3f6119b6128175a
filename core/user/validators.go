package user

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/slopeside/core"
	appfs "github.com/trezcool/slopeside/fs"
)

var (
	roleTag  = "role"
	roleText = core.Texts{core.LocaleEN: "invalid role", core.LocaleFR: "rôle invalide"}

	staffRolesTag  = "staffroles"
	staffRolesText = core.Texts{core.LocaleEN: "invalid staff roles", core.LocaleFR: "rôles d'administration invalides"}

	// password policy
	pwdMinLen     = 8
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = core.Texts{
		core.LocaleEN: fmt.Sprintf("password must contain at least %d characters", pwdMinLen),
		core.LocaleFR: fmt.Sprintf("le mot de passe doit contenir au moins %d caractères", pwdMinLen),
	}

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = core.Texts{
		core.LocaleEN: "password must not contain whitespace",
		core.LocaleFR: "le mot de passe ne doit pas contenir d'espace",
	}

	pwdNotAllNumTag  = "pwdnotallnum"
	pwdNotAllNumText = core.Texts{
		core.LocaleEN: "password cannot be entirely numeric",
		core.LocaleFR: "le mot de passe ne peut pas être entièrement numérique",
	}

	pwdComplexityTag  = "pwdcplx"
	pwdComplexityText = core.Texts{
		core.LocaleEN: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character",
		core.LocaleFR: "le mot de passe doit contenir au moins 1 majuscule, 1 minuscule, 1 chiffre et 1 caractère spécial",
	}
	specialRegex = regexp.MustCompile("[^A-Za-z0-9]")

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = core.Texts{
		core.LocaleEN: "password cannot be similar to user attributes",
		core.LocaleFR: "le mot de passe ne peut pas ressembler aux informations du compte",
	}

	pwdNoCommonTag  = "pwdnocommon"
	pwdNoCommonText = core.Texts{
		core.LocaleEN: "password is too common",
		core.LocaleFR: "ce mot de passe est trop courant",
	}

	commonPasswords     []string
	commonPasswordsPath = "assets/common-passwords.txt.gz"
	commonPasswordsOnce sync.Once
	commonPasswordsErr  error
)

// InitValidators registers the user validators & their translations.
func InitValidators(validate *validator.Validate, trans *core.Translators) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslations(validate, trans, roleTag, roleText)

	_ = validate.RegisterValidation(staffRolesTag, staffRolesValidation)
	core.RegisterCustomTranslations(validate, trans, staffRolesTag, staffRolesText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{}, ResetUserPassword{})
	core.RegisterCustomTranslations(validate, trans, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslations(validate, trans, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslations(validate, trans, pwdNotAllNumTag, pwdNotAllNumText)
	core.RegisterCustomTranslations(validate, trans, pwdComplexityTag, pwdComplexityText)
	core.RegisterCustomTranslations(validate, trans, pwdAttrSimTag, pwdAttrSimText)
	core.RegisterCustomTranslations(validate, trans, pwdNoCommonTag, pwdNoCommonText)
}

// LoadCommonPasswords loads the embedded common-password list (once).
func LoadCommonPasswords() error {
	commonPasswordsOnce.Do(func() {
		file, err := appfs.FS.Open(commonPasswordsPath)
		if err != nil {
			commonPasswordsErr = errors.Wrap(err, "opening common passwords")
			return
		}
		defer file.Close()

		gzRdr, err := gzip.NewReader(file)
		if err != nil {
			commonPasswordsErr = errors.Wrap(err, "reading common passwords")
			return
		}
		defer gzRdr.Close()

		pwds := make([]string, 0, 256)
		scanner := bufio.NewScanner(gzRdr)
		for scanner.Scan() {
			if pwd := strings.TrimSpace(scanner.Text()); pwd != "" {
				pwds = append(pwds, strings.ToLower(pwd))
			}
		}
		if err = scanner.Err(); err != nil {
			commonPasswordsErr = errors.Wrap(err, "scanning common passwords")
			return
		}
		sort.Strings(pwds)
		commonPasswords = pwds
	})
	return commonPasswordsErr
}

// Custom Validators

func roleValidation(fl validator.FieldLevel) bool {
	return IsMarketplaceRole(fl.Field().String())
}

// staffRolesValidation checks that provided staff roles are all in StaffRoles
func staffRolesValidation(fl validator.FieldLevel) bool {
	if roles, ok := fl.Field().Interface().([]string); ok {
		for _, role := range roles {
			if !core.ContainsString(StaffRoles, role) {
				return false
			}
		}
		return true
	}
	return false
}

// userStructValidation does struct level validation on NewUser, UpdateUser and ResetUserPassword structs.
func userStructValidation(sl validator.StructLevel) {
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		validatePassword(usr.Password, usr.Name, usr.Email, sl)
	case UpdateUser:
		if usr.Password != "" {
			validatePassword(usr.Password, usr.Name, usr.Email, sl)
		}
	case ResetUserPassword:
		validatePassword(usr.Password, "", "", sl)
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 8
// - no whitespace
// - no all numeric
// - complexity: 1 upper, 1 lower, 1 digit, 1 special
// - no user attrs similarity
// - no common password
func validatePassword(pwd, name, email string, sl validator.StructLevel) {
	if tag := checkPassword(pwd, name, email); tag != "" {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}
}

// checkPassword returns the tag of the first broken password rule, if any.
func checkPassword(pwd, name, email string) string {
	var (
		digitCount                             int
		hasUpper, hasLower, hasDig, hasSpecial bool
	)

	// - minLen: 8
	pwdLen := len([]rune(pwd))
	if pwdLen < pwdMinLen {
		return pwdMinLenTag
	}
	for _, char := range pwd {
		// - no whitespace
		if unicode.IsSpace(char) {
			return pwdNoSpaceTag
		}
		if unicode.IsDigit(char) {
			digitCount++
		}
		if !hasUpper && unicode.IsUpper(char) {
			hasUpper = true
		}
		if !hasLower && unicode.IsLower(char) {
			hasLower = true
		}
	}

	// - not all numeric
	if digitCount == pwdLen {
		return pwdNotAllNumTag
	}

	// - complexity: 1 upper, 1 lower, 1 digit & 1 special
	hasDig = digitCount > 0
	hasSpecial = specialRegex.MatchString(pwd)
	if !(hasUpper && hasLower && hasDig && hasSpecial) {
		return pwdComplexityTag
	}

	// - no user attrs similarity
	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(strings.ToLower(pass), ""), strings.Split(strings.ToLower(usrAttr), "")).QuickRatio()
	}
	emailName := strings.SplitN(email, "@", 2)[0]
	if getRatio(pwd, name) >= pwdMaxSim || getRatio(pwd, email) >= pwdMaxSim || getRatio(pwd, emailName) >= pwdMaxSim {
		return pwdAttrSimTag
	}

	// - no common passwords
	lpwd := strings.ToLower(pwd)
	if idx := sort.SearchStrings(commonPasswords, lpwd); idx < len(commonPasswords) {
		if commonPasswords[idx] == lpwd {
			return pwdNoCommonTag
		}
	}
	return ""
}
