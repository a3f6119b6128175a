package core

import (
	"sort"
	"strconv"
	"strings"

	"github.com/go-playground/locales/en"
	"github.com/go-playground/locales/fr"
	ut "github.com/go-playground/universal-translator"
)

const (
	LocaleEN = "en"
	LocaleFR = "fr"

	DefaultLocale = LocaleEN
)

var SupportedLocales = []string{LocaleEN, LocaleFR}

// Translators holds one ut.Translator per supported locale.
// Validation messages and the message catalog (email subjects, API messages) share them.
type Translators struct {
	uni *ut.UniversalTranslator
}

func NewTranslators() *Translators {
	_en := en.New()
	return &Translators{uni: ut.New(_en, _en, fr.New())}
}

// Get returns the translator for locale, falling back to DefaultLocale.
func (t *Translators) Get(locale string) ut.Translator {
	if trans, found := t.uni.GetTranslator(ResolveLocale(locale)); found {
		return trans
	}
	return t.uni.GetFallback()
}

// AddCatalog registers catalog entries {key: text} for locale; texts may hold {0}, {1}.. params.
func (t *Translators) AddCatalog(locale string, entries map[string]string) {
	trans := t.Get(locale)
	for key, text := range entries {
		_ = trans.Add(key, text, true)
	}
}

// T translates a catalog key, falling back to the default locale, then to the key itself.
func (t *Translators) T(locale, key string, params ...string) string {
	if s, err := t.Get(locale).T(key, params...); err == nil && s != "" {
		return s
	}
	if s, err := t.uni.GetFallback().T(key, params...); err == nil && s != "" {
		return s
	}
	return key
}

// ResolveLocale returns the first supported locale among candidates.
// Candidates may be plain tags ("fr"), regional tags ("fr-CH") or Accept-Language header values.
func ResolveLocale(candidates ...string) string {
	for _, candidate := range candidates {
		for _, tag := range parseAcceptLanguage(candidate) {
			base := strings.ToLower(strings.SplitN(tag, "-", 2)[0])
			if ContainsString(SupportedLocales, base) {
				return base
			}
		}
	}
	return DefaultLocale
}

func IsSupportedLocale(locale string) bool {
	return ContainsString(SupportedLocales, locale)
}

// parseAcceptLanguage returns language tags ordered by descending quality.
func parseAcceptLanguage(header string) []string {
	type weighted struct {
		tag string
		q   float64
	}
	var tags []weighted
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		q := 1.0
		pieces := strings.Split(part, ";")
		for _, param := range pieces[1:] {
			param = strings.TrimSpace(param)
			if strings.HasPrefix(param, "q=") {
				if v, err := strconv.ParseFloat(param[2:], 64); err == nil {
					q = v
				}
			}
		}
		tags = append(tags, weighted{tag: strings.TrimSpace(pieces[0]), q: q})
	}
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].q > tags[j].q })

	res := make([]string, 0, len(tags))
	for _, w := range tags {
		if w.q > 0 {
			res = append(res, w.tag)
		}
	}
	return res
}
