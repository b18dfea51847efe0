// Package i18n localizes user-facing error messages.
package i18n

import (
	"strings"
	"text/template"

	"golang.org/x/text/language"
)

// Code mirrors errors.Code; importing it would create a cycle.
type Code = string

// BaseLocale is the locale every lookup falls back to.
const BaseLocale = "en-US"

// Catalog renders message templates for one locale. Templates are parsed
// once; a template that fails to parse is rendered verbatim.
type Catalog struct {
	locale    string
	templates map[Code]*template.Template
	raw       map[Code]string
}

// NewCatalog builds a catalog from code to text/template source.
func NewCatalog(locale string, messages map[Code]string) *Catalog {
	c := &Catalog{
		locale:    locale,
		templates: make(map[Code]*template.Template, len(messages)),
		raw:       make(map[Code]string, len(messages)),
	}
	for code, text := range messages {
		c.raw[code] = text
		if tmpl, err := template.New(code).Parse(text); err == nil {
			c.templates[code] = tmpl
		}
	}
	return c
}

var (
	supported = []language.Tag{language.AmericanEnglish, language.BrazilianPortuguese}
	matcher   = language.NewMatcher(supported)
	catalogs  = map[string]*Catalog{
		BaseLocale: NewCatalog(BaseLocale, enUSMessages),
		"pt-BR":    NewCatalog("pt-BR", ptBRMessages),
	}
)

// GetCatalog returns the catalog for locale, matching by language when the
// exact locale is unknown and falling back to BaseLocale.
func GetCatalog(locale string) *Catalog {
	locale = strings.TrimSpace(locale)
	if c, ok := catalogs[locale]; ok {
		return c
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return catalogs[BaseLocale]
	}
	return match(tag)
}

// FromAcceptLanguage resolves an Accept-Language header to a catalog.
func FromAcceptLanguage(header string) *Catalog {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(tags) == 0 {
		return catalogs[BaseLocale]
	}
	return match(tags...)
}

func match(tags ...language.Tag) *Catalog {
	_, idx, confidence := matcher.Match(tags...)
	if confidence == language.No {
		return catalogs[BaseLocale]
	}
	if c, ok := catalogs[supported[idx].String()]; ok {
		return c
	}
	return catalogs[BaseLocale]
}

// Locale returns the catalog's locale.
func (c *Catalog) Locale() string {
	return c.locale
}

// Format renders the message for code with metadata. Unknown codes render
// as the code itself.
func (c *Catalog) Format(code Code, metadata map[string]string) string {
	tmpl, ok := c.templates[code]
	if !ok {
		if raw, ok := c.raw[code]; ok {
			return raw
		}
		return code
	}
	if metadata == nil {
		metadata = map[string]string{}
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, metadata); err != nil {
		return c.raw[code]
	}
	return b.String()
}
